package models

import "fmt"

// ItemKind tags what an Item refers to.
type ItemKind string

// Item kinds. The empty kind means nothing is selected.
const (
	KindNone         ItemKind = ""
	KindCanvas       ItemKind = "canvas"
	KindNode         ItemKind = "node"
	KindRelationship ItemKind = "relationship"
)

// ParseItemKind converts a wire value into an ItemKind.
func ParseItemKind(s string) (ItemKind, error) {
	switch k := ItemKind(s); k {
	case KindNone, KindCanvas, KindNode, KindRelationship:
		return k, nil
	default:
		return KindNone, fmt.Errorf("unknown item kind %q", s)
	}
}

// Item is a selectable canvas element. It carries a snapshot of the element
// so it can be handed to asynchronous continuations by value.
type Item struct {
	Kind         ItemKind      `json:"type"`
	Node         *Node         `json:"node,omitempty"`
	Relationship *Relationship `json:"relationship,omitempty"`
}

// CanvasItem is the item produced by clicking the empty canvas.
var CanvasItem = Item{Kind: KindCanvas}

// NodeItem wraps a node snapshot.
func NodeItem(n Node) Item {
	c := n.Clone()
	return Item{Kind: KindNode, Node: &c}
}

// RelationshipItem wraps a relationship snapshot.
func RelationshipItem(r Relationship) Item {
	c := r.Clone()
	return Item{Kind: KindRelationship, Relationship: &c}
}

// IsNone reports whether the item is the empty selection.
func (i Item) IsNone() bool { return i.Kind == KindNone }

// IsNode reports whether the item refers to a node.
func (i Item) IsNode() bool { return i.Kind == KindNode && i.Node != nil }

// IsRelationship reports whether the item refers to a relationship.
func (i Item) IsRelationship() bool { return i.Kind == KindRelationship && i.Relationship != nil }

// ID returns the id of the referenced element, or "" for none and canvas.
func (i Item) ID() string {
	switch {
	case i.IsNode():
		return i.Node.ID
	case i.IsRelationship():
		return i.Relationship.ID
	default:
		return ""
	}
}

// Refers reports whether two items point at the same element.
func (i Item) Refers(other Item) bool {
	return i.Kind == other.Kind && i.ID() == other.ID()
}

// String implements fmt.Stringer for log fields.
func (i Item) String() string {
	switch i.Kind {
	case KindNone:
		return "none"
	case KindCanvas:
		return "canvas"
	default:
		return string(i.Kind) + ":" + i.ID()
	}
}

// Deletion is the typed record a data collaborator returns for a delete.
type Deletion struct {
	Kind ItemKind `json:"type"`
	Item Item     `json:"item"`
}
