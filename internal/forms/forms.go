// Package forms implements the edit forms used to change graph elements.
//
// Each form is a small struct validated with go-playground/validator. Keys,
// labels and relationship types share one naming rule registered as the
// "graphkey" tag.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/persistorai/canvas/internal/models"
)

// Kind identifies a form variant on the wire.
type Kind string

// Form kinds.
const (
	KindProperty Kind = "property"
	KindType     Kind = "type"
	KindLabel    Kind = "label"
)

// ValidKey reports whether s may be used as a property key, label or
// relationship type: the first character is not a digit or whitespace and
// the remainder, at least one character, contains no whitespace.
// Whitespace is any Unicode space, including NBSP and the byte order mark.
func ValidKey(s string) bool {
	first, size := utf8.DecodeRuneInString(s)
	if size == 0 || size == len(s) {
		return false
	}
	if isKeySpace(first) || (first >= '0' && first <= '9') {
		return false
	}
	return strings.IndexFunc(s[size:], isKeySpace) < 0
}

func isKeySpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("graphkey", func(fl validator.FieldLevel) bool {
		return ValidKey(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return v
}

// Field describes one input of a form.
type Field struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Multiline bool   `json:"multiline,omitempty"`
}

// Form is the capability shared by every edit form.
type Form interface {
	Kind() Kind
	Fields() []Field
	Set(name, value string) error
	Validate() error
	Result() map[string]string
}

// PropertyForm adds or replaces one property.
type PropertyForm struct {
	Key   string `json:"key" validate:"graphkey"`
	Value string `json:"value"`
}

// NewPropertyForm returns a property form seeded with initial values.
func NewPropertyForm(key, value string) *PropertyForm {
	return &PropertyForm{Key: key, Value: value}
}

func (f *PropertyForm) Kind() Kind { return KindProperty }

func (f *PropertyForm) Fields() []Field {
	return []Field{
		{Name: "key", Label: "Key", Value: f.Key},
		{Name: "value", Label: "Value", Value: f.Value, Multiline: true},
	}
}

func (f *PropertyForm) Set(name, value string) error {
	switch name {
	case "key":
		f.Key = value
	case "value":
		f.Value = value
	default:
		return unknownField(f.Kind(), name)
	}
	return nil
}

func (f *PropertyForm) Validate() error { return check(f) }

func (f *PropertyForm) Result() map[string]string {
	return map[string]string{"key": f.Key, "value": f.Value}
}

// TypeForm renames a relationship type.
type TypeForm struct {
	Type string `json:"type" validate:"graphkey"`
}

// NewTypeForm returns a type form seeded with the current type.
func NewTypeForm(typ string) *TypeForm { return &TypeForm{Type: typ} }

func (f *TypeForm) Kind() Kind { return KindType }

func (f *TypeForm) Fields() []Field {
	return []Field{{Name: "type", Label: "Type", Value: f.Type}}
}

func (f *TypeForm) Set(name, value string) error {
	if name != "type" {
		return unknownField(f.Kind(), name)
	}
	f.Type = value
	return nil
}

func (f *TypeForm) Validate() error { return check(f) }

func (f *TypeForm) Result() map[string]string { return map[string]string{"type": f.Type} }

// LabelForm adds a label to a node.
type LabelForm struct {
	Label string `json:"label" validate:"graphkey"`
}

// NewLabelForm returns an empty label form.
func NewLabelForm(label string) *LabelForm { return &LabelForm{Label: label} }

func (f *LabelForm) Kind() Kind { return KindLabel }

func (f *LabelForm) Fields() []Field {
	return []Field{{Name: "label", Label: "Label", Value: f.Label}}
}

func (f *LabelForm) Set(name, value string) error {
	if name != "label" {
		return unknownField(f.Kind(), name)
	}
	f.Label = value
	return nil
}

func (f *LabelForm) Validate() error { return check(f) }

func (f *LabelForm) Result() map[string]string { return map[string]string{"label": f.Label} }

// New returns an empty form of the given kind.
func New(kind Kind) (Form, error) {
	switch kind {
	case KindProperty:
		return &PropertyForm{}, nil
	case KindType:
		return &TypeForm{}, nil
	case KindLabel:
		return &LabelForm{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown form %q", models.ErrValidationFailed, kind)
	}
}

// Fill sets every value on the form, stopping at the first unknown field.
func Fill(f Form, values map[string]string) error {
	for name, value := range values {
		if err := f.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Submit validates the form and hands its result to onSubmit. Invalid input
// returns ErrValidationFailed and onSubmit is not called.
func Submit(f Form, onSubmit func(result map[string]string)) error {
	if err := f.Validate(); err != nil {
		return err
	}
	onSubmit(f.Result())
	return nil
}

func check(f any) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", models.ErrValidationFailed, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", models.ErrValidationFailed, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "graphkey":
		return fmt.Sprintf("%s %q must not start with a digit or whitespace and must not contain whitespace", e.Field(), e.Value())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}

func unknownField(kind Kind, name string) error {
	return fmt.Errorf("%w: %s form has no field %q", models.ErrValidationFailed, kind, name)
}
