// Package collab implements the canvas data collaborator against a Persistor
// knowledge graph server.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Client is a small typed client for the Persistor REST API. Every request
// runs through a circuit breaker so a failing backend is shed quickly
// instead of piling up slow canvas requests.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *logrus.Logger
}

// BreakerSettings tunes the circuit breaker around backend calls.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker. Zero disables tripping.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger used for breaker state changes.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a Persistor client for the given base URL
// (e.g. "http://localhost:3030").
func NewClient(baseURL string, bs BreakerSettings, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "persistor",
		Timeout: bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return bs.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
		IsSuccessful: breakerSuccess,
	})

	return c
}

// breakerSuccess decides what counts against the backend. Client errors and
// cancelled requests say nothing about backend health.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

// Health returns the backend liveness response.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/api/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetNode returns a single node by ID.
func (c *Client) GetNode(ctx context.Context, id string) (*Node, error) {
	var node Node
	if err := c.get(ctx, "/api/v1/nodes/"+url.PathEscape(id), nil, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// CreateNode creates a new node.
func (c *Client) CreateNode(ctx context.Context, req *CreateNodeRequest) (*Node, error) {
	var node Node
	if err := c.do(ctx, http.MethodPost, "/api/v1/nodes", req, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// DeleteNode removes a node by ID. The server drops its edges with it.
func (c *Client) DeleteNode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/nodes/"+url.PathEscape(id), nil, nil)
}

// CreateEdge creates a new edge.
func (c *Client) CreateEdge(ctx context.Context, req *CreateEdgeRequest) (*Edge, error) {
	var edge Edge
	if err := c.do(ctx, http.MethodPost, "/api/v1/edges", req, &edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

// DeleteEdge removes an edge by source/target/relation.
func (c *Client) DeleteEdge(ctx context.Context, key EdgeKey) error {
	path := fmt.Sprintf("/api/v1/edges/%s/%s/%s",
		url.PathEscape(key.Source), url.PathEscape(key.Target), url.PathEscape(key.Relation))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Neighbors returns nodes and edges directly connected to a node.
func (c *Client) Neighbors(ctx context.Context, id string, limit int) (*Subgraph, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var resp Subgraph
	if err := c.get(ctx, "/api/v1/graph/neighbors/"+url.PathEscape(id), params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Traverse performs a BFS traversal from a node up to maxHops deep.
func (c *Client) Traverse(ctx context.Context, id string, maxHops int) (*Subgraph, error) {
	params := url.Values{}
	if maxHops > 0 {
		params.Set("hops", strconv.Itoa(maxHops))
	}
	var resp Subgraph
	if err := c.get(ctx, "/api/v1/graph/traverse/"+url.PathEscape(id), params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do executes an HTTP request through the breaker and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, body, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, result)
}
