package store

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/domaintobiz/siteworker/internal/metrics"
	"github.com/domaintobiz/siteworker/internal/transport"
)

// Row is one decoded record from the store's REST API.
type Row = map[string]any

// Config holds connection settings for the backing store.
type Config struct {
	URL                string
	ServiceKey         string
	RequestTimeout     time.Duration
	ResolveTimeout     time.Duration
	InsecureIPFallback bool
}

// Client speaks the store's REST dialect (PostgREST-style) over the
// resilient transport. All persistence in the system flows through it.
type Client struct {
	transport *transport.Client
}

// NewClient creates a store client for the given origin and service key.
func NewClient(cfg *Config) (*Client, error) {
	tc, err := transport.NewClient(&transport.Config{
		BaseURL: cfg.URL,
		Headers: map[string]string{
			"apikey":        cfg.ServiceKey,
			"Authorization": "Bearer " + cfg.ServiceKey,
			"Prefer":        "return=representation",
		},
		Timeout:            cfg.RequestTimeout,
		ResolveTimeout:     cfg.ResolveTimeout,
		InsecureIPFallback: cfg.InsecureIPFallback,
	})
	if err != nil {
		return nil, err
	}
	return &Client{transport: tc}, nil
}

// NewClientWithTransport wires a prebuilt transport; used by tests.
func NewClientWithTransport(tc *transport.Client) *Client {
	return &Client{transport: tc}
}

// Table starts a query against a table.
func (c *Client) Table(name string) *Query {
	return &Query{client: c, table: name, selectFields: "*"}
}

// Rpc starts a stored procedure invocation.
func (c *Client) Rpc(function string, params map[string]any) *RpcCall {
	return &RpcCall{client: c, function: function, params: params}
}

// do issues one REST call and normalizes the outcome: transport errors and
// non-2xx responses become errors, bodies decode into a row list.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]Row, error) {
	resp, err := c.transport.Do(ctx, method, path, query, body)
	if err != nil {
		metrics.IncStoreRequest(method, "transport_error")
		return nil, err
	}
	if !resp.IsSuccess() {
		metrics.IncStoreRequest(method, "api_error")
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	metrics.IncStoreRequest(method, "ok")
	return normalizeRows(resp.Body)
}

// normalizeRows wraps every response shape into a list of rows: an object
// becomes a one-element list, null or empty bodies become an empty list.
func normalizeRows(body []byte) ([]Row, error) {
	if len(body) == 0 {
		return []Row{}, nil
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case nil:
		return []Row{}, nil
	case []any:
		rows := make([]Row, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		return rows, nil
	case map[string]any:
		return []Row{v}, nil
	default:
		// Scalar RPC results (counts, booleans) carry no row data.
		return []Row{}, nil
	}
}
