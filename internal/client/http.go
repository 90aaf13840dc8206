package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/jsonrpc"
)

// DefaultTimeout bounds a single HTTP round trip.
const DefaultTimeout = 10 * time.Second

// StatusError is returned when the node answers with a non-2xx HTTP status.
type StatusError struct {
	StatusCode int
	Method     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.Method, e.StatusCode)
}

// HTTPClient is a JSON-RPC 2.0 client for a Rooch node over HTTP.
type HTTPClient struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
	nextID   atomic.Uint64
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.http = c }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) HTTPOption {
	return func(h *HTTPClient) { h.logger = l }
}

// NewHTTPClient creates an HTTP JSON-RPC client for endpoint.
func NewHTTPClient(endpoint string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: DefaultTimeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the node URL.
func (c *HTTPClient) Endpoint() string { return c.endpoint }

// Call sends one JSON-RPC request and returns the raw result.
func (c *HTTPClient) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	msg := &api.JSONRPCMessage{
		JSONRPC: api.Version,
		ID:      json.RawMessage(strconv.FormatUint(c.nextID.Add(1), 10)),
		Method:  method,
		Params:  params,
	}
	body, err := jsonrpc.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer res.Body.Close()

	c.logger.Debug("rpc call",
		zap.String("method", method),
		zap.Int("status", res.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{StatusCode: res.StatusCode, Method: method}
	}

	var resp api.JSONRPCMessage
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if resp.JSONRPC != api.Version {
		return nil, fmt.Errorf("%s: unsupported JSON-RPC version %q", method, resp.JSONRPC)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func (c *HTTPClient) call(ctx context.Context, method string, params []any, out any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling %s params: %w", method, err)
		}
		raw = b
	}
	result, err := c.Call(ctx, method, raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

func (c *HTTPClient) GetRPCAPIVersion(ctx context.Context) (string, error) {
	var doc struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	if err := c.call(ctx, api.MethodDiscover, nil, &doc); err != nil {
		return "", err
	}
	return doc.Info.Version, nil
}

func (c *HTTPClient) GetChainID(ctx context.Context) (uint64, error) {
	var raw json.RawMessage
	if err := c.call(ctx, api.MethodGetChainID, nil, &raw); err != nil {
		return 0, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		id, err := parseQuantity(s)
		if err != nil {
			return 0, fmt.Errorf("parsing chain id %q: %w", s, err)
		}
		return id, nil
	}
	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("parsing chain id: %w", err)
	}
	return id, nil
}

func (c *HTTPClient) ExecuteViewFunction(ctx context.Context, params api.ExecuteViewFunctionParams) (*api.AnnotatedFunctionResultView, error) {
	var out api.AnnotatedFunctionResultView
	if err := c.call(ctx, api.MethodExecuteViewFunction, []any{params.FunctionCall()}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetStates(ctx context.Context, accessPath string) ([]*api.StateView, error) {
	var out []*api.StateView
	if err := c.call(ctx, api.MethodGetStates, []any{accessPath}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListStates(ctx context.Context, params api.ListStatesParams) (*api.StatePageView, error) {
	var limit any
	if params.Limit != nil {
		limit = strconv.Itoa(*params.Limit)
	}
	var out api.StatePageView
	if err := c.call(ctx, api.MethodListStates, []any{params.AccessPath, params.Cursor, limit}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SendRawTransaction(ctx context.Context, payload []byte) (string, error) {
	var hash string
	if err := c.call(ctx, api.MethodSendRawTransaction, []any{jsonrpc.EncodeHex(payload)}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// parseQuantity accepts decimal or 0x-prefixed hex.
func parseQuantity(s string) (uint64, error) {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
}
