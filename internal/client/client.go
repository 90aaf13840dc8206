// Package client talks to a Rooch node over JSON-RPC.
package client

import (
	"context"
	"encoding/json"

	"github.com/tkingovr/roochguard/api"
)

// Client is the set of Rooch RPC operations the rest of roochguard relies on.
type Client interface {
	// GetRPCAPIVersion returns the node's advertised RPC API version.
	GetRPCAPIVersion(ctx context.Context) (string, error)

	// GetChainID returns the chain id of the connected network.
	GetChainID(ctx context.Context) (uint64, error)

	// ExecuteViewFunction runs a read-only Move function.
	ExecuteViewFunction(ctx context.Context, params api.ExecuteViewFunctionParams) (*api.AnnotatedFunctionResultView, error)

	// GetStates reads the states at an access path. Missing states are nil.
	GetStates(ctx context.Context, accessPath string) ([]*api.StateView, error)

	// ListStates pages through the states under an access path.
	ListStates(ctx context.Context, params api.ListStatesParams) (*api.StatePageView, error)

	// SendRawTransaction submits a signed, BCS-encoded transaction and
	// returns its hash.
	SendRawTransaction(ctx context.Context, payload []byte) (string, error)
}

// Caller issues arbitrary JSON-RPC calls. HTTPClient implements it so
// proxies can pass through methods they do not intercept.
type Caller interface {
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}
