package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/tkingovr/roochguard/api"
)

// Standard and roochguard-specific JSON-RPC error codes.
const (
	ErrorCodeParse          = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeInvalidParams  = -32602
	ErrorCodeUpstream       = -32000

	// ErrorCodePolicyDenied is returned when a policy rule denies a submission.
	ErrorCodePolicyDenied = -32001
	// ErrorCodeApprovalTimeout is returned when an approval request expires.
	ErrorCodeApprovalTimeout = -32002
	ErrorCodeRateLimited     = -32003
	ErrorCodeInvalidPayload  = -32004
)

// NewRequest builds a request message with JSON-encoded params.
func NewRequest(id uint64, method string, params any) (*api.JSONRPCMessage, error) {
	msg := &api.JSONRPCMessage{
		JSONRPC: api.Version,
		ID:      json.RawMessage(fmt.Sprintf("%d", id)),
		Method:  method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling params for %s: %w", method, err)
		}
		msg.Params = raw
	}
	return msg, nil
}

// NewResultResponse builds a success response carrying result.
func NewResultResponse(id json.RawMessage, result any) (*api.JSONRPCMessage, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &api.JSONRPCMessage{
		JSONRPC: api.Version,
		ID:      id,
		Result:  raw,
	}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id json.RawMessage, code int, message string) *api.JSONRPCMessage {
	return &api.JSONRPCMessage{
		JSONRPC: api.Version,
		ID:      id,
		Error: &api.RPCError{
			Code:    code,
			Message: message,
		},
	}
}

// NewDenyResponse creates a JSON-RPC error response for a denied request.
func NewDenyResponse(id json.RawMessage, message string) *api.JSONRPCMessage {
	return NewErrorResponse(id, ErrorCodePolicyDenied, message)
}

// Marshal encodes a JSONRPCMessage to JSON bytes.
func Marshal(msg *api.JSONRPCMessage) ([]byte, error) {
	return json.Marshal(msg)
}
