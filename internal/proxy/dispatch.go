// Package proxy holds the JSON-RPC request handling shared by the HTTP
// proxy and the stdio bridge.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/approval"
	"github.com/tkingovr/roochguard/internal/client"
	"github.com/tkingovr/roochguard/internal/filter"
	"github.com/tkingovr/roochguard/internal/jsonrpc"
)

// Sender submits raw transactions. *filter.FilteredClient implements it.
type Sender interface {
	SendRawTransaction(ctx context.Context, payload []byte) (string, error)
}

// Dispatcher answers JSON-RPC requests. rooch_sendRawTransaction goes to
// the sender; every other method is passed to the caller unchanged.
type Dispatcher struct {
	sender Sender
	caller client.Caller
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. caller may be nil, in which case
// methods other than rooch_sendRawTransaction are answered with an error.
func NewDispatcher(sender Sender, caller client.Caller, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sender: sender, caller: caller, logger: logger}
}

// Handle answers one request. It always returns a response, even for
// notifications; callers decide whether to write it.
func (d *Dispatcher) Handle(ctx context.Context, msg *api.JSONRPCMessage) *api.JSONRPCMessage {
	if msg.Method == api.MethodSendRawTransaction {
		return d.send(ctx, msg)
	}
	if d.caller == nil {
		return jsonrpc.NewErrorResponse(msg.ID, ErrorCodeMethodNotFound, "method not available: "+msg.Method)
	}

	result, err := d.caller.Call(ctx, msg.Method, msg.Params)
	if err != nil {
		return ErrorResponse(msg.ID, err)
	}
	return &api.JSONRPCMessage{JSONRPC: api.Version, ID: msg.ID, Result: result}
}

// IsBatch reports whether body holds a JSON array.
func IsBatch(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// HandleBatch answers a batch. Every element goes through Handle, so a
// submission hidden in a batch is still filtered. Notifications get no
// entry, which leaves responses empty for an all-notification batch.
// A body that is not an array, or an empty array, is answered with the
// single error response invalid instead.
func (d *Dispatcher) HandleBatch(ctx context.Context, body []byte) (responses []*api.JSONRPCMessage, invalid *api.JSONRPCMessage) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParse, "invalid batch request: "+err.Error())
	}
	if len(raw) == 0 {
		return nil, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest, "empty batch request")
	}

	responses = make([]*api.JSONRPCMessage, 0, len(raw))
	for _, item := range raw {
		msg, err := jsonrpc.Parse(item)
		if err != nil {
			responses = append(responses, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest, err.Error()))
			continue
		}
		resp := d.Handle(ctx, msg)
		if !msg.IsNotification() {
			responses = append(responses, resp)
		}
	}
	return responses, nil
}

func (d *Dispatcher) send(ctx context.Context, msg *api.JSONRPCMessage) *api.JSONRPCMessage {
	payload, err := jsonrpc.ExtractRawTransaction(msg)
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, err.Error())
	}

	hash, err := d.sender.SendRawTransaction(ctx, payload)
	if err != nil {
		d.logger.Debug("submission failed", zap.Error(err))
		return ErrorResponse(msg.ID, err)
	}

	resp, err := jsonrpc.NewResultResponse(msg.ID, hash)
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeUpstream, err.Error())
	}
	return resp
}

// ErrorCodeMethodNotFound is the standard JSON-RPC code for unknown methods.
const ErrorCodeMethodNotFound = -32601

// ErrorResponse maps a submission error to a JSON-RPC error response.
// Errors reported by the node keep their own code.
func ErrorResponse(id json.RawMessage, err error) *api.JSONRPCMessage {
	code, data := classify(err)
	resp := jsonrpc.NewErrorResponse(id, code, err.Error())
	resp.Error.Data = data
	return resp
}

func classify(err error) (int, json.RawMessage) {
	var rpcErr *api.RPCError
	var denied *filter.DeniedError
	var limited *filter.RateLimitError
	switch {
	case errors.Is(err, approval.ErrTimedOut):
		return jsonrpc.ErrorCodeApprovalTimeout, ruleData(err)
	case errors.As(err, &denied):
		return jsonrpc.ErrorCodePolicyDenied, ruleData(err)
	case errors.As(err, &limited):
		data, _ := json.Marshal(map[string]any{
			"scope":          limited.Scope,
			"retry_after_ms": limited.RetryAfter.Milliseconds(),
		})
		return jsonrpc.ErrorCodeRateLimited, data
	case errors.Is(err, filter.ErrRateLimited):
		return jsonrpc.ErrorCodeRateLimited, nil
	case errors.Is(err, filter.ErrPayloadRejected):
		return jsonrpc.ErrorCodeInvalidPayload, nil
	case errors.As(err, &rpcErr):
		return rpcErr.Code, rpcErr.Data
	default:
		return jsonrpc.ErrorCodeUpstream, nil
	}
}

func ruleData(err error) json.RawMessage {
	var denied *filter.DeniedError
	if !errors.As(err, &denied) || denied.Rule == "" {
		return nil
	}
	data, _ := json.Marshal(map[string]string{"rule": denied.Rule})
	return data
}
