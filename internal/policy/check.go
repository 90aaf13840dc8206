package policy

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/jsonrpc"
)

// InputFor builds the engine input for a payload submitted via method.
func InputFor(method string, payload []byte) *EvalInput {
	return &EvalInput{
		Method:  method,
		Size:    len(payload),
		Payload: hex.EncodeToString(payload),
	}
}

// InvalidCheckError reports a check request that could not be evaluated.
type InvalidCheckError struct {
	Err error
}

func (e *InvalidCheckError) Error() string { return "invalid check request: " + e.Err.Error() }

func (e *InvalidCheckError) Unwrap() error { return e.Err }

// Check evaluates req against engine as a dry run. An empty method means
// rooch_sendRawTransaction.
func Check(ctx context.Context, engine Engine, req api.CheckRequest) (*api.CheckResponse, error) {
	if req.Method == "" {
		req.Method = api.MethodSendRawTransaction
	}
	var payload []byte
	if req.Payload != "" {
		b, err := jsonrpc.DecodeHex(req.Payload)
		if err != nil {
			return nil, &InvalidCheckError{Err: err}
		}
		payload = b
	}

	result, err := engine.Evaluate(ctx, InputFor(req.Method, payload))
	if err != nil {
		return nil, fmt.Errorf("evaluating policy: %w", err)
	}
	return &api.CheckResponse{
		Verdict: result.Verdict,
		Rule:    result.Rule,
		Message: result.Message,
	}, nil
}
