package jsonrpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tkingovr/roochguard/api"
)

// Parse decodes a raw JSON byte slice into a JSONRPCMessage.
func Parse(data []byte) (*api.JSONRPCMessage, error) {
	var msg api.JSONRPCMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC message: %w", err)
	}
	if msg.JSONRPC != api.Version {
		return nil, fmt.Errorf("unsupported JSON-RPC version: %q", msg.JSONRPC)
	}
	return &msg, nil
}

// ExtractRawTransaction returns the transaction bytes carried by a
// rooch_sendRawTransaction request. Params must be a one-element array
// holding a hex string.
func ExtractRawTransaction(msg *api.JSONRPCMessage) ([]byte, error) {
	if msg.Method != api.MethodSendRawTransaction {
		return nil, fmt.Errorf("not a %s request: %q", api.MethodSendRawTransaction, msg.Method)
	}
	if msg.Params == nil {
		return nil, fmt.Errorf("%s request has no params", api.MethodSendRawTransaction)
	}
	var params []string
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to parse %s params: %w", api.MethodSendRawTransaction, err)
	}
	if len(params) != 1 {
		return nil, fmt.Errorf("%s expects 1 param, got %d", api.MethodSendRawTransaction, len(params))
	}
	return DecodeHex(params[0])
}

// EncodeHex renders bytes as a 0x-prefixed lowercase hex string.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHex parses a hex string with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return b, nil
}
