// mock_node is a minimal Rooch JSON-RPC node for trying roochguard locally.
// It accepts any transaction and answers with the sha256 of its bytes.
// Usage: go run ./testdata/mock_node -listen 127.0.0.1:6767
package main

import (
	"crypto/sha256"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/jsonrpc"
	"github.com/tkingovr/roochguard/internal/proxy"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:6767", "listen address")
	chainID := flag.Uint64("chain-id", 4, "chain id to report")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		msg, err := jsonrpc.Parse(body)
		if err != nil {
			writeJSON(w, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParse, err.Error()))
			return
		}
		logger.Info("request", zap.String("method", msg.Method), zap.Int("bytes", len(body)))

		resp := handle(msg, *chainID)
		writeJSON(w, resp)
	})

	logger.Info("mock node listening", zap.String("addr", *listen))
	if err := http.ListenAndServe(*listen, nil); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func handle(msg *api.JSONRPCMessage, chainID uint64) *api.JSONRPCMessage {
	var (
		result any
		err    error
	)
	switch msg.Method {
	case api.MethodSendRawTransaction:
		payload, perr := jsonrpc.ExtractRawTransaction(msg)
		if perr != nil {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, perr.Error())
		}
		sum := sha256.Sum256(payload)
		result = jsonrpc.EncodeHex(sum[:])
	case api.MethodGetChainID:
		result = strconv.FormatUint(chainID, 10)
	case api.MethodDiscover:
		result = map[string]any{"openrpc": "1.2.6", "info": map[string]string{"title": "mock rooch node", "version": "0.1.0"}}
	case api.MethodGetStates:
		result = []any{nil}
	default:
		return jsonrpc.NewErrorResponse(msg.ID, proxy.ErrorCodeMethodNotFound, "method not found: "+msg.Method)
	}

	resp, err := jsonrpc.NewResultResponse(msg.ID, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeUpstream, err.Error())
	}
	return resp
}

func writeJSON(w http.ResponseWriter, msg *api.JSONRPCMessage) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(msg)
}
