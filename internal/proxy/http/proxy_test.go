package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/audit"
	"github.com/tkingovr/roochguard/internal/client"
	"github.com/tkingovr/roochguard/internal/filter"
	"github.com/tkingovr/roochguard/internal/jsonrpc"
	"github.com/tkingovr/roochguard/internal/policy"
	"github.com/tkingovr/roochguard/internal/proxy"
)

// fakeNode answers rooch_sendRawTransaction with a fixed hash and echoes
// the method name for everything else.
type fakeNode struct {
	*httptest.Server
	sends atomic.Int32
	hits  atomic.Int32
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{}
	n.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.hits.Add(1)
		if r.Method == http.MethodGet {
			w.Write([]byte("ok"))
			return
		}
		var req api.JSONRPCMessage
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var result any = req.Method
		if req.Method == api.MethodSendRawTransaction {
			n.sends.Add(1)
			result = "0xfeed"
		}
		resp, _ := jsonrpc.NewResultResponse(req.ID, result)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(n.Close)
	return n
}

func newTestProxy(t *testing.T, node *fakeNode) (*Proxy, *audit.JSONLStore) {
	t.Helper()

	engine, err := policy.NewYAMLEngineFromPolicy(&policy.PolicyFile{
		Version:  1,
		Settings: policy.Settings{DefaultAction: api.VerdictDeny},
		Rules: []policy.Rule{
			{Name: "block-dead", Match: policy.RuleMatch{Method: api.MethodSendRawTransaction, PayloadPrefix: "0xdead"}, Action: "deny", Message: "blocked"},
			{Name: "allow-tx", Match: policy.RuleMatch{Method: api.MethodSendRawTransaction}, Action: "allow"},
		},
	})
	require.NoError(t, err)

	store, err := audit.NewJSONLStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rpc := client.NewHTTPClient(node.URL)
	fc, err := filter.NewFilteredClient(context.Background(), rpc, filter.BuildFilters(filter.ChainConfig{
		Engine:          engine,
		AuditStore:      store,
		MaxPayloadBytes: 16,
	}))
	require.NoError(t, err)
	t.Cleanup(func() { fc.Close() })

	p, err := NewProxy(node.URL, proxy.NewDispatcher(fc, rpc, nil), nil)
	require.NoError(t, err)
	return p, store
}

func post(p *Proxy, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) *api.JSONRPCMessage {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)
	msg, err := jsonrpc.Parse(w.Body.Bytes())
	require.NoError(t, err)
	return msg
}

func TestHTTPProxy_AllowedSubmission(t *testing.T) {
	node := newFakeNode(t)
	p, store := newTestProxy(t, node)

	resp := decode(t, post(p, `{"jsonrpc":"2.0","id":1,"method":"rooch_sendRawTransaction","params":["0x0102"]}`))
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `"0xfeed"`, string(resp.Result))
	assert.Equal(t, "1", string(resp.ID))
	assert.EqualValues(t, 1, node.sends.Load())

	records, err := store.Query(context.Background(), api.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0xfeed", records[0].TxHash)
}

func TestHTTPProxy_DeniedSubmission(t *testing.T) {
	node := newFakeNode(t)
	p, _ := newTestProxy(t, node)

	resp := decode(t, post(p, `{"jsonrpc":"2.0","id":2,"method":"rooch_sendRawTransaction","params":["0xdeadbeef"]}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodePolicyDenied, resp.Error.Code)
	assert.Zero(t, node.sends.Load(), "node must not see denied submissions")
}

func TestHTTPProxy_InvalidPayload(t *testing.T) {
	node := newFakeNode(t)
	p, _ := newTestProxy(t, node)

	big := `"0x` + strings.Repeat("00", 17) + `"`
	resp := decode(t, post(p, `{"jsonrpc":"2.0","id":3,"method":"rooch_sendRawTransaction","params":[`+big+`]}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidPayload, resp.Error.Code)

	resp = decode(t, post(p, `{"jsonrpc":"2.0","id":4,"method":"rooch_sendRawTransaction","params":["nothex"]}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidParams, resp.Error.Code)
}

func TestHTTPProxy_ParseError(t *testing.T) {
	node := newFakeNode(t)
	p, _ := newTestProxy(t, node)

	resp := decode(t, post(p, `{not json`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeParse, resp.Error.Code)
	assert.Zero(t, node.hits.Load())
}

func TestHTTPProxy_ForwardsOtherMethods(t *testing.T) {
	node := newFakeNode(t)
	p, _ := newTestProxy(t, node)

	resp := decode(t, post(p, `{"jsonrpc":"2.0","id":5,"method":"rooch_getChainID","params":[]}`))
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `"rooch_getChainID"`, string(resp.Result))
	assert.Equal(t, "5", string(resp.ID), "forwarded requests keep the caller's id")
	assert.Zero(t, node.sends.Load())
}

func TestHTTPProxy_ForwardsGet(t *testing.T) {
	node := newFakeNode(t)
	p, _ := newTestProxy(t, node)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Equal(t, "ok", string(body))
}

func TestHTTPProxy_BatchFiltersSubmissions(t *testing.T) {
	node := newFakeNode(t)
	p, _ := newTestProxy(t, node)

	w := post(p, `[
		{"jsonrpc":"2.0","id":1,"method":"rooch_sendRawTransaction","params":["0xdeadbeef"]},
		{"jsonrpc":"2.0","id":2,"method":"rooch_getChainID"},
		{"jsonrpc":"2.0","method":"rooch_sendRawTransaction","params":["0x01"]}
	]`)
	require.Equal(t, http.StatusOK, w.Code)

	var responses []api.JSONRPCMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responses))
	require.Len(t, responses, 2, "notifications get no response")
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, jsonrpc.ErrorCodePolicyDenied, responses[0].Error.Code)
	assert.JSONEq(t, `"rooch_getChainID"`, string(responses[1].Result))
	assert.EqualValues(t, 1, node.sends.Load(), "only the allowed notification reached the node")
}

func TestHTTPProxy_Notification(t *testing.T) {
	node := newFakeNode(t)
	p, _ := newTestProxy(t, node)

	w := post(p, `{"jsonrpc":"2.0","method":"rooch_sendRawTransaction","params":["0x01"]}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.EqualValues(t, 1, node.sends.Load())
}

func TestNewProxy_InvalidTarget(t *testing.T) {
	_, err := NewProxy("not a url", nil, nil)
	assert.Error(t, err)
}

func TestHTTPProxy_EmptyBatch(t *testing.T) {
	node := newFakeNode(t)
	p, _ := newTestProxy(t, node)

	resp := decode(t, post(p, `[]`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidRequest, resp.Error.Code)
	assert.Zero(t, node.hits.Load())
}

func TestHTTPProxy_BodyLimitFollowsPayloadLimit(t *testing.T) {
	node := newFakeNode(t)
	fc, err := filter.NewFilteredClient(context.Background(), client.NewHTTPClient(node.URL), nil)
	require.NoError(t, err)
	t.Cleanup(func() { fc.Close() })
	dispatcher := proxy.NewDispatcher(fc, nil, nil)

	// 3 MiB of transaction is 6 MiB of hex, above the default body limit.
	const payloadBytes = 3 << 20
	body := `{"jsonrpc":"2.0","id":1,"method":"rooch_sendRawTransaction","params":["0x` +
		strings.Repeat("ab", payloadBytes) + `"]}`

	small, err := NewProxy(node.URL, dispatcher, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(small, body).Code)

	large, err := NewProxy(node.URL, dispatcher, nil, WithMaxPayloadBytes(payloadBytes))
	require.NoError(t, err)
	resp := decode(t, post(large, body))
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `"0xfeed"`, string(resp.Result))
	assert.EqualValues(t, 1, node.sends.Load())
}
