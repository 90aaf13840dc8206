package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/jsonrpc"
	"github.com/tkingovr/roochguard/internal/proxy"
)

const (
	// defaultMaxBodyBytes bounds a request body when no payload limit is
	// configured.
	defaultMaxBodyBytes = 4 << 20
	// bodyOverhead is the room left for the JSON-RPC envelope and for the
	// other requests of a batch.
	bodyOverhead = 64 << 10
)

// Option configures a Proxy.
type Option func(*Proxy)

// WithMaxPayloadBytes sizes the request body limit for transactions of up
// to n bytes. Hex doubles the payload size on the wire.
func WithMaxPayloadBytes(n int) Option {
	return func(p *Proxy) {
		if n > 0 {
			p.maxBodyBytes = 2*int64(n) + bodyOverhead
		}
	}
}

// Proxy is an HTTP JSON-RPC reverse proxy in front of a Rooch node.
// rooch_sendRawTransaction requests are answered by the dispatcher, which
// routes them through the filter chain; everything else is forwarded to
// the node unchanged.
type Proxy struct {
	target       *url.URL
	reverseProxy *httputil.ReverseProxy
	dispatcher   *proxy.Dispatcher
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewProxy creates a new HTTP proxy targeting the given node URL.
func NewProxy(target string, dispatcher *proxy.Dispatcher, logger *zap.Logger, opts ...Option) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid target URL %q: scheme and host are required", target)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Proxy{
		target:       u,
		dispatcher:   dispatcher,
		logger:       logger.Named("http_proxy"),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(p)
	}

	rp := httputil.NewSingleHostReverseProxy(u)
	rp.Director = p.director
	rp.ErrorHandler = p.errorHandler
	p.reverseProxy = rp

	return p, nil
}

// ServeHTTP handles incoming HTTP requests.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only POST bodies can carry JSON-RPC requests
	if r.Method != http.MethodPost {
		p.reverseProxy.ServeHTTP(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, p.maxBodyBytes+1))
	r.Body.Close()
	if err != nil {
		p.logger.Error("reading request body", zap.Error(err))
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > p.maxBodyBytes {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if proxy.IsBatch(body) {
		p.serveBatch(r.Context(), w, body)
		return
	}

	msg, err := jsonrpc.Parse(body)
	if err != nil {
		p.writeJSON(w, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParse, err.Error()))
		return
	}

	if msg.Method != api.MethodSendRawTransaction {
		// Forward untouched
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		p.reverseProxy.ServeHTTP(w, r)
		return
	}

	resp := p.dispatcher.Handle(r.Context(), msg)
	if msg.IsNotification() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	p.writeJSON(w, resp)
}

// serveBatch answers a batch through the dispatcher. An all-notification
// batch gets 204.
func (p *Proxy) serveBatch(ctx context.Context, w http.ResponseWriter, body []byte) {
	responses, invalid := p.dispatcher.HandleBatch(ctx, body)
	if invalid != nil {
		p.writeJSON(w, invalid)
		return
	}
	if len(responses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	p.writeJSON(w, responses)
}

func (p *Proxy) director(req *http.Request) {
	req.URL.Scheme = p.target.Scheme
	req.URL.Host = p.target.Host
	req.URL.Path = p.target.Path
	req.Host = p.target.Host
}

func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Error("proxy error", zap.Error(err), zap.String("url", r.URL.String()))
	http.Error(w, "proxy error: "+err.Error(), http.StatusBadGateway)
}

// writeJSON writes v with status 200; JSON-RPC errors travel in the body.
func (p *Proxy) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("encoding response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		p.logger.Debug("writing response", zap.Error(err))
	}
}

// Handler returns an http.Handler for use with http.Server.
func (p *Proxy) Handler() http.Handler {
	return p
}

// ListenAndServe starts the HTTP proxy server and shuts it down when ctx
// is done.
func (p *Proxy) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	p.logger.Info("starting HTTP proxy",
		zap.String("listen", addr),
		zap.String("target", p.target.String()),
	)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
