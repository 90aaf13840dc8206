package dashboard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/internal/approval"
	"github.com/tkingovr/roochguard/internal/audit"
	"github.com/tkingovr/roochguard/internal/policy"
)

// Server is the dashboard JSON API server.
type Server struct {
	mux        *http.ServeMux
	logger     *zap.Logger
	auditStore audit.Reader
	approvalQ  *approval.Queue
	engine     policy.Engine
	addr       string
	upgrader   websocket.Upgrader

	// done is closed on shutdown so streaming handlers return; hijacked
	// websocket connections are not closed by http.Server.Shutdown.
	done     chan struct{}
	doneOnce sync.Once
}

// NewServer creates a new dashboard server. aq may be nil when approvals
// are disabled.
func NewServer(addr string, store audit.Reader, aq *approval.Queue, engine policy.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger.Named("dashboard"),
		auditStore: store,
		approvalQ:  aq,
		engine:     engine,
		addr:       addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		done: make(chan struct{}),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/v1/audit", s.handleAudit)
	s.mux.HandleFunc("GET /api/v1/audit/stream", s.handleAuditStream)
	s.mux.HandleFunc("GET /api/v1/audit/ws", s.handleAuditWebSocket)
	s.mux.HandleFunc("GET /api/v1/approvals", s.handleApprovals)
	s.mux.HandleFunc("POST /api/v1/approvals/{id}/approve", s.handleApprovalAction(true))
	s.mux.HandleFunc("POST /api/v1/approvals/{id}/deny", s.handleApprovalAction(false))
	s.mux.HandleFunc("GET /api/v1/policy", s.handlePolicy)
	s.mux.HandleFunc("POST /api/v1/policy/reload", s.handlePolicyReload)
	s.mux.HandleFunc("POST /api/v1/check", s.handleCheck)
}

// ListenAndServe starts the dashboard HTTP server and shuts it down when
// ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting dashboard", zap.String("addr", s.addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close ends all open streams.
func (s *Server) Close() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Handler returns the HTTP handler for embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}
