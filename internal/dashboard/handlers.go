package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/approval"
	"github.com/tkingovr/roochguard/internal/policy"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("writing response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.auditStore.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseQueryFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.auditStore.Query(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to query audit log")
		return
	}
	if records == nil {
		records = []*api.AuditRecord{}
	}

	s.writeJSON(w, http.StatusOK, records)
}

const defaultAuditLimit = 100

func parseQueryFilter(q url.Values) (api.QueryFilter, error) {
	f := api.QueryFilter{
		Method:  q.Get("method"),
		Verdict: api.Verdict(q.Get("verdict")),
		Outcome: api.Outcome(q.Get("outcome")),
		Limit:   defaultAuditLimit,
	}
	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = t
		}
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, fmt.Errorf("invalid %s %q", name, v)
			}
			*dst = n
		}
	}
	return f, nil
}

func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	if s.approvalQ == nil {
		s.writeJSON(w, http.StatusOK, []approval.Request{})
		return
	}
	switch r.URL.Query().Get("status") {
	case "", "pending":
		s.writeJSON(w, http.StatusOK, s.approvalQ.Pending())
	case "all":
		s.writeJSON(w, http.StatusOK, s.approvalQ.All())
	default:
		s.writeError(w, http.StatusBadRequest, "status must be pending or all")
	}
}

func (s *Server) handleApprovalAction(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.approvalQ == nil {
			s.writeError(w, http.StatusNotFound, "approvals are disabled")
			return
		}
		id := r.PathValue("id")
		req, ok := s.approvalQ.Get(id)
		if !ok {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("approval request %q not found", id))
			return
		}
		if req.Status != approval.StatusPending {
			s.writeError(w, http.StatusConflict, fmt.Sprintf("approval request %q already resolved: %s", id, req.Status))
			return
		}

		var err error
		if approve {
			err = s.approvalQ.Approve(id)
		} else {
			err = s.approvalQ.Deny(id)
		}
		if err != nil {
			// Resolved between Get and the decision.
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}

		req, _ = s.approvalQ.Get(id)
		s.logger.Info("approval decided", zap.String("id", id), zap.String("status", string(req.Status)))
		s.writeJSON(w, http.StatusOK, req)
	}
}

func (s *Server) handlePolicy(w http.ResponseWriter, _ *http.Request) {
	switch e := s.engine.(type) {
	case policy.RuleViewer:
		data, err := yaml.Marshal(e.Policy())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to encode policy")
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(data)
	case policy.SourceViewer:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(e.Source()))
	default:
		s.writeError(w, http.StatusNotFound, "policy is not viewable")
	}
}

func (s *Server) handlePolicyReload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reload(r.Context()); err != nil {
		s.logger.Warn("policy reload failed", zap.Error(err))
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Info("policy reloaded")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req api.CheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := policy.Check(r.Context(), s.engine, req)
	if err != nil {
		var invalid *policy.InvalidCheckError
		if errors.As(err, &invalid) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
