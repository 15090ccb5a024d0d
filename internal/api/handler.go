// Package api provides the HTTP front end for the tutor.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abhisek/dentai/internal/agent"
	"github.com/abhisek/dentai/internal/scenario"
)

// maxTurnBody bounds a turn request body.
const maxTurnBody = 64 << 10

// Handler serves turns and read-only views over learner state and the
// case catalog.
type Handler struct {
	agent   *agent.Agent
	store   *scenario.Store
	metrics http.Handler
	logger  *zap.Logger
}

// NewHandler creates a Handler. metrics may be nil, in which case
// /metrics is not mounted.
func NewHandler(a *agent.Agent, metrics http.Handler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{agent: a, store: a.Store(), metrics: metrics, logger: logger}
}

// Router builds the chi router with middleware and all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", h.handleTurn)
		r.Get("/learners/{learnerID}/state", h.handleGetState)
		r.Delete("/learners/{learnerID}/state", h.handleResetState)
		r.Get("/cases", h.handleListCases)
		r.Get("/cases/{caseID}/persona", h.handlePersona)
	})
	return r
}

// TurnRequest is the body of POST /v1/turns.
type TurnRequest struct {
	LearnerID string `json:"learner_id"`
	Text      string `json:"text"`
	CaseID    string `json:"case_id,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody))
	if err := dec.Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LearnerID == "" {
		Error(w, http.StatusBadRequest, "learner_id is required")
		return
	}
	mode, err := agent.ParseMode(req.Mode)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.agent.ProcessTurn(r.Context(), agent.TurnRequest{
		LearnerID: req.LearnerID,
		Text:      req.Text,
		CaseID:    req.CaseID,
		Mode:      mode,
	})
	if err != nil {
		if errors.Is(err, agent.ErrNoLearner) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("turn failed", zap.String("learner_id", req.LearnerID), zap.Error(err))
		Error(w, http.StatusInternalServerError, "turn failed")
		return
	}
	JSON(w, http.StatusOK, res)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	learnerID := chi.URLParam(r, "learnerID")
	st, err := h.store.State(r.Context(), learnerID)
	if err != nil {
		h.logger.Error("load state failed", zap.String("learner_id", learnerID), zap.Error(err))
		Error(w, http.StatusInternalServerError, "failed to load state")
		return
	}
	JSON(w, http.StatusOK, st)
}

func (h *Handler) handleResetState(w http.ResponseWriter, r *http.Request) {
	learnerID := chi.URLParam(r, "learnerID")
	if err := h.store.Reset(r.Context(), learnerID); err != nil {
		h.logger.Error("reset state failed", zap.String("learner_id", learnerID), zap.Error(err))
		Error(w, http.StatusInternalServerError, "failed to reset state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CaseSummary is one entry of GET /v1/cases.
type CaseSummary struct {
	CaseID   string `json:"case_id"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
}

func (h *Handler) handleListCases(w http.ResponseWriter, _ *http.Request) {
	cases := h.store.Catalog().Cases()
	out := make([]CaseSummary, 0, len(cases))
	for _, c := range cases {
		out = append(out, CaseSummary{CaseID: c.ID(), Name: c.Name(), Category: c.Category()})
	}
	JSON(w, http.StatusOK, map[string]any{"cases": out})
}

func (h *Handler) handlePersona(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	if _, ok := h.store.Catalog().Lookup(caseID); !ok {
		Error(w, http.StatusNotFound, "case not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"case_id": caseID,
		"persona": h.store.Persona(caseID),
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// requestLogger logs one line per request. Bodies are never logged.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
		})
	}
}
