package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joescharf/reviewdesk/internal/app"
	"github.com/joescharf/reviewdesk/internal/models"
)

// Records looks up and edits persisted reviews by id.
type Records interface {
	Get(ctx context.Context, id string) *models.ReviewRecord
	Update(ctx context.Context, id, reply string) bool
}

// Server provides the REST API handlers.
type Server struct {
	ctrl    *app.Controller
	records Records
	logger  *slog.Logger
}

// NewServer creates a new API server.
func NewServer(ctrl *app.Controller, records Records, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ctrl: ctrl, records: records, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/analyze", s.analyze)

	mux.HandleFunc("GET /api/v1/state", s.getState)
	mux.HandleFunc("PUT /api/v1/state/reply", s.updateStateReply)
	mux.HandleFunc("POST /api/v1/state/clear", s.clearState)
	mux.HandleFunc("GET /api/v1/state/export", s.exportState)

	mux.HandleFunc("GET /api/v1/reviews", s.listReviews)
	mux.HandleFunc("GET /api/v1/reviews/{id}", s.getReview)
	mux.HandleFunc("POST /api/v1/reviews/{id}/load", s.loadReview)
	mux.HandleFunc("PUT /api/v1/reviews/{id}/reply", s.updateReviewReply)
	mux.HandleFunc("DELETE /api/v1/reviews/{id}", s.deleteReview)

	mux.HandleFunc("GET /api/v1/tones", s.listTones)

	return corsMiddleware(s.logRequests(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("api request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Analysis ---

type analyzeRequest struct {
	ReviewText string `json:"review_text"`
	Tone       string `json:"tone"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	// A client hanging up must not turn the saved record into a
	// network-error placeholder.
	state, err := s.ctrl.Analyze(context.WithoutCancel(r.Context()), req.ReviewText, req.Tone)
	if err != nil {
		if errors.Is(err, app.ErrEmptyReview) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// --- Current state ---

type replyRequest struct {
	Reply string `json:"reply"`
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) updateStateReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if s.ctrl.Snapshot().Result == nil {
		writeError(w, http.StatusConflict, "no analysis is displayed")
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.UpdateReply(req.Reply))
}

func (s *Server) clearState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Clear())
}

func (s *Server) exportState(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ctrl.Export()
	if err != nil {
		if errors.Is(err, app.ErrNothingToExport) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc.Content))
}

// --- History ---

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Refresh(r.Context()).History)
}

// lookup writes a 404 and returns nil when id is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *models.ReviewRecord {
	id := strings.TrimSpace(r.PathValue("id"))
	rec := s.records.Get(r.Context(), id)
	if rec == nil {
		writeError(w, http.StatusNotFound, "review not found: "+id)
	}
	return rec
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	if rec := s.lookup(w, r); rec != nil {
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) loadReview(w http.ResponseWriter, r *http.Request) {
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.LoadFromHistory(*rec))
}

func (s *Server) updateReviewReply(w http.ResponseWriter, r *http.Request) {
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// The displayed record goes through the controller so its editable
	// reply stays in step with the store.
	if s.ctrl.Snapshot().CurrentID == rec.ID {
		s.ctrl.UpdateReply(req.Reply)
		s.ctrl.Wait()
		if s.ctrl.Snapshot().Unsaved {
			writeError(w, http.StatusInternalServerError, "failed to save reply")
			return
		}
	} else if !s.records.Update(r.Context(), rec.ID, req.Reply) {
		writeError(w, http.StatusInternalServerError, "failed to save reply")
		return
	}

	s.ctrl.Refresh(r.Context())
	rec.Reply = req.Reply
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if !s.ctrl.DeleteFromHistory(r.Context(), rec.ID) {
		writeError(w, http.StatusInternalServerError, "failed to delete review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": models.DefaultTone,
		"tones":   models.Tones(),
	})
}
