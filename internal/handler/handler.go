// Package handler exposes the exam, attempt and writing-assessment JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/ieltsprep/internal/attempt"
	appI18n "github.com/pavelanni/ieltsprep/internal/i18n"
	"github.com/pavelanni/ieltsprep/internal/llm"
	"github.com/pavelanni/ieltsprep/internal/model"
	"github.com/pavelanni/ieltsprep/internal/store"
)

// maxBodyBytes caps request bodies; essays and exam uploads fit comfortably.
const maxBodyBytes = 2 << 20

// Config holds HTTP-level settings.
type Config struct {
	SecureCookies bool
	SessionTTL    time.Duration
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	attempts *attempt.Service
	assessor llm.Assessor
	config   Config
}

// New creates a new Handler. assessor may be nil, which disables writing assessment.
func New(s *store.Store, svc *attempt.Service, assessor llm.Assessor, cfg Config) *Handler {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = store.DefaultAuthSessionTTL
	}
	return &Handler{store: s, attempts: svc, assessor: assessor, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(h.loadUser)

		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)

		r.Get("/exams", h.handleListExams)
		r.Get("/exams/{examID}", h.handleGetExam)
		r.Post("/exams/{examID}/attempts", h.handleStartAttempt)
		r.Get("/exams/{examID}/attempts/{attemptID}", h.handleGetAttempt)
		r.Put("/exams/{examID}/attempts/{attemptID}", h.handleSaveAttempt)
		r.Post("/exams/{examID}/attempts/{attemptID}/submit", h.handleSubmitAttempt)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/writing/assess", h.handleAssessWriting)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, requireRole(model.UserRoleAdmin, model.UserRoleTeacher))
			r.Get("/exams", h.handleAdminListExams)
			r.Put("/exams", h.handlePutExam)
			r.Get("/exams/{examID}", h.handleAdminGetExam)
			r.Get("/exams/{examID}/attempts", h.handleListAttempts)
			r.Get("/exams/{examID}/export", h.handleExportResults)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/users", h.handleListUsers)
				r.Post("/users", h.handleCreateUser)
				r.Put("/users/{userID}/active", h.handleSetUserActive)
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes a JSON error with a machine-readable code and a localized message.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msgID string) {
	writeJSON(w, status, errorBody{Error: code, Message: appI18n.T(r.Context(), msgID)})
}

// decodeJSON reads a JSON request body into v. An empty body leaves v untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		slog.Debug("bad request body", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusBadRequest, "bad_request", "ErrBadRequest")
		return false
	}
	return true
}

// writeServiceError maps attempt service errors to HTTP responses.
// notFoundMsg localizes ErrNotFound for the resource the route addresses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, attempt.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", notFoundMsg)
	case errors.Is(err, attempt.ErrMismatch):
		writeError(w, r, http.StatusBadRequest, "exam_mismatch", "ErrAttemptMismatch")
	case errors.Is(err, attempt.ErrInvalidState):
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_state", "ErrAttemptNotInProgress")
	case errors.Is(err, attempt.ErrAlreadySubmitted):
		writeError(w, r, http.StatusConflict, "already_submitted", "ErrAlreadySubmitted")
	case errors.Is(err, attempt.ErrConflict):
		writeError(w, r, http.StatusConflict, "version_conflict", "ErrVersionConflict")
	case errors.Is(err, attempt.ErrExpired):
		writeError(w, r, http.StatusGone, "expired", "ErrAttemptExpired")
	case errors.Is(err, attempt.ErrAttemptLimitExceeded):
		writeError(w, r, http.StatusForbidden, "attempt_limit_exceeded", "ErrAttemptLimitExceeded")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "ErrInternal")
	}
}

func writeInternal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "path", r.URL.Path, "error", err)
	writeError(w, r, http.StatusInternalServerError, "internal", "ErrInternal")
}
