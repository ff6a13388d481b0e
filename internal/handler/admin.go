package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/ieltsprep/internal/examfile"
	appI18n "github.com/pavelanni/ieltsprep/internal/i18n"
	"github.com/pavelanni/ieltsprep/internal/model"
)

func (h *Handler) handleAdminListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams(r.Context(), false)
	if err != nil {
		writeInternal(w, r, "failed to list exams", err)
		return
	}
	if exams == nil {
		exams = []model.ExamSummary{}
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleAdminGetExam(w http.ResponseWriter, r *http.Request) {
	exam, err := h.store.FindExamByID(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeInternal(w, r, "failed to load exam", err)
		return
	}
	if exam == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "ErrExamNotFound")
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

// handlePutExam accepts an exam definition as JSON, or YAML when the
// Content-Type says so, and stores it after validation.
func (h *Handler) handlePutExam(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "ErrBadRequest")
		return
	}

	format := examfile.FormatJSON
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = examfile.FormatYAML
	}

	exam, err := examfile.Parse(data, format)
	if err != nil {
		slog.Warn("rejected exam upload", "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "invalid_exam",
			Message: appI18n.Td(r.Context(), "ErrInvalidExam", map[string]any{"Reason": err.Error()}),
		})
		return
	}

	if err := h.store.PutExam(r.Context(), *exam); err != nil {
		writeInternal(w, r, "failed to store exam", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": exam.ID, "version": exam.Version})
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.store.ListAttempts(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeInternal(w, r, "failed to list attempts", err)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) handleExportResults(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportResults(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeInternal(w, r, "failed to export results", err)
		return
	}
	if export == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "ErrExamNotFound")
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		writeInternal(w, r, "failed to list users", err)
		return
	}
	out := make([]userView, 0, len(users))
	for i := range users {
		out = append(out, viewOf(&users[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type createUserRequest struct {
	Username    string         `json:"username"`
	DisplayName string         `json:"displayName"`
	Password    string         `json:"password"`
	Role        model.UserRole `json:"role"`
}

var validRoles = map[model.UserRole]bool{
	model.UserRoleStudent: true,
	model.UserRoleTeacher: true,
	model.UserRoleAdmin:   true,
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Role == "" {
		req.Role = model.UserRoleStudent
	}
	if req.Username == "" || req.Password == "" || !validRoles[req.Role] {
		writeError(w, r, http.StatusBadRequest, "bad_request", "ErrBadRequest")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	existing, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		writeInternal(w, r, "failed to look up user", err)
		return
	}
	if existing != nil {
		writeError(w, r, http.StatusConflict, "user_exists", "ErrUserExists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeInternal(w, r, "failed to hash password", err)
		return
	}

	u := model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	}
	if u.ID, err = h.store.CreateUser(u); err != nil {
		writeInternal(w, r, "failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(&u))
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) handleSetUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "ErrBadRequest")
		return
	}
	var req setActiveRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Active == nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "ErrBadRequest")
		return
	}

	u, err := h.store.GetUserByID(id)
	if err != nil {
		writeInternal(w, r, "failed to load user", err)
		return
	}
	if u == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "ErrUserNotFound")
		return
	}
	if err := h.store.SetUserActive(id, *req.Active); err != nil {
		writeInternal(w, r, "failed to update user", err)
		return
	}
	u.Active = *req.Active
	writeJSON(w, http.StatusOK, viewOf(u))
}
