package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/ieltsprep/internal/model"
)

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams(r.Context(), true)
	if err != nil {
		writeInternal(w, r, "failed to list exams", err)
		return
	}
	if exams == nil {
		exams = []model.ExamSummary{}
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	exam, err := h.store.FindExamByID(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeInternal(w, r, "failed to load exam", err)
		return
	}
	if exam == nil || !exam.Published {
		writeError(w, r, http.StatusNotFound, "not_found", "ErrExamNotFound")
		return
	}
	writeJSON(w, http.StatusOK, exam.StudentView())
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if u := model.UserFromContext(r.Context()); u != nil {
		id := u.ID
		userID = &id
	}

	res, err := h.attempts.Start(r.Context(), chi.URLParam(r, "examID"), userID)
	if err != nil {
		writeServiceError(w, r, err, "ErrExamNotFound")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// authorizeAttempt loads the attempt and checks the caller may act on it.
// Attempts owned by a user are visible only to that user and to staff.
func (h *Handler) authorizeAttempt(w http.ResponseWriter, r *http.Request) (*model.Attempt, bool) {
	a, err := h.attempts.Get(r.Context(), chi.URLParam(r, "examID"), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeServiceError(w, r, err, "ErrAttemptNotFound")
		return nil, false
	}
	if a.UserID != nil {
		u := model.UserFromContext(r.Context())
		if !isStaff(u) && (u == nil || u.ID != *a.UserID) {
			writeError(w, r, http.StatusNotFound, "not_found", "ErrAttemptNotFound")
			return nil, false
		}
	}
	return a, true
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	a, ok := h.authorizeAttempt(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type answersRequest struct {
	Answers []model.AnswerInput `json:"answers"`
}

func (h *Handler) handleSaveAttempt(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorizeAttempt(w, r); !ok {
		return
	}
	var req answersRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	res, err := h.attempts.Save(r.Context(), chi.URLParam(r, "examID"), chi.URLParam(r, "attemptID"), req.Answers)
	if err != nil {
		writeServiceError(w, r, err, "ErrAttemptNotFound")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorizeAttempt(w, r); !ok {
		return
	}
	var req answersRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	res, err := h.attempts.Submit(r.Context(), chi.URLParam(r, "examID"), chi.URLParam(r, "attemptID"), req.Answers)
	if err != nil {
		writeServiceError(w, r, err, "ErrAttemptNotFound")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
