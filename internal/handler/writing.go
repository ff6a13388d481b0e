package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	appI18n "github.com/pavelanni/ieltsprep/internal/i18n"
	"github.com/pavelanni/ieltsprep/internal/llm"
)

type assessResponse struct {
	*llm.BandResult
	Warning string `json:"warning,omitempty"`
}

func (h *Handler) handleAssessWriting(w http.ResponseWriter, r *http.Request) {
	if h.assessor == nil {
		writeError(w, r, http.StatusServiceUnavailable, "assessor_disabled", "ErrAssessorDisabled")
		return
	}
	var task llm.WritingTask
	if !decodeJSON(w, r, &task, false) {
		return
	}
	if llm.MinWords(task.TaskType) == 0 || strings.TrimSpace(task.Essay) == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "ErrBadRequest")
		return
	}

	res, err := h.assessor.Assess(r.Context(), task)
	if err != nil {
		var invalid *llm.ErrInvalidResponse
		if errors.As(err, &invalid) {
			slog.Warn("LLM returned an unusable assessment", "error", err)
		} else {
			slog.Error("writing assessment failed", "error", err)
		}
		writeError(w, r, http.StatusBadGateway, "assessment_failed", "ErrAssessmentFailed")
		return
	}

	out := assessResponse{BandResult: res}
	if res.UnderLength {
		out.Warning = appI18n.Tp(r.Context(), "UnderLengthWarning", res.WordCount,
			map[string]any{"Min": llm.MinWords(task.TaskType)})
	}
	writeJSON(w, http.StatusOK, out)
}
