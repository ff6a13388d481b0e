package attempt

import (
	"time"

	"github.com/pavelanni/ieltsprep/internal/model"
)

// Merge reconciles stored answers with an incoming batch, last write wins per
// question id. Incoming entries without a question id are dropped. The result
// holds one record per distinct question id: existing ids keep their position
// and new ids follow in incoming order.
func Merge(existing []model.AnswerRecord, incoming []model.AnswerInput, now time.Time) []model.AnswerRecord {
	out := make([]model.AnswerRecord, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))
	for _, r := range existing {
		if i, ok := index[r.QuestionID]; ok {
			out[i] = r
			continue
		}
		index[r.QuestionID] = len(out)
		out = append(out, r)
	}
	for _, in := range incoming {
		if in.QuestionID == "" {
			continue
		}
		rec := model.AnswerRecord{QuestionID: in.QuestionID, Answer: in.Answer, UpdatedAt: now}
		if i, ok := index[in.QuestionID]; ok {
			out[i] = rec
			continue
		}
		index[in.QuestionID] = len(out)
		out = append(out, rec)
	}
	return out
}
