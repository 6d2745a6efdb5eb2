package generator

import (
	"strings"

	"docquizai/internal/models"

	"github.com/google/uuid"
)

// DefaultBatchSize is the number of questions requested per model call.
const DefaultBatchSize = 5

// batchPlan is what one model call is asked for.
type batchPlan struct {
	Total int
	MCQ   int
	TF    int
}

// BatchCount is the fixed number of batches for a request: ceil(total / size).
func BatchCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// planBatch sizes the next batch from the running tally. Multiple-choice questions are
// requested first, true/false fill the rest, and the two always add up to the batch total.
func planBatch(size int, target models.TypeAllocation, done models.Progress) batchPlan {
	n := min(size, target.Total()-done.Total())
	if n <= 0 {
		return batchPlan{}
	}
	remMCQ := max(target.MCQ-done.FulfilledMCQ, 0)
	remTF := max(target.TrueFalse-done.FulfilledTF, 0)

	mcq := min(n, remMCQ)
	tf := min(n-mcq, remTF)
	return batchPlan{Total: mcq + tf, MCQ: mcq, TF: tf}
}

// applyBatch accepts candidates in order and returns the questions to persist, how many were
// rejected and the advanced tally. A candidate is accepted when it is structurally valid, its
// type is still short of target and the batch has room left.
func applyBatch(quizID uuid.UUID, plan batchPlan, target models.TypeAllocation, done models.Progress, candidates []candidate) ([]models.Question, int, models.Progress) {
	var (
		accepted []models.Question
		rejected int
		tally    = done
	)
	for _, c := range candidates {
		q, ok := c.toQuestion()
		if !ok || len(accepted) >= plan.Total {
			rejected++
			continue
		}
		switch {
		case q.Type == models.MultipleChoice && tally.FulfilledMCQ < target.MCQ:
			tally.FulfilledMCQ++
		case q.Type == models.TrueFalse && tally.FulfilledTF < target.TrueFalse:
			tally.FulfilledTF++
		default:
			rejected++
			continue
		}
		q.ID = uuid.New()
		q.QuizID = quizID
		q.Position = done.Total() + len(accepted)
		accepted = append(accepted, q)
	}
	return accepted, rejected, tally
}

// toQuestion converts a decoded candidate into a question that satisfies Validate.
func (c candidate) toQuestion() (models.Question, bool) {
	typ, ok := models.ParseQuestionType(c.QuestionType)
	if !ok {
		return models.Question{}, false
	}
	options := make([]string, 0, len(c.Options))
	for _, opt := range c.Options {
		options = append(options, strings.TrimSpace(opt))
	}
	if typ == models.TrueFalse && len(options) == 0 {
		options = []string{"True", "False"}
	}
	q := models.Question{
		Text:          strings.TrimSpace(c.Question),
		Options:       options,
		CorrectOption: c.CorrectOption,
		Type:          typ,
	}
	if q.Validate() != nil {
		return models.Question{}, false
	}
	return q, true
}
