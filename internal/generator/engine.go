// Package generator turns an assembled context into a type-balanced set of quiz questions,
// one batch per model call, checkpointing after every batch.
package generator

import (
	"context"
	"fmt"
	"time"

	"docquizai/internal/logger"
	"docquizai/internal/models"

	"github.com/google/uuid"
)

// Model returns a JSON answer to a prompt.
type Model interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Store persists engine progress. SaveBatch must write the questions and the checkpoint atomically.
type Store interface {
	SaveBatch(ctx context.Context, quizID uuid.UUID, questions []models.Question, progress models.Progress) error
	CompleteQuiz(ctx context.Context, quizID uuid.UUID, progress models.Progress, report models.JobReport) error
}

type Engine struct {
	model     Model
	store     Store
	batchSize int
	log       *logger.Logger
}

func New(model Model, store Store, batchSize int, log *logger.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		model:     model,
		store:     store,
		batchSize: batchSize,
		log:       log.With("component", "generator"),
	}
}

// Job is one generation run. Progress is the checkpoint to resume from and Report carries
// the outcomes recorded so far.
type Job struct {
	QuizID   uuid.UUID
	Context  string
	Types    models.TypeAllocation
	Progress models.Progress
	Report   models.JobReport
}

// Generate runs the remaining batches of job and marks the quiz completed. A model error or
// malformed response only costs its batch. An error is returned when progress cannot be
// persisted or ctx is done; the quiz then keeps its last checkpoint.
func (e *Engine) Generate(ctx context.Context, job Job) (models.JobReport, error) {
	log := e.log.With("quiz_id", job.QuizID)
	progress := job.Progress
	report := job.Report
	batches := BatchCount(job.Types.Total(), e.batchSize)

	for i := progress.BatchesDone; i < batches; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		plan := planBatch(e.batchSize, job.Types, progress)
		if plan.Total == 0 {
			break
		}

		questions, next, outcome, err := e.runBatch(ctx, job, i, plan, progress)
		if err != nil {
			return report, err
		}
		next.BatchesDone = i + 1

		if err := e.store.SaveBatch(ctx, job.QuizID, questions, next); err != nil {
			return report, fmt.Errorf("failed to persist batch %d: %w", i, err)
		}
		progress = next
		report.Batches = append(report.Batches, outcome)
		log.Info("batch finished", "batch", i, "status", outcome.Status, "accepted", outcome.Accepted,
			"rejected", outcome.Rejected, "fulfilled_mcq", progress.FulfilledMCQ, "fulfilled_tf", progress.FulfilledTF)
	}

	report.FulfilledMCQ = progress.FulfilledMCQ
	report.FulfilledTF = progress.FulfilledTF
	if err := e.store.CompleteQuiz(ctx, job.QuizID, progress, report); err != nil {
		return report, fmt.Errorf("failed to complete quiz: %w", err)
	}
	log.Info("quiz completed", "requested", job.Types.Total(), "fulfilled", progress.Total())
	return report, nil
}

// runBatch makes one model call and returns the accepted questions with the advanced tally.
// Only a cancelled context is returned as an error.
func (e *Engine) runBatch(ctx context.Context, job Job, index int, plan batchPlan, progress models.Progress) ([]models.Question, models.Progress, models.BatchOutcome, error) {
	outcome := models.BatchOutcome{
		Index:        index,
		Requested:    plan.Total,
		RequestedMCQ: plan.MCQ,
		RequestedTF:  plan.TF,
	}

	start := time.Now()
	raw, err := e.model.GenerateJSON(ctx, buildPrompt(job.Context, plan))
	if err != nil {
		if ctx.Err() != nil {
			return nil, progress, outcome, ctx.Err()
		}
		e.log.Warn("batch generation failed", "quiz_id", job.QuizID, "batch", index, "error", err, "elapsed", time.Since(start))
		outcome.Status = models.OutcomeFailed
		outcome.Reason = err.Error()
		return nil, progress, outcome, nil
	}
	e.log.Debug("batch generated", "quiz_id", job.QuizID, "batch", index, "elapsed", time.Since(start))

	candidates, err := parseBatch(raw)
	if err != nil {
		e.log.Warn("skipping malformed batch", "quiz_id", job.QuizID, "batch", index, "error", err)
		outcome.Status = models.OutcomeSkipped
		outcome.Reason = err.Error()
		return nil, progress, outcome, nil
	}

	questions, rejected, tally := applyBatch(job.QuizID, plan, job.Types, progress, candidates)
	outcome.Accepted = len(questions)
	outcome.Rejected = rejected
	if len(questions) == 0 {
		outcome.Status = models.OutcomeSkipped
		outcome.Reason = "no valid questions in response"
		if len(candidates) == 0 {
			outcome.Reason = "empty response"
		}
		return nil, progress, outcome, nil
	}
	outcome.Status = models.OutcomeSuccess
	return questions, tally, outcome, nil
}
