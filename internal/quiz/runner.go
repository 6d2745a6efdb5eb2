package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docquizai/internal/assembler"
	"docquizai/internal/generator"
	"docquizai/internal/logger"
	"docquizai/internal/models"

	"github.com/google/uuid"
)

// RunnerStore is what the pipeline reads and writes while a quiz is generated.
type RunnerStore interface {
	generator.Store
	GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	StartQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	ListDocuments(ctx context.Context, quizID uuid.UUID, kind models.DocumentKind) ([]models.Document, error)
	FailQuiz(ctx context.Context, quizID uuid.UUID, reason string, report *models.JobReport) error
}

type Assembler interface {
	Assemble(ctx context.Context, quizID uuid.UUID, docs []models.Document) assembler.Result
}

type Generator interface {
	Generate(ctx context.Context, job generator.Job) (models.JobReport, error)
}

// Notifier is told when a quiz reaches a terminal status.
type Notifier interface {
	QuizFinished(q models.Quiz)
}

// Runner executes the pipeline for one quiz: assemble the context, then generate questions.
type Runner struct {
	store     RunnerStore
	assembler Assembler
	generator Generator
	notifier  Notifier
	log       *logger.Logger
}

// NewRunner builds a runner. notifier may be nil.
func NewRunner(store RunnerStore, asm Assembler, gen Generator, notifier Notifier, log *logger.Logger) *Runner {
	return &Runner{
		store:     store,
		assembler: asm,
		generator: gen,
		notifier:  notifier,
		log:       log.With("component", "runner"),
	}
}

// Run generates the quiz from its stored documents, resuming from the last checkpoint.
// Running a quiz that already reached a terminal status does nothing. A cancelled ctx
// leaves the quiz resumable; any other unrecoverable error marks it FAILED.
func (r *Runner) Run(ctx context.Context, quizID uuid.UUID) (err error) {
	log := r.log.With("quiz_id", quizID)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			log.Error("quiz pipeline panicked", "panic", p)
			err = fmt.Errorf("quiz pipeline panicked: %v", p)
			r.fail(ctx, quizID, "internal error", nil)
		}
	}()

	q, err := r.store.StartQuiz(ctx, quizID)
	if err != nil {
		return fmt.Errorf("failed to start quiz %s: %w", quizID, err)
	}
	if q.Status.Terminal() {
		log.Info("quiz already finished, nothing to do", "status", q.Status)
		return nil
	}
	log.Info("quiz generation started", "batches_done", q.Progress.BatchesDone, "fulfilled", q.Progress.Total())

	docs, err := r.store.ListDocuments(ctx, quizID, models.KindOriginal)
	if err != nil {
		r.fail(ctx, quizID, "failed to load documents", nil)
		return fmt.Errorf("failed to load documents: %w", err)
	}
	if len(docs) == 0 {
		r.fail(ctx, quizID, "quiz has no documents", nil)
		return nil
	}

	assembled := r.assembler.Assemble(ctx, quizID, docs)
	report := models.JobReport{Documents: assembled.Documents}
	if q.Report != nil {
		report.Batches = q.Report.Batches
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if strings.TrimSpace(assembled.Context) == "" {
		r.fail(ctx, quizID, "no usable content in the uploaded documents", &report)
		return nil
	}
	log.Info("context assembled", "chars", len(assembled.Context), "elapsed", time.Since(start))

	report, err = r.generator.Generate(ctx, generator.Job{
		QuizID:   quizID,
		Context:  assembled.Context,
		Types:    q.Config.Types,
		Progress: q.Progress,
		Report:   report,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Warn("quiz generation interrupted, will resume from checkpoint", "error", err)
			return err
		}
		r.fail(ctx, quizID, "failed to save generated questions", &report)
		return err
	}

	log.Info("quiz generation finished", "fulfilled_mcq", report.FulfilledMCQ, "fulfilled_tf", report.FulfilledTF,
		"elapsed", time.Since(start))
	r.notify(ctx, quizID)
	return nil
}

func (r *Runner) fail(ctx context.Context, quizID uuid.UUID, reason string, report *models.JobReport) {
	ctx = context.WithoutCancel(ctx)
	if err := r.store.FailQuiz(ctx, quizID, reason, report); err != nil {
		r.log.Error("failed to mark quiz failed", "quiz_id", quizID, "error", err)
		return
	}
	r.log.Warn("quiz failed", "quiz_id", quizID, "reason", reason)
	r.notify(ctx, quizID)
}

func (r *Runner) notify(ctx context.Context, quizID uuid.UUID) {
	if r.notifier == nil {
		return
	}
	q, err := r.store.GetQuiz(context.WithoutCancel(ctx), quizID)
	if err != nil {
		r.log.Warn("failed to load quiz for notification", "quiz_id", quizID, "error", err)
		return
	}
	r.notifier.QuizFinished(*q)
}
