// Package quiz creates quiz generation jobs, runs them and serves their state.
package quiz

import (
	"bytes"
	"context"
	"fmt"

	"docquizai/internal/logger"
	"docquizai/internal/models"
	"docquizai/internal/storage"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown quizzes.
var ErrNotFound = models.ErrNotFound

// Store is the relational store behind quizzes.
type Store interface {
	CreateQuiz(ctx context.Context, q *models.Quiz) error
	GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	ListQuizzesByUser(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error)
	ListPendingQuizIDs(ctx context.Context) ([]uuid.UUID, error)
	ListQuestions(ctx context.Context, quizID uuid.UUID) ([]models.Question, error)
	CreateDocument(ctx context.Context, doc *models.Document) error
	FailQuiz(ctx context.Context, quizID uuid.UUID, reason string, report *models.JobReport) error
}

// Scheduler runs a quiz pipeline in the background.
type Scheduler interface {
	Schedule(ctx context.Context, quizID uuid.UUID) error
}

type Service struct {
	store        Store
	files        storage.Store
	scheduler    Scheduler
	maxQuestions int
	log          *logger.Logger
}

func NewService(store Store, files storage.Store, scheduler Scheduler, maxQuestions int, log *logger.Logger) *Service {
	return &Service{
		store:        store,
		files:        files,
		scheduler:    scheduler,
		maxQuestions: maxQuestions,
		log:          log.With("component", "quiz"),
	}
}

// CreateQuizJob validates the request, creates the quiz in STARTING state, stores the
// original documents and schedules generation. It returns without waiting for the pipeline.
func (s *Service) CreateQuizJob(ctx context.Context, ownerID uuid.UUID, docs []models.Document, cfg models.QuizConfig) (*models.Quiz, error) {
	if err := Validate(ownerID, docs, cfg, s.maxQuestions); err != nil {
		return nil, err
	}

	q := &models.Quiz{
		UserID: ownerID,
		MaxNos: cfg.TotalQuestions,
		Config: cfg,
	}
	if err := s.store.CreateQuiz(ctx, q); err != nil {
		return nil, err
	}
	log := s.log.With("quiz_id", q.ID)

	for i, doc := range docs {
		doc.QuizID = q.ID
		doc.Position = i
		doc.Kind = models.KindOriginal
		doc.Size = int64(len(doc.Content))
		doc.StorageKey = storage.OriginalKey(q.ID, i, doc.Filename)

		if _, err := s.files.Put(ctx, doc.StorageKey, bytes.NewReader(doc.Content)); err != nil {
			return nil, s.abort(ctx, q.ID, fmt.Errorf("failed to store %s: %w", doc.Filename, err))
		}
		if err := s.store.CreateDocument(ctx, &doc); err != nil {
			return nil, s.abort(ctx, q.ID, err)
		}
	}

	if err := s.scheduler.Schedule(ctx, q.ID); err != nil {
		return nil, s.abort(ctx, q.ID, fmt.Errorf("failed to schedule generation: %w", err))
	}
	log.Info("quiz job created", "user_id", ownerID, "documents", len(docs),
		"total_questions", cfg.TotalQuestions, "mcq", cfg.Types.MCQ, "true_false", cfg.Types.TrueFalse)
	return q, nil
}

// abort marks a quiz that could not be set up as failed and returns err.
func (s *Service) abort(ctx context.Context, quizID uuid.UUID, err error) error {
	s.log.Error("quiz job setup failed", "quiz_id", quizID, "error", err)
	if ferr := s.store.FailQuiz(context.WithoutCancel(ctx), quizID, err.Error(), nil); ferr != nil {
		s.log.Error("failed to mark quiz failed", "quiz_id", quizID, "error", ferr)
	}
	return err
}

// GetQuiz returns the current state of a quiz with the questions generated so far.
func (s *Service) GetQuiz(ctx context.Context, quizID uuid.UUID) (*models.QuizDetail, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return &models.QuizDetail{Quiz: *q, Questions: questions}, nil
}

func (s *Service) ListQuizzes(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error) {
	return s.store.ListQuizzesByUser(ctx, userID)
}

// RecoverPending schedules every quiz left in a non-terminal status, typically by a
// process that stopped mid-run. It returns how many were scheduled.
func (s *Service) RecoverPending(ctx context.Context) (int, error) {
	ids, err := s.store.ListPendingQuizIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending quizzes: %w", err)
	}
	scheduled := 0
	for _, id := range ids {
		if err := s.scheduler.Schedule(ctx, id); err != nil {
			s.log.Error("failed to reschedule quiz", "quiz_id", id, "error", err)
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		s.log.Info("rescheduled pending quizzes", "count", scheduled)
	}
	return scheduled, nil
}
