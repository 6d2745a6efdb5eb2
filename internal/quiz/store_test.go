package quiz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"docquizai/internal/models"
	"docquizai/internal/storage"

	"github.com/google/uuid"
)

// memStore is an in-memory Store and RunnerStore.
type memStore struct {
	mu        sync.Mutex
	quizzes   map[uuid.UUID]*models.Quiz
	questions map[uuid.UUID][]models.Question
	documents map[uuid.UUID][]models.Document
	calls     int
	saveErr   error
}

func newMemStore() *memStore {
	return &memStore{
		quizzes:   map[uuid.UUID]*models.Quiz{},
		questions: map[uuid.UUID][]models.Question{},
		documents: map[uuid.UUID][]models.Document{},
	}
}

func (s *memStore) touch() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *memStore) CreateQuiz(ctx context.Context, q *models.Quiz) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.Status = models.StatusStarting
	cp := *q
	s.quizzes[q.ID] = &cp
	return nil
}

func (s *memStore) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("quiz: %w", models.ErrNotFound)
	}
	cp := *q
	return &cp, nil
}

func (s *memStore) ListQuizzesByUser(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Quiz
	for _, q := range s.quizzes {
		if q.UserID == userID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (s *memStore) ListPendingQuizIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, q := range s.quizzes {
		if !q.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (s *memStore) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]models.Question, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Question{}, s.questions[quizID]...), nil
}

func (s *memStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	cp := *doc
	cp.Content = nil
	s.documents[doc.QuizID] = append(s.documents[doc.QuizID], cp)
	return nil
}

func (s *memStore) ListDocuments(ctx context.Context, quizID uuid.UUID, kind models.DocumentKind) ([]models.Document, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Document
	for _, d := range s.documents[quizID] {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) StartQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	s.touch()
	s.mu.Lock()
	q, ok := s.quizzes[id]
	if ok && !q.Status.Terminal() {
		q.Status = models.StatusGenerating
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("quiz: %w", models.ErrNotFound)
	}
	return s.GetQuiz(ctx, id)
}

func (s *memStore) FailQuiz(ctx context.Context, quizID uuid.UUID, reason string, report *models.JobReport) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[quizID]
	if !ok || q.Status == models.StatusCompleted {
		return nil
	}
	q.Status = models.StatusFailed
	q.FailureReason = reason
	if report != nil {
		q.Report = report
	}
	return nil
}

func (s *memStore) SaveBatch(ctx context.Context, quizID uuid.UUID, questions []models.Question, progress models.Progress) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.questions[quizID] = append(s.questions[quizID], questions...)
	q := s.quizzes[quizID]
	q.Progress = progress
	q.CurrentNos = progress.Total()
	return nil
}

func (s *memStore) CompleteQuiz(ctx context.Context, quizID uuid.UUID, progress models.Progress, report models.JobReport) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.quizzes[quizID]
	q.Status = models.StatusCompleted
	q.Progress = progress
	q.CurrentNos = progress.Total()
	q.Report = &report
	return nil
}

// memFiles is an in-memory storage.Store.
type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	putErr  error
}

func newMemFiles() *memFiles { return &memFiles{objects: map[string][]byte{}} }

func (f *memFiles) Put(ctx context.Context, key string, content io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return "", f.putErr
	}
	b, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	f.objects[key] = b
	return "mem://" + key, nil
}

func (f *memFiles) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// recordingScheduler remembers scheduled ids and optionally runs them inline.
type recordingScheduler struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
	run func(ctx context.Context, id uuid.UUID) error
}

func (s *recordingScheduler) Schedule(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return s.err
	}
	s.ids = append(s.ids, id)
	run := s.run
	s.mu.Unlock()
	if run != nil {
		return run(ctx, id)
	}
	return nil
}
