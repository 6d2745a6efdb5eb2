package quiz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docquizai/internal/logger"
	"docquizai/internal/models"

	"github.com/google/uuid"
)

func doc(name, content string) models.Document {
	return models.Document{Filename: name, Content: []byte(content)}
}

func cfg(mcq, tf int) models.QuizConfig {
	return models.QuizConfig{TotalQuestions: mcq + tf, Types: models.TypeAllocation{MCQ: mcq, TrueFalse: tf}}
}

func TestCreateQuizJob_RejectsBeforeTouchingAnything(t *testing.T) {
	owner := uuid.New()
	big := strings.Repeat("x", MaxTotalBytes/2+1)

	tests := []struct {
		name  string
		owner uuid.UUID
		docs  []models.Document
		cfg   models.QuizConfig
	}{
		{"too many files", owner, []models.Document{doc("1.md", "a"), doc("2.md", "a"), doc("3.md", "a"), doc("4.md", "a"), doc("5.md", "a"), doc("6.md", "a")}, cfg(5, 0)},
		{"too large", owner, []models.Document{doc("a.txt", big), doc("b.txt", big)}, cfg(5, 0)},
		{"no files", owner, nil, cfg(5, 0)},
		{"wrong extension", owner, []models.Document{doc("a.pdf", "x")}, cfg(5, 0)},
		{"empty file", owner, []models.Document{doc("a.md", "")}, cfg(5, 0)},
		{"no owner", uuid.Nil, []models.Document{doc("a.md", "x")}, cfg(5, 0)},
		{"types do not add up", owner, []models.Document{doc("a.md", "x")}, models.QuizConfig{TotalQuestions: 10, Types: models.TypeAllocation{MCQ: 3, TrueFalse: 3}}},
		{"zero questions", owner, []models.Document{doc("a.md", "x")}, cfg(0, 0)},
		{"too many questions", owner, []models.Document{doc("a.md", "x")}, cfg(101, 0)},
		{"negative type", owner, []models.Document{doc("a.md", "x")}, models.QuizConfig{TotalQuestions: 2, Types: models.TypeAllocation{MCQ: 3, TrueFalse: -1}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			files := newMemFiles()
			sched := &recordingScheduler{}
			svc := NewService(store, files, sched, 100, logger.Nop())

			_, err := svc.CreateQuizJob(context.Background(), tc.owner, tc.docs, tc.cfg)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected a validation error, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field == "" {
				t.Fatalf("expected a *ValidationError with a field, got %#v", err)
			}
			if store.calls != 0 || files.puts != 0 || len(sched.ids) != 0 {
				t.Fatalf("rejected request reached the backends: store=%d files=%d scheduled=%d", store.calls, files.puts, len(sched.ids))
			}
		})
	}
}

func TestCreateQuizJob_AcceptsUppercaseExtensionsAtTheLimit(t *testing.T) {
	svc := NewService(newMemStore(), newMemFiles(), &recordingScheduler{}, 100, logger.Nop())
	docs := []models.Document{doc("A.MD", strings.Repeat("x", MaxTotalBytes-1)), doc("b.Txt", "y")}
	if _, err := svc.CreateQuizJob(context.Background(), uuid.New(), docs, cfg(1, 1)); err != nil {
		t.Fatalf("CreateQuizJob: %v", err)
	}
}

func TestCreateQuizJob_CreatesAndSchedules(t *testing.T) {
	store := newMemStore()
	files := newMemFiles()
	sched := &recordingScheduler{}
	svc := NewService(store, files, sched, 100, logger.Nop())
	owner := uuid.New()

	q, err := svc.CreateQuizJob(context.Background(), owner, []models.Document{doc("a.md", "# A"), doc("b.txt", "B")}, cfg(7, 3))
	if err != nil {
		t.Fatalf("CreateQuizJob: %v", err)
	}

	stored := store.quizzes[q.ID]
	if stored.Status != models.StatusStarting || stored.MaxNos != 10 || stored.UserID != owner {
		t.Fatalf("unexpected quiz %+v", stored)
	}
	if stored.Config.Types.MCQ != 7 || stored.Config.Types.TrueFalse != 3 {
		t.Fatalf("config not recorded: %+v", stored.Config)
	}
	if len(sched.ids) != 1 || sched.ids[0] != q.ID {
		t.Fatalf("scheduled %v, want [%s]", sched.ids, q.ID)
	}

	docs := store.documents[q.ID]
	if len(docs) != 2 || docs[0].Position != 0 || docs[1].Position != 1 || docs[1].Kind != models.KindOriginal {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if string(files.objects[docs[0].StorageKey]) != "# A" {
		t.Fatalf("original not stored under %s", docs[0].StorageKey)
	}
}

func TestCreateQuizJob_StorageFailureFailsQuiz(t *testing.T) {
	store := newMemStore()
	files := newMemFiles()
	files.putErr = errors.New("disk full")
	sched := &recordingScheduler{}
	svc := NewService(store, files, sched, 100, logger.Nop())

	if _, err := svc.CreateQuizJob(context.Background(), uuid.New(), []models.Document{doc("a.md", "x")}, cfg(1, 0)); err == nil {
		t.Fatal("expected an error")
	}
	if len(sched.ids) != 0 {
		t.Fatal("quiz scheduled despite storage failure")
	}
	for _, q := range store.quizzes {
		if q.Status != models.StatusFailed {
			t.Fatalf("quiz left in %s", q.Status)
		}
	}
}

func TestGetQuiz(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, newMemFiles(), &recordingScheduler{}, 100, logger.Nop())

	if _, err := svc.GetQuiz(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	q, err := svc.CreateQuizJob(context.Background(), uuid.New(), []models.Document{doc("a.md", "x")}, cfg(1, 0))
	if err != nil {
		t.Fatalf("CreateQuizJob: %v", err)
	}
	detail, err := svc.GetQuiz(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if detail.Quiz.ID != q.ID || detail.Quiz.Status != models.StatusStarting || len(detail.Questions) != 0 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestRecoverPending(t *testing.T) {
	store := newMemStore()
	sched := &recordingScheduler{}
	svc := NewService(store, newMemFiles(), sched, 100, logger.Nop())

	pending := &models.Quiz{UserID: uuid.New(), MaxNos: 5}
	done := &models.Quiz{UserID: uuid.New(), MaxNos: 5}
	store.CreateQuiz(context.Background(), pending)
	store.CreateQuiz(context.Background(), done)
	store.quizzes[done.ID].Status = models.StatusCompleted

	n, err := svc.RecoverPending(context.Background())
	if err != nil {
		t.Fatalf("RecoverPending: %v", err)
	}
	if n != 1 || len(sched.ids) != 1 || sched.ids[0] != pending.ID {
		t.Fatalf("rescheduled %v, want only %s", sched.ids, pending.ID)
	}
}
