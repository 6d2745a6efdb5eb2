package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// QuizStatus is the lifecycle state of a quiz generation job.
type QuizStatus string

const (
	StatusStarting   QuizStatus = "STARTING"
	StatusGenerating QuizStatus = "GENERATING"
	StatusCompleted  QuizStatus = "COMPLETED"
	StatusFailed     QuizStatus = "FAILED"
)

// Terminal reports whether no further transition can happen.
func (s QuizStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	TrueFalse      QuestionType = "TRUE_FALSE"
)

// ParseQuestionType accepts the canonical tags plus the loose spellings models tend to emit.
func ParseQuestionType(s string) (QuestionType, bool) {
	switch strings.ToUpper(strings.NewReplacer("-", "_", " ", "_", "/", "_").Replace(strings.TrimSpace(s))) {
	case "MULTIPLE_CHOICE", "MCQ":
		return MultipleChoice, true
	case "TRUE_FALSE", "TRUEFALSE", "TF":
		return TrueFalse, true
	}
	return "", false
}

// TypeAllocation is the requested number of questions per type.
type TypeAllocation struct {
	MCQ       int `json:"mcq"`
	TrueFalse int `json:"trueFalse"`
}

func (a TypeAllocation) Total() int { return a.MCQ + a.TrueFalse }

// QuizConfig is the original request, stored verbatim on the quiz.
type QuizConfig struct {
	TotalQuestions int            `json:"totalQuestions"`
	Types          TypeAllocation `json:"types"`
}

// Progress is the engine checkpoint persisted after every batch.
type Progress struct {
	FulfilledMCQ int `json:"fulfilledMcq"`
	FulfilledTF  int `json:"fulfilledTrueFalse"`
	BatchesDone  int `json:"batchesDone"`
}

func (p Progress) Total() int { return p.FulfilledMCQ + p.FulfilledTF }

// Quiz identifies one generation job.
type Quiz struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	MaxNos        int        `json:"maxNos"`
	CurrentNos    int        `json:"currentNos"`
	Status        QuizStatus `json:"status"`
	Config        QuizConfig `json:"config"`
	Progress      Progress   `json:"progress"`
	Report        *JobReport `json:"report,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Question is a single quiz item. Questions are immutable once stored.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	QuizID        uuid.UUID    `json:"quizId"`
	Position      int          `json:"position"`
	Text          string       `json:"question"`
	Options       []string     `json:"options"`
	CorrectOption int          `json:"correctOption"`
	Type          QuestionType `json:"questionType"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Validate checks the structural invariants every stored question must hold.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) < 2 || len(q.Options) > 4 {
		return fmt.Errorf("question has %d options, want 2 to 4", len(q.Options))
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("option %d is empty", i)
		}
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return fmt.Errorf("correct option %d out of range for %d options", q.CorrectOption, len(q.Options))
	}
	switch q.Type {
	case MultipleChoice:
	case TrueFalse:
		if len(q.Options) != 2 {
			return fmt.Errorf("true/false question has %d options", len(q.Options))
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

type DocumentKind string

const (
	KindOriginal DocumentKind = "original"
	KindDerived  DocumentKind = "derived"
)

// Document is one uploaded file. StorageKey is empty until it has been written to durable storage.
type Document struct {
	ID         uuid.UUID    `json:"id"`
	QuizID     uuid.UUID    `json:"quizId"`
	Position   int          `json:"position"`
	Filename   string       `json:"filename"`
	Size       int64        `json:"size"`
	Kind       DocumentKind `json:"kind"`
	StorageKey string       `json:"storageKey,omitempty"`
	Content    []byte       `json:"-"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// IsMarkdown reports whether the document goes through media resolution and normalization.
func (d Document) IsMarkdown() bool {
	return strings.EqualFold(fileExt(d.Filename), ".md")
}

func fileExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// User is the owner of quizzes, created on first Google login.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	GoogleID  string    `json:"googleId"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// QuizDetail is the read projection returned by getQuiz.
type QuizDetail struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
