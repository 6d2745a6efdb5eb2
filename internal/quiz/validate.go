package quiz

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"docquizai/internal/models"

	"github.com/google/uuid"
)

const (
	MaxDocuments  = 5
	MaxTotalBytes = 500 * 1024
)

// ErrValidation matches every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError is a rejected quiz request. Nothing has been created when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a quiz request against the acceptance rules.
func Validate(ownerID uuid.UUID, docs []models.Document, cfg models.QuizConfig, maxQuestions int) error {
	if ownerID == uuid.Nil {
		return invalid("owner", "missing user")
	}

	if len(docs) == 0 {
		return invalid("files", "at least one file is required")
	}
	if len(docs) > MaxDocuments {
		return invalid("files", "at most %d files are allowed, got %d", MaxDocuments, len(docs))
	}
	var total int64
	for _, doc := range docs {
		switch strings.ToLower(filepath.Ext(doc.Filename)) {
		case ".md", ".txt":
		default:
			return invalid("files", "%q is not a .md or .txt file", doc.Filename)
		}
		size := int64(len(doc.Content))
		if size == 0 {
			return invalid("files", "%q is empty", doc.Filename)
		}
		total += size
	}
	if total > MaxTotalBytes {
		return invalid("files", "total size %d bytes exceeds %d bytes", total, MaxTotalBytes)
	}

	if cfg.TotalQuestions < 1 || cfg.TotalQuestions > maxQuestions {
		return invalid("totalQuestions", "must be between 1 and %d", maxQuestions)
	}
	if cfg.Types.MCQ < 0 || cfg.Types.TrueFalse < 0 {
		return invalid("types", "question counts cannot be negative")
	}
	if cfg.Types.Total() != cfg.TotalQuestions {
		return invalid("types", "mcq (%d) + trueFalse (%d) must equal totalQuestions (%d)",
			cfg.Types.MCQ, cfg.Types.TrueFalse, cfg.TotalQuestions)
	}
	return nil
}
