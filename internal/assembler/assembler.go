// Package assembler turns the uploaded documents of a quiz into one plain-text context.
package assembler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"docquizai/internal/logger"
	"docquizai/internal/markdown"
	"docquizai/internal/models"
	"docquizai/internal/storage"

	"github.com/google/uuid"
)

// Resolver replaces media references inside Markdown.
type Resolver interface {
	Resolve(ctx context.Context, md string) (string, []models.MediaOutcome)
}

// DocumentRecorder records where a document was stored.
type DocumentRecorder interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
}

type Assembler struct {
	resolver Resolver
	store    storage.Store
	recorder DocumentRecorder
	log      *logger.Logger
}

func New(resolver Resolver, store storage.Store, recorder DocumentRecorder, log *logger.Logger) *Assembler {
	return &Assembler{
		resolver: resolver,
		store:    store,
		recorder: recorder,
		log:      log.With("component", "assembler"),
	}
}

// Result is the assembled context and what happened to each document.
type Result struct {
	Context   string
	Documents []models.DocumentOutcome
}

// Assemble processes docs in the given order. A document that fails contributes nothing
// to the context; it never fails the whole call.
func (a *Assembler) Assemble(ctx context.Context, quizID uuid.UUID, docs []models.Document) Result {
	var (
		b        strings.Builder
		outcomes = make([]models.DocumentOutcome, 0, len(docs))
	)
	for _, doc := range docs {
		start := time.Now()
		text, outcome := a.processDocument(ctx, quizID, doc)
		if outcome.Status == models.OutcomeSuccess {
			b.WriteString(text)
			b.WriteString("\n")
		}
		a.log.Info("document processed", "quiz_id", quizID, "filename", doc.Filename,
			"status", outcome.Status, "reason", outcome.Reason, "elapsed", time.Since(start))
		outcomes = append(outcomes, outcome)
	}
	return Result{Context: b.String(), Documents: outcomes}
}

func (a *Assembler) processDocument(ctx context.Context, quizID uuid.UUID, doc models.Document) (text string, outcome models.DocumentOutcome) {
	outcome = models.DocumentOutcome{Position: doc.Position, Filename: doc.Filename}
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("document processing panicked", "quiz_id", quizID, "filename", doc.Filename, "panic", r)
			text = ""
			outcome.Status = models.OutcomeFailed
			outcome.Reason = fmt.Sprintf("panic: %v", r)
		}
	}()

	content, err := a.content(ctx, quizID, doc)
	if err != nil {
		outcome.Status = models.OutcomeFailed
		outcome.Reason = err.Error()
		return "", outcome
	}
	if !utf8.Valid(content) {
		outcome.Status = models.OutcomeFailed
		outcome.Reason = "content is not valid UTF-8"
		return "", outcome
	}

	text = string(content)
	if doc.IsMarkdown() {
		resolved, media := a.resolver.Resolve(ctx, text)
		outcome.Media = media
		text = markdown.Normalize(resolved)
		a.saveDerived(ctx, quizID, doc, text)
	}

	if strings.TrimSpace(text) == "" {
		outcome.Status = models.OutcomeSkipped
		outcome.Reason = "no text content"
		return "", outcome
	}
	outcome.Status = models.OutcomeSuccess
	return text, outcome
}

// content returns the document bytes. Documents not yet in durable storage are written
// there first; documents already stored are read back when their bytes are not in memory.
func (a *Assembler) content(ctx context.Context, quizID uuid.UUID, doc models.Document) ([]byte, error) {
	if doc.StorageKey == "" {
		key := storage.OriginalKey(quizID, doc.Position, doc.Filename)
		if _, err := a.store.Put(ctx, key, bytes.NewReader(doc.Content)); err != nil {
			// The content is in memory, so the document still contributes.
			a.log.Error("failed to store original document", "quiz_id", quizID, "key", key, "error", err)
		} else {
			doc.Kind = models.KindOriginal
			doc.QuizID = quizID
			doc.StorageKey = key
			doc.Size = int64(len(doc.Content))
			if err := a.recorder.CreateDocument(ctx, &doc); err != nil {
				a.log.Error("failed to record original document", "quiz_id", quizID, "key", key, "error", err)
			}
		}
		return doc.Content, nil
	}
	if doc.Content != nil {
		return doc.Content, nil
	}

	rc, err := a.store.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", doc.StorageKey, err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", doc.StorageKey, err)
	}
	return content, nil
}

func (a *Assembler) saveDerived(ctx context.Context, quizID uuid.UUID, doc models.Document, text string) {
	key := storage.DerivedKey(quizID, doc.Position, doc.Filename)
	if _, err := a.store.Put(ctx, key, strings.NewReader(text)); err != nil {
		a.log.Error("failed to store derived text", "quiz_id", quizID, "key", key, "error", err)
		return
	}
	derived := models.Document{
		QuizID:     quizID,
		Position:   doc.Position,
		Filename:   doc.Filename,
		Size:       int64(len(text)),
		Kind:       models.KindDerived,
		StorageKey: key,
	}
	if err := a.recorder.CreateDocument(ctx, &derived); err != nil {
		a.log.Error("failed to record derived text", "quiz_id", quizID, "key", key, "error", err)
	}
}
