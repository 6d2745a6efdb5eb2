package db

import (
	"context"
	"fmt"

	"docquizai/internal/models"

	"github.com/google/uuid"
)

// CreateDocument records a stored document. Recording the same quiz, position and kind again
// replaces the earlier entry.
func (db *DB) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	query := `INSERT INTO quiz_documents (id, quiz_id, position, filename, size_bytes, kind, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (quiz_id, position, kind) DO UPDATE SET
			filename = EXCLUDED.filename,
			size_bytes = EXCLUDED.size_bytes,
			storage_key = EXCLUDED.storage_key
		RETURNING id, created_at`
	err := db.Pool.QueryRow(ctx, query,
		doc.ID, doc.QuizID, doc.Position, doc.Filename, doc.Size, doc.Kind, doc.StorageKey,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record document %s: %w", doc.Filename, err)
	}
	return nil
}

// ListDocuments returns the quiz's documents of one kind in upload order.
func (db *DB) ListDocuments(ctx context.Context, quizID uuid.UUID, kind models.DocumentKind) ([]models.Document, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, quiz_id, position, filename, size_bytes, kind, storage_key, created_at
		FROM quiz_documents WHERE quiz_id = $1 AND kind = $2 ORDER BY position`, quizID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.QuizID, &d.Position, &d.Filename, &d.Size, &d.Kind, &d.StorageKey, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
