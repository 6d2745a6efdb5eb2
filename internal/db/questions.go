package db

import (
	"context"
	"encoding/json"
	"fmt"

	"docquizai/internal/models"

	"github.com/google/uuid"
)

// ListQuestions returns the quiz's questions in generation order.
func (db *DB) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]models.Question, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, quiz_id, position, question, options, correct_option, question_type, created_at
		FROM questions WHERE quiz_id = $1 ORDER BY position`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		var (
			q       models.Question
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Position, &q.Text, &options, &q.CorrectOption, &q.Type, &q.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
