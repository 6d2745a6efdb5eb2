package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"docquizai/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const quizColumns = `id, user_id, max_nos, current_nos, status, config, fulfilled_mcq, fulfilled_tf,
	batches_done, report, COALESCE(failure_reason, ''), created_at, updated_at`

func scanQuiz(row pgx.Row) (*models.Quiz, error) {
	var (
		q          models.Quiz
		configJSON []byte
		reportJSON []byte
	)
	err := row.Scan(
		&q.ID, &q.UserID, &q.MaxNos, &q.CurrentNos, &q.Status, &configJSON,
		&q.Progress.FulfilledMCQ, &q.Progress.FulfilledTF, &q.Progress.BatchesDone,
		&reportJSON, &q.FailureReason, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(configJSON, &q.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config of quiz %s: %w", q.ID, err)
	}
	if len(reportJSON) > 0 {
		q.Report = &models.JobReport{}
		if err := json.Unmarshal(reportJSON, q.Report); err != nil {
			return nil, fmt.Errorf("failed to decode report of quiz %s: %w", q.ID, err)
		}
	}
	return &q, nil
}

// CreateQuiz inserts q in STARTING state. q.ID and the timestamps are filled in.
func (db *DB) CreateQuiz(ctx context.Context, q *models.Quiz) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.Status = models.StatusStarting
	configBytes, err := json.Marshal(q.Config)
	if err != nil {
		return fmt.Errorf("failed to encode quiz config: %w", err)
	}

	query := `INSERT INTO quizzes (id, user_id, max_nos, status, config)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`
	err = db.Pool.QueryRow(ctx, query, q.ID, q.UserID, q.MaxNos, q.Status, configBytes).
		Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}
	return nil
}

func (db *DB) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q, err := scanQuiz(db.Pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "quiz")
	}
	return q, nil
}

// ListQuizzesByUser returns the user's quizzes, newest first.
func (db *DB) ListQuizzesByUser(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := []models.Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, rows.Err()
}

// ListPendingQuizIDs returns the quizzes that have not reached a terminal status, oldest first.
func (db *DB) ListPendingQuizIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id FROM quizzes WHERE status IN ($1, $2) ORDER BY created_at`,
		models.StatusStarting, models.StatusGenerating)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// StartQuiz moves a non-terminal quiz to GENERATING and returns it. A terminal quiz is
// returned unchanged.
func (db *DB) StartQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	query := `UPDATE quizzes SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING ` + quizColumns
	q, err := scanQuiz(db.Pool.QueryRow(ctx, query, id, models.StatusGenerating, models.StatusStarting, models.StatusGenerating))
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to start quiz %s: %w", id, err)
	}
	return db.GetQuiz(ctx, id)
}

// SaveBatch stores one batch of questions and the checkpoint reached with it in a single
// transaction. Questions already stored at the same position are left as they are.
func (db *DB) SaveBatch(ctx context.Context, quizID uuid.UUID, questions []models.Question, progress models.Progress) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if len(questions) > 0 {
		batch := &pgx.Batch{}
		for _, q := range questions {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("failed to encode options: %w", err)
			}
			batch.Queue(`INSERT INTO questions (id, quiz_id, position, question, options, correct_option, question_type)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (quiz_id, position) DO NOTHING`,
				q.ID, quizID, q.Position, q.Text, options, q.CorrectOption, q.Type)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert questions: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE quizzes SET current_nos = $2, fulfilled_mcq = $3, fulfilled_tf = $4,
		batches_done = $5, updated_at = NOW() WHERE id = $1`,
		quizID, progress.Total(), progress.FulfilledMCQ, progress.FulfilledTF, progress.BatchesDone)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	return tx.Commit(ctx)
}

// CompleteQuiz writes the terminal COMPLETED status with the final counts and report.
func (db *DB) CompleteQuiz(ctx context.Context, quizID uuid.UUID, progress models.Progress, report models.JobReport) error {
	reportBytes, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `UPDATE quizzes SET status = $2, current_nos = $3, fulfilled_mcq = $4,
		fulfilled_tf = $5, batches_done = $6, report = $7, updated_at = NOW() WHERE id = $1`,
		quizID, models.StatusCompleted, progress.Total(), progress.FulfilledMCQ, progress.FulfilledTF,
		progress.BatchesDone, reportBytes)
	if err != nil {
		return fmt.Errorf("failed to complete quiz %s: %w", quizID, err)
	}
	return nil
}

// FailQuiz writes the terminal FAILED status. A quiz that already completed is left alone.
func (db *DB) FailQuiz(ctx context.Context, quizID uuid.UUID, reason string, report *models.JobReport) error {
	var reportBytes []byte
	if report != nil {
		b, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		reportBytes = b
	}
	_, err := db.Pool.Exec(ctx, `UPDATE quizzes SET status = $2, failure_reason = $3,
		report = COALESCE($4, report), updated_at = NOW()
		WHERE id = $1 AND status <> $5`,
		quizID, models.StatusFailed, reason, reportBytes, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark quiz %s failed: %w", quizID, err)
	}
	return nil
}
