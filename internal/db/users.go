package db

import (
	"context"
	"fmt"

	"docquizai/internal/models"

	"github.com/google/uuid"
)

// UpsertUser creates the user on first login and refreshes the Google profile fields
// afterwards. Users are keyed by email. u.ID and the timestamps are filled in.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	query := `INSERT INTO users (id, email, name, google_id, picture)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			google_id = EXCLUDED.google_id,
			picture = EXCLUDED.picture,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := db.Pool.QueryRow(ctx, query, u.ID, u.Email, u.Name, u.GoogleID, u.Picture).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.Email, err)
	}
	return nil
}

func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	query := `SELECT id, email, name, google_id, picture, created_at, updated_at FROM users WHERE id = $1`
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.GoogleID, &u.Picture, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}
