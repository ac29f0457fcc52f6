package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Preferences is the key-value preference store for one visitor.
type Preferences struct {
	db        *DB
	visitorID uuid.UUID
}

func (db *DB) Preferences(visitorID uuid.UUID) *Preferences {
	return &Preferences{db: db, visitorID: visitorID}
}

func (p *Preferences) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.Pool.QueryRow(ctx, `
		SELECT value FROM visitor_preferences
		WHERE visitor_id = $1 AND key = $2
	`, p.visitorID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (p *Preferences) Set(ctx context.Context, key, value string) error {
	_, err := p.db.Pool.Exec(ctx, `
		INSERT INTO visitor_preferences (visitor_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (visitor_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, p.visitorID, key, value)
	return err
}
