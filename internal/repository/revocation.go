package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRevocationRepository records revoked signed-token IDs.
type PostgresRevocationRepository struct {
	DB *sql.DB
}

// NewPostgresRevocationRepository creates a repository on db.
func NewPostgresRevocationRepository(db *sql.DB) *PostgresRevocationRepository {
	return &PostgresRevocationRepository{DB: db}
}

// Revoke marks jti as revoked until the given time. Revoking twice keeps
// the later time.
func (r *PostgresRevocationRepository) Revoke(ctx context.Context, jti string, until time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, revoked_until) VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET revoked_until = GREATEST(revoked_tokens.revoked_until, EXCLUDED.revoked_until)
	`, jti, until.UTC())
	if err != nil {
		return fmt.Errorf("revoke %s: %w", jti, err)
	}
	return nil
}

// IsRevoked reports whether jti is revoked at now.
func (r *PostgresRevocationRepository) IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	var revoked bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1 AND revoked_until >= $2)`,
		jti, now.UTC(),
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("IsRevoked: %w", err)
	}
	return revoked, nil
}
