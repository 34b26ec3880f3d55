// Package repository provides PostgreSQL persistence for scan logs and
// signed token revocations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/PomeloX/internal/ids"
	"github.com/atinyakov/PomeloX/internal/models"
)

// ErrDuplicate is returned when a record with the same ID already exists.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

// PostgresScanLogRepository stores scan logs in the scan_logs table.
type PostgresScanLogRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresScanLogRepository creates a repository on db.
func NewPostgresScanLogRepository(db *sql.DB) *PostgresScanLogRepository {
	return &PostgresScanLogRepository{DB: db}
}

// Insert stores log. Empty ID and zero CreatedAt are filled in and written
// back to log.
func (r *PostgresScanLogRepository) Insert(ctx context.Context, log *models.ScanLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.ID == "" {
		log.ID = ids.New(log.CreatedAt)
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO scan_logs (id, scanner_id, target_id, kind, verified, access_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, log.ID, log.ScannerID, log.TargetID, log.Kind, log.Verified, log.AccessLevel, log.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert scan log %s: %w", log.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert scan log: %w", err)
	}
	return nil
}

// ListByScanner returns the latest scans made by scannerID, newest first.
func (r *PostgresScanLogRepository) ListByScanner(ctx context.Context, scannerID string, limit int) ([]models.ScanLog, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, scanner_id, target_id, kind, verified, access_level, created_at
		  FROM scan_logs
		 WHERE scanner_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2
	`, scannerID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByScanner: %w", err)
	}
	defer rows.Close()

	var logs []models.ScanLog
	for rows.Next() {
		var l models.ScanLog
		if err := rows.Scan(&l.ID, &l.ScannerID, &l.TargetID, &l.Kind, &l.Verified, &l.AccessLevel, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return logs, nil
}
