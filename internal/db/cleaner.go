package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartScanLogCleaner deletes scan logs older than retention and expired
// token revocations every interval until ctx is cancelled.
func StartScanLogCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				res, err := db.ExecContext(ctx, `
                    DELETE FROM scan_logs
                     WHERE created_at < $1
                `, now.Add(-retention))
				if err != nil {
					log.Error("failed to clean scan logs", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned scan logs", zap.Int64("removed", rows))
				}

				res, err = db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE revoked_until < $1`, now)
				if err != nil {
					log.Error("failed to clean revoked tokens", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned revoked tokens", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
