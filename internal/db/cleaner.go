package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartExpiryCleaner deletes long-expired credentials with interval.
// Rows are kept for retention past their expiry so recently expired
// records stay inspectable.
func StartExpiryCleaner(
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
				cutoff := time.Now().Add(-retention)
				res, err := db.ExecContext(ctx, `
                    DELETE FROM credentials
                     WHERE expires_at IS NOT NULL
                       AND expires_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to clean expired credentials", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned expired credentials", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
