package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StartSoftDeleteCleaner purges credentials that were soft-deleted longer
// than retention ago, checking every interval until ctx is done.
func StartSoftDeleteCleaner(
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
			case now := <-ticker.C:
				removed, err := PurgeDeletedCredentials(ctx, db, now.Add(-retention))
				if err != nil {
					log.Error("failed to clean soft-deleted credentials", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("cleaned soft-deleted credentials", zap.Int64("removed", removed))
				}
			}
		}
	}()
}

// PurgeDeletedCredentials removes credentials soft-deleted before cutoff
// and returns how many rows went away.
func PurgeDeletedCredentials(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM credentials WHERE deleted = true AND deleted_at < $1`,
		cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge credentials: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge credentials: %w", err)
	}
	return n, nil
}
