package repository

import (
	"context"
	"fmt"
	"time"
)

// KeyUsage aggregates calls for one key on one day. The usage worker
// folds stream events into these before writing.
type KeyUsage struct {
	KeyID  string
	UserID string
	Day    time.Time
	Calls  int64
}

// UpsertUsageStats folds daily per-key call counts into api_usage_stats.
func (r *Repository) UpsertUsageStats(ctx context.Context, stats []KeyUsage) error {
	if len(stats) == 0 {
		return nil
	}

	query := `
		INSERT INTO api_usage_stats (key_id, user_id, day, calls)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_id, day)
		DO UPDATE SET calls = api_usage_stats.calls + EXCLUDED.calls
	`

	batch, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin usage stats batch: %w", err)
	}
	defer batch.Rollback(ctx)

	for _, s := range stats {
		if _, err := batch.Exec(ctx, query, s.KeyID, s.UserID, s.Day, s.Calls); err != nil {
			return fmt.Errorf("failed to upsert usage stats: %w", err)
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit usage stats: %w", err)
	}

	return nil
}
