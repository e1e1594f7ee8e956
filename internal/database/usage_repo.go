package database

import (
	"context"
	"fmt"
	"time"
)

// UsageRepository backs the usage-limit collaborator with per-period
// counters. Checks and increments are separate calls: an allow decision is
// best-effort, not a reservation.
type UsageRepository struct {
	db *DB
}

func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// periodStart truncates to the first day of the current billing month.
func periodStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// GetCount returns how many times the action ran in the current period.
func (r *UsageRepository) GetCount(ctx context.Context, ownerID, action string) (int, error) {
	query := `
		SELECT COALESCE(SUM(count), 0)
		FROM usage_counters
		WHERE owner_id = $1 AND action = $2 AND period_start = $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ownerID, action, periodStart(time.Now())).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}
	return count, nil
}

// Increment adds to the current period's counter.
func (r *UsageRepository) Increment(ctx context.Context, ownerID, action string, amount int) error {
	query := `
		INSERT INTO usage_counters (owner_id, action, period_start, count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, action, period_start)
		DO UPDATE SET count = usage_counters.count + EXCLUDED.count
	`

	_, err := r.db.Pool.Exec(ctx, query, ownerID, action, periodStart(time.Now()), amount)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}
