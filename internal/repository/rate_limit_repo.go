package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RateLimitRepository persists fixed-window request counters.
type RateLimitRepository interface {
	// IncrementAndGet atomically increments the counter for the given window
	// (inserting it with count 1 when absent) and returns the resulting count.
	// Insert and increment happen in one server-side statement so concurrent
	// requests from the same user cannot observe a stale count.
	IncrementAndGet(ctx context.Context, userID uuid.UUID, endpoint, windowKey string) (int, error)
	// PurgeBefore removes counter rows older than the cutoff.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type rateLimitRepository struct {
	db *gorm.DB
}

// NewRateLimitRepository instantiates the repository.
func NewRateLimitRepository(db *gorm.DB) RateLimitRepository {
	return &rateLimitRepository{db: db}
}

func (r *rateLimitRepository) IncrementAndGet(ctx context.Context, userID uuid.UUID, endpoint, windowKey string) (int, error) {
	now := time.Now().UTC()

	var count int
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO rate_limit_windows (user_id, endpoint, window_key, request_count, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id, endpoint, window_key)
		DO UPDATE SET request_count = rate_limit_windows.request_count + 1, updated_at = ?
		RETURNING request_count`,
		userID, endpoint, windowKey, now, now, now,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *rateLimitRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM rate_limit_windows WHERE created_at < ?`, cutoff)
	if res.Error != nil {
		return 0, res.Error
	}

	return res.RowsAffected, nil
}
