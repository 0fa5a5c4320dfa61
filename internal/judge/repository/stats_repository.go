package repository

import (
	"context"
	"time"

	"judgemicro/internal/common/cache"
	appErr "judgemicro/pkg/errors"
)

const statsKeyPrefix = "judge:stats:"

// statsTTL keeps daily counters around long enough to compare two days.
const statsTTL = 48 * time.Hour

// StatsRepository tracks daily per-status submission counters.
type StatsRepository struct {
	cache cache.Cache
}

// NewStatsRepository creates a new repository.
func NewStatsRepository(cacheClient cache.Cache) *StatsRepository {
	return &StatsRepository{cache: cacheClient}
}

// RecordOutcome bumps the daily counter for one verdict status.
func (r *StatsRepository) RecordOutcome(ctx context.Context, status string) error {
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if status == "" {
		return appErr.ValidationError("status", "required")
	}
	key := statsKeyPrefix + time.Now().UTC().Format("2006-01-02") + ":" + status
	count, err := r.cache.Incr(ctx, key)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "increment stats failed")
	}
	// First hit of the day creates the key, give it an expiry.
	if count == 1 {
		if err := r.cache.Expire(ctx, key, statsTTL); err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "expire stats key failed")
		}
	}
	return nil
}
