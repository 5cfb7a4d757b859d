// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/visa-track-backend/internal/domain"
)

// ApplicationsStats returns the number of applications matching f and the
// greatest UpdatedAt among them (nil when there are none).
//
// Lookups bump access counters and therefore UpdatedAt is not touched by
// them; only admin writes move the returned timestamp.
func ApplicationsStats(ctx context.Context, db *gorm.DB, f ApplicationFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	q := applyFilter(db.WithContext(ctx).Model(&domain.Application{}), f)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
