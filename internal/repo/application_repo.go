// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Application model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition.
//
// Error semantics:
//   - When an application is not found, functions return ErrNotFound.
//   - A tracking ID collision on insert returns ErrDuplicate.
//   - Other DB errors are propagated unchanged.
//
// Functions:
//
//   - CreateApplication(ctx, db, app) -> error
//     Inserts a row, assigning a UUID primary key when missing.
//
//   - GetApplicationByTrackingID(ctx, db, trackingID) -> *domain.Application, error
//     Exact match on the public tracking ID.
//
//   - TouchApplication(ctx, db, id, now) -> error
//     Increments access_count and stamps last_accessed.
//
//   - CountApplications / ListApplicationsPage(ctx, db, filter, ...)
//     Newest-first admin listing with free-text search over name, passport
//     and tracking ID, optionally restricted to one creation year.
//
//   - ListAllApplications(ctx, db) -> []domain.Application, error
//     Every row, newest first (used to rebuild the local store mirror).
//
//   - ApplicationStatusRows(ctx, db, year) -> []StatusRow, error
//     Creation time and status per row, the input to monthly reporting.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/visa-track-backend/internal/domain"
)

// ApplicationFilter narrows admin listings. Zero values mean "no filter".
type ApplicationFilter struct {
	Query string // case-insensitive substring of name, passport or tracking ID
	Year  int    // creation year
}

// StatusRow is the projection used by reporting.
type StatusRow struct {
	CreatedAt time.Time
	Status    string
}

// CreateApplication inserts app. ID is generated when empty; timestamps are
// filled by GORM when zero.
func CreateApplication(ctx context.Context, db *gorm.DB, app *domain.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if err := db.WithContext(ctx).Create(app).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetApplicationByTrackingID fetches a single application by tracking ID.
func GetApplicationByTrackingID(ctx context.Context, db *gorm.DB, trackingID string) (*domain.Application, error) {
	var a domain.Application
	err := db.WithContext(ctx).
		Where("tracking_id = ?", trackingID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TouchApplication records a successful lookup of the application with the
// given primary key. Returns ErrNotFound when no row matched.
func TouchApplication(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"access_count":  gorm.Expr("access_count + ?", 1),
			"last_accessed": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountApplications returns the number of rows matching f.
func CountApplications(ctx context.Context, db *gorm.DB, f ApplicationFilter) (int64, error) {
	var total int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.Application{}), f).
		Count(&total).Error
	return total, err
}

// ListApplicationsPage returns a page of applications matching f, newest
// first. The caller computes offset and limit.
func ListApplicationsPage(ctx context.Context, db *gorm.DB, f ApplicationFilter, offset, limit int) ([]domain.Application, error) {
	var out []domain.Application
	err := applyFilter(db.WithContext(ctx), f).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListAllApplications returns every application, newest first.
func ListAllApplications(ctx context.Context, db *gorm.DB) ([]domain.Application, error) {
	var out []domain.Application
	err := db.WithContext(ctx).Order("created_at desc").Find(&out).Error
	return out, err
}

// ApplicationStatusRows returns creation time and status for every row, or
// only rows of the given year when year > 0.
func ApplicationStatusRows(ctx context.Context, db *gorm.DB, year int) ([]StatusRow, error) {
	q := db.WithContext(ctx).Model(&domain.Application{}).Select("created_at", "status")
	if year > 0 {
		q = q.Where("year = ?", year)
	}
	var out []StatusRow
	err := q.Order("created_at desc").Scan(&out).Error
	return out, err
}

func applyFilter(q *gorm.DB, f ApplicationFilter) *gorm.DB {
	if s := strings.ToLower(strings.TrimSpace(f.Query)); s != "" {
		like := "%" + escapeLike(s) + "%"
		q = q.Where(
			"LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(passport) LIKE ? ESCAPE '\\' OR LOWER(tracking_id) LIKE ? ESCAPE '\\'",
			like, like, like,
		)
	}
	if f.Year > 0 {
		q = q.Where("year = ?", f.Year)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
