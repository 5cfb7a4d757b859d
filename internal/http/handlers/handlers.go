package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/visa-track-backend/internal/captcha"
	"github.com/tbourn/visa-track-backend/internal/domain"
	"github.com/tbourn/visa-track-backend/internal/lookup"
	"github.com/tbourn/visa-track-backend/internal/services"
	"github.com/tbourn/visa-track-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// CaptchaService issues and re-issues challenges for the status form.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CaptchaService interface {
	// New creates and stores a fresh challenge.
	New(ctx context.Context) (*captcha.Challenge, error)
	// Get loads a challenge by ID.
	Get(ctx context.Context, id string) (*captcha.Challenge, error)
	// Refresh replaces the code and image while keeping the ID.
	Refresh(ctx context.Context, id string) (*captcha.Challenge, error)
}

// TrackService runs one submission of the status form.
type TrackService interface {
	Track(ctx context.Context, req services.TrackRequest) (lookup.Outcome, *captcha.Challenge, error)
}

// ApplicationService is the admin desk.
type ApplicationService interface {
	// Create files a new application and returns it with its tracking ID.
	Create(ctx context.Context, in services.CreateApplicationInput) (*domain.Application, error)
	// Get loads one application by tracking ID.
	Get(ctx context.Context, trackingID string) (*domain.Application, error)
	// ListPage returns a page of applications matching query and the total count.
	ListPage(ctx context.Context, query string, page, pageSize int) ([]domain.Application, int64, error)
	// MonthlyReport groups applications by creation month.
	MonthlyReport(ctx context.Context, year, month int) ([]services.MonthlyStats, error)
	// SyncLocal rewrites the local store from the document store.
	SyncLocal(ctx context.Context) (int, error)
}

//
// Handler wiring
//

// Handlers groups the public form endpoints and the admin desk endpoints.
type Handlers struct {
	captchaSvc CaptchaService
	trackSvc   TrackService
	appSvc     ApplicationService

	// IdempotencyTTL bounds how long an Idempotency-Key replays its result.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(captchaSvc CaptchaService, trackSvc TrackService, appSvc ApplicationService) *Handlers {
	return &Handlers{
		captchaSvc:     captchaSvc,
		trackSvc:       trackSvc,
		appSvc:         appSvc,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// appDB exposes the admin store for ETag and idempotency bookkeeping when the
// concrete service is in use. Stubs yield nil and skip both.
func (h *Handlers) appDB() *gorm.DB {
	if svc, ok := h.appSvc.(*services.ApplicationService); ok {
		return svc.DB
	}
	return nil
}

//
// Helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 10
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
