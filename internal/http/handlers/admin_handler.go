// Admin desk HTTP handlers.
//
// This file exposes the operator endpoints (all behind X-Admin-PIN):
//   - POST /admin/applications                 (create, Idempotency-Key aware)
//   - GET  /admin/applications                 (search + paginate, ETag support)
//   - GET  /admin/applications/{tracking_id}   (detail)
//   - GET  /admin/reports/monthly              (monthly counts)
//   - POST /admin/local-store/sync             (rebuild the local table)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous create with
// the same key succeeded, the handler returns the stored application and sets
// `Idempotency-Replayed: true` without filing a second record.
package handlers

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/visa-track-backend/internal/domain"
	"github.com/tbourn/visa-track-backend/internal/http/middleware"
	"github.com/tbourn/visa-track-backend/internal/repo"
	"github.com/tbourn/visa-track-backend/internal/services"
	"github.com/tbourn/visa-track-backend/internal/utils"
)

//
// DTOs
//

// CreateApplicationRequest is the JSON payload for filing an application.
type CreateApplicationRequest struct {
	Name     string `json:"name"     example:"Maria Papadopoulou"`
	Passport string `json:"passport" example:"AB1234567"`
	DOB      string `json:"dob"      example:"1990-05-17"`
	// ApplicationDate defaults to today when empty.
	ApplicationDate string `json:"application_date" example:"2025-03-02"`
	// Status defaults to "Under Process" when empty.
	Status string `json:"status" example:"Under Process"`
}

// ListApplicationsResponse wraps a page of applications and pagination
// information.
type ListApplicationsResponse struct {
	Applications []domain.Application `json:"applications"`
	Pagination   Pagination           `json:"pagination"`
}

// MonthlyReportResponse lists report rows newest month first.
type MonthlyReportResponse struct {
	Reports []services.MonthlyStats `json:"reports"`
}

// SyncResponse reports how many rows the local store now holds.
type SyncResponse struct {
	Rows int `json:"rows" example:"42"`
}

//
// Handlers
//

// CreateApplication godoc
// @ID          createApplication
// @Summary     File a new application
// @Description Validates the record, generates its tracking ID and stores it. Supports idempotency via the Idempotency-Key header.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminPIN
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateApplicationRequest  true  "Application"
//
// @Success     201  {object}  domain.Application
// @Header      201  {string}  Idempotency-Replayed  "true when the response is a replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or wrong admin PIN"
// @Failure     409  {object}  handlers.ErrorResponse  "Tracking ID collision"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/applications [post]
func (h *Handlers) CreateApplication(c *gin.Context) {
	ctx := c.Request.Context()
	db := h.appDB()
	scope := middleware.IdempotencyScope(c)

	// Idempotency (replay path).
	idemKey, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, scope, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err := h.appSvc.Get(ctx, rec.ResourceID); err == nil && prev != nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, prev)
				return
			}
		}
	}

	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	app, err := h.appSvc.Create(ctx, services.CreateApplicationInput{
		Name:            req.Name,
		Passport:        req.Passport,
		DOB:             req.DOB,
		ApplicationDate: req.ApplicationDate,
		Status:          req.Status,
	})
	if err != nil {
		var fe services.FieldErrors
		switch {
		case errors.As(err, &fe):
			failWith(c, http.StatusBadRequest, ErrorResponse{
				Code:    ErrCodeBadRequest,
				Message: "validation failed",
				Fields:  fe,
			})
		case errors.Is(err, services.ErrDuplicateTrackingID):
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if hasKey && db != nil {
		_, _ = repo.CreateIdempotency(ctx, db, scope, idemKey, app.TrackingID, http.StatusCreated, h.IdempotencyTTL)
	}

	ok(c, http.StatusCreated, app)
}

// ListApplications godoc
// @ID          listApplications
// @Summary     List applications (paginated)
// @Description Returns a newest-first page of applications, optionally filtered by a free-text query over name, passport and tracking ID. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Admin
// @Produce     json
// @Security    AdminPIN
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       q              query   string  false "Search text"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(10)
//
// @Success     200  {object} handlers.ListApplicationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing or wrong admin PIN"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/applications [get]
func (h *Handlers) ListApplications(c *gin.Context) {
	ctx := c.Request.Context()
	q := strings.TrimSpace(c.Query("q"))
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.appDB(); db != nil {
		count, maxTS, err := repo.ApplicationsStats(ctx, db, repo.ApplicationFilter{Query: q})
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"applications:%x:%d:%d:%d:%d"`, queryHash(q), page, pageSize, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.appSvc.ListPage(ctx, q, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListApplicationsResponse{
		Applications: items,
		Pagination:   newPagination(page, pageSize, total),
	})
}

// GetApplication godoc
// @ID          getApplication
// @Summary     Get one application
// @Tags        Admin
// @Produce     json
// @Security    AdminPIN
// @Param       tracking_id  path  string  true  "Tracking ID"
// @Success     200  {object}  domain.Application
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or wrong admin PIN"
// @Failure     404  {object}  handlers.ErrorResponse  "Application not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/applications/{tracking_id} [get]
func (h *Handlers) GetApplication(c *gin.Context) {
	app, err := h.appSvc.Get(c.Request.Context(), c.Param("tracking_id"))
	switch {
	case errors.Is(err, services.ErrApplicationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusOK, app)
	}
}

// MonthlyReport godoc
// @ID          monthlyReport
// @Summary     Monthly application counts
// @Description Groups applications by creation month with per-status counts. Omitted year or month means all.
// @Tags        Admin
// @Produce     json
// @Security    AdminPIN
// @Param       year   query  int  false  "Calendar year"
// @Param       month  query  int  false  "Month (1-12)"  minimum(1) maximum(12)
// @Success     200  {object}  handlers.MonthlyReportResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or wrong admin PIN"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/reports/monthly [get]
func (h *Handlers) MonthlyReport(c *gin.Context) {
	year := utils.AtoiDefault(c.Query("year"), 0)
	month := utils.AtoiDefault(c.Query("month"), 0)
	if year < 0 || month < 0 || month > 12 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "year must be positive and month in 1..12")
		return
	}

	rows, err := h.appSvc.MonthlyReport(c.Request.Context(), year, month)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, MonthlyReportResponse{Reports: rows})
}

// SyncLocalStore godoc
// @ID          syncLocalStore
// @Summary     Rebuild the local store
// @Description Rewrites the Redis-backed local application table from the document store.
// @Tags        Admin
// @Produce     json
// @Security    AdminPIN
// @Success     200  {object}  handlers.SyncResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or wrong admin PIN"
// @Failure     503  {object}  handlers.ErrorResponse  "Local store not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/local-store/sync [post]
func (h *Handlers) SyncLocalStore(c *gin.Context) {
	n, err := h.appSvc.SyncLocal(c.Request.Context())
	switch {
	case errors.Is(err, services.ErrMirrorUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeSyncFailed, err.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeSyncFailed, err.Error())
	default:
		ok(c, http.StatusOK, SyncResponse{Rows: n})
	}
}

func queryHash(q string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(q)))
	return h.Sum32()
}
