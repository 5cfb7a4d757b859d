// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, rate limiting and the admin PIN gate.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/visa-track-backend/internal/captcha"
	"github.com/tbourn/visa-track-backend/internal/config"
	"github.com/tbourn/visa-track-backend/internal/domain"
	"github.com/tbourn/visa-track-backend/internal/events"
	"github.com/tbourn/visa-track-backend/internal/http/handlers"
	"github.com/tbourn/visa-track-backend/internal/http/middleware"
	"github.com/tbourn/visa-track-backend/internal/lookup"
	"github.com/tbourn/visa-track-backend/internal/repo"
	"github.com/tbourn/visa-track-backend/internal/services"
)

// applicationRepoShim adapts the repository free functions to the
// services.ApplicationRepo interface expected by the ApplicationService.
type applicationRepoShim struct{}

// CreateApplication proxies repo.CreateApplication.
func (applicationRepoShim) CreateApplication(ctx context.Context, db *gorm.DB, app *domain.Application) error {
	return repo.CreateApplication(ctx, db, app)
}

// GetApplicationByTrackingID proxies repo.GetApplicationByTrackingID.
func (applicationRepoShim) GetApplicationByTrackingID(ctx context.Context, db *gorm.DB, trackingID string) (*domain.Application, error) {
	return repo.GetApplicationByTrackingID(ctx, db, trackingID)
}

// CountApplications proxies repo.CountApplications (pagination support).
func (applicationRepoShim) CountApplications(ctx context.Context, db *gorm.DB, f repo.ApplicationFilter) (int64, error) {
	return repo.CountApplications(ctx, db, f)
}

// ListApplicationsPage proxies repo.ListApplicationsPage (pagination support).
func (applicationRepoShim) ListApplicationsPage(ctx context.Context, db *gorm.DB, f repo.ApplicationFilter, offset, limit int) ([]domain.Application, error) {
	return repo.ListApplicationsPage(ctx, db, f, offset, limit)
}

// ListAllApplications proxies repo.ListAllApplications.
func (applicationRepoShim) ListAllApplications(ctx context.Context, db *gorm.DB) ([]domain.Application, error) {
	return repo.ListAllApplications(ctx, db)
}

// ApplicationStatusRows proxies repo.ApplicationStatusRows (reporting).
func (applicationRepoShim) ApplicationStatusRows(ctx context.Context, db *gorm.DB, year int) ([]repo.StatusRow, error) {
	return repo.ApplicationStatusRows(ctx, db, year)
}

// Deps carries the long-lived components RegisterRoutes wires into services.
type Deps struct {
	DB       *gorm.DB
	Captcha  *captcha.Service
	Resolver *lookup.Resolver
	// Mirror is the local application table; nil disables mirroring and sync.
	Mirror services.LocalMirror
	// Events receives application.created; nil disables publication.
	Events events.Publisher
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, compression, CORS and security headers, health and metrics
// endpoints, and then mounts the versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per IP, bypass on replay)
//  9. Compression, CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderAdminPIN},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return rec != nil, err
		},
	))

	// 8) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 9) Compression (PNG and metrics output are left alone)
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics"}),
		gzip.WithExcludedPathsRegexs([]string{`/captcha/[^/]+/image$`}),
	))

	// CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderAdminPIN, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	base := strings.TrimRight(cfg.APIBasePath, "/")
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:         cfg.Security.EnableHSTS,
		HSTSMaxAge:         cfg.Security.HSTSMaxAge,
		SensitivePrefixes:  []string{base + "/track", base + "/captcha"},
		RevalidatePrefixes: []string{base + "/admin"},
		EnablePolicy:       true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/resolver/captcha
	trackSvc := services.NewTrackingService(deps.Captcha, deps.Resolver)
	trackSvc.AutoFormatID = cfg.Lookup.AutoFormatID
	trackSvc.Log = log.With().Str("component", "tracking").Logger()

	appSvc := services.NewApplicationService(db, applicationRepoShim{})
	appSvc.Mirror = deps.Mirror
	appSvc.Events = deps.Events
	appSvc.RecordTTL = cfg.Lookup.RecordTTL
	appSvc.Log = log.With().Str("component", "applications").Logger()

	h := handlers.New(deps.Captcha, trackSvc, appSvc)
	h.IdempotencyTTL = cfg.IdempotencyTTL

	// The status form gets its own per-route budget on top of the global one.
	trackRL := middleware.NewRateLimiter(cfg.TrackRateRPS, cfg.TrackRateBurst, middleware.KeyByRouteAndIP())

	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	{
		// Captcha
		api.POST("/captcha", h.NewCaptcha)
		api.GET("/captcha/:id/image", h.CaptchaImage)
		api.POST("/captcha/:id/refresh", h.RefreshCaptcha)

		// Status form
		api.POST("/track", trackRL.Handler(), h.Track)

		// Admin desk
		admin := api.Group("/admin", middleware.AdminPIN(cfg.AdminPIN))
		admin.POST("/applications", h.CreateApplication)
		admin.GET("/applications", h.ListApplications)
		admin.GET("/applications/:tracking_id", h.GetApplication)
		admin.GET("/reports/monthly", h.MonthlyReport)
		admin.POST("/local-store/sync", h.SyncLocalStore)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
