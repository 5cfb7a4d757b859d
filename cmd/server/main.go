// Command server runs the visa application tracker HTTP API.
//
//	@title						Visa Track API
//	@version					1.0
//	@description				Public status lookup behind a captcha, plus the operator desk for filing and reporting applications.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	AdminPIN
//	@in							header
//	@name						X-Admin-PIN
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "github.com/tbourn/visa-track-backend/docs"
	"github.com/tbourn/visa-track-backend/internal/captcha"
	"github.com/tbourn/visa-track-backend/internal/config"
	"github.com/tbourn/visa-track-backend/internal/events"
	httpapi "github.com/tbourn/visa-track-backend/internal/http"
	"github.com/tbourn/visa-track-backend/internal/lookup"
	"github.com/tbourn/visa-track-backend/internal/observability"
	"github.com/tbourn/visa-track-backend/internal/repo"
	"github.com/tbourn/visa-track-backend/internal/services"
	"github.com/tbourn/visa-track-backend/internal/sources"
	"github.com/tbourn/visa-track-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Minute
	captchaPrefix   = "captcha:"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	lg := sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)

	if err := run(cfg); err != nil {
		lg.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Document store
	db, err := repo.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Redis backs the local table and, optionally, captcha state.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		if rdb, err = repo.OpenRedis(ctx, cfg.Redis); err != nil {
			return fmt.Errorf("open redis: %w", err)
		}
		defer rdb.Close()
	}

	// Captcha
	rnd := captcha.SystemRand()
	renderer, err := captcha.NewBitmapRenderer(rnd)
	if err != nil {
		return err
	}
	var (
		store    captcha.Store
		memStore *captcha.MemoryStore
	)
	if cfg.Captcha.Store == "redis" {
		store = captcha.NewRedisStore(rdb, captchaPrefix)
	} else {
		memStore = captcha.NewMemoryStore()
		store = memStore
	}
	captchaSvc := captcha.NewService(store, renderer, rnd, cfg.Captcha.TTL,
		captcha.WithLogger(log.With().Str("component", "captcha").Logger()))

	// Status sources, in configured order
	srcDeps := sources.Deps{DB: db}
	var mirror services.LocalMirror
	if rdb != nil {
		local := sources.NewLocal(rdb, cfg.Lookup.LocalStoreKey)
		srcDeps.Redis = rdb
		srcDeps.Local = local
		mirror = local
	}
	srcs, err := sources.Build(cfg.Lookup, srcDeps)
	if err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	resolver := lookup.NewResolver(srcs,
		lookup.WithOffice(cfg.Lookup.OfficeName),
		lookup.WithTouchTimeout(cfg.Lookup.TouchTimeout),
		lookup.WithLogger(log.With().Str("component", "resolver").Logger()),
	)

	// Events
	var pub events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log.With().Str("component", "events").Logger())
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		pub = np
	}
	defer pub.Close()

	// HTTP
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Captcha:  captchaSvc,
		Resolver: resolver,
		Mirror:   mirror,
		Events:   pub,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", appVersion).
			Strs("sources", resolver.Sources()).
			Str("captcha_store", cfg.Captcha.Store).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		janitor(gctx, db, memStore, janitorInterval)
		return nil
	})
	return g.Wait()
}

// janitor drops expired idempotency rows and in-memory challenges until ctx
// ends. Redis-held challenges expire on their own.
func janitor(ctx context.Context, db *gorm.DB, mem *captcha.MemoryStore, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("purge idempotency")
			}
			var swept, live int
			if mem != nil {
				swept, live = mem.Sweep(), mem.Len()
			}
			if n > 0 || swept > 0 {
				log.Debug().Int64("idempotency", n).Int("captchas", swept).Int("captchas_live", live).Msg("janitor")
			}
		}
	}
}
