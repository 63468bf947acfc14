// Command server runs the comments backend HTTP API.
//
// @title                  Comments API
// @version                1.0
// @description            Threaded comments for any item of any registered service. Requests are authenticated with an HMAC-SHA1 signature over service_id + data_type + item_id keyed by the service token.
// @BasePath               /
// @schemes                http https
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/docs"
	"github.com/tbourn/go-comments-backend/internal/cache"
	"github.com/tbourn/go-comments-backend/internal/config"
	httpapi "github.com/tbourn/go-comments-backend/internal/http"
	"github.com/tbourn/go-comments-backend/internal/observability"
	"github.com/tbourn/go-comments-backend/internal/repo"
	"github.com/tbourn/go-comments-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	version = sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	path := cfg.DB.Path
	if cfg.DB.Driver == repo.DriverSQLite && cfg.DB.DSN != "" {
		path = cfg.DB.DSN
	}
	db, err := repo.Open(repo.Options{
		Driver:       cfg.DB.Driver,
		DSN:          cfg.DB.DSN,
		Path:         path,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		Tracing:      cfg.OTEL.Enabled,
		Debug:        cfg.DB.Debug,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if sysutil.IsTruthy(os.Getenv("SKIP_MIGRATIONS")) {
		log.Info().Msg("schema migration skipped")
	} else if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var tokens cache.TokenCache = cache.Nop{}
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisTokenCache(cfg.Cache.RedisURL, cfg.Cache.TokenTTL)
		if err != nil {
			// Tokens are always readable from the database.
			log.Warn().Err(err).Msg("redis unavailable, token cache disabled")
		} else {
			tokens = rc
			defer rc.Close()
		}
	}

	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.BasePath = cfg.APIBasePath

	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg, tokens)

	go purgeIdempotency(ctx, db, time.Hour)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("base_path", cfg.APIBasePath).
			Str("db_driver", cfg.DB.Driver).
			Str("version", version).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.OTEL.ServiceName).Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

// purgeIdempotency removes expired idempotency records every interval until
// ctx is cancelled.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now)
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("expired idempotency keys purged")
			}
		}
	}
}
