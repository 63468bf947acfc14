// Package httpapi assembles the Gin engine for the comments backend: the
// middleware chain, operational endpoints (/health, /metrics, /swagger) and
// the comment and service routes mounted under the configured base path.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/cache"
	"github.com/tbourn/go-comments-backend/internal/config"
	"github.com/tbourn/go-comments-backend/internal/http/handlers"
	"github.com/tbourn/go-comments-backend/internal/http/middleware"
	"github.com/tbourn/go-comments-backend/internal/repo"
	"github.com/tbourn/go-comments-backend/internal/services"
)

const (
	maxBodyBytes      = 1 << 20
	maxIdempotencyKey = 200
	corsMaxAge        = 12 * time.Hour
)

var (
	corsMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "If-None-Match", middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed}
)

// RegisterRoutes installs the middleware chain and every endpoint on r.
// tokens may be nil, which disables token caching.
//
// The chain runs in this order: tracing, request id, access log, recovery,
// body cap, metrics, gzip, idempotency replay detection, rate limiting, CORS
// and security headers. Replay detection precedes the limiter so that a
// client retrying a create is not throttled for it.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, tokens cache.TokenCache) {
	r.HandleMethodNotAllowed = true

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		accessLog(cfg.LogRedact),
		middleware.Recovery(),
		limitBody(maxBodyBytes),
		middleware.Metrics(),
	)
	// Scrapes skip compression, replay detection and rate limiting.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(
		gzip.Gzip(gzip.DefaultCompression),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: maxIdempotencyKey},
			replayLookup(db),
		),
		middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByServiceOrIP()).Handler(),
	)
	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	mountAPI(groupWithPrefix(r, cfg.APIBasePath), newHandler(db, cfg, tokens))
}

func newHandler(db *gorm.DB, cfg config.Config, tokens cache.TokenCache) *handlers.Handlers {
	registry := services.NewServiceRegistry(db, tokens)
	comments := services.NewCommentService(db, registry)
	comments.MaxTextRunes = cfg.Comments.MaxRunes
	if cfg.IdempotencyTTL > 0 {
		comments.IdempotencyTTL = cfg.IdempotencyTTL
	}
	return handlers.New(comments, registry, handlers.Options{
		DeletedPlaceholder: cfg.Comments.DeletedPlaceholder,
	})
}

func mountAPI(api *gin.RouterGroup, h *handlers.Handlers) {
	// Service responses carry the signing token.
	svc := api.Group("/service", middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))
	svc.POST("/", h.RegisterService)
	svc.GET("/", h.GetService)

	item := "/:service_id/:data_type/:item_id/"
	api.POST(item, h.CreateComment)
	api.GET(item, h.ListComments)
	api.PUT(item+":comment_id/", h.UpdateComment)
	api.DELETE(item+":comment_id/", h.DeleteComment)
}

func accessLog(redacted bool) gin.HandlerFunc {
	if !redacted {
		return middleware.Logger()
	}
	return middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	})
}

// replayLookup reports whether key already created a comment on the item.
// Lookup failures count as "not seen" and the request proceeds normally.
func replayLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, serviceID, itemKey, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, serviceID, itemKey, key, now)
		return err == nil && rec != nil, nil
	}
}

// corsHandlers allows every origin when none are configured. Otherwise the
// request Origin is echoed only when it is on the allowlist.
func corsHandlers(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  corsMethods,
		AllowHeaders:  corsHeaders,
		ExposeHeaders: corsExpose,
		MaxAge:        corsMaxAge,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		wildcard := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{wildcard, cors.New(base)}
	}

	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	echo := func(c *gin.Context) {
		if o := c.GetHeader("Origin"); allowed[o] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", o)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Next()
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{echo, cors.New(base)}
}

// limitBody caps request bodies; reads past maxBytes fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
