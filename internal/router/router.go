package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muandane/special-stack/signet/internal/config"
	"github.com/muandane/special-stack/signet/internal/handlers"
	"github.com/muandane/special-stack/signet/internal/middleware"
)

type Handlers struct {
	SignedURLs *handlers.SignedURLHandler
	Avatars    *handlers.AvatarHandler
	Stats      *handlers.StatsHandler
}

type Router struct {
	engine *gin.Engine
	cfg    *config.StorageConfig
	logger *zap.Logger
}

func NewRouter(cfg *config.StorageConfig, logger *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	return &Router{
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Router) Setup(h Handlers) http.Handler {
	validationConfig := middleware.ValidationConfig{
		ExcludedPaths: []string{
			"/health",
			"/metrics",
			"/stats",
		},
		BucketAccess: r.cfg.AllowedBuckets,
		AvatarBucket: r.cfg.AvatarBucket,
	}
	policy := middleware.PolicyFromAccess(r.cfg.AllowedBuckets, r.cfg.AllowedIPs, r.cfg.AvatarBucket)
	metricsMiddleware := middleware.NewMetricsMiddleware(r.cfg.AvatarBucket)

	r.engine.GET("/health", handlers.HealthCheck)
	r.engine.GET("/stats", h.Stats.GetStats)
	r.engine.GET("/metrics", gin.WrapH(metricsMiddleware))

	r.engine.GET("/signed/:bucket/*path", h.SignedURLs.GetSignedURL)
	r.engine.DELETE("/signed/:bucket/*path", h.SignedURLs.InvalidateSignedURL)
	r.engine.DELETE("/signed", h.SignedURLs.ClearSignedURLs)
	r.engine.PUT("/avatars/:uid", h.Avatars.PutAvatar)

	// Chain wraps inside out: logging sees every request, validation runs last.
	return middleware.Chain(
		r.engine,
		middleware.WithValidation(validationConfig),
		middleware.WithBucketAccessControl(policy, r.logger, r.cfg.EnableBucketPolicies),
		metricsMiddleware.WithMetrics,
		middleware.WithLogging(r.logger),
	)
}
