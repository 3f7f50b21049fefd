package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/internal/api/middleware"
	"github.com/sichatlabs/sichat-deploy/internal/config"
	"github.com/sichatlabs/sichat-deploy/internal/domain/instance"
	"github.com/sichatlabs/sichat-deploy/internal/usecase/deployment"
	"github.com/sichatlabs/sichat-deploy/internal/version"
)

type Router struct {
	engine     *gin.Engine
	server     *http.Server
	cfg        *config.Config
	redeployUC *deployment.RedeployUseCase
	registry   instance.Registry
	attempts   deployment.AttemptStore
	versionReg *version.Registry
	logger     *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	redeployUC *deployment.RedeployUseCase,
	registry instance.Registry,
	attempts deployment.AttemptStore,
	versionReg *version.Registry,
	logger *zap.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	api := &Router{
		engine:     r,
		cfg:        cfg,
		redeployUC: redeployUC,
		registry:   registry,
		attempts:   attempts,
		versionReg: versionReg,
		logger:     logger,
	}

	api.RegisterRoutes()
	return api
}

func (r *Router) RegisterRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.engine.Group("/admin")
	admin.Use(r.adminAuth())
	{
		admin.POST("/redeploy", r.Redeploy)
		admin.GET("/attempts", r.ListAttempts)
		admin.GET("/instances/:service", r.ListInstances)
		admin.GET("/versions", r.ListVersions)
		admin.POST("/versions", r.CreateVersion)
		admin.POST("/versions/default", r.SetDefaultVersion)
	}
}

func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      r.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // redeploys are slow and synchronous
		IdleTimeout:  60 * time.Second,
	}

	return r.server.ListenAndServe()
}

func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

func (r *Router) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(r.cfg.AdminAPIToken)
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_token_not_configured"})
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		if provided == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				provided = strings.TrimSpace(authHeader[7:])
			}
		}

		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
