package httpapi

import (
	"time"

	"chwone-controlplane/pkg/config"
	"chwone-controlplane/pkg/health"
	"chwone-controlplane/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		NewEngine,
		NewAPIGroup,
	),
)

// APIGroup is the authorised /v1 route group services register on.
type APIGroup struct {
	*gin.RouterGroup
}

func NewEngine(cfg *config.Config, hs health.HealthService) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), middleware.Identify(), middleware.Error())

	r.GET("/healthz", hs.Liveness)
	r.GET("/readyz", hs.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func NewAPIGroup(r *gin.Engine, e casbin.IEnforcer) APIGroup {
	return APIGroup{RouterGroup: r.Group("/v1", middleware.Authorize(e))}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= 500 {
			zap.L().Error("http request", fields...)
			return
		}
		zap.L().Debug("http request", fields...)
	}
}
