package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(requestID())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware("/api/v1/healthz", "/metrics"))
	}

	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)
	v1.GET("/datasets", handler.Datasets)
	v1.GET("/datasets/:dataset", handler.Dataset)
	v1.GET("/datasets/:dataset/tiles/:matrix/:x/:y", handler.Tile)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// requestID keeps a caller supplied request id or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)

		start := time.Now()

		c.Next()

		latency := time.Since(start)

		l.Info("request",
			"request_id", c.GetString("request_id"),
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", latency,
			"size", c.Writer.Size(),
		)
	}
}
