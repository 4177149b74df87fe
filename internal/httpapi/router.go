package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with every route registered. The gin mode is
// process-wide and is set by the caller.
//
// Postcondition: Returns a non-nil engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(h.logger), gin.Recovery())

	router.GET("/healthz", h.Healthz)

	v1 := router.Group("/v1")
	{
		v1.POST("/simulate", h.Simulate)
		v1.POST("/engagements", h.Engage)
		v1.GET("/engagements/:id", h.GetEngagement)

		v1.POST("/profiles", h.CreateProfile)
		v1.GET("/profiles/:id", h.GetProfile)
		v1.PUT("/profiles/:id/health", h.SetHealth)
		v1.POST("/profiles/:id/powers", h.ActivatePower)
		v1.GET("/profiles/:id/engagements", h.History)
	}
	return router
}

// requestLogger logs one line per request at debug, or at warn for 5xx responses.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("http request", fields...)
			return
		}
		logger.Debug("http request", fields...)
	}
}
