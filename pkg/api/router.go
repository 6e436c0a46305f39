package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/store"
)

// RouterDeps are the collaborators mounted on the router. Nil Registry or
// Stream leave /metrics or /ws unmounted.
type RouterDeps struct {
	Tracker   Tracker
	Store     store.Store
	Scheduler StatusSource
	Registry  *prometheus.Registry
	Stream    http.HandlerFunc
	Logger    *zap.Logger
	Debug     bool
}

// NewRouter builds the gin engine with every handler registered.
func NewRouter(d RouterDeps) *gin.Engine {
	if d.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	(&HealthHandler{Store: d.Store}).Register(engine)
	(&TrackingHandler{
		Tracker:   d.Tracker,
		Store:     d.Store,
		Scheduler: d.Scheduler,
		Logger:    logger,
	}).Register(engine)

	if d.Registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}
	if d.Stream != nil {
		engine.GET("/ws", gin.WrapF(d.Stream))
	}
	return engine
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("http request", fields...)
			return
		}
		logger.Debug("http request", fields...)
	}
}
