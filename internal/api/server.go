// Package api exposes the pipeline, the feedback store and the operator
// surfaces over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qepting91/linkfinder/internal/feedback"
	"github.com/qepting91/linkfinder/internal/pipeline"
)

// Options wires the router. Pipeline and Feedback are required.
type Options struct {
	Pipeline  *pipeline.Service
	Feedback  *feedback.Store
	Dashboard http.Handler
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

type Server struct {
	pipeline *pipeline.Service
	feedback *feedback.Store
	logger   *slog.Logger
}

// NewRouter constructs a Gin engine with every route registered.
func NewRouter(o Options) *gin.Engine {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Gatherer == nil {
		o.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{pipeline: o.Pipeline, feedback: o.Feedback, logger: o.Logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(o.Logger))

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/search", s.handleSearch)
	api.GET("/best", s.handleBest)
	api.GET("/extract", s.handleExtract)
	api.GET("/ml-stats", s.handleStats)
	api.POST("/interaction", s.handleInteraction)
	api.POST("/feedback", s.handleFeedback)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})))
	if o.Dashboard != nil {
		r.GET("/dashboard", gin.WrapH(o.Dashboard))
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}
