// Package dashboard serves the telemetry views over HTTP.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"npbc-dashboard/internal/poller"
	"npbc-dashboard/internal/render"
	"npbc-dashboard/internal/storage"
	"npbc-dashboard/internal/theme"
	"npbc-dashboard/internal/timerange"
	"npbc-dashboard/internal/visibility"
)

// ViewSource is the poller as seen by the HTTP layer.
type ViewSource interface {
	View() poller.View
	Range() timerange.Range
	SetRange(r timerange.Range) (bool, error)
	Subscribe() (<-chan poller.View, func())
}

// Deps groups the handler collaborators. Preferences and Metrics are
// optional.
type Deps struct {
	Source      ViewSource
	Visibility  *visibility.State
	Preferences storage.PreferenceStore
	Renderer    *render.Renderer
	Metrics     http.Handler
}

// Handler wires HTTP routes to the poller, the visibility state and the
// preference store.
type Handler struct {
	source   ViewSource
	vis      *visibility.State
	prefs    storage.PreferenceStore
	renderer *render.Renderer
	metrics  http.Handler
	logger   zerolog.Logger
}

// NewHandler constructs the HTTP handler.
func NewHandler(deps Deps, logger zerolog.Logger) *Handler {
	vis := deps.Visibility
	if vis == nil {
		vis = visibility.New()
	}
	return &Handler{
		source:   deps.Source,
		vis:      vis,
		prefs:    deps.Preferences,
		renderer: deps.Renderer,
		metrics:  deps.Metrics,
		logger:   logger.With().Str("component", "dashboard").Logger(),
	}
}

// InitRoutes builds the gin router.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		api.GET("/dashboard", h.getDashboard)
		api.PUT("/range", h.setRange)
		api.POST("/series/:id/toggle", h.toggleSeries)
		api.GET("/theme", h.getTheme)
		api.POST("/theme/toggle", h.toggleTheme)
	}

	router.GET("/charts/:chart", h.getChart)
	router.GET("/ws", h.wsConnect)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger logs every request at debug level and server errors at
// error level.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	status := c.Writer.Status()
	event := h.logger.Debug()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Int("status", status).
		Dur("elapsed", time.Since(start)).
		Msg("http request")
}

// currentTheme never fails; store problems fall back to the default.
func (h *Handler) currentTheme(ctx context.Context) theme.Theme {
	t, err := theme.Load(ctx, h.prefs)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to load theme preference")
	}
	return t
}
