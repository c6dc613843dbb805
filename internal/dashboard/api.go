package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"npbc-dashboard/internal/poller"
	"npbc-dashboard/internal/render"
	"npbc-dashboard/internal/theme"
	"npbc-dashboard/internal/timerange"
	"npbc-dashboard/internal/visibility"
)

const (
	errInvalidRange  = "unsupported time range"
	errUnknownSeries = "unknown series"
	errUnknownChart  = "unknown chart"
	errThemeSave     = "failed to save theme"
	errRender        = "failed to render chart"
)

// statusLabels carries the human readable enumeration labels next to the
// raw codes of the status record.
type statusLabels struct {
	Mode   string `json:"mode"`
	State  string `json:"state"`
	Status string `json:"status"`
}

type seriesInfo struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Visible bool   `json:"visible"`
}

type dashboardPayload struct {
	poller.View
	StatusLabels  *statusLabels `json:"statusLabels,omitempty"`
	SelectedRange int           `json:"selectedRange"`
	Ranges        []int         `json:"ranges"`
	Series        []seriesInfo  `json:"series"`
	Theme         theme.Theme   `json:"theme"`
}

func (h *Handler) payload(ctx context.Context, view poller.View) dashboardPayload {
	out := dashboardPayload{
		View:          view,
		SelectedRange: h.source.Range().Hours(),
		Theme:         h.currentTheme(ctx),
	}
	if view.Status != nil {
		out.StatusLabels = &statusLabels{
			Mode:   view.Status.Mode.String(),
			State:  view.Status.State.String(),
			Status: view.Status.Status.String(),
		}
	}
	for _, r := range timerange.All() {
		out.Ranges = append(out.Ranges, r.Hours())
	}
	snapshot := h.vis.Snapshot()
	for _, id := range visibility.Series {
		out.Series = append(out.Series, seriesInfo{ID: id, Label: visibility.Labels[id], Visible: snapshot[id]})
	}
	return out
}

func (h *Handler) getDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.payload(c.Request.Context(), h.source.View()))
}

type rangeRequest struct {
	Hours int `json:"hours" binding:"required"`
}

func (h *Handler) setRange(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	r, err := timerange.Parse(req.Hours)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidRange})
		return
	}

	changed, err := h.source.SetRange(r)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidRange})
		return
	}
	c.JSON(http.StatusOK, gin.H{"range": r.Hours(), "changed": changed})
}

func (h *Handler) toggleSeries(c *gin.Context) {
	id := c.Param("id")
	if !visibility.Known(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownSeries})
		return
	}
	visible := h.vis.Toggle(id)
	c.JSON(http.StatusOK, gin.H{"id": id, "visible": visible})
}

func (h *Handler) getTheme(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"theme": h.currentTheme(c.Request.Context())})
}

func (h *Handler) toggleTheme(c *gin.Context) {
	next, err := theme.Toggle(c.Request.Context(), h.prefs)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to toggle theme")
		c.JSON(http.StatusInternalServerError, gin.H{"error": errThemeSave})
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": next})
}

func (h *Handler) getChart(c *gin.Context) {
	chart, err := render.ParseChart(c.Param("chart"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownChart})
		return
	}

	t := h.currentTheme(c.Request.Context())
	if q := c.Query("theme"); q != "" {
		if override, perr := theme.Parse(q); perr == nil {
			t = override
		}
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, chart, h.source.View(), h.vis, t); err != nil {
		if !errors.Is(err, render.ErrUnknownChart) {
			h.logger.Error().Err(err).Str("chart", string(chart)).Msg("chart render failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": errRender})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
