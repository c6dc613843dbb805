// Package render draws the dashboard charts as PNG images.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"npbc-dashboard/internal/normalize"
	"npbc-dashboard/internal/poller"
	"npbc-dashboard/internal/theme"
	"npbc-dashboard/internal/timerange"
	"npbc-dashboard/internal/visibility"
)

// Chart names one of the rendered charts.
type Chart string

const (
	Temperature Chart = "temperature"
	Flame       Chart = "flame"
	Consumption Chart = "consumption"
	Monthly     Chart = "monthly"
)

// Charts lists every chart in page order.
var Charts = []Chart{Temperature, Flame, Consumption, Monthly}

// ErrUnknownChart is returned by ParseChart.
var ErrUnknownChart = errors.New("render: unknown chart")

// NoDataText is drawn when a chart has nothing to show.
const NoDataText = "No data for the selected range"

var temperatureSeries = []string{
	visibility.Tset,
	visibility.Tboiler,
	visibility.TDS18,
	visibility.DHW,
	visibility.KTYPE,
	visibility.TBMP,
}

// ParseChart accepts a chart name with or without the .png suffix.
func ParseChart(name string) (Chart, error) {
	c := Chart(strings.TrimSuffix(strings.ToLower(name), ".png"))
	for _, known := range Charts {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChart, name)
}

// Renderer produces PNG charts of a fixed size.
type Renderer struct {
	width  int
	height int
	loc    *time.Location
}

// New returns a renderer. Axis labels are formatted in loc.
func New(width, height int, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{width: width, height: height, loc: loc}
}

// Render writes chart c for the given view. Hidden series are left out; a
// nil visibility state shows everything.
func (r *Renderer) Render(w io.Writer, c Chart, view poller.View, vis *visibility.State, t theme.Theme) error {
	visible := func(string) bool { return true }
	if vis != nil {
		visible = vis.Visible
	}

	switch c {
	case Temperature:
		return r.Temperature(w, view.History, view.Range, visible, t)
	case Flame:
		return r.Flame(w, view.History, view.Range, visible, t)
	case Consumption:
		return r.Consumption(w, view.Consumption, t)
	case Monthly:
		return r.Monthly(w, view.Monthly, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, string(c))
	}
}

// Temperature draws the six temperature channels.
func (r *Renderer) Temperature(w io.Writer, samples []normalize.Sample, rng timerange.Range, visible func(string) bool, t theme.Theme) error {
	p := paletteFor(t)
	times := sampleTimes(samples)

	var (
		series []chart.Series
		bounds = newBounds()
	)
	for _, id := range temperatureSeries {
		if !visible(id) {
			continue
		}
		ys := make([]float64, len(samples))
		for i, s := range samples {
			ys[i] = temperatureValue(s, id)
			bounds.add(ys[i])
		}
		series = append(series, r.timeSeries(id, times, ys, p.lineStyle(id), chart.YAxisPrimary))
	}
	if len(series) == 0 || len(samples) == 0 {
		return r.placeholder(w, p, "Temperatures")
	}

	lo, hi := bounds.padded()
	ch := r.baseChart(p, "Temperatures (°C)", rng)
	ch.YAxis = chart.YAxis{
		Name:  "°C",
		Style: p.axisStyle(),
		Range: &chart.ContinuousRange{Min: lo, Max: hi},
	}
	ch.Series = series
	ch.Elements = []chart.Renderable{chart.Legend(&ch, p.legendStyle())}
	return ch.Render(chart.PNG, w)
}

// Flame draws flame intensity against the discrete power level on a
// secondary axis.
func (r *Renderer) Flame(w io.Writer, samples []normalize.Sample, rng timerange.Range, visible func(string) bool, t theme.Theme) error {
	p := paletteFor(t)
	times := sampleTimes(samples)

	flameMax, powerMax := 100.0, 5.0
	var series []chart.Series
	if visible(visibility.Flame) {
		ys := make([]float64, len(samples))
		for i, s := range samples {
			ys[i] = s.Flame
			flameMax = math.Max(flameMax, s.Flame)
		}
		series = append(series, r.timeSeries(visibility.Flame, times, ys, p.lineStyle(visibility.Flame), chart.YAxisPrimary))
	}
	if visible(visibility.Power) {
		ys := make([]float64, len(samples))
		for i, s := range samples {
			ys[i] = float64(s.Power)
			powerMax = math.Max(powerMax, ys[i])
		}
		st := p.lineStyle(visibility.Power)
		st.FillColor = st.StrokeColor.WithAlpha(48)
		series = append(series, r.timeSeries(visibility.Power, times, ys, st, chart.YAxisSecondary))
	}
	if len(series) == 0 || len(samples) == 0 {
		return r.placeholder(w, p, "Flame & power")
	}

	ch := r.baseChart(p, "Flame & power", rng)
	ch.YAxis = chart.YAxis{
		Name:  "Flame %",
		Style: p.axisStyle(),
		Range: &chart.ContinuousRange{Min: 0, Max: flameMax},
	}
	ch.YAxisSecondary = chart.YAxis{
		Name:           "Power",
		Style:          p.axisStyle(),
		Range:          &chart.ContinuousRange{Min: 0, Max: powerMax},
		ValueFormatter: integerFormatter,
	}
	ch.Series = series
	ch.Elements = []chart.Renderable{chart.Legend(&ch, p.legendStyle())}
	return ch.Render(chart.PNG, w)
}

// Consumption draws hourly fuel use as bars.
func (r *Renderer) Consumption(w io.Writer, samples []normalize.ConsumptionSample, t theme.Theme) error {
	p := paletteFor(t)
	if len(samples) == 0 {
		return r.placeholder(w, p, "Consumption")
	}

	every := labelStride(len(samples), r.width)
	bars := make([]chart.Value, len(samples))
	bounds := newBounds()
	for i, s := range samples {
		label := ""
		if i%every == 0 {
			label = s.FormattedDate
		}
		bars[i] = chart.Value{Label: label, Value: s.Consumption, Style: barStyle(p)}
		bounds.add(s.Consumption)
	}
	return r.barChart(w, p, "Consumption (kg/h)", bars, bounds.ceiling())
}

// Monthly draws fuel use per calendar month.
func (r *Renderer) Monthly(w io.Writer, samples []normalize.MonthlySample, t theme.Theme) error {
	p := paletteFor(t)
	if len(samples) == 0 {
		return r.placeholder(w, p, "Monthly consumption")
	}

	bars := make([]chart.Value, len(samples))
	bounds := newBounds()
	for i, s := range samples {
		v := float64(s.Consumption)
		bars[i] = chart.Value{Label: s.FormattedDate, Value: v, Style: barStyle(p)}
		bounds.add(v)
	}
	return r.barChart(w, p, "Monthly consumption (kg)", bars, bounds.ceiling())
}

func (r *Renderer) baseChart(p palette, title string, rng timerange.Range) chart.Chart {
	return chart.Chart{
		Title:      title,
		TitleStyle: p.titleStyle(),
		Width:      r.width,
		Height:     r.height,
		Background: p.backgroundStyle(),
		Canvas:     p.canvasStyle(),
		XAxis: chart.XAxis{
			Style:          p.axisStyle(),
			ValueFormatter: r.timeFormatter(rng),
		},
	}
}

func (r *Renderer) barChart(w io.Writer, p palette, title string, bars []chart.Value, max float64) error {
	bc := chart.BarChart{
		Title:      title,
		TitleStyle: p.titleStyle(),
		Width:      r.width,
		Height:     r.height,
		Background: p.backgroundStyle(),
		Canvas:     p.canvasStyle(),
		BarWidth:   barWidth(len(bars), r.width),
		XAxis:      p.axisStyle(),
		YAxis: chart.YAxis{
			Style: p.axisStyle(),
			Range: &chart.ContinuousRange{Min: 0, Max: max},
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

// timeSeries pads a single sample to two points one minute apart since a
// zero-width X range cannot be drawn.
func (r *Renderer) timeSeries(id string, times []time.Time, ys []float64, st chart.Style, axis chart.YAxisType) chart.TimeSeries {
	if len(times) == 1 {
		times = []time.Time{times[0], times[0].Add(time.Minute)}
		ys = []float64{ys[0], ys[0]}
		st.DotWidth = 4
		st.DotColor = st.StrokeColor
	}
	return chart.TimeSeries{
		Name:    visibility.Labels[id],
		Style:   st,
		YAxis:   axis,
		XValues: times,
		YValues: ys,
	}
}

func (r *Renderer) timeFormatter(rng timerange.Range) chart.ValueFormatter {
	return func(v interface{}) string {
		var t time.Time
		switch tv := v.(type) {
		case float64:
			t = chart.TimeFromFloat64(tv)
		case time.Time:
			t = tv
		default:
			return ""
		}
		return normalize.FormatDate(t, rng, r.loc)
	}
}

func integerFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

func barStyle(p palette) chart.Style {
	return chart.Style{FillColor: p.bar, StrokeColor: p.bar, StrokeWidth: 1}
}

func sampleTimes(samples []normalize.Sample) []time.Time {
	out := make([]time.Time, len(samples))
	for i, s := range samples {
		out[i] = s.Time()
	}
	return out
}

func temperatureValue(s normalize.Sample, id string) float64 {
	switch id {
	case visibility.Tset:
		return s.Tset
	case visibility.Tboiler:
		return s.Tboiler
	case visibility.TDS18:
		return s.TDS18
	case visibility.DHW:
		return s.DHW
	case visibility.KTYPE:
		return s.KTYPE
	case visibility.TBMP:
		return s.TBMP
	}
	return 0
}

// labelStride thins bar labels so they do not overlap.
func labelStride(n, width int) int {
	const labelWidth = 48
	fit := width / labelWidth
	if fit <= 0 || n <= fit {
		return 1
	}
	return int(math.Ceil(float64(n) / float64(fit)))
}

func barWidth(n, width int) int {
	if n <= 0 {
		return 0
	}
	w := width / (n * 2)
	switch {
	case w < 2:
		return 2
	case w > 60:
		return 60
	}
	return w
}

type bounds struct {
	min, max float64
}

func newBounds() *bounds {
	return &bounds{min: math.MaxFloat64, max: -math.MaxFloat64}
}

func (b *bounds) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	b.min = math.Min(b.min, v)
	b.max = math.Max(b.max, v)
}

func (b *bounds) empty() bool { return b.min > b.max }

// padded widens the range by 5% and never returns a flat range.
func (b *bounds) padded() (float64, float64) {
	if b.empty() {
		return 0, 1
	}
	span := b.max - b.min
	pad := span * 0.05
	if pad < 1 {
		pad = 1
	}
	return math.Floor(b.min - pad), math.Ceil(b.max + pad)
}

// ceiling is the bar chart maximum: at least 1 so all-zero data still draws.
func (b *bounds) ceiling() float64 {
	if b.empty() || b.max <= 0 {
		return 1
	}
	return b.max * 1.1
}
