package render

import (
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"npbc-dashboard/internal/theme"
	"npbc-dashboard/internal/visibility"
)

type palette struct {
	background drawing.Color
	canvas     drawing.Color
	text       drawing.Color
	axis       drawing.Color
	bar        drawing.Color
	series     map[string]drawing.Color
}

var lightPalette = palette{
	background: drawing.ColorWhite,
	canvas:     drawing.ColorWhite,
	text:       drawing.Color{R: 33, G: 37, B: 41, A: 255},
	axis:       drawing.Color{R: 134, G: 142, B: 150, A: 255},
	bar:        drawing.ColorFromHex("2b8a3e"),
	series: map[string]drawing.Color{
		visibility.Tset:    drawing.ColorFromHex("868e96"),
		visibility.Tboiler: drawing.ColorFromHex("e03131"),
		visibility.TDS18:   drawing.ColorFromHex("1971c2"),
		visibility.DHW:     drawing.ColorFromHex("f08c00"),
		visibility.KTYPE:   drawing.ColorFromHex("862e9c"),
		visibility.TBMP:    drawing.ColorFromHex("0c8599"),
		visibility.Flame:   drawing.ColorFromHex("e8590c"),
		visibility.Power:   drawing.ColorFromHex("5c940d"),
	},
}

var darkPalette = palette{
	background: drawing.Color{R: 18, G: 18, B: 18, A: 255},
	canvas:     drawing.Color{R: 28, G: 28, B: 30, A: 255},
	text:       drawing.Color{R: 222, G: 226, B: 230, A: 255},
	axis:       drawing.Color{R: 108, G: 117, B: 125, A: 255},
	bar:        drawing.ColorFromHex("69db7c"),
	series: map[string]drawing.Color{
		visibility.Tset:    drawing.ColorFromHex("ced4da"),
		visibility.Tboiler: drawing.ColorFromHex("ff6b6b"),
		visibility.TDS18:   drawing.ColorFromHex("4dabf7"),
		visibility.DHW:     drawing.ColorFromHex("ffd43b"),
		visibility.KTYPE:   drawing.ColorFromHex("da77f2"),
		visibility.TBMP:    drawing.ColorFromHex("3bc9db"),
		visibility.Flame:   drawing.ColorFromHex("ff922b"),
		visibility.Power:   drawing.ColorFromHex("a9e34b"),
	},
}

func paletteFor(t theme.Theme) palette {
	if t == theme.Dark {
		return darkPalette
	}
	return lightPalette
}

func (p palette) backgroundStyle() chart.Style {
	return chart.Style{
		FillColor: p.background,
		Padding:   chart.Box{Top: 20, Left: 16, Right: 16, Bottom: 12},
	}
}

func (p palette) canvasStyle() chart.Style {
	return chart.Style{FillColor: p.canvas}
}

func (p palette) axisStyle() chart.Style {
	return chart.Style{FontColor: p.text, StrokeColor: p.axis}
}

func (p palette) titleStyle() chart.Style {
	return chart.Style{FontColor: p.text}
}

func (p palette) legendStyle() chart.Style {
	return chart.Style{FillColor: p.canvas, FontColor: p.text, StrokeColor: p.axis}
}

func (p palette) lineStyle(id string) chart.Style {
	st := chart.Style{
		StrokeColor: p.series[id],
		StrokeWidth: 2,
	}
	if id == visibility.Tset {
		st.StrokeDashArray = []float64{6, 4}
	}
	return st
}
