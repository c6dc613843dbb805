package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// placeholder draws an empty chart area with the title and NoDataText.
func (r *Renderer) placeholder(w io.Writer, p palette, title string) error {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(p.background), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: img, Src: image.NewUniform(color.Color(p.text)), Face: face}

	titleWidth := dr.MeasureString(title).Ceil()
	dr.Dot = fixed.P((r.width-titleWidth)/2, 24)
	dr.DrawString(title)

	textWidth := dr.MeasureString(NoDataText).Ceil()
	dr.Dot = fixed.P((r.width-textWidth)/2, r.height/2+face.Metrics().Ascent.Ceil()/2)
	dr.DrawString(NoDataText)

	return png.Encode(w, img)
}
