package frame

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Labeled is an observation with its match outcome.
type Labeled struct {
	Box      image.Rectangle
	Identity facematch.Identity // Unknown draws a box without a label
	Distance float64
}

var (
	matchedColor   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	unmatchedColor = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	labelText      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const boxThickness = 2

// Annotate draws a rectangle for every face and a name plate for matched ones.
func Annotate(img *image.RGBA, faces []Labeled) {
	for _, f := range faces {
		box := f.Box.Canon().Intersect(img.Bounds())
		if box.Empty() {
			continue
		}
		c := unmatchedColor
		if !f.Identity.IsUnknown() {
			c = matchedColor
		}
		drawRect(img, box, c)
		if !f.Identity.IsUnknown() {
			drawLabel(img, box, string(f.Identity), c)
		}
	}
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	t := min(boxThickness, r.Dx(), r.Dy())
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}

// drawLabel renders the name on a filled plate along the bottom edge of the box.
func drawLabel(img *image.RGBA, box image.Rectangle, text string, bg color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 6
	height := face.Metrics().Height.Ceil() + 4

	plate := image.Rect(box.Min.X, box.Max.Y-height, box.Min.X+max(width, box.Dx()), box.Max.Y)
	plate = plate.Intersect(img.Bounds())
	draw.Draw(img, plate, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelText),
		Face: face,
		Dot:  fixed.P(plate.Min.X+3, plate.Max.Y-4),
	}
	d.DrawString(text)
}
