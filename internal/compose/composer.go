// Package compose lays two page rasters side by side on a landscape sheet.
package compose

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// A4 landscape in millimetres.
const (
	SheetWidthMM  = 297.0
	SheetHeightMM = 210.0
	mmPerInch     = 25.4
)

// Canvas describes the output sheet in pixels.
type Canvas struct {
	Width      int
	Height     int
	FoldMargin int // kept clear on each side of the fold
	Shift      int // binding shift, applied outward on both halves
	Background color.Color
}

// MMToPx converts millimetres to pixels at dpi, truncating.
func MMToPx(mm float64, dpi int) int {
	return int(mm * float64(dpi) / mmPerInch)
}

// CanvasForDPI returns an A4 landscape canvas at dpi.
func CanvasForDPI(dpi int, foldMarginMM, shiftMM float64) Canvas {
	return Canvas{
		Width:      MMToPx(SheetWidthMM, dpi),
		Height:     MMToPx(SheetHeightMM, dpi),
		FoldMargin: MMToPx(foldMarginMM, dpi),
		Shift:      MMToPx(shiftMM, dpi),
		Background: color.White,
	}
}

// WithShift returns a copy of c using shift pixels.
func (c Canvas) WithShift(shift int) Canvas {
	c.Shift = shift
	return c
}

// HalfBox is the largest raster size one half of the canvas accepts.
func (c Canvas) HalfBox() (w, h int) {
	return max(c.Width/2-c.FoldMargin, 1), c.Height
}

// FitWithin scales (w, h) down to fit (maxW, maxH) keeping the aspect
// ratio. Sizes that already fit are returned unchanged.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	return max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
}

// Compose draws left flush against the canvas's left edge and right flush
// against its right edge, each vertically centered and downscaled to its
// half box. A nil raster leaves its half blank.
func Compose(left, right image.Image, c Canvas) *image.RGBA {
	bg := c.Background
	if bg == nil {
		bg = color.White
	}
	canvas := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	maxW, maxH := c.HalfBox()
	if left != nil {
		img := fit(left, maxW, maxH)
		b := img.Bounds()
		at := image.Pt(-c.Shift, c.Height/2-b.Dy()/2)
		draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(b.Size())}, img, b.Min, draw.Over)
	}
	if right != nil {
		img := fit(right, maxW, maxH)
		b := img.Bounds()
		at := image.Pt(c.Width-b.Dx()+c.Shift, c.Height/2-b.Dy()/2)
		draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(b.Size())}, img, b.Min, draw.Over)
	}
	return canvas
}

func fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
