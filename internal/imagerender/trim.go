package imagerender

import (
	"image"
	"image/color"
)

// TrimPolicy decides which pages lose their uniform background margins.
type TrimPolicy struct {
	Enabled    bool
	Exempt     map[int]bool // 0-based pages that keep their margins
	Background color.Color  // nil means white
}

// Applies reports whether page should be trimmed.
func (p TrimPolicy) Applies(page int) bool {
	return p.Enabled && !p.Exempt[page]
}

func (p TrimPolicy) background() color.Color {
	if p.Background == nil {
		return white
	}
	return p.Background
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// TrimBorders crops img to the bounding box of the pixels that differ from
// bg. A page that is entirely background is returned unchanged, as is an
// image type that cannot be sub-sliced.
func TrimBorders(img image.Image, bg color.Color) image.Image {
	box, ok := ContentBounds(img, bg)
	if !ok || box == img.Bounds() {
		return img
	}
	si, ok := img.(subImager)
	if !ok {
		return img
	}
	return si.SubImage(box)
}

// ContentBounds returns the smallest rectangle holding every pixel that
// differs from bg, and false when there is none.
func ContentBounds(img image.Image, bg color.Color) (image.Rectangle, bool) {
	br, bgc, bb, ba := bg.RGBA()
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if r == br && g == bgc && bl == bb && a == ba {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}
