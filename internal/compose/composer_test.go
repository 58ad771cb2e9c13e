package compose

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

var red = color.RGBA{R: 0xff, A: 0xff}

// inkBounds returns the bounding box of non-white pixels in img.
func inkBounds(img *image.RGBA) image.Rectangle {
	var box image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
				box = box.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return box
}

func TestCanvasForDPI(t *testing.T) {
	t.Parallel()

	c := CanvasForDPI(120, 5, 1)
	if c.Width != 1403 || c.Height != 992 {
		t.Errorf("canvas = %dx%d, want 1403x992", c.Width, c.Height)
	}
	if c.FoldMargin != 23 || c.Shift != 4 {
		t.Errorf("fold/shift = %d/%d, want 23/4", c.FoldMargin, c.Shift)
	}
}

func TestFitWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{10, 10, 20, 20, 10, 10},   // never upscaled
		{40, 20, 20, 20, 20, 10},   // width bound
		{20, 40, 20, 20, 10, 20},   // height bound
		{100, 200, 50, 50, 25, 50}, // both bound, aspect kept
	}
	for _, tt := range tests {
		w, h := FitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("FitWithin(%d,%d,%d,%d) = %d,%d want %d,%d", tt.w, tt.h, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestCompose_BlankCanvas(t *testing.T) {
	t.Parallel()

	c := Canvas{Width: 60, Height: 40, Background: color.White}
	out := Compose(nil, nil, c)
	if out.Bounds() != image.Rect(0, 0, 60, 40) {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	if box := inkBounds(out); !box.Empty() {
		t.Errorf("blank compose has ink at %v", box)
	}
}

func TestCompose_DownscalesIntoHalves(t *testing.T) {
	t.Parallel()

	c := Canvas{Width: 100, Height: 60, FoldMargin: 5, Background: color.White}
	big := solid(300, 300, red)

	out := Compose(big, nil, c)
	box := inkBounds(out)
	maxW, maxH := c.HalfBox()
	if box.Dx() > maxW || box.Dy() > maxH {
		t.Errorf("left ink %v exceeds half box %dx%d", box, maxW, maxH)
	}
	if box.Min.X != 0 {
		t.Errorf("left raster starts at x=%d, want flush left", box.Min.X)
	}

	out = Compose(nil, big, c)
	box = inkBounds(out)
	if box.Dx() > maxW || box.Dy() > maxH {
		t.Errorf("right ink %v exceeds half box %dx%d", box, maxW, maxH)
	}
	if box.Max.X != c.Width {
		t.Errorf("right raster ends at x=%d, want flush right", box.Max.X)
	}
}

func TestCompose_CentersAndShifts(t *testing.T) {
	t.Parallel()

	c := Canvas{Width: 100, Height: 60, Shift: 3, Background: color.White}
	page := solid(10, 20, red)

	box := inkBounds(Compose(page, nil, c))
	if want := image.Rect(0, 20, 7, 40); box != want {
		t.Errorf("left ink = %v, want %v (shifted off the left edge)", box, want)
	}

	box = inkBounds(Compose(nil, page, c))
	if want := image.Rect(93, 20, 100, 40); box != want {
		t.Errorf("right ink = %v, want %v (shifted off the right edge)", box, want)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	t.Parallel()

	c := Canvas{Width: 120, Height: 80, FoldMargin: 2, Shift: 1, Background: color.White}
	left := solid(90, 130, red)
	right := solid(70, 50, color.Black)

	a := Compose(left, right, c)
	b := Compose(left, right, c)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("Compose is not deterministic")
	}
}
