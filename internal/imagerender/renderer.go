package imagerender

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/pdf2a5/internal/faults"
	"github.com/local/pdf2a5/internal/logger"
	"github.com/local/pdf2a5/internal/metrics"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Document is an open source document that can rasterize its pages.
type Document interface {
	NumPage() int
	Render(page int, dpi float64) (image.Image, error)
	Close() error
}

// Opener opens a document path into a Document.
type Opener interface {
	Open(path string) (Document, error)
}

// FitzOpener opens documents with go-fitz (MuPDF).
type FitzOpener struct{}

func (FitzOpener) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return fitzDoc{doc}, nil
}

type fitzDoc struct{ *fitz.Document }

// Render rasterizes a 0-based page at dpi.
func (d fitzDoc) Render(page int, dpi float64) (image.Image, error) {
	return d.Document.ImageDPI(page, dpi)
}

// Options controls how source pages are rasterized.
type Options struct {
	DPI   int
	Color ColorMode
	Trim  TrimPolicy
}

// Rasterizer renders source pages through an Opener.
type Rasterizer struct {
	Opener Opener
}

// New returns a Rasterizer backed by go-fitz.
func New() *Rasterizer { return &Rasterizer{Opener: FitzOpener{}} }

// RenderPages opens its own handle on path, renders every page in pages
// exactly once and closes the handle before returning. Pages are 0-based.
func (r *Rasterizer) RenderPages(path string, pages []int, opts Options) (map[int]image.Image, error) {
	opener := r.Opener
	if opener == nil {
		opener = FitzOpener{}
	}
	doc, err := opener.Open(path)
	if err != nil {
		return nil, faults.SourceRead(path, fmt.Errorf("failed to open PDF: %w", err))
	}
	defer doc.Close()

	total := doc.NumPage()
	out := make(map[int]image.Image, len(pages))
	for _, p := range pages {
		if _, done := out[p]; done {
			continue
		}
		if p < 0 || p >= total {
			return nil, &faults.SourceReadError{Path: path, Page: p,
				Err: fmt.Errorf("page out of range (document has %d pages)", total)}
		}

		start := time.Now()
		img, err := doc.Render(p, float64(opts.DPI))
		if err != nil {
			return nil, &faults.RenderError{Page: p, Err: err}
		}
		metrics.ObserveRasterize(time.Since(start))

		if opts.Color == ColorGray {
			img = toGray(img)
		}
		if opts.Trim.Applies(p) {
			img = TrimBorders(img, opts.Trim.background())
		}

		b := img.Bounds()
		log.Debug().
			Int(logger.FieldPage, p+1).
			Int("width", b.Dx()).
			Int("height", b.Dy()).
			Int("dpi", opts.DPI).
			Str("color", string(opts.Color)).
			Msg("rendered page")
		out[p] = img
	}
	return out, nil
}

func toGray(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

// PageCount returns the number of pages go-fitz sees in path.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

var white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
