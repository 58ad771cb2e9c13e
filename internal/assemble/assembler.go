// Package assemble renders one block half into a finished document.
package assemble

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/local/pdf2a5/internal/compose"
	"github.com/local/pdf2a5/internal/faults"
	"github.com/local/pdf2a5/internal/imagerender"
	"github.com/local/pdf2a5/internal/imposition"
	"github.com/local/pdf2a5/internal/logger"
	"github.com/local/pdf2a5/internal/scratch"
)

// DefaultJPEGQuality is used for composed pages when none is configured.
const DefaultJPEGQuality = 90

// PageRasterizer renders a set of source pages from one private handle.
type PageRasterizer interface {
	RenderPages(path string, pages []int, opts imagerender.Options) (map[int]image.Image, error)
}

// Options controls rendering of one block half.
type Options struct {
	Raster      imagerender.Options
	Canvas      compose.Canvas
	JPEGQuality int
}

// Assembler builds block documents. It holds no per-call state and is safe
// for concurrent use.
type Assembler struct {
	Raster  PageRasterizer
	Writer  DocumentWriter
	Scratch scratch.Factory
}

// New returns an Assembler using go-fitz and pdfcpu.
func New(scratchRoot string) *Assembler {
	return &Assembler{
		Raster:  imagerender.New(),
		Writer:  PDFWriter{},
		Scratch: scratch.Factory{Root: scratchRoot},
	}
}

// Build renders half from the document at src and returns the encoded
// output document. Composed pages are staged in a private scratch area that
// is released before Build returns.
func (a *Assembler) Build(src string, half imposition.BlockHalf, opts Options) ([]byte, error) {
	area, err := a.Scratch.New(half.ID)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", half.ID, err)
	}
	defer func() {
		if rerr := area.Release(); rerr != nil {
			log.Warn().Err(rerr).Str("dir", area.Dir()).Msg("failed to release scratch area")
		}
	}()

	pages := half.DistinctPages()
	rasters, err := a.Raster.RenderPages(src, pages, opts.Raster)
	if err != nil {
		return nil, err
	}

	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	staged := make([]string, 0, len(half.Pages))
	for i, face := range half.Pages {
		left, err := lookup(rasters, face.Left, src)
		if err != nil {
			return nil, err
		}
		right, err := lookup(rasters, face.Right, src)
		if err != nil {
			return nil, err
		}

		canvas := compose.Compose(left, right, opts.Canvas)
		path := area.NewFile(".jpg")
		if err := writeJPEG(path, canvas, quality); err != nil {
			return nil, &faults.RenderError{Page: -1, Err: fmt.Errorf("encode %s page %d: %w", half.ID, i+1, err)}
		}
		staged = append(staged, path)
	}

	readers := make([]io.Reader, 0, len(staged))
	for _, p := range staged {
		f, err := os.Open(p)
		if err != nil {
			return nil, &faults.AssemblyError{Block: half.ID, Err: err}
		}
		defer f.Close()
		readers = append(readers, f)
	}

	var buf bytes.Buffer
	if err := a.Writer.Write(&buf, readers); err != nil {
		return nil, &faults.AssemblyError{Block: half.ID, Err: err}
	}

	log.Debug().
		Str(logger.FieldBlock, half.ID).
		Int("source_pages", len(pages)).
		Int("output_pages", len(staged)).
		Int("bytes", buf.Len()).
		Msg("assembled block half")
	return buf.Bytes(), nil
}

func lookup(rasters map[int]image.Image, slot imposition.Slot, src string) (image.Image, error) {
	p, ok := slot.Page()
	if !ok {
		return nil, nil
	}
	img, ok := rasters[p]
	if !ok {
		return nil, &faults.SourceReadError{Path: src, Page: p, Err: fmt.Errorf("page was not rasterized")}
	}
	return img, nil
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
