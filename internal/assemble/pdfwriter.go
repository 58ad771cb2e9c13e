package assemble

import (
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// DocumentWriter turns encoded page images into one paged document.
type DocumentWriter interface {
	Write(w io.Writer, pages []io.Reader) error
}

// A4 landscape in PDF points.
var a4Landscape = types.Dim{Width: 842, Height: 595}

// PDFWriter writes one image per A4 landscape page using pdfcpu.
type PDFWriter struct{}

func (PDFWriter) Write(w io.Writer, pages []io.Reader) error {
	if len(pages) == 0 {
		return fmt.Errorf("no pages to write")
	}
	imp := pdfcpu.DefaultImportConfig()
	dim := a4Landscape
	imp.PageDim = &dim
	imp.PageSize = "A4L"
	imp.UserDim = true
	imp.Pos = types.Full
	imp.Scale = 1

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, w, pages, imp, conf); err != nil {
		return fmt.Errorf("pdfcpu import images: %w", err)
	}
	return nil
}
