package source

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/pdf2a5/internal/faults"
	"github.com/local/pdf2a5/internal/imagerender"
)

const pdfMIME = "application/pdf"

// DetectPDF checks the magic bytes of path, not its name.
func DetectPDF(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return faults.SourceRead(path, fmt.Errorf("failed to detect file type: %w", err))
	}
	log.Debug().Str("mime", mtype.String()).Str("file", path).Msg("detected file type")
	if !mtype.Is(pdfMIME) {
		return faults.SourceRead(path, fmt.Errorf("not a PDF (detected %s)", mtype.String()))
	}
	return nil
}

// PageCount returns the number of pages in the PDF at path. pdfcpu is asked
// first; documents it refuses to validate fall back to MuPDF, which is also
// what renders them.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err == nil {
		return n, nil
	}
	log.Warn().Err(err).Str("file", path).Msg("pdfcpu page count failed; falling back to MuPDF")

	n, ferr := imagerender.PageCount(path)
	if ferr != nil {
		return 0, faults.SourceRead(path, fmt.Errorf("pdf page count failed: %w", ferr))
	}
	return n, nil
}
