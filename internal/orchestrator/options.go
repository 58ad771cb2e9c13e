package orchestrator

import (
	"math"
	"path/filepath"

	"github.com/local/pdf2a5/internal/assemble"
	"github.com/local/pdf2a5/internal/compose"
	"github.com/local/pdf2a5/internal/config"
	"github.com/local/pdf2a5/internal/faults"
	"github.com/local/pdf2a5/internal/imagerender"
	"github.com/local/pdf2a5/internal/imposition"
	"github.com/local/pdf2a5/internal/source"
)

// ShiftPolicy decides the binding shift each block receives.
type ShiftPolicy string

const (
	// ShiftConstant applies ShiftMM to every block.
	ShiftConstant ShiftPolicy = "constant"
	// ShiftTaper grows the shift linearly from 0 at the first and last
	// block to ShiftMM at the middle block.
	ShiftTaper ShiftPolicy = "taper"
)

// ShiftFor returns the shift in millimetres for block of blocks.
func (p ShiftPolicy) ShiftFor(block, blocks int, shiftMM float64) float64 {
	if p != ShiftTaper || blocks <= 1 {
		return shiftMM
	}
	mid := float64(blocks-1) / 2
	return shiftMM * (1 - math.Abs(float64(block)-mid)/mid)
}

// Options describes one conversion.
type Options struct {
	Source         string
	Destination    string // defaults to the source directory
	DPI            int
	SheetsPerBlock int
	ShiftMM        float64
	ShiftPolicy    ShiftPolicy
	FoldMarginMM   float64
	Workers        int
	Trim           bool
	TrimExempt     []int // 0-based pages kept untrimmed
	Labels         imposition.HalfLabels
	Gray           bool
	JPEGQuality    int
}

// Validate checks opts without touching the filesystem.
func (o Options) Validate() error {
	if o.Source == "" {
		return faults.Configf("source", "is required")
	}
	if o.Destination == "" && source.IsRemote(o.Source) {
		return faults.Configf("dest", "is required for remote sources")
	}
	if o.DPI < config.MinDPI {
		return faults.Configf("dpi", "must be at least %d, got %d", config.MinDPI, o.DPI)
	}
	if o.SheetsPerBlock < 1 {
		return faults.Configf("batch", "must be at least 1, got %d", o.SheetsPerBlock)
	}
	if o.Workers < 1 {
		return faults.Configf("workers", "must be at least 1, got %d", o.Workers)
	}
	if o.ShiftMM < 0 || math.IsNaN(o.ShiftMM) {
		return faults.Configf("shift", "must not be negative, got %g", o.ShiftMM)
	}
	if o.FoldMarginMM < 0 || math.IsNaN(o.FoldMarginMM) {
		return faults.Configf("fold-margin", "must not be negative, got %g", o.FoldMarginMM)
	}
	if o.FoldMarginMM*2 >= compose.SheetWidthMM {
		return faults.Configf("fold-margin", "%gmm leaves no room for pages", o.FoldMarginMM)
	}
	switch o.ShiftPolicy {
	case "", ShiftConstant, ShiftTaper:
	default:
		return faults.Configf("shift-policy", "unknown policy %q", o.ShiftPolicy)
	}
	if o.JPEGQuality < 0 || o.JPEGQuality > 100 {
		return faults.Configf("quality", "must be within 1..100, got %d", o.JPEGQuality)
	}
	for _, p := range o.TrimExempt {
		if p < 0 {
			return faults.Configf("trim-exempt", "page numbers start at 1")
		}
	}
	if o.Labels.Outer == o.Labels.Inner && o.Labels.Outer != "" {
		return faults.Configf("labels", "outer and inner halves need distinct labels")
	}
	return nil
}

func (o Options) destination() string {
	if o.Destination != "" {
		return o.Destination
	}
	return filepath.Dir(o.Source)
}

func (o Options) labels() imposition.HalfLabels {
	if o.Labels.Outer == "" || o.Labels.Inner == "" {
		return imposition.DefaultHalfLabels
	}
	return o.Labels
}

// assembleOptions returns the render settings for one block.
func (o Options) assembleOptions(block, blocks int) assemble.Options {
	canvas := compose.CanvasForDPI(o.DPI, o.FoldMarginMM, 0)
	shift := o.ShiftPolicy.ShiftFor(block, blocks, o.ShiftMM)
	canvas = canvas.WithShift(compose.MMToPx(shift, o.DPI))

	color := imagerender.ColorRGB
	if o.Gray {
		color = imagerender.ColorGray
	}
	exempt := make(map[int]bool, len(o.TrimExempt))
	for _, p := range o.TrimExempt {
		exempt[p] = true
	}
	return assemble.Options{
		Raster: imagerender.Options{
			DPI:   o.DPI,
			Color: color,
			Trim:  imagerender.TrimPolicy{Enabled: o.Trim, Exempt: exempt},
		},
		Canvas:      canvas,
		JPEGQuality: o.JPEGQuality,
	}
}
