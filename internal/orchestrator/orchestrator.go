// Package orchestrator runs a whole conversion: it resolves the source,
// plans the imposition and renders every block half on a bounded pool.
package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/local/pdf2a5/internal/assemble"
	"github.com/local/pdf2a5/internal/dispatcher"
	"github.com/local/pdf2a5/internal/faults"
	"github.com/local/pdf2a5/internal/imposition"
	"github.com/local/pdf2a5/internal/logger"
	"github.com/local/pdf2a5/internal/metrics"
	"github.com/local/pdf2a5/internal/scratch"
	"github.com/local/pdf2a5/internal/source"
	"github.com/local/pdf2a5/internal/storage"
	"github.com/local/pdf2a5/internal/store"
)

// OutputExt is appended to every block half ID.
const OutputExt = ".pdf"

type Fetcher interface {
	Fetch(ctx context.Context, ref, dir string) (string, error)
}

type Assembler interface {
	Build(src string, half imposition.BlockHalf, opts assemble.Options) ([]byte, error)
}

// Dependencies are the collaborators of a Converter. Nil fields get the
// production implementation.
type Dependencies struct {
	Fetcher   Fetcher
	Assembler Assembler
	Status    store.StatusStore
	Scratch   scratch.Factory

	// OpenSink returns the sink for a destination.
	OpenSink  func(ctx context.Context, dest string) (storage.Sink, error)
	Detect    func(path string) error
	PageCount func(path string) (int, error)
}

// Converter runs conversions. It is safe for concurrent use.
type Converter struct {
	deps Dependencies
}

func New(deps Dependencies) *Converter {
	if deps.Fetcher == nil {
		deps.Fetcher = &source.Fetcher{}
	}
	if deps.Assembler == nil {
		deps.Assembler = assemble.New(deps.Scratch.Root)
	}
	if deps.Status == nil {
		deps.Status = store.NopStatus{}
	}
	if deps.OpenSink == nil {
		deps.OpenSink = func(ctx context.Context, dest string) (storage.Sink, error) {
			return storage.ForDestination(ctx, dest, storage.S3Options{})
		}
	}
	if deps.Detect == nil {
		deps.Detect = source.DetectPDF
	}
	if deps.PageCount == nil {
		deps.PageCount = source.PageCount
	}
	return &Converter{deps: deps}
}

// Result summarizes a conversion, including a failed one.
type Result struct {
	RunID     string
	PageCount int
	Scheme    imposition.Scheme
	Outputs   []string // locations of written documents, in scheme order
	Report    dispatcher.Report
}

// Convert imposes the source document into block documents under the
// destination. On failure the first error is returned as is, and documents
// already written are left in place.
func (c *Converter) Convert(ctx context.Context, opts Options) (res *Result, err error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	res = &Result{RunID: uuid.NewString()}
	rlog := logger.ForRun(res.RunID)
	start := time.Now()
	c.setStatus(ctx, rlog, res.RunID, store.RunStatus{
		Status:   store.StateRunning,
		Message:  "resolving source",
		Start:    &start,
		Metadata: map[string]interface{}{"source": opts.Source, "dpi": opts.DPI},
	})
	defer func() {
		metrics.IncConversion(err == nil)
		end := time.Now()
		st := store.RunStatus{Status: store.StateCompleted, Progress: 100, Start: &start, End: &end,
			Message: "all block documents written"}
		if err != nil {
			st.Status, st.Message = store.StateFailed, err.Error()
			st.Progress = progress(len(res.Report.Completed), len(res.Scheme.Halves))
		}
		c.setStatus(context.WithoutCancel(ctx), rlog, res.RunID, st)
	}()

	area, err := c.deps.Scratch.New("run")
	if err != nil {
		return res, err
	}
	defer func() {
		if rerr := area.Release(); rerr != nil {
			rlog.Warn().Err(rerr).Str("dir", area.Dir()).Msg("failed to release scratch area")
		}
	}()

	path, err := c.deps.Fetcher.Fetch(ctx, opts.Source, area.Dir())
	if err != nil {
		return res, err
	}
	if err := c.deps.Detect(path); err != nil {
		return res, err
	}
	if res.PageCount, err = c.deps.PageCount(path); err != nil {
		return res, err
	}

	sheets := imposition.ClampSheetsPerBlock(res.PageCount, opts.SheetsPerBlock)
	res.Scheme = imposition.Build(res.PageCount, sheets, opts.labels())
	if err := res.Scheme.Validate(); err != nil {
		return res, err
	}
	rlog.Info().
		Int("pages", res.PageCount).
		Int("sheets_per_block", sheets).
		Ints("block_sizes", res.Scheme.BlockSizes).
		Int("halves", len(res.Scheme.Halves)).
		Int("workers", opts.Workers).
		Msg("imposition planned")
	if len(res.Scheme.Halves) == 0 {
		rlog.Warn().Msg("source has no pages; nothing to write")
		return res, nil
	}

	sink, err := c.deps.OpenSink(ctx, opts.destination())
	if err != nil {
		return res, err
	}

	tasks := c.tasks(rlog, res, path, sink, opts)
	res.Report, err = dispatcher.RunFailFast(ctx, opts.Workers, tasks)

	completed := make(map[string]bool, len(res.Report.Completed))
	for _, id := range res.Report.Completed {
		completed[id] = true
	}
	for _, h := range res.Scheme.Halves {
		if completed[h.ID] {
			res.Outputs = append(res.Outputs, sink.Location(h.ID+OutputExt))
		}
	}
	for _, id := range res.Report.Skipped {
		metrics.IncSkipped()
		c.setBlock(context.WithoutCancel(ctx), rlog, res.RunID, id, store.BlockRecord{Result: "skipped"})
	}

	if err != nil {
		rlog.Error().Err(err).
			Int("written", len(res.Report.Completed)).
			Int("skipped", len(res.Report.Skipped)).
			Msg("conversion failed; partial output kept")
		return res, err
	}
	rlog.Info().Int("written", len(res.Outputs)).Dur("took", time.Since(start)).Msg("conversion complete")
	return res, nil
}

// tasks builds one task per block half, in scheme order.
func (c *Converter) tasks(rlog zerolog.Logger, res *Result, src string, sink storage.Sink, opts Options) []dispatcher.Task {
	var done atomic.Int32
	total := len(res.Scheme.Halves)
	blocks := res.Scheme.Blocks()

	tasks := make([]dispatcher.Task, 0, total)
	for _, half := range res.Scheme.Halves {
		half := half
		aopts := opts.assembleOptions(half.Block, blocks)
		tasks = append(tasks, dispatcher.Task{
			Name: half.ID,
			Run: func(ctx context.Context) error {
				// Once started a task runs to completion, so its output is
				// written even when another task has failed meanwhile.
				ctx = context.WithoutCancel(ctx)
				started := time.Now()
				l := logger.ForHalf(rlog, half.ID, string(half.Half))

				name := half.ID + OutputExt
				data, err := c.deps.Assembler.Build(src, half, aopts)
				if err == nil {
					if perr := sink.Put(ctx, name, data); perr != nil {
						err = &faults.AssemblyError{Block: half.ID, Err: perr}
					}
				}

				rec := store.BlockRecord{Result: "success", Pages: len(half.Pages), Location: sink.Location(name)}
				if err != nil {
					rec = store.BlockRecord{Result: "failed", Pages: len(half.Pages), Error: err.Error()}
				}
				metrics.ObserveBlockHalf(string(half.Half), rec.Result, time.Since(started))
				c.setBlock(ctx, l, res.RunID, half.ID, rec)
				if err != nil {
					return err
				}

				n := int(done.Add(1))
				l.Info().Int("shift_px", aopts.Canvas.Shift).Dur("took", time.Since(started)).Msg("block half written")
				c.setStatus(ctx, l, res.RunID, store.RunStatus{
					Status:   store.StateRunning,
					Progress: progress(n, total),
					Message:  "rendering block halves",
				})
				return nil
			},
		})
	}
	return tasks
}

func progress(done, total int) int {
	if total == 0 {
		return 0
	}
	return done * 100 / total
}

// Status updates are best effort; a broken store never fails a run.
func (c *Converter) setStatus(ctx context.Context, l zerolog.Logger, runID string, st store.RunStatus) {
	if err := c.deps.Status.Set(ctx, runID, st); err != nil {
		l.Warn().Err(err).Msg("failed to record run status")
	}
}

func (c *Converter) setBlock(ctx context.Context, l zerolog.Logger, runID, id string, rec store.BlockRecord) {
	if err := c.deps.Status.SetBlock(ctx, runID, id, rec); err != nil {
		l.Warn().Err(err).Msg("failed to record block status")
	}
}

// IsPartial reports whether a failed run may have left output behind.
func IsPartial(res *Result, err error) bool {
	return err != nil && res != nil && len(res.Report.Completed) > 0
}
