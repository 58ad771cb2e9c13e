// Package dispatcher runs independent tasks on a bounded pool with
// fail-fast semantics: the first error stops tasks that have not started,
// tasks already running finish, and the first error is returned.
package dispatcher

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of work. Run receives a context that is cancelled once
// the run has failed; tasks may ignore it and run to completion.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Report records what happened to every task.
type Report struct {
	Completed []string
	Skipped   []string
	Failed    []string
}

type recorder struct {
	mu sync.Mutex
	r  Report
}

func (rc *recorder) add(list *[]string, name string) {
	rc.mu.Lock()
	*list = append(*list, name)
	rc.mu.Unlock()
}

// RunFailFast submits tasks in order to at most workers concurrent
// goroutines. It waits for every started task and returns the first error
// observed. Cancelling ctx has the same effect as a failure for tasks that
// have not started yet.
func RunFailFast(ctx context.Context, workers int, tasks []Task) (Report, error) {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	rec := &recorder{}
	for i := range tasks {
		t := tasks[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				rec.add(&rec.r.Skipped, t.Name)
				log.Debug().Str("task", t.Name).Msg("task skipped after failure")
				return nil
			}
			if err := t.Run(gctx); err != nil {
				rec.add(&rec.r.Failed, t.Name)
				log.Error().Err(err).Str("task", t.Name).Msg("task failed")
				return err
			}
			rec.add(&rec.r.Completed, t.Name)
			return nil
		})
	}
	err := g.Wait()
	if err == nil && ctx.Err() != nil && len(rec.r.Skipped) > 0 {
		err = ctx.Err()
	}
	return rec.r, err
}
