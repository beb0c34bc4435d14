package importer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// progressEvery is how many processed documents elapse between progress
// notifications within one step.
const progressEvery = 50

// Reporter receives run snapshots as steps advance. The websocket hub
// implements this through an adapter; a nil reporter is silently skipped.
type Reporter interface {
	Progress(run *domain.ImportRun)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(run *domain.ImportRun)

// Progress calls f.
func (f ReporterFunc) Progress(run *domain.ImportRun) { f(run) }

// tracker persists and broadcasts one run's step progress.
type tracker struct {
	store    store.Store
	reporter Reporter
	run      *domain.ImportRun
}

func newTracker(st store.Store, reporter Reporter, run *domain.ImportRun) *tracker {
	return &tracker{store: st, reporter: reporter, run: run}
}

// beginStep appends a running step and returns its index.
func (t *tracker) beginStep(ctx context.Context, name string) int {
	t.run.Steps = append(t.run.Steps, domain.StepProgress{
		Name:   name,
		Status: domain.JobRunning,
	})
	t.flush(ctx)
	return len(t.run.Steps) - 1
}

// tick advances a step's counters; every progressEvery documents the run is
// persisted and broadcast.
func (t *tracker) tick(ctx context.Context, step int, ok bool, total int) {
	s := &t.run.Steps[step]
	s.Processed++
	if ok {
		s.Success++
	} else {
		s.Failed++
	}
	if total > 0 {
		s.Percent = float64(s.Processed) / float64(total) * 100
	}
	if s.Processed%progressEvery == 0 {
		t.flush(ctx)
	}
}

// endStep finalizes a step with the given status.
func (t *tracker) endStep(ctx context.Context, step int, status domain.JobStatus, err error) {
	s := &t.run.Steps[step]
	s.Status = status
	s.Percent = 100
	if err != nil {
		s.Error = err.Error()
	}
	t.flush(ctx)
}

// finish closes the run itself.
func (t *tracker) finish(ctx context.Context, status domain.JobStatus, completedAt time.Time) {
	t.run.Status = status
	t.run.CompletedAt = &completedAt
	t.flush(ctx)
}

// flush persists the run document and notifies the reporter. Persistence
// failures are logged, not fatal: losing a progress snapshot must not kill
// the job it describes.
func (t *tracker) flush(ctx context.Context) {
	data, err := store.Encode(t.run)
	if err == nil {
		err = t.store.Set(ctx, store.ImportMetaPath(t.run.ClientID, t.run.ID), data)
	}
	if err != nil {
		log.Error().Err(err).
			Str("client_id", t.run.ClientID).
			Str("run_id", t.run.ID).
			Msg("Progress persist failed")
	}
	if t.reporter != nil {
		t.reporter.Progress(t.run)
	}
}
