package importer

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
)

// Jobs serializes background work per client: at most one import, purge or
// recalculation job runs for a tenant at a time. Jobs are cancellable; the
// running function observes cancellation through its context at step
// boundaries.
type Jobs struct {
	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewJobs creates an empty job registry.
func NewJobs() *Jobs {
	return &Jobs{running: make(map[string]context.CancelFunc)}
}

// Start launches fn in a goroutine holding the client's job slot. It fails
// with ErrJobAlreadyRunning when the slot is taken.
func (j *Jobs) Start(clientID, kind string, fn func(ctx context.Context)) error {
	j.mu.Lock()
	if _, busy := j.running[clientID]; busy {
		j.mu.Unlock()
		return domain.ErrJobAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	j.running[clientID] = cancel
	j.mu.Unlock()

	log.Info().Str("client_id", clientID).Str("kind", kind).Msg("Background job started")
	go func() {
		defer func() {
			cancel()
			j.mu.Lock()
			delete(j.running, clientID)
			j.mu.Unlock()
			log.Info().Str("client_id", clientID).Str("kind", kind).Msg("Background job finished")
		}()
		fn(ctx)
	}()
	return nil
}

// Cancel requests cancellation of the client's running job, if any. The
// boolean reports whether a job was running.
func (j *Jobs) Cancel(clientID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	cancel, ok := j.running[clientID]
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether the client has an active job.
func (j *Jobs) Running(clientID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.running[clientID]
	return ok
}
