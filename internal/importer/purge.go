package importer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/service"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// PurgeOptions controls a purge run. DryRun is the default posture; Execute
// must be set explicitly to delete anything.
type PurgeOptions struct {
	Execute bool
	// Exclude lists subcollection names under the client document to keep,
	// e.g. importMetadata during a data purge.
	Exclude []string
	// StartedBy is recorded on the run metadata.
	StartedBy string
}

// PurgeResult summarizes one purge walk.
type PurgeResult struct {
	RunID        string `json:"runId"`
	DocsExamined int    `json:"docsExamined"`
	DocsDeleted  int    `json:"docsDeleted"`
	GhostDocs    int    `json:"ghostDocs"`
	DryRun       bool   `json:"dryRun"`
}

// Purger deletes a client's document tree depth first.
type Purger struct {
	store    store.Store
	audit    *service.AuditService
	reporter Reporter
	now      func() time.Time
}

// NewPurger creates a Purger. reporter may be nil.
func NewPurger(st store.Store, audit *service.AuditService, reporter Reporter) *Purger {
	return &Purger{store: st, audit: audit, reporter: reporter, now: time.Now}
}

// Purge walks every subcollection under the client document and deletes the
// documents it finds, children before parents. Ghost documents, which hold
// subcollections but no fields of their own, are detected and counted; in
// execute mode their paths are deleted like any other once their children
// are gone. The client document itself is deleted last.
func (p *Purger) Purge(ctx context.Context, clientID string, opts PurgeOptions) (*PurgeResult, error) {
	run := &domain.ImportRun{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		Kind:      "purge",
		Status:    domain.JobRunning,
		StartedAt: p.now().UTC(),
		StartedBy: opts.StartedBy,
	}
	t := newTracker(p.store, p.reporter, run)
	result := &PurgeResult{RunID: run.ID, DryRun: !opts.Execute}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		excluded[name] = true
	}

	step := t.beginStep(ctx, "purge")
	cols, err := p.store.ListCollections(ctx, store.ClientPath(clientID))
	if err != nil {
		t.endStep(ctx, step, domain.JobFailed, err)
		t.finish(ctx, domain.JobFailed, p.now().UTC())
		return nil, err
	}
	for _, col := range cols {
		if excluded[col] {
			continue
		}
		if err := p.purgeCollection(ctx, t, step, store.ClientPath(clientID)+"/"+col, result); err != nil {
			t.endStep(ctx, step, domain.JobFailed, err)
			t.finish(ctx, domain.JobFailed, p.now().UTC())
			return nil, err
		}
	}

	// The client document goes last so a failed walk leaves it findable.
	result.DocsExamined++
	if opts.Execute && len(opts.Exclude) == 0 {
		if err := p.store.Delete(ctx, store.ClientPath(clientID)); err != nil {
			t.endStep(ctx, step, domain.JobFailed, err)
			t.finish(ctx, domain.JobFailed, p.now().UTC())
			return nil, err
		}
		result.DocsDeleted++
	}

	t.endStep(ctx, step, domain.JobCompleted, nil)
	t.finish(ctx, domain.JobCompleted, p.now().UTC())

	// Written after the walk so the record outlives the deletion it describes.
	if err := p.audit.Record(ctx, clientID, service.AuditEntry{
		Module: "purge",
		Action: "run",
		DocID:  run.ID,
		UserID: opts.StartedBy,
		Metadata: map[string]any{
			"docsExamined": result.DocsExamined,
			"docsDeleted":  result.DocsDeleted,
			"ghostDocs":    result.GhostDocs,
			"dryRun":       result.DryRun,
		},
	}); err != nil {
		// Audit is fatal for purge runs.
		return nil, err
	}

	log.Info().
		Str("client_id", clientID).
		Int("examined", result.DocsExamined).
		Int("deleted", result.DocsDeleted).
		Int("ghosts", result.GhostDocs).
		Bool("dry_run", result.DryRun).
		Msg("Purge finished")
	return result, nil
}

// purgeCollection removes every document of one collection, recursing into
// each document's subcollections first.
func (p *Purger) purgeCollection(ctx context.Context, t *tracker, step int, colPath string, result *PurgeResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ids, err := p.store.ListDocs(ctx, colPath)
	if err != nil {
		return err
	}
	for _, id := range ids {
		docPath := colPath + "/" + id

		subCols, err := p.store.ListCollections(ctx, docPath)
		if err != nil {
			return err
		}
		for _, sub := range subCols {
			if err := p.purgeCollection(ctx, t, step, docPath+"/"+sub, result); err != nil {
				return err
			}
		}

		result.DocsExamined++
		if _, err := p.store.Get(ctx, docPath); err == domain.ErrNotFound {
			// Ghost: subcollections existed but the document has no fields.
			result.GhostDocs++
		} else if err != nil {
			return err
		}

		if !result.DryRun {
			if err := p.store.Delete(ctx, docPath); err != nil {
				t.tick(ctx, step, false, 0)
				return err
			}
			result.DocsDeleted++
		}
		t.tick(ctx, step, true, 0)
	}
	return nil
}
