package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// AuditService appends records to a client's audit log. Every mutating
// operation writes one record; reads never log.
type AuditService struct {
	store store.Store
}

// NewAuditService creates a new AuditService.
func NewAuditService(st store.Store) *AuditService {
	return &AuditService{store: st}
}

// AuditEntry is the caller-supplied portion of an audit record.
type AuditEntry struct {
	Module       string
	Action       string
	ParentPath   string
	DocID        string
	UserID       string
	FriendlyName string
	Notes        string
	Metadata     map[string]any
}

func auditData(e AuditEntry, id string) map[string]any {
	data, _ := store.Encode(domain.AuditRecord{
		ID:           id,
		Module:       e.Module,
		Action:       e.Action,
		ParentPath:   e.ParentPath,
		DocID:        e.DocID,
		UserID:       e.UserID,
		FriendlyName: e.FriendlyName,
		Notes:        e.Notes,
		Metadata:     e.Metadata,
	})
	data["timestamp"] = store.ServerTimestamp()
	return data
}

// Record writes one audit record. Callers on the primary payment paths treat
// the returned error as best effort via RecordBestEffort; import and purge
// treat it as fatal.
func (s *AuditService) Record(ctx context.Context, clientID string, e AuditEntry) error {
	id := uuid.New().String()
	return s.store.Set(ctx, store.AuditPath(clientID, id), auditData(e, id))
}

// RecordTx writes an audit record inside an open store transaction.
func (s *AuditService) RecordTx(ctx context.Context, tx store.Tx, clientID string, e AuditEntry) error {
	id := uuid.New().String()
	return tx.Set(ctx, store.AuditPath(clientID, id), auditData(e, id))
}

// RecordBestEffort logs and swallows audit failures so they never abort the
// primary operation.
func (s *AuditService) RecordBestEffort(ctx context.Context, clientID string, e AuditEntry) {
	if err := s.Record(ctx, clientID, e); err != nil {
		log.Error().Err(err).
			Str("client_id", clientID).
			Str("module", e.Module).
			Str("action", e.Action).
			Msg("Audit write failed")
	}
}

// List returns the most recent audit records for a client.
func (s *AuditService) List(ctx context.Context, clientID string, limit int) ([]*domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	docs, err := s.store.QueryDocs(ctx, store.AuditCol(clientID), store.Query{
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuditRecord, 0, len(docs))
	for _, doc := range docs {
		var rec domain.AuditRecord
		if err := store.Decode(doc, &rec); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, nil
}
