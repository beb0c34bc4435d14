package service

import (
	"context"
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// ReadingsService captures water meter readings, one document per fiscal
// month. No business logic beyond a map merge; consumption is derived at
// bill generation.
type ReadingsService struct {
	store store.Store
	audit *AuditService
	now   func() time.Time
}

// NewReadingsService creates a new ReadingsService.
func NewReadingsService(st store.Store, audit *AuditService) *ReadingsService {
	return &ReadingsService{store: st, audit: audit, now: time.Now}
}

// Get loads the readings for one fiscal month.
func (s *ReadingsService) Get(ctx context.Context, clientID string, fiscalYear, fiscalMonth int) (*domain.WaterReadings, error) {
	doc, err := s.store.Get(ctx, store.ReadingsPath(clientID, domain.WaterReadingsID(fiscalYear, fiscalMonth)))
	if err != nil {
		return nil, err
	}
	var r domain.WaterReadings
	if err := store.Decode(doc, &r); err != nil {
		return nil, err
	}
	r.FiscalYear = fiscalYear
	r.FiscalMonth = fiscalMonth
	return &r, nil
}

// Upsert merges the supplied readings into the month's document, creating it
// if absent. Existing unit readings not present in the input survive.
func (s *ReadingsService) Upsert(ctx context.Context, clientID, userID string, in *domain.WaterReadings) error {
	if in.FiscalMonth < 0 || in.FiscalMonth > 11 {
		return domain.NewError(domain.KindInvalidInput, "fiscalMonth must be 0..11")
	}
	for unitID, v := range in.Readings {
		if v < 0 {
			return domain.NewError(domain.KindInvalidInput, "reading must be non-negative").With("unitId", unitID)
		}
	}

	docID := domain.WaterReadingsID(in.FiscalYear, in.FiscalMonth)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		merged := &domain.WaterReadings{
			FiscalYear:  in.FiscalYear,
			FiscalMonth: in.FiscalMonth,
			Readings:    make(map[string]int64),
			CommonArea:  in.CommonArea,
			Timestamp:   s.now().UTC(),
		}
		if doc, err := tx.Get(ctx, store.ReadingsPath(clientID, docID)); err == nil {
			var existing domain.WaterReadings
			if err := store.Decode(doc, &existing); err != nil {
				return err
			}
			for unitID, v := range existing.Readings {
				merged.Readings[unitID] = v
			}
			if in.CommonArea == 0 {
				merged.CommonArea = existing.CommonArea
			}
		}
		for unitID, v := range in.Readings {
			merged.Readings[unitID] = v
		}

		data, err := store.Encode(merged)
		if err != nil {
			return err
		}
		return tx.Set(ctx, store.ReadingsPath(clientID, docID), data)
	})
	if err != nil {
		return err
	}

	s.audit.RecordBestEffort(ctx, clientID, AuditEntry{
		Module:     "waterBills",
		Action:     "upsertReadings",
		ParentPath: store.ReadingsCol(clientID),
		DocID:      docID,
		UserID:     userID,
	})
	return nil
}

// PriorReading returns the unit's last reading strictly before the given
// fiscal month, searching back through the current and previous fiscal
// years. The boolean reports whether any prior reading exists.
func (s *ReadingsService) PriorReading(ctx context.Context, clientID, unitID string, fiscalYear, fiscalMonth int) (int64, bool, error) {
	type slot struct{ year, month int }
	var candidates []slot
	for m := fiscalMonth - 1; m >= 0; m-- {
		candidates = append(candidates, slot{fiscalYear, m})
	}
	for m := 11; m >= 0; m-- {
		candidates = append(candidates, slot{fiscalYear - 1, m})
	}

	for _, c := range candidates {
		r, err := s.Get(ctx, clientID, c.year, c.month)
		if err == domain.ErrNotFound {
			continue
		}
		if err != nil {
			return 0, false, err
		}
		if v, ok := r.Readings[unitID]; ok {
			return v, true, nil
		}
	}
	return 0, false, nil
}
