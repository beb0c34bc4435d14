package service

import (
	"context"
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// ClientService reads and maintains client (tenant) configuration, units,
// categories, vendors and budgets.
type ClientService struct {
	store store.Store
	audit *AuditService
}

// NewClientService creates a new ClientService.
func NewClientService(st store.Store, audit *AuditService) *ClientService {
	return &ClientService{store: st, audit: audit}
}

// Get loads a client and attaches its water config when present.
func (s *ClientService) Get(ctx context.Context, clientID string) (*domain.Client, error) {
	doc, err := s.store.Get(ctx, store.ClientPath(clientID))
	if err != nil {
		return nil, domain.ErrClientNotFound
	}
	var client domain.Client
	if err := store.Decode(doc, &client); err != nil {
		return nil, err
	}
	client.ID = clientID

	if cfgDoc, err := s.store.Get(ctx, store.WaterConfigPath(clientID)); err == nil {
		var cfg domain.WaterConfig
		if err := store.Decode(cfgDoc, &cfg); err != nil {
			return nil, err
		}
		client.Water = &cfg
	}
	return &client, nil
}

// GetTx loads a client inside an open store transaction.
func (s *ClientService) GetTx(ctx context.Context, tx store.Tx, clientID string) (*domain.Client, error) {
	doc, err := tx.Get(ctx, store.ClientPath(clientID))
	if err != nil {
		return nil, domain.ErrClientNotFound
	}
	var client domain.Client
	if err := store.Decode(doc, &client); err != nil {
		return nil, err
	}
	client.ID = clientID
	if cfgDoc, err := tx.Get(ctx, store.WaterConfigPath(clientID)); err == nil {
		var cfg domain.WaterConfig
		if err := store.Decode(cfgDoc, &cfg); err != nil {
			return nil, err
		}
		client.Water = &cfg
	}
	return &client, nil
}

// List returns the clients the principal can read.
func (s *ClientService) List(ctx context.Context, p *domain.Principal) ([]*domain.Client, error) {
	ids, err := s.store.ListDocs(ctx, store.ClientsCol())
	if err != nil {
		return nil, err
	}
	var out []*domain.Client
	for _, id := range ids {
		if !p.CanRead(id) {
			continue
		}
		client, err := s.Get(ctx, id)
		if err != nil {
			continue // ghost client docs are skipped, not fatal
		}
		out = append(out, client)
	}
	return out, nil
}

// Location resolves the client's civil timezone. Unknown zones fall back to
// the fixed reference zone rather than failing money-critical paths.
func (s *ClientService) Location(client *domain.Client) *time.Location {
	if client.Timezone != "" {
		if loc, err := time.LoadLocation(client.Timezone); err == nil {
			return loc
		}
	}
	return fiscal.DefaultLocation
}

// UpdateWaterConfig validates and persists the water billing configuration.
func (s *ClientService) UpdateWaterConfig(ctx context.Context, clientID, userID string, cfg domain.WaterConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := store.Encode(cfg)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, store.WaterConfigPath(clientID), data); err != nil {
		return err
	}
	s.audit.RecordBestEffort(ctx, clientID, AuditEntry{
		Module: "waterBills",
		Action: "updateConfig",
		DocID:  "config",
		UserID: userID,
	})
	return nil
}

// GetUnit loads one unit.
func (s *ClientService) GetUnit(ctx context.Context, clientID, unitID string) (*domain.Unit, error) {
	doc, err := s.store.Get(ctx, store.UnitPath(clientID, unitID))
	if err != nil {
		return nil, domain.ErrUnitNotFound
	}
	var unit domain.Unit
	if err := store.Decode(doc, &unit); err != nil {
		return nil, err
	}
	unit.ID = unitID
	return &unit, nil
}

// ListUnits returns all units of a client. Ghost unit documents (dues
// subcollections surviving a deleted unit) are skipped.
func (s *ClientService) ListUnits(ctx context.Context, clientID string) ([]*domain.Unit, error) {
	ids, err := s.store.ListDocs(ctx, store.UnitsCol(clientID))
	if err != nil {
		return nil, err
	}
	var out []*domain.Unit
	for _, id := range ids {
		unit, err := s.GetUnit(ctx, clientID, id)
		if err != nil {
			continue
		}
		out = append(out, unit)
	}
	return out, nil
}

// ListCategories returns the client's categories.
func (s *ClientService) ListCategories(ctx context.Context, clientID string) ([]*domain.Category, error) {
	docs, err := s.store.QueryDocs(ctx, store.CategoriesCol(clientID), store.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Category, 0, len(docs))
	for _, doc := range docs {
		var cat domain.Category
		if err := store.Decode(doc, &cat); err != nil {
			return nil, err
		}
		cat.ID = doc.ID
		out = append(out, &cat)
	}
	return out, nil
}

// ListVendors returns the client's vendors.
func (s *ClientService) ListVendors(ctx context.Context, clientID string) ([]*domain.Vendor, error) {
	docs, err := s.store.QueryDocs(ctx, store.VendorsCol(clientID), store.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Vendor, 0, len(docs))
	for _, doc := range docs {
		var v domain.Vendor
		if err := store.Decode(doc, &v); err != nil {
			return nil, err
		}
		v.ID = doc.ID
		out = append(out, &v)
	}
	return out, nil
}

// ListBudgets returns all budgets for a fiscal year.
func (s *ClientService) ListBudgets(ctx context.Context, clientID string, fiscalYear int) ([]*domain.Budget, error) {
	docs, err := s.store.QueryDocs(ctx, store.BudgetsCol(clientID), store.Query{
		Predicates: []store.Predicate{{Field: "fiscalYear", Op: store.OpEq, Value: fiscalYear}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Budget, 0, len(docs))
	for _, doc := range docs {
		var b domain.Budget
		if err := store.Decode(doc, &b); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, nil
}

// SetBudget creates or replaces one category's annual budget.
func (s *ClientService) SetBudget(ctx context.Context, clientID, userID string, b domain.Budget) error {
	if b.AnnualAmount < 0 {
		return domain.NewError(domain.KindInvalidInput, "annual budget must be non-negative")
	}
	if b.CategoryID == "" {
		return domain.NewError(domain.KindInvalidInput, "categoryId is required")
	}
	data, err := store.Encode(b)
	if err != nil {
		return err
	}
	path := store.BudgetPath(clientID, b.FiscalYear, b.CategoryID)
	if err := s.store.Set(ctx, path, data); err != nil {
		return err
	}
	s.audit.RecordBestEffort(ctx, clientID, AuditEntry{
		Module: "budgets",
		Action: "set",
		DocID:  store.DocID(path),
		UserID: userID,
	})
	return nil
}
