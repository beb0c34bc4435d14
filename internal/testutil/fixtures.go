// Package testutil seeds stores with fixture data for service tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// FixtureClientID is the tenant used throughout the service tests.
const FixtureClientID = "bahiamar"

// FrozenClock returns a clock stuck at t.
func FrozenClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// NewFixtureClient returns a quarterly-dues client whose fiscal year starts
// in July, so fiscal year 2026 runs Jul 2025 through Jun 2026.
func NewFixtureClient() *domain.Client {
	return &domain.Client{
		ID:                   FixtureClientID,
		Name:                 "Bahía Mar HOA",
		FiscalYearStartMonth: 7,
		DisplayCurrency:      "MXN",
		DuesFrequency:        domain.DuesQuarterly,
		Water:                NewFixtureWaterConfig(),
	}
}

// NewMonthlyFixtureClient returns a monthly-dues client on a calendar fiscal
// year, with no water billing.
func NewMonthlyFixtureClient() *domain.Client {
	return &domain.Client{
		ID:                   FixtureClientID,
		Name:                 "Bahía Mar HOA",
		FiscalYearStartMonth: 1,
		DisplayCurrency:      "MXN",
		DuesFrequency:        domain.DuesMonthly,
	}
}

// NewFixtureWaterConfig returns a 5% compounding penalty configuration with a
// 10 day grace period.
func NewFixtureWaterConfig() *domain.WaterConfig {
	return &domain.WaterConfig{
		RatePerM3:       2750,  // $27.50 per m³
		MinimumCharge:   15000, // $150.00
		PenaltyRate:     0.05,
		PenaltyDays:     10,
		CompoundPenalty: true,
		CarWashRate:     10000,
		BoatWashRate:    20000,
		DueDay:          5,
	}
}

// MustSet encodes v and writes it at path, failing the test on error.
func MustSet(t *testing.T, st store.Store, path string, v any) {
	t.Helper()
	data, err := store.Encode(v)
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := st.Set(context.Background(), path, data); err != nil {
		t.Fatalf("set %s: %v", path, err)
	}
}

// SeedClient writes the client document and, when configured, its water
// config document.
func SeedClient(t *testing.T, st store.Store, client *domain.Client) {
	t.Helper()
	stored := *client
	stored.Water = nil // water config lives in its own document
	MustSet(t, st, store.ClientPath(client.ID), &stored)
	if client.Water != nil {
		MustSet(t, st, store.WaterConfigPath(client.ID), client.Water)
	}
}

// SeedUnit writes one unit document.
func SeedUnit(t *testing.T, st store.Store, clientID string, unit *domain.Unit) {
	t.Helper()
	MustSet(t, st, store.UnitPath(clientID, unit.ID), unit)
}

// SeedUnits writes units 1A..1C with the given scheduled monthly dues.
func SeedUnits(t *testing.T, st store.Store, clientID string, scheduled domain.Centavos) []string {
	t.Helper()
	ids := []string{"1A", "1B", "1C"}
	for _, id := range ids {
		SeedUnit(t, st, clientID, &domain.Unit{
			ID:                  id,
			UnitNumber:          id,
			ScheduledDuesAmount: scheduled,
		})
	}
	return ids
}

// SeedCredit writes a unit's credit balance document.
func SeedCredit(t *testing.T, st store.Store, clientID, unitID string, balance domain.Centavos) {
	t.Helper()
	MustSet(t, st, store.CreditPath(clientID, unitID), &domain.CreditBalance{
		UnitID:  unitID,
		Balance: balance,
	})
}

// SeedReadings writes one fiscal month's meter readings.
func SeedReadings(t *testing.T, st store.Store, clientID string, fiscalYear, fiscalMonth int, readings map[string]int64) {
	t.Helper()
	MustSet(t, st, store.ReadingsPath(clientID, domain.WaterReadingsID(fiscalYear, fiscalMonth)), &domain.WaterReadings{
		FiscalYear:  fiscalYear,
		FiscalMonth: fiscalMonth,
		Readings:    readings,
	})
}
