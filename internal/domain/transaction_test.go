package domain

import (
	"errors"
	"testing"
)

func TestValidate_SplitSumsMatch(t *testing.T) {
	tx := &Transaction{
		Amount:     -50000,
		CategoryID: CategorySplit,
		Allocations: []Allocation{
			{CategoryID: "maintenance", Type: AllocOther, Amount: -30000},
			{CategoryID: "utilities", Type: AllocOther, Amount: -20000},
		},
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("Expected valid split, got %v", err)
	}

	// Mutating an allocation breaks the invariant.
	tx.Allocations[1].Amount = -15000
	if err := tx.Validate(); err == nil {
		t.Error("Expected re-validation to reject sum mismatch")
	}
}

func TestValidate_ToleratesOneCentavoDrift(t *testing.T) {
	tx := &Transaction{
		Amount:     10001,
		CategoryID: CategorySplit,
		Allocations: []Allocation{
			{Type: AllocHOAMonth, Amount: 5000},
			{Type: AllocHOAMonth, Amount: 5000},
		},
	}
	if err := tx.Validate(); err != nil {
		t.Errorf("Expected 1-centavo drift to pass, got %v", err)
	}

	tx.Amount = 10002
	if err := tx.Validate(); err == nil {
		t.Error("Expected 2-centavo drift to fail")
	}
}

func TestValidate_CorruptLegacySplit(t *testing.T) {
	tx := &Transaction{Amount: -50000, CategoryID: CategorySplit}
	if err := tx.Validate(); !errors.Is(err, ErrCorruptSplit) {
		t.Errorf("Expected ErrCorruptSplit for split without allocations, got %v", err)
	}
}

func TestValidate_RequiresCategoryOrAllocations(t *testing.T) {
	tx := &Transaction{Amount: 100}
	if err := tx.Validate(); err == nil {
		t.Error("Expected error for transaction with neither category nor allocations")
	}
}

func TestKindOf_Classification(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrNotFound, KindNotFound},
		{ErrInvalidAmount, KindInvalidInput},
		{ErrStale, KindConflict},
		{ErrCorruptSplit, KindIntegrity},
		{ErrClientIDMismatch, KindSafetyCheck},
		{ErrStoreTimeout, KindTransient},
		{NewError(KindConfig, "missing penaltyRate"), KindConfig},
		{errors.New("anything else"), KindInternal},
	}
	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
