package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/testutil"
)

func TestCreditGetDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	cb, err := s.credit.Get(ctx, testutil.FixtureClientID, "1A")
	require.NoError(t, err)
	assert.Equal(t, "1A", cb.UnitID)
	assert.Zero(t, cb.Balance)
	assert.Empty(t, cb.History)
}

func TestCreditApplyAppendsHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	balance, err := s.credit.Apply(ctx, testutil.FixtureClientID, "1A", 50000, "tx-1", "overpayment")
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(50000), balance)

	balance, err = s.credit.Apply(ctx, testutil.FixtureClientID, "1A", -20000, "tx-2", "payment distribution")
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(30000), balance)

	cb, err := s.credit.Get(ctx, testutil.FixtureClientID, "1A")
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(30000), cb.Balance)
	require.Len(t, cb.History, 2)
	assert.Equal(t, domain.Centavos(50000), cb.History[0].Delta)
	assert.Equal(t, domain.Centavos(50000), cb.History[0].NewBalance)
	assert.Equal(t, "tx-1", cb.History[0].TransactionID)
	assert.Equal(t, domain.Centavos(-20000), cb.History[1].Delta)
	assert.Equal(t, domain.Centavos(30000), cb.History[1].NewBalance)
}

func TestCreditApplyRejectsNegativeBalance(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	testutil.SeedCredit(t, s.store, testutil.FixtureClientID, "1A", 10000)

	_, err := s.credit.Apply(ctx, testutil.FixtureClientID, "1A", -10001, "tx-1", "test")
	assert.ErrorIs(t, err, domain.ErrCreditNegative)

	// The failed movement leaves the balance untouched.
	cb, err := s.credit.Get(ctx, testutil.FixtureClientID, "1A")
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(10000), cb.Balance)
}

func TestCreditApplyZeroDeltaIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	testutil.SeedCredit(t, s.store, testutil.FixtureClientID, "1A", 10000)

	balance, err := s.credit.Apply(ctx, testutil.FixtureClientID, "1A", 0, "tx-1", "test")
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(10000), balance)

	cb, err := s.credit.Get(ctx, testutil.FixtureClientID, "1A")
	require.NoError(t, err)
	assert.Empty(t, cb.History)
}
