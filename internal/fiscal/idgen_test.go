package fiscal

import (
	"math/rand"
	"regexp"
	"testing"
	"time"
)

var idPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{6}_\d{3}$`)

func frozenClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestNewTransactionID_Format(t *testing.T) {
	at := time.Date(2025, 2, 1, 14, 30, 45, 123*int(time.Millisecond), DefaultLocation)
	g := NewIDGeneratorWithClock(DefaultLocation, frozenClock(at), rand.New(rand.NewSource(1)))

	id := g.NewTransactionID()
	if !idPattern.MatchString(id) {
		t.Fatalf("ID %q does not match YYYY-MM-DD_HHMMSS_nnn", id)
	}
	if id != "2025-02-01_143045_123" {
		t.Errorf("First issue should use the millisecond, got %q", id)
	}
}

func TestNewTransactionID_UniqueUnderCollision(t *testing.T) {
	at := time.Date(2025, 2, 1, 14, 30, 45, 0, DefaultLocation)
	g := NewIDGeneratorWithClock(DefaultLocation, frozenClock(at), rand.New(rand.NewSource(42)))

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := g.NewTransactionID()
		if seen[id] {
			t.Fatalf("Duplicate ID issued: %q", id)
		}
		seen[id] = true
	}
}

func TestTransactionIDAt_UsesTenantTimezone(t *testing.T) {
	// 2025-02-02 03:30 UTC is still 2025-02-01 in UTC-5.
	at := time.Date(2025, 2, 2, 3, 30, 0, 0, time.UTC)
	g := NewIDGeneratorWithClock(DefaultLocation, frozenClock(at), rand.New(rand.NewSource(1)))

	id := g.TransactionIDAt(at)
	if id[:10] != "2025-02-01" {
		t.Errorf("Expected civil date 2025-02-01 in tenant zone, got %q", id)
	}
}

func TestTransactionIDAt_SortsLexicographically(t *testing.T) {
	g := NewIDGenerator(DefaultLocation)
	a := g.TransactionIDAt(time.Date(2025, 1, 1, 10, 0, 0, 0, DefaultLocation))
	b := g.TransactionIDAt(time.Date(2025, 1, 1, 10, 0, 1, 0, DefaultLocation))
	c := g.TransactionIDAt(time.Date(2025, 3, 1, 0, 0, 0, 0, DefaultLocation))
	if !(a < b && b < c) {
		t.Errorf("IDs not lexicographically ordered by time: %q %q %q", a, b, c)
	}
}
