package service

import (
	"testing"
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/store"
	"github.com/bahiamar/hoa-backend/internal/store/memory"
	"github.com/bahiamar/hoa-backend/internal/testutil"
)

// testStack wires every service against one in-memory store with a frozen
// clock, mirroring the wiring in cmd/api.
type testStack struct {
	store    *memory.Store
	audit    *AuditService
	clients  *ClientService
	credit   *CreditService
	dues     *DuesService
	readings *ReadingsService
	penalty  *PenaltyService
	bills    *WaterBillService
	txns     *TransactionService
	payments *PaymentService
	reports  *ReportService
}

func newTestStack(t *testing.T, now time.Time) *testStack {
	t.Helper()
	clock := testutil.FrozenClock(now)

	s := &testStack{store: memory.New()}
	s.audit = NewAuditService(s.store)
	s.clients = NewClientService(s.store, s.audit)
	s.credit = NewCreditService(s.store)
	s.credit.now = clock
	s.dues = NewDuesService(s.store, s.clients, s.audit)
	s.dues.now = clock
	s.readings = NewReadingsService(s.store, s.audit)
	s.readings.now = clock
	s.penalty = NewPenaltyService(s.store, s.clients)
	s.penalty.now = clock
	s.bills = NewWaterBillService(s.store, s.clients, s.readings, s.penalty, s.audit)
	s.bills.now = clock
	s.txns = NewTransactionService(s.store, s.clients, s.credit, s.dues, s.bills, s.audit, fiscal.NewIDGenerator(fiscal.DefaultLocation))
	s.txns.now = clock
	s.payments = NewPaymentService(s.store, s.clients, s.credit, s.dues, s.bills, s.txns, s.penalty, s.audit, nil)
	s.payments.now = clock
	s.reports = NewReportService(s.clients, s.credit, s.dues, s.bills, s.txns)
	s.reports.now = clock
	return s
}

// seedBill writes one quarter bill directly, bypassing generation.
func seedBill(t *testing.T, s *testStack, clientID string, bill *domain.WaterBill) {
	t.Helper()
	for _, entry := range bill.Units {
		if entry.Status == "" {
			entry.Status = domain.BillUnpaid
		}
	}
	testutil.MustSet(t, s.store, store.BillPath(clientID, bill.ID()), bill)
}
