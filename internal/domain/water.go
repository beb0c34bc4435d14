package domain

import (
	"fmt"
	"time"
)

// WaterReadings stores the meter readings captured for one fiscal month.
// Keys of Readings are unit IDs; values are cumulative meter counts in m³.
type WaterReadings struct {
	FiscalYear  int              `json:"fiscalYear"`
	FiscalMonth int              `json:"fiscalMonth"`
	Readings    map[string]int64 `json:"readings"`
	CommonArea  int64            `json:"commonArea,omitempty"`
	Timestamp   time.Time        `json:"timestamp,omitempty"`
}

// BillStatus is the payment state of one unit's bill entry.
type BillStatus string

const (
	BillUnpaid BillStatus = "unpaid"
	BillPaid   BillStatus = "paid"
)

// BillPayment records one payment applied to a unit's bill entry.
type BillPayment struct {
	TransactionID  string    `json:"transactionId"`
	Amount         Centavos  `json:"amount"`
	BaseChargePaid Centavos  `json:"baseChargePaid"`
	PenaltyPaid    Centavos  `json:"penaltyPaid"`
	Date           time.Time `json:"date"`
}

// UnitBill is one unit's entry within a quarterly water bill.
type UnitBill struct {
	PriorReading      int64         `json:"priorReading"`
	CurrentReading    int64         `json:"currentReading"`
	Consumption       int64         `json:"consumption"`
	MeterReset        bool          `json:"meterReset,omitempty"`
	CarWashCount      int           `json:"carWashCount,omitempty"`
	BoatWashCount     int           `json:"boatWashCount,omitempty"`
	CurrentCharge     Centavos      `json:"currentCharge"`
	PenaltyAmount     Centavos      `json:"penaltyAmount"`
	PaidAmount        Centavos      `json:"paidAmount"`
	Status            BillStatus    `json:"status"`
	LastPenaltyUpdate *time.Time    `json:"lastPenaltyUpdate,omitempty"`
	Payments          []BillPayment `json:"payments,omitempty"`
}

// TotalAmount is currentCharge + penaltyAmount.
func (b *UnitBill) TotalAmount() Centavos {
	return b.CurrentCharge + b.PenaltyAmount
}

// Outstanding is the unpaid remainder, never negative.
func (b *UnitBill) Outstanding() Centavos {
	out := b.TotalAmount() - b.PaidAmount
	if out < 0 {
		return 0
	}
	return out
}

// OutstandingPenalty is the accrued penalty not yet covered. Payments consume
// penalty before principal, so everything paid so far counts against the
// penalty first.
func (b *UnitBill) OutstandingPenalty() Centavos {
	rem := b.PenaltyAmount - b.PaidAmount
	if rem < 0 {
		return 0
	}
	return rem
}

// OutstandingPrincipal is the unpaid base charge after penalty-first
// consumption of payments.
func (b *UnitBill) OutstandingPrincipal() Centavos {
	return b.Outstanding() - b.OutstandingPenalty()
}

// WaterBill is one quarter's bill for a client, with one entry per unit.
type WaterBill struct {
	FiscalYear     int                  `json:"fiscalYear"`
	Quarter        int                  `json:"quarter"`
	BillDate       time.Time            `json:"billDate"`
	DueDate        time.Time            `json:"dueDate"`
	ConfigSnapshot WaterConfig          `json:"configSnapshot"`
	CommonArea     int64                `json:"commonAreaConsumption,omitempty"`
	Units          map[string]*UnitBill `json:"units"`
}

// ID returns the bill's document ID, e.g. "2026-Q1".
func (b *WaterBill) ID() string {
	return WaterBillID(b.FiscalYear, b.Quarter)
}

// WaterBillID formats the canonical bill document ID for a fiscal quarter.
func WaterBillID(fiscalYear, quarter int) string {
	return fmt.Sprintf("%04d-Q%d", fiscalYear, quarter)
}

// WaterReadingsID formats the canonical readings document ID: fiscal year
// plus the zero-padded fiscal month index 00..11.
func WaterReadingsID(fiscalYear, fiscalMonth int) string {
	return fmt.Sprintf("%04d-%02d", fiscalYear, fiscalMonth)
}
