package domain

// DuesFrequency is how a client bills HOA dues.
type DuesFrequency string

const (
	DuesMonthly   DuesFrequency = "monthly"
	DuesQuarterly DuesFrequency = "quarterly"
)

// DefaultDuesGraceDays is the grace period applied to dues due dates when the
// client configuration does not override it.
const DefaultDuesGraceDays = 10

// Client is a tenant association served by the system.
type Client struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	FiscalYearStartMonth int           `json:"fiscalYearStartMonth"`
	DisplayCurrency      string        `json:"displayCurrency"`
	DuesFrequency        DuesFrequency `json:"duesFrequency"`
	DuesGraceDays        int           `json:"duesGraceDays"`
	Timezone             string        `json:"timezone,omitempty"`
	Water                *WaterConfig  `json:"waterConfig,omitempty"`
}

// Validate checks structural client configuration.
func (c *Client) Validate() error {
	if c.ID == "" {
		return NewError(KindInvalidInput, "client id is required")
	}
	if c.FiscalYearStartMonth < 1 || c.FiscalYearStartMonth > 12 {
		return NewError(KindInvalidInput, "fiscalYearStartMonth must be 1..12")
	}
	if c.DuesFrequency != DuesMonthly && c.DuesFrequency != DuesQuarterly {
		return NewError(KindInvalidInput, "duesFrequency must be monthly or quarterly")
	}
	return nil
}

// GraceDays returns the configured dues grace period or the default.
func (c *Client) GraceDays() int {
	if c.DuesGraceDays > 0 {
		return c.DuesGraceDays
	}
	return DefaultDuesGraceDays
}

// WaterConfig carries per-client water billing parameters. Rates are in
// centavos; PenaltyRate is a monthly fraction (0.05 = 5%).
type WaterConfig struct {
	RatePerM3       Centavos `json:"ratePerM3"`
	MinimumCharge   Centavos `json:"minimumCharge"`
	PenaltyRate     float64  `json:"penaltyRate"`
	PenaltyDays     int      `json:"penaltyDays"`
	CompoundPenalty bool     `json:"compoundPenalty"`
	CarWashRate     Centavos `json:"carWashRate"`
	BoatWashRate    Centavos `json:"boatWashRate"`
	DueDay          int      `json:"dueDay"`
}

// Validate checks the fields penalty recalculation cannot run without.
func (w *WaterConfig) Validate() error {
	if w == nil {
		return NewError(KindConfig, "water config is missing")
	}
	if w.PenaltyRate <= 0 {
		return NewError(KindConfig, "water config missing penaltyRate")
	}
	if w.PenaltyDays <= 0 {
		return NewError(KindConfig, "water config missing penaltyDays")
	}
	if w.RatePerM3 < 0 || w.MinimumCharge < 0 {
		return NewError(KindConfig, "water rates must be non-negative")
	}
	return nil
}
