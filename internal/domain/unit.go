package domain

// Unit is a residential unit within a client association.
type Unit struct {
	ID                  string   `json:"id"`
	UnitNumber          string   `json:"unitNumber"`
	Owners              []string `json:"owners,omitempty"`
	Managers            []string `json:"managers,omitempty"`
	ScheduledDuesAmount Centavos `json:"scheduledDuesAmount"`
}
