package domain

// Vendor is a payee configured by the client.
type Vendor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PaymentMethod is a client-configured payment instrument (bank account,
// cash drawer, card terminal).
type PaymentMethod struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
