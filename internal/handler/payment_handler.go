package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/middleware"
	"github.com/bahiamar/hoa-backend/internal/service"
	"github.com/bahiamar/hoa-backend/internal/websocket"
)

// PaymentHandler serves the payment distribution endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
	clients  *service.ClientService
	hub      *websocket.Hub
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *service.PaymentService, clients *service.ClientService, hub *websocket.Hub) *PaymentHandler {
	return &PaymentHandler{payments: payments, clients: clients, hub: hub}
}

// PreviewPaymentRequest describes a tendered payment. The amount is pesos.
type PreviewPaymentRequest struct {
	Amount float64 `json:"amount"`
	// AsOf backdates penalty computation, YYYY-MM-DD.
	AsOf string `json:"asOf,omitempty"`
	// SelectedMonth restricts coverage to fiscal months at or before this one.
	SelectedMonth      int  `json:"selectedMonth,omitempty"`
	RequireObligations bool `json:"requireObligations,omitempty"`
}

// CommitPaymentRequest records a previewed payment.
type CommitPaymentRequest struct {
	PreviewPaymentRequest
	Date          string   `json:"date"`
	PaymentMethod string   `json:"paymentMethod,omitempty"`
	AccountID     string   `json:"accountId,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Signature     string   `json:"signature"`
	NotifyEmails  []string `json:"notifyEmails,omitempty"`
}

// CommitPaymentResponse returns the executed plan and the recorded transaction.
type CommitPaymentResponse struct {
	Plan        *domain.PaymentPlan `json:"plan"`
	Transaction *domain.Transaction `json:"transaction"`
}

// toInput converts the wire request, resolving civil dates in the client's
// timezone so grace-day boundaries line up with the ledger.
func (r *PreviewPaymentRequest) toInput(c echo.Context, loc *time.Location) (service.PreviewPaymentInput, error) {
	amount, err := domain.CentavosFromFloat(r.Amount)
	if err != nil {
		return service.PreviewPaymentInput{}, NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a representable money amount"},
		})
	}
	input := service.PreviewPaymentInput{
		UnitID:             c.Param("unitId"),
		Amount:             amount,
		SelectedMonth:      r.SelectedMonth,
		RequireObligations: r.RequireObligations,
	}
	if r.AsOf != "" {
		d, err := time.ParseInLocation("2006-01-02", r.AsOf, loc)
		if err != nil {
			return service.PreviewPaymentInput{}, NewValidationError(c, "Invalid asOf", []ValidationError{
				{Field: "asOf", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		input.AsOf = &d
	}
	return input, nil
}

// location resolves the tenant's timezone for request date parsing.
func (h *PaymentHandler) location(c echo.Context) (*time.Location, error) {
	client, err := h.clients.Get(c.Request().Context(), c.Param("clientId"))
	if err != nil {
		return nil, Problem(c, err)
	}
	return h.clients.Location(client), nil
}

// PreviewPayment computes a distribution plan at
// POST /clients/:clientId/units/:unitId/payments/preview.
func (h *PaymentHandler) PreviewPayment(c echo.Context) error {
	var req PreviewPaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	loc, err := h.location(c)
	if err != nil {
		return err
	}
	input, err := req.toInput(c, loc)
	if err != nil {
		return err
	}
	plan, err := h.payments.Preview(c.Request().Context(), c.Param("clientId"), input)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, plan)
}

// CommitPayment records a previewed payment at
// POST /clients/:clientId/units/:unitId/payments.
func (h *PaymentHandler) CommitPayment(c echo.Context) error {
	var req CommitPaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	loc, err := h.location(c)
	if err != nil {
		return err
	}
	preview, err := req.toInput(c, loc)
	if err != nil {
		return err
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, loc)
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "date", Message: "Must be in YYYY-MM-DD format"},
		})
	}
	if req.Signature == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "signature", Message: "Plan signature from the preview is required"},
		})
	}

	input := service.CommitPaymentInput{
		PreviewPaymentInput: preview,
		Date:                date,
		PaymentMethod:       req.PaymentMethod,
		AccountID:           req.AccountID,
		Notes:               req.Notes,
		Signature:           req.Signature,
		NotifyEmails:        req.NotifyEmails,
	}

	p := middleware.GetPrincipal(c)
	clientID := c.Param("clientId")
	plan, txn, err := h.payments.Commit(c.Request().Context(), clientID, p.UserID, input)
	if err != nil {
		return Problem(c, err)
	}
	h.hub.Broadcast(clientID, websocket.PaymentCreated(txn))
	return c.JSON(http.StatusCreated, CommitPaymentResponse{Plan: plan, Transaction: txn})
}
