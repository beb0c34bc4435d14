package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/middleware"
	"github.com/bahiamar/hoa-backend/internal/service"
)

// TransactionHandler serves the transaction ledger endpoints.
type TransactionHandler struct {
	txns *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(txns *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{txns: txns}
}

// AllocationRequest is one split entry of a create request. Amounts are pesos.
type AllocationRequest struct {
	TargetID   string         `json:"targetId"`
	TargetName string         `json:"targetName,omitempty"`
	Type       string         `json:"type"`
	CategoryID string         `json:"categoryId,omitempty"`
	Amount     float64        `json:"amount"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// CreateTransactionRequest represents the create transaction request body.
// Amounts arrive as pesos and are converted to centavos at this boundary.
type CreateTransactionRequest struct {
	Date          string              `json:"date"`
	Amount        float64             `json:"amount"`
	CategoryID    string              `json:"categoryId,omitempty"`
	CategoryName  string              `json:"categoryName,omitempty"`
	VendorID      string              `json:"vendorId,omitempty"`
	VendorName    string              `json:"vendorName,omitempty"`
	AccountID     string              `json:"accountId,omitempty"`
	PaymentMethod string              `json:"paymentMethod,omitempty"`
	UnitID        string              `json:"unitId,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	Allocations   []AllocationRequest `json:"allocations,omitempty"`
}

// CreateTransaction creates a transaction at POST /clients/:clientId/transactions.
func (h *TransactionHandler) CreateTransaction(c echo.Context) error {
	var req CreateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return NewValidationError(c, "Invalid date", []ValidationError{
			{Field: "date", Message: "Must be in YYYY-MM-DD format"},
		})
	}
	amount, err := domain.CentavosFromFloat(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a representable money amount"},
		})
	}

	allocations := make([]domain.Allocation, 0, len(req.Allocations))
	for i, ar := range req.Allocations {
		aAmount, err := domain.CentavosFromFloat(ar.Amount)
		if err != nil {
			return NewValidationError(c, "Invalid allocation amount", []ValidationError{
				{Field: "allocations[" + strconv.Itoa(i) + "].amount", Message: "Must be a representable money amount"},
			})
		}
		allocations = append(allocations, domain.Allocation{
			TargetID:   ar.TargetID,
			TargetName: ar.TargetName,
			Type:       domain.AllocationType(ar.Type),
			CategoryID: ar.CategoryID,
			Amount:     aAmount,
			Metadata:   ar.Metadata,
		})
	}

	input := service.CreateTransactionInput{
		Date:          date,
		Amount:        amount,
		CategoryID:    req.CategoryID,
		CategoryName:  req.CategoryName,
		VendorID:      req.VendorID,
		VendorName:    req.VendorName,
		AccountID:     req.AccountID,
		PaymentMethod: req.PaymentMethod,
		UnitID:        req.UnitID,
		Notes:         req.Notes,
		Allocations:   allocations,
	}

	p := middleware.GetPrincipal(c)
	txn, err := h.txns.Create(c.Request().Context(), c.Param("clientId"), p.UserID, input)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusCreated, txn)
}

// GetTransaction returns one transaction at GET /clients/:clientId/transactions/:id.
func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	txn, err := h.txns.Get(c.Request().Context(), c.Param("clientId"), c.Param("id"))
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, txn)
}

// ListTransactions lists transactions at GET /clients/:clientId/transactions.
// Optional query filters: startDate, endDate (YYYY-MM-DD), categoryId,
// vendorId, unitId, limit.
func (h *TransactionHandler) ListTransactions(c echo.Context) error {
	filters := &domain.TransactionFilters{
		CategoryID: c.QueryParam("categoryId"),
		VendorID:   c.QueryParam("vendorId"),
		UnitID:     c.QueryParam("unitId"),
	}
	if raw := c.QueryParam("startDate"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return NewValidationError(c, "Invalid startDate", []ValidationError{
				{Field: "startDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		filters.StartDate = &d
	}
	if raw := c.QueryParam("endDate"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return NewValidationError(c, "Invalid endDate", []ValidationError{
				{Field: "endDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		filters.EndDate = &d
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return NewValidationError(c, "Invalid limit", []ValidationError{
				{Field: "limit", Message: "Must be a non-negative number"},
			})
		}
		filters.Limit = n
	}

	txns, err := h.txns.List(c.Request().Context(), c.Param("clientId"), filters)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, txns)
}

// DeleteTransaction removes a transaction and reverses its ledger effects at
// DELETE /clients/:clientId/transactions/:id.
func (h *TransactionHandler) DeleteTransaction(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	if err := h.txns.Delete(c.Request().Context(), c.Param("clientId"), p, c.Param("id")); err != nil {
		return Problem(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
