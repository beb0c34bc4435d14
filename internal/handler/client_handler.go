package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/middleware"
	"github.com/bahiamar/hoa-backend/internal/service"
)

// ClientHandler serves client, unit and catalog endpoints.
type ClientHandler struct {
	clients *service.ClientService
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clients *service.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// ListClients returns the clients visible to the caller at GET /clients.
func (h *ClientHandler) ListClients(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	clients, err := h.clients.List(c.Request().Context(), p)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, clients)
}

// GetClient returns one client at GET /clients/:clientId.
func (h *ClientHandler) GetClient(c echo.Context) error {
	client, err := h.clients.Get(c.Request().Context(), c.Param("clientId"))
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, client)
}

// UpdateWaterConfigRequest carries water billing parameters in centavos.
type UpdateWaterConfigRequest struct {
	RatePerM3       int64   `json:"ratePerM3"`
	MinimumCharge   int64   `json:"minimumCharge"`
	PenaltyRate     float64 `json:"penaltyRate"`
	PenaltyDays     int     `json:"penaltyDays"`
	CompoundPenalty bool    `json:"compoundPenalty"`
	CarWashRate     int64   `json:"carWashRate"`
	BoatWashRate    int64   `json:"boatWashRate"`
	DueDay          int     `json:"dueDay"`
}

// UpdateWaterConfig replaces the water config at PUT /clients/:clientId/water-config.
func (h *ClientHandler) UpdateWaterConfig(c echo.Context) error {
	var req UpdateWaterConfigRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	cfg := domain.WaterConfig{
		RatePerM3:       domain.Centavos(req.RatePerM3),
		MinimumCharge:   domain.Centavos(req.MinimumCharge),
		PenaltyRate:     req.PenaltyRate,
		PenaltyDays:     req.PenaltyDays,
		CompoundPenalty: req.CompoundPenalty,
		CarWashRate:     domain.Centavos(req.CarWashRate),
		BoatWashRate:    domain.Centavos(req.BoatWashRate),
		DueDay:          req.DueDay,
	}
	p := middleware.GetPrincipal(c)
	if err := h.clients.UpdateWaterConfig(c.Request().Context(), c.Param("clientId"), p.UserID, cfg); err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// ListUnits returns the client's units at GET /clients/:clientId/units.
func (h *ClientHandler) ListUnits(c echo.Context) error {
	units, err := h.clients.ListUnits(c.Request().Context(), c.Param("clientId"))
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, units)
}

// GetUnit returns one unit at GET /clients/:clientId/units/:unitId.
func (h *ClientHandler) GetUnit(c echo.Context) error {
	unit, err := h.clients.GetUnit(c.Request().Context(), c.Param("clientId"), c.Param("unitId"))
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, unit)
}

// ListCategories returns the chart of categories at GET /clients/:clientId/categories.
func (h *ClientHandler) ListCategories(c echo.Context) error {
	categories, err := h.clients.ListCategories(c.Request().Context(), c.Param("clientId"))
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, categories)
}

// ListVendors returns the vendor catalog at GET /clients/:clientId/vendors.
func (h *ClientHandler) ListVendors(c echo.Context) error {
	vendors, err := h.clients.ListVendors(c.Request().Context(), c.Param("clientId"))
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, vendors)
}

// ListBudgets returns one fiscal year's budgets at GET /clients/:clientId/budgets/:year.
func (h *ClientHandler) ListBudgets(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return NewValidationError(c, "Invalid fiscal year", []ValidationError{
			{Field: "year", Message: "Must be a number"},
		})
	}
	budgets, err := h.clients.ListBudgets(c.Request().Context(), c.Param("clientId"), year)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, budgets)
}

// SetBudgetRequest sets one category's annual budget in centavos.
type SetBudgetRequest struct {
	CategoryID   string `json:"categoryId"`
	AnnualAmount int64  `json:"annualAmount"`
}

// SetBudget upserts a category budget at PUT /clients/:clientId/budgets/:year.
func (h *ClientHandler) SetBudget(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return NewValidationError(c, "Invalid fiscal year", []ValidationError{
			{Field: "year", Message: "Must be a number"},
		})
	}
	var req SetBudgetRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.CategoryID == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "categoryId", Message: "Category ID is required"},
		})
	}
	b := domain.Budget{
		FiscalYear:   year,
		CategoryID:   req.CategoryID,
		AnnualAmount: domain.Centavos(req.AnnualAmount),
	}
	p := middleware.GetPrincipal(c)
	if err := h.clients.SetBudget(c.Request().Context(), c.Param("clientId"), p.UserID, b); err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
