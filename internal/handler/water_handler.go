package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/middleware"
	"github.com/bahiamar/hoa-backend/internal/service"
	"github.com/bahiamar/hoa-backend/internal/websocket"
)

// WaterHandler serves meter readings, quarterly bills and penalty runs.
type WaterHandler struct {
	readings *service.ReadingsService
	bills    *service.WaterBillService
	penalty  *service.PenaltyService
	hub      *websocket.Hub
}

// NewWaterHandler creates a new WaterHandler
func NewWaterHandler(readings *service.ReadingsService, bills *service.WaterBillService, penalty *service.PenaltyService, hub *websocket.Hub) *WaterHandler {
	return &WaterHandler{readings: readings, bills: bills, penalty: penalty, hub: hub}
}

// GetReadings returns one fiscal month's meter readings at
// GET /clients/:clientId/water/readings/:year/:month. The month is the fiscal
// month index 0..11.
func (h *WaterHandler) GetReadings(c echo.Context) error {
	year, month, err := readingsParams(c)
	if err != nil {
		return err
	}
	r, err := h.readings.Get(c.Request().Context(), c.Param("clientId"), year, month)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// UpsertReadingsRequest carries cumulative meter counts in m³ keyed by unit.
type UpsertReadingsRequest struct {
	Readings   map[string]int64 `json:"readings"`
	CommonArea int64            `json:"commonArea,omitempty"`
}

// UpsertReadings merges meter readings at
// PUT /clients/:clientId/water/readings/:year/:month.
func (h *WaterHandler) UpsertReadings(c echo.Context) error {
	year, month, err := readingsParams(c)
	if err != nil {
		return err
	}
	var req UpsertReadingsRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if len(req.Readings) == 0 {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "readings", Message: "At least one reading is required"},
		})
	}
	in := &domain.WaterReadings{
		FiscalYear:  year,
		FiscalMonth: month,
		Readings:    req.Readings,
		CommonArea:  req.CommonArea,
	}
	p := middleware.GetPrincipal(c)
	if err := h.readings.Upsert(c.Request().Context(), c.Param("clientId"), p.UserID, in); err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, in)
}

func readingsParams(c echo.Context) (year, month int, err error) {
	year, aerr := strconv.Atoi(c.Param("year"))
	if aerr != nil {
		return 0, 0, NewValidationError(c, "Invalid fiscal year", []ValidationError{
			{Field: "year", Message: "Must be a number"},
		})
	}
	month, aerr = strconv.Atoi(c.Param("month"))
	if aerr != nil || month < 0 || month > 11 {
		return 0, 0, NewValidationError(c, "Invalid fiscal month", []ValidationError{
			{Field: "month", Message: "Must be a fiscal month index 0..11"},
		})
	}
	return year, month, nil
}

// GenerateBillRequest requests generation of one quarter's water bill.
type GenerateBillRequest struct {
	FiscalYear int            `json:"fiscalYear"`
	Quarter    int            `json:"quarter"`
	CarWashes  map[string]int `json:"carWashes,omitempty"`
	BoatWashes map[string]int `json:"boatWashes,omitempty"`
}

// GenerateBill generates a quarterly bill at POST /clients/:clientId/water/bills.
func (h *WaterHandler) GenerateBill(c echo.Context) error {
	var req GenerateBillRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	input := service.GenerateBillInput{
		FiscalYear: req.FiscalYear,
		Quarter:    req.Quarter,
		CarWashes:  req.CarWashes,
		BoatWashes: req.BoatWashes,
	}
	p := middleware.GetPrincipal(c)
	clientID := c.Param("clientId")
	bill, err := h.bills.Generate(c.Request().Context(), clientID, p.UserID, input)
	if err != nil {
		return Problem(c, err)
	}
	h.hub.Broadcast(clientID, websocket.WaterBillGenerated(bill))
	return c.JSON(http.StatusCreated, bill)
}

// GetBill returns one quarter's bill at
// GET /clients/:clientId/water/bills/:year/:quarter.
func (h *WaterHandler) GetBill(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return NewValidationError(c, "Invalid fiscal year", []ValidationError{
			{Field: "year", Message: "Must be a number"},
		})
	}
	quarter, err := strconv.Atoi(c.Param("quarter"))
	if err != nil || quarter < 1 || quarter > 4 {
		return NewValidationError(c, "Invalid quarter", []ValidationError{
			{Field: "quarter", Message: "Must be 1..4"},
		})
	}
	bill, err := h.bills.Get(c.Request().Context(), c.Param("clientId"), year, quarter)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

// ListBills returns every bill at GET /clients/:clientId/water/bills.
func (h *WaterHandler) ListBills(c echo.Context) error {
	bills, err := h.bills.List(c.Request().Context(), c.Param("clientId"))
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, bills)
}

// ListOpenBills returns a unit's bills with an outstanding balance at
// GET /clients/:clientId/units/:unitId/water/open.
func (h *WaterHandler) ListOpenBills(c echo.Context) error {
	bills, err := h.bills.ListOpen(c.Request().Context(), c.Param("clientId"), c.Param("unitId"))
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, bills)
}

// RecalculatePenalties runs a penalty pass over every unpaid bill at
// POST /clients/:clientId/water/penalties/recalculate.
func (h *WaterHandler) RecalculatePenalties(c echo.Context) error {
	clientID := c.Param("clientId")
	result, err := h.penalty.RecalculateAll(c.Request().Context(), clientID)
	if err != nil {
		return Problem(c, err)
	}
	h.hub.Broadcast(clientID, websocket.PenaltyRunCompleted(result))
	return c.JSON(http.StatusOK, result)
}
