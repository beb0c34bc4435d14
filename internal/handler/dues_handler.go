package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bahiamar/hoa-backend/internal/service"
)

// DuesHandler serves HOA dues ledger endpoints.
type DuesHandler struct {
	dues *service.DuesService
}

// NewDuesHandler creates a new DuesHandler
func NewDuesHandler(dues *service.DuesService) *DuesHandler {
	return &DuesHandler{dues: dues}
}

// GetUnitDues returns one unit's dues record at
// GET /clients/:clientId/units/:unitId/dues/:year.
func (h *DuesHandler) GetUnitDues(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return NewValidationError(c, "Invalid fiscal year", []ValidationError{
			{Field: "year", Message: "Must be a number"},
		})
	}
	rec, err := h.dues.EnsureYear(c.Request().Context(), c.Param("clientId"), c.Param("unitId"), year)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ListYearDues returns every unit's dues record for a fiscal year at
// GET /clients/:clientId/dues/:year.
func (h *DuesHandler) ListYearDues(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return NewValidationError(c, "Invalid fiscal year", []ValidationError{
			{Field: "year", Message: "Must be a number"},
		})
	}
	records, err := h.dues.ListYear(c.Request().Context(), c.Param("clientId"), year)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, records)
}
