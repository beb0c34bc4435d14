package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bahiamar/hoa-backend/internal/port"
	"github.com/bahiamar/hoa-backend/internal/service"
)

// ReportHandler serves read-only reporting endpoints.
type ReportHandler struct {
	reports *service.ReportService
	rates   port.ExchangeRateProvider
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports *service.ReportService, rates port.ExchangeRateProvider) *ReportHandler {
	return &ReportHandler{reports: reports, rates: rates}
}

// GetStatement returns a unit's statement of account at
// GET /clients/:clientId/units/:unitId/statement/:year.
func (h *ReportHandler) GetStatement(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return NewValidationError(c, "Invalid fiscal year", []ValidationError{
			{Field: "year", Message: "Must be a number"},
		})
	}
	st, err := h.reports.Statement(c.Request().Context(), c.Param("clientId"), c.Param("unitId"), year)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// GetBudgetVsActual returns the budget-vs-actual report at
// GET /clients/:clientId/reports/budget-actual/:year.
func (h *ReportHandler) GetBudgetVsActual(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return NewValidationError(c, "Invalid fiscal year", []ValidationError{
			{Field: "year", Message: "Must be a number"},
		})
	}
	report, err := h.reports.BudgetVsActual(c.Request().Context(), c.Param("clientId"), year)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// ExchangeRateResponse is one currency pair's rate for display conversion.
type ExchangeRateResponse struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
	Rate  string `json:"rate"`
	Date  string `json:"date"`
}

// GetExchangeRate resolves a display conversion rate at
// GET /rates?base=MXN&quote=USD&date=YYYY-MM-DD. The date defaults to today.
func (h *ReportHandler) GetExchangeRate(c echo.Context) error {
	base := c.QueryParam("base")
	quote := c.QueryParam("quote")
	if base == "" || quote == "" {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "base", Message: "Base and quote currencies are required"},
		})
	}
	date := time.Now().UTC()
	if raw := c.QueryParam("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return NewValidationError(c, "Invalid date", []ValidationError{
				{Field: "date", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		date = d
	}
	rate, err := h.rates.Rate(c.Request().Context(), base, quote, date)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, ExchangeRateResponse{
		Base:  rate.Base,
		Quote: rate.Quote,
		Rate:  rate.Rate.String(),
		Date:  rate.Date.Format("2006-01-02"),
	})
}
