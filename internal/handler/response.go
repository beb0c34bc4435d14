package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Details  map[string]any    `json:"details,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation  = "https://bahiamar.app/errors/validation"
	ErrorTypeNotFound    = "https://bahiamar.app/errors/not-found"
	ErrorTypeForbidden   = "https://bahiamar.app/errors/forbidden"
	ErrorTypeConflict    = "https://bahiamar.app/errors/conflict"
	ErrorTypeIntegrity   = "https://bahiamar.app/errors/integrity"
	ErrorTypeConfig      = "https://bahiamar.app/errors/configuration"
	ErrorTypeSafetyCheck = "https://bahiamar.app/errors/safety-check"
	ErrorTypeTransient   = "https://bahiamar.app/errors/transient"
	ErrorTypeInternal    = "https://bahiamar.app/errors/internal"
)

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errs []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errs,
	})
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return c.JSON(http.StatusNotFound, ProblemDetails{
		Type:     ErrorTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return c.JSON(http.StatusConflict, ProblemDetails{
		Type:     ErrorTypeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return c.JSON(http.StatusInternalServerError, ProblemDetails{
		Type:     ErrorTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// Problem maps a service error to a Problem Details response by its kind.
// Handlers that need a field-level validation body build it themselves;
// everything else funnels through here.
func Problem(c echo.Context, err error) error {
	var (
		status   int
		probType string
		title    string
	)
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		status, probType, title = http.StatusBadRequest, ErrorTypeValidation, "Validation Error"
	case domain.KindNotFound:
		status, probType, title = http.StatusNotFound, ErrorTypeNotFound, "Not Found"
	case domain.KindForbidden:
		status, probType, title = http.StatusForbidden, ErrorTypeForbidden, "Forbidden"
	case domain.KindConflict:
		status, probType, title = http.StatusConflict, ErrorTypeConflict, "Conflict"
	case domain.KindIntegrity:
		status, probType, title = http.StatusUnprocessableEntity, ErrorTypeIntegrity, "Integrity Violation"
	case domain.KindConfig:
		status, probType, title = http.StatusUnprocessableEntity, ErrorTypeConfig, "Configuration Error"
	case domain.KindSafetyCheck:
		status, probType, title = http.StatusUnprocessableEntity, ErrorTypeSafetyCheck, "Safety Check Failed"
	case domain.KindTransient:
		status, probType, title = http.StatusServiceUnavailable, ErrorTypeTransient, "Temporarily Unavailable"
	default:
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Unhandled service error")
		return NewInternalError(c, "An unexpected error occurred")
	}

	pd := ProblemDetails{
		Type:     probType,
		Title:    title,
		Status:   status,
		Detail:   err.Error(),
		Instance: c.Request().URL.Path,
	}
	var de *domain.Error
	if errors.As(err, &de) {
		pd.Detail = de.Message
		pd.Details = de.Details
	}
	return c.JSON(status, pd)
}
