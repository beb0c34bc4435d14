package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
)

// The API sits behind an authenticating gateway that terminates the identity
// protocol and forwards the caller as trusted headers. The middleware only
// parses them into a Principal; it never validates credentials itself.
const (
	HeaderUserID         = "X-User-Id"
	HeaderSuperAdmin     = "X-Super-Admin"
	HeaderPropertyAccess = "X-Property-Access"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// PrincipalKey is the context key for the authenticated principal
const PrincipalKey contextKey = "principal"

// Principal returns an Echo middleware that builds the caller's Principal
// from the gateway headers. Requests without a user ID are rejected.
func Principal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get(HeaderUserID)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
			}

			p := &domain.Principal{
				UserID:       userID,
				IsSuperAdmin: c.Request().Header.Get(HeaderSuperAdmin) == "true",
			}
			if raw := c.Request().Header.Get(HeaderPropertyAccess); raw != "" {
				if err := json.Unmarshal([]byte(raw), &p.PropertyAccess); err != nil {
					log.Debug().Err(err).Str("user_id", userID).Msg("Malformed property access header")
					return echo.NewHTTPError(http.StatusUnauthorized, "malformed property access header")
				}
			}

			ctx := context.WithValue(c.Request().Context(), PrincipalKey, p)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// GetPrincipal extracts the authenticated principal from the context.
func GetPrincipal(c echo.Context) *domain.Principal {
	if p, ok := c.Request().Context().Value(PrincipalKey).(*domain.Principal); ok {
		return p
	}
	return nil
}

// RequireClientRead guards read endpoints under /clients/:clientId.
func RequireClientRead() echo.MiddlewareFunc {
	return requireAccess(func(p *domain.Principal, clientID string) bool {
		return p.CanRead(clientID)
	})
}

// RequireClientWrite guards mutating endpoints under /clients/:clientId.
func RequireClientWrite() echo.MiddlewareFunc {
	return requireAccess(func(p *domain.Principal, clientID string) bool {
		return p.CanWrite(clientID)
	})
}

// RequireClientAdmin guards destructive endpoints (delete, import, purge).
func RequireClientAdmin() echo.MiddlewareFunc {
	return requireAccess(func(p *domain.Principal, clientID string) bool {
		return p.IsAdminOf(clientID)
	})
}

func requireAccess(allowed func(*domain.Principal, string) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := GetPrincipal(c)
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
			}
			clientID := c.Param("clientId")
			if clientID == "" || !allowed(p, clientID) {
				return echo.NewHTTPError(http.StatusForbidden, "no access to client")
			}
			return next(c)
		}
	}
}
