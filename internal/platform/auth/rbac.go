package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AdminRole is the administrative role that passes every role check.
const AdminRole = "ADMIN"

// Clinical and front-desk roles issued by the identity provider.
const (
	DoctorRole       = "DOCTOR"
	NurseRole        = "NURSE"
	ReceptionistRole = "RECEPTIONIST"
	PatientRole      = "PATIENT"
)

// IsAdministrative reports whether a role is an administrative role.
func IsAdministrative(role string) bool {
	return role == AdminRole
}

// RequireRole returns middleware that rejects callers lacking all of the
// given roles. An unauthenticated caller gets 401, a caller with the wrong
// role gets 403. ADMIN always passes. This is the only point in the request
// path that produces a user-visible authorization failure.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident := IdentityFromContext(c.Request().Context())
			if ident == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if IsAdministrative(ident.Role) {
				return next(c)
			}
			for _, required := range roles {
				if ident.Role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequireAuthenticated returns middleware that rejects anonymous callers.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IdentityFromContext(c.Request().Context()) == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}
