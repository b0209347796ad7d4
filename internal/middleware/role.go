package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-api/internal/model"
)

// RequireRole aborts with 403 unless the caller's role, as stored by
// JWTAuth, is one of roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "insufficient role"})
			}
			return next(c)
		}
	}
}
