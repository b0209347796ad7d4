package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/utils"
)

// JWTAuth validates a Bearer access token and stores the caller's id
// (uint64) and role (model.Role) in the context for UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxRole, model.Role(claims.Role))
			return next(c)
		}
	}
}
