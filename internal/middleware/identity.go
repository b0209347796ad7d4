package middleware

// identity.go holds the context keys written by JWTAuth and the accessors
// handlers use to read the authenticated caller.

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/utils"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated user's id.  ok is false on routes
// not behind JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role, empty when anonymous.
func Role(c echo.Context) model.Role {
	r, _ := c.Get(ctxRole).(model.Role)
	return r
}

// rateIdentity names the caller for rate-limit keys.  The limiter runs
// before JWTAuth, so a bearer token is verified here when present;
// anything else counts as "anon".
func rateIdentity(c echo.Context, secret string) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	auth := c.Request().Header.Get("Authorization")
	if secret == "" || !strings.HasPrefix(auth, "Bearer ") {
		return "anon"
	}
	claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return "anon"
	}
	return strconv.FormatUint(claims.UserID, 10)
}
