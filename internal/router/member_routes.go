package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-api/internal/handler"
	"github.com/iliyamo/library-api/internal/middleware"
	"github.com/iliyamo/library-api/internal/model"
)

// RegisterMember registers the self-service endpoints any signed-in user
// may call.  Static segments win over :id in echo's router, so these do
// not collide with the admin routes.
func RegisterMember(e *echo.Echo, loans *handler.LoanHandler, reservations *handler.ReservationHandler,
	jwtSecret string, invalidate echo.MiddlewareFunc) {
	g := e.Group("/v1")
	member := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleUser),
	}
	g.GET("/loans/my-loans", loans.Mine, member...)
	g.GET("/reservations/my-reservations", reservations.Mine, member...)
	g.POST("/reservations/my-reservations", reservations.CreateMine, append(member, invalidate)...)
}
