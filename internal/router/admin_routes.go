package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-api/internal/handler"
	"github.com/iliyamo/library-api/internal/middleware"
	"github.com/iliyamo/library-api/internal/model"
)

// AdminHandlers groups the handlers behind the ADMIN role.
type AdminHandlers struct {
	Users        *handler.UserHandler
	Catalog      *handler.CatalogHandler
	Copies       *handler.CopyHandler
	Loans        *handler.LoanHandler
	Reservations *handler.ReservationHandler
}

// RegisterAdmin registers the ADMIN-only endpoints under /v1.  invalidate
// runs on every route so successful writes drop the public cache.
func RegisterAdmin(e *echo.Echo, h AdminHandlers, jwtSecret string, invalidate echo.MiddlewareFunc) {
	g := e.Group("/v1")
	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		invalidate,
	}

	// ---- Users ----
	g.GET("/users", h.Users.List, admin...)
	g.POST("/users", h.Users.Create, admin...)
	g.GET("/users/:id", h.Users.Get, admin...)
	g.PUT("/users/:id", h.Users.Update, admin...)
	g.DELETE("/users/:id", h.Users.Delete, admin...)

	// ---- Catalogue ----
	g.POST("/categories", h.Catalog.CreateCategory, admin...)
	g.PUT("/categories/:id", h.Catalog.UpdateCategory, admin...)
	g.DELETE("/categories/:id", h.Catalog.DeleteCategory, admin...)
	g.POST("/books", h.Catalog.CreateBook, admin...)
	g.PUT("/books/:id", h.Catalog.UpdateBook, admin...)
	g.DELETE("/books/:id", h.Catalog.DeleteBook, admin...)

	// ---- Copies ----
	g.POST("/copies", h.Copies.Create, admin...)
	g.PUT("/copies/:id", h.Copies.Update, admin...)
	g.PATCH("/copies/:id/status", h.Copies.SetStatus, admin...)
	g.DELETE("/copies/:id", h.Copies.Delete, admin...)

	// ---- Loans ----
	g.POST("/loans", h.Loans.Create, admin...)
	g.GET("/loans", h.Loans.List, admin...)
	g.POST("/loans/sweep-overdue", h.Loans.SweepOverdue, admin...)
	g.GET("/loans/:id", h.Loans.Get, admin...)
	g.PATCH("/loans/:id/return", h.Loans.Return, admin...)
	g.PUT("/loans/:id", h.Loans.UpdateDueDate, admin...)
	g.DELETE("/loans/:id", h.Loans.Delete, admin...)

	// ---- Reservations ----
	g.POST("/reservations", h.Reservations.Create, admin...)
	g.GET("/reservations", h.Reservations.List, admin...)
	g.GET("/reservations/:id", h.Reservations.Get, admin...)
	g.PATCH("/reservations/:id/fulfill", h.Reservations.Fulfill, admin...)
	g.PATCH("/reservations/:id/cancel", h.Reservations.Cancel, admin...)
	g.DELETE("/reservations/:id", h.Reservations.Delete, admin...)
}
