package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-api/internal/handler"
	"github.com/iliyamo/library-api/internal/middleware"
	"github.com/iliyamo/library-api/internal/model"
)

// RegisterRoutes registers the health check.  db may be nil when the
// in-memory store is used.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// caller's profile at /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token and keeps the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin, model.RoleUser))
}

// RegisterPublic registers the unauthenticated catalogue reads.  cache
// wraps each of them; pass middleware.NewRedisCache output.
func RegisterPublic(e *echo.Echo, cat *handler.CatalogHandler, copies *handler.CopyHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/categories", cat.ListCategories, cache)
	g.GET("/categories/:id", cat.GetCategory, cache)
	g.GET("/books", cat.ListBooks, cache)
	g.GET("/books/:id", cat.GetBook, cache)
	g.GET("/copies", copies.List, cache)
	g.GET("/copies/:id", copies.Get, cache)
}
