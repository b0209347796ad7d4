package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/service"
)

// UserHandler is the admin user management API.
type UserHandler struct {
	Users *service.UserService
	Log   *zap.Logger
}

func NewUserHandler(users *service.UserService, log *zap.Logger) *UserHandler {
	if users == nil || log == nil {
		panic("nil dependency passed to NewUserHandler")
	}
	return &UserHandler{Users: users, Log: log}
}

type userReq struct {
	Name     *string     `json:"name"`
	Email    *string     `json:"email"`
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
}

func (r userReq) input() service.UserInput {
	return service.UserInput{Name: r.Name, Email: r.Email, Password: r.Password, Role: r.Role}
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Users.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Create adds a user with any role.
func (h *UserHandler) Create(c echo.Context) error {
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.Create(ctx, req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.Update(ctx, id, req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
