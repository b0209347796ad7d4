package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/service"
	"github.com/iliyamo/library-api/internal/utils"
)

// AuthHandler serves registration, login and token exchange.
type AuthHandler struct {
	Users     *service.UserService
	JWTSecret string
	Log       *zap.Logger
}

func NewAuthHandler(users *service.UserService, jwtSecret string, log *zap.Logger) *AuthHandler {
	if users == nil || log == nil {
		panic("nil dependency passed to NewAuthHandler")
	}
	return &AuthHandler{Users: users, JWTSecret: jwtSecret, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    *model.User `json:"user"`
	Access  tokenPart   `json:"access"`
	Refresh *tokenPart  `json:"refresh,omitempty"`
}

func sessionResp(s *service.Session) authResp {
	out := authResp{User: s.User, Access: tokenPart{Token: s.AccessToken, Expires: s.AccessExpires}}
	if s.RefreshToken != "" {
		out.Refresh = &tokenPart{Token: s.RefreshToken, Expires: s.RefreshExpires}
	}
	return out
}

// Register creates a USER account and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Users.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, sessionResp(s))
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest(c, "email and password required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Users.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// RefreshAccess returns a new access token and keeps the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Users.RefreshAccess(ctx, req.RefreshToken)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Logout revokes the refresh token in the body, or every refresh token
// of the bearer when the body carries none.  It does not sit behind
// JWTAuth so that a session can end with only its refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if claims, err := utils.ParseAccessToken(h.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
			uid = claims.UserID
		}
	}
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.Logout(ctx, uid, req.RefreshToken); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user's record.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.Get(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}
