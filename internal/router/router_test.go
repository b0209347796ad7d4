package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/config"
	"github.com/iliyamo/library-api/internal/handler"
	"github.com/iliyamo/library-api/internal/middleware"
	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository/memory"
	"github.com/iliyamo/library-api/internal/service"
)

const testSecret = "router-test-secret"

type app struct {
	t   *testing.T
	e   *echo.Echo
	lib *service.Library
}

func newApp(t *testing.T) *app {
	t.Helper()
	store := memory.New()
	log := zap.NewNop()
	lib := service.NewLibrary(service.Stores{
		Users:        store.Users(),
		Tokens:       store.Tokens(),
		Categories:   store.Categories(),
		Books:        store.Books(),
		Copies:       store.Copies(),
		Loans:        store.Loans(),
		Reservations: store.Reservations(),
	}, nil, service.AuthOptions{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4},
		service.DefaultLifecycleOptions(), log)

	e := echo.New()
	cache := middleware.NewRedisCache(config.CacheConfig{}, nil)
	invalidate := middleware.NewCacheInvalidator(config.CacheConfig{}, nil)

	loans := handler.NewLoanHandler(lib.Loans, log)
	reservations := handler.NewReservationHandler(lib.Reservations, log)
	catalog := handler.NewCatalogHandler(lib.Catalog, log)
	copies := handler.NewCopyHandler(lib.Copies, log)

	RegisterRoutes(e, nil)
	RegisterAuth(e, handler.NewAuthHandler(lib.Users, testSecret, log), testSecret)
	RegisterPublic(e, catalog, copies, cache)
	RegisterMember(e, loans, reservations, testSecret, invalidate)
	RegisterAdmin(e, AdminHandlers{
		Users:        handler.NewUserHandler(lib.Users, log),
		Catalog:      catalog,
		Copies:       copies,
		Loans:        loans,
		Reservations: reservations,
	}, testSecret, invalidate)
	return &app{t: t, e: e, lib: lib}
}

func (a *app) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type session struct {
	User   model.User `json:"user"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

// admin creates an ADMIN account directly and logs in over HTTP.
func (a *app) admin() string {
	a.t.Helper()
	_, err := a.lib.Users.Create(context.Background(), service.UserInput{
		Name:     ptr("Admin"),
		Email:    ptr("admin@example.com"),
		Password: ptr("secret123"),
		Role:     ptr(model.RoleAdmin),
	})
	require.NoError(a.t, err)
	rec := a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "secret123",
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[session](a.t, rec).Access.Token
}

func (a *app) member(name string) (uint64, string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	s := decode[session](a.t, rec)
	return s.User.ID, s.Access.Token
}

// shelve creates a category, a book and one copy; it returns the book
// and copy ids.
func (a *app) shelve(admin, isbn string) (uint64, uint64) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/categories", admin, map[string]string{"name": "Cat " + isbn})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decode[model.Category](a.t, rec)

	rec = a.do(http.MethodPost, "/v1/books", admin, map[string]any{
		"title": "Book " + isbn, "author": "Author", "isbn": isbn, "category_id": cat.ID,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	book := decode[model.BookDetail](a.t, rec)

	rec = a.do(http.MethodPost, "/v1/copies", admin, map[string]any{"book_id": book.ID, "code": "C-" + isbn})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	cp := decode[model.Copy](a.t, rec)
	return book.ID, cp.ID
}

func ptr[T any](v T) *T { return &v }

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	a := newApp(t)
	_, user := a.member("reader")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/loans", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/loans", user, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/v1/categories", user, map[string]string{"name": "x"}).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/me", user, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/loans/my-loans", user, nil).Code)
}

func TestLoanAndReservationLifecycle(t *testing.T) {
	a := newApp(t)
	admin := a.admin()
	borrowerID, _ := a.member("borrower")
	_, waiter := a.member("waiter")
	bookID, copyID := a.shelve(admin, "9780000000001")

	// Reserving while a copy is on the shelf is refused.
	rec := a.do(http.MethodPost, "/v1/reservations/my-reservations", waiter, map[string]any{"book_id": bookID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.CodeReservationNotNeeded, decode[errResp](t, rec).Error)

	rec = a.do(http.MethodPost, "/v1/loans", admin, map[string]any{"user_id": borrowerID, "copy_id": copyID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decode[model.LoanDetail](t, rec)
	assert.Equal(t, model.LoanActive, loan.Status)

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/copies/%d", copyID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.CopyLoaned, decode[model.CopyDetail](t, rec).Status)

	// The copy is out, so a second loan fails.
	rec = a.do(http.MethodPost, "/v1/loans", admin, map[string]any{"user_id": borrowerID, "copy_id": copyID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.CodeCopyNotAvailable, decode[errResp](t, rec).Error)

	rec = a.do(http.MethodPost, "/v1/reservations/my-reservations", waiter, map[string]any{"book_id": bookID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[model.ReservationDetail](t, rec)

	rec = a.do(http.MethodPost, "/v1/reservations/my-reservations", waiter, map[string]any{"book_id": bookID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.CodeDuplicateReservation, decode[errResp](t, rec).Error)

	rec = a.do(http.MethodPatch, fmt.Sprintf("/v1/loans/%d/return", loan.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.LoanReturned, decode[model.LoanDetail](t, rec).Status)

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/reservations/%d", res.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ReservationFulfilled, decode[model.ReservationDetail](t, rec).Status)

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/copies/%d", copyID), "", nil)
	assert.Equal(t, model.CopyAvailable, decode[model.CopyDetail](t, rec).Status)

	// Returning twice is a conflict.
	rec = a.do(http.MethodPatch, fmt.Sprintf("/v1/loans/%d/return", loan.ID), admin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.CodeLoanNotActive, decode[errResp](t, rec).Error)
}

func TestMyLoansListsOnlyTheCaller(t *testing.T) {
	a := newApp(t)
	admin := a.admin()
	aliceID, alice := a.member("alice")
	_, bob := a.member("bob")
	_, copyID := a.shelve(admin, "9780000000002")

	rec := a.do(http.MethodPost, "/v1/loans", admin, map[string]any{
		"user_id": aliceID, "copy_id": copyID, "due_date": "2030-01-31",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	mine := decode[[]model.LoanDetail](t, a.do(http.MethodGet, "/v1/loans/my-loans", alice, nil))
	require.Len(t, mine, 1)
	assert.Equal(t, 2030, mine[0].DueDate.Year())
	assert.Empty(t, decode[[]model.LoanDetail](t, a.do(http.MethodGet, "/v1/loans/my-loans", bob, nil)))

	all := decode[[]model.LoanDetail](t, a.do(http.MethodGet, fmt.Sprintf("/v1/loans?userId=%d", aliceID), admin, nil))
	assert.Len(t, all, 1)
}

func TestErrorBodies(t *testing.T) {
	a := newApp(t)
	admin := a.admin()

	rec := a.do(http.MethodGet, "/v1/books/999", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.CodeBookNotFound, decode[errResp](t, rec).Error)

	rec = a.do(http.MethodGet, "/v1/books/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/loans", admin, map[string]any{"user_id": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.CodeInvalidInput, decode[errResp](t, rec).Error)

	rec = a.do(http.MethodGet, "/v1/loans?status=RETURNED", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "admin@example.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, service.CodeInvalidCredentials, decode[errResp](t, rec).Error)
}

func TestCopyStatusOverrideAndSweep(t *testing.T) {
	a := newApp(t)
	admin := a.admin()
	_, copyID := a.shelve(admin, "9780000000003")

	rec := a.do(http.MethodPatch, fmt.Sprintf("/v1/copies/%d/status", copyID), admin, map[string]string{"status": "DAMAGED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.CopyDamaged, decode[model.Copy](t, rec).Status)

	avail := decode[[]model.CopyDetail](t, a.do(http.MethodGet, "/v1/copies?available=true", "", nil))
	assert.Empty(t, avail)

	rec = a.do(http.MethodPatch, fmt.Sprintf("/v1/copies/%d/status", copyID), admin, map[string]string{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/loans/sweep-overdue", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, rec)["updated"])
}

func TestRefreshAndLogout(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": "carol", "email": "carol@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	s := decode[session](t, rec)

	rec = a.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": s.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decode[session](t, rec)
	assert.NotEqual(t, s.Refresh.Token, rotated.Refresh.Token)

	// The old token was revoked by the rotation.
	rec = a.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": s.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/v1/auth/logout", "", map[string]string{"refresh_token": rotated.Refresh.Token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodPost, "/v1/auth/refresh-access", "", map[string]string{"refresh_token": rotated.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
