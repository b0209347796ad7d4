package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
	"github.com/iliyamo/library-api/internal/service"
)

// ReservationHandler exposes the reservation queue.
type ReservationHandler struct {
	Reservations *service.ReservationService
	Log          *zap.Logger
}

func NewReservationHandler(reservations *service.ReservationService, log *zap.Logger) *ReservationHandler {
	if reservations == nil || log == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Reservations: reservations, Log: log}
}

type reservationReq struct {
	UserID uint64 `json:"user_id"`
	BookID uint64 `json:"book_id"`
}

func (h *ReservationHandler) Create(c echo.Context) error {
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.UserID == 0 || req.BookID == 0 {
		return badRequest(c, "user_id and book_id are required")
	}
	return h.create(c, req.UserID, req.BookID)
}

// CreateMine reserves a book for the caller.
func (h *ReservationHandler) CreateMine(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.BookID == 0 {
		return badRequest(c, "book_id is required")
	}
	return h.create(c, uid, req.BookID)
}

func (h *ReservationHandler) create(c echo.Context, userID, bookID uint64) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Reservations.Create(ctx, userID, bookID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// List supports ?userId=, ?bookId= and ?status=.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, ok := queryID(c, "userId")
	if !ok {
		return badRequest(c, "invalid userId")
	}
	bookID, ok := queryID(c, "bookId")
	if !ok {
		return badRequest(c, "invalid bookId")
	}
	f := repository.ReservationFilter{
		UserID: userID,
		BookID: bookID,
		Status: model.ReservationStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))),
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Reservations.List(ctx, f)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Mine lists the caller's own reservations.
func (h *ReservationHandler) Mine(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Reservations.ListByUser(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReservationHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Reservations.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) Fulfill(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Reservations.Fulfill(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Reservations.Cancel(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Reservations.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
