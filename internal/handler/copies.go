package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
	"github.com/iliyamo/library-api/internal/service"
)

// CopyHandler serves the copy registry.
type CopyHandler struct {
	Copies *service.CopyService
	Log    *zap.Logger
}

func NewCopyHandler(copies *service.CopyService, log *zap.Logger) *CopyHandler {
	if copies == nil || log == nil {
		panic("nil dependency passed to NewCopyHandler")
	}
	return &CopyHandler{Copies: copies, Log: log}
}

type copyReq struct {
	BookID *uint64           `json:"book_id"`
	Code   *string           `json:"code"`
	Status *model.CopyStatus `json:"status"`
}

type statusReq struct {
	Status model.CopyStatus `json:"status"`
}

// List supports ?bookId=, ?status= and ?available=true.
func (h *CopyHandler) List(c echo.Context) error {
	bookID, ok := queryID(c, "bookId")
	if !ok {
		return badRequest(c, "invalid bookId")
	}
	f := repository.CopyFilter{BookID: bookID, Status: model.CopyStatus(c.QueryParam("status"))}
	if queryBool(c, "available") {
		f.Status = model.CopyAvailable
	}
	if f.Status != "" && !f.Status.Valid() {
		return badRequest(c, "invalid status")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Copies.List(ctx, f)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CopyHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Copies.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CopyHandler) Create(c echo.Context) error {
	var req copyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Copies.Create(ctx, service.CopyInput{BookID: req.BookID, Code: req.Code, Status: req.Status})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CopyHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req copyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Copies.Update(ctx, id, service.CopyInput{BookID: req.BookID, Code: req.Code, Status: req.Status})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// SetStatus is the administrative status override.
func (h *CopyHandler) SetStatus(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Copies.SetStatus(ctx, id, req.Status)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CopyHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Copies.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
