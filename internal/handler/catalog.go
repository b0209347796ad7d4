package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/repository"
	"github.com/iliyamo/library-api/internal/service"
)

// CatalogHandler serves categories and books.  Reads are public.
type CatalogHandler struct {
	Catalog *service.CatalogService
	Log     *zap.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, log *zap.Logger) *CatalogHandler {
	if catalog == nil || log == nil {
		panic("nil dependency passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: catalog, Log: log}
}

type categoryReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type bookReq struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	ISBN        *string `json:"isbn"`
	Editorial   *string `json:"editorial"`
	Year        *int    `json:"year"`
	CategoryID  *uint64 `json:"category_id"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
}

func (r bookReq) input() service.BookInput {
	return service.BookInput{
		Title:       r.Title,
		Author:      r.Author,
		ISBN:        r.ISBN,
		Editorial:   r.Editorial,
		Year:        r.Year,
		CategoryID:  r.CategoryID,
		Description: r.Description,
		ImageURL:    r.ImageURL,
	}
}

func (h *CatalogHandler) ListCategories(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetCategory(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cat, err := h.Catalog.GetCategory(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cat, err := h.Catalog.CreateCategory(ctx, service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *CatalogHandler) UpdateCategory(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cat, err := h.Catalog.UpdateCategory(ctx, id, service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *CatalogHandler) DeleteCategory(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Catalog.DeleteCategory(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListBooks supports ?categoryId=, ?q= and ?available=true.
func (h *CatalogHandler) ListBooks(c echo.Context) error {
	categoryID, ok := queryID(c, "categoryId")
	if !ok {
		return badRequest(c, "invalid categoryId")
	}
	f := repository.BookFilter{
		CategoryID:    categoryID,
		Query:         c.QueryParam("q"),
		AvailableOnly: queryBool(c, "available"),
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Catalog.ListBooks(ctx, f)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetBook(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Catalog.GetBook(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *CatalogHandler) CreateBook(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Catalog.CreateBook(ctx, req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *CatalogHandler) UpdateBook(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Catalog.UpdateBook(ctx, id, req.input())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *CatalogHandler) DeleteBook(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Catalog.DeleteBook(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
