package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/service"
)

// LoanHandler exposes the loan ledger.
type LoanHandler struct {
	Loans *service.LoanService
	Log   *zap.Logger
}

func NewLoanHandler(loans *service.LoanService, log *zap.Logger) *LoanHandler {
	if loans == nil || log == nil {
		panic("nil dependency passed to NewLoanHandler")
	}
	return &LoanHandler{Loans: loans, Log: log}
}

type createLoanReq struct {
	UserID  uint64 `json:"user_id"`
	CopyID  uint64 `json:"copy_id"`
	DueDate string `json:"due_date"`
}

type dueDateReq struct {
	DueDate string `json:"due_date"`
}

// parseDue accepts RFC 3339 timestamps or plain dates.  A plain date is
// due at the end of that day in UTC.
func parseDue(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, true
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		t := d.Add(24*time.Hour - time.Second)
		return &t, true
	}
	return nil, false
}

func (h *LoanHandler) Create(c echo.Context) error {
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.UserID == 0 || req.CopyID == 0 {
		return badRequest(c, "user_id and copy_id are required")
	}
	due, ok := parseDue(req.DueDate)
	if !ok {
		return badRequest(c, "invalid due_date")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	loan, err := h.Loans.Create(ctx, req.UserID, req.CopyID, due)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, loan)
}

// List supports ?userId=, ?status=ACTIVE and ?overdue=true.
func (h *LoanHandler) List(c echo.Context) error {
	userID, ok := queryID(c, "userId")
	if !ok {
		return badRequest(c, "invalid userId")
	}
	q := service.LoanQuery{UserID: userID, Overdue: queryBool(c, "overdue")}
	switch status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))); status {
	case "":
	case string(model.LoanActive):
		q.Active = true
	default:
		return badRequest(c, "only status=ACTIVE is supported")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Loans.List(ctx, q)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Mine lists the caller's own loans.
func (h *LoanHandler) Mine(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Loans.ListByUser(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	loan, err := h.Loans.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *LoanHandler) Return(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	loan, err := h.Loans.Return(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, loan)
}

// UpdateDueDate changes the due date of an open loan.
func (h *LoanHandler) UpdateDueDate(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req dueDateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	due, ok := parseDue(req.DueDate)
	if !ok || due == nil {
		return badRequest(c, "invalid due_date")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	loan, err := h.Loans.UpdateDueDate(ctx, id, *due)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *LoanHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Loans.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SweepOverdue runs the overdue sweep on demand.
func (h *LoanHandler) SweepOverdue(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Loans.SweepOverdue(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}
