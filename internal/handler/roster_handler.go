package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/locvowork/employee_roster/internal/domain"
	"github.com/locvowork/employee_roster/internal/logger"
	"github.com/locvowork/employee_roster/internal/service"
)

// Dispatcher runs callbacks on the goroutine that owns the session.
// *eventloop.Loop satisfies it.
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
	Settle(ctx context.Context) error
}

// Config holds the console settings taken from the environment.
type Config struct {
	// SettleTimeout bounds how long an action waits for the requests it started.
	SettleTimeout time.Duration
	Departments   []string
	Roles         []string
	// ExportLayoutPath replaces the embedded workbook layout when set.
	ExportLayoutPath string
}

// RosterHandler serves the HTML console. Every action is run on the dispatcher,
// waits for the requests it caused and redirects back to the page.
type RosterHandler struct {
	session *service.RosterSession
	view    *ConsoleView
	loop    Dispatcher
	cfg     Config
}

func NewRosterHandler(session *service.RosterSession, view *ConsoleView, loop Dispatcher, cfg Config) *RosterHandler {
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 5 * time.Second
	}
	return &RosterHandler{session: session, view: view, loop: loop, cfg: cfg}
}

// consolePage is the data the console template is executed with.
type consolePage struct {
	State       ConsoleState
	Departments []string
	Roles       []string
}

// Register mounts the console routes on e.
func (h *RosterHandler) Register(e *echo.Echo) {
	e.GET("/", h.IndexHandler)
	e.GET("/healthz", h.HealthHandler)

	e.POST("/filters", h.ApplyFiltersHandler)
	e.POST("/filters/clear", h.ClearFiltersHandler)
	e.POST("/page/prev", h.PreviousPageHandler)
	e.POST("/page/next", h.NextPageHandler)

	e.POST("/employees/new", h.NewEmployeeHandler)
	e.POST("/employees/save", h.SaveEmployeeHandler)
	e.POST("/employees/:id/edit", h.EditEmployeeHandler)
	e.POST("/employees/:id/delete", h.DeleteEmployeeHandler)
	e.POST("/dialog/close", h.CloseDialogHandler)

	e.GET("/export.xlsx", h.ExportExcelHandler)
	e.GET("/export.csv", h.ExportCSVHandler)
}

type filterForm struct {
	Department string `form:"department"`
	Role       string `form:"role"`
}

func (h *RosterHandler) IndexHandler(c echo.Context) error {
	return c.Render(http.StatusOK, "console.html", consolePage{
		State:       h.view.Snapshot(),
		Departments: h.cfg.Departments,
		Roles:       h.cfg.Roles,
	})
}

func (h *RosterHandler) ApplyFiltersHandler(c echo.Context) error {
	var form filterForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid filter form").SetInternal(err)
	}
	logger.InfoLog(c.Request().Context(), "POST /filters - department=%q, role=%q", form.Department, form.Role)

	return h.dispatch(c, func() {
		h.view.SetFilterInputs(form.Department, form.Role)
		h.session.ApplyFilters(form.Department, form.Role)
	})
}

func (h *RosterHandler) ClearFiltersHandler(c echo.Context) error {
	return h.dispatch(c, h.session.ClearFilters)
}

func (h *RosterHandler) PreviousPageHandler(c echo.Context) error {
	return h.dispatch(c, func() { h.session.PreviousPage() })
}

func (h *RosterHandler) NextPageHandler(c echo.Context) error {
	return h.dispatch(c, h.session.NextPage)
}

// NewEmployeeHandler opens the dialog for a new record. The session prepares the form
// and the console shows it in the same dialog used for edits.
func (h *RosterHandler) NewEmployeeHandler(c echo.Context) error {
	return h.dispatch(c, func() {
		h.session.OpenCreate()
		h.view.ShowModal()
	})
}

func (h *RosterHandler) EditEmployeeHandler(c echo.Context) error {
	id, err := domain.ParseEmployeeID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid employee ID").SetInternal(err)
	}

	found := false
	err = h.run(c, func() {
		var record domain.Employee
		if record, found = h.session.Record(id); found {
			h.session.OpenEdit(record)
		}
	})
	if err != nil {
		return err
	}
	if !found {
		// Only rows of the current page can be edited.
		return echo.NewHTTPError(http.StatusNotFound, "Employee is not on the current page")
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *RosterHandler) SaveEmployeeHandler(c echo.Context) error {
	var draft domain.Draft
	if err := c.Bind(&draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid employee form").SetInternal(err)
	}

	return h.dispatch(c, func() {
		// The inputs keep what was typed until a successful save clears them.
		h.view.FillForm(draft)
		h.session.UpdateDraft(draft)
		h.session.Submit()
	})
}

func (h *RosterHandler) DeleteEmployeeHandler(c echo.Context) error {
	id, err := domain.ParseEmployeeID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid employee ID").SetInternal(err)
	}
	logger.InfoLog(c.Request().Context(), "POST /employees/%d/delete", id)

	return h.dispatch(c, func() { h.session.DeleteRecord(id) })
}

func (h *RosterHandler) CloseDialogHandler(c echo.Context) error {
	return h.dispatch(c, h.session.Cancel)
}

func (h *RosterHandler) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// dispatch runs fn on the loop, waits for the requests it started and redirects to the console.
// The redirect is sent even when the wait times out; the page then shows the last applied state.
func (h *RosterHandler) dispatch(c echo.Context, fn func()) error {
	if err := h.run(c, fn); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// run waits for fn itself without the settle deadline, so a queued action never gets a 503
// while it is still pending. Do then only fails once the loop has stopped or the client left.
// Only the wait for the requests fn started is bounded by SettleTimeout.
func (h *RosterHandler) run(c echo.Context, fn func()) error {
	ctx := c.Request().Context()
	if err := h.loop.Do(ctx, fn); err != nil {
		logger.ErrorLog(ctx, "Failed to dispatch %s %s: %v", c.Request().Method, c.Path(), err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Roster is not available").SetInternal(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.cfg.SettleTimeout)
	defer cancel()
	if err := h.loop.Settle(waitCtx); err != nil {
		logger.WarnErr(ctx, err, "requests started by %s %s still in flight", c.Request().Method, c.Path())
	}
	return nil
}
