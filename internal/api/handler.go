package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/pepabo/dify-cron/internal/reconciler"
	"github.com/pepabo/dify-cron/internal/scheduler"
	"github.com/pepabo/dify-cron/internal/store/sqltable"
	"github.com/pepabo/dify-cron/internal/table"
)

// maxRequestBodySize is the maximum allowed request body size.
const maxRequestBodySize = "1M"

// Table is the subset of the table store used by the admin API.
type Table interface {
	ReadHeader(ctx context.Context) (table.Header, error)
	ReadAllRows(ctx context.Context) ([][]string, error)
	WriteCell(ctx context.Context, rowID, column, value string) error
}

type Syncer interface {
	RunOnce(ctx context.Context) (reconciler.Result, error)
}

type Runner interface {
	RunOnce(ctx context.Context) (scheduler.Summary, error)
}

// HealthChecker reports the health of one dependency for verbose /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// StatsReader returns run outcome counters of an app for the hour of at.
type StatsReader interface {
	Counts(ctx context.Context, appID string, at time.Time) (map[string]int64, error)
}

type Handler struct {
	table  Table
	syncer Syncer
	runner Runner
	stats  StatsReader // optional
	checks map[string]HealthChecker
	logger *zap.Logger
	clock  func() time.Time
	echo   *echo.Echo
}

func NewHandler(tbl Table, syncer Syncer, runner Runner, logger *zap.Logger) *Handler {
	h := &Handler{
		table:  tbl,
		syncer: syncer,
		runner: runner,
		checks: make(map[string]HealthChecker),
		logger: logger.Named("api"),
		clock:  time.Now,
	}
	h.echo = h.routes()
	return h
}

// WithHealthChecker adds a named component to verbose /health responses.
func (h *Handler) WithHealthChecker(name string, hc HealthChecker) *Handler {
	h.checks[name] = hc
	return h
}

// WithStats enables GET /apps/:id/stats.
func (h *Handler) WithStats(s StatsReader) *Handler {
	h.stats = s
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.echo.ServeHTTP(w, r)
}

func (h *Handler) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = h.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxRequestBodySize))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			h.logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))

	e.GET("/health", h.health)
	e.GET("/apps", h.listApps)
	e.GET("/apps/:id", h.getApp)
	e.GET("/apps/:id/stats", h.appStats)
	e.PUT("/apps/:id/cells/:column", h.updateCell)
	e.POST("/sync", h.sync)
	e.POST("/run", h.run)
	return e
}

func (h *Handler) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := "internal error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	} else {
		h.logger.Error("unhandled error", zap.Error(err))
	}

	if err := writeError(c, status, msg); err != nil {
		h.logger.Error("json encode error", zap.Error(err))
	}
}

func (h *Handler) health(c echo.Context) error {
	verbose := c.QueryParam("verbose") == "true"
	if !verbose || len(h.checks) == 0 {
		return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(h.checks)),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components[name] = "unhealthy: " + err.Error()
			continue
		}
		resp.Components[name] = "healthy"
	}

	status := http.StatusOK
	if resp.Status == "degraded" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}

func (h *Handler) listApps(c echo.Context) error {
	header, raws, err := h.readTable(c.Request().Context())
	if err != nil {
		h.logger.Error("read table", zap.Error(err))
		return writeError(c, http.StatusInternalServerError, "failed to read table")
	}

	rows := table.DecodeAll(header, raws)
	resp := ListAppsResponse{Apps: make([]AppResponse, len(rows))}
	for i, row := range rows {
		resp.Apps[i] = toAppResponse(row)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) getApp(c echo.Context) error {
	header, raws, err := h.readTable(c.Request().Context())
	if err != nil {
		h.logger.Error("read table", zap.Error(err))
		return writeError(c, http.StatusInternalServerError, "failed to read table")
	}

	id := c.Param("id")
	for _, row := range table.DecodeAll(header, raws) {
		if row.ID == id {
			return c.JSON(http.StatusOK, toAppResponse(row))
		}
	}
	return writeError(c, http.StatusNotFound, "app not found")
}

func (h *Handler) appStats(c echo.Context) error {
	if h.stats == nil {
		return writeError(c, http.StatusNotFound, "analytics not configured")
	}

	at := h.clock()
	id := c.Param("id")
	counts, err := h.stats.Counts(c.Request().Context(), id, at)
	if err != nil {
		h.logger.Error("read stats", zap.String("app_id", id), zap.Error(err))
		return writeError(c, http.StatusInternalServerError, "failed to read stats")
	}
	return c.JSON(http.StatusOK, StatsResponse{
		AppID:  id,
		Hour:   at.UTC().Truncate(time.Hour).Format(time.RFC3339),
		Counts: counts,
	})
}

func (h *Handler) updateCell(c echo.Context) error {
	column, err := url.PathUnescape(c.Param("column"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid column")
	}
	if !table.IsUserColumn(column) {
		return writeError(c, http.StatusForbidden, "column is not editable")
	}
	column = table.Canonical(column)

	var req UpdateCellRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid json")
	}

	value := req.Value
	if column == table.ColumnEnabled {
		value = table.FormatEnabled(table.ParseEnabled(value))
	}

	id := c.Param("id")
	err = h.table.WriteCell(c.Request().Context(), id, column, value)
	switch {
	case errors.Is(err, sqltable.ErrRowNotFound):
		return writeError(c, http.StatusNotFound, "app not found")
	case errors.Is(err, sqltable.ErrUnknownColumn):
		return writeError(c, http.StatusNotFound, "column not in table")
	case err != nil:
		h.logger.Error("write cell", zap.String("app_id", id), zap.String("column", column), zap.Error(err))
		return writeError(c, http.StatusInternalServerError, "failed to write cell")
	}

	h.logger.Info("cell updated", zap.String("app_id", id), zap.String("column", column))
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) sync(c echo.Context) error {
	res, err := h.syncer.RunOnce(c.Request().Context())
	if errors.Is(err, reconciler.ErrPassInProgress) {
		return writeError(c, http.StatusConflict, err.Error())
	}
	if err != nil {
		h.logger.Error("sync", zap.Error(err))
		return writeError(c, http.StatusBadGateway, "sync failed: "+err.Error())
	}

	return c.JSON(http.StatusOK, SyncResponse{
		Rows:       len(res.Rows),
		Guarded:    res.Guarded,
		Created:    nonNil(res.Created),
		Updated:    nonNil(res.Updated),
		Removed:    nonNil(res.Removed),
		Duplicates: nonNil(res.Duplicates),
	})
}

func (h *Handler) run(c echo.Context) error {
	sum, err := h.runner.RunOnce(c.Request().Context())
	if errors.Is(err, scheduler.ErrPassInProgress) {
		return writeError(c, http.StatusConflict, err.Error())
	}
	if err != nil {
		h.logger.Error("run", zap.Error(err))
		return writeError(c, http.StatusInternalServerError, "run failed: "+err.Error())
	}

	resp := RunResponse{
		Due:       nonNil(sum.Due),
		Succeeded: nonNil(sum.Succeeded),
		Failed:    nonNil(sum.Failed),
		Errors:    []string{},
	}
	for _, e := range sum.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) readTable(ctx context.Context) (table.Header, [][]string, error) {
	header, err := h.table.ReadHeader(ctx)
	if err != nil {
		return nil, nil, err
	}
	raws, err := h.table.ReadAllRows(ctx)
	if err != nil {
		return nil, nil, err
	}
	return header, raws, nil
}

func writeError(c echo.Context, status int, msg string) error {
	return c.JSON(status, ErrorResponse{Error: msg})
}
