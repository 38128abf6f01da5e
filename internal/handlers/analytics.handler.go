package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/services"
	xhttp "github.com/stockflow/stockflow/pkg/http"
)

type AnalyticsService interface {
	Report(ctx context.Context, from, to time.Time) (*model.AnalyticsReport, error)
	DashboardStats(ctx context.Context, now time.Time) (*model.DashboardStats, error)
}

type AnalyticsHandler struct {
	svc AnalyticsService
}

func RegisterAnalyticsRoutes(e *router.Group, h *AnalyticsHandler) {
	e.GET("/analytics", h.GetReport)
	e.GET("/dashboard/stats", h.GetDashboardStats)
}

func NewAnalyticsHandler(analyticsService AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		svc: analyticsService,
	}
}

/* --------------------------------- Routes ----------------------------------- */

func (h *AnalyticsHandler) GetReport(ctx *xhttp.RequestCtx) {
	from, to, err := services.PeriodRange(query(ctx, "period"), time.Now())
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	// explicit bounds override the named period
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			from = t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			to = t
		}
	}

	report, err := h.svc.Report(ctx, from, to)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, report)
}

func (h *AnalyticsHandler) GetDashboardStats(ctx *xhttp.RequestCtx) {
	stats, err := h.svc.DashboardStats(ctx, time.Now())
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stats)
}
