package query

import (
	"context"
	"fmt"
	"math"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// KPI STATS QUERY
// The four headline numbers on the dashboard.
// ══════════════════════════════════════════════════════════════════════════════

// KPIStats is the headline widget payload.
type KPIStats struct {
	TotalStudents     int     `json:"total_students"`
	HighRisk          int     `json:"high_risk"`
	AverageAttendance float64 `json:"average_attendance"`
	FeesOverdue       int     `json:"fees_overdue"`
}

// StatsCache caches the aggregated widget payloads. Implemented by the
// Redis stats cache; a cache miss is reported as an error.
type StatsCache interface {
	GetKPI(ctx context.Context, dest interface{}) error
	SetKPI(ctx context.Context, payload interface{}) error
	GetDashboard(ctx context.Context, dest interface{}) error
	SetDashboard(ctx context.Context, payload interface{}) error
}

// GetKPIStatsHandler handles the KPI stats query.
type GetKPIStatsHandler struct {
	repo  student.Repository
	cache StatsCache
}

// NewGetKPIStatsHandler creates a new GetKPIStatsHandler.
// The cache may be nil when Redis is disabled.
func NewGetKPIStatsHandler(repo student.Repository, cache StatsCache) *GetKPIStatsHandler {
	return &GetKPIStatsHandler{repo: repo, cache: cache}
}

// Handle computes the KPI payload, cache-aside.
func (h *GetKPIStatsHandler) Handle(ctx context.Context) (*KPIStats, error) {
	if h.cache != nil {
		var cached KPIStats
		if err := h.cache.GetKPI(ctx, &cached); err == nil {
			return &cached, nil
		}
	}

	total, err := h.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_kpi_stats: count: %w", err)
	}

	highRisk := 0
	counts, err := h.repo.CountByRiskLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_kpi_stats: risk counts: %w", err)
	}
	for _, rc := range counts {
		if rc.Level == student.RiskHigh {
			highRisk = rc.Count
		}
	}

	avgAttendance, err := h.repo.AverageAttendance(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_kpi_stats: average attendance: %w", err)
	}

	overdue, err := h.repo.CountByFeeStatus(ctx, student.FeeOverdue)
	if err != nil {
		return nil, fmt.Errorf("get_kpi_stats: fee counts: %w", err)
	}

	stats := &KPIStats{
		TotalStudents:     total,
		HighRisk:          highRisk,
		AverageAttendance: math.Round(avgAttendance*10) / 10,
		FeesOverdue:       overdue,
	}

	if h.cache != nil {
		_ = h.cache.SetKPI(ctx, stats)
	}

	return stats, nil
}
