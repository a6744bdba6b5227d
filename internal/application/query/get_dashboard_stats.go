package query

import (
	"context"
	"fmt"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD STATS QUERY
// Chart payloads: the risk distribution donut and the
// attendance-versus-score scatter.
// ══════════════════════════════════════════════════════════════════════════════

// ScatterPoint is one student on the attendance/score scatter chart.
type ScatterPoint struct {
	RollNumber    int    `json:"roll_number"`
	FullName      string `json:"full_name"`
	AttendancePct int    `json:"attendance_pct"`
	AverageScore  int    `json:"average_score"`
	RiskLevel     string `json:"risk_level"`
}

// DashboardStats is the chart widget payload.
type DashboardStats struct {
	// RiskDistribution maps risk level to student count. Every known
	// level appears, zero or not, so chart legends stay stable.
	RiskDistribution map[string]int `json:"risk_distribution"`

	// Scatter is one point per on-rolls student.
	Scatter []ScatterPoint `json:"scatter"`
}

// GetDashboardStatsHandler handles the dashboard stats query.
type GetDashboardStatsHandler struct {
	repo  student.Repository
	cache StatsCache
}

// NewGetDashboardStatsHandler creates a new GetDashboardStatsHandler.
func NewGetDashboardStatsHandler(repo student.Repository, cache StatsCache) *GetDashboardStatsHandler {
	return &GetDashboardStatsHandler{repo: repo, cache: cache}
}

// Handle computes the chart payload, cache-aside.
func (h *GetDashboardStatsHandler) Handle(ctx context.Context) (*DashboardStats, error) {
	if h.cache != nil {
		var cached DashboardStats
		if err := h.cache.GetDashboard(ctx, &cached); err == nil {
			return &cached, nil
		}
	}

	distribution := map[string]int{
		student.RiskUnknown.String(): 0,
		student.RiskLow.String():     0,
		student.RiskMedium.String():  0,
		student.RiskHigh.String():    0,
	}

	counts, err := h.repo.CountByRiskLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_dashboard_stats: risk counts: %w", err)
	}
	for _, rc := range counts {
		distribution[rc.Level.String()] = rc.Count
	}

	students, err := h.repo.GetAll(ctx, student.ListOptions{SortBy: student.SortByRollNumber})
	if err != nil {
		return nil, fmt.Errorf("get_dashboard_stats: load students: %w", err)
	}

	scatter := make([]ScatterPoint, 0, len(students))
	for _, s := range students {
		scatter = append(scatter, ScatterPoint{
			RollNumber:    int(s.RollNumber),
			FullName:      s.FullName,
			AttendancePct: int(s.AttendancePct),
			AverageScore:  int(s.AverageScore),
			RiskLevel:     s.RiskLevel.String(),
		})
	}

	stats := &DashboardStats{
		RiskDistribution: distribution,
		Scatter:          scatter,
	}

	if h.cache != nil {
		_ = h.cache.SetDashboard(ctx, stats)
	}

	return stats, nil
}
