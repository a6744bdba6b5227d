package query

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// statsRepo serves canned aggregates and counts how often it is asked.
type statsRepo struct {
	total      int
	riskCounts []student.RiskCount
	avg        float64
	overdue    int
	students   []*student.Student
	calls      int
}

func (r *statsRepo) Create(ctx context.Context, s *student.Student) error { return nil }
func (r *statsRepo) Upsert(ctx context.Context, s *student.Student) error { return nil }

func (r *statsRepo) GetByID(ctx context.Context, id string) (*student.Student, error) {
	return nil, student.ErrStudentNotFound
}

func (r *statsRepo) GetByRollNumber(ctx context.Context, roll student.RollNumber) (*student.Student, error) {
	return nil, student.ErrStudentNotFound
}

func (r *statsRepo) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	r.calls++
	return r.students, nil
}

func (r *statsRepo) GetByRiskLevels(ctx context.Context, levels []student.RiskLevel) ([]*student.Student, error) {
	return nil, nil
}

func (r *statsRepo) Update(ctx context.Context, s *student.Student) error { return nil }

func (r *statsRepo) UpdateRiskBatch(ctx context.Context, updates []student.RiskUpdate) error {
	return nil
}

func (r *statsRepo) Count(ctx context.Context) (int, error) {
	r.calls++
	return r.total, nil
}

func (r *statsRepo) CountByRiskLevel(ctx context.Context) ([]student.RiskCount, error) {
	r.calls++
	return r.riskCounts, nil
}

func (r *statsRepo) CountByFeeStatus(ctx context.Context, status student.FeeStatus) (int, error) {
	r.calls++
	return r.overdue, nil
}

func (r *statsRepo) AverageAttendance(ctx context.Context) (float64, error) {
	r.calls++
	return r.avg, nil
}

func (r *statsRepo) FindUnmarkedSince(ctx context.Context, since time.Time) ([]*student.Student, error) {
	return nil, nil
}

// fakeStatsCache round-trips payloads through JSON the way the Redis
// cache does.
type fakeStatsCache struct {
	kpi       []byte
	dashboard []byte
}

func (c *fakeStatsCache) GetKPI(ctx context.Context, dest interface{}) error {
	if c.kpi == nil {
		return errors.New("cache miss")
	}
	return json.Unmarshal(c.kpi, dest)
}

func (c *fakeStatsCache) SetKPI(ctx context.Context, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.kpi = data
	return nil
}

func (c *fakeStatsCache) GetDashboard(ctx context.Context, dest interface{}) error {
	if c.dashboard == nil {
		return errors.New("cache miss")
	}
	return json.Unmarshal(c.dashboard, dest)
}

func (c *fakeStatsCache) SetDashboard(ctx context.Context, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.dashboard = data
	return nil
}

func scatterStudent(t *testing.T, roll student.RollNumber, level student.RiskLevel) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:         "stu-" + level.String(),
		RollNumber: roll,
		FullName:   "Student " + level.String(),
		Class:      9,
	})
	require.NoError(t, err)
	_, err = s.SetRisk(level)
	require.NoError(t, err)
	return s
}

func TestGetKPIStats(t *testing.T) {
	repo := &statsRepo{
		total: 120,
		riskCounts: []student.RiskCount{
			{Level: student.RiskHigh, Count: 9},
			{Level: student.RiskMedium, Count: 23},
		},
		avg:     76.44,
		overdue: 14,
	}
	h := NewGetKPIStatsHandler(repo, nil)

	stats, err := h.Handle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 120, stats.TotalStudents)
	assert.Equal(t, 9, stats.HighRisk)
	assert.Equal(t, 76.4, stats.AverageAttendance, "the widget shows one decimal place")
	assert.Equal(t, 14, stats.FeesOverdue)
}

func TestGetKPIStatsCacheAside(t *testing.T) {
	repo := &statsRepo{total: 10, avg: 80}
	cache := &fakeStatsCache{}
	h := NewGetKPIStatsHandler(repo, cache)

	first, err := h.Handle(context.Background())
	require.NoError(t, err)
	callsAfterMiss := repo.calls
	assert.Positive(t, callsAfterMiss)

	second, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, callsAfterMiss, repo.calls, "a cache hit must not touch the database")
	assert.Equal(t, first, second)
}

func TestGetDashboardStats(t *testing.T) {
	repo := &statsRepo{
		riskCounts: []student.RiskCount{{Level: student.RiskHigh, Count: 1}},
		students: []*student.Student{
			scatterStudent(t, 1, student.RiskHigh),
			scatterStudent(t, 2, student.RiskLow),
		},
	}
	h := NewGetDashboardStatsHandler(repo, nil)

	stats, err := h.Handle(context.Background())
	require.NoError(t, err)

	// Every level appears so the donut legend never jumps around.
	assert.Len(t, stats.RiskDistribution, 4)
	assert.Equal(t, 1, stats.RiskDistribution["high"])
	assert.Zero(t, stats.RiskDistribution["medium"])

	require.Len(t, stats.Scatter, 2)
	assert.Equal(t, 1, stats.Scatter[0].RollNumber)
	assert.Equal(t, "high", stats.Scatter[0].RiskLevel)
}

func TestGetDashboardStatsCacheAside(t *testing.T) {
	repo := &statsRepo{students: []*student.Student{scatterStudent(t, 1, student.RiskLow)}}
	cache := &fakeStatsCache{}
	h := NewGetDashboardStatsHandler(repo, cache)

	first, err := h.Handle(context.Background())
	require.NoError(t, err)
	callsAfterMiss := repo.calls

	second, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, callsAfterMiss, repo.calls)
	assert.Equal(t, first.RiskDistribution, second.RiskDistribution)
}
