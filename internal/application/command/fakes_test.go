package command

import (
	"context"
	"errors"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/alerting"
	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// In-memory ports shared by the command tests.

// ─────────────────────────────────────────────────────────────────────────────
// STUDENTS
// ─────────────────────────────────────────────────────────────────────────────

type memStudentRepo struct {
	students    []*student.Student
	riskBatches [][]student.RiskUpdate
	upserts     []*student.Student
}

func (r *memStudentRepo) Create(ctx context.Context, s *student.Student) error {
	for _, existing := range r.students {
		if existing.RollNumber == s.RollNumber {
			return student.ErrStudentAlreadyExists
		}
	}
	r.students = append(r.students, s)
	return nil
}

func (r *memStudentRepo) Upsert(ctx context.Context, s *student.Student) error {
	r.upserts = append(r.upserts, s)
	for i, existing := range r.students {
		if existing.RollNumber == s.RollNumber {
			s.ID = existing.ID
			r.students[i] = s
			return nil
		}
	}
	r.students = append(r.students, s)
	return nil
}

func (r *memStudentRepo) GetByID(ctx context.Context, id string) (*student.Student, error) {
	for _, s := range r.students {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (r *memStudentRepo) GetByRollNumber(ctx context.Context, roll student.RollNumber) (*student.Student, error) {
	for _, s := range r.students {
		if s.RollNumber == roll {
			return s, nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (r *memStudentRepo) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	out := make([]*student.Student, 0, len(r.students))
	for _, s := range r.students {
		if !opts.IncludeOffRolls && !s.Status.IsOnRolls() {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *memStudentRepo) GetByRiskLevels(ctx context.Context, levels []student.RiskLevel) ([]*student.Student, error) {
	var out []*student.Student
	for _, s := range r.students {
		if !s.Status.IsOnRolls() {
			continue
		}
		for _, level := range levels {
			if s.RiskLevel == level {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (r *memStudentRepo) Update(ctx context.Context, s *student.Student) error { return nil }

func (r *memStudentRepo) UpdateRiskBatch(ctx context.Context, updates []student.RiskUpdate) error {
	r.riskBatches = append(r.riskBatches, updates)
	return nil
}

func (r *memStudentRepo) Count(ctx context.Context) (int, error) {
	n := 0
	for _, s := range r.students {
		if s.Status.IsOnRolls() {
			n++
		}
	}
	return n, nil
}

func (r *memStudentRepo) CountByRiskLevel(ctx context.Context) ([]student.RiskCount, error) {
	return nil, nil
}

func (r *memStudentRepo) CountByFeeStatus(ctx context.Context, status student.FeeStatus) (int, error) {
	return 0, nil
}

func (r *memStudentRepo) AverageAttendance(ctx context.Context) (float64, error) { return 0, nil }

func (r *memStudentRepo) FindUnmarkedSince(ctx context.Context, since time.Time) ([]*student.Student, error) {
	return nil, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ATTENDANCE
// ─────────────────────────────────────────────────────────────────────────────

type memAttendanceRepo struct {
	records   []attendance.Record
	summaries map[string]attendance.Summary
	batches   int
	wiped     bool
}

func (r *memAttendanceRepo) UpsertBatch(ctx context.Context, records []attendance.Record) error {
	r.batches++
	r.records = append(r.records, records...)
	return nil
}

func (r *memAttendanceRepo) GetRecent(ctx context.Context, studentID string, limit int) ([]attendance.Record, error) {
	return nil, nil
}

func (r *memAttendanceRepo) GetHistory(ctx context.Context, studentID string) ([]attendance.Record, error) {
	return nil, nil
}

func (r *memAttendanceRepo) SummarizeAll(ctx context.Context) (map[string]attendance.Summary, error) {
	if r.summaries != nil {
		return r.summaries, nil
	}
	return attendance.Summarize(r.records), nil
}

func (r *memAttendanceRepo) SummarizeStudent(ctx context.Context, studentID string) (attendance.Summary, error) {
	return r.summaries[studentID], nil
}

func (r *memAttendanceRepo) CountForDate(ctx context.Context, date time.Time) (int, error) {
	return 0, nil
}

func (r *memAttendanceRepo) DeleteAll(ctx context.Context) error {
	r.wiped = true
	r.records = nil
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ALERT LOG & CHANNEL
// ─────────────────────────────────────────────────────────────────────────────

type memAlertRepo struct {
	alerts   []*alerting.Alert
	lastSent map[string]time.Time
}

func (r *memAlertRepo) Create(ctx context.Context, a *alerting.Alert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *memAlertRepo) Update(ctx context.Context, a *alerting.Alert) error { return nil }

func (r *memAlertRepo) GetByID(ctx context.Context, id string) (*alerting.Alert, error) {
	return nil, alerting.ErrAlertNotFound
}

func (r *memAlertRepo) GetByStudent(ctx context.Context, studentID string, limit int) ([]*alerting.Alert, error) {
	return nil, nil
}

func (r *memAlertRepo) LastSentAt(ctx context.Context, studentID string) (time.Time, error) {
	return r.lastSent[studentID], nil
}

func (r *memAlertRepo) CountSince(ctx context.Context, cutoff time.Time) (map[alerting.AlertStatus]int, error) {
	return nil, nil
}

// stubChannel records outgoing alerts and answers with a canned result.
type stubChannel struct {
	sent []*alerting.Alert
	fail bool
}

func (c *stubChannel) Type() alerting.ChannelType { return alerting.ChannelEmail }

func (c *stubChannel) Send(ctx context.Context, alert *alerting.Alert) alerting.DeliveryResult {
	c.sent = append(c.sent, alert)
	if c.fail {
		return alerting.NewFailureResult(alerting.ChannelEmail, errors.New("smtp unavailable"), true)
	}
	return alerting.NewSuccessResult(alerting.ChannelEmail)
}

// ─────────────────────────────────────────────────────────────────────────────
// MODEL STORE
// ─────────────────────────────────────────────────────────────────────────────

type memModelStore struct {
	model *risk.Model
}

func (s *memModelStore) Save(ctx context.Context, m *risk.Model) error {
	s.model = m
	return nil
}

func (s *memModelStore) Load(ctx context.Context) (*risk.Model, error) {
	if s.model == nil {
		return nil, risk.ErrNoModel
	}
	return s.model, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// EVENTS, CACHE, FEATURE FLAGS
// ─────────────────────────────────────────────────────────────────────────────

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(ctx context.Context, event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) ofType(t shared.EventType) []shared.Event {
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type memCache struct {
	invalidations int
}

func (c *memCache) GetList(ctx context.Context) ([]*student.Student, error) {
	return nil, errors.New("cache miss")
}

func (c *memCache) SetList(ctx context.Context, students []*student.Student, ttl time.Duration) error {
	return nil
}

func (c *memCache) Invalidate(ctx context.Context) error {
	c.invalidations++
	return nil
}

type stubGate struct {
	ml     bool
	notify bool
}

func (g stubGate) MLPredictionsEnabled() bool { return g.ml }
func (g stubGate) NotificationsEnabled() bool { return g.notify }
