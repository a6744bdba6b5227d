package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/teamvidya/vidya-dropout/config"
	"github.com/teamvidya/vidya-dropout/internal/application/command"
	"github.com/teamvidya/vidya-dropout/internal/application/query"
	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
	"github.com/teamvidya/vidya-dropout/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

func testConfig() config.HTTPConfig {
	return config.HTTPConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func quietDeps() Dependencies {
	return Dependencies{
		Logger: logger.New(logger.Options{Output: discard{}}),
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newStudent(t *testing.T, roll int, name string) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:         "stu-" + name,
		RollNumber: student.RollNumber(roll),
		FullName:   name,
		Class:      9,
	})
	require.NoError(t, err)
	return s
}

// fakeStudentRepo serves a fixed roster. Write methods are unused by
// the read endpoints under test.
type fakeStudentRepo struct {
	students []*student.Student
}

func (f *fakeStudentRepo) Create(ctx context.Context, s *student.Student) error { return nil }
func (f *fakeStudentRepo) Upsert(ctx context.Context, s *student.Student) error { return nil }
func (f *fakeStudentRepo) Update(ctx context.Context, s *student.Student) error { return nil }

func (f *fakeStudentRepo) GetByID(ctx context.Context, id string) (*student.Student, error) {
	for _, s := range f.students {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (f *fakeStudentRepo) GetByRollNumber(ctx context.Context, roll student.RollNumber) (*student.Student, error) {
	for _, s := range f.students {
		if s.RollNumber == roll {
			return s, nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (f *fakeStudentRepo) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	return f.students, nil
}

func (f *fakeStudentRepo) GetByRiskLevels(ctx context.Context, levels []student.RiskLevel) ([]*student.Student, error) {
	return nil, nil
}

func (f *fakeStudentRepo) UpdateRiskBatch(ctx context.Context, updates []student.RiskUpdate) error {
	return nil
}

func (f *fakeStudentRepo) Count(ctx context.Context) (int, error) { return len(f.students), nil }

func (f *fakeStudentRepo) CountByRiskLevel(ctx context.Context) ([]student.RiskCount, error) {
	return nil, nil
}

func (f *fakeStudentRepo) CountByFeeStatus(ctx context.Context, status student.FeeStatus) (int, error) {
	return 0, nil
}

func (f *fakeStudentRepo) AverageAttendance(ctx context.Context) (float64, error) { return 0, nil }

func (f *fakeStudentRepo) FindUnmarkedSince(ctx context.Context, since time.Time) ([]*student.Student, error) {
	return nil, nil
}

// fakeAttendanceRepo is an empty ledger.
type fakeAttendanceRepo struct{}

func (fakeAttendanceRepo) UpsertBatch(ctx context.Context, records []attendance.Record) error {
	return nil
}

func (fakeAttendanceRepo) GetRecent(ctx context.Context, studentID string, limit int) ([]attendance.Record, error) {
	return nil, nil
}

func (fakeAttendanceRepo) GetHistory(ctx context.Context, studentID string) ([]attendance.Record, error) {
	return nil, nil
}

func (fakeAttendanceRepo) SummarizeAll(ctx context.Context) (map[string]attendance.Summary, error) {
	return map[string]attendance.Summary{}, nil
}

func (fakeAttendanceRepo) SummarizeStudent(ctx context.Context, studentID string) (attendance.Summary, error) {
	return attendance.Summary{}, nil
}

func (fakeAttendanceRepo) CountForDate(ctx context.Context, date time.Time) (int, error) {
	return 0, nil
}

func (fakeAttendanceRepo) DeleteAll(ctx context.Context) error { return nil }

// newMarkAttendanceForTest wires a mark-attendance handler over the
// in-memory fakes.
func newMarkAttendanceForTest(repo *fakeStudentRepo) *command.MarkAttendanceHandler {
	ledger := fakeAttendanceRepo{}
	recompute := command.NewRecomputeProfilesHandler(repo, ledger, risk.NewClassifier(), nil, nil, nil)
	return command.NewMarkAttendanceHandler(repo, ledger, recompute, nil)
}

type fakeHealth struct {
	status HealthStatus
}

func (f fakeHealth) Check(ctx context.Context) HealthStatus { return f.status }

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthDefaultsToHealthy(t *testing.T) {
	s := NewServer(testConfig(), quietDeps())

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
}

func TestReadyReportsBackendOutage(t *testing.T) {
	deps := quietDeps()
	deps.Health = fakeHealth{status: HealthStatus{Healthy: false, Ready: false, Message: "database unreachable"}}
	s := NewServer(testConfig(), deps)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database unreachable")
}

func TestUnknownPathReturnsJSONNotFound(t *testing.T) {
	s := NewServer(testConfig(), quietDeps())

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/nonsense", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := NewServer(testConfig(), quietDeps())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := doRequest(s, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT READS
// ══════════════════════════════════════════════════════════════════════════════

func TestListStudents(t *testing.T) {
	repo := &fakeStudentRepo{students: []*student.Student{
		newStudent(t, 1, "Asha Verma"),
		newStudent(t, 2, "Ravi Kumar"),
	}}
	deps := quietDeps()
	deps.ListStudents = query.NewListStudentsHandler(repo, nil, 0)
	s := NewServer(testConfig(), deps)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/students", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store",
		"risk data must not be cached by intermediaries")

	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.TotalCount)
	assert.Contains(t, rec.Body.String(), "Asha Verma")
}

func TestGetStudentByRollNumber(t *testing.T) {
	repo := &fakeStudentRepo{students: []*student.Student{newStudent(t, 7, "Meena Iyer")}}
	deps := quietDeps()
	deps.GetStudent = query.NewGetStudentHandler(repo)
	s := NewServer(testConfig(), deps)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/students/7", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Meena Iyer")
}

func TestGetStudentNotFound(t *testing.T) {
	deps := quietDeps()
	deps.GetStudent = query.NewGetStudentHandler(&fakeStudentRepo{})
	s := NewServer(testConfig(), deps)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/students/999", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnconfiguredHandlerReturnsNotImplemented(t *testing.T) {
	s := NewServer(testConfig(), quietDeps())

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/v1/stats/kpi", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE WRITES
// ══════════════════════════════════════════════════════════════════════════════

func TestMarkAttendanceRejectsBadBody(t *testing.T) {
	deps := quietDeps()
	s := NewServer(testConfig(), deps)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance", strings.NewReader("{not json"))
	rec := doRequest(s, req)

	// Body validation runs before the dependency check matters here: an
	// unconfigured handler short-circuits first.
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestMarkAttendanceValidatesStatus(t *testing.T) {
	repo := &fakeStudentRepo{students: []*student.Student{newStudent(t, 1, "Asha Verma")}}
	deps := quietDeps()
	deps.MarkAttendance = newMarkAttendanceForTest(repo)
	s := NewServer(testConfig(), deps)

	body := `{"entries":[{"roll_number":1,"status":"vacation"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance", strings.NewReader(body))
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestMarkAttendanceRejectsBadDate(t *testing.T) {
	repo := &fakeStudentRepo{students: []*student.Student{newStudent(t, 1, "Asha Verma")}}
	deps := quietDeps()
	deps.MarkAttendance = newMarkAttendanceForTest(repo)
	s := NewServer(testConfig(), deps)

	body := `{"date":"14/07/2025","entries":[{"roll_number":1,"status":"present"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance", strings.NewReader(body))
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "YYYY-MM-DD")
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN AUTH
// ══════════════════════════════════════════════════════════════════════════════

func TestAdminEndpointsDisabledWithoutHash(t *testing.T) {
	s := NewServer(testConfig(), quietDeps())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles/recompute", nil)
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin_disabled")
}

func TestAdminEndpointsRejectMissingOrWrongKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-key"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.AdminKeyHash = string(hash)
	s := NewServer(cfg, quietDeps())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/send", nil)
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/alerts/send", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec = doRequest(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminEndpointAcceptsValidKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-key"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.AdminKeyHash = string(hash)
	s := NewServer(cfg, quietDeps())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiles/recompute", nil)
	req.Header.Set("X-API-Key", "correct-key")
	rec := doRequest(s, req)

	// Auth passed; the unconfigured handler answers 501, not 401.
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

func TestRateLimitKicksInAfterBurst(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 60
	cfg.RateLimitBurst = 2
	s := NewServer(cfg, quietDeps())
	defer s.rateLimiter.Stop()

	for i := 0; i < 2; i++ {
		rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiterIsPerIP(t *testing.T) {
	rl := newRateLimiter(60, 1)
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "a second client has its own bucket")
}
