package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/teamvidya/vidya-dropout/internal/application/command"
	"github.com/teamvidya/vidya-dropout/internal/application/query"
	"github.com/teamvidya/vidya-dropout/internal/domain/alerting"
	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
	"github.com/teamvidya/vidya-dropout/internal/infrastructure/ingest"
	"github.com/teamvidya/vidya-dropout/pkg/logger"
)

// maxImportSize caps dataset uploads at 32 MB.
const maxImportSize = 32 << 20

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}

	info := map[string]interface{}{
		"name":        "Vidya Dropout API",
		"version":     "v1",
		"description": "Student dropout early-warning dashboard",
		"endpoints": map[string]string{
			"health":    "/health",
			"students":  "/api/v1/students",
			"kpi":       "/api/v1/stats/kpi",
			"dashboard": "/api/v1/stats/dashboard",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		status := s.deps.Health.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		status := s.deps.Health.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListStudents handles GET /api/v1/students
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListStudents == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Student listing not configured")
		return
	}

	q := query.ListStudentsQuery{
		Limit:           getQueryParamInt(r, "limit", 0),
		Offset:          getQueryParamInt(r, "offset", 0),
		SortBy:          student.SortField(getQueryParam(r, "sort", "")),
		Descending:      getQueryParamBool(r, "desc"),
		IncludeOffRolls: getQueryParamBool(r, "include_off_rolls"),
	}

	result, err := s.deps.ListStudents.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to list students", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to list students")
		return
	}

	noStore(w)
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleGetStudent handles GET /api/v1/students/{id}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("id")
	if ref == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Student ID is required")
		return
	}

	if s.deps.GetStudent == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Student lookup not configured")
		return
	}

	result, err := s.deps.GetStudent.Handle(r.Context(), ref)
	if err != nil {
		s.writeStudentError(w, err, ref)
		return
	}

	noStore(w)
	writeJSON(w, http.StatusOK, result)
}

// handleGetAdvice handles GET /api/v1/students/{id}/advice
func (s *Server) handleGetAdvice(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	if studentID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Student ID is required")
		return
	}

	if s.deps.GetMentorAdvice == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Advice handler not configured")
		return
	}

	result, err := s.deps.GetMentorAdvice.Handle(r.Context(), studentID)
	if err != nil {
		s.writeStudentError(w, err, studentID)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetAttendanceHistory handles GET /api/v1/students/{id}/attendance
func (s *Server) handleGetAttendanceHistory(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	if studentID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Student ID is required")
		return
	}

	if s.deps.GetAttendanceHistory == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Attendance history not configured")
		return
	}

	q := query.AttendanceHistoryQuery{
		StudentID: studentID,
		Window:    query.HistoryWindow(getQueryParam(r, "window", "")),
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.GetAttendanceHistory.Handle(r.Context(), q)
	if err != nil {
		s.writeStudentError(w, err, studentID)
		return
	}

	noStore(w)
	writeJSON(w, http.StatusOK, result)
}

// writeStudentError maps a student lookup failure onto an HTTP status.
func (s *Server) writeStudentError(w http.ResponseWriter, err error, ref string) {
	if errors.Is(err, student.ErrStudentNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", "Student not found")
		return
	}
	s.logger.Error("student lookup failed", logger.Err(err), logger.String("student", ref))
	writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to load student")
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetKPIStats handles GET /api/v1/stats/kpi
func (s *Server) handleGetKPIStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetKPIStats == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "KPI stats not configured")
		return
	}

	result, err := s.deps.GetKPIStats.Handle(r.Context())
	if err != nil {
		s.logger.Error("failed to get kpi stats", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to compute KPI stats")
		return
	}

	noStore(w)
	writeJSON(w, http.StatusOK, result)
}

// handleGetDashboardStats handles GET /api/v1/stats/dashboard
func (s *Server) handleGetDashboardStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDashboardStats == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Dashboard stats not configured")
		return
	}

	result, err := s.deps.GetDashboardStats.Handle(r.Context())
	if err != nil {
		s.logger.Error("failed to get dashboard stats", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to compute dashboard stats")
		return
	}

	noStore(w)
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// markAttendanceRequest is the wire shape of a day's attendance sheet.
type markAttendanceRequest struct {
	// Date is the school day in 2006-01-02 form. Empty means today.
	Date    string                 `json:"date"`
	Entries []attendanceEntryInput `json:"entries"`
}

type attendanceEntryInput struct {
	RollNumber int    `json:"roll_number"`
	Status     string `json:"status"`
}

// handleMarkAttendance handles POST /api/v1/attendance
func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	if s.deps.MarkAttendance == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Attendance marking not configured")
		return
	}

	var req markAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	cmd := command.MarkAttendanceCommand{}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "date must be in YYYY-MM-DD form")
			return
		}
		cmd.Date = date
	}
	for _, e := range req.Entries {
		cmd.Entries = append(cmd.Entries, command.AttendanceEntry{
			RollNumber: e.RollNumber,
			Status:     attendance.Status(strings.ToLower(e.Status)),
		})
	}

	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.MarkAttendance.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Error("failed to mark attendance", logger.Err(err))
		if result != nil {
			// The ledger write landed; only the follow-up recompute failed.
			writeJSONWithMeta(w, r, http.StatusMultiStatus, result, nil)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to mark attendance")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// historyRequest is the wire shape of a dated attendance backfill.
type historyRequest struct {
	Entries []historyEntryInput `json:"entries"`
}

type historyEntryInput struct {
	RollNumber int    `json:"roll_number"`
	Date       string `json:"date"`
	Status     string `json:"status"`
}

// handleUpdateAttendanceHistory handles POST /api/v1/attendance/history
func (s *Server) handleUpdateAttendanceHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateAttendanceHistory == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Attendance backfill not configured")
		return
	}

	var req historyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	cmd := command.UpdateAttendanceHistoryCommand{}
	for _, e := range req.Entries {
		date, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "date must be in YYYY-MM-DD form")
			return
		}
		cmd.Entries = append(cmd.Entries, command.HistoryEntry{
			RollNumber: e.RollNumber,
			Date:       date,
			Status:     attendance.Status(strings.ToLower(e.Status)),
		})
	}

	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.UpdateAttendanceHistory.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Error("failed to update attendance history", logger.Err(err))
		if result != nil {
			writeJSONWithMeta(w, r, http.StatusMultiStatus, result, nil)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to update attendance history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// requireAdmin gates a handler behind the X-API-Key header. The key is
// compared against the configured bcrypt hash, so the plaintext key
// never lives in the environment.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminKeyHash == "" {
			writeJSONError(w, http.StatusForbidden, "admin_disabled", "Administrative endpoints are not configured")
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "X-API-Key header is required")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminKeyHash), []byte(key)); err != nil {
			s.logger.Warn("rejected admin request",
				logger.String("path", r.URL.Path),
				logger.String("ip", getClientIP(r)),
			)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
			return
		}

		next(w, r)
	}
}

// sendAlertsRequest is the wire shape of a manual alert run.
type sendAlertsRequest struct {
	Levels []string `json:"levels"`
	Force  bool     `json:"force"`
}

// handleSendAlerts handles POST /api/v1/alerts/send
func (s *Server) handleSendAlerts(w http.ResponseWriter, r *http.Request) {
	if s.deps.SendRiskAlerts == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Alert dispatch not configured")
		return
	}

	var req sendAlertsRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	cmd := command.SendRiskAlertsCommand{
		Reason: alerting.ReasonManual,
		Force:  req.Force,
	}
	for _, l := range req.Levels {
		level := student.RiskLevel(strings.ToLower(l))
		if !level.IsValid() {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "unknown risk level: "+l)
			return
		}
		cmd.Levels = append(cmd.Levels, level)
	}

	result, err := s.deps.SendRiskAlerts.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Error("alert run failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Alert run failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRecomputeProfiles handles POST /api/v1/profiles/recompute
func (s *Server) handleRecomputeProfiles(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecomputeProfiles == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Profile recompute not configured")
		return
	}

	result, err := s.deps.RecomputeProfiles.Handle(r.Context(), command.RecomputeProfilesCommand{
		Trigger: "manual",
	})
	if err != nil {
		s.logger.Error("profile recompute failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Profile recompute failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleImportDataset handles POST /api/v1/import.
// Expects a multipart form with a "roster" file (CSV or Excel), an
// optional "attendance" file, and an optional "reset_ledger" field.
func (s *Server) handleImportDataset(w http.ResponseWriter, r *http.Request) {
	if s.deps.ImportDataset == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Dataset import not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form upload")
		return
	}

	cmd := command.ImportDatasetCommand{
		ResetLedger: r.FormValue("reset_ledger") == "true",
	}

	roster, rosterHeader, err := r.FormFile("roster")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "A roster file is required")
		return
	}
	defer roster.Close()

	cmd.Students, err = ingest.ReadRoster(roster, uploadFormat(rosterHeader.Filename))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_file", err.Error())
		return
	}

	if ledger, ledgerHeader, err := r.FormFile("attendance"); err == nil {
		defer ledger.Close()
		cmd.Attendance, err = ingest.ReadAttendance(ledger, uploadFormat(ledgerHeader.Filename))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_file", err.Error())
			return
		}
	}

	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.ImportDataset.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Error("dataset import failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Dataset import failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// uploadFormat maps an uploaded filename onto an ingest format string.
func uploadFormat(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// decodeJSON reads a JSON request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}
