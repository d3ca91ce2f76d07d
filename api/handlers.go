/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response and JSON serialization, and delegates to
  attendance.Service.

ENDPOINTS:
  Employees:
    GET    /api/employees                          List employees
    POST   /api/employees                          Create employee
    GET    /api/employees/{id}                     Get employee
    PATCH  /api/employees/{id}                     Update employee

  Attendance:
    GET    /api/attendance?employee_id=&month=     One employee's month
    POST   /api/attendance/upload?month=           Reconcile an uploaded file
    POST   /api/attendance/fetch                   Reconcile from the vendor
    PUT    /api/attendance/{id}                    Manual edit
    DELETE /api/attendance/{id}                    Remove a record

  Summary:
    GET    /api/attendance/monthly-summary?month=         JSON table
    GET    /api/attendance/monthly-summary/export?month=  XLSX download
    GET    /api/attendance/runs?limit=                    Batch run log

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Parse and validation errors
  - 404: Unknown record or employee
  - 409: Biometric code already taken
  - 502: Biometric vendor failure
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/export"
	"github.com/warp/attendance-engine/generic"
)

// maxUploadBytes caps punch file uploads.
const maxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *attendance.Service
	Logger  *slog.Logger
}

// NewHandler creates a new handler around svc.
func NewHandler(svc *attendance.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Logger: logger}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.Employees(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.Employee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	emp, err := h.Service.Directory.Create(r.Context(), attendance.NewEmployee{
		Name:            req.Name,
		Code:            req.Code,
		Active:          active,
		ShiftStart:      req.ShiftStart,
		ShiftEnd:        req.ShiftEnd,
		DutyHoursPerDay: req.DutyHoursPerDay,
		MonthlySalary:   req.Salary,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// UpdateEmployee applies a partial update. Unknown fields are rejected.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req UpdateEmployeeRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	emp, err := h.Service.Directory.Update(r.Context(), attendance.EmployeeID(chi.URLParam(r, "id")), attendance.EmployeeUpdate{
		Name:            req.Name,
		Code:            req.Code,
		Active:          req.Active,
		ShiftStart:      req.ShiftStart,
		ShiftEnd:        req.ShiftEnd,
		DutyHoursPerDay: req.DutyHoursPerDay,
		MonthlySalary:   req.Salary,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to update employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// GetAttendance returns one employee's records for a month.
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.Service.EmployeeAttendance(r.Context(), q.Get("employee_id"), q.Get("month"))
	if err != nil {
		h.writeServiceError(w, "Failed to load attendance", err)
		return
	}

	dtos := make([]AttendanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAttendanceDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UploadAttendance reconciles a month from a biometric JSON file, sent
// either as multipart field "file" or as the raw request body.
func (h *Handler) UploadAttendance(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = r.FormValue("month")
	}

	result, err := h.Service.ProcessUpload(r.Context(), data, month)
	if err != nil {
		h.writeServiceError(w, "Failed to process upload", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResultDTO(result))
}

// FetchAttendance pulls a month from the biometric vendor and reconciles it.
func (h *Handler) FetchAttendance(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.FetchAndProcess(r.Context(), req.Month)
	if err != nil {
		h.writeServiceError(w, "Failed to fetch biometric data", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResultDTO(result))
}

// EditAttendance applies a manual in/out override to one record.
func (h *Handler) EditAttendance(w http.ResponseWriter, r *http.Request) {
	var req ManualEditRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.Service.EditRecord(r.Context(), attendance.ManualEdit{
		RecordID: chi.URLParam(r, "id"),
		In:       req.InDatetime,
		Out:      req.OutDatetime,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to update attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(rec))
}

// DeleteAttendance removes one record.
func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to delete attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Attendance deleted successfully"})
}

// =============================================================================
// SUMMARY HANDLERS
// =============================================================================

// MonthlySummary returns the per-employee salary table for a month.
func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Service.MonthlySummary(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		h.writeServiceError(w, "Failed to build monthly summary", err)
		return
	}

	dtos := make([]MonthlySummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toMonthlySummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportMonthlySummary streams the monthly summary as an XLSX workbook.
func (h *Handler) ExportMonthlySummary(w http.ResponseWriter, r *http.Request) {
	monthParam := r.URL.Query().Get("month")
	month, err := generic.ParseMonth(monthParam)
	if err != nil {
		h.writeServiceError(w, "Invalid month", err)
		return
	}
	summaries, err := h.Service.MonthlySummary(r.Context(), monthParam)
	if err != nil {
		h.writeServiceError(w, "Failed to build monthly summary", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteMonthlySummary(&buf, month, summaries); err != nil {
		h.writeServiceError(w, "Failed to render workbook", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance-summary-%s.xlsx"`, month))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ListRuns returns the newest reconciliation runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Service.Runs(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors onto HTTP statuses. Internal
// details stay in the log.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, attendance.ErrDuplicateEmployeeCode):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsUpstream(err):
		h.Logger.Warn("upstream failure", "error", err)
		writeError(w, http.StatusBadGateway, message, err)
	default:
		h.Logger.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func readUpload(r *http.Request) ([]byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		return io.ReadAll(io.LimitReader(file, maxUploadBytes))
	}
	return io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
}
