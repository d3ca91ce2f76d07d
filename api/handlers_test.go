/*
handlers_test.go - HTTP tests for the attendance API

Tests for:
- Employee directory endpoints (create, patch, conflicts)
- Upload, fetch, manual edit and delete of ledger records
- Monthly summary JSON and XLSX export
- Error status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const marchPunches = `{"InOutPunchData": [
	{"Empcode": "E001", "DateString": "04/03/2024", "INTime": "09:00", "OUTTime": "18:00"},
	{"Empcode": "E001", "DateString": "05/03/2024", "INTime": "09:00", "OUTTime": "16:00"}
]}`

type stubSource struct {
	rows []attendance.VendorRow
	err  error
}

func (s *stubSource) FetchPunches(context.Context, generic.Month) ([]attendance.VendorRow, error) {
	return s.rows, s.err
}

type testServer struct {
	t      *testing.T
	router http.Handler
	store  *store.TxMemory
}

func newTestServer(t *testing.T, source attendance.PunchSource) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewTxMemory()
	svc := attendance.NewService(mem, source, attendance.Options{
		WeeklyOff: generic.DefaultWeeklyOff,
		Logger:    logger,
	})
	router := NewRouter(NewHandler(svc, logger), RouterOptions{Logger: logger})
	return &testServer{t: t, router: router, store: mem}
}

func (s *testServer) do(method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(method, path, "application/json", strings.NewReader(body))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createEmployee(code string) EmployeeDTO {
	s.t.Helper()
	rec := s.doJSON(http.MethodPost, "/api/employees", `{
		"name": "Employee `+code+`",
		"emp_code": "`+code+`",
		"shift_start": "09:00",
		"shift_end": "17:00",
		"duty_hours_per_day": 8,
		"salary": "31000"
	}`)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[EmployeeDTO](s.t, rec)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees_CreateGetList(t *testing.T) {
	srv := newTestServer(t, nil)

	emp := srv.createEmployee("E001")
	assert.NotEmpty(t, emp.ID)
	assert.True(t, emp.Active, "active by default")
	assert.Equal(t, 31000.0, emp.Salary)
	assert.Equal(t, "17:00", emp.ShiftEnd)

	rec := srv.do(http.MethodGet, "/api/employees/"+emp.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, emp, decode[EmployeeDTO](t, rec))

	rec = srv.do(http.MethodGet, "/api/employees", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]EmployeeDTO](t, rec), 1)

	rec = srv.do(http.MethodGet, "/api/employees/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmployees_CreateRejects(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.createEmployee("E001")

	// Duplicate active code
	rec := srv.doJSON(http.MethodPost, "/api/employees", `{"name":"B","emp_code":"E001","shift_start":"09:00","shift_end":"17:00","duty_hours_per_day":8,"salary":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Invalid shift clock
	rec = srv.doJSON(http.MethodPost, "/api/employees", `{"name":"B","emp_code":"E002","shift_start":"9am","shift_end":"17:00","duty_hours_per_day":8,"salary":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "shift_start")

	// Malformed body
	rec = srv.doJSON(http.MethodPost, "/api/employees", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmployees_Patch(t *testing.T) {
	srv := newTestServer(t, nil)
	emp := srv.createEmployee("E001")

	rec := srv.doJSON(http.MethodPatch, "/api/employees/"+emp.ID, `{"salary": "36000", "is_active": false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[EmployeeDTO](t, rec)
	assert.Equal(t, 36000.0, updated.Salary)
	assert.False(t, updated.Active)
	assert.Equal(t, emp.Name, updated.Name)

	// GIVEN: A field that is not editable
	// THEN: Rejected before anything is written
	rec = srv.doJSON(http.MethodPatch, "/api/employees/"+emp.ID, `{"id": "other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPatch, "/api/employees/nobody", `{"name": "x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// BATCHES
// =============================================================================

func TestUpload_RawBody(t *testing.T) {
	srv := newTestServer(t, nil)
	emp := srv.createEmployee("E001")

	rec := srv.doJSON(http.MethodPost, "/api/attendance/upload?month=2024-03", marchPunches)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[BatchResultDTO](t, rec)
	assert.Equal(t, "Attendance processed successfully", result.Message)
	assert.Equal(t, "2024-03", result.Month)
	assert.Equal(t, 31, result.Written)
	assert.Equal(t, 1, result.ByStatus["PRESENT_OVERTIME"])
	assert.Equal(t, 1, result.ByStatus["PRESENT_INCOMPLETE"])

	rec = srv.do(http.MethodGet, "/api/attendance?employee_id="+emp.ID+"&month=2024-03", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]AttendanceDTO](t, rec)
	require.Len(t, records, 31)
	assert.Equal(t, "2024-03-04", records[3].Date)
	assert.Equal(t, 60, records[3].OvertimeMinutes)
	assert.Equal(t, "BIOMETRIC", records[3].Source)
	require.NotNil(t, records[3].InTime)
	assert.Equal(t, "2024-03-04T09:00:00Z", *records[3].InTime)
	assert.Nil(t, records[7].InTime, "absent days have no punches")
}

func TestUpload_Multipart(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.createEmployee("E001")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("month", "2024-03"))
	part, err := mw.CreateFormFile("file", "punches.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(marchPunches))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := srv.do(http.MethodPost, "/api/attendance/upload", mw.FormDataContentType(), &body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 31, decode[BatchResultDTO](t, rec).Written)
}

func TestUpload_Rejects(t *testing.T) {
	srv := newTestServer(t, nil)
	emp := srv.createEmployee("E001")

	rec := srv.doJSON(http.MethodPost, "/api/attendance/upload?month=2024-03", `{"InOutPunchData": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPost, "/api/attendance/upload?month=03-2024", marchPunches)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	records, err := srv.store.FindRecords(context.Background(), attendance.EmployeeID(emp.ID),
		generic.Month{Year: 2024, Month: 3}.Period())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetch(t *testing.T) {
	source := &stubSource{rows: []attendance.VendorRow{
		{Empcode: "E001", DateString: "04/03/2024", INTime: "09:00", OUTTime: "17:00"},
	}}
	srv := newTestServer(t, source)
	srv.createEmployee("E001")

	rec := srv.doJSON(http.MethodPost, "/api/attendance/fetch", `{"month": "2024-03"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[BatchResultDTO](t, rec).ByStatus["PRESENT_COMPLETE"])

	// GIVEN: The vendor is down
	source.err = &generic.UpstreamError{Service: "biometric", StatusCode: http.StatusServiceUnavailable}

	// THEN: 502 and the run log stays consistent
	rec = srv.doJSON(http.MethodPost, "/api/attendance/fetch", `{"month": "2024-03"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = srv.do(http.MethodGet, "/api/attendance/runs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]RunDTO](t, rec)
	require.Len(t, runs, 1, "a vendor failure never starts a batch")
	assert.Equal(t, "fetch", runs[0].Trigger)
	assert.Equal(t, "completed", runs[0].Status)
}

func TestFetch_NoVendorConfigured(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.doJSON(http.MethodPost, "/api/attendance/fetch", `{"month": "2024-03"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// =============================================================================
// MANUAL EDITS
// =============================================================================

func TestEditAndDelete(t *testing.T) {
	srv := newTestServer(t, nil)
	emp := srv.createEmployee("E001")
	require.Equal(t, http.StatusOK, srv.doJSON(http.MethodPost, "/api/attendance/upload?month=2024-03", marchPunches).Code)

	rec := srv.do(http.MethodGet, "/api/attendance?employee_id="+emp.ID+"&month=2024-03", "", nil)
	records := decode[[]AttendanceDTO](t, rec)
	target := records[7] // Friday 8th, absent

	// WHEN: The admin enters a half day
	rec = srv.doJSON(http.MethodPut, "/api/attendance/"+target.ID, `{"in_datetime": "2024-03-08T09:00", "out_datetime": "2024-03-08T13:00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The record is MANUAL and prorated
	edited := decode[AttendanceDTO](t, rec)
	assert.Equal(t, target.ID, edited.ID)
	assert.Equal(t, "MANUAL", edited.Source)
	assert.Equal(t, "PRESENT_INCOMPLETE", edited.Status)
	assert.Equal(t, 500.0, edited.DaySalary)
	assert.NotNil(t, edited.UpdatedAt)

	rec = srv.doJSON(http.MethodPut, "/api/attendance/not-a-uuid", `{"in_datetime": "2024-03-08T09:00", "out_datetime": "2024-03-08T13:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPut, "/api/attendance/"+target.ID, `{"in_datetime": "2024-03-08T09:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPut, "/api/attendance/"+target.ID, `{"in_datetime": "yesterday", "out_datetime": "2024-03-08T13:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPut, "/api/attendance/"+records[0].EmployeeID, `{"in_datetime": "2024-03-08T09:00", "out_datetime": "2024-03-08T13:00"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Delete
	rec = srv.do(http.MethodDelete, "/api/attendance/"+target.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Attendance deleted successfully", decode[map[string]string](t, rec)["message"])

	rec = srv.do(http.MethodDelete, "/api/attendance/"+target.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestMonthlySummaryAndExport(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.createEmployee("E001")
	require.Equal(t, http.StatusOK, srv.doJSON(http.MethodPost, "/api/attendance/upload?month=2024-03", marchPunches).Code)

	rec := srv.do(http.MethodGet, "/api/attendance/monthly-summary?month=2024-03", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]MonthlySummaryDTO](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].PresentDays)
	assert.Equal(t, 31-5-2, rows[0].AbsentDays)
	assert.Equal(t, 7.0, rows[0].WorkingDays)
	assert.Equal(t, 1.0, rows[0].OvertimeHours)
	assert.Equal(t, 187.5, rows[0].OvertimePay)
	assert.Equal(t, 7000.0, rows[0].TotalSalary)

	rec = srv.do(http.MethodGet, "/api/attendance/monthly-summary/export?month=2024-03", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance-summary-2024-03.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	rec = srv.do(http.MethodGet, "/api/attendance/monthly-summary?month=march", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = srv.do(http.MethodGet, "/api/attendance/monthly-summary/export", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns_Limit(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.createEmployee("E001")
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, srv.doJSON(http.MethodPost, "/api/attendance/upload?month=2024-03", marchPunches).Code)
	}

	rec := srv.do(http.MethodGet, "/api/attendance/runs?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]RunDTO](t, rec), 2)

	rec = srv.do(http.MethodGet, "/api/attendance/runs?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping_InternalDetailsHidden(t *testing.T) {
	rec := httptest.NewRecorder()
	h := &Handler{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	h.writeServiceError(rec, "Failed to list employees", assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Failed to list employees", body.Error)
	assert.Empty(t, body.Details)
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
