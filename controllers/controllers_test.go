package controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hrms_go/controllers"
	"hrms_go/database/dbtest"
	"hrms_go/middleware"
	"hrms_go/models"
	"hrms_go/routes"
	"hrms_go/services"
	"hrms_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "controller-test-secret-0123456789"

type testServer struct {
	app    *fiber.App
	db     *gorm.DB
	tokens map[uint]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)

	employees := []models.Employee{
		{BaseModel: models.BaseModel{ID: 1}, EmpID: "EMP001", Name: "Admin", Email: "admin@test", Auth: models.AuthAdmin, Status: "active"},
		{BaseModel: models.BaseModel{ID: 4}, EmpID: "EMP004", Name: "Ravi", Email: "ravi@test", Auth: models.AuthEmployee, Status: "active"},
		{BaseModel: models.BaseModel{ID: 9}, EmpID: "EMP009", Name: "Gone", Email: "gone@test", Auth: models.AuthEmployee, Status: "inactive"},
	}
	require.NoError(t, db.Create(&employees).Error)

	// Monday morning
	clock := services.FixedClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), time.UTC)
	locker := services.NewLocalLocker()
	attendance := services.NewAttendanceService(db, locker, nil, clock)
	leaves := services.NewLeaveService(db, locker, nil, clock)
	timesheets := services.NewTimesheetService(db, locker, nil, clock)
	rs := services.NewReconciliationService(db, locker, nil, clock, 2, time.Second)
	sm := services.NewScheduleManager(time.UTC, time.Minute)
	require.NoError(t, sm.RegisterSweeps(rs, "59 14 * * *", "29 19 * * *"))
	archives := services.NewLogArchiveService(db, storage.NewMemoryStore(), nil, clock)

	app := fiber.New()
	routes.SetupRoutes(app, db, testSecret, routes.Controllers{
		Attendance: controllers.NewAttendanceController(attendance, services.NewReportService(attendance, clock)),
		Leave:      controllers.NewLeaveController(leaves),
		Timesheet:  controllers.NewTimesheetController(timesheets),
		Admin:      controllers.NewAdminController(rs, sm, archives, 30),
		Health:     controllers.NewHealthController(services.NewHealthService(services.HealthOptions{DB: db})),
	})

	srv := &testServer{app: app, db: db, tokens: map[uint]string{}}
	for i := range employees {
		token, err := middleware.GenerateToken(&employees[i], testSecret, time.Hour)
		require.NoError(t, err)
		srv.tokens[employees[i].ID] = token
	}
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, as uint, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token, ok := s.tokens[as]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

var office = map[string]any{"latitude": 18.52, "longitude": 73.85}

func TestPunchOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodPost, "/api/attendance/punch", 4, map[string]any{"mark": "In", "location": office})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])

	status, body = srv.do(t, http.MethodPost, "/api/attendance/punch", 4, map[string]any{"mark": "In", "location": office})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "BusinessRuleViolation", body["kind"])

	status, body = srv.do(t, http.MethodPost, "/api/attendance/punch", 4, map[string]any{"mark": "Sideways", "location": office})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ValidationError", body["kind"])

	status, _ = srv.do(t, http.MethodGet, "/api/attendance/today", 4, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, http.MethodGet, "/api/attendance/today", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = srv.do(t, http.MethodGet, "/api/attendance/today", 9, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	srv.tokens[77] = "not-a-token"
	status, _ = srv.do(t, http.MethodGet, "/api/attendance/today", 77, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutesRequirePrivilege(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, http.MethodPost, "/api/admin/sweeps/absence_sweep", 4, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := srv.do(t, http.MethodPost, "/api/admin/sweeps/absence_sweep", 1, nil)
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["processed"])
	assert.EqualValues(t, 2, data["changed"])

	status, _ = srv.do(t, http.MethodPost, "/api/admin/sweeps/unknown", 1, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = srv.do(t, http.MethodGet, "/api/admin/jobs", 1, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, body = srv.do(t, http.MethodPost, "/api/admin/logs/archive?days=3", 1, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ValidationError", body["kind"])
}

func TestLeaveNotFoundAndTimesheetGate(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodDelete, "/api/leave/does-not-exist", 4, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NotFoundError", body["kind"])

	status, _ = srv.do(t, http.MethodPost, "/api/timesheet", 4, map[string]any{
		"date": "2025-03-10", "project": 1, "taskName": "API", "duration": 2,
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = srv.do(t, http.MethodPost, "/api/timesheet", 4, map[string]any{"date": "bad"})
	assert.Equal(t, http.StatusBadRequest, status, body)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodGet, "/health/live", 0, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = srv.do(t, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["dependencies"])
}
