package services

import (
	"context"
	"testing"
	"time"

	"hrms_go/database/dbtest"
	"hrms_go/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Roster used across service tests.
const (
	adminID   uint = 1
	hrID      uint = 2
	managerID uint = 3
	ravi      uint = 4
	sneha     uint = 5
)

type fixture struct {
	db  *gorm.DB
	now time.Time

	projectActive   models.Project
	projectInactive models.Project
	projectAdmin    models.Project
}

// clock follows f.now, so tests can move time between calls.
func (f *fixture) clock() Clock {
	return Clock{Now: func() time.Time { return f.now }, Location: time.UTC}
}

func at(day string, hour, min int) time.Time {
	t, err := time.ParseInLocation("2006-01-02", day, time.UTC)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{db: db, now: now}

	employees := []models.Employee{
		{BaseModel: models.BaseModel{ID: adminID}, EmpID: "EMP001", Name: "Admin", Email: "admin@test", Auth: models.AuthAdmin, Status: "active"},
		{BaseModel: models.BaseModel{ID: hrID}, EmpID: "EMP002", Name: "HR", Email: "hr@test", Auth: models.AuthHR, Status: "active"},
		{BaseModel: models.BaseModel{ID: managerID}, EmpID: "EMP003", Name: "Manager", Email: "manager@test", Auth: models.AuthManager, Status: "active"},
		{BaseModel: models.BaseModel{ID: ravi}, EmpID: "EMP004", Name: "Ravi", Email: "ravi@test", Auth: models.AuthEmployee, Status: "active"},
		{BaseModel: models.BaseModel{ID: sneha}, EmpID: "EMP005", Name: "Sneha", Email: "sneha@test", Auth: models.AuthEmployee, Status: "active"},
	}
	require.NoError(t, db.Create(&employees).Error)

	f.projectActive = models.Project{Name: "Payroll", ManagerID: managerID, Status: models.ProjectActive, AssignTo: []models.Employee{employees[3], employees[4]}}
	f.projectInactive = models.Project{Name: "Legacy", ManagerID: managerID, Status: models.ProjectInactive, AssignTo: []models.Employee{employees[3]}}
	f.projectAdmin = models.Project{Name: "Internal", ManagerID: adminID, Status: models.ProjectActive, AssignTo: []models.Employee{employees[3]}}
	require.NoError(t, db.Create(&f.projectActive).Error)
	require.NoError(t, db.Create(&f.projectInactive).Error)
	require.NoError(t, db.Create(&f.projectAdmin).Error)

	for _, id := range []uint{ravi, sneha} {
		balance := models.LeaveBalance{
			EmployeeID:      id,
			Leaves:          models.BalanceCounter{Available: 10},
			OptionalHoliday: models.BalanceCounter{Available: 2},
			OptionalHolidays: []models.OptionalHolidayDay{
				{Name: "Holi", Date: "2025-03-14"},
				{Name: "New Year", Date: "2025-01-01"},
			},
			MandatoryHoliday: models.JSON(`[]`),
			WeekendHoliday:   models.JSON(`["Saturday","Sunday"]`),
		}
		require.NoError(t, db.Create(&balance).Error)
	}
	return f
}

func (f *fixture) scope(t *testing.T, requesterID uint) *AccessScope {
	t.Helper()
	s, err := ResolveAccessScope(context.Background(), f.db, requesterID)
	require.NoError(t, err)
	return s
}

func (f *fixture) balance(t *testing.T, employeeID uint) models.LeaveBalance {
	t.Helper()
	var b models.LeaveBalance
	require.NoError(t, f.db.Where("employee_id = ?", employeeID).Take(&b).Error)
	return b
}

func (f *fixture) record(t *testing.T, employeeID uint, day string) (models.AttendanceRecord, bool) {
	t.Helper()
	rec, found, err := findDayRecord(f.db, employeeID, day, false)
	require.NoError(t, err)
	return rec, found
}

func (f *fixture) putRecord(t *testing.T, rec models.AttendanceRecord) models.AttendanceRecord {
	t.Helper()
	require.NoError(t, f.db.Create(&rec).Error)
	return rec
}

func (f *fixture) countRecords(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.AttendanceRecord{}).Count(&n).Error)
	return n
}

func timePtr(t time.Time) *time.Time { return &t }
