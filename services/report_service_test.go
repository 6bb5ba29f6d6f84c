package services

import (
	"context"
	"testing"
	"time"

	"hrms_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportAttendance(t *testing.T) {
	f := newFixture(t, at("2025-03-12", 20, 0))
	attendance := NewAttendanceService(f.db, nil, nil, f.clock())
	svc := NewReportService(attendance, f.clock())
	ctx := context.Background()

	f.putRecord(t, models.AttendanceRecord{
		EmployeeID: ravi, Date: "2025-03-10", Mark: models.MarkOut,
		InTime: timePtr(at("2025-03-10", 9, 0)), OutTime: timePtr(at("2025-03-10", 17, 30)),
		TotalHrs: 8*time.Hour + 30*time.Minute, AttendanceStatus: models.StatusPtr(models.StatusFullDay),
	})
	f.putRecord(t, models.AttendanceRecord{EmployeeID: ravi, Date: "2025-03-11", Mark: models.MarkLeave, AttendanceStatus: models.StatusPtr(models.StatusAbsent)})
	f.putRecord(t, models.AttendanceRecord{EmployeeID: sneha, Date: "2025-03-11", AttendanceStatus: models.StatusPtr(models.StatusAbsent)})
	f.putRecord(t, models.AttendanceRecord{EmployeeID: adminID, Date: "2025-03-11", AttendanceStatus: models.StatusPtr(models.StatusAbsent)})

	buf, err := svc.ExportAttendance(ctx, f.scope(t, managerID), "2025-03-01", "2025-03-31")
	require.NoError(t, err)

	wb, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"Attendance", "Summary"}, wb.GetSheetList())

	rows, err := wb.GetRows("Attendance")
	require.NoError(t, err)
	// header plus the three team records; the admin's row is not visible
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "Employee ID", "Name", "Mark", "In", "Out", "Hours", "Status"}, rows[0])
	assert.Equal(t, []string{"2025-03-10", "EMP004", "Ravi", "Out", "09:00", "17:30", "8.50", "FullDay"}, rows[1])

	summary, err := wb.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"EMP004", "Ravi", "2", "1", "0", "0", "1", "0", "8.50"}, summary[1])
	assert.Equal(t, []string{"EMP005", "Sneha", "1", "0", "0", "1", "0", "0", "0.00"}, summary[2])

	_, err = svc.ExportAttendance(ctx, f.scope(t, managerID), "2025-03-31", "2025-03-01")
	assert.True(t, IsKind(err, KindValidation))
}
