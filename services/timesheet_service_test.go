package services

import (
	"context"
	"testing"
	"time"

	"hrms_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTimesheetFixture(t *testing.T) (*fixture, *TimesheetService) {
	f := newFixture(t, at("2025-03-14", 18, 0))

	classified := []struct {
		day    string
		status models.AttendanceStatus
		worked time.Duration
	}{
		{"2025-03-10", models.StatusFullDay, 8 * time.Hour},
		{"2025-03-11", models.StatusHalfDay, 252 * time.Minute},
		{"2025-03-12", models.StatusHalfDay, 276 * time.Minute},
		{"2025-03-13", models.StatusAbsent, 0},
	}
	for _, c := range classified {
		for _, id := range []uint{ravi, sneha} {
			f.putRecord(t, models.AttendanceRecord{
				EmployeeID: id, Date: c.day, Mark: models.MarkOut, TotalHrs: c.worked,
				AttendanceStatus: models.StatusPtr(c.status),
			})
		}
	}
	return f, NewTimesheetService(f.db, nil, nil, f.clock())
}

func task(day string, projectID uint, name string, hours float64) FillTimesheetInput {
	return FillTimesheetInput{Date: day, ProjectID: projectID, TaskName: name, Duration: hours}
}

func TestCanLogWork(t *testing.T) {
	tests := []struct {
		name   string
		status *models.AttendanceStatus
		worked time.Duration
		want   bool
	}{
		{"full day", models.StatusPtr(models.StatusFullDay), 4 * time.Hour, true},
		{"half day at 4.2h", models.StatusPtr(models.StatusHalfDay), 252 * time.Minute, false},
		{"half day at 4.5h", models.StatusPtr(models.StatusHalfDay), 270 * time.Minute, true},
		{"half day at 4.6h", models.StatusPtr(models.StatusHalfDay), 276 * time.Minute, true},
		{"absent", models.StatusPtr(models.StatusAbsent), 0, false},
		{"week off", models.StatusPtr(models.StatusWeekOff), 0, false},
		{"unclassified", nil, 5 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := models.AttendanceRecord{AttendanceStatus: tt.status, TotalHrs: tt.worked}
			assert.Equal(t, tt.want, CanLogWork(rec))
		})
	}
}

func TestFillTimesheetGate(t *testing.T) {
	f, svc := newTimesheetFixture(t)
	ctx := context.Background()
	active := f.projectActive.ID

	tests := []struct {
		name     string
		employee uint
		in       FillTimesheetInput
		kind     ErrorKind
	}{
		{"full day", ravi, task("2025-03-10", active, "API", 6), KindUnknown},
		{"half day 4.2h", ravi, task("2025-03-11", active, "API", 2), KindBusinessRule},
		{"half day 4.6h", ravi, task("2025-03-12", active, "API", 2), KindUnknown},
		{"absent", ravi, task("2025-03-13", active, "API", 2), KindBusinessRule},
		{"no record", ravi, task("2025-03-14", active, "API", 2), KindBusinessRule},
		{"inactive project", ravi, task("2025-03-10", f.projectInactive.ID, "API", 2), KindBusinessRule},
		{"not assigned", sneha, task("2025-03-10", f.projectAdmin.ID, "API", 2), KindBusinessRule},
		{"unknown project", ravi, task("2025-03-10", 999, "API", 2), KindNotFound},
		{"zero duration", ravi, task("2025-03-10", active, "API", 0), KindValidation},
		{"missing task name", ravi, task("2025-03-10", active, "", 1), KindValidation},
		{"bad date", ravi, task("10/03/2025", active, "API", 1), KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := svc.Fill(ctx, tt.employee, tt.in)
			if tt.kind == KindUnknown {
				require.NoError(t, err)
				assert.Equal(t, tt.in.Date, entry.Date)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err), err.Error())
		})
	}
}

func TestFillAppendsToDayEntry(t *testing.T) {
	f, svc := newTimesheetFixture(t)
	ctx := context.Background()

	_, err := svc.Fill(ctx, ravi, task("2025-03-10", f.projectActive.ID, "Design", 3))
	require.NoError(t, err)
	entry, err := svc.Fill(ctx, ravi, task("2025-03-10", f.projectAdmin.ID, "Review", 2.5))
	require.NoError(t, err)

	require.Len(t, entry.Tasks, 2)
	names := []string{entry.Tasks[0].TaskName, entry.Tasks[1].TaskName}
	assert.ElementsMatch(t, []string{"Design", "Review"}, names)
	assert.NotEmpty(t, entry.Tasks[1].ID)

	var entries int64
	require.NoError(t, f.db.Model(&models.TimesheetEntry{}).Count(&entries).Error)
	assert.EqualValues(t, 1, entries)
}

func TestTimesheetQueryIsScopedPerTask(t *testing.T) {
	f, svc := newTimesheetFixture(t)
	ctx := context.Background()

	_, err := svc.Fill(ctx, ravi, task("2025-03-10", f.projectActive.ID, "Design", 3))
	require.NoError(t, err)
	_, err = svc.Fill(ctx, ravi, task("2025-03-10", f.projectAdmin.ID, "Review", 2))
	require.NoError(t, err)
	_, err = svc.Fill(ctx, ravi, task("2025-03-12", f.projectAdmin.ID, "Ops", 4))
	require.NoError(t, err)

	// manager sees only tasks on projects they manage; 03-12 loses every task
	got, err := svc.Query(ctx, f.scope(t, managerID), ravi, TimesheetFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-03-10", got[0].Date)
	require.Len(t, got[0].Tasks, 1)
	assert.Equal(t, "Design", got[0].Tasks[0].TaskName)

	// privileged roles see everything
	got, err = svc.Query(ctx, f.scope(t, hrID), ravi, TimesheetFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Len(t, got[0].Tasks, 2)

	// managing nothing means an empty list, even for one's own timesheets
	for _, target := range []uint{ravi, sneha} {
		got, err = svc.Query(ctx, f.scope(t, sneha), target, TimesheetFilter{})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}

	got, err = svc.Query(ctx, f.scope(t, adminID), ravi, TimesheetFilter{From: "2025-03-11", To: "2025-03-31"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-03-12", got[0].Date)

	got, err = svc.Query(ctx, f.scope(t, adminID), ravi, TimesheetFilter{ProjectID: f.projectActive.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = svc.Query(ctx, f.scope(t, adminID), ravi, TimesheetFilter{From: "2025-03-12", To: "2025-03-11"})
	assert.True(t, IsKind(err, KindValidation))

	got, err = svc.ByDate(ctx, f.scope(t, managerID), ravi, "2025-03-12")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTimesheetOwnReadsAndTotals(t *testing.T) {
	f, svc := newTimesheetFixture(t)
	ctx := context.Background()

	_, err := svc.Fill(ctx, ravi, task("2025-03-10", f.projectActive.ID, "Design", 3))
	require.NoError(t, err)
	_, err = svc.Fill(ctx, ravi, task("2025-03-10", f.projectAdmin.ID, "Review", 2.5))
	require.NoError(t, err)
	_, err = svc.Fill(ctx, ravi, task("2025-03-12", f.projectActive.ID, "Build", 4))
	require.NoError(t, err)

	own, err := svc.OwnByDate(ctx, ravi, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, own.Tasks, 2)

	_, err = svc.OwnByDate(ctx, ravi, "2025-03-11")
	assert.True(t, IsKind(err, KindNotFound))

	totals, err := svc.YearlyDurations(ctx, f.scope(t, adminID), ravi, 2025)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "2025-03-10", totals[0].Date)
	assert.Equal(t, 5.5, totals[0].TotalDuration)
	assert.Equal(t, 4.0, totals[1].TotalDuration)

	totals, err = svc.YearlyDurations(ctx, f.scope(t, managerID), ravi, 2025)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, 3.0, totals[0].TotalDuration)

	totals, err = svc.YearlyDurations(ctx, f.scope(t, adminID), ravi, 2024)
	require.NoError(t, err)
	assert.Empty(t, totals)

	days, err := svc.Days(ctx, ravi)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-12", "2025-03-10"}, days)
}

func TestUpdateAndDeleteTask(t *testing.T) {
	f, svc := newTimesheetFixture(t)
	ctx := context.Background()

	entry, err := svc.Fill(ctx, ravi, task("2025-03-10", f.projectActive.ID, "Design", 3))
	require.NoError(t, err)
	taskID := entry.Tasks[0].ID

	hours := 3.5
	name := "Design review"
	updated, err := svc.UpdateTask(ctx, ravi, taskID, TaskPatch{TaskName: &name, Duration: &hours})
	require.NoError(t, err)
	assert.Equal(t, "Design review", updated.TaskName)
	assert.Equal(t, 3.5, updated.Duration)

	_, err = svc.UpdateTask(ctx, sneha, taskID, TaskPatch{Duration: &hours})
	assert.True(t, IsKind(err, KindNotFound))
	_, err = svc.UpdateTask(ctx, ravi, taskID, TaskPatch{})
	assert.True(t, IsKind(err, KindValidation))
	negative := -1.0
	_, err = svc.UpdateTask(ctx, ravi, taskID, TaskPatch{Duration: &negative})
	assert.True(t, IsKind(err, KindValidation))

	assert.True(t, IsKind(svc.DeleteTask(ctx, sneha, taskID), KindNotFound))
	require.NoError(t, svc.DeleteTask(ctx, ravi, taskID))
	assert.True(t, IsKind(svc.DeleteTask(ctx, ravi, taskID), KindNotFound))

	_, err = svc.OwnByDate(ctx, ravi, "2025-03-10")
	assert.True(t, IsKind(err, KindNotFound))

	// the day can be filled again after its entry was removed
	_, err = svc.Fill(ctx, ravi, task("2025-03-10", f.projectActive.ID, "Design", 1))
	assert.NoError(t, err)
}
