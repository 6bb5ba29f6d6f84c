package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hrms_go/models"
	"hrms_go/services/notifications"
	"hrms_go/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MinLoggableHalfDay is the worked time a HalfDay needs before work can be logged against it.
const MinLoggableHalfDay = 4*time.Hour + 30*time.Minute

// FillTimesheetInput is one task logged against a project for a day.
type FillTimesheetInput struct {
	Date        string  `json:"date" validate:"required,daykey"`
	ProjectID   uint    `json:"project" validate:"required"`
	TaskName    string  `json:"taskName" validate:"required,max=255"`
	SubTaskName string  `json:"subTaskName" validate:"max=255"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration" validate:"gt=0,lte=24"`
	Remark      string  `json:"remark"`
}

// TaskPatch updates the non-nil fields of a task.
type TaskPatch struct {
	TaskName    *string  `json:"taskName" validate:"omitempty,min=1,max=255"`
	SubTaskName *string  `json:"subTaskName" validate:"omitempty,max=255"`
	Description *string  `json:"description"`
	Duration    *float64 `json:"duration" validate:"omitempty,gt=0,lte=24"`
	Remark      *string  `json:"remark"`
}

// TimesheetFilter bounds a timesheet query. Empty bounds are open.
type TimesheetFilter struct {
	From      string `json:"from" query:"from" validate:"omitempty,daykey"`
	To        string `json:"to" query:"to" validate:"omitempty,daykey"`
	ProjectID uint   `json:"project" query:"project"`
}

type TimesheetService struct {
	db     *gorm.DB
	locker KeyLocker
	sink   ActivitySink
	clock  Clock
}

func NewTimesheetService(db *gorm.DB, locker KeyLocker, sink ActivitySink, clock Clock) *TimesheetService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &TimesheetService{db: db, locker: locker, sink: sinkOrDiscard(sink), clock: clock}
}

func timesheetKey(employeeID uint, day string) string {
	return fmt.Sprintf("timesheet:%d:%s", employeeID, day)
}

// CanLogWork reports whether a classified attendance record allows timesheet entries.
func CanLogWork(record models.AttendanceRecord) bool {
	switch {
	case record.HasStatus(models.StatusFullDay):
		return true
	case record.HasStatus(models.StatusHalfDay):
		return record.TotalHrs >= MinLoggableHalfDay
	default:
		return false
	}
}

// Fill appends a task to the employee's entry for the day, creating the entry on first use.
func (s *TimesheetService) Fill(ctx context.Context, employeeID uint, in FillTimesheetInput) (*models.TimesheetEntry, error) {
	const op = "timesheet.fill"

	if err := utils.Validate.Struct(in); err != nil {
		return nil, ValidationError(op, "%s", utils.FormatValidationError(err))
	}
	if err := ensureEmployee(ctx, s.db, op, employeeID); err != nil {
		return nil, err
	}

	var project models.Project
	if err := s.db.WithContext(ctx).Take(&project, in.ProjectID).Error; err != nil {
		return nil, storageError(op, err, "Project")
	}
	var assigned int64
	if err := s.db.WithContext(ctx).Table("project_assignments").
		Where("project_id = ? AND employee_id = ?", project.ID, employeeID).
		Count(&assigned).Error; err != nil {
		return nil, storageError(op, err, "project assignment")
	}
	if assigned == 0 {
		return nil, BusinessRuleError(op, "You are not assigned to this project.")
	}
	if project.Status != models.ProjectActive {
		return nil, BusinessRuleError(op, "Project is not active.")
	}

	record, found, err := findDayRecord(s.db.WithContext(ctx), employeeID, in.Date, false)
	if err != nil {
		return nil, storageError(op, err, "attendance record")
	}
	if !found {
		return nil, BusinessRuleError(op, "No attendance record found for %s.", in.Date)
	}
	if !CanLogWork(record) {
		if record.HasStatus(models.StatusHalfDay) {
			return nil, BusinessRuleError(op, "Half day attendance needs at least 4.5 hours worked to fill the timesheet.")
		}
		return nil, BusinessRuleError(op, "Timesheet can only be filled for a full day or half day of attendance.")
	}

	unlock, err := s.locker.Lock(ctx, timesheetKey(employeeID, in.Date))
	if err != nil {
		return nil, storageError(op, err, "timesheet lock")
	}
	defer unlock()

	var entry models.TimesheetEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry = models.TimesheetEntry{EmployeeID: employeeID, Date: in.Date}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Where("employee_id = ? AND date = ?", employeeID, in.Date).Take(&entry).Error; err != nil {
			return err
		}
		task := models.TimesheetTask{
			TimesheetID: entry.ID,
			ProjectID:   project.ID,
			TaskName:    utils.SanitizeString(in.TaskName),
			SubTaskName: utils.SanitizeString(in.SubTaskName),
			Description: in.Description,
			Duration:    in.Duration,
			Remark:      in.Remark,
		}
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		return tx.Preload("Tasks", orderTasks).Take(&entry, entry.ID).Error
	})
	if err != nil {
		return nil, storageError(op, err, "timesheet entry")
	}

	s.sink.Emit(notifications.Activity{
		EmployeeID: employeeID,
		Action:     "timesheet_fill",
		Resource:   "timesheet",
		ResourceID: in.Date,
		Message:    fmt.Sprintf("employee %d logged %.2fh on project %d", employeeID, in.Duration, project.ID),
	})
	return &entry, nil
}

func orderTasks(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// ownTask loads a task together with the entry it belongs to, if that entry is employeeID's.
func (s *TimesheetService) ownTask(ctx context.Context, op string, employeeID uint, taskID string) (models.TimesheetTask, models.TimesheetEntry, error) {
	var task models.TimesheetTask
	var entry models.TimesheetEntry
	if taskID == "" {
		return task, entry, ValidationError(op, "taskId is required")
	}
	if err := s.db.WithContext(ctx).Take(&task, "id = ?", taskID).Error; err != nil {
		return task, entry, storageError(op, err, "Task")
	}
	err := s.db.WithContext(ctx).Where("id = ? AND employee_id = ?", task.TimesheetID, employeeID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task, entry, NotFoundError(op, "Task not found")
	}
	return task, entry, storageError(op, err, "timesheet entry")
}

// UpdateTask applies patch to one of the employee's own tasks.
func (s *TimesheetService) UpdateTask(ctx context.Context, employeeID uint, taskID string, patch TaskPatch) (*models.TimesheetTask, error) {
	const op = "timesheet.update_task"
	if err := utils.Validate.Struct(patch); err != nil {
		return nil, ValidationError(op, "%s", utils.FormatValidationError(err))
	}
	task, _, err := s.ownTask(ctx, op, employeeID, taskID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.TaskName != nil {
		updates["task_name"] = utils.SanitizeString(*patch.TaskName)
	}
	if patch.SubTaskName != nil {
		updates["sub_task_name"] = utils.SanitizeString(*patch.SubTaskName)
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Duration != nil {
		updates["duration"] = *patch.Duration
	}
	if patch.Remark != nil {
		updates["remark"] = *patch.Remark
	}
	if len(updates) == 0 {
		return nil, ValidationError(op, "No fields to update.")
	}

	if err := s.db.WithContext(ctx).Model(&models.TimesheetTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
		return nil, storageError(op, err, "Task")
	}
	if err := s.db.WithContext(ctx).Take(&task, "id = ?", task.ID).Error; err != nil {
		return nil, storageError(op, err, "Task")
	}
	return &task, nil
}

// DeleteTask removes one of the employee's tasks. An entry left without tasks is removed too.
func (s *TimesheetService) DeleteTask(ctx context.Context, employeeID uint, taskID string) error {
	const op = "timesheet.delete_task"
	task, entry, err := s.ownTask(ctx, op, employeeID, taskID)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, timesheetKey(employeeID, entry.Date))
	if err != nil {
		return storageError(op, err, "timesheet lock")
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.TimesheetTask{}, "id = ?", task.ID).Error; err != nil {
			return err
		}
		var left int64
		if err := tx.Model(&models.TimesheetTask{}).Where("timesheet_id = ?", entry.ID).Count(&left).Error; err != nil {
			return err
		}
		if left == 0 {
			return tx.Unscoped().Delete(&models.TimesheetEntry{}, entry.ID).Error
		}
		return nil
	})
	if err != nil {
		return storageError(op, err, "Task")
	}

	s.sink.Emit(notifications.Activity{
		EmployeeID: employeeID,
		Action:     "timesheet_delete_task",
		Resource:   "timesheet",
		ResourceID: task.ID,
		Message:    "timesheet task deleted",
	})
	return nil
}

// Query returns the target's timesheets as the requester may see them, oldest first.
// A requester who manages no projects gets an empty list.
func (s *TimesheetService) Query(ctx context.Context, scope *AccessScope, targetID uint, filter TimesheetFilter) ([]models.TimesheetEntry, error) {
	const op = "timesheet.query"
	if err := utils.Validate.Struct(filter); err != nil {
		return nil, ValidationError(op, "%s", utils.FormatValidationError(err))
	}
	if filter.From != "" && filter.To != "" && filter.From > filter.To {
		return nil, ValidationError(op, "from should not be after to")
	}

	entries := []models.TimesheetEntry{}
	if !scope.CanSeeAll && len(scope.ManagedProjectIDs) == 0 {
		return entries, nil
	}

	q := s.db.WithContext(ctx).Preload("Tasks", orderTasks).Where("employee_id = ?", targetID)
	if filter.From != "" {
		q = q.Where("date >= ?", filter.From)
	}
	if filter.To != "" {
		q = q.Where("date <= ?", filter.To)
	}
	if err := q.Order("date ASC").Find(&entries).Error; err != nil {
		return nil, storageError(op, err, "timesheet entries")
	}

	entries = scope.FilterTimesheets(entries)
	if filter.ProjectID != 0 {
		entries = filterByProject(entries, filter.ProjectID)
	}
	return entries, nil
}

func filterByProject(entries []models.TimesheetEntry, projectID uint) []models.TimesheetEntry {
	out := make([]models.TimesheetEntry, 0, len(entries))
	for _, e := range entries {
		e.Tasks = utils.Filter(e.Tasks, func(t models.TimesheetTask) bool { return t.ProjectID == projectID })
		if len(e.Tasks) > 0 {
			out = append(out, e)
		}
	}
	return out
}

// ByDate is Query narrowed to one day.
func (s *TimesheetService) ByDate(ctx context.Context, scope *AccessScope, targetID uint, day string) ([]models.TimesheetEntry, error) {
	if _, err := utils.ParseDayKey(day); err != nil {
		return nil, ValidationError("timesheet.by_date", "%v", err)
	}
	return s.Query(ctx, scope, targetID, TimesheetFilter{From: day, To: day})
}

// OwnByDate returns the caller's own entry for a day without project filtering.
func (s *TimesheetService) OwnByDate(ctx context.Context, employeeID uint, day string) (*models.TimesheetEntry, error) {
	const op = "timesheet.own_by_date"
	if _, err := utils.ParseDayKey(day); err != nil {
		return nil, ValidationError(op, "%v", err)
	}
	var entry models.TimesheetEntry
	err := s.db.WithContext(ctx).Preload("Tasks", orderTasks).
		Where("employee_id = ? AND date = ?", employeeID, day).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError(op, "No timesheet found for %s", day)
	}
	if err != nil {
		return nil, storageError(op, err, "timesheet entry")
	}
	return &entry, nil
}

// YearlyDurations sums the visible task durations per day of year.
func (s *TimesheetService) YearlyDurations(ctx context.Context, scope *AccessScope, targetID uint, year int) ([]utils.DayTotal, error) {
	if year < 1970 || year > 9999 {
		return nil, ValidationError("timesheet.yearly", "invalid year %d", year)
	}
	entries, err := s.Query(ctx, scope, targetID, TimesheetFilter{
		From: fmt.Sprintf("%04d-01-01", year),
		To:   fmt.Sprintf("%04d-12-31", year),
	})
	if err != nil {
		return nil, err
	}

	totals := utils.Map(entries, func(e models.TimesheetEntry) utils.DayTotal {
		var sum float64
		for _, t := range e.Tasks {
			sum += t.Duration
		}
		return utils.DayTotal{Date: e.Date, TotalDuration: utils.RoundTenth(sum)}
	})
	sort.Slice(totals, func(i, j int) bool { return totals[i].Date < totals[j].Date })
	return totals, nil
}

// Days lists the dates the employee has logged work on, newest first.
func (s *TimesheetService) Days(ctx context.Context, employeeID uint) ([]string, error) {
	days := []string{}
	err := s.db.WithContext(ctx).Model(&models.TimesheetEntry{}).
		Where("employee_id = ?", employeeID).
		Order("date DESC").
		Pluck("date", &days).Error
	if err != nil {
		return nil, storageError("timesheet.days", err, "timesheet entries")
	}
	return days, nil
}
