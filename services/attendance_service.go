package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hrms_go/models"
	"hrms_go/services/notifications"
	"hrms_go/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FullDayThreshold separates FullDay from HalfDay when a record is punched out.
const FullDayThreshold = 4 * time.Hour

// ClassifyWorkedTime maps a worked duration to its status. Any duration short
// of the threshold, including zero, is a half day, never an absence.
func ClassifyWorkedTime(total time.Duration) models.AttendanceStatus {
	if total >= FullDayThreshold {
		return models.StatusFullDay
	}
	return models.StatusHalfDay
}

// AttendanceService owns the per-employee-per-day punch state machine.
type AttendanceService struct {
	db     *gorm.DB
	locker KeyLocker
	sink   ActivitySink
	clock  Clock
}

func NewAttendanceService(db *gorm.DB, locker KeyLocker, sink ActivitySink, clock Clock) *AttendanceService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &AttendanceService{db: db, locker: locker, sink: sinkOrDiscard(sink), clock: clock}
}

func attendanceKey(employeeID uint, day string) string {
	return fmt.Sprintf("attendance:%d:%s", employeeID, day)
}

func validLocation(p *models.GeoPoint) bool {
	return p != nil && (p.Latitude != 0 || p.Longitude != 0)
}

// Punch records an In or Out for today. Rejected transitions leave the record untouched.
func (s *AttendanceService) Punch(ctx context.Context, employeeID uint, mark models.Mark, location *models.GeoPoint) (*models.AttendanceRecord, error) {
	const op = "attendance.punch"

	switch mark {
	case models.MarkIn:
		if !validLocation(location) {
			return nil, ValidationError(op, "Invalid inlocation data.")
		}
	case models.MarkOut:
		if !validLocation(location) {
			return nil, ValidationError(op, "Invalid outlocation data.")
		}
	default:
		return nil, ValidationError(op, "Invalid mark value. Use \"In\" or \"Out\".")
	}
	if err := ensureEmployee(ctx, s.db, op, employeeID); err != nil {
		return nil, err
	}

	now := s.clock.now()
	today := utils.DayKey(now, s.clock.loc())

	unlock, err := s.locker.Lock(ctx, attendanceKey(employeeID, today))
	if err != nil {
		return nil, storageError(op, err, "attendance lock")
	}
	defer unlock()

	var record models.AttendanceRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		covered, err := approvedLeaveCovers(tx, employeeID, today)
		if err != nil {
			return err
		}
		if covered {
			return BusinessRuleError(op, "Cannot punch in/out during approved leave dates.")
		}

		existing, found, err := findDayRecord(tx, employeeID, today, true)
		if err != nil {
			return err
		}
		if mark == models.MarkIn {
			record, err = punchIn(tx, op, existing, found, employeeID, today, now, *location)
		} else {
			record, err = punchOut(tx, op, existing, found, now, *location)
		}
		return err
	})
	if err != nil {
		return nil, storageError(op, err, "attendance record")
	}

	action, verb := "punch_in", "punch in"
	if mark == models.MarkOut {
		action, verb = "punch_out", "punch out"
	}
	s.sink.Emit(notifications.Activity{
		EmployeeID: employeeID,
		Action:     action,
		Resource:   "attendance",
		ResourceID: today,
		Message:    fmt.Sprintf("employee %d %s", employeeID, verb),
	})
	logrus.WithFields(logrus.Fields{"employee_id": employeeID, "date": today, "mark": mark}).Info("attendance punch recorded")

	return &record, nil
}

func punchIn(tx *gorm.DB, op string, existing models.AttendanceRecord, found bool, employeeID uint, day string, now time.Time, loc models.GeoPoint) (models.AttendanceRecord, error) {
	if !found {
		record := models.AttendanceRecord{
			EmployeeID: employeeID,
			Date:       day,
			Mark:       models.MarkIn,
			InTime:     &now,
			InLocation: loc,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if res.Error != nil {
			return record, res.Error
		}
		if res.RowsAffected == 0 {
			return record, BusinessRuleError(op, "You have already punched in today.")
		}
		return record, nil
	}

	switch existing.Mark {
	case models.MarkIn:
		return existing, BusinessRuleError(op, "You have already punched in today.")
	case models.MarkOut:
		return existing, BusinessRuleError(op, "You cannot punch in twice in a day.")
	case models.MarkLeave:
		return existing, BusinessRuleError(op, "Cannot punch in/out during approved leave dates.")
	}

	// A swept-Absent day that is worked after all goes back to unclassified
	// and gets its absence debit refunded.
	res := tx.Model(&models.AttendanceRecord{}).
		Where("id = ? AND mark = ?", existing.ID, models.MarkNone).
		Updates(map[string]interface{}{
			"mark":              models.MarkIn,
			"in_time":           now,
			"in_latitude":       loc.Latitude,
			"in_longitude":      loc.Longitude,
			"attendance_status": nil,
			"leave_debited":     0,
		})
	if res.Error != nil {
		return existing, res.Error
	}
	if res.RowsAffected == 0 {
		return existing, BusinessRuleError(op, "You have already punched in today.")
	}
	if existing.LeaveDebited > 0 {
		if err := refundBalance(tx, employeeID, "leaves", existing.LeaveDebited); err != nil {
			return existing, err
		}
		logrus.WithFields(logrus.Fields{"employee_id": employeeID, "date": day, "days": existing.LeaveDebited}).
			Info("absence debit refunded on punch in")
	}

	var record models.AttendanceRecord
	err := tx.Take(&record, existing.ID).Error
	return record, err
}

func punchOut(tx *gorm.DB, op string, existing models.AttendanceRecord, found bool, now time.Time, loc models.GeoPoint) (models.AttendanceRecord, error) {
	if !found {
		return existing, BusinessRuleError(op, "Cannot punch out without punching in first.")
	}
	switch existing.Mark {
	case models.MarkOut:
		return existing, BusinessRuleError(op, "You have already punched out today.")
	case models.MarkLeave:
		return existing, BusinessRuleError(op, "Cannot punch in/out during approved leave dates.")
	case models.MarkNone:
		return existing, BusinessRuleError(op, "Cannot punch out without punching in first.")
	}
	if existing.InTime == nil {
		return existing, IntegrityError(op, "attendance record %d is punched in without an in time", existing.ID)
	}

	changed, err := closeDay(tx, existing, now, loc)
	if err != nil {
		return existing, err
	}
	if !changed {
		return existing, BusinessRuleError(op, "You have already punched out today.")
	}

	var record models.AttendanceRecord
	err = tx.Take(&record, existing.ID).Error
	return record, err
}

// closeDay moves an In record to Out with a compare-and-set on the mark.
func closeDay(tx *gorm.DB, record models.AttendanceRecord, now time.Time, loc models.GeoPoint) (bool, error) {
	total := now.Sub(*record.InTime)
	if total < 0 {
		total = 0
	}
	res := tx.Model(&models.AttendanceRecord{}).
		Where("id = ? AND mark = ?", record.ID, models.MarkIn).
		Updates(map[string]interface{}{
			"mark":              models.MarkOut,
			"out_time":          now,
			"out_latitude":      loc.Latitude,
			"out_longitude":     loc.Longitude,
			"total_hrs":         int64(total),
			"attendance_status": int(ClassifyWorkedTime(total)),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// History returns an employee's records newest first.
func (s *AttendanceService) History(ctx context.Context, scope *AccessScope, employeeID uint) ([]models.AttendanceRecord, error) {
	records := []models.AttendanceRecord{}
	if !scope.CanViewEmployee(employeeID) {
		return records, nil
	}
	err := s.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("date DESC").
		Find(&records).Error
	if err != nil {
		return nil, storageError("attendance.history", err, "attendance records")
	}
	return records, nil
}

// ByDate returns every visible record for a day.
func (s *AttendanceService) ByDate(ctx context.Context, scope *AccessScope, day string) ([]models.AttendanceRecord, error) {
	if _, err := utils.ParseDayKey(day); err != nil {
		return nil, ValidationError("attendance.by_date", "%v", err)
	}
	return s.Range(ctx, scope, day, day)
}

// Range returns visible records in [from, to] ordered by date then employee.
func (s *AttendanceService) Range(ctx context.Context, scope *AccessScope, from, to string) ([]models.AttendanceRecord, error) {
	const op = "attendance.range"
	if _, err := utils.DaySpan(from, to); err != nil {
		return nil, ValidationError(op, "%v", err)
	}

	q := s.db.WithContext(ctx).Preload("Employee").
		Where("date BETWEEN ? AND ?", from, to)
	if ids := scope.VisibleEmployeeIDs(); ids != nil {
		q = q.Where("employee_id IN ?", ids)
	}

	records := []models.AttendanceRecord{}
	if err := q.Order("date ASC").Order("employee_id ASC").Find(&records).Error; err != nil {
		return nil, storageError(op, err, "attendance records")
	}
	return records, nil
}

// Today returns the caller's own record for the current day, if any.
func (s *AttendanceService) Today(ctx context.Context, employeeID uint) (*models.AttendanceRecord, error) {
	record, found, err := findDayRecord(s.db.WithContext(ctx), employeeID, s.clock.Today(), false)
	if err != nil {
		return nil, storageError("attendance.today", err, "attendance record")
	}
	if !found {
		return nil, NotFoundError("attendance.today", "no attendance recorded today")
	}
	return &record, nil
}

func findDayRecord(tx *gorm.DB, employeeID uint, day string, forUpdate bool) (models.AttendanceRecord, bool, error) {
	var record models.AttendanceRecord
	q := tx
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("employee_id = ? AND date = ?", employeeID, day).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record, false, nil
	}
	if err != nil {
		return record, false, err
	}
	return record, true, nil
}

func approvedLeaveCovers(tx *gorm.DB, employeeID uint, day string) (bool, error) {
	var n int64
	err := tx.Model(&models.LeaveApplication{}).
		Where("employee_id = ? AND application_status = ? AND from_date <= ? AND to_date >= ?",
			employeeID, models.ApplicationApproved, day, day).
		Count(&n).Error
	return n > 0, err
}

func ensureEmployee(ctx context.Context, db *gorm.DB, op string, employeeID uint) error {
	if employeeID == 0 {
		return ValidationError(op, "employee_id is required")
	}
	var n int64
	if err := db.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", employeeID).Count(&n).Error; err != nil {
		return storageError(op, err, "employee")
	}
	if n == 0 {
		return NotFoundError(op, "Employee does not exist")
	}
	return nil
}
