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

// ApplyLeaveInput is the payload of a leave or optional holiday application.
type ApplyLeaveInput struct {
	EmployeeID       uint             `json:"employee_id" validate:"required"`
	FromDate         string           `json:"fromdate" validate:"omitempty,daykey"`
	ToDate           string           `json:"todate" validate:"omitempty,daykey"`
	LeaveType        models.LeaveType `json:"leavetype" validate:"required,oneof=leave optional-holiday"`
	LeaveSubType     string           `json:"leavesubtype" validate:"max=100"`
	HolidayName      string           `json:"holidayname" validate:"max=255"`
	Reason           string           `json:"reason"`
	HalfDay          bool             `json:"halfday"`
	HalfDayPostLunch *bool            `json:"halfday_post_lunch"`
	// Approve submits the application already approved. Admin and HR only.
	Approve bool `json:"approve"`
}

// LeaveDetails is the balance view of one employee.
type LeaveDetails struct {
	EmployeeID       uint                        `json:"employee_id"`
	Leaves           models.BalanceCounter       `json:"leaves"`
	OptionalHoliday  OptionalHolidaySummary      `json:"optionalholiday"`
	MandatoryHoliday models.JSON                 `json:"mandatoryholiday"`
	WeekendHoliday   models.JSON                 `json:"weekendHoliday"`
	Catalogue        []models.OptionalHolidayDay `json:"-"`
}

type OptionalHolidaySummary struct {
	models.BalanceCounter
	List []models.OptionalHolidayDay `json:"optionalholidaylist"`
}

// LeaveService owns leave applications and the balance ledger.
type LeaveService struct {
	db     *gorm.DB
	locker KeyLocker
	sink   ActivitySink
	clock  Clock
}

func NewLeaveService(db *gorm.DB, locker KeyLocker, sink ActivitySink, clock Clock) *LeaveService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &LeaveService{db: db, locker: locker, sink: sinkOrDiscard(sink), clock: clock}
}

func leaveKey(employeeID uint) string {
	return fmt.Sprintf("leave:%d", employeeID)
}

// MaxLeaveRangeDays bounds a single application or overlap query.
const MaxLeaveRangeDays = 366

// leaveSpan validates [from, to] and returns its inclusive day count.
func leaveSpan(op, from, to string) (int, error) {
	n, err := utils.DaySpan(from, to)
	if err != nil {
		return 0, ValidationError(op, "From date should not be after to date.")
	}
	if n > MaxLeaveRangeDays {
		return 0, ValidationError(op, "Leave range cannot exceed %d days.", MaxLeaveRangeDays)
	}
	return n, nil
}

// totalLeaveDays counts the inclusive range, halved for half-day applications.
func totalLeaveDays(days int, halfDay bool) float64 {
	total := float64(days)
	if halfDay {
		if total > 1 {
			total -= total * 0.5
		} else {
			total -= 0.5
		}
	}
	return total
}

// ApplyLeave validates and stores an application. Balance sufficiency and
// overlap are checked under a lock on the employee's balance row.
func (s *LeaveService) ApplyLeave(ctx context.Context, requester *AccessScope, in ApplyLeaveInput) (*models.LeaveApplication, error) {
	const op = "leave.apply"

	if err := utils.Validate.Struct(in); err != nil {
		return nil, ValidationError(op, "%s", utils.FormatValidationError(err))
	}
	reason := utils.SanitizeString(in.Reason)
	if reason == "" {
		return nil, ValidationError(op, "Reason is required.")
	}
	if in.EmployeeID != requester.RequesterID && !requester.CanSeeAll {
		return nil, BusinessRuleError(op, "You can only apply for your own leave.")
	}
	if in.Approve && !requester.CanSeeAll {
		return nil, BusinessRuleError(op, "Only Admin or HR can submit an approved application.")
	}
	if err := ensureEmployee(ctx, s.db, op, in.EmployeeID); err != nil {
		return nil, err
	}

	now := s.clock.now()
	today := utils.DayKey(now, s.clock.loc())

	app := models.LeaveApplication{
		EmployeeID:        in.EmployeeID,
		LeaveType:         in.LeaveType,
		LeaveSubType:      utils.SanitizeString(in.LeaveSubType),
		HolidayName:       utils.SanitizeString(in.HolidayName),
		Reason:            reason,
		ApplicationStatus: models.ApplicationPending,
	}

	if in.LeaveType == models.LeaveTypeLeave {
		if in.FromDate == "" || in.ToDate == "" || app.LeaveSubType == "" {
			return nil, ValidationError(op, "Missing required fields.")
		}
		span, err := leaveSpan(op, in.FromDate, in.ToDate)
		if err != nil {
			return nil, err
		}
		if in.FromDate <= today && in.ToDate <= today {
			return nil, ValidationError(op, "Cannot apply for a past leave date.")
		}
		if in.HalfDay {
			if in.HalfDayPostLunch == nil {
				return nil, ValidationError(op, "Please specify whether the Half Day is Pre Lunch or Post Lunch.")
			}
			app.HalfDay = true
			app.HalfDayPostLunch = *in.HalfDayPostLunch
		}
		app.FromDate, app.ToDate = in.FromDate, in.ToDate
		app.TotalDays = totalLeaveDays(span, in.HalfDay)
	} else if app.HolidayName == "" {
		return nil, ValidationError(op, "Missing required fields.")
	}

	unlock, err := s.locker.Lock(ctx, leaveKey(in.EmployeeID))
	if err != nil {
		return nil, storageError(op, err, "leave lock")
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := lockBalance(tx, in.EmployeeID)
		if err != nil {
			return err
		}

		if app.LeaveType == models.LeaveTypeOptionalHoliday {
			var holiday models.OptionalHolidayDay
			err := tx.Where("leave_balance_id = ? AND name = ?", balance.ID, app.HolidayName).Take(&holiday).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError(op, "Holiday not found in optional holiday list.")
			}
			if err != nil {
				return err
			}
			if holiday.Date <= today {
				return ValidationError(op, "Cannot apply for a past holiday.")
			}
			app.FromDate, app.ToDate = holiday.Date, holiday.Date
			app.TotalDays = 1
		}

		overlap, err := checkOverlap(tx, op, in.EmployeeID, app.FromDate, app.ToDate)
		if err != nil {
			return err
		}
		if !overlap {
			overlap, err = approvedOverlap(tx, in.EmployeeID, app.FromDate, app.ToDate)
			if err != nil {
				return err
			}
		}
		if overlap {
			return BusinessRuleError(op, "You already have an existing leave application for one or more dates in this range")
		}

		if err := checkAvailable(tx, op, balance, app); err != nil {
			return err
		}

		if in.Approve {
			app.ApplicationStatus = models.ApplicationApproved
			reviewer := requester.RequesterID
			app.ReviewedBy = &reviewer
			app.ReviewedAt = &now
		}
		if err := tx.Create(&app).Error; err != nil {
			return err
		}
		if app.ApplicationStatus == models.ApplicationApproved {
			return applyApproval(tx, op, app, now)
		}
		return nil
	})
	if err != nil {
		return nil, storageError(op, err, "leave balance")
	}

	s.sink.Emit(notifications.Activity{
		EmployeeID: in.EmployeeID,
		Action:     "leave_apply",
		Resource:   "leave_application",
		ResourceID: app.ID,
		Message:    fmt.Sprintf("leave application from %d for %.1f days", in.EmployeeID, app.TotalDays),
		Details:    map[string]any{"fromdate": app.FromDate, "todate": app.ToDate, "status": app.ApplicationStatus.String()},
	})
	return &app, nil
}

// checkAvailable requires the counter to cover this application plus every pending one.
func checkAvailable(tx *gorm.DB, op string, balance models.LeaveBalance, app models.LeaveApplication) error {
	var reserved float64
	err := tx.Model(&models.LeaveApplication{}).
		Where("employee_id = ? AND leave_type = ? AND application_status = ?", app.EmployeeID, app.LeaveType, models.ApplicationPending).
		Select("COALESCE(SUM(total_days), 0)").
		Scan(&reserved).Error
	if err != nil {
		return err
	}

	if app.LeaveType == models.LeaveTypeOptionalHoliday {
		if balance.OptionalHoliday.Available <= 0 {
			return BusinessRuleError(op, "Not enough Optional holiday balance.")
		}
		if balance.OptionalHoliday.Available-reserved < app.TotalDays {
			return BusinessRuleError(op, "Not enough Optional holiday balance once pending applications are counted.")
		}
		return nil
	}

	if balance.Leaves.Available <= 0 {
		return BusinessRuleError(op, "Leave balance is zero or negative.")
	}
	if balance.Leaves.Available < app.TotalDays {
		return BusinessRuleError(op, "Not enough leave balance.")
	}
	if balance.Leaves.Available-reserved < app.TotalDays {
		return BusinessRuleError(op, "Not enough leave balance once pending applications are counted.")
	}
	return nil
}

// CheckOverlap reports whether [from, to] intersects any pending application of the employee.
func (s *LeaveService) CheckOverlap(ctx context.Context, employeeID uint, from, to string) (bool, error) {
	const op = "leave.check_overlap"
	if from == "" || to == "" || employeeID == 0 {
		return false, ValidationError(op, "Missing required parameters: fromDate, toDate, or employee_id")
	}
	if _, err := leaveSpan(op, from, to); err != nil {
		return false, err
	}
	overlap, err := checkOverlap(s.db.WithContext(ctx), op, employeeID, from, to)
	if err != nil {
		return false, storageError(op, err, "leave applications")
	}
	return overlap, nil
}

// checkOverlap expands the pending applications into one day set. Two pending
// applications sharing a day is corruption and surfaces as an IntegrityError.
// The incoming range is only compared, never expanded.
func checkOverlap(tx *gorm.DB, op string, employeeID uint, from, to string) (bool, error) {
	if _, err := utils.DaySpan(from, to); err != nil {
		return false, ValidationError(op, "%v", err)
	}

	var pending []models.LeaveApplication
	if err := tx.Select("id", "from_date", "to_date").
		Where("employee_id = ? AND application_status = ?", employeeID, models.ApplicationPending).
		Order("created_at").
		Find(&pending).Error; err != nil {
		return false, err
	}
	if len(pending) == 0 {
		return false, nil
	}

	existing := make(map[string]struct{})
	for _, a := range pending {
		if a.FromDate == "" || a.ToDate == "" {
			logrus.WithField("application_id", a.ID).Warn("pending leave application missing fromdate or todate")
			continue
		}
		days, err := utils.DateRange(a.FromDate, a.ToDate)
		if err != nil {
			return false, IntegrityError(op, "application %s has an invalid range: %v", a.ID, err)
		}
		for _, d := range days {
			if _, dup := existing[d]; dup {
				return false, IntegrityError(op, "Duplicate leave date (%s) found in existing application (ID: %s)", d, a.ID)
			}
			existing[d] = struct{}{}
		}
	}

	for d := range existing {
		if from <= d && d <= to {
			return true, nil
		}
	}
	return false, nil
}

func approvedOverlap(tx *gorm.DB, employeeID uint, from, to string) (bool, error) {
	var n int64
	err := tx.Model(&models.LeaveApplication{}).
		Where("employee_id = ? AND application_status = ? AND from_date <= ? AND to_date >= ?",
			employeeID, models.ApplicationApproved, to, from).
		Count(&n).Error
	return n > 0, err
}

func lockBalance(tx *gorm.DB, employeeID uint) (models.LeaveBalance, error) {
	var balance models.LeaveBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("employee_id = ?", employeeID).
		Take(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return balance, NotFoundError("leave.balance", "Leave balance not found.")
	}
	return balance, err
}

// debitBalance moves amount from available to consume on one counter, both rounded
// to one decimal. With guard set the debit only applies while available covers it.
func debitBalance(tx *gorm.DB, employeeID uint, counter string, amount float64, guard bool) (bool, error) {
	available, consume := counter+"_available", counter+"_consume"
	q := tx.Model(&models.LeaveBalance{}).Where("employee_id = ?", employeeID)
	if guard {
		q = q.Where(available+" >= ?", amount)
	}
	res := q.Updates(map[string]interface{}{
		available: gorm.Expr("ROUND("+available+" - ?, 1)", amount),
		consume:   gorm.Expr("ROUND("+consume+" + ?, 1)", amount),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// refundBalance reverses an unguarded debit on one counter.
func refundBalance(tx *gorm.DB, employeeID uint, counter string, amount float64) error {
	_, err := debitBalance(tx, employeeID, counter, -amount, false)
	return err
}

// applyApproval debits the balance and overwrites every covered day to Leave.
func applyApproval(tx *gorm.DB, op string, app models.LeaveApplication, now time.Time) error {
	// covered days already debited by the absence sweep are refunded first
	var swept float64
	if err := tx.Model(&models.AttendanceRecord{}).
		Where("employee_id = ? AND date BETWEEN ? AND ? AND leave_debited > 0", app.EmployeeID, app.FromDate, app.ToDate).
		Select("COALESCE(SUM(leave_debited), 0)").
		Scan(&swept).Error; err != nil {
		return err
	}
	if swept > 0 {
		if err := refundBalance(tx, app.EmployeeID, "leaves", swept); err != nil {
			return err
		}
	}

	counter, amount := "leaves", app.TotalDays
	if app.LeaveType == models.LeaveTypeOptionalHoliday {
		counter, amount = "optional_holiday", 1
	}
	ok, err := debitBalance(tx, app.EmployeeID, counter, amount, true)
	if err != nil {
		return err
	}
	if !ok {
		return BusinessRuleError(op, "Not enough balance to approve this application.")
	}

	days, err := utils.DateRange(app.FromDate, app.ToDate)
	if err != nil {
		return IntegrityError(op, "application %s has an invalid range: %v", app.ID, err)
	}
	for _, day := range days {
		record := models.AttendanceRecord{
			EmployeeID:       app.EmployeeID,
			Date:             day,
			Mark:             models.MarkLeave,
			AttendanceStatus: models.StatusPtr(models.StatusAbsent),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "employee_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"mark":              models.MarkLeave,
				"attendance_status": int(models.StatusAbsent),
				"leave_debited":     0,
				"updated_at":        now,
			}),
		}).Create(&record).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Review approves or rejects a pending application. Admin and HR may review
// any application, a Manager only those of their team, and nobody their own.
func (s *LeaveService) Review(ctx context.Context, reviewer *AccessScope, applicationID string, status models.ApplicationStatus, comment string) (*models.LeaveApplication, error) {
	const op = "leave.review"
	if status != models.ApplicationApproved && status != models.ApplicationRejected {
		return nil, ValidationError(op, "applicationstatus must be 1 (Approved) or 2 (Rejected)")
	}
	if applicationID == "" {
		return nil, ValidationError(op, "applicationId is required")
	}
	if !reviewer.CanSeeAll && reviewer.Auth != models.AuthManager {
		return nil, BusinessRuleError(op, "Only Admin, HR or Manager can review leave applications.")
	}
	reviewerID := reviewer.RequesterID

	var app models.LeaveApplication
	if err := s.db.WithContext(ctx).Select("id", "employee_id").Take(&app, "id = ?", applicationID).Error; err != nil {
		return nil, storageError(op, err, "Leave application")
	}
	if app.EmployeeID == reviewerID {
		return nil, BusinessRuleError(op, "You cannot review your own leave application.")
	}
	if !reviewer.IsMember(app.EmployeeID) {
		return nil, NotFoundError(op, "Leave application not found.")
	}

	unlock, err := s.locker.Lock(ctx, leaveKey(app.EmployeeID))
	if err != nil {
		return nil, storageError(op, err, "leave lock")
	}
	defer unlock()

	now := s.clock.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockBalance(tx, app.EmployeeID); err != nil {
			if status == models.ApplicationApproved || !IsKind(err, KindNotFound) {
				return err
			}
		}
		if err := tx.Take(&app, "id = ?", applicationID).Error; err != nil {
			return err
		}
		if app.ApplicationStatus != models.ApplicationPending {
			return BusinessRuleError(op, "Leave application has already been %s.", app.ApplicationStatus.String())
		}

		res := tx.Model(&models.LeaveApplication{}).
			Where("id = ? AND application_status = ?", applicationID, models.ApplicationPending).
			Updates(map[string]interface{}{
				"application_status": int(status),
				"comment":            utils.SanitizeString(comment),
				"reviewed_by":        reviewerID,
				"reviewed_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return BusinessRuleError(op, "Leave application is no longer pending.")
		}

		if status == models.ApplicationApproved {
			if err := applyApproval(tx, op, app, now); err != nil {
				return err
			}
		}
		return tx.Take(&app, "id = ?", applicationID).Error
	})
	if err != nil {
		return nil, storageError(op, err, "Leave application")
	}

	s.sink.Emit(notifications.Activity{
		EmployeeID: reviewerID,
		Action:     "leave_review",
		Resource:   "leave_application",
		ResourceID: app.ID,
		Message:    fmt.Sprintf("leave application %s %s", app.ID, status.String()),
	})
	return &app, nil
}

// DeleteApplication hard-deletes a pending application owned by the requester.
func (s *LeaveService) DeleteApplication(ctx context.Context, requester *AccessScope, applicationID string) error {
	const op = "leave.delete"
	if applicationID == "" {
		return ValidationError(op, "applicationId is required")
	}

	var app models.LeaveApplication
	if err := s.db.WithContext(ctx).Take(&app, "id = ?", applicationID).Error; err != nil {
		return storageError(op, err, "Leave application")
	}
	if app.EmployeeID != requester.RequesterID && !requester.CanSeeAll {
		return NotFoundError(op, "Leave application not found")
	}
	if app.ApplicationStatus != models.ApplicationPending {
		return BusinessRuleError(op, "You can only delete pending leave applications.")
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND application_status = ?", applicationID, models.ApplicationPending).
		Delete(&models.LeaveApplication{})
	if res.Error != nil {
		return storageError(op, res.Error, "Leave application")
	}
	if res.RowsAffected == 0 {
		return BusinessRuleError(op, "You can only delete pending leave applications.")
	}

	s.sink.Emit(notifications.Activity{
		EmployeeID: requester.RequesterID,
		Action:     "leave_delete",
		Resource:   "leave_application",
		ResourceID: applicationID,
		Message:    "pending leave application deleted",
	})
	return nil
}

// Details returns the balance and holiday catalogue of a visible employee.
func (s *LeaveService) Details(ctx context.Context, scope *AccessScope, employeeID uint) (*LeaveDetails, error) {
	const op = "leave.details"
	if !scope.CanViewEmployee(employeeID) {
		return nil, NotFoundError(op, "No leave records found for employee_id: %d", employeeID)
	}

	var balance models.LeaveBalance
	err := s.db.WithContext(ctx).
		Preload("OptionalHolidays", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC") }).
		Where("employee_id = ?", employeeID).
		Take(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError(op, "No leave records found for employee_id: %d", employeeID)
	}
	if err != nil {
		return nil, storageError(op, err, "leave balance")
	}

	return &LeaveDetails{
		EmployeeID:       balance.EmployeeID,
		Leaves:           balance.Leaves,
		OptionalHoliday:  OptionalHolidaySummary{BalanceCounter: balance.OptionalHoliday, List: balance.OptionalHolidays},
		MandatoryHoliday: balance.MandatoryHoliday,
		WeekendHoliday:   balance.WeekendHoliday,
		Catalogue:        balance.OptionalHolidays,
	}, nil
}

// OptionalHolidayList returns the optional holiday catalogue of a visible employee.
func (s *LeaveService) OptionalHolidayList(ctx context.Context, scope *AccessScope, employeeID uint) ([]models.OptionalHolidayDay, error) {
	details, err := s.Details(ctx, scope, employeeID)
	if err != nil {
		return nil, err
	}
	if details.Catalogue == nil {
		return []models.OptionalHolidayDay{}, nil
	}
	return details.Catalogue, nil
}

// History lists an employee's applications newest first. Never mutates.
func (s *LeaveService) History(ctx context.Context, scope *AccessScope, employeeID uint) ([]utils.LeaveHistoryItem, error) {
	items := []utils.LeaveHistoryItem{}
	if !scope.CanViewEmployee(employeeID) {
		return items, nil
	}
	var apps []models.LeaveApplication
	if err := s.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		return nil, storageError("leave.history", err, "leave applications")
	}
	for _, a := range apps {
		items = append(items, utils.ToLeaveHistoryItem(a, s.clock.loc()))
	}
	return items, nil
}

// AllHistory lists every application the requester may see, with the applicant attached.
func (s *LeaveService) AllHistory(ctx context.Context, scope *AccessScope) ([]utils.LeaveHistoryItem, error) {
	q := s.db.WithContext(ctx).Preload("Employee")
	if ids := scope.VisibleEmployeeIDs(); ids != nil {
		q = q.Where("employee_id IN ?", ids)
	}
	var apps []models.LeaveApplication
	if err := q.Order("created_at DESC").Find(&apps).Error; err != nil {
		return nil, storageError("leave.all_history", err, "leave applications")
	}
	return utils.Map(apps, func(a models.LeaveApplication) utils.LeaveHistoryItem {
		return utils.ToLeaveHistoryItem(a, s.clock.loc())
	}), nil
}
