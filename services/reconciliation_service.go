package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"hrms_go/models"
	"hrms_go/services/notifications"
	"hrms_go/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	JobAbsenceSweep     = "absence_sweep"
	JobAutoPunchOut     = "auto_punch_out"
	absenceDebitDays    = 1.0
	defaultSweepWorkers = 4
)

// SweepResult is the aggregate outcome of one sweep run.
type SweepResult struct {
	Job        string    `json:"job"`
	Date       string    `json:"date"`
	Processed  int64     `json:"processed"`
	Changed    int64     `json:"changed"`
	Failed     int64     `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ReconciliationService runs the nightly sweeps. Every record is an independent
// unit: a failure or timeout on one is logged and counted, never fatal to the run.
type ReconciliationService struct {
	db            *gorm.DB
	locker        KeyLocker
	sink          ActivitySink
	clock         Clock
	workers       int
	recordTimeout time.Duration
}

func NewReconciliationService(db *gorm.DB, locker KeyLocker, sink ActivitySink, clock Clock, workers int, recordTimeout time.Duration) *ReconciliationService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if workers <= 0 {
		workers = defaultSweepWorkers
	}
	if recordTimeout <= 0 {
		recordTimeout = 10 * time.Second
	}
	return &ReconciliationService{
		db:            db,
		locker:        locker,
		sink:          sinkOrDiscard(sink),
		clock:         clock,
		workers:       workers,
		recordTimeout: recordTimeout,
	}
}

// sweep fans fn out over ids with bounded parallelism and per-record timeouts.
func (s *ReconciliationService) sweep(ctx context.Context, result *SweepResult, ids []uint, fn func(ctx context.Context, id uint) (bool, error)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			atomic.AddInt64(&result.Processed, 1)

			rctx, cancel := context.WithTimeout(gctx, s.recordTimeout)
			defer cancel()

			changed, err := fn(rctx, id)
			if err != nil {
				atomic.AddInt64(&result.Failed, 1)
				entry := logrus.WithError(err).WithFields(logrus.Fields{
					"job":         result.Job,
					"date":        result.Date,
					"employee_id": id,
					"kind":        KindOf(err).String(),
				})
				if IsKind(err, KindIntegrity) {
					entry.Error("sweep record failed on inconsistent data")
				} else {
					entry.Warn("sweep record failed")
				}
				return nil
			}
			if changed {
				atomic.AddInt64(&result.Changed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ReconciliationService) finish(result *SweepResult) {
	result.FinishedAt = s.clock.now()
	logrus.WithFields(logrus.Fields{
		"job":       result.Job,
		"date":      result.Date,
		"processed": result.Processed,
		"changed":   result.Changed,
		"failed":    result.Failed,
		"took":      result.FinishedAt.Sub(result.StartedAt).String(),
	}).Info("sweep finished")

	s.sink.Emit(notifications.Activity{
		Level:      "info",
		Action:     result.Job,
		Resource:   "attendance",
		ResourceID: result.Date,
		Message:    fmt.Sprintf("%s: %d processed, %d changed, %d failed", result.Job, result.Processed, result.Changed, result.Failed),
		Details:    result,
	})
}

// RunAbsenceSweep classifies today for every active employee. Weekends become
// WeekOff. On weekdays an employee with no punch becomes Absent and is debited
// one leave day, only on the transition into Absent.
func (s *ReconciliationService) RunAbsenceSweep(ctx context.Context) (SweepResult, error) {
	now := s.clock.now()
	today := utils.DayKey(now, s.clock.loc())
	result := SweepResult{Job: JobAbsenceSweep, Date: today, StartedAt: now}

	weekend, err := utils.IsWeekend(today)
	if err != nil {
		return result, ValidationError("sweep.absence", "%v", err)
	}

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Employee{}).
		Where("status = ?", "active").
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return result, storageError("sweep.absence", err, "employees")
	}

	s.sweep(ctx, &result, ids, func(ctx context.Context, id uint) (bool, error) {
		return s.absenceFor(ctx, id, today, weekend)
	})
	s.finish(&result)
	return result, nil
}

func (s *ReconciliationService) absenceFor(ctx context.Context, employeeID uint, day string, weekend bool) (bool, error) {
	const op = "sweep.absence"

	unlock, err := s.locker.Lock(ctx, attendanceKey(employeeID, day))
	if err != nil {
		return false, storageError(op, err, "attendance lock")
	}
	defer unlock()

	target := models.StatusAbsent
	if weekend {
		target = models.StatusWeekOff
	}

	var changed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := models.AttendanceRecord{
			EmployeeID:       employeeID,
			Date:             day,
			AttendanceStatus: models.StatusPtr(target),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			q := tx.Model(&models.AttendanceRecord{}).
				Where("employee_id = ? AND date = ?", employeeID, day).
				Where("(attendance_status IS NULL OR attendance_status <> ?)", int(target))
			if !weekend {
				// Out and Leave records are skipped on purpose: Out is already
				// classified by worked hours and Leave was debited at approval.
				q = q.Where("mark = ?", models.MarkNone)
			}
			res = q.Update("attendance_status", int(target))
			if res.Error != nil {
				return res.Error
			}
		}
		changed = res.RowsAffected == 1

		if !changed || weekend {
			return nil
		}
		debited, err := debitBalance(tx, employeeID, "leaves", absenceDebitDays, false)
		if err != nil {
			return err
		}
		if !debited {
			logrus.WithFields(logrus.Fields{"employee_id": employeeID, "date": day}).
				Warn("absent employee has no leave balance to debit")
			return nil
		}
		return tx.Model(&models.AttendanceRecord{}).
			Where("employee_id = ? AND date = ?", employeeID, day).
			Update("leave_debited", absenceDebitDays).Error
	})
	if err != nil {
		return false, storageError(op, err, "attendance record")
	}
	return changed, nil
}

// RunAutoPunchOutSweep closes every record still punched in today at the
// system location {0,0}, classified exactly as a manual punch-out.
func (s *ReconciliationService) RunAutoPunchOutSweep(ctx context.Context) (SweepResult, error) {
	now := s.clock.now()
	today := utils.DayKey(now, s.clock.loc())
	result := SweepResult{Job: JobAutoPunchOut, Date: today, StartedAt: now}

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Where("date = ? AND mark = ?", today, models.MarkIn).
		Order("employee_id").
		Pluck("employee_id", &ids).Error; err != nil {
		return result, storageError("sweep.auto_punch_out", err, "attendance records")
	}

	s.sweep(ctx, &result, ids, func(ctx context.Context, id uint) (bool, error) {
		return s.punchOutFor(ctx, id, today, now)
	})
	s.finish(&result)
	return result, nil
}

func (s *ReconciliationService) punchOutFor(ctx context.Context, employeeID uint, day string, now time.Time) (bool, error) {
	const op = "sweep.auto_punch_out"

	unlock, err := s.locker.Lock(ctx, attendanceKey(employeeID, day))
	if err != nil {
		return false, storageError(op, err, "attendance lock")
	}
	defer unlock()

	var changed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, found, err := findDayRecord(tx, employeeID, day, true)
		if err != nil {
			return err
		}
		if !found || record.Mark != models.MarkIn {
			return nil
		}
		if record.InTime == nil {
			return IntegrityError(op, "attendance record %d is punched in without an in time", record.ID)
		}
		changed, err = closeDay(tx, record, now, models.GeoPoint{})
		return err
	})
	if err != nil {
		return false, storageError(op, err, "attendance record")
	}
	return changed, nil
}
