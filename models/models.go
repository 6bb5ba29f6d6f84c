package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = append((*j)[0:0], v...)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// AuthLevel mirrors the numeric role levels stored on employees.
type AuthLevel int

const (
	AuthAdmin    AuthLevel = 1
	AuthHR       AuthLevel = 2
	AuthManager  AuthLevel = 3
	AuthEmployee AuthLevel = 4
)

// Privileged reports whether the level sees every employee's data unrestricted.
func (a AuthLevel) Privileged() bool {
	return a == AuthAdmin || a == AuthHR
}

func (a AuthLevel) String() string {
	switch a {
	case AuthAdmin:
		return "admin"
	case AuthHR:
		return "hr"
	case AuthManager:
		return "manager"
	default:
		return "employee"
	}
}

// Employee model
type Employee struct {
	BaseModel
	EmpID  string    `json:"empid" gorm:"size:50;uniqueIndex"`
	Name   string    `json:"name" gorm:"size:255;not null"`
	Email  string    `json:"email" gorm:"size:255;uniqueIndex"`
	Auth   AuthLevel `json:"auth" gorm:"not null;default:4"`
	Status string    `json:"status" gorm:"size:50;not null;default:'active'"` // active, inactive
}

// Mark is the punch state of a day record.
type Mark string

const (
	MarkNone  Mark = ""
	MarkIn    Mark = "In"
	MarkOut   Mark = "Out"
	MarkLeave Mark = "Leave"
)

// AttendanceStatus is the daily classification of a record.
type AttendanceStatus int

const (
	StatusAbsent  AttendanceStatus = 0
	StatusFullDay AttendanceStatus = 1
	StatusHalfDay AttendanceStatus = 2
	StatusWeekOff AttendanceStatus = 3
)

func (s AttendanceStatus) String() string {
	switch s {
	case StatusAbsent:
		return "Absent"
	case StatusFullDay:
		return "FullDay"
	case StatusHalfDay:
		return "HalfDay"
	case StatusWeekOff:
		return "WeekOff"
	default:
		return "Unknown"
	}
}

// StatusPtr is a convenience for the nullable status column.
func StatusPtr(s AttendanceStatus) *AttendanceStatus { return &s }

// GeoPoint is a punch location. {0,0} is reserved for system-closed records.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AttendanceRecord is the single per-employee-per-day ledger entry.
// AttendanceStatus stays NULL until the day is classified by a punch-out or a sweep.
type AttendanceRecord struct {
	BaseModel
	EmployeeID       uint              `json:"employee_id" gorm:"not null;uniqueIndex:idx_attendance_employee_date"`
	Date             string            `json:"date" gorm:"size:10;not null;uniqueIndex:idx_attendance_employee_date;index"`
	Mark             Mark              `json:"mark" gorm:"size:10;not null;default:''"`
	InTime           *time.Time        `json:"intime"`
	OutTime          *time.Time        `json:"outtime"`
	InLocation       GeoPoint          `json:"inlocation" gorm:"embedded;embeddedPrefix:in_"`
	OutLocation      GeoPoint          `json:"outlocation" gorm:"embedded;embeddedPrefix:out_"`
	TotalHrs         time.Duration     `json:"totalhrs"`
	AttendanceStatus *AttendanceStatus `json:"attendancestatus"`
	// LeaveDebited is what the absence sweep took from the leave balance for this day.
	LeaveDebited     float64           `json:"leavedebited" gorm:"not null;default:0"`

	Employee *Employee `json:"employee,omitempty" gorm:"foreignKey:EmployeeID"`
}

// HasStatus reports whether the record is classified as s.
func (r AttendanceRecord) HasStatus(s AttendanceStatus) bool {
	return r.AttendanceStatus != nil && *r.AttendanceStatus == s
}

type LeaveType string

const (
	LeaveTypeLeave           LeaveType = "leave"
	LeaveTypeOptionalHoliday LeaveType = "optional-holiday"
)

type ApplicationStatus int

const (
	ApplicationPending  ApplicationStatus = 0
	ApplicationApproved ApplicationStatus = 1
	ApplicationRejected ApplicationStatus = 2
)

func (s ApplicationStatus) String() string {
	switch s {
	case ApplicationPending:
		return "Pending"
	case ApplicationApproved:
		return "Approved"
	case ApplicationRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// LeaveApplication model. Hard-deleted while pending, so no soft delete column.
type LeaveApplication struct {
	ID                string            `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	EmployeeID        uint              `json:"employee_id" gorm:"not null;index:idx_leave_employee_status"`
	FromDate          string            `json:"fromdate" gorm:"size:10;not null"`
	ToDate            string            `json:"todate" gorm:"size:10;not null"`
	LeaveType         LeaveType         `json:"leavetype" gorm:"size:30;not null"`
	LeaveSubType      string            `json:"leavesubtype" gorm:"size:100"`
	HolidayName       string            `json:"holidayname" gorm:"size:255"`
	TotalDays         float64           `json:"totaldays" gorm:"not null;default:0"`
	HalfDay           bool              `json:"halfday" gorm:"default:false"`
	HalfDayPostLunch  bool              `json:"halfday_post_lunch" gorm:"default:false"`
	ApplicationStatus ApplicationStatus `json:"applicationstatus" gorm:"not null;default:0;index:idx_leave_employee_status"`
	Reason            string            `json:"reason" gorm:"type:text"`
	Comment           string            `json:"comment" gorm:"type:text"`
	ReviewedBy        *uint             `json:"reviewed_by"`
	ReviewedAt        *time.Time        `json:"reviewed_at"`

	Employee *Employee `json:"employee,omitempty" gorm:"foreignKey:EmployeeID"`
}

func (a *LeaveApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// BalanceCounter moves available and consume in lockstep.
type BalanceCounter struct {
	Available float64 `json:"available" gorm:"not null;default:0"`
	Consume   float64 `json:"consume" gorm:"not null;default:0"`
}

// LeaveBalance is 1:1 with an employee.
type LeaveBalance struct {
	BaseModel
	EmployeeID       uint                 `json:"employee_id" gorm:"not null;uniqueIndex"`
	Leaves           BalanceCounter       `json:"leaves" gorm:"embedded;embeddedPrefix:leaves_"`
	OptionalHoliday  BalanceCounter       `json:"optionalholiday" gorm:"embedded;embeddedPrefix:optional_holiday_"`
	OptionalHolidays []OptionalHolidayDay `json:"optionalholidaylist" gorm:"foreignKey:LeaveBalanceID"`
	MandatoryHoliday JSON                 `json:"mandatoryholiday" gorm:"type:json"`
	WeekendHoliday   JSON                 `json:"weekendHoliday" gorm:"type:json"`
}

// OptionalHolidayDay is one entry of an employee's optional holiday catalogue.
type OptionalHolidayDay struct {
	BaseModel
	LeaveBalanceID uint   `json:"leave_balance_id" gorm:"not null;index"`
	Name           string `json:"name" gorm:"size:255;not null"`
	Date           string `json:"date" gorm:"size:10;not null"`
}

type ProjectStatus int

const (
	ProjectActive   ProjectStatus = 0
	ProjectInactive ProjectStatus = 1
)

// Project model
type Project struct {
	BaseModel
	Name      string        `json:"name" gorm:"size:255;not null"`
	ManagerID uint          `json:"managerId" gorm:"not null;index"`
	Status    ProjectStatus `json:"status" gorm:"not null;default:0"`

	AssignTo []Employee `json:"assignto,omitempty" gorm:"many2many:project_assignments"`
}

// TimesheetEntry holds every task an employee logged for one day.
type TimesheetEntry struct {
	BaseModel
	EmployeeID uint            `json:"employee_id" gorm:"not null;uniqueIndex:idx_timesheet_employee_date"`
	Date       string          `json:"date" gorm:"size:10;not null;uniqueIndex:idx_timesheet_employee_date"`
	Tasks      []TimesheetTask `json:"task" gorm:"foreignKey:TimesheetID"`
}

type TimesheetTask struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TimesheetID uint      `json:"timesheet_id" gorm:"not null;index"`
	ProjectID   uint      `json:"project" gorm:"not null;index"`
	TaskName    string    `json:"taskName" gorm:"size:255;not null"`
	SubTaskName string    `json:"subTaskName" gorm:"size:255"`
	Description string    `json:"description" gorm:"type:text"`
	Duration    float64   `json:"duration"`
	Remark      string    `json:"remark" gorm:"type:text"`
}

func (t *TimesheetTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// ActivityLog is the persisted form of the fire-and-forget activity sink.
type ActivityLog struct {
	BaseModel
	EmployeeID uint   `json:"employee_id"`
	Level      string `json:"level" gorm:"size:20;not null;default:'info'"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID string `json:"resource_id" gorm:"size:64"`
	Message    string `json:"message" gorm:"type:text"`
	Details    JSON   `json:"details" gorm:"type:json"`
}

// LogArchive model for tracking archived logs
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending'"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}
