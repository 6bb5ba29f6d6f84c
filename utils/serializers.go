package utils

import (
	"time"

	"hrms_go/models"
)

const (
	historyDateTimeLayout = "Jan 02 2006 03:04 PM"
	historyDateLayout     = "Jan 02, 2006"
	historyTimeLayout     = "03:04 PM"
)

// EmployeeShort is the compact employee representation used across APIs
type EmployeeShort struct {
	ID    uint   `json:"id"`
	EmpID string `json:"empid,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// LeaveHistoryItem is the read projection of a leave application.
type LeaveHistoryItem struct {
	ID                string         `json:"_id"`
	EmployeeID        uint           `json:"employee_id"`
	Employee          *EmployeeShort `json:"employee,omitempty"`
	FromDate          string         `json:"fromdate"`
	ToDate            string         `json:"todate"`
	LeaveType         string         `json:"leavetype"`
	LeaveSubType      string         `json:"leavesubtype"`
	HolidayName       string         `json:"holidayname"`
	Reason            string         `json:"reason"`
	ApplicationStatus int            `json:"applicationstatus"`
	StatusLabel       string         `json:"status_label"`
	Comment           string         `json:"comment"`
	TotalDays         float64        `json:"totaldays"`
	HalfDay           bool           `json:"halfday"`
	HalfDayPostLunch  bool           `json:"halfday_post_lunch"`
	CreatedAt         string         `json:"createdAt"`
	UpdatedAt         string         `json:"updatedAt"`
	UpdatedDate       string         `json:"updatedDate"`
	UpdatedTime       string         `json:"updatedTime"`
}

// ToLeaveHistoryItem maps an application to its history row, formatting timestamps in loc.
// Employee is filled only when the association was preloaded.
func ToLeaveHistoryItem(a models.LeaveApplication, loc *time.Location) LeaveHistoryItem {
	if loc == nil {
		loc = time.UTC
	}
	item := LeaveHistoryItem{
		ID:                a.ID,
		EmployeeID:        a.EmployeeID,
		FromDate:          a.FromDate,
		ToDate:            a.ToDate,
		LeaveType:         string(a.LeaveType),
		LeaveSubType:      a.LeaveSubType,
		HolidayName:       a.HolidayName,
		Reason:            a.Reason,
		ApplicationStatus: int(a.ApplicationStatus),
		StatusLabel:       a.ApplicationStatus.String(),
		Comment:           a.Comment,
		TotalDays:         a.TotalDays,
		HalfDay:           a.HalfDay,
		HalfDayPostLunch:  a.HalfDayPostLunch,
		CreatedAt:         a.CreatedAt.In(loc).Format(historyDateTimeLayout),
		UpdatedAt:         a.UpdatedAt.In(loc).Format(historyDateTimeLayout),
		UpdatedDate:       a.UpdatedAt.In(loc).Format(historyDateLayout),
		UpdatedTime:       a.UpdatedAt.In(loc).Format(historyTimeLayout),
	}
	if a.Employee != nil && a.Employee.ID > 0 {
		item.Employee = &EmployeeShort{
			ID:    a.Employee.ID,
			EmpID: a.Employee.EmpID,
			Name:  a.Employee.Name,
			Email: a.Employee.Email,
		}
	}
	return item
}

// DayTotal is the summed task duration for one day.
type DayTotal struct {
	Date          string  `json:"date"`
	TotalDuration float64 `json:"totalDuration"`
}
