package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"hrms_go/models"

	"github.com/xuri/excelize/v2"
)

const (
	attendanceSheet = "Attendance"
	summarySheet    = "Summary"
	reportTimeFmt   = "15:04"
)

// ReportService renders scoped attendance data as spreadsheets.
type ReportService struct {
	attendance *AttendanceService
	clock      Clock
}

func NewReportService(attendance *AttendanceService, clock Clock) *ReportService {
	return &ReportService{attendance: attendance, clock: clock}
}

type employeeSummary struct {
	id       uint
	empID    string
	name     string
	fullDay  int
	halfDay  int
	absent   int
	weekOff  int
	leave    int
	worked   float64
	recorded int
}

// ExportAttendance builds an XLSX workbook of the visible records in [from, to].
func (rs *ReportService) ExportAttendance(ctx context.Context, scope *AccessScope, from, to string) (*bytes.Buffer, error) {
	records, err := rs.attendance.Range(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attendanceSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []interface{}{"Date", "Employee ID", "Name", "Mark", "In", "Out", "Hours", "Status"}
	if err := f.SetSheetRow(attendanceSheet, "A1", &headers); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(attendanceSheet, "A1", "H1", headerStyle)

	loc := rs.clock.loc()
	summaries := map[uint]*employeeSummary{}
	for i, r := range records {
		sum, ok := summaries[r.EmployeeID]
		if !ok {
			sum = &employeeSummary{id: r.EmployeeID}
			if r.Employee != nil {
				sum.empID, sum.name = r.Employee.EmpID, r.Employee.Name
			}
			summaries[r.EmployeeID] = sum
		}
		sum.recorded++
		sum.worked += r.TotalHrs.Hours()

		status := ""
		if r.AttendanceStatus != nil {
			status = r.AttendanceStatus.String()
			switch *r.AttendanceStatus {
			case models.StatusFullDay:
				sum.fullDay++
			case models.StatusHalfDay:
				sum.halfDay++
			case models.StatusWeekOff:
				sum.weekOff++
			case models.StatusAbsent:
				if r.Mark == models.MarkLeave {
					sum.leave++
				} else {
					sum.absent++
				}
			}
		}

		inTime, outTime := "", ""
		if r.InTime != nil {
			inTime = r.InTime.In(loc).Format(reportTimeFmt)
		}
		if r.OutTime != nil {
			outTime = r.OutTime.In(loc).Format(reportTimeFmt)
		}

		row := []interface{}{
			r.Date, sum.empID, sum.name, string(r.Mark), inTime, outTime,
			fmt.Sprintf("%.2f", r.TotalHrs.Hours()), status,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(attendanceSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(attendanceSheet, "A", "C", 16)

	summaryHeaders := []interface{}{"Employee ID", "Name", "Days Recorded", "Full Day", "Half Day", "Absent", "Leave", "Week Off", "Hours Worked"}
	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeaders); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(summarySheet, "A1", "I1", headerStyle)

	ids := make([]uint, 0, len(summaries))
	for id := range summaries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		s := summaries[id]
		row := []interface{}{
			s.empID, s.name, s.recorded, s.fullDay, s.halfDay, s.absent, s.leave, s.weekOff,
			fmt.Sprintf("%.2f", s.worked),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f.WriteToBuffer()
}
