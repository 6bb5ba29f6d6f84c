package controllers

import (
	"hrms_go/models"
	"hrms_go/services"

	"github.com/gofiber/fiber/v2"
)

type AttendanceController struct {
	attendance *services.AttendanceService
	reports    *services.ReportService
}

func NewAttendanceController(attendance *services.AttendanceService, reports *services.ReportService) *AttendanceController {
	return &AttendanceController{attendance: attendance, reports: reports}
}

// PunchRequest is the body of a punch.
type PunchRequest struct {
	Mark     models.Mark      `json:"mark"`
	Location *models.GeoPoint `json:"location"`
}

// Punch records an In or Out for the requester.
func (ac *AttendanceController) Punch(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	var req PunchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	record, err := ac.attendance.Punch(c.UserContext(), scope.RequesterID, req.Mark, req.Location)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Attendance marked successfully",
		"data":    record,
	})
}

// GetToday returns the requester's record for the current day.
func (ac *AttendanceController) GetToday(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	record, err := ac.attendance.Today(c.UserContext(), scope.RequesterID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": record})
}

// GetHistory returns an employee's records, or the requester's own.
func (ac *AttendanceController) GetHistory(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	target, err := targetEmployee(c, scope)
	if err != nil {
		return err
	}
	records, err := ac.attendance.History(c.UserContext(), scope, target)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": records, "total": len(records)})
}

// GetByDate returns every visible record of one day.
func (ac *AttendanceController) GetByDate(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	records, err := ac.attendance.ByDate(c.UserContext(), scope, c.Params("date"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": records, "total": len(records)})
}

// ExportRange streams an XLSX workbook of the visible records in [from, to].
func (ac *AttendanceController) ExportRange(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	from, to := c.Query("from"), c.Query("to")
	buf, err := ac.reports.ExportAttendance(c.UserContext(), scope, from, to)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=attendance_"+from+"_"+to+".xlsx")
	return c.Send(buf.Bytes())
}
