package controllers

import (
	"time"

	"hrms_go/services"

	"github.com/gofiber/fiber/v2"
)

type TimesheetController struct {
	timesheets *services.TimesheetService
}

func NewTimesheetController(timesheets *services.TimesheetService) *TimesheetController {
	return &TimesheetController{timesheets: timesheets}
}

// Fill logs one task for the requester.
func (tc *TimesheetController) Fill(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	var in services.FillTimesheetInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, err)
	}

	entry, err := tc.timesheets.Fill(c.UserContext(), scope.RequesterID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Timesheet filled successfully",
		"data":    entry,
	})
}

func (tc *TimesheetController) UpdateTask(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	var patch services.TaskPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, err)
	}
	task, err := tc.timesheets.UpdateTask(c.UserContext(), scope.RequesterID, c.Params("task_id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": task})
}

func (tc *TimesheetController) DeleteTask(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	if err := tc.timesheets.DeleteTask(c.UserContext(), scope.RequesterID, c.Params("task_id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Task deleted successfully"})
}

// Query lists the target employee's timesheets as visible to the requester.
func (tc *TimesheetController) Query(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	target, err := targetEmployee(c, scope)
	if err != nil {
		return err
	}
	var filter services.TimesheetFilter
	if err := c.QueryParser(&filter); err != nil {
		return badRequest(c, err)
	}

	entries, err := tc.timesheets.Query(c.UserContext(), scope, target, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": entries, "total": len(entries)})
}

func (tc *TimesheetController) GetByDate(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	target, err := targetEmployee(c, scope)
	if err != nil {
		return err
	}
	entries, err := tc.timesheets.ByDate(c.UserContext(), scope, target, c.Params("date"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": entries})
}

// GetOwnByDate returns the requester's entry for one day.
func (tc *TimesheetController) GetOwnByDate(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	entry, err := tc.timesheets.OwnByDate(c.UserContext(), scope.RequesterID, c.Params("date"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": entry})
}

// GetYearlyDurations returns per-day totals for ?year=, defaulting to the current year.
func (tc *TimesheetController) GetYearlyDurations(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	target, err := targetEmployee(c, scope)
	if err != nil {
		return err
	}
	year, err := queryInt(c, "year", time.Now().Year())
	if err != nil {
		return err
	}
	totals, err := tc.timesheets.YearlyDurations(c.UserContext(), scope, target, year)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": totals})
}

func (tc *TimesheetController) GetDays(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	days, err := tc.timesheets.Days(c.UserContext(), scope.RequesterID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": days})
}
