package controllers

import (
	"hrms_go/models"
	"hrms_go/services"

	"github.com/gofiber/fiber/v2"
)

type LeaveController struct {
	leaves *services.LeaveService
}

func NewLeaveController(leaves *services.LeaveService) *LeaveController {
	return &LeaveController{leaves: leaves}
}

// ReviewRequest approves (1) or rejects (2) an application.
type ReviewRequest struct {
	Status  models.ApplicationStatus `json:"applicationstatus"`
	Comment string                   `json:"comment"`
}

// Apply submits a leave or optional holiday application.
// employee_id defaults to the requester.
func (lc *LeaveController) Apply(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	var in services.ApplyLeaveInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, err)
	}
	if in.EmployeeID == 0 {
		in.EmployeeID = scope.RequesterID
	}

	app, err := lc.leaves.ApplyLeave(c.UserContext(), scope, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Leave application submitted successfully",
		"data":    app,
	})
}

// CheckOverlap reports whether [fromdate, todate] overlaps an existing application.
func (lc *LeaveController) CheckOverlap(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	overlap, err := lc.leaves.CheckOverlap(c.UserContext(), scope.RequesterID, c.Query("fromdate"), c.Query("todate"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "overlap": overlap})
}

// Review approves or rejects a pending application.
func (lc *LeaveController) Review(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	app, err := lc.leaves.Review(c.UserContext(), scope, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Leave application " + app.ApplicationStatus.String(),
		"data":    app,
	})
}

// Delete removes a pending application.
func (lc *LeaveController) Delete(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	if err := lc.leaves.DeleteApplication(c.UserContext(), scope, c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Leave application deleted successfully"})
}

// GetDetails returns the balance view of an employee.
func (lc *LeaveController) GetDetails(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	target, err := targetEmployee(c, scope)
	if err != nil {
		return err
	}
	details, err := lc.leaves.Details(c.UserContext(), scope, target)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": details})
}

func (lc *LeaveController) GetOptionalHolidays(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	target, err := targetEmployee(c, scope)
	if err != nil {
		return err
	}
	list, err := lc.leaves.OptionalHolidayList(c.UserContext(), scope, target)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": list})
}

func (lc *LeaveController) GetHistory(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	target, err := targetEmployee(c, scope)
	if err != nil {
		return err
	}
	items, err := lc.leaves.History(c.UserContext(), scope, target)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items, "total": len(items)})
}

// GetAllHistory lists every visible application.
func (lc *LeaveController) GetAllHistory(c *fiber.Ctx) error {
	scope, err := currentScope(c)
	if err != nil {
		return err
	}
	items, err := lc.leaves.AllHistory(c.UserContext(), scope)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items, "total": len(items)})
}
