package controllers

import (
	"errors"
	"strconv"

	"hrms_go/middleware"
	"hrms_go/services"
	"hrms_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// statusForKind maps a service failure to its HTTP status.
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindBusinessRule:
		return fiber.StatusConflict
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindTransient:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes a typed service failure. Integrity failures never echo
// internal detail to the caller and are logged at error level.
func respondError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)
	status := statusForKind(kind)

	entry := logrus.WithFields(logrus.Fields{
		"path":   c.Path(),
		"method": c.Method(),
		"kind":   kind.String(),
	}).WithError(err)

	message := err.Error()
	var se *services.Error
	if errors.As(err, &se) {
		message = se.Message
	}

	switch kind {
	case services.KindIntegrity:
		entry.Error("data integrity violation")
		return c.Status(status).JSON(fiber.Map{
			"error":   "Data integrity violation; the operation was not applied",
			"kind":    kind.String(),
			"success": false,
		})
	case services.KindTransient, services.KindUnknown:
		entry.Error("request failed")
		message = "Service temporarily unavailable"
		if kind == services.KindUnknown {
			message = "Internal Server Error"
		}
	default:
		entry.Warn("request rejected")
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   message,
		"kind":    kind.String(),
		"success": false,
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   utils.FormatValidationError(err),
		"kind":    services.KindValidation.String(),
		"success": false,
	})
}

func currentScope(c *fiber.Ctx) (*services.AccessScope, error) {
	return middleware.GetCurrentScope(c)
}

// targetEmployee reads :employee_id, defaulting to the requester.
func targetEmployee(c *fiber.Ctx, scope *services.AccessScope) (uint, error) {
	raw := c.Params("employee_id")
	if raw == "" {
		return scope.RequesterID, nil
	}
	id, err := utils.ParseUint(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid employee ID")
	}
	return id, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+key)
	}
	return n, nil
}
