package controllers

import (
	"io"

	"hrms_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AdminController runs reconciliation and log maintenance on demand.
type AdminController struct {
	reconciliation *services.ReconciliationService
	scheduler      *services.ScheduleManager
	archives       *services.LogArchiveService
	retentionDays  int
}

func NewAdminController(rs *services.ReconciliationService, sm *services.ScheduleManager, las *services.LogArchiveService, retentionDays int) *AdminController {
	return &AdminController{reconciliation: rs, scheduler: sm, archives: las, retentionDays: retentionDays}
}

// RunSweep runs one reconciliation sweep now and returns its counts.
func (ac *AdminController) RunSweep(c *fiber.Ctx) error {
	var (
		result services.SweepResult
		err    error
	)
	switch job := c.Params("job"); job {
	case services.JobAbsenceSweep:
		result, err = ac.reconciliation.RunAbsenceSweep(c.UserContext())
	case services.JobAutoPunchOut:
		result, err = ac.reconciliation.RunAutoPunchOutSweep(c.UserContext())
	default:
		return respondError(c, services.NotFoundError("admin.run_sweep", "unknown sweep %q", job))
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": result})
}

// ListJobs returns the registered scheduled jobs with their next run.
func (ac *AdminController) ListJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": ac.scheduler.Jobs()})
}

// TriggerJob runs any registered job by name.
func (ac *AdminController) TriggerJob(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := ac.scheduler.Trigger(c.UserContext(), name); err != nil {
		if services.KindOf(err) == services.KindUnknown {
			logrus.WithError(err).WithField("job", name).Error("manual job run failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Job failed: " + err.Error(),
			})
		}
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Job " + name + " completed"})
}

// ArchiveLogs archives activity logs older than ?days=, defaulting to the retention period.
func (ac *AdminController) ArchiveLogs(c *fiber.Ctx) error {
	days, err := queryInt(c, "days", ac.retentionDays)
	if err != nil {
		return err
	}
	archive, err := ac.archives.ArchiveOldLogs(c.UserContext(), days)
	if err != nil {
		return respondError(c, err)
	}
	if archive == nil {
		return c.JSON(fiber.Map{"success": true, "message": "No logs to archive"})
	}
	return c.JSON(fiber.Map{"success": true, "data": archive})
}

func (ac *AdminController) ListArchives(c *fiber.Ctx) error {
	archives, err := ac.archives.ListArchives(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": archives, "total": len(archives)})
}

// DownloadArchive streams a stored ZIP archive.
func (ac *AdminController) DownloadArchive(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid archive ID")
	}
	r, name, err := ac.archives.DownloadArchive(c.UserContext(), uint(id))
	if err != nil {
		return respondError(c, err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return respondError(c, services.TransientError("admin.download_archive", err))
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+name)
	return c.Send(body)
}
