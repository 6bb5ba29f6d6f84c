package routes

import (
	"hrms_go/controllers"
	"hrms_go/middleware"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Controllers groups every HTTP handler set.
type Controllers struct {
	Attendance *controllers.AttendanceController
	Leave      *controllers.LeaveController
	Timesheet  *controllers.TimesheetController
	Admin      *controllers.AdminController
	Health     *controllers.HealthController
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, db *gorm.DB, jwtSecret string, ctl Controllers) {
	app.Get("/health", ctl.Health.GetHealthStatus)
	app.Get("/health/live", ctl.Health.GetLiveness)

	api := app.Group("/api")

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware(jwtSecret, db), middleware.ScopeMiddleware(db))

	attendance := protected.Group("/attendance")
	attendance.Post("/punch", ctl.Attendance.Punch)
	attendance.Get("/today", ctl.Attendance.GetToday)
	attendance.Get("/history", ctl.Attendance.GetHistory)
	attendance.Get("/history/:employee_id", ctl.Attendance.GetHistory)
	attendance.Get("/date/:date", ctl.Attendance.GetByDate)
	attendance.Get("/export", middleware.RequireManagerOrAbove(), ctl.Attendance.ExportRange)

	leave := protected.Group("/leave")
	leave.Post("/apply", ctl.Leave.Apply)
	leave.Get("/overlap", ctl.Leave.CheckOverlap)
	leave.Get("/details", ctl.Leave.GetDetails)
	leave.Get("/details/:employee_id", ctl.Leave.GetDetails)
	leave.Get("/optional-holidays", ctl.Leave.GetOptionalHolidays)
	leave.Get("/optional-holidays/:employee_id", ctl.Leave.GetOptionalHolidays)
	leave.Get("/history", ctl.Leave.GetHistory)
	leave.Get("/history/all", middleware.RequireManagerOrAbove(), ctl.Leave.GetAllHistory)
	leave.Get("/history/:employee_id", ctl.Leave.GetHistory)
	leave.Patch("/:id/review", middleware.RequireManagerOrAbove(), ctl.Leave.Review)
	leave.Delete("/:id", ctl.Leave.Delete)

	timesheet := protected.Group("/timesheet")
	timesheet.Post("/", ctl.Timesheet.Fill)
	timesheet.Patch("/tasks/:task_id", ctl.Timesheet.UpdateTask)
	timesheet.Delete("/tasks/:task_id", ctl.Timesheet.DeleteTask)
	timesheet.Get("/days", ctl.Timesheet.GetDays)
	timesheet.Get("/own/:date", ctl.Timesheet.GetOwnByDate)
	timesheet.Get("/employee/:employee_id", ctl.Timesheet.Query)
	timesheet.Get("/employee/:employee_id/date/:date", ctl.Timesheet.GetByDate)
	timesheet.Get("/employee/:employee_id/yearly", ctl.Timesheet.GetYearlyDurations)

	admin := protected.Group("/admin", middleware.RequireAdminOrHR())
	admin.Post("/sweeps/:job", ctl.Admin.RunSweep)
	admin.Get("/jobs", ctl.Admin.ListJobs)
	admin.Post("/jobs/:name/run", ctl.Admin.TriggerJob)
	admin.Post("/logs/archive", ctl.Admin.ArchiveLogs)
	admin.Get("/logs/archives", ctl.Admin.ListArchives)
	admin.Get("/logs/archives/:id/download", ctl.Admin.DownloadArchive)
}
