package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hrms_go/config"
	"hrms_go/controllers"
	"hrms_go/database"
	"hrms_go/database/seeders"
	"hrms_go/middleware"
	"hrms_go/routes"
	"hrms_go/services"
	"hrms_go/services/notifications"
	"hrms_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

const jobLogMaintenance = "log_maintenance"

func main() {
	config.LoadConfig()
	setupLogging()

	database.Connect()
	defer database.Close()

	if strings.ToLower(os.Getenv("SEED_DATA")) == "true" {
		if err := seeders.SeedAll(database.DB); err != nil {
			logrus.WithError(err).Fatal("Seeding failed")
		}
	}

	cfg := config.AppConfig
	clock := services.SystemClock(cfg.Location)
	redisClient := database.GetRedisClient()

	activity := notifications.NewService(database.DB, redisClient, cfg.UseRedisQueue)
	stopWorker := make(chan struct{})
	if cfg.UseRedisQueue {
		activity.StartWorker(stopWorker)
	}

	locker := services.NewKeyLocker(redisClient, cfg.LockTTL)
	attendanceService := services.NewAttendanceService(database.DB, locker, activity, clock)
	leaveService := services.NewLeaveService(database.DB, locker, activity, clock)
	timesheetService := services.NewTimesheetService(database.DB, locker, activity, clock)
	reconciliationService := services.NewReconciliationService(database.DB, locker, activity, clock, cfg.SweepWorkers, cfg.SweepRecordTimeout)
	reportService := services.NewReportService(attendanceService, clock)
	logArchiveService := services.NewLogArchiveService(database.DB, newArchiveStore(cfg), activity, clock)

	scheduleManager := services.NewScheduleManager(cfg.Location, 0)
	if err := scheduleManager.RegisterSweeps(reconciliationService, cfg.AbsenceSweepSchedule, cfg.AutoPunchOutSchedule); err != nil {
		logrus.WithError(err).Fatal("Failed to register reconciliation sweeps")
	}
	if err := scheduleManager.Register(jobLogMaintenance, cfg.LogMaintenanceSchedule, func(ctx context.Context) error {
		return logArchiveService.RunMaintenance(ctx, cfg.LogRetentionDays)
	}); err != nil {
		logrus.WithError(err).Fatal("Failed to register log maintenance")
	}
	scheduleManager.Start()

	healthService := services.NewHealthService(services.HealthOptions{
		Environment:   cfg.AppEnv,
		DB:            database.DB,
		Redis:         redisClient,
		UseRedisQueue: cfg.UseRedisQueue,
		SkipMigrate:   cfg.SkipMigrate,
		Scheduler:     scheduleManager,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		ReadTimeout:  cfg.RequestTimeout + 5*time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	})

	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.TimeoutMiddleware(cfg.RequestTimeout))

	routes.SetupRoutes(app, database.DB, cfg.JWTSecret, routes.Controllers{
		Attendance: controllers.NewAttendanceController(attendanceService, reportService),
		Leave:      controllers.NewLeaveController(leaveService),
		Timesheet:  controllers.NewTimesheetController(timesheetService),
		Admin:      controllers.NewAdminController(reconciliationService, scheduleManager, logArchiveService, cfg.LogRetentionDays),
		Health:     controllers.NewHealthController(healthService),
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":     cfg.Port,
			"env":      cfg.AppEnv,
			"timezone": cfg.Timezone,
		}).Info("Server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown did not complete cleanly")
	}

	stopped := scheduleManager.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(30 * time.Second):
		logrus.Warn("Timed out waiting for running jobs")
	}

	close(stopWorker)
	activity.Wait()
}

// newArchiveStore uses S3 when a bucket is configured, else an in-process store.
func newArchiveStore(cfg *config.Config) storage.ObjectStore {
	if cfg.S3BucketName == "" {
		logrus.Warn("S3_BUCKET_NAME not set; log archives are kept in memory")
		return storage.NewMemoryStore()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.NewS3Store(ctx, cfg.AWSRegion, cfg.S3BucketName)
	if err != nil {
		logrus.WithError(err).Warn("S3 unavailable; log archives are kept in memory")
		return storage.NewMemoryStore()
	}
	return store
}

// setupLogging configures the logging system
func setupLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(config.AppConfig.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if config.AppConfig.AppEnv == "development" || config.AppConfig.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}

	if err := os.MkdirAll(filepath.Dir(config.AppConfig.LogFile), 0755); err != nil {
		log.Printf("Warning: Could not create logs directory: %v", err)
	}
	file, err := os.OpenFile(config.AppConfig.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logrus.SetOutput(file)
	}
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
