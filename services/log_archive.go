package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"hrms_go/models"
	"hrms_go/services/notifications"
	"hrms_go/storage"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	minArchiveAgeDays = 7
	archiveBatchSize  = 1000
)

// LogArchiveService moves old activity logs out of the database into ZIP archives.
type LogArchiveService struct {
	db       *gorm.DB
	store    storage.ObjectStore
	activity *notifications.Service
	clock    Clock
}

// ArchivedLog is the exported representation stored inside archives
type ArchivedLog struct {
	ID         uint           `json:"id"`
	EmployeeID uint           `json:"employee_id"`
	Level      string         `json:"level"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewLogArchiveService builds the service. A nil store disables archiving; a
// nil activity service skips the queue flush.
func NewLogArchiveService(db *gorm.DB, store storage.ObjectStore, activity *notifications.Service, clock Clock) *LogArchiveService {
	return &LogArchiveService{db: db, store: store, activity: activity, clock: clock}
}

// ArchiveOldLogs archives logs older than daysOld to the object store and removes them from the database.
// Returns nil, nil when there is nothing to archive.
func (las *LogArchiveService) ArchiveOldLogs(ctx context.Context, daysOld int) (*models.LogArchive, error) {
	const op = "logs.archive"
	if daysOld < minArchiveAgeDays {
		return nil, ValidationError(op, "minimum archive age is %d days for safety", minArchiveAgeDays)
	}
	if las.store == nil {
		return nil, BusinessRuleError(op, "archive storage is not configured")
	}

	cutoff := las.clock.now().AddDate(0, 0, -daysOld)

	var all []ArchivedLog
	var lastID uint
	for {
		var batch []models.ActivityLog
		err := las.db.WithContext(ctx).
			Where("created_at < ? AND id > ?", cutoff, lastID).
			Order("id ASC").
			Limit(archiveBatchSize).
			Find(&batch).Error
		if err != nil {
			return nil, storageError(op, err, "activity logs")
		}
		if len(batch) == 0 {
			break
		}
		for _, l := range batch {
			all = append(all, toArchivedLog(l))
		}
		lastID = batch[len(batch)-1].ID
	}

	if len(all) == 0 {
		logrus.Info("No logs to archive")
		return nil, nil
	}
	logrus.Infof("Archiving %d logs older than %s", len(all), cutoff.Format("2006-01-02"))

	fileName := fmt.Sprintf("activity_logs_%s.zip", cutoff.Format("2006-01-02_150405"))
	buf, err := createZipArchive(all, fileName, las.clock.now())
	if err != nil {
		return nil, fmt.Errorf("failed to create ZIP archive: %w", err)
	}

	key := fmt.Sprintf("logs/archived/%d/%02d/%s", cutoff.Year(), cutoff.Month(), fileName)
	if err := las.store.Put(ctx, key, "application/zip", buf.Bytes()); err != nil {
		return nil, TransientError(op, err)
	}
	logrus.WithField("key", key).Info("uploaded log archive")

	archive := models.LogArchive{
		FileName:    fileName,
		S3Key:       key,
		StartDate:   all[0].CreatedAt,
		EndDate:     cutoff,
		RecordCount: len(all),
		FileSize:    int64(buf.Len()),
		Status:      "completed",
	}
	err = las.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Where("created_at < ? AND id <= ?", cutoff, lastID).Delete(&models.ActivityLog{})
		if res.Error != nil {
			return res.Error
		}
		logrus.Infof("Deleted %d archived logs from database", res.RowsAffected)
		return tx.Create(&archive).Error
	})
	if err != nil {
		return nil, storageError(op, err, "activity logs")
	}
	return &archive, nil
}

func toArchivedLog(l models.ActivityLog) ArchivedLog {
	out := ArchivedLog{
		ID:         l.ID,
		EmployeeID: l.EmployeeID,
		Level:      l.Level,
		Action:     l.Action,
		Resource:   l.Resource,
		ResourceID: l.ResourceID,
		Message:    l.Message,
		CreatedAt:  l.CreatedAt,
	}
	if !l.Details.IsNull() {
		var details map[string]any
		if err := json.Unmarshal(l.Details, &details); err == nil {
			out.Details = details
		}
	}
	return out
}

// createZipArchive writes the logs as JSON and CSV plus a metadata file.
func createZipArchive(logs []ArchivedLog, fileName string, now time.Time) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	logsFile, err := zw.Create("activity_logs.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(logsFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"export_date":    now.UTC(),
		"record_count":   len(logs),
		"format_version": "1.0",
		"logs":           logs,
	}); err != nil {
		return nil, err
	}

	metaFile, err := zw.Create("metadata.json")
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(metaFile).Encode(map[string]any{
		"file_name":    fileName,
		"created_at":   now.UTC(),
		"record_count": len(logs),
		"date_range": map[string]any{
			"start": logs[0].CreatedAt,
			"end":   logs[len(logs)-1].CreatedAt,
		},
		"schema_version": "1.0",
		"description":    "HRMS activity log archive",
	}); err != nil {
		return nil, err
	}

	csvFile, err := zw.Create("activity_logs.csv")
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(csvFile)
	_ = w.Write([]string{"ID", "Employee ID", "Level", "Action", "Resource", "Resource ID", "Message", "Created At", "Details"})
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.FormatUint(uint64(l.EmployeeID), 10),
			l.Level,
			l.Action,
			l.Resource,
			l.ResourceID,
			l.Message,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			details,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

// ListArchives returns archive records newest first.
func (las *LogArchiveService) ListArchives(ctx context.Context) ([]models.LogArchive, error) {
	archives := []models.LogArchive{}
	if err := las.db.WithContext(ctx).Order("created_at DESC").Find(&archives).Error; err != nil {
		return nil, storageError("logs.list_archives", err, "log archives")
	}
	return archives, nil
}

// DownloadArchive opens a stored archive. The caller closes the reader.
func (las *LogArchiveService) DownloadArchive(ctx context.Context, archiveID uint) (io.ReadCloser, string, error) {
	const op = "logs.download_archive"
	if las.store == nil {
		return nil, "", BusinessRuleError(op, "archive storage is not configured")
	}
	var archive models.LogArchive
	if err := las.db.WithContext(ctx).Take(&archive, archiveID).Error; err != nil {
		return nil, "", storageError(op, err, "Archive")
	}
	r, err := las.store.Get(ctx, archive.S3Key)
	if err != nil {
		return nil, "", TransientError(op, err)
	}
	return r, archive.FileName, nil
}

// RunMaintenance flushes queued activity and archives logs past retention.
func (las *LogArchiveService) RunMaintenance(ctx context.Context, retentionDays int) error {
	if las.activity != nil {
		if n := las.activity.Flush(ctx); n > 0 {
			logrus.WithField("count", n).Info("flushed queued activity before archiving")
		}
	}
	if las.store == nil {
		return nil
	}
	_, err := las.ArchiveOldLogs(ctx, retentionDays)
	return err
}
