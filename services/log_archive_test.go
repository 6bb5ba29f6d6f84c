package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"hrms_go/models"
	"hrms_go/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveOldLogs(t *testing.T) {
	f := newFixture(t, at("2025-03-31", 2, 0))
	store := storage.NewMemoryStore()
	svc := NewLogArchiveService(f.db, store, nil, f.clock())
	ctx := context.Background()

	logs := []models.ActivityLog{
		{EmployeeID: ravi, Level: "info", Action: "punch_in", Resource: "attendance", Message: "old", Details: models.JSON(`{"date":"2025-02-01"}`)},
		{EmployeeID: sneha, Level: "warning", Action: "apply_leave", Resource: "leave", Message: "old, with comma"},
		{EmployeeID: ravi, Level: "info", Action: "punch_out", Resource: "attendance", Message: "recent"},
	}
	logs[0].CreatedAt = at("2025-02-01", 9, 0)
	logs[1].CreatedAt = at("2025-02-15", 9, 0)
	logs[2].CreatedAt = at("2025-03-30", 9, 0)
	require.NoError(t, f.db.Create(&logs).Error)

	archive, err := svc.ArchiveOldLogs(ctx, 30)
	require.NoError(t, err)
	require.NotNil(t, archive)
	assert.Equal(t, 2, archive.RecordCount)
	assert.Equal(t, "completed", archive.Status)
	assert.True(t, strings.HasPrefix(archive.S3Key, "logs/archived/2025/03/activity_logs_"))
	assert.Equal(t, []string{archive.S3Key}, store.Keys())

	var remaining []models.ActivityLog
	require.NoError(t, f.db.Unscoped().Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "recent", remaining[0].Message)

	r, name, err := svc.DownloadArchive(ctx, archive.ID)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, archive.FileName, name)
	body, err := io.ReadAll(r)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	files := map[string]*zip.File{}
	for _, zf := range zr.File {
		files[zf.Name] = zf
	}
	require.Contains(t, files, "activity_logs.json")
	require.Contains(t, files, "metadata.json")
	require.Contains(t, files, "activity_logs.csv")

	rc, err := files["activity_logs.json"].Open()
	require.NoError(t, err)
	var payload struct {
		RecordCount int           `json:"record_count"`
		Logs        []ArchivedLog `json:"logs"`
	}
	require.NoError(t, json.NewDecoder(rc).Decode(&payload))
	rc.Close()
	assert.Equal(t, 2, payload.RecordCount)
	require.Len(t, payload.Logs, 2)
	assert.Equal(t, "2025-02-01", payload.Logs[0].Details["date"])

	archives, err := svc.ListArchives(ctx)
	require.NoError(t, err)
	assert.Len(t, archives, 1)

	// nothing older than the cutoff is left
	again, err := svc.ArchiveOldLogs(ctx, 30)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestArchiveOldLogsGuards(t *testing.T) {
	f := newFixture(t, at("2025-03-31", 2, 0))
	ctx := context.Background()

	_, err := NewLogArchiveService(f.db, storage.NewMemoryStore(), nil, f.clock()).ArchiveOldLogs(ctx, 3)
	assert.True(t, IsKind(err, KindValidation))

	noStore := NewLogArchiveService(f.db, nil, nil, f.clock())
	_, err = noStore.ArchiveOldLogs(ctx, 30)
	assert.True(t, IsKind(err, KindBusinessRule))
	assert.NoError(t, noStore.RunMaintenance(ctx, 30))

	_, _, err = NewLogArchiveService(f.db, storage.NewMemoryStore(), nil, f.clock()).DownloadArchive(ctx, 42)
	assert.True(t, IsKind(err, KindNotFound))
}
