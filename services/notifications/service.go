package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"hrms_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Activity is one entry of the fire-and-forget activity sink.
// Keep it small: it is serialized onto the Redis queue as-is.
type Activity struct {
	EmployeeID uint      `json:"employee_id"`
	Level      string    `json:"level"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const redisListKey = "activity:queue"

// Service records activity through a Redis list when enabled, else by direct insert.
// Emit never blocks the caller and never reports failure to it.
type Service struct {
	db       *gorm.DB
	redis    *redis.Client
	useRedis bool
	timeout  time.Duration
	inflight sync.WaitGroup
}

func NewService(db *gorm.DB, client *redis.Client, useRedis bool) *Service {
	return &Service{
		db:       db,
		redis:    client,
		useRedis: useRedis && client != nil,
		timeout:  5 * time.Second,
	}
}

// Emit records the activity off the caller's goroutine.
func (s *Service) Emit(a Activity) {
	if s == nil {
		return
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Level == "" {
		a.Level = "info"
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in activity sink")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Record(ctx, a); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"action":   a.Action,
				"resource": a.Resource,
			}).Warn("failed to record activity")
		}
	}()
}

// Wait blocks until every emitted activity has been handed off.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Record queues a in Redis if enabled, falling back to a direct insert.
func (s *Service) Record(ctx context.Context, a Activity) error {
	if s.useRedis {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if err = s.redis.RPush(ctx, redisListKey, b).Err(); err == nil {
			return nil
		}
		logrus.WithError(err).Warn("[activity] Redis queue failed, falling back to direct insert")
	}
	return s.createDirect(ctx, []Activity{a})
}

func (s *Service) createDirect(ctx context.Context, items []Activity) error {
	if len(items) == 0 {
		return nil
	}
	if s.db == nil {
		return fmt.Errorf("activity sink has no database")
	}
	rows := make([]models.ActivityLog, 0, len(items))
	for _, a := range items {
		row := models.ActivityLog{
			EmployeeID: a.EmployeeID,
			Level:      a.Level,
			Action:     a.Action,
			Resource:   a.Resource,
			ResourceID: a.ResourceID,
			Message:    a.Message,
		}
		row.CreatedAt = a.CreatedAt
		if a.Details != nil {
			if b, err := json.Marshal(a.Details); err == nil {
				row.Details = b
			}
		}
		rows = append(rows, row)
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

// StartWorker drains the Redis queue into activity_logs until stop is closed.
func (s *Service) StartWorker(stop <-chan struct{}) {
	if !s.useRedis {
		logrus.Info("[activity] Redis queue disabled; worker not started")
		return
	}
	go func() {
		logrus.Info("[activity] Redis activity worker started")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				logrus.Info("[activity] worker stopping")
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.flushBatch(ctx, 200)
				cancel()
			}
		}
	}()
}

// Flush drains whatever is queued right now. Used by log maintenance before archiving.
func (s *Service) Flush(ctx context.Context) int {
	if !s.useRedis {
		return 0
	}
	return s.flushBatch(ctx, 200)
}

// flushBatch moves up to five batches from Redis to the database and reports how many were stored.
func (s *Service) flushBatch(ctx context.Context, batchSize int) int {
	if s.redis == nil {
		return 0
	}
	stored := 0
	for i := 0; i < 5; i++ {
		vals, err := s.redis.LRange(ctx, redisListKey, 0, int64(batchSize-1)).Result()
		if err != nil || len(vals) == 0 {
			return stored
		}
		// Trim immediately to avoid duplicates (best-effort)
		if err = s.redis.LTrim(ctx, redisListKey, int64(len(vals)), -1).Err(); err != nil {
			logrus.WithError(err).Warn("[activity] LTrim failed")
		}
		batch := make([]Activity, 0, len(vals))
		for _, raw := range vals {
			var a Activity
			if err := json.Unmarshal([]byte(raw), &a); err != nil {
				continue
			}
			batch = append(batch, a)
		}
		if err := s.createDirect(ctx, batch); err != nil {
			logrus.WithError(err).Error("[activity] DB insert failed")
		} else {
			stored += len(batch)
		}
		if len(vals) < batchSize {
			return stored
		}
	}
	return stored
}
