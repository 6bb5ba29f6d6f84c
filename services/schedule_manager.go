package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// ScheduledJob describes a registered job and its next firing.
type ScheduledJob struct {
	Name string    `json:"name"`
	Spec string    `json:"schedule"`
	Next time.Time `json:"next_run"`
	Prev time.Time `json:"prev_run,omitempty"`
}

type registeredJob struct {
	spec    string
	fn      JobFunc
	entryID cron.EntryID
}

// ScheduleManager runs jobs on cron specs in the reference timezone. Jobs are
// also triggerable by name, so a scheduled run and a manual run share one path.
type ScheduleManager struct {
	cron    *cron.Cron
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]*registeredJob
}

// cronLogger routes robfig/cron's internal logging through logrus.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithError(err).WithFields(kvFields(keysAndValues)).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

// NewScheduleManager builds a stopped manager. timeout bounds each job run.
func NewScheduleManager(loc *time.Location, timeout time.Duration) *ScheduleManager {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	logger := cronLogger{entry: logrus.WithField("component", "scheduler")}
	return &ScheduleManager{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		timeout: timeout,
		jobs:    map[string]*registeredJob{},
	}
}

// Register adds a job under a unique name. spec is a standard five-field cron expression or descriptor.
func (sm *ScheduleManager) Register(name, spec string, fn JobFunc) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	job := &registeredJob{spec: spec, fn: fn}
	id, err := sm.cron.AddFunc(spec, func() {
		if err := sm.run(context.Background(), name, job.fn); err != nil {
			logrus.WithError(err).WithField("job", name).Error("scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}
	job.entryID = id
	sm.jobs[name] = job
	return nil
}

func (sm *ScheduleManager) run(ctx context.Context, name string, fn JobFunc) error {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	start := time.Now()
	logrus.WithField("job", name).Info("job started")
	err := fn(ctx)
	logrus.WithFields(logrus.Fields{"job": name, "took": time.Since(start).String()}).Info("job finished")
	return err
}

// Trigger runs a registered job now, on the caller's goroutine.
func (sm *ScheduleManager) Trigger(ctx context.Context, name string) error {
	sm.mu.Lock()
	job, ok := sm.jobs[name]
	sm.mu.Unlock()
	if !ok {
		return NotFoundError("scheduler.trigger", "job %q is not registered", name)
	}
	return sm.run(ctx, name, job.fn)
}

// Start begins firing jobs in the background.
func (sm *ScheduleManager) Start() {
	sm.cron.Start()
	logrus.WithField("jobs", len(sm.jobs)).Info("schedule manager started")
}

// Stop halts scheduling and returns a context done once running jobs finish.
func (sm *ScheduleManager) Stop() context.Context {
	logrus.Info("schedule manager stopping")
	return sm.cron.Stop()
}

// Jobs lists registered jobs ordered by name.
func (sm *ScheduleManager) Jobs() []ScheduledJob {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	out := make([]ScheduledJob, 0, len(sm.jobs))
	for name, job := range sm.jobs {
		entry := sm.cron.Entry(job.entryID)
		out = append(out, ScheduledJob{Name: name, Spec: job.spec, Next: entry.Next, Prev: entry.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RegisterSweeps wires both reconciliation sweeps onto their configured schedules.
func (sm *ScheduleManager) RegisterSweeps(rs *ReconciliationService, absenceSpec, punchOutSpec string) error {
	if err := sm.Register(JobAbsenceSweep, absenceSpec, func(ctx context.Context) error {
		_, err := rs.RunAbsenceSweep(ctx)
		return err
	}); err != nil {
		return err
	}
	return sm.Register(JobAutoPunchOut, punchOutSpec, func(ctx context.Context) error {
		_, err := rs.RunAutoPunchOutSweep(ctx)
		return err
	})
}
