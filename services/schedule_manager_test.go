package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleManagerRegister(t *testing.T) {
	sm := NewScheduleManager(time.UTC, time.Second)
	noop := func(context.Context) error { return nil }

	require.NoError(t, sm.Register("nightly", "0 2 * * *", noop))
	require.NoError(t, sm.Register("evening", "@every 1h", noop))

	assert.Error(t, sm.Register("nightly", "0 3 * * *", noop))
	assert.Error(t, sm.Register("broken", "not a schedule", noop))

	jobs := sm.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "evening", jobs[0].Name)
	assert.Equal(t, "nightly", jobs[1].Name)
	assert.Equal(t, "0 2 * * *", jobs[1].Spec)
}

func TestScheduleManagerTrigger(t *testing.T) {
	sm := NewScheduleManager(time.UTC, 20*time.Millisecond)
	runs := 0
	require.NoError(t, sm.Register("count", "@daily", func(context.Context) error {
		runs++
		return nil
	}))
	boom := errors.New("boom")
	require.NoError(t, sm.Register("fail", "@daily", func(context.Context) error { return boom }))
	require.NoError(t, sm.Register("slow", "@daily", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	require.NoError(t, sm.Trigger(context.Background(), "count"))
	assert.Equal(t, 1, runs)
	assert.ErrorIs(t, sm.Trigger(context.Background(), "fail"), boom)
	assert.ErrorIs(t, sm.Trigger(context.Background(), "slow"), context.DeadlineExceeded)

	err := sm.Trigger(context.Background(), "missing")
	assert.True(t, IsKind(err, KindNotFound))
}

func TestScheduleManagerRegisterSweeps(t *testing.T) {
	f := newFixture(t, at("2025-03-10", 20, 0))
	rs := NewReconciliationService(f.db, nil, nil, f.clock(), 2, time.Second)
	sm := NewScheduleManager(time.UTC, time.Minute)

	require.NoError(t, sm.RegisterSweeps(rs, "0 20 * * 1-5", "30 19 * * *"))
	jobs := sm.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, JobAbsenceSweep, jobs[0].Name)
	assert.Equal(t, JobAutoPunchOut, jobs[1].Name)

	require.NoError(t, sm.Trigger(context.Background(), JobAbsenceSweep))
	rec, found := f.record(t, sneha, "2025-03-10")
	require.True(t, found)
	assert.NotNil(t, rec.AttendanceStatus)

	sm.Start()
	<-sm.Stop().Done()
}
