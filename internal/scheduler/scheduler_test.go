package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestScheduler_RegisterTask(t *testing.T) {
	s := newTestScheduler(t)

	cfg := TaskConfig{ID: "noop", Name: "Noop", Cron: "0 0 * * *", Func: func(context.Context) error { return nil }}
	require.NoError(t, s.RegisterTask(cfg))
	assert.Error(t, s.RegisterTask(cfg), "duplicate IDs are rejected")

	assert.Error(t, s.RegisterTask(TaskConfig{ID: "bad", Cron: "not a cron", Func: cfg.Func}))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "nofunc", Cron: "0 0 * * *"}))

	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "noop", tasks[0].ID)
}

func TestScheduler_RunOnStartAndLastError(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "failing",
		Name:       "Failing",
		Cron:       "0 0 1 1 *",
		RunOnStart: true,
		Func: func(context.Context) error {
			runs.Add(1)
			return errors.New("boom")
		},
	}))

	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool {
		info, err := s.GetTask("failing")
		return err == nil && info.LastRun != nil && !info.Running
	}, 2*time.Second, 10*time.Millisecond)

	info, err := s.GetTask("failing")
	require.NoError(t, err)
	assert.Equal(t, "boom", info.LastError)
	assert.NotNil(t, info.NextRun)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler(t)

	done := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "manual",
		Name: "Manual",
		Cron: "0 0 1 1 *",
		Func: func(context.Context) error {
			close(done)
			return nil
		},
	}))

	assert.Error(t, s.RunNow("unknown"))
	require.NoError(t, s.RunNow("manual"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestScheduler_StopCancelsRunningTask(t *testing.T) {
	s := newTestScheduler(t)

	started := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "blocking",
		Name: "Blocking",
		Cron: "0 0 1 1 *",
		Func: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))
	require.NoError(t, s.Start())
	require.NoError(t, s.RunNow("blocking"))
	<-started

	require.NoError(t, s.Stop())

	info, err := s.GetTask("blocking")
	require.NoError(t, err)
	assert.False(t, info.Running)
	assert.Equal(t, context.Canceled.Error(), info.LastError)
}

func TestScheduler_TaskTimeout(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:      "slow",
		Name:    "Slow",
		Cron:    "0 0 1 1 *",
		Timeout: 20 * time.Millisecond,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	s.executeTask("slow")

	info, err := s.GetTask("slow")
	require.NoError(t, err)
	assert.Equal(t, context.DeadlineExceeded.Error(), info.LastError)
}

func TestScheduler_NoRunsAfterStop(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "late",
		Name: "Late",
		Cron: "0 0 1 1 *",
		Func: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	s.executeTask("late")

	assert.Zero(t, runs.Load())
	info, err := s.GetTask("late")
	require.NoError(t, err)
	assert.Nil(t, info.LastRun)
	assert.False(t, info.Running)
}

func TestScheduler_StopWaitsForConcurrentRuns(t *testing.T) {
	s := newTestScheduler(t)

	var running atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "racy",
		Name: "Racy",
		Cron: "0 0 1 1 *",
		Func: func(ctx context.Context) error {
			running.Add(1)
			defer running.Add(-1)
			<-ctx.Done()
			return ctx.Err()
		},
	}))
	require.NoError(t, s.Start())

	for i := 0; i < 20; i++ {
		go s.executeTask("racy")
	}
	require.NoError(t, s.Stop())

	assert.Zero(t, running.Load(), "no task may still be running once Stop returns")
}
