package app

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/personachat/internal/config"
	"github.com/edgard/personachat/internal/logger"
)

type fakeStore struct {
	cutoff     time.Time
	removed    int
	cleanupErr error
	vacuums    int
	vacuumErr  error
}

func (s *fakeStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.cutoff = cutoff
	return s.removed, s.cleanupErr
}

func (s *fakeStore) RunSQLMaintenance(context.Context) error {
	s.vacuums++
	return s.vacuumErr
}

// blockingRunner serves until its context is done, or returns err at once.
type blockingRunner struct {
	err     error
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	if r.started != nil {
		close(r.started)
	}
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	return nil
}

func TestMediaCleanupTask(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{removed: 3}
	tasks := RegisterAllTasks(TaskDeps{
		Logger:    logger.Discard(),
		Store:     store,
		Retention: 48 * time.Hour,
		Now:       func() time.Time { return now },
	})

	require.NoError(t, tasks[TaskMediaCleanup](context.Background()))
	assert.Equal(t, now.Add(-48*time.Hour), store.cutoff)

	store.cleanupErr = errors.New("disk gone")
	err := tasks[TaskMediaCleanup](context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestMediaCleanupDisabled(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	tasks := RegisterAllTasks(TaskDeps{Logger: logger.Discard(), Store: store})

	require.NoError(t, tasks[TaskMediaCleanup](context.Background()))
	assert.True(t, store.cutoff.IsZero())
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	tasks := RegisterAllTasks(TaskDeps{Logger: logger.Discard(), Store: store})

	require.NoError(t, tasks[TaskSQLMaintenance](context.Background()))
	assert.Equal(t, 1, store.vacuums)

	store.vacuumErr = errors.New("locked")
	require.ErrorContains(t, tasks[TaskSQLMaintenance](context.Background()), "sql maintenance failed")
}

func TestSchedulerSchedulesEnabledTasks(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	cfg := config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		TaskMediaCleanup:   {Enabled: true, Schedule: "0 0 4 * * *"},
		TaskSQLMaintenance: {Enabled: false, Schedule: "0 30 4 * * 0"},
		"unknown":          {Enabled: true, Schedule: "0 0 * * * *"},
		"bad_schedule":     {Enabled: true, Schedule: "not a cron"},
	}}
	taskMap := map[string]TaskFunc{
		TaskMediaCleanup:   noop,
		TaskSQLMaintenance: noop,
		"bad_schedule":     noop,
	}

	s, err := NewScheduler(logger.Discard(), cfg, taskMap)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))

	names := s.JobNames()
	sort.Strings(names)
	assert.Equal(t, []string{TaskMediaCleanup}, names)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

func TestAppRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(logger.Discard(), config.SchedulerConfig{}, nil)
	require.NoError(t, err)

	server := &blockingRunner{started: make(chan struct{})}
	bridge := &blockingRunner{}
	a := New(logger.Discard(), server, bridge, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	<-server.started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestAppRunPropagatesFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("listen failed")
	a := New(logger.Discard(), &blockingRunner{err: boom}, nil, nil)

	err := a.Run(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestAppRunComponentStoppedEarly(t *testing.T) {
	t.Parallel()

	a := New(logger.Discard(), &blockingRunner{}, earlyRunner{}, nil)

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram bridge stopped unexpectedly")
}

type earlyRunner struct{}

func (earlyRunner) Run(context.Context) error { return nil }
