package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricedesk-api/internal/model"
)

// fakeUpdater records bulk update invocations and can simulate slow runs.
type fakeUpdater struct {
	mu          sync.Mutex
	runs        int
	active      int
	maxActive   int
	adjustments []float64
	triggers    []string
	delay       time.Duration
	done        chan struct{}
}

func newFakeUpdater(delay time.Duration) *fakeUpdater {
	return &fakeUpdater{delay: delay, done: make(chan struct{}, 16)}
}

func (f *fakeUpdater) BulkUpdate(ctx context.Context, adjustment float64, productIDs []string, trigger string) (*model.BulkResult, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.active--
	f.runs++
	f.adjustments = append(f.adjustments, adjustment)
	f.triggers = append(f.triggers, trigger)
	f.mu.Unlock()

	f.done <- struct{}{}
	return &model.BulkResult{}, nil
}

func (f *fakeUpdater) waitForRun(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a scheduled run")
	}
}

func testSchedule(adjustment float64, action model.ScheduleAction) *model.Schedule {
	return &model.Schedule{
		ID:              "price-update-schedule",
		IntervalMinutes: 60,
		Adjustment:      adjustment,
		Action:          action,
	}
}

func TestSchedulerImmediateRun(t *testing.T) {
	updater := newFakeUpdater(0)
	store := &fakeScheduleStore{}
	s := NewSchedulerService(updater, store)
	defer s.Shutdown()

	before := time.Now()
	s.Create(testSchedule(5, model.ActionIncrease), true)
	updater.waitForRun(t)

	// The completion hook runs after the updater returns; poll briefly.
	var status *model.Schedule
	require.Eventually(t, func() bool {
		status = s.Status("price-update-schedule")
		return status != nil && status.LastRunTime != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, status.IsActive)
	require.False(t, status.IsCurrentlyExecuting)
	require.NotNil(t, status.NextRunTime)

	// The next fire time is computed from completion, not from the start.
	require.False(t, status.LastRunTime.Before(before))
	require.False(t, status.NextRunTime.Before(status.LastRunTime.Add(status.Interval())))

	updater.mu.Lock()
	defer updater.mu.Unlock()
	require.Equal(t, 1, updater.runs)
	require.Equal(t, []float64{5}, updater.adjustments)
	require.Equal(t, []string{"schedule"}, updater.triggers)
}

func TestSchedulerDecreaseNegatesAdjustment(t *testing.T) {
	updater := newFakeUpdater(0)
	s := NewSchedulerService(updater, nil)
	defer s.Shutdown()

	s.Create(testSchedule(5, model.ActionDecrease), true)
	updater.waitForRun(t)

	updater.mu.Lock()
	defer updater.mu.Unlock()
	require.Equal(t, []float64{-5}, updater.adjustments)
}

func TestSchedulerDeferredFirstRun(t *testing.T) {
	updater := newFakeUpdater(0)
	s := NewSchedulerService(updater, nil)
	defer s.Shutdown()

	before := time.Now()
	created := s.Create(testSchedule(5, model.ActionIncrease), false)

	require.NotNil(t, created.NextRunTime)
	require.False(t, created.NextRunTime.Before(before.Add(created.Interval())))

	updater.mu.Lock()
	defer updater.mu.Unlock()
	require.Zero(t, updater.runs)
}

func TestSchedulerNoOverlappingRuns(t *testing.T) {
	updater := newFakeUpdater(200 * time.Millisecond)
	s := NewSchedulerService(updater, nil)
	defer s.Shutdown()

	s.Create(testSchedule(5, model.ActionIncrease), true)

	// Fire the same schedule again while the first run is still going; the
	// guard must drop the second fire.
	time.Sleep(50 * time.Millisecond)
	s.execute("price-update-schedule")

	updater.waitForRun(t)

	updater.mu.Lock()
	defer updater.mu.Unlock()
	require.Equal(t, 1, updater.maxActive)
	require.Equal(t, 1, updater.runs)
}

func TestSchedulerStopMidRun(t *testing.T) {
	updater := newFakeUpdater(200 * time.Millisecond)
	s := NewSchedulerService(updater, nil)
	defer s.Shutdown()

	s.Create(testSchedule(5, model.ActionIncrease), true)

	time.Sleep(50 * time.Millisecond)
	require.True(t, s.Stop("price-update-schedule"))

	updater.waitForRun(t)

	var status *model.Schedule
	require.Eventually(t, func() bool {
		status = s.Status("price-update-schedule")
		return status != nil && !status.IsCurrentlyExecuting
	}, 2*time.Second, 10*time.Millisecond)

	// The in-flight run finished but was not rescheduled.
	require.False(t, status.IsActive)
	require.Nil(t, status.NextRunTime)
	require.NotNil(t, status.LastRunTime)
}

func TestSchedulerStopUnknown(t *testing.T) {
	s := NewSchedulerService(newFakeUpdater(0), nil)
	defer s.Shutdown()

	require.False(t, s.Stop("missing"))
	require.Nil(t, s.Status("missing"))
}

func TestSchedulerCreateReplacesExisting(t *testing.T) {
	updater := newFakeUpdater(0)
	s := NewSchedulerService(updater, nil)
	defer s.Shutdown()

	s.Create(testSchedule(5, model.ActionIncrease), false)
	replaced := s.Create(testSchedule(9, model.ActionDecrease), false)

	require.Equal(t, 9.0, replaced.Adjustment)
	require.Equal(t, model.ActionDecrease, replaced.Action)

	status := s.Status("price-update-schedule")
	require.Equal(t, 9.0, status.Adjustment)
}

func TestSchedulerReplaceMidRunLeavesSingleTimer(t *testing.T) {
	updater := newFakeUpdater(200 * time.Millisecond)
	s := NewSchedulerService(updater, nil)
	defer s.Shutdown()

	s.Create(testSchedule(5, model.ActionIncrease), true)

	// Replace the schedule while the first run is still in flight; this arms
	// a deferred timer for the replacement.
	time.Sleep(50 * time.Millisecond)
	s.Create(testSchedule(9, model.ActionDecrease), false)

	s.mu.Lock()
	superseded := s.timers["price-update-schedule"]
	s.mu.Unlock()
	require.NotNil(t, superseded)

	updater.waitForRun(t)

	// The in-flight run's completion hook re-arms. The timer armed by the
	// replacement Create must be cancelled, not left to fire alongside the
	// new one.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.timers["price-update-schedule"] != superseded
	}, 2*time.Second, 10*time.Millisecond)

	require.False(t, superseded.Stop(), "superseded timer must already be stopped")

	s.mu.Lock()
	require.Len(t, s.timers, 1)
	s.mu.Unlock()

	updater.mu.Lock()
	defer updater.mu.Unlock()
	require.Equal(t, 1, updater.runs)
}

func TestSchedulerPersistsOnCreateAndStop(t *testing.T) {
	store := &fakeScheduleStore{}
	s := NewSchedulerService(newFakeUpdater(0), store)
	defer s.Shutdown()

	s.Create(testSchedule(5, model.ActionIncrease), false)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.True(t, saved[0].IsActive)

	require.True(t, s.Stop("price-update-schedule"))

	saved, err = store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.False(t, saved[0].IsActive)
}

func TestSchedulerRestore(t *testing.T) {
	t.Run("missed fire time runs immediately", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		store := &fakeScheduleStore{saved: []model.Schedule{{
			ID:              "price-update-schedule",
			IntervalMinutes: 60,
			IsActive:        true,
			NextRunTime:     &past,
			Adjustment:      5,
			Action:          model.ActionIncrease,
		}}}

		updater := newFakeUpdater(0)
		s := NewSchedulerService(updater, store)
		defer s.Shutdown()

		require.NoError(t, s.Restore(context.Background()))
		updater.waitForRun(t)
	})

	t.Run("future fire time is re-armed, not run", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		store := &fakeScheduleStore{saved: []model.Schedule{{
			ID:              "price-update-schedule",
			IntervalMinutes: 60,
			IsActive:        true,
			NextRunTime:     &future,
			Adjustment:      5,
			Action:          model.ActionIncrease,
		}}}

		updater := newFakeUpdater(0)
		s := NewSchedulerService(updater, store)
		defer s.Shutdown()

		require.NoError(t, s.Restore(context.Background()))

		status := s.Status("price-update-schedule")
		require.NotNil(t, status)
		require.True(t, future.Equal(*status.NextRunTime))

		updater.mu.Lock()
		defer updater.mu.Unlock()
		require.Zero(t, updater.runs)
	})

	t.Run("inactive schedule stays dormant", func(t *testing.T) {
		store := &fakeScheduleStore{saved: []model.Schedule{{
			ID:              "price-update-schedule",
			IntervalMinutes: 60,
			IsActive:        false,
			Adjustment:      5,
			Action:          model.ActionIncrease,
		}}}

		updater := newFakeUpdater(0)
		s := NewSchedulerService(updater, store)
		defer s.Shutdown()

		require.NoError(t, s.Restore(context.Background()))

		status := s.Status("price-update-schedule")
		require.NotNil(t, status)
		require.False(t, status.IsActive)

		updater.mu.Lock()
		defer updater.mu.Unlock()
		require.Zero(t, updater.runs)
	})
}
