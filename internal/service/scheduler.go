package service

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"pricedesk-api/internal/model"
	"pricedesk-api/internal/repository"
)

// BulkUpdater is the slice of PriceService the scheduler needs.
type BulkUpdater interface {
	BulkUpdate(ctx context.Context, adjustment float64, productIDs []string, trigger string) (*model.BulkResult, error)
}

// SchedulerService runs recurring price adjustments. Timers are one-shot and
// re-armed only after a run finishes, so the interval measures gaps between
// runs and two runs of the same schedule can never overlap.
type SchedulerService struct {
	mu        sync.Mutex
	schedules map[string]*model.Schedule
	timers    map[string]*time.Timer

	updater BulkUpdater
	store   repository.ScheduleRepository // optional, nil disables persistence
}

// NewSchedulerService creates a scheduler service.
func NewSchedulerService(updater BulkUpdater, store repository.ScheduleRepository) *SchedulerService {
	return &SchedulerService{
		schedules: make(map[string]*model.Schedule),
		timers:    make(map[string]*time.Timer),
		updater:   updater,
		store:     store,
	}
}

// Create registers (or replaces) a schedule. With runImmediately the first
// run starts asynchronously right away and the next fire time is computed
// when it completes; otherwise the first fire is one full interval out.
func (s *SchedulerService) Create(sched *model.Schedule, runImmediately bool) *model.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(sched.ID)

	sched.IsActive = true
	sched.IsCurrentlyExecuting = false
	sched.LastRunTime = nil

	if runImmediately {
		sched.NextRunTime = nil
		s.schedules[sched.ID] = sched
		go s.execute(sched.ID)
	} else {
		next := time.Now().Add(sched.Interval())
		sched.NextRunTime = &next
		s.schedules[sched.ID] = sched
		s.armLocked(sched.ID, sched.Interval())
	}

	log.Printf("[Scheduler] Schedule %s created: %s %.2f every %d minutes (immediate=%v)",
		sched.ID, sched.Action, sched.Adjustment, sched.IntervalMinutes, runImmediately)

	s.persistLocked()
	return s.snapshotLocked(sched.ID)
}

// Stop deactivates a schedule, cancelling its pending timer. Returns false
// when no such schedule exists. A run already in progress finishes but is
// not rescheduled.
func (s *SchedulerService) Stop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok {
		return false
	}

	s.stopLocked(id)
	sched.IsActive = false
	sched.NextRunTime = nil

	log.Printf("[Scheduler] Schedule %s stopped", id)
	s.persistLocked()
	return true
}

// Status returns a copy of the schedule, or nil when it does not exist.
func (s *SchedulerService) Status(id string) *model.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(id)
}

// Restore reloads persisted schedules on startup. Active schedules whose
// fire time passed while the process was down run immediately; future ones
// get their timers re-armed.
func (s *SchedulerService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	saved, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, sched := range saved {
		sched := sched
		sched.IsCurrentlyExecuting = false
		s.schedules[sched.ID] = &sched

		if !sched.IsActive {
			continue
		}

		if sched.NextRunTime == nil || !sched.NextRunTime.After(now) {
			log.Printf("[Scheduler] Schedule %s missed its fire time while down, running now", sched.ID)
			s.schedules[sched.ID].NextRunTime = nil
			go s.execute(sched.ID)
			continue
		}

		delay := sched.NextRunTime.Sub(now)
		log.Printf("[Scheduler] Schedule %s restored, next run in %s", sched.ID, delay.Round(time.Second))
		s.armLocked(sched.ID, delay)
	}

	return nil
}

// execute runs one schedule iteration and re-arms the timer afterwards.
// Errors are logged, never propagated: a failed run must not kill the
// recurrence.
func (s *SchedulerService) execute(id string) {
	s.mu.Lock()
	sched, ok := s.schedules[id]
	if !ok || !sched.IsActive {
		s.mu.Unlock()
		return
	}
	if sched.IsCurrentlyExecuting {
		log.Printf("[Scheduler] Schedule %s is still executing, skipping this fire", id)
		s.mu.Unlock()
		return
	}
	sched.IsCurrentlyExecuting = true
	adjustment := math.Abs(sched.Adjustment)
	if sched.Action == model.ActionDecrease {
		adjustment = -adjustment
	}
	s.mu.Unlock()

	log.Printf("[Scheduler] Executing schedule %s (adjustment %.2f)", id, adjustment)

	if _, err := s.updater.BulkUpdate(context.Background(), adjustment, nil, "schedule"); err != nil {
		log.Printf("[Scheduler] Schedule %s run failed: %v", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok = s.schedules[id]
	if !ok {
		return
	}
	sched.IsCurrentlyExecuting = false

	completed := time.Now()
	sched.LastRunTime = &completed

	// Stopped mid-run: record the completion but do not reschedule.
	if !sched.IsActive {
		sched.NextRunTime = nil
		s.persistLocked()
		return
	}

	next := completed.Add(sched.Interval())
	sched.NextRunTime = &next
	s.armLocked(id, sched.Interval())

	log.Printf("[Scheduler] Schedule %s next run at %s", id, next.Format(time.RFC3339))
	s.persistLocked()
}

// armLocked sets a one-shot timer for the schedule, cancelling any timer
// already armed for it. At most one timer exists per id. Caller holds s.mu.
func (s *SchedulerService) armLocked(id string, delay time.Duration) {
	s.stopLocked(id)
	s.timers[id] = time.AfterFunc(delay, func() { s.execute(id) })
}

// stopLocked cancels any pending timer for id. Caller holds s.mu.
func (s *SchedulerService) stopLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// snapshotLocked copies the schedule for callers outside the lock.
func (s *SchedulerService) snapshotLocked(id string) *model.Schedule {
	sched, ok := s.schedules[id]
	if !ok {
		return nil
	}
	cp := *sched
	return &cp
}

// persistLocked writes the current schedule set through the store,
// best-effort. Caller holds s.mu.
func (s *SchedulerService) persistLocked() {
	if s.store == nil {
		return
	}

	out := make([]model.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, *sched)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, out); err != nil {
		log.Printf("[Scheduler] Failed to persist schedules: %v", err)
	}
}

// Shutdown cancels all pending timers. Runs in flight finish on their own.
func (s *SchedulerService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		s.stopLocked(id)
	}
}
