package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	for _, expr := range []string{"* * * * *", "@hourly", "@every 30m"} {
		if err := s.AddJob(expr, func() {}); err != nil {
			t.Errorf("AddJob(%q): %v", expr, err)
		}
	}
	if err := s.AddJob("not a cron", func() {}); err == nil {
		t.Error("expected an error for an invalid expression")
	}
	if s.Entries() != 3 {
		t.Errorf("Entries = %d, want 3", s.Entries())
	}
}

func TestSchedulerAddTimedJob_Runs(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	var sawDeadline atomic.Bool
	err := s.AddTimedJob("@every 1s", "probe", time.Minute, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			sawDeadline.Store(true)
		}
		runs.Add(1)
		return errors.New("logged, not fatal")
	})
	if err != nil {
		t.Fatalf("AddTimedJob: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}
	if !sawDeadline.Load() {
		t.Error("job context should carry a deadline")
	}
}
