package scheduler

import (
	"testing"

	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/match"
)

func TestRegisterFlushJob(t *testing.T) {
	sched, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sched.Stop()

	if err := sched.RegisterFlushJob(nil, "* * * * *"); err == nil {
		t.Error("registering without a manager should fail")
	}

	manager := match.NewManager(nil)
	if err := sched.RegisterFlushJob(manager, "* * * * *"); err != nil {
		t.Errorf("registration failed: %v", err)
	}
	if err := sched.RegisterFlushJob(manager, "not a cron"); err == nil {
		t.Error("an invalid cron expression should be rejected")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	sched, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sched.Start()

	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := sched.Stop(); err != nil {
		t.Errorf("second Stop returned %v, want nil", err)
	}
}
