package swm

import (
	"testing"
	"time"
)

func TestPollSchedulerRegularTicks(t *testing.T) {
	t0 := time.Unix(1000, 0)
	s := newPollScheduler(100*time.Millisecond, t0)

	tests := []struct {
		at         time.Duration
		wantDue    bool
		wantMissed int
	}{
		{at: 0, wantDue: false},
		{at: 50 * time.Millisecond, wantDue: true},
		{at: 90 * time.Millisecond, wantDue: false},
		{at: 100 * time.Millisecond, wantDue: false},
		{at: 150 * time.Millisecond, wantDue: true},
		{at: 230 * time.Millisecond, wantDue: true},
		{at: 560 * time.Millisecond, wantDue: true, wantMissed: 2},
	}

	for _, tt := range tests {
		due, missed := s.tick(t0.Add(tt.at))
		if due != tt.wantDue || missed != tt.wantMissed {
			t.Fatalf("tick(+%v) = (%v, %d), want (%v, %d)", tt.at, due, missed, tt.wantDue, tt.wantMissed)
		}
	}
}

func TestPollSchedulerSnapsAfterLongStall(t *testing.T) {
	period := 100 * time.Millisecond
	t0 := time.Unix(1000, 0)
	s := newPollScheduler(period, t0)

	now := t0.Add(time.Hour)
	due, missed := s.tick(now)
	if !due || missed != 0 {
		t.Fatalf("tick after stall = (%v, %d), want (true, 0)", due, missed)
	}
	if !s.next.Equal(now) {
		t.Fatalf("next poll = %v, want %v", s.next, now)
	}

	if due, _ = s.tick(now); due {
		t.Fatal("scheduler polled twice for the same instant")
	}
}

func TestPollSchedulerCatchesUpWithinLag(t *testing.T) {
	period := 100 * time.Millisecond
	t0 := time.Unix(1000, 0)
	s := newPollScheduler(period, t0)

	due, missed := s.tick(t0.Add(period*maxPollLag - time.Millisecond))
	if !due || missed != maxPollLag-1 {
		t.Fatalf("tick = (%v, %d), want (true, %d)", due, missed, maxPollLag-1)
	}
}
