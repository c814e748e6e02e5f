// internal/swm/scheduler.go
package swm

import "time"

// maxPollLag is how many periods the scheduler may fall behind before it
// stops catching up and restarts from now
const maxPollLag = 10

// pollScheduler tracks the next poll deadline. It is only used from the
// write loop.
type pollScheduler struct {
	period time.Duration
	next   time.Time
}

func newPollScheduler(period time.Duration, now time.Time) *pollScheduler {
	return &pollScheduler{period: period, next: now}
}

// tick advances the deadline past now. due reports whether at least one
// period elapsed; missed counts the extra periods that were skipped.
func (s *pollScheduler) tick(now time.Time) (due bool, missed int) {
	if now.Sub(s.next) > maxPollLag*s.period {
		s.next = now.Add(-s.period)
	}

	steps := 0
	for s.next.Before(now) {
		s.next = s.next.Add(s.period)
		steps++
	}
	if steps == 0 {
		return false, 0
	}
	return true, steps - 1
}
