package service

import "time"

// SetAfter replaces the scheduler's timer.
func (r *ReminderScheduler) SetAfter(after func(time.Duration) <-chan time.Time) {
	r.after = after
}
