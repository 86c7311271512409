package service

import "sync"

// A Progress receives the completion percentage of an operation.
type Progress func(percent int)

// tracker forwards clamped and non-decreasing percentages to a Progress.
type tracker struct {
	mu   sync.Mutex
	fn   Progress
	last int
}

func newTracker(fn Progress) *tracker {
	return &tracker{
		fn:   fn,
		last: -1,
	}
}

func (t *tracker) report(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if percent <= t.last {
		return
	}
	t.last = percent
	if t.fn != nil {
		t.fn(percent)
	}
}

// span reports done/total of the [from, to] sub-range.
func (t *tracker) span(from, to, done, total int) {
	if total <= 0 {
		t.report(to)
		return
	}
	t.report(from + (to-from)*done/total)
}
