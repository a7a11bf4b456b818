package rent

import "time"

// AttemptStatus tracks the lifecycle of one external bank poll for a cycle.
type AttemptStatus string

const (
	// AttemptPending means the poll succeeded and results are being processed.
	AttemptPending AttemptStatus = "pending"
	// AttemptCompleted means results were processed and persisted.
	AttemptCompleted AttemptStatus = "completed"
	// AttemptFailed means processing errored after the poll.
	AttemptFailed AttemptStatus = "failed"
)

// AttemptState is the persisted outcome of a previous poll for a
// (property, cycle) pair, as far as ShouldPoll cares about it.
type AttemptState struct {
	Status      AttemptStatus
	StoredCount int // transactions persisted by the attempt
	ErrorCount  int // times the attempt was marked failed
}

// Terminal reports whether the attempt closes polling for its cycle.
// A poll that stored any data is always terminal, regardless of later errors.
// A failed attempt that stored nothing may be retried exactly once.
func (a AttemptState) Terminal() bool {
	if a.Status == AttemptCompleted || a.StoredCount > 0 {
		return true
	}
	return a.ErrorCount >= 2
}

// PollWindow is the bounded range inside cycle c in which an external bank
// fetch is permitted: it opens lead before the cycle closes and stays open
// until the cycle end. The open edge never precedes the cycle start.
func PollWindow(c Cycle, lead time.Duration) (open, close time.Time) {
	open = c.End.Add(-lead)
	if open.Before(c.Start) {
		open = c.Start
	}
	return open, c.End
}

// ShouldPoll decides whether an external bank call is allowed right now for
// the given cycle. attempt is the recorded SyncAttempt for
// (property, c.Start), or nil if none exists yet.
//
// The budget is at most one successful call per cycle: once an attempt is
// terminal, ShouldPoll never returns true again for that cycle.
func ShouldPoll(attempt *AttemptState, c Cycle, now time.Time, lead time.Duration) bool {
	open, close := PollWindow(c, lead)
	if now.Before(open) || !now.Before(close) {
		return false
	}
	if attempt == nil {
		return true
	}
	return !attempt.Terminal()
}
