package crawl

import (
	"github.com/fwojciec/fetchq"
)

// RetryPolicy decides whether a failed item runs again.
type RetryPolicy struct {
	// MaxAttempts bounds executions per item. Zero means unlimited.
	MaxAttempts int
}

// Decide reports whether item should be requeued after failing with err.
// When it should not, the returned reason is the failure to record.
// Only transient errors are retried; cancellation never is.
func (p RetryPolicy) Decide(item fetchq.WorkItem, err error) (retry bool, reason string) {
	if fetchq.IsCancellation(err) {
		return false, fetchq.ReasonCancelled
	}
	if !fetchq.IsTransient(err) {
		return false, fetchq.FailureReason(err)
	}
	if p.MaxAttempts > 0 && item.Attempts()+1 >= p.MaxAttempts {
		return false, fetchq.ReasonMaxAttempts
	}
	return true, ""
}
