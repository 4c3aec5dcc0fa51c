// Package delivery implements the webhook delivery engine: signing and
// posting a payload, classifying the outcome, and scheduling retries.
package delivery

import "time"

// retryDelays is the fixed backoff schedule applied after each failed
// attempt, indexed by the number of attempts already made (0-based). A
// delivery whose attempt count reaches MaxAttempts is failed permanently
// rather than rescheduled again, so the final entry is never scheduled.
var retryDelays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	8 * time.Hour,
}

// MaxAttempts is the total number of delivery attempts (the first try plus
// every retry) a record may accumulate before it is forced to Failed.
const MaxAttempts = len(retryDelays)

// NextRetryDelay returns how long to wait before the next attempt given
// completedAttempts already made. ok is false once completedAttempts has
// exhausted the schedule, signaling the caller to fail the delivery instead
// of rescheduling it.
func NextRetryDelay(completedAttempts int) (delay time.Duration, ok bool) {
	if completedAttempts < 0 || completedAttempts >= len(retryDelays) {
		return 0, false
	}
	return retryDelays[completedAttempts], true
}
