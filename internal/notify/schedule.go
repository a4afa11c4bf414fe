// Package notify posts zone run and import summaries to a Discord webhook.
//
// Summaries are held for a short batch window so a burst of zone changes
// becomes one webhook message, and failed posts are retried with backoff.
package notify

import "time"

// Stopper cancels a scheduled flush.
type Stopper interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler func(d time.Duration, f func()) Stopper

func realScheduler(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
