package tracker

import (
	"context"

	"github.com/target/specops-api/internal/domain/model"
)

// Update is one observation delivered to an Observer.
type Update struct {
	Ref model.JobRef
	// Job is the observed job; nil when Err is set.
	Job *model.AsyncJob
	// Err ends tracking with a hard error: PollingStalled, an authentication
	// failure, or a client error such as not-found.
	Err error
	// Final marks the last update for this tracking session.
	Final bool
}

// Failed reports whether the update should present as an error to an end user:
// a tracking error or a failed/cancelled terminal status.
func (u Update) Failed() bool {
	if u.Err != nil {
		return true
	}
	return u.Job != nil && u.Job.Status.Failed()
}

// Observer receives status updates for tracked jobs.
//
// Observe runs on the job's polling goroutine while the job's emission lock is held,
// so it must not call Tracker.Stop for the same job.
type Observer interface {
	Observe(ctx context.Context, u Update)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, u Update)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, u Update) {
	f(ctx, u)
}

// MultiObserver fans an update out to several observers in order.
type MultiObserver []Observer

// Observe implements Observer.
func (m MultiObserver) Observe(ctx context.Context, u Update) {
	for _, o := range m {
		if o != nil {
			o.Observe(ctx, u)
		}
	}
}
