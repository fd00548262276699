// Package tracker turns one-shot job status reads into an observation stream that
// ends at the job's terminal status. Each tracked job polls on its own goroutine.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
	"github.com/target/specops-api/internal/observability/metrics"
	"github.com/target/specops-api/internal/observability/statsd"
)

const (
	defaultMaxConsecutiveFailures = 5
	defaultInterval               = 5 * time.Second
)

// Stop reasons reported in logs and metrics.
const (
	reasonTerminal = "terminal"
	reasonStalled  = "stalled"
	reasonError    = "error"
	reasonStopped  = "stopped"
)

// ErrAlreadyTracked is returned by Track for a job that is already being polled.
var ErrAlreadyTracked = errors.New("job is already tracked")

// Options configures a Tracker.
type Options struct {
	Fetcher core.JobFetcher
	Logger  *slog.Logger
	Metrics statsd.Sink
	// Intervals supplies the default tick interval per job type.
	Intervals map[model.JobType]time.Duration
	// MaxConsecutiveFailures is how many transient fetch failures in a row stall a job.
	MaxConsecutiveFailures uint32
}

// TrackRequest names a job to poll and, optionally, its tick interval.
type TrackRequest struct {
	Ref model.JobRef
	// Interval overrides the per-type default when positive.
	Interval time.Duration
}

// Tracker polls any number of jobs concurrently. It is safe for concurrent use.
type Tracker struct {
	fetcher     core.JobFetcher
	logger      *slog.Logger
	metrics     statsd.Sink
	intervals   map[model.JobType]time.Duration
	maxFailures uint32

	mu   sync.Mutex
	jobs map[model.JobRef]*entry
	gen  uint64
	wg   sync.WaitGroup
}

// entry is one tracking session. The tracked set maps a ref to its live entry;
// a late result from a replaced or stopped entry is discarded.
type entry struct {
	ref      model.JobRef
	gen      uint64
	interval time.Duration
	observer Observer
	cancel   context.CancelFunc

	emitMu  sync.Mutex
	stopped bool
}

// New builds a Tracker.
func New(opts Options) (*Tracker, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("tracker requires a job fetcher")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := opts.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxConsecutiveFailures
	}
	intervals := make(map[model.JobType]time.Duration, len(opts.Intervals))
	for jt, d := range opts.Intervals {
		intervals[jt] = d
	}
	return &Tracker{
		fetcher:     opts.Fetcher,
		logger:      logger.With("component", "tracker"),
		metrics:     opts.Metrics,
		intervals:   intervals,
		maxFailures: maxFailures,
		jobs:        make(map[model.JobRef]*entry),
	}, nil
}

// Track starts polling req.Ref and delivers updates to obs until the job reaches a
// terminal status, tracking fails, or Stop is called.
//
// Polling outlives ctx's cancellation (it keeps ctx's values only); use Stop or StopAll to end it.
func (t *Tracker) Track(ctx context.Context, req TrackRequest, obs Observer) error {
	if err := req.Ref.Validate(); err != nil {
		return apperrors.ValidationField("job", err.Error())
	}
	if obs == nil {
		return errors.New("observer is required")
	}
	interval := req.Interval
	if interval <= 0 {
		interval = t.intervalFor(req.Ref.Type)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	t.mu.Lock()
	if _, ok := t.jobs[req.Ref]; ok {
		t.mu.Unlock()
		cancel()
		return fmt.Errorf("%s: %w", req.Ref, ErrAlreadyTracked)
	}
	t.gen++
	e := &entry{
		ref:      req.Ref,
		gen:      t.gen,
		interval: interval,
		observer: obs,
		cancel:   cancel,
	}
	t.jobs[req.Ref] = e
	n := len(t.jobs)
	t.wg.Add(1)
	t.mu.Unlock()

	metrics.EmitTrackedGauge(t.metrics, n)
	t.logger.InfoContext(ctx, "tracking job",
		"job_type", req.Ref.Type,
		"job_id", req.Ref.ID,
		"interval", interval,
		"generation", e.gen,
	)

	go t.run(runCtx, e)
	return nil
}

// Stop ends tracking of ref. Any in-flight fetch may complete, but its result is
// discarded. It reports whether ref was tracked.
func (t *Tracker) Stop(ref model.JobRef) bool {
	t.mu.Lock()
	e, ok := t.jobs[ref]
	if ok {
		delete(t.jobs, ref)
	}
	n := len(t.jobs)
	t.mu.Unlock()

	if !ok {
		return false
	}
	e.stop()
	metrics.EmitTrackedGauge(t.metrics, n)
	metrics.EmitTrackerStopped(t.metrics, metrics.TrackerMetric{JobType: string(ref.Type), Reason: reasonStopped})
	t.logger.Info("stopped tracking job", "job_type", ref.Type, "job_id", ref.ID, "generation", e.gen)
	return true
}

// StopAll ends tracking of every job.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	entries := make([]*entry, 0, len(t.jobs))
	for ref, e := range t.jobs {
		entries = append(entries, e)
		delete(t.jobs, ref)
	}
	t.mu.Unlock()

	for _, e := range entries {
		e.stop()
	}
	if len(entries) > 0 {
		metrics.EmitTrackedGauge(t.metrics, 0)
		t.logger.Info("stopped tracking all jobs", "count", len(entries))
	}
}

// Wait blocks until every polling goroutine has exited or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tracked returns the refs currently being polled, sorted by type then id.
func (t *Tracker) Tracked() []model.JobRef {
	t.mu.Lock()
	refs := make([]model.JobRef, 0, len(t.jobs))
	for ref := range t.jobs {
		refs = append(refs, ref)
	}
	t.mu.Unlock()

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Type != refs[j].Type {
			return refs[i].Type < refs[j].Type
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}

// IsTracked reports whether ref is currently being polled.
func (t *Tracker) IsTracked(ref model.JobRef) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.jobs[ref]
	return ok
}

func (t *Tracker) intervalFor(jt model.JobType) time.Duration {
	if d, ok := t.intervals[jt]; ok && d > 0 {
		return d
	}
	return defaultInterval
}

// release removes e from the tracked set if it is still the live session for its ref.
func (t *Tracker) release(e *entry) {
	t.mu.Lock()
	if cur, ok := t.jobs[e.ref]; ok && cur == e {
		delete(t.jobs, e.ref)
	}
	n := len(t.jobs)
	t.mu.Unlock()
	e.cancel()
	metrics.EmitTrackedGauge(t.metrics, n)
}

func (e *entry) stop() {
	e.emitMu.Lock()
	e.stopped = true
	e.emitMu.Unlock()
	e.cancel()
}

// emit delivers u unless the session was stopped. A final update also closes the session.
func (e *entry) emit(ctx context.Context, u Update) bool {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	if e.stopped {
		return false
	}
	if u.Final {
		e.stopped = true
	}
	e.observer.Observe(ctx, u)
	return true
}

func (t *Tracker) newBreaker(ref model.JobRef) *gobreaker.CircuitBreaker {
	maxFailures := t.maxFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        ref.String(),
		MaxRequests: 1,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		// Only transient failures count toward stalling; hard errors end tracking directly.
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.IsTransient(err)
		},
	})
}

func (t *Tracker) run(ctx context.Context, e *entry) {
	defer t.wg.Done()

	ref := e.ref
	log := t.logger.With("job_type", ref.Type, "job_id", ref.ID, "generation", e.gen)
	breaker := t.newBreaker(ref)
	lastRank := -1
	var failures uint32

	for {
		res, err := breaker.Execute(func() (any, error) {
			return t.fetcher.GetJob(ctx, ref)
		})
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			if apperrors.IsTransient(err) && breaker.State() != gobreaker.StateOpen {
				failures++
				metrics.EmitTrackerPollFailure(t.metrics, metrics.TrackerMetric{JobType: string(ref.Type), Err: err})
				log.WarnContext(ctx, "job status poll failed; will retry next tick",
					"consecutive_failures", failures, "error", err)
				if !t.wait(ctx, e.interval) {
					return
				}
				continue
			}

			reason := reasonError
			if apperrors.IsTransient(err) || errors.Is(err, gobreaker.ErrOpenState) {
				failures++
				reason = reasonStalled
				err = apperrors.PollingStalled(ref.String(), failures, err)
			}
			t.finish(ctx, e, Update{Ref: ref, Err: err, Final: true}, reason)
			return
		}
		failures = 0

		job, _ := res.(*model.AsyncJob)
		if job == nil {
			t.finish(ctx, e, Update{
				Ref:   ref,
				Err:   apperrors.Internal(fmt.Sprintf("empty status response for %s", ref)),
				Final: true,
			}, reasonError)
			return
		}

		rank := job.Status.Rank()
		if rank < lastRank {
			log.DebugContext(ctx, "dropping regressed job status", "status", job.Status)
			if !t.wait(ctx, e.interval) {
				return
			}
			continue
		}
		lastRank = rank

		if job.Status.Terminal() {
			t.finish(ctx, e, Update{Ref: ref, Job: job, Final: true}, reasonTerminal)
			return
		}

		if !e.emit(ctx, Update{Ref: ref, Job: job}) {
			return
		}
		metrics.EmitTrackerObservation(t.metrics, metrics.TrackerMetric{JobType: string(ref.Type), Status: string(job.Status)})

		if !t.wait(ctx, e.interval) {
			return
		}
	}
}

func (t *Tracker) finish(ctx context.Context, e *entry, u Update, reason string) {
	emitted := e.emit(ctx, u)
	t.release(e)
	if !emitted {
		return
	}

	m := metrics.TrackerMetric{JobType: string(e.ref.Type), Reason: reason, Err: u.Err}
	if u.Job != nil {
		m.Status = string(u.Job.Status)
		metrics.EmitTrackerObservation(t.metrics, m)
	}
	metrics.EmitTrackerStopped(t.metrics, m)

	log := t.logger.With("job_type", e.ref.Type, "job_id", e.ref.ID, "generation", e.gen)
	switch {
	case u.Err != nil:
		log.ErrorContext(ctx, "job tracking ended with error", "reason", reason, "error", u.Err)
	case u.Job.Status.Failed():
		msg := ""
		if u.Job.ErrorMessage != nil {
			msg = *u.Job.ErrorMessage
		}
		log.WarnContext(ctx, "job reached failed terminal status", "status", u.Job.Status, "error_message", msg)
	default:
		log.InfoContext(ctx, "job completed", "status", u.Job.Status)
	}
}

func (t *Tracker) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return false
	case <-timer.C:
		return true
	}
}
