package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
	"github.com/target/specops-api/internal/tracker"
)

const defaultSnapshotTTL = 24 * time.Hour

// WatchServiceOptions groups dependencies for WatchService.
type WatchServiceOptions struct {
	Tracker   *tracker.Tracker
	Snapshots core.SnapshotRepository
	// SnapshotTTL bounds how long the last observation of a job is kept.
	SnapshotTTL time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// WatchService tracks jobs on behalf of API and CLI callers and keeps the latest
// observation of each one in the snapshot store.
type WatchService struct {
	tracker   *tracker.Tracker
	snapshots core.SnapshotRepository
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewWatchService constructs a WatchService.
func NewWatchService(opts WatchServiceOptions) (*WatchService, error) {
	if opts.Tracker == nil {
		return nil, errors.New("watch service requires a tracker")
	}
	if opts.Snapshots == nil {
		return nil, errors.New("watch service requires a snapshot repository")
	}
	ttl := opts.SnapshotTTL
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &WatchService{
		tracker:   opts.Tracker,
		snapshots: opts.Snapshots,
		ttl:       ttl,
		logger:    logger.With("component", "watch_service"),
		now:       now,
	}, nil
}

// Watch starts tracking req.Ref and returns the initial snapshot.
// Tracking continues after ctx ends; use Unwatch to stop it.
func (s *WatchService) Watch(ctx context.Context, req tracker.TrackRequest) (*model.JobSnapshot, error) {
	return s.watch(ctx, req, nil)
}

func (s *WatchService) watch(ctx context.Context, req tracker.TrackRequest, extra tracker.Observer) (*model.JobSnapshot, error) {
	if err := req.Ref.Validate(); err != nil {
		return nil, apperrors.ValidationField("job", err.Error())
	}
	obs := &snapshotObserver{svc: s, snap: model.JobSnapshot{
		Job:        model.AsyncJob{ID: req.Ref.ID, Type: req.Ref.Type},
		ObservedAt: s.now().UTC(),
	}}
	if err := s.tracker.Track(ctx, req, tracker.MultiObserver{obs, extra}); err != nil {
		if errors.Is(err, tracker.ErrAlreadyTracked) {
			return nil, &apperrors.AppError{
				Code:    apperrors.ErrCodeConflict,
				Message: fmt.Sprintf("%s is already being watched", req.Ref),
				Cause:   err,
			}
		}
		return nil, err
	}

	initial, err := obs.seed(ctx)
	if err != nil {
		s.tracker.Stop(req.Ref)
		return nil, fmt.Errorf("store initial snapshot: %w", err)
	}

	s.logger.InfoContext(ctx, "watch started", "job", req.Ref.String())
	return initial, nil
}

// Await tracks req.Ref until its final update and returns that update. onUpdate,
// when set, sees every update on the polling goroutine. If ctx ends first the job
// is stopped and ctx's error returned.
func (s *WatchService) Await(ctx context.Context, req tracker.TrackRequest, onUpdate func(tracker.Update)) (tracker.Update, error) {
	done := make(chan tracker.Update, 1)
	obs := tracker.ObserverFunc(func(_ context.Context, u tracker.Update) {
		if onUpdate != nil {
			onUpdate(u)
		}
		if u.Final {
			done <- u
		}
	})
	if _, err := s.watch(ctx, req, obs); err != nil {
		return tracker.Update{}, err
	}

	select {
	case u := <-done:
		return u, nil
	case <-ctx.Done():
		s.tracker.Stop(req.Ref)
		return tracker.Update{}, ctx.Err()
	}
}

// List returns the refs currently being tracked.
func (s *WatchService) List(_ context.Context) []model.JobRef {
	return s.tracker.Tracked()
}

// Get returns the latest snapshot for ref.
func (s *WatchService) Get(ctx context.Context, ref model.JobRef) (*model.JobSnapshot, error) {
	if err := ref.Validate(); err != nil {
		return nil, apperrors.ValidationField("job", err.Error())
	}
	return s.snapshots.Get(ctx, ref)
}

// Unwatch stops tracking ref and forgets its snapshot. It returns NotFound when
// the job was neither tracked nor remembered.
func (s *WatchService) Unwatch(ctx context.Context, ref model.JobRef) error {
	if err := ref.Validate(); err != nil {
		return apperrors.ValidationField("job", err.Error())
	}
	stopped := s.tracker.Stop(ref)

	_, getErr := s.snapshots.Get(ctx, ref)
	known := getErr == nil
	if getErr != nil && !apperrors.IsNotFound(getErr) {
		return getErr
	}
	if !stopped && !known {
		return apperrors.NotFoundf("%s is not being watched", ref)
	}
	if err := s.snapshots.Delete(ctx, ref); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	s.logger.InfoContext(ctx, "watch removed", "job", ref.String(), "was_tracked", stopped)
	return nil
}

// StopAll ends every tracking session and waits for the polling goroutines.
func (s *WatchService) StopAll(ctx context.Context) error {
	s.tracker.StopAll()
	return s.tracker.Wait(ctx)
}

// snapshotObserver folds updates into a running snapshot. seed runs on the
// caller's goroutine while updates arrive on the polling goroutine, so both go
// through mu.
type snapshotObserver struct {
	svc    *WatchService
	mu     sync.Mutex
	snap   model.JobSnapshot
	stored bool
}

// seed stores the empty snapshot unless an update already stored a newer one,
// and returns what is stored.
func (o *snapshotObserver) seed(ctx context.Context) (*model.JobSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := o.snap
	if o.stored {
		return &snap, nil
	}
	if err := o.svc.snapshots.Put(ctx, &snap, o.svc.ttl); err != nil {
		return nil, err
	}
	o.stored = true
	return &snap, nil
}

func (o *snapshotObserver) Observe(ctx context.Context, u tracker.Update) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snap.ObservedAt = o.svc.now().UTC()
	if u.Job != nil {
		o.snap.Job = *u.Job
		o.snap.Observations++
	}
	if u.Err != nil {
		o.snap.TrackingError = apperrors.DetailOf(u.Err).Detail
	}
	o.snap.Done = u.Final

	snap := o.snap
	if err := o.svc.snapshots.Put(ctx, &snap, o.svc.ttl); err != nil {
		o.svc.logger.WarnContext(ctx, "store snapshot failed", "job", u.Ref.String(), "error", err)
		return
	}
	o.stored = true
}
