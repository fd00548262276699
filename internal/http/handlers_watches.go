package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/tracker"
)

// WatchService is the job-watch surface the handlers need.
type WatchService interface {
	Watch(ctx context.Context, req tracker.TrackRequest) (*model.JobSnapshot, error)
	List(ctx context.Context) []model.JobRef
	Get(ctx context.Context, ref model.JobRef) (*model.JobSnapshot, error)
	Unwatch(ctx context.Context, ref model.JobRef) error
}

// WatchHandlers serves the job-watch API.
type WatchHandlers struct {
	Svc WatchService
}

type watchRequest struct {
	JobType         model.JobType `json:"job_type"`
	JobID           int64         `json:"job_id"`
	IntervalSeconds float64       `json:"interval_seconds,omitempty"`
}

// Create handles POST /api/watches.
func (h *WatchHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	snap, err := h.Svc.Watch(r.Context(), tracker.TrackRequest{
		Ref:      model.JobRef{Type: req.JobType, ID: req.JobID},
		Interval: time.Duration(req.IntervalSeconds * float64(time.Second)),
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, snap)
}

// List handles GET /api/watches.
func (h *WatchHandlers) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"watches": h.Svc.List(r.Context())})
}

// Get handles GET /api/watches/{type}/{id}.
func (h *WatchHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ref, err := jobRefFromPath(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	snap, err := h.Svc.Get(r.Context(), ref)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

// Delete handles DELETE /api/watches/{type}/{id}.
func (h *WatchHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ref, err := jobRefFromPath(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if err := h.Svc.Unwatch(r.Context(), ref); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
