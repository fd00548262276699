package httpx

import (
	"net/http"
	"strconv"

	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
)

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 500
)

// DeliveryHandlers serves the notification delivery log.
type DeliveryHandlers struct {
	Repo core.DeliveryRepository
}

// List handles GET /api/deliveries?event_type=&correlation_id=&limit=&offset=.
func (h *DeliveryHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts, err := deliveryListOptions(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	recs, err := h.Repo.List(r.Context(), opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"deliveries": recs,
		"limit":      opts.Limit,
		"offset":     opts.Offset,
	})
}

func deliveryListOptions(r *http.Request) (model.DeliveryListOptions, error) {
	var opts model.DeliveryListOptions
	opts.Limit, opts.Offset = ParseLimitOffset(r, defaultDeliveryLimit, maxDeliveryLimit)

	q := r.URL.Query()
	if v := q.Get("event_type"); v != "" {
		et := model.EventType(v)
		if !et.Valid() {
			return opts, apperrors.ValidationField("event_type", "unknown event_type "+strconv.Quote(v))
		}
		opts.EventType = &et
	}
	if v := q.Get("correlation_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return opts, apperrors.ValidationField("correlation_id", "correlation_id must be an integer")
		}
		opts.CorrelationID = &id
	}
	return opts, nil
}
