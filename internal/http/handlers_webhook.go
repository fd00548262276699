package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
)

// EnvelopeRouter routes one lifecycle envelope to its notifications.
type EnvelopeRouter interface {
	Route(ctx context.Context, env model.Envelope) (*model.Ack, error)
}

// WebhookHandlers serves the notification webhook.
type WebhookHandlers struct {
	Router EnvelopeRouter
	Now    func() time.Time
}

// Notify handles POST /webhooks/notifications. Every answer is an Ack.
//
// Rejected envelopes get an error Ack with 400, or 413 for an oversized body. A
// dispatch failure gets 502 with the router's Ack, so the producer can see which
// messages were delivered before it retries.
func (h *WebhookHandlers) Notify(w http.ResponseWriter, r *http.Request) {
	var env model.Envelope
	if status, err := decodeBody(r, &env, false); err != nil {
		h.reject(w, status, env, "invalid_json", err)
		return
	}
	if env.EventType == "" {
		h.rejectAppError(w, env, apperrors.ValidationField("event_type", "event_type is required"))
		return
	}

	ack, err := h.Router.Route(r.Context(), env)
	if err != nil {
		if ack != nil {
			WriteJSON(w, http.StatusBadGateway, ack)
			return
		}
		h.rejectAppError(w, env, err)
		return
	}
	WriteJSON(w, http.StatusOK, ack)
}

func (h *WebhookHandlers) rejectAppError(w http.ResponseWriter, env model.Envelope, err error) {
	code := apperrors.GetCode(err)
	if code == "" {
		code = apperrors.ErrCodeInternal
	}
	h.reject(w, code.HTTPStatus(), env, string(code), err)
}

// reject answers with an error Ack echoing whatever correlation fields env carries.
func (h *WebhookHandlers) reject(w http.ResponseWriter, status int, env model.Envelope, code string, err error) {
	ack := model.Ack{
		Status:        model.AckError,
		Message:       apperrors.DetailOf(err).Detail,
		Error:         code,
		EventType:     env.EventType,
		CorrelationID: env.CorrelationID,
		Timestamp:     h.now().UTC(),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		ack.Fields = appErr.Fields
	}
	WriteJSON(w, status, ack)
}

func (h *WebhookHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
