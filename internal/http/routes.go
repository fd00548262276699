// Package httpx provides the HTTP surface: the notification webhook, the delivery
// log and the job-watch API.
package httpx

import (
	"net/http"

	"github.com/target/specops-api/internal/core"
)

// RouterServices holds the services needed by the HTTP router. Nil services leave
// their routes unregistered.
type RouterServices struct {
	Events     EnvelopeRouter
	Deliveries core.DeliveryRepository
	Watches    WatchService
	// WebhookToken, when set, guards the webhook with a bearer token.
	WebhookToken string
	MaxBodyBytes int64
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	if services.Events != nil {
		registerWebhookRoutes(mux, &WebhookHandlers{Router: services.Events}, services.WebhookToken)
	}
	if services.Deliveries != nil {
		mux.HandleFunc("GET /api/deliveries", (&DeliveryHandlers{Repo: services.Deliveries}).List)
	}
	if services.Watches != nil {
		registerWatchRoutes(mux, &WatchHandlers{Svc: services.Watches})
	}
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return MaxBody(services.MaxBodyBytes)(mux)
}

func registerWebhookRoutes(mux *http.ServeMux, h *WebhookHandlers, token string) {
	mux.Handle("POST /webhooks/notifications", RequireBearerToken(token)(http.HandlerFunc(h.Notify)))
}

func registerWatchRoutes(mux *http.ServeMux, h *WatchHandlers) {
	mux.HandleFunc("POST /api/watches", h.Create)
	mux.HandleFunc("GET /api/watches", h.List)
	mux.HandleFunc("GET /api/watches/{type}/{id}", h.Get)
	mux.HandleFunc("DELETE /api/watches/{type}/{id}", h.Delete)
}
