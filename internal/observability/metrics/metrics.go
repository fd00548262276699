// Package metrics turns gateway, tracker and notification events into StatsD samples.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/target/specops-api/internal/errors"
	obserrors "github.com/target/specops-api/internal/observability/errors"
	"github.com/target/specops-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

func withErrorClass(tags map[string]string, err error) map[string]string {
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	return tags
}

// GatewayMetric captures one completed gateway Send.
type GatewayMetric struct {
	Gateway  string
	Method   string
	Attempts int
	Duration time.Duration
	Err      error
}

// EmitGatewayRequest emits gateway.request and gateway.request.duration.
func EmitGatewayRequest(sink statsd.Sink, in GatewayMetric) {
	if sink == nil {
		return
	}
	method := in.Method
	if method == "" {
		method = http.MethodGet
	}
	tags := withErrorClass(map[string]string{
		"gateway": in.Gateway,
		"method":  method,
		"result":  resultOf(in.Err),
	}, in.Err)
	var appErr *apperrors.AppError
	if errors.As(in.Err, &appErr) && appErr.StatusCode > 0 {
		tags["status_class"] = strconv.Itoa(appErr.StatusCode/100) + "xx"
	}

	sink.Count("gateway.request", 1, tags)
	if in.Attempts > 1 {
		sink.Count("gateway.retry", int64(in.Attempts-1), CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing("gateway.request.duration", in.Duration, CloneTags(tags))
	}
}

// TrackerMetric captures one reconciliation-loop observation or stop.
type TrackerMetric struct {
	JobType string
	Status  string
	Reason  string
	Err     error
}

// EmitTrackerObservation emits tracker.observation for an emitted status.
func EmitTrackerObservation(sink statsd.Sink, in TrackerMetric) {
	if sink == nil {
		return
	}
	sink.Count("tracker.observation", 1, map[string]string{
		"job_type": in.JobType,
		"status":   in.Status,
	})
}

// EmitTrackerPollFailure emits tracker.poll_failure for a missed tick.
func EmitTrackerPollFailure(sink statsd.Sink, in TrackerMetric) {
	if sink == nil {
		return
	}
	sink.Count("tracker.poll_failure", 1, withErrorClass(map[string]string{
		"job_type": in.JobType,
	}, in.Err))
}

// EmitTrackerStopped emits tracker.stopped with the reason tracking ended.
func EmitTrackerStopped(sink statsd.Sink, in TrackerMetric) {
	if sink == nil {
		return
	}
	sink.Count("tracker.stopped", 1, withErrorClass(map[string]string{
		"job_type": in.JobType,
		"reason":   in.Reason,
	}, in.Err))
}

// EmitTrackedGauge reports how many jobs are currently tracked.
func EmitTrackedGauge(sink statsd.Sink, n int) {
	if sink == nil {
		return
	}
	sink.Gauge("tracker.tracked", float64(n), nil)
}

// NotifyMetric captures one message delivery attempt.
type NotifyMetric struct {
	EventType string
	Role      string
	Transport string
	Duration  time.Duration
	Err       error
}

// EmitNotifyMessage emits notify.message and notify.message.duration.
func EmitNotifyMessage(sink statsd.Sink, in NotifyMetric) {
	if sink == nil {
		return
	}
	tags := withErrorClass(map[string]string{
		"event_type": in.EventType,
		"role":       in.Role,
		"transport":  in.Transport,
		"result":     resultOf(in.Err),
	}, in.Err)
	sink.Count("notify.message", 1, tags)
	if in.Duration > 0 {
		sink.Timing("notify.message.duration", in.Duration, CloneTags(tags))
	}
}

// EmitRoute emits events.route for one routed (or rejected) envelope.
func EmitRoute(sink statsd.Sink, eventType string, err error) {
	if sink == nil {
		return
	}
	sink.Count("events.route", 1, withErrorClass(map[string]string{
		"event_type": eventType,
		"result":     resultOf(err),
	}, err))
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
