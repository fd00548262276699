package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/specops-api/config"
	"github.com/target/specops-api/internal/data"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
	"github.com/target/specops-api/internal/mocks"
	"github.com/target/specops-api/internal/testutil"
	"github.com/target/specops-api/internal/tracker"
	"go.uber.org/mock/gomock"
)

func testContext(t *testing.T, cfg config.AppConfig) (*commandContext, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.DiscardHandler),
		Config: cfg,
		Out:    &out,
	}, &out
}

func testConfig(backend string) config.AppConfig {
	return config.AppConfig{
		Gateway: config.GatewayConfig{BaseURL: backend, RequestTimeoutSeconds: 5},
		Polling: config.PollingConfig{
			HARInterval:            5 * time.Millisecond,
			ValidationInterval:     5 * time.Millisecond,
			MockInterval:           5 * time.Millisecond,
			MaxConsecutiveFailures: 2,
			SnapshotTTL:            time.Hour,
		},
		Notifications: config.NotificationsConfig{
			Transport:         config.NotifyTransportLog,
			ReviewerRecipient: "reviewers@example.com",
			DefaultRecipient:  "team@example.com",
			DashboardURL:      "https://specops.example.com",
		},
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	out := buf.String()
	for name := range commands() {
		assert.Contains(t, out, "  "+name)
	}
	assert.Less(t, strings.Index(out, "deliveries"), strings.Index(out, "watch"))
}

func TestParseRefs(t *testing.T) {
	refs, err := parseRefs([]string{"validation_run/4", "har_processing/9", "validation_run/4"})
	require.NoError(t, err)
	assert.Equal(t, []model.JobRef{
		{Type: model.JobTypeValidationRun, ID: 4},
		{Type: model.JobTypeHARProcessing, ID: 9},
	}, refs)

	_, err = parseRefs(nil)
	require.Error(t, err)
	_, err = parseRefs([]string{"validation_run"})
	require.Error(t, err)
	_, err = parseRefs([]string{"rocket_launch/1"})
	require.Error(t, err)
}

func TestReadPayload(t *testing.T) {
	raw, err := readPayload(`{"a":1}`, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	raw, err = readPayload("-", strings.NewReader(`{"b":2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(raw))

	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"c":3}`), 0o600))
	raw, err = readPayload("@"+path, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":3}`, string(raw))

	_, err = readPayload("{nope", nil)
	require.Error(t, err)
	_, err = readPayload("@"+filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)
}

func TestEnvelopeOptions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	opts := envelopeOptions{EventType: " validation_failed ", CorrelationID: 8, Payload: "{}"}
	env, err := opts.envelope(nil, now)
	require.NoError(t, err)
	assert.Equal(t, model.EventValidationFailed, env.EventType)
	assert.Equal(t, int64(8), env.CorrelationID)
	assert.Equal(t, time.UTC, env.Timestamp.Location())

	_, err = (&envelopeOptions{Payload: "{}"}).envelope(nil, now)
	require.Error(t, err)
}

func TestFormatUpdate(t *testing.T) {
	ref := model.JobRef{Type: model.JobTypeHARProcessing, ID: 3}
	progress := 40
	msg := "bad capture"

	tests := []struct {
		name string
		u    tracker.Update
		want string
	}{
		{
			name: "progress",
			u: tracker.Update{Ref: ref, Job: &model.AsyncJob{
				Status: model.JobStatusRunning, Progress: &progress, CurrentStep: "extracting endpoints",
			}},
			want: "har_processing/3  running  40%  extracting endpoints",
		},
		{
			name: "failed",
			u: tracker.Update{Ref: ref, Final: true, Job: &model.AsyncJob{
				Status: model.JobStatusFailed, ErrorMessage: &msg,
			}},
			want: "har_processing/3  failed  error: bad capture",
		},
		{
			name: "completed with result",
			u: tracker.Update{Ref: ref, Final: true, Job: &model.AsyncJob{
				Status: model.JobStatusCompleted, Result: json.RawMessage(`{"endpoints":4}`),
			}},
			want: "har_processing/3  completed\n{\"endpoints\":4}",
		},
		{
			name: "tracking error",
			u:    tracker.Update{Ref: ref, Final: true, Err: apperrors.NotFoundf("job %s", ref)},
			want: "har_processing/3  error: job har_processing/3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUpdate(tt.u))
		})
	}
}

func TestJobOutcome(t *testing.T) {
	ref := model.JobRef{Type: model.JobTypeMockDeployment, ID: 2}
	require.NoError(t, jobOutcome(ref, tracker.Update{Job: &model.AsyncJob{Status: model.JobStatusCompleted}}))

	err := jobOutcome(ref, tracker.Update{Job: &model.AsyncJob{Status: model.JobStatusCancelled}})
	require.ErrorIs(t, err, errJobFailed)
	assert.Contains(t, err.Error(), "cancelled")

	err = jobOutcome(ref, tracker.Update{Err: errors.New("boom")})
	require.ErrorIs(t, err, errJobFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestListDeliveries(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDeliveryRepository(ctrl)

	opts, err := deliveriesOptions{EventType: "har_review_requested", CorrelationID: 5, Limit: 10}.listOptions()
	require.NoError(t, err)
	recs := []*model.DeliveryRecord{
		testutil.NewDelivery(model.EventHARReviewRequested, 5).WithRole(model.RoleReviewer, "reviewers@example.com").Build(),
		testutil.NewDelivery(model.EventHARReviewRequested, 5).Failed("smtp timeout").Build(),
	}
	repo.EXPECT().List(gomock.Any(), opts).Return(recs, nil).Times(2)

	var buf bytes.Buffer
	require.NoError(t, listDeliveries(context.Background(), &buf, repo, opts, false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "CREATED"))
	assert.Contains(t, lines[1], "reviewer")
	assert.Contains(t, lines[2], "smtp timeout")

	buf.Reset()
	require.NoError(t, listDeliveries(context.Background(), &buf, repo, opts, true))
	var decoded []model.DeliveryRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
}

func TestDeliveriesOptions_Invalid(t *testing.T) {
	_, err := deliveriesOptions{EventType: "launched"}.listOptions()
	require.Error(t, err)
}

func TestPrintDeliveries_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printDeliveries(&buf, nil))
	assert.Equal(t, "no deliveries found\n", buf.String())
}

func TestRunDeliveries_StorageDisabled(t *testing.T) {
	cc, _ := testContext(t, testConfig("http://backend.invalid"))
	err := runDeliveries(cc, nil)
	require.ErrorIs(t, err, data.ErrStorageDisabled)
}

func TestRunEmit(t *testing.T) {
	var got model.Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"success","message":"notification sent","event_type":"validation_failed"}`))
	}))
	defer srv.Close()

	cc, out := testContext(t, testConfig("http://backend.invalid"))
	err := runEmit(cc, []string{
		"--url", srv.URL,
		"--event-type", "validation_failed",
		"--correlation-id", "12",
		"--payload", `{"specification_id":3,"validation_run_id":12,"error_message":"x"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, model.EventValidationFailed, got.EventType)
	assert.Equal(t, int64(12), got.CorrelationID)

	var ack model.Ack
	require.NoError(t, json.Unmarshal(out.Bytes(), &ack))
	assert.Equal(t, model.AckSuccess, ack.Status)
}

func TestRunRoute_DryRun(t *testing.T) {
	cfg := testConfig("http://backend.invalid")
	cfg.Notifications.Transport = config.NotifyTransportSMTP
	cc, out := testContext(t, cfg)

	err := runRoute(cc, []string{
		"--dry-run",
		"--event-type", "created",
		"--correlation-id", "9",
		"--payload", `{"specification_id":9,"name":"orders","version":"1.0.0","user_email":"dev@example.com"}`,
	})
	require.NoError(t, err)

	var ack model.Ack
	require.NoError(t, json.Unmarshal(out.Bytes(), &ack))
	assert.Equal(t, model.AckSuccess, ack.Status)
	assert.Equal(t, model.EventCreated, ack.EventType)
}

func TestRunRoute_Unroutable(t *testing.T) {
	cc, _ := testContext(t, testConfig("http://backend.invalid"))
	err := runRoute(cc, []string{"--dry-run", "--event-type", "launched"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnroutableEvent(err))
}

func TestRunValidate_Wait(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/validation-runs":
			_, _ = w.Write([]byte(`{"id":5,"status":"pending"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/validation-runs/5":
			if polls.Add(1) < 2 {
				_, _ = w.Write([]byte(`{"id":5,"status":"running"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":5,"status":"completed","result":{"passed":3,"failed":0}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cc, out := testContext(t, testConfig(srv.URL))
	require.NoError(t, runValidate(cc, []string{"--spec-id", "1", "--wait"}))

	s := out.String()
	assert.Contains(t, s, "started validation_run/5 (pending)")
	assert.Contains(t, s, "validation_run/5  running")
	assert.Contains(t, s, "validation_run/5  completed")
	assert.Contains(t, s, `"passed":3`)
}

func TestRunWatch_FailedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":6,"status":"failed","error_message":"deployment quota exceeded"}`))
	}))
	defer srv.Close()

	cc, out := testContext(t, testConfig(srv.URL))
	err := runWatch(cc, []string{"mock_deployment/6"})
	require.ErrorIs(t, err, errJobFailed)
	assert.Contains(t, err.Error(), "deployment quota exceeded")
	assert.Contains(t, out.String(), "mock_deployment/6  failed")
}

func TestRunValidate_RequiresSpecID(t *testing.T) {
	cc, _ := testContext(t, testConfig("http://backend.invalid"))
	require.Error(t, runValidate(cc, nil))
	require.Error(t, runProcessHAR(cc, nil))
	require.Error(t, runDeployMock(cc, nil))
}
