package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
	"github.com/target/specops-api/internal/events"
	"github.com/target/specops-api/internal/mocks"
	"github.com/target/specops-api/internal/observability/statsd"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func decode(t *testing.T, eventType model.EventType, payload string) events.Event {
	t.Helper()
	ev, err := events.Decode(model.Envelope{
		EventType:     eventType,
		CorrelationID: 3,
		Timestamp:     fixedNow,
		Payload:       json.RawMessage(payload),
	})
	require.NoError(t, err)
	return ev
}

func newDispatcher(t *testing.T, transport *mocks.MockTransport, opts Options) *Dispatcher {
	t.Helper()
	transport.EXPECT().Name().Return("mock").AnyTimes()
	opts.Transport = transport
	opts.Now = func() time.Time { return fixedNow }
	if opts.DefaultRecipient == "" {
		opts.DefaultRecipient = "team@example.com"
	}
	if opts.ReviewerRecipient == "" {
		opts.ReviewerRecipient = "reviewer@example.com"
	}
	d, err := New(opts)
	require.NoError(t, err)
	return d
}

const harCompleted = `{
	"upload_id": 3,
	"file_name": "checkout.har",
	"user_email": "dev@example.com",
	"user_name": "Dana",
	"statistics": {"total_requests": 120, "unique_endpoints": 14},
	"artifacts_summary": {
		"specifications": [{"name": "checkout-api"}],
		"mocks": [{"name": "checkout-mock", "url": "https://mocks/checkout"}]
	}
}`

func TestNew_RequiresTransport(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestDispatch_HARProcessingCompleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	d := newDispatcher(t, transport, Options{DashboardURL: "https://specops.example.com/"})

	var sent model.Message
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg model.Message) (string, error) {
			sent = msg
			return "msg-1", nil
		})

	ack, err := d.Dispatch(context.Background(), decode(t, model.EventHARProcessingCompleted, harCompleted))
	require.NoError(t, err)

	assert.Equal(t, "dev@example.com", sent.Recipient)
	assert.Equal(t, model.RolePrimary, sent.Role)
	assert.Equal(t, "HAR upload #3 processed: 2 artifact(s) generated", sent.Subject)
	assert.Contains(t, sent.Body, "Hello Dana")
	assert.Contains(t, sent.Body, "Requests analysed:  120")
	assert.Contains(t, sent.Body, "Mock: checkout-mock (https://mocks/checkout)")
	assert.Contains(t, sent.Body, "https://specops.example.com/har/uploads/3")

	assert.Equal(t, model.AckSuccess, ack.Status)
	assert.Equal(t, model.EventHARProcessingCompleted, ack.EventType)
	assert.Equal(t, int64(3), *ack.UploadID)
	assert.Equal(t, 2, *ack.ArtifactsCount)
	assert.Equal(t, fixedNow, ack.Timestamp)
	require.Len(t, ack.Messages, 1)
	assert.True(t, ack.Messages[0].Sent)
	assert.Equal(t, "msg-1", ack.Messages[0].ProviderMessageID)
}

func TestDispatch_CompletedWithErrorUsesFailureVariant(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	d := newDispatcher(t, transport, Options{})

	var sent model.Message
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg model.Message) (string, error) {
			sent = msg
			return "", nil
		})

	payload := `{"upload_id":3,"error_message":"timeout parsing entries","statistics":{"total_requests":40},"artifacts_summary":{}}`
	_, err := d.Dispatch(context.Background(), decode(t, model.EventHARProcessingCompleted, payload))
	require.NoError(t, err)

	assert.Equal(t, "HAR upload #3 processing failed", sent.Subject)
	assert.Contains(t, sent.Body, "Error: timeout parsing entries")
	assert.Contains(t, sent.Body, "Partial statistics")
	assert.Contains(t, sent.Body, "What to try next")
	assert.Equal(t, "team@example.com", sent.Recipient)
}

func TestDispatch_ValidationVariants(t *testing.T) {
	tests := []struct {
		name        string
		eventType   model.EventType
		payload     string
		subject     string
		bodySnippet string
	}{
		{
			name:        "completed",
			eventType:   model.EventValidationCompleted,
			payload:     `{"validation_run_id":8,"specification_id":2,"status":"completed","specification_name":"Pets","validation_statistics":{"total_tests":10,"passed_tests":9,"failed_tests":1,"success_rate":0.9}}`,
			subject:     "Validation run #8 completed: Pets",
			bodySnippet: "Success rate:  90.0%",
		},
		{
			name:        "completed with error",
			eventType:   model.EventValidationCompleted,
			payload:     `{"validation_run_id":8,"specification_id":2,"status":"failed","error_message":"target unreachable","validation_statistics":{}}`,
			subject:     "Validation run #8 failed",
			bodySnippet: "Error: target unreachable",
		},
		{
			name:        "failed",
			eventType:   model.EventValidationFailed,
			payload:     `{"validation_run_id":8,"specification_id":2,"error_message":"spec did not parse"}`,
			subject:     "Validation run #8 failed",
			bodySnippet: "Start a new validation run",
		},
		{
			name:        "created",
			eventType:   model.EventCreated,
			payload:     `{"specification_id":2,"name":"Pets","version":"1.0.0"}`,
			subject:     "Specification created: Pets v1.0.0",
			bodySnippet: "was created",
		},
		{
			name:        "updated",
			eventType:   model.EventUpdated,
			payload:     `{"specification_id":2,"name":"Pets","version":"1.1.0"}`,
			subject:     "Specification updated: Pets v1.1.0",
			bodySnippet: "was updated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			transport := mocks.NewMockTransport(ctrl)
			d := newDispatcher(t, transport, Options{})

			var sent model.Message
			transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, msg model.Message) (string, error) {
					sent = msg
					return "", nil
				})

			ack, err := d.Dispatch(context.Background(), decode(t, tt.eventType, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.subject, sent.Subject)
			assert.Contains(t, sent.Body, tt.bodySnippet)
			assert.NotNil(t, ack.SpecificationID)
		})
	}
}

const reviewPayload = `{
	"upload_id": 3,
	"review_url": "https://specops.example.com/review/3",
	"user_email": "dev@example.com",
	"artifacts_summary": {"mocks": [{"name": "m1"}], "tests": [{"name": "t1"}, {"name": "t2"}]}
}`

func TestDispatch_ReviewRequestFansOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	d := newDispatcher(t, transport, Options{})

	got := make(chan model.Message, 2)
	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg model.Message) (string, error) {
			got <- msg
			return "id-" + string(msg.Role), nil
		}).Times(2)

	ack, err := d.Dispatch(context.Background(), decode(t, model.EventHARReviewRequested, reviewPayload))
	require.NoError(t, err)
	close(got)

	byRole := map[model.MessageRole]model.Message{}
	for m := range got {
		byRole[m.Role] = m
	}
	reviewer := byRole[model.RoleReviewer]
	submitter := byRole[model.RoleSubmitter]

	assert.Equal(t, "reviewer@example.com", reviewer.Recipient)
	assert.Contains(t, reviewer.Body, "Review checklist")
	assert.Contains(t, reviewer.Body, "[ ] Endpoints and methods match the captured traffic")
	assert.Contains(t, reviewer.Subject, "3 artifacts")

	assert.Equal(t, "dev@example.com", submitter.Recipient)
	assert.NotContains(t, submitter.Body, "Review checklist")
	assert.Contains(t, submitter.Body, "https://specops.example.com/review/3")

	assert.Equal(t, model.AckSuccess, ack.Status)
	assert.Equal(t, "https://specops.example.com/review/3", ack.ReviewURL)
	assert.Equal(t, 3, *ack.ArtifactsCount)
	require.Len(t, ack.Messages, 2)
	assert.Equal(t, model.RoleReviewer, ack.Messages[0].Role)
	assert.Equal(t, model.RoleSubmitter, ack.Messages[1].Role)
	assert.Equal(t, 2, ack.SentCount())
}

func TestDispatch_ReviewRequestPartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	rec := &statsd.Recorder{}
	d := newDispatcher(t, transport, Options{Metrics: rec})

	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg model.Message) (string, error) {
			if msg.Role == model.RoleReviewer {
				return "", errors.New("mailbox unavailable")
			}
			return "ok", nil
		}).Times(2)

	ack, err := d.Dispatch(context.Background(), decode(t, model.EventHARReviewRequested, reviewPayload))
	require.Error(t, err)
	assert.True(t, apperrors.IsDispatch(err))
	assert.Contains(t, err.Error(), "reviewer@example.com")
	assert.NotContains(t, err.Error(), "dev@example.com")

	assert.Equal(t, model.AckError, ack.Status)
	assert.Equal(t, "1 of 2 notifications failed: reviewer@example.com", ack.Message)
	assert.False(t, ack.Messages[0].Sent)
	assert.Equal(t, "mailbox unavailable", ack.Messages[0].Error)
	assert.True(t, ack.Messages[1].Sent)
	assert.Len(t, rec.Samples("notify.message"), 2)
}

func TestDispatch_NoRecipient(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().Name().Return("mock").AnyTimes()
	d, err := New(Options{Transport: transport})
	require.NoError(t, err)

	ack, err := d.Dispatch(context.Background(), decode(t, model.EventHARProcessingFailed, `{"upload_id":1,"error_message":"x"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Equal(t, model.AckError, ack.Status)
	assert.Equal(t, "1 of 1 notifications failed: primary recipient", ack.Message)
}

func TestDispatch_RecordsDeliveries(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	repo := mocks.NewMockDeliveryRepository(ctrl)
	d := newDispatcher(t, transport, Options{Recorder: repo})

	transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg model.Message) (string, error) {
			if msg.Role == model.RoleSubmitter {
				return "", errors.New("rejected")
			}
			return "prov-1", nil
		}).Times(2)

	records := make(chan *model.DeliveryRecord, 2)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec *model.DeliveryRecord) error {
			records <- rec
			return errors.New("database unavailable")
		}).Times(2)

	ack, err := d.Dispatch(context.Background(), decode(t, model.EventHARReviewRequested, reviewPayload))
	require.Error(t, err)
	assert.Equal(t, 1, ack.SentCount())
	close(records)

	byRole := map[model.MessageRole]*model.DeliveryRecord{}
	for r := range records {
		byRole[r.Role] = r
	}
	reviewer := byRole[model.RoleReviewer]
	require.NotNil(t, reviewer)
	assert.Equal(t, model.DeliverySent, reviewer.Status)
	assert.Equal(t, "prov-1", *reviewer.ProviderMessageID)
	assert.Equal(t, "mock", reviewer.Transport)
	assert.Equal(t, int64(3), reviewer.CorrelationID)
	assert.NotEmpty(t, reviewer.ID)

	submitter := byRole[model.RoleSubmitter]
	require.NotNil(t, submitter)
	assert.Equal(t, model.DeliveryFailed, submitter.Status)
	assert.Equal(t, "rejected", *submitter.Error)
	assert.Nil(t, submitter.ProviderMessageID)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "93.0%", percent(0.93))
	assert.Equal(t, "100.0%", percent(1))
	assert.Equal(t, "1.0%", percent(0.01))
	assert.Equal(t, "0.0%", percent(0))
}
