package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType_Valid(t *testing.T) {
	for _, jt := range JobTypes() {
		assert.True(t, jt.Valid(), string(jt))
	}
	assert.False(t, JobType("unknown").Valid())
}

func TestJobType_UnmarshalText(t *testing.T) {
	var jt JobType
	require.NoError(t, jt.UnmarshalText([]byte(" HAR_Processing ")))
	assert.Equal(t, JobTypeHARProcessing, jt)

	err := jt.UnmarshalText([]byte("browser"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JobType")
}

func TestJobStatus_Rank(t *testing.T) {
	tests := []struct {
		status   JobStatus
		rank     int
		terminal bool
		failed   bool
	}{
		{JobStatusPending, 0, false, false},
		{JobStatusRunning, 1, false, false},
		{JobStatusCompleted, 2, true, false},
		{JobStatusFailed, 2, true, true},
		{JobStatusCancelled, 2, true, true},
		{JobStatus("queued"), -1, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.rank, tt.status.Rank())
			assert.Equal(t, tt.terminal, tt.status.Terminal())
			assert.Equal(t, tt.failed, tt.status.Failed())
		})
	}
}

func TestParseJobRef(t *testing.T) {
	ref, err := ParseJobRef("validation_run/42")
	require.NoError(t, err)
	assert.Equal(t, JobRef{Type: JobTypeValidationRun, ID: 42}, ref)
	assert.Equal(t, "validation_run/42", ref.String())

	for _, bad := range []string{"validation_run", "nope/1", "har_processing/abc", "mock_deployment/0"} {
		_, err := ParseJobRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestAsyncJob_JSON(t *testing.T) {
	raw := `{"job_id":7,"job_type":"har_processing","status":"running","created_at":"2025-01-02T03:04:05Z","progress":40,"current_step":"extracting"}`

	var job AsyncJob
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, JobRef{Type: JobTypeHARProcessing, ID: 7}, job.Ref())
	require.NotNil(t, job.Progress)
	assert.Equal(t, 40, *job.Progress)
	assert.Nil(t, job.ErrorMessage)
	assert.Empty(t, job.Result)
}

func TestEventType_Valid(t *testing.T) {
	assert.Len(t, EventTypes(), 7)
	for _, et := range EventTypes() {
		assert.True(t, et.Valid())
	}
	assert.False(t, EventType("unknown_type").Valid())
}

func TestAck_SentCount(t *testing.T) {
	ack := Ack{Messages: []MessageResult{{Sent: true}, {Sent: false}, {Sent: true}}}
	assert.Equal(t, 2, ack.SentCount())
}
