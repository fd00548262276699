package logtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/specops-api/internal/domain/model"
)

func TestSend_LogsMessage(t *testing.T) {
	var buf bytes.Buffer
	tr := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	id, err := tr.Send(context.Background(), model.Message{
		Role:      model.RoleReviewer,
		Recipient: "reviewer@example.com",
		Subject:   "Review requested",
		Body:      "checklist",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "log", tr.Name())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notification", entry["msg"])
	assert.Equal(t, id, entry["message_id"])
	assert.Equal(t, "reviewer", entry["role"])
	assert.Equal(t, "reviewer@example.com", entry["recipient"])
	assert.Equal(t, "log_transport", entry["component"])
}
