package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/specops-api/internal/data/database"
	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/testutil"
)

func TestDeliveryListQuery(t *testing.T) {
	et := model.EventValidationFailed
	cid := int64(7)

	tests := []struct {
		name     string
		opts     model.DeliveryListOptions
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "defaults",
			opts:     model.DeliveryListOptions{},
			wantSQL:  `ORDER BY "created_at" DESC LIMIT $1 OFFSET $2`,
			wantArgs: []any{defaultDeliveryPage, 0},
		},
		{
			name:     "filters",
			opts:     model.DeliveryListOptions{EventType: &et, CorrelationID: &cid, Limit: 10, Offset: 20},
			wantSQL:  `WHERE "event_type" = $1 AND "correlation_id" = $2 ORDER BY "created_at" DESC LIMIT $3 OFFSET $4`,
			wantArgs: []any{"validation_failed", int64(7), 10, 20},
		},
		{
			name:     "caps page size",
			opts:     model.DeliveryListOptions{Limit: 10_000, Offset: -5},
			wantSQL:  `LIMIT $1 OFFSET $2`,
			wantArgs: []any{maxDeliveryPage, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := database.BuildListQuery(deliveryListQuery(tt.opts))
			assert.Contains(t, q, `FROM "notification_deliveries"`)
			assert.Contains(t, q, tt.wantSQL)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestDeliveryRepo_CreateAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupTestDB(t)
	repo := NewDeliveryRepo(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := testutil.NewDelivery(model.EventHARReviewRequested, 3).
		WithRole(model.RoleReviewer, "reviewer@example.com").At(base).Build()
	second := testutil.NewDelivery(model.EventHARReviewRequested, 3).
		Failed("smtp: 550 mailbox unavailable").At(base.Add(time.Second)).Build()
	other := testutil.NewDelivery(model.EventValidationCompleted, 8).At(base.Add(2 * time.Second)).Build()

	for _, rec := range []*model.DeliveryRecord{first, second, other} {
		require.NoError(t, repo.Create(ctx, rec))
		assert.NotEmpty(t, rec.ID)
	}

	et := model.EventHARReviewRequested
	got, err := repo.List(ctx, model.DeliveryListOptions{EventType: &et})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "newest first")
	assert.Equal(t, model.DeliveryFailed, got[0].Status)
	require.NotNil(t, got[0].Error)
	assert.Equal(t, "smtp: 550 mailbox unavailable", *got[0].Error)
	assert.Equal(t, model.RoleReviewer, got[1].Role)

	cid := int64(8)
	got, err = repo.List(ctx, model.DeliveryListOptions{CorrelationID: &cid})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.EventValidationCompleted, got[0].EventType)

	none := int64(999)
	got, err = repo.List(ctx, model.DeliveryListOptions{CorrelationID: &none})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestDeliveryRepo_CreateNil(t *testing.T) {
	assert.Error(t, NewDeliveryRepo(nil).Create(context.Background(), nil))
}
