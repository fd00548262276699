package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestDeliveries_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDeliveryRepository(ctrl)

	et := model.EventHARProcessingFailed
	cid := int64(3)
	repo.EXPECT().List(gomock.Any(), model.DeliveryListOptions{
		EventType: &et, CorrelationID: &cid, Limit: 10, Offset: 5,
	}).Return([]*model.DeliveryRecord{{ID: "d-1", EventType: et, CorrelationID: 3, Status: model.DeliverySent}}, nil)

	h := NewRouter(RouterServices{Deliveries: repo})
	r := httptest.NewRequest(http.MethodGet,
		"/api/deliveries?event_type=har_processing_failed&correlation_id=3&limit=10&offset=5", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Deliveries []model.DeliveryRecord `json:"deliveries"`
		Limit      int                    `json:"limit"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Deliveries, 1)
	assert.Equal(t, "d-1", body.Deliveries[0].ID)
	assert.Equal(t, 10, body.Limit)
}

func TestDeliveries_BadFilters(t *testing.T) {
	h := NewRouter(RouterServices{Deliveries: mocks.NewMockDeliveryRepository(gomock.NewController(t))})

	for _, q := range []string{"event_type=nope", "correlation_id=abc"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/deliveries?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestDeliveries_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDeliveryRepository(ctrl)
	repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	w := httptest.NewRecorder()
	NewRouter(RouterServices{Deliveries: repo}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/deliveries", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
