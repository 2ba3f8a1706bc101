package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nlieb/chatmux/models"
	"github.com/nlieb/chatmux/repositories"
)

// MockRecordRepository is a mock implementation of RequestRecordRepository
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Insert(ctx context.Context, rec *models.RequestRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RequestRecord), args.Error(1)
}

func (m *MockRecordRepository) List(ctx context.Context, limit, offset int) ([]*models.RequestRecord, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RequestRecord), args.Error(1)
}

func (m *MockRecordRepository) GetByStatus(ctx context.Context, status models.RecordStatus, limit, offset int) ([]*models.RequestRecord, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RequestRecord), args.Error(1)
}

func (m *MockRecordRepository) GetByProvider(ctx context.Context, provider string, limit, offset int) ([]*models.RequestRecord, error) {
	args := m.Called(ctx, provider, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RequestRecord), args.Error(1)
}

func (m *MockRecordRepository) SummarizeByProvider(ctx context.Context, since time.Time) ([]*repositories.ProviderSummary, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.ProviderSummary), args.Error(1)
}

func sampleRecords(n int) []*models.RequestRecord {
	records := make([]*models.RequestRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := models.NewRequestRecord("fast")
		rec.MarkCompleted("groq", "llama-3.1-8b-instant", false, 1, 200+i)
		records = append(records, rec)
	}
	return records
}

func TestHandleListRecords(t *testing.T) {
	logger := zap.NewNop()

	t.Run("default pagination", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		mockRepo.On("List", mock.Anything, 50, 0).Return(sampleRecords(2), nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
		w := httptest.NewRecorder()

		handler.HandleList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].([]interface{})
		assert.Len(t, data, 2)

		mockRepo.AssertExpectations(t)
	})

	t.Run("status filter", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		mockRepo.On("GetByStatus", mock.Anything, models.RecordStatusFailed, 50, 0).
			Return([]*models.RequestRecord{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests?status=failed", nil)
		w := httptest.NewRecorder()

		handler.HandleList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("provider filter", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		mockRepo.On("GetByProvider", mock.Anything, "groq", 50, 0).
			Return(sampleRecords(1), nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests?provider=groq", nil)
		w := httptest.NewRecorder()

		handler.HandleList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("both filters rejected", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests?status=failed&provider=groq", nil)
		w := httptest.NewRecorder()

		handler.HandleList(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockRepo.AssertNotCalled(t, "GetByStatus")
		mockRepo.AssertNotCalled(t, "GetByProvider")
	})

	t.Run("invalid status filter", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests?status=pending", nil)
		w := httptest.NewRecorder()

		handler.HandleList(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests?limit=abc", nil)
		w := httptest.NewRecorder()

		handler.HandleList(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("limit capped", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		mockRepo.On("List", mock.Anything, 200, 10).Return([]*models.RequestRecord{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests?limit=5000&offset=10", nil)
		w := httptest.NewRecorder()

		handler.HandleList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		mockRepo.On("List", mock.Anything, 50, 0).Return(nil, errors.New("connection refused"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
		w := httptest.NewRecorder()

		handler.HandleList(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestHandleGetRecord(t *testing.T) {
	logger := zap.NewNop()
	recordID := uuid.New()

	newRequest := func(id string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/"+id, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("successful lookup", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		rec := models.NewRequestRecord("deep")
		rec.ID = recordID
		rec.MarkCompleted("openai", "gpt-4o-mini", true, 1, 3)

		mockRepo.On("GetByID", mock.Anything, recordID).Return(rec, nil)

		w := httptest.NewRecorder()
		handler.HandleGet(w, newRequest(recordID.String()))

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, recordID.String(), data["id"])
		assert.Equal(t, "completed", data["status"])
		assert.Equal(t, true, data["cache_hit"])

		mockRepo.AssertExpectations(t)
	})

	t.Run("invalid record ID", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		w := httptest.NewRecorder()
		handler.HandleGet(w, newRequest("not-a-uuid"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockRepo.AssertNotCalled(t, "GetByID")
	})

	t.Run("record not found", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		mockRepo.On("GetByID", mock.Anything, recordID).
			Return(nil, fmt.Errorf("%w: %s", repositories.ErrRecordNotFound, recordID))

		w := httptest.NewRecorder()
		handler.HandleGet(w, newRequest(recordID.String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		mockRepo.On("GetByID", mock.Anything, recordID).
			Return(nil, errors.New("connection refused"))

		w := httptest.NewRecorder()
		handler.HandleGet(w, newRequest(recordID.String()))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestHandleProviderSummary(t *testing.T) {
	logger := zap.NewNop()

	t.Run("default window", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		summaries := []*repositories.ProviderSummary{
			{Provider: "groq", Requests: 120, Completed: 117, Failed: 3, CacheHits: 40, AvgLatencyMs: 310.5},
		}

		mockRepo.On("SummarizeByProvider", mock.Anything, mock.MatchedBy(func(since time.Time) bool {
			return time.Since(since) > 23*time.Hour && time.Since(since) < 25*time.Hour
		})).Return(summaries, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/providers", nil)
		w := httptest.NewRecorder()

		handler.HandleProviderSummary(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].([]interface{})
		require.Len(t, data, 1)

		summary := data[0].(map[string]interface{})
		assert.Equal(t, "groq", summary["provider"])
		assert.Equal(t, float64(120), summary["requests"])
		assert.Equal(t, float64(40), summary["cache_hits"])

		mockRepo.AssertExpectations(t)
	})

	t.Run("custom window", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		mockRepo.On("SummarizeByProvider", mock.Anything, mock.MatchedBy(func(since time.Time) bool {
			return time.Since(since) < 2*time.Hour
		})).Return([]*repositories.ProviderSummary{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/providers?since=1h", nil)
		w := httptest.NewRecorder()

		handler.HandleProviderSummary(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("invalid window", func(t *testing.T) {
		mockRepo := new(MockRecordRepository)
		handler := NewRecordsHandler(mockRepo, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/providers?since=yesterday", nil)
		w := httptest.NewRecorder()

		handler.HandleProviderSummary(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockRepo.AssertNotCalled(t, "SummarizeByProvider")
	})
}
