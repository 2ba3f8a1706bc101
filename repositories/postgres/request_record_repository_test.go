package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nlieb/chatmux/models"
	"github.com/nlieb/chatmux/repositories"
)

func newMockRepository(t *testing.T) (*RequestRecordRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := &DB{DB: mockDB, logger: zap.NewNop()}
	repo := &RequestRecordRepository{db: db, logger: zap.NewNop()}

	return repo, mock, func() { mockDB.Close() }
}

func recordColumns() []string {
	return []string{
		"id", "status", "mode", "provider", "model", "cache_hit",
		"attempts", "latency_ms", "error_kind", "created_at", "completed_at",
	}
}

func TestRequestRecordRepository_Insert(t *testing.T) {
	t.Run("inserts completed record", func(t *testing.T) {
		repo, mock, cleanup := newMockRepository(t)
		defer cleanup()

		rec := models.NewRequestRecord("fast")
		rec.MarkCompleted("openai", "gpt-4o-mini", false, 1, 230)

		mock.ExpectExec("INSERT INTO request_records").
			WithArgs(
				rec.ID, rec.Status, rec.Mode, rec.Provider, rec.Model, rec.CacheHit,
				rec.Attempts, rec.LatencyMs, rec.ErrorKind, rec.CreatedAt, rec.CompletedAt,
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.Insert(context.Background(), rec)
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inserts rejected record with nil completion fields", func(t *testing.T) {
		repo, mock, cleanup := newMockRepository(t)
		defer cleanup()

		rec := models.NewRequestRecord("fast")
		rec.MarkRejected("validation_failed")

		mock.ExpectExec("INSERT INTO request_records").
			WithArgs(
				rec.ID, rec.Status, rec.Mode, "", "", false,
				0, 0, rec.ErrorKind, rec.CreatedAt, rec.CompletedAt,
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.Insert(context.Background(), rec)
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates database errors", func(t *testing.T) {
		repo, mock, cleanup := newMockRepository(t)
		defer cleanup()

		rec := models.NewRequestRecord("fast")
		rec.MarkCompleted("openai", "gpt-4o-mini", false, 1, 100)

		mock.ExpectExec("INSERT INTO request_records").
			WillReturnError(assert.AnError)

		err := repo.Insert(context.Background(), rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert request record")
	})
}

func TestRequestRecordRepository_GetByID(t *testing.T) {
	t.Run("returns record when found", func(t *testing.T) {
		repo, mock, cleanup := newMockRepository(t)
		defer cleanup()

		id := uuid.New()
		created := time.Now().Add(-time.Minute)
		completed := time.Now()
		errorKind := "all_providers_failed"

		rows := sqlmock.NewRows(recordColumns()).
			AddRow(id, "failed", "deep", "anthropic", "", false, 4, 8200, errorKind, created, completed)

		mock.ExpectQuery("SELECT (.+) FROM request_records WHERE id").
			WithArgs(id).
			WillReturnRows(rows)

		rec, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)

		assert.Equal(t, id, rec.ID)
		assert.Equal(t, models.RecordStatusFailed, rec.Status)
		assert.Equal(t, "anthropic", rec.Provider)
		assert.Equal(t, 4, rec.Attempts)
		require.NotNil(t, rec.ErrorKind)
		assert.Equal(t, errorKind, *rec.ErrorKind)
		require.NotNil(t, rec.CompletedAt)
	})

	t.Run("returns not found for missing record", func(t *testing.T) {
		repo, mock, cleanup := newMockRepository(t)
		defer cleanup()

		id := uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM request_records WHERE id").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(recordColumns()))

		rec, err := repo.GetByID(context.Background(), id)
		require.Error(t, err)
		assert.Nil(t, rec)
		assert.ErrorIs(t, err, repositories.ErrRecordNotFound)
	})
}

func TestRequestRecordRepository_List(t *testing.T) {
	repo, mock, cleanup := newMockRepository(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(recordColumns()).
		AddRow(uuid.New(), "completed", "fast", "openai", "gpt-4o-mini", true, 0, 1, nil, now, now).
		AddRow(uuid.New(), "completed", "fast", "openai", "gpt-4o-mini", false, 1, 340, nil, now.Add(-time.Second), now)

	mock.ExpectQuery("SELECT (.+) FROM request_records ORDER BY created_at DESC").
		WithArgs(10, 0).
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.True(t, records[0].CacheHit)
	assert.Nil(t, records[0].ErrorKind)
	assert.Equal(t, 1, records[1].Attempts)
}

func TestRequestRecordRepository_GetByStatus(t *testing.T) {
	repo, mock, cleanup := newMockRepository(t)
	defer cleanup()

	now := time.Now()
	errorKind := "provider_dispatch"
	rows := sqlmock.NewRows(recordColumns()).
		AddRow(uuid.New(), "failed", "fast", "anthropic", "", false, 4, 9000, errorKind, now, now)

	mock.ExpectQuery("SELECT (.+) FROM request_records WHERE status").
		WithArgs(models.RecordStatusFailed, 50, 0).
		WillReturnRows(rows)

	records, err := repo.GetByStatus(context.Background(), models.RecordStatusFailed, 50, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.RecordStatusFailed, records[0].Status)
}

func TestRequestRecordRepository_GetByProvider(t *testing.T) {
	repo, mock, cleanup := newMockRepository(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(recordColumns()).
		AddRow(uuid.New(), "completed", "deep", "anthropic", "claude-sonnet", false, 2, 4100, nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM request_records WHERE provider").
		WithArgs("anthropic", 20, 0).
		WillReturnRows(rows)

	records, err := repo.GetByProvider(context.Background(), "anthropic", 20, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "anthropic", records[0].Provider)
	assert.Equal(t, "claude-sonnet", records[0].Model)
}

func TestRequestRecordRepository_SummarizeByProvider(t *testing.T) {
	repo, mock, cleanup := newMockRepository(t)
	defer cleanup()

	since := time.Now().Add(-24 * time.Hour)
	rows := sqlmock.NewRows([]string{"provider", "requests", "completed", "failed", "cache_hits", "avg_latency_ms"}).
		AddRow("openai", 120, 115, 5, 40, 320.5).
		AddRow("anthropic", 30, 28, 2, 3, 2100.0)

	mock.ExpectQuery("SELECT (.+) FROM request_records WHERE created_at").
		WithArgs(since).
		WillReturnRows(rows)

	summaries, err := repo.SummarizeByProvider(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "openai", summaries[0].Provider)
	assert.Equal(t, 120, summaries[0].Requests)
	assert.Equal(t, 40, summaries[0].CacheHits)
	assert.InDelta(t, 320.5, summaries[0].AvgLatencyMs, 0.01)
	assert.Equal(t, "anthropic", summaries[1].Provider)
}
