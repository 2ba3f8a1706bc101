package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nlieb/chatmux/middleware"
	"github.com/nlieb/chatmux/models"
	"github.com/nlieb/chatmux/repositories"
	"github.com/nlieb/chatmux/utils"
)

const (
	defaultRecordLimit = 50
	maxRecordLimit     = 200

	defaultSummaryWindow = 24 * time.Hour
)

// RecordsHandler serves the request record log
type RecordsHandler struct {
	recordRepo repositories.RequestRecordRepository
	logger     *zap.Logger
}

// NewRecordsHandler creates a new RecordsHandler
func NewRecordsHandler(recordRepo repositories.RequestRecordRepository, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{
		recordRepo: recordRepo,
		logger:     logger,
	}
}

// HandleList handles GET /api/v1/requests
func (h *RecordsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	limit, offset, err := parsePagination(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	status := r.URL.Query().Get("status")
	provider := r.URL.Query().Get("provider")
	if status != "" && provider != "" {
		_ = utils.WriteBadRequest(w, "Filter by either status or provider, not both", nil)
		return
	}
	if status != "" && !models.ValidRecordStatus(models.RecordStatus(status)) {
		_ = utils.WriteBadRequest(w, "Invalid status filter", map[string]interface{}{
			"status": "must be one of: completed, failed, rejected",
		})
		return
	}

	var records []*models.RequestRecord
	switch {
	case status != "":
		records, err = h.recordRepo.GetByStatus(ctx, models.RecordStatus(status), limit, offset)
	case provider != "":
		records, err = h.recordRepo.GetByProvider(ctx, provider, limit, offset)
	default:
		records, err = h.recordRepo.List(ctx, limit, offset)
	}

	if err != nil {
		h.logger.Error("failed to list request records",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to retrieve request records")
		return
	}

	h.logger.Debug("listed request records",
		zap.String("request_id", requestID),
		zap.Int("count", len(records)))

	_ = utils.WriteOK(w, records)
}

// HandleGet handles GET /api/v1/requests/{id}
func (h *RecordsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid record ID format", nil)
		return
	}

	record, err := h.recordRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			_ = utils.WriteNotFound(w, "Request record not found")
			return
		}
		h.logger.Error("failed to get request record",
			zap.String("request_id", requestID),
			zap.String("record_id", id.String()),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to retrieve request record")
		return
	}

	_ = utils.WriteOK(w, record)
}

// HandleProviderSummary handles GET /api/v1/metrics/providers
func (h *RecordsHandler) HandleProviderSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	window := defaultSummaryWindow
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		parsed, err := time.ParseDuration(sinceStr)
		if err != nil || parsed <= 0 {
			_ = utils.WriteBadRequest(w, "Invalid since duration", map[string]interface{}{
				"since": "must be a positive duration such as 1h or 30m",
			})
			return
		}
		window = parsed
	}

	summaries, err := h.recordRepo.SummarizeByProvider(ctx, time.Now().Add(-window))
	if err != nil {
		h.logger.Error("failed to summarize providers",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to summarize provider activity")
		return
	}

	_ = utils.WriteOK(w, summaries)
}

// parsePagination extracts limit and offset query parameters, applying the
// default page size and the hard cap.
func parsePagination(r *http.Request) (int, int, error) {
	limit := defaultRecordLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		if parsed > maxRecordLimit {
			parsed = maxRecordLimit
		}
		limit = parsed
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
		offset = parsed
	}

	return limit, offset, nil
}
