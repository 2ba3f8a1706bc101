package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nlieb/chatmux/middleware"
	"github.com/nlieb/chatmux/services/orchestrator"
	"github.com/nlieb/chatmux/services/providers"
	"github.com/nlieb/chatmux/utils"
)

// ChatRequest represents an incoming chat request. Message presence and mode
// values are checked by the orchestrator so that rejected requests are still
// recorded; the handler only validates transport-level shape.
type ChatRequest struct {
	Message string        `json:"message" validate:"max=32768"`
	Mode    string        `json:"mode,omitempty"`
	History []ChatMessage `json:"history,omitempty" validate:"omitempty,max=50,dive"`
}

// ChatMessage represents a single prior conversation turn
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatService defines the interface for answering chat requests
type ChatService interface {
	// Chat resolves one request to a terminal answer or error
	Chat(ctx context.Context, req *orchestrator.Request) (*orchestrator.Result, error)
}

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /api/v1/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var chatReq ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&chatReq); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	history := make([]providers.Message, 0, len(chatReq.History))
	for _, m := range chatReq.History {
		history = append(history, providers.Message{Role: m.Role, Content: m.Content})
	}

	serviceReq := &orchestrator.Request{
		Message: chatReq.Message,
		Mode:    providers.Mode(chatReq.Mode),
		History: history,
	}

	h.logger.Debug("processing chat request",
		zap.String("request_id", requestID),
		zap.String("mode", chatReq.Mode))

	result, err := h.service.Chat(ctx, serviceReq)
	if err != nil {
		// When the client is gone or the request deadline passed, the
		// timeout middleware already answered; writing again would race.
		if ctx.Err() != nil {
			h.logger.Warn("chat request abandoned",
				zap.String("request_id", requestID),
				zap.Error(err))
			return
		}
		h.logger.Error("failed to process chat request",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("chat request successful",
		zap.String("request_id", requestID),
		zap.String("provider", result.Provider),
		zap.String("model", result.Model),
		zap.Bool("cache_hit", result.CacheHit),
		zap.Int("attempts", result.Attempts),
		zap.Int("processing_time_ms", result.ProcessingTimeMs))

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
