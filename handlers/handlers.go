package handlers

import (
	"net/http"

	"github.com/nlieb/chatmux/app"
	"github.com/nlieb/chatmux/utils"
)

// Chat returns the chat endpoint handler
func Chat(deps *app.Dependencies) http.HandlerFunc {
	h := NewChatHandler(deps.Orchestrator, deps.Logger)
	return h.HandleChat
}

// ListRequests returns the request log listing handler
func ListRequests(deps *app.Dependencies) http.HandlerFunc {
	if deps.RequestRecords == nil {
		return recordingDisabled
	}
	h := NewRecordsHandler(deps.RequestRecords, deps.Logger)
	return h.HandleList
}

// GetRequest returns the request log lookup handler
func GetRequest(deps *app.Dependencies) http.HandlerFunc {
	if deps.RequestRecords == nil {
		return recordingDisabled
	}
	h := NewRecordsHandler(deps.RequestRecords, deps.Logger)
	return h.HandleGet
}

// ProviderMetrics returns the per-provider request summary handler
func ProviderMetrics(deps *app.Dependencies) http.HandlerFunc {
	if deps.RequestRecords == nil {
		return recordingDisabled
	}
	h := NewRecordsHandler(deps.RequestRecords, deps.Logger)
	return h.HandleProviderSummary
}

// recordingDisabled answers record-log requests when no database is configured
func recordingDisabled(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteNotFound(w, "Request recording is not enabled")
}
