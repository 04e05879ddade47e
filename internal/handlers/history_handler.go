// File: internal/handlers/history_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-roomchat/internal/repository/message"
	"github.com/iyunix/go-roomchat/internal/repository/thread"
)

const defaultPageSize = 100

type HistoryHandler struct {
	Messages message.MessageRepository
	Threads  thread.ThreadRepository
}

func NewHistoryHandler(messages message.MessageRepository, threads thread.ThreadRepository) *HistoryHandler {
	return &HistoryHandler{Messages: messages, Threads: threads}
}

// GetThreads lists a room's threads, most recently active first.
func (h *HistoryHandler) GetThreads(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]

	threads, err := h.Threads.FindByRoomID(r.Context(), roomID)
	if err != nil {
		writeError(w, "Could not retrieve threads", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

// GetThreadMessages returns one page of a thread's messages in
// chronological order.
func (h *HistoryHandler) GetThreadMessages(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["threadID"]

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		offset = parsed
	}

	messages, total, err := h.Messages.FindByThreadIDWithPagination(r.Context(), threadID, limit, offset)
	if err != nil {
		writeError(w, "Could not retrieve messages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"total":    total,
	})
}

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
