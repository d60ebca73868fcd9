package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supportdesk/ticketsync/internal/http/response"
	"github.com/supportdesk/ticketsync/internal/inbox"
)

type NotificationHandler struct {
	Inbox *inbox.Inbox
}

func NewNotificationHandler(box *inbox.Inbox) *NotificationHandler {
	return &NotificationHandler{Inbox: box}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]any{
		"items":       h.Inbox.Snapshot(),
		"unreadCount": h.Inbox.UnreadCount(),
	})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.Inbox.Contains(id) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "unknown notification", map[string]string{"id": id})
		return
	}
	changed := h.Inbox.MarkRead(r.Context(), id)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"changed":     changed,
		"unreadCount": h.Inbox.UnreadCount(),
	})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.Inbox.MarkAllRead(r.Context())
	response.JSON(w, r, http.StatusOK, map[string]any{"unreadCount": 0})
}
