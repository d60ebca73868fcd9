package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supportdesk/ticketsync/internal/http/response"
	"github.com/supportdesk/ticketsync/internal/reconciler"
)

// TopicHandler lets views declare interest in one ticket's live events.
type TopicHandler struct {
	Reconciler *reconciler.Reconciler
}

func NewTopicHandler(rec *reconciler.Reconciler) *TopicHandler {
	return &TopicHandler{Reconciler: rec}
}

func (h *TopicHandler) Join(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Reconciler.JoinTopic(r.Context(), id); err != nil {
		response.Error(w, r, http.StatusBadGateway, "HUB_UNAVAILABLE", "could not join ticket group", map[string]string{"ticketId": id})
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"ticketId": id, "state": "joined"})
}

func (h *TopicHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Reconciler.LeaveTopic(r.Context(), id); err != nil {
		response.Error(w, r, http.StatusBadGateway, "HUB_UNAVAILABLE", "could not leave ticket group", map[string]string{"ticketId": id})
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"ticketId": id, "state": "left"})
}
