package handler

import (
	"net/http"

	"github.com/supportdesk/ticketsync/internal/highlight"
	"github.com/supportdesk/ticketsync/internal/http/response"
	"github.com/supportdesk/ticketsync/internal/inbox"
	"github.com/supportdesk/ticketsync/internal/reconciler"
	"github.com/supportdesk/ticketsync/internal/session"
)

// StatusHandler reports the sync client's view of the world in one call:
// who is logged in, whether the push channel is live, and the inbox badge.
type StatusHandler struct {
	Sessions   *session.Manager
	Reconciler *reconciler.Reconciler
	Inbox      *inbox.Inbox
	Highlights *highlight.Set
}

func NewStatusHandler(sessions *session.Manager, rec *reconciler.Reconciler, box *inbox.Inbox, highlights *highlight.Set) *StatusHandler {
	return &StatusHandler{Sessions: sessions, Reconciler: rec, Inbox: box, Highlights: highlights}
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"authenticated":   false,
		"connectionState": string(h.Reconciler.State()),
		"unreadCount":     h.Inbox.UnreadCount(),
		"highlighted":     h.Highlights.Ids(),
	}
	if identity, ok := h.Sessions.Identity(); ok {
		body["authenticated"] = true
		body["subject"] = identity.SubjectID
		body["displayName"] = identity.DisplayName
		body["roles"] = identity.Roles
	}
	response.JSON(w, r, http.StatusOK, body)
}
