package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supportdesk/ticketsync/internal/highlight"
)

type HighlightHandler struct {
	Highlights *highlight.Set
}

func NewHighlightHandler(set *highlight.Set) *HighlightHandler {
	return &HighlightHandler{Highlights: set}
}

// Dismiss removes the emphasis for one ticket id. Dismissing an id that
// already expired is fine; the outcome is the same.
func (h *HighlightHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.Highlights.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
