package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/supportdesk/ticketsync/internal/http/handler"
	"github.com/supportdesk/ticketsync/internal/http/middleware"
	"github.com/supportdesk/ticketsync/internal/http/response"
	"github.com/supportdesk/ticketsync/internal/session"
)

const (
	PermNotificationsRead  = "notifications:read"
	PermNotificationsWrite = "notifications:write"
)

type Dependencies struct {
	Sessions      *session.Manager
	Notifications *handler.NotificationHandler
	Status        *handler.StatusHandler
	Highlights    *handler.HighlightHandler
	Topics        *handler.TopicHandler
	Logger        *slog.Logger

	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(dep.Logger))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Status stays open so a dashboard can render the logged-out and
		// reconnecting states.
		r.Get("/status", dep.Status.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(dep.Sessions))

			r.With(middleware.RequirePermission(dep.Sessions, PermNotificationsRead)).
				Get("/notifications", dep.Notifications.List)
			r.With(middleware.RequirePermission(dep.Sessions, PermNotificationsWrite)).
				Post("/notifications/{id}/read", dep.Notifications.MarkRead)
			r.With(middleware.RequirePermission(dep.Sessions, PermNotificationsWrite)).
				Post("/notifications/read-all", dep.Notifications.MarkAllRead)

			r.Delete("/highlights/{id}", dep.Highlights.Dismiss)
			r.Post("/topics/{id}/join", dep.Topics.Join)
			r.Post("/topics/{id}/leave", dep.Topics.Leave)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
