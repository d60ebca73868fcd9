package reconciler

import (
	"log/slog"

	"github.com/supportdesk/ticketsync/internal/domain"
)

// Alert is a transient, user-facing message derived from a push event.
// Persist asks the presenter to keep it on screen until dismissed; how that
// looks is entirely the presenter's business.
type Alert struct {
	Message string
	Link    string
	Type    domain.AlertType
	Persist bool
}

type Alerter interface {
	Present(Alert)
}

// LogAlerter is the headless presenter: alerts land in the log.
type LogAlerter struct {
	Logger *slog.Logger
}

func (a *LogAlerter) Present(al Alert) {
	a.Logger.Info("alert",
		"message", al.Message,
		"link", al.Link,
		"type", string(al.Type),
		"persist", al.Persist,
	)
}
