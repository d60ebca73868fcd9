package domain

import "time"

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertSuccess AlertType = "success"
	AlertWarning AlertType = "warning"
	AlertError   AlertType = "error"
)

// NormalizeAlertType maps unknown wire values to info, matching the
// presenter's fallback behavior.
func NormalizeAlertType(v string) AlertType {
	switch AlertType(v) {
	case AlertInfo, AlertSuccess, AlertWarning, AlertError:
		return AlertType(v)
	default:
		return AlertInfo
	}
}
