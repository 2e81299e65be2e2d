// internal/workers/audit/send-leak-alert/models.go
package sendleakalert

import (
	"leak-audit/internal/leak"
	"leak-audit/internal/notify"
)

type Input struct {
	Leaks      []leak.Leak       `json:"leaks"`
	Recipients notify.Recipients `json:"recipients"`
	// NotificationID overrides the job's element instance key as the
	// idempotency key.
	NotificationID string `json:"notificationId,omitempty"`
}

type Output = notify.Result
