// Package notify sends leak alerts: an SMS per critical SLA breach and one
// HTML digest email per alert.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/common/logger"
	"leak-audit/internal/common/metrics"
	"leak-audit/internal/leak"

	"github.com/google/uuid"
)

const (
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusDisabled  = "disabled"
	StatusDuplicate = "duplicate"
)

const maxSMSLength = 160

type EmailSender interface {
	SendHTML(ctx context.Context, to []string, subject, html, text string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Recipients struct {
	Email []string `json:"email,omitempty"`
	Phone []string `json:"phone,omitempty"`
}

type Alert struct {
	// ID makes delivery idempotent. Empty means a fresh id per call.
	ID         string
	Leaks      []leak.Leak
	Recipients Recipients
}

type Result struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	SMSSent        int    `json:"smsSent"`
	EmailSent      bool   `json:"emailSent"`
	SentAt         string `json:"sentAt"`
}

// Notifier delivers alerts. A nil sender disables its channel.
type Notifier struct {
	email  EmailSender
	sms    SMSSender
	dedupe Deduper
	logger logger.Logger
	now    func() time.Time
}

func NewNotifier(email EmailSender, sms SMSSender, dedupe Deduper, log logger.Logger) *Notifier {
	if dedupe == nil {
		dedupe = NewMemoryDeduper()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Notifier{
		email:  email,
		sms:    sms,
		dedupe: dedupe,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
		now:    time.Now,
	}
}

// Send delivers alert once per ID. A redelivered ID reports StatusDuplicate
// without sending. When nothing was attempted or every attempted channel
// failed, the claim is released so a later delivery can send.
func (n *Notifier) Send(ctx context.Context, alert Alert) (*Result, error) {
	id := alert.ID
	if id == "" {
		id = uuid.New().String()
	}
	res := &Result{NotificationID: id, Status: StatusDisabled, SentAt: n.now().UTC().Format(time.RFC3339)}

	claimed, err := n.dedupe.Claim(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotificationSendFailedError("dedupe", err)
	}
	if !claimed {
		res.Status = StatusDuplicate
		n.logger.Info("alert already delivered", map[string]interface{}{"notificationId": id})
		return res, nil
	}

	attempted, failed := 0, 0
	var lastErr error

	if n.sms != nil {
		for _, l := range criticalBreaches(alert.Leaks) {
			for _, phone := range alert.Recipients.Phone {
				attempted++
				if _, err := n.sms.SendSMS(ctx, phone, smsText(l)); err != nil {
					failed++
					lastErr = err
					n.record("sms", StatusFailed)
					n.logger.Error("SMS send failed", map[string]interface{}{"error": err, "leakId": l.ID})
					continue
				}
				res.SMSSent++
				n.record("sms", StatusSent)
			}
		}
	}

	if n.email != nil && len(alert.Recipients.Email) > 0 && len(alert.Leaks) > 0 {
		attempted++
		subject, html, text, err := renderDigest(alert.Leaks)
		if err == nil {
			_, err = n.email.SendHTML(ctx, alert.Recipients.Email, subject, html, text)
		}
		if err != nil {
			failed++
			lastErr = err
			n.record("email", StatusFailed)
			n.logger.Error("email send failed", map[string]interface{}{"error": err, "notificationId": id})
		} else {
			res.EmailSent = true
			n.record("email", StatusSent)
		}
	}

	switch {
	case attempted == 0:
		n.release(ctx, id)
		res.Status = StatusDisabled
	case failed == attempted:
		n.release(ctx, id)
		return nil, apperrors.NewNotificationSendFailedError("all", lastErr)
	case failed > 0:
		res.Status = StatusFailed
	default:
		res.Status = StatusSent
	}

	n.logger.Info("alert processed", map[string]interface{}{
		"notificationId": id,
		"status":         res.Status,
		"smsSent":        res.SMSSent,
		"emailSent":      res.EmailSent,
	})
	return res, nil
}

func (n *Notifier) release(ctx context.Context, id string) {
	if err := n.dedupe.Release(ctx, id); err != nil {
		n.logger.Warn("failed to release alert claim", map[string]interface{}{"error": err, "notificationId": id})
	}
}

func (n *Notifier) record(channel, status string) {
	metrics.NotificationsSent.WithLabelValues(channel, status).Inc()
}

func criticalBreaches(leaks []leak.Leak) []leak.Leak {
	var out []leak.Leak
	for _, l := range leaks {
		if l.Severity == leak.SeverityCritical && l.IsSLABreach {
			out = append(out, l)
		}
	}
	return out
}

func smsText(l leak.Leak) string {
	msg := fmt.Sprintf("CRITICAL leak: %s, %s at risk, %.0fh since last touch. %s",
		l.Name, leak.FormatCurrency(l.RevenueAtRisk), l.HoursSinceActivity, l.RecommendedAction)
	if len(msg) > maxSMSLength {
		msg = msg[:maxSMSLength-3] + "..."
	}
	return msg
}

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"currency": leak.FormatCurrency,
}).Parse(`<h2>{{len .Leaks}} revenue leaks, {{currency .Summary.TotalRevenueAtRisk}} at risk</h2>
<p>Recoverable: {{currency .Summary.RecoverableRevenue}} ({{.Summary.ROIMultiplier}}x ROI)</p>
<table>
<tr><th>Severity</th><th>Leak</th><th>At risk</th><th>Next step</th></tr>
{{range .Leaks}}<tr><td>{{.Severity}}</td><td>{{.Name}}</td><td>{{currency .RevenueAtRisk}}</td><td>{{.RecommendedAction}}</td></tr>
{{end}}</table>`))

func renderDigest(leaks []leak.Leak) (subject, html, text string, err error) {
	summary := leak.Summarize(leaks)
	subject = fmt.Sprintf("Leak audit: %d leaks, %s at risk", summary.Total, leak.FormatCurrency(summary.TotalRevenueAtRisk))

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, map[string]interface{}{"Leaks": leaks, "Summary": summary}); err != nil {
		return "", "", "", fmt.Errorf("render digest: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(subject + "\n\n")
	for _, l := range leaks {
		fmt.Fprintf(&sb, "[%s] %s: %s at risk. %s\n", l.Severity, l.Name, leak.FormatCurrency(l.RevenueAtRisk), l.RecommendedAction)
	}
	return subject, buf.String(), sb.String(), nil
}
