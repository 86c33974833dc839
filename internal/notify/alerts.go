package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/salonbook/pkg/logging"
)

// ErrNoOwnerEmail is returned when the business has no address on file.
var ErrNoOwnerEmail = errors.New("notify: owner email not configured")

// OwnerAlert is an email to the business owner.
type OwnerAlert struct {
	To           string
	BusinessName string
	Subject      string
	Body         string
	// Category defaults to CategoryAdminNotification.
	Category string
}

// LateCancellation describes a cancellation inside the late window.
type LateCancellation struct {
	To           string
	BusinessName string
	CustomerName string
	Service      string
	StartsAt     time.Time
	Reason       string
}

// OwnerAlerter sends owner-facing email through an EmailSender.
type OwnerAlerter struct {
	email  EmailSender
	logger *logging.Logger
}

func NewOwnerAlerter(email EmailSender, logger *logging.Logger) *OwnerAlerter {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &OwnerAlerter{email: email, logger: logger}
}

// Alert emails a plain message to the owner, with an escaped HTML copy.
func (a *OwnerAlerter) Alert(ctx context.Context, alert OwnerAlert) error {
	to := strings.TrimSpace(alert.To)
	if to == "" {
		return ErrNoOwnerEmail
	}
	subject := alert.Subject
	if subject == "" {
		subject = "Notification"
		if alert.BusinessName != "" {
			subject = alert.BusinessName + ": notification"
		}
	}
	category := alert.Category
	if category == "" {
		category = CategoryAdminNotification
	}
	return a.email.Send(ctx, EmailMessage{
		To:       to,
		ToName:   alert.BusinessName,
		Subject:  subject,
		Text:     alert.Body,
		HTML:     "<p>" + strings.ReplaceAll(html.EscapeString(alert.Body), "\n", "<br>") + "</p>",
		Category: category,
	})
}

// NotifyLateCancellation tells the owner a customer cancelled inside the late window.
func (a *OwnerAlerter) NotifyLateCancellation(ctx context.Context, lc LateCancellation) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s cancelled %s on %s.\n", lc.CustomerName, lc.Service, lc.StartsAt.Format("02/01/2006 15:04"))
	b.WriteString("The cancellation was late, so a cancellation fee applies.")
	if lc.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", lc.Reason)
	}
	err := a.Alert(ctx, OwnerAlert{
		To:           lc.To,
		BusinessName: lc.BusinessName,
		Subject:      "Late cancellation: " + lc.CustomerName,
		Body:         b.String(),
		Category:     CategoryLateCancellation,
	})
	if err != nil {
		a.logger.Warn("late cancellation alert not sent", "error", err, "customer", lc.CustomerName)
	}
	return err
}
