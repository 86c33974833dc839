package messaging

import (
	"context"
	"errors"

	"github.com/wolfman30/salonbook/pkg/logging"
)

// FailoverMessenger attempts a primary send, then falls back to a secondary provider on error.
type FailoverMessenger struct {
	primary       Sender
	secondary     Sender
	primaryName   string
	secondaryName string
	logger        *logging.Logger
}

// NewFailoverMessenger builds a failover messenger with named providers.
func NewFailoverMessenger(primary Sender, primaryName string, secondary Sender, secondaryName string, logger *logging.Logger) *FailoverMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverMessenger{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
		logger:        logger,
	}
}

var _ Sender = (*FailoverMessenger)(nil)

// Send tries the primary provider first, then falls back to the secondary provider on failure.
func (f *FailoverMessenger) Send(ctx context.Context, msg OutboundMessage) error {
	if f == nil || f.primary == nil {
		return errors.New("messaging: failover primary sender not configured")
	}
	err := f.primary.Send(ctx, msg)
	if err == nil {
		return nil
	}
	if f.secondary == nil {
		return err
	}
	f.logger.Warn("primary sms send failed; attempting fallback",
		"provider", f.primaryName,
		"fallback", f.secondaryName,
		"error", err,
		"reference", msg.Reference,
	)
	if fallbackErr := f.secondary.Send(ctx, msg); fallbackErr != nil {
		f.logger.Error("fallback sms send failed",
			"provider", f.secondaryName,
			"error", fallbackErr,
			"reference", msg.Reference,
		)
		return fallbackErr
	}
	return nil
}
