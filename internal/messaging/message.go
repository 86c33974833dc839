package messaging

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// OutboundMessage is a single text message to one recipient.
type OutboundMessage struct {
	To        string
	From      string
	Body      string
	Reference string
	// Metadata receives provider_message_id / provider_status when non-nil.
	Metadata map[string]string
}

// Sender delivers an OutboundMessage over one channel.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg OutboundMessage) error

func (f SenderFunc) Send(ctx context.Context, msg OutboundMessage) error {
	return f(ctx, msg)
}

var (
	errToRequired   = errors.New("messaging: to required")
	errFromRequired = errors.New("messaging: from required")
	errBodyRequired = errors.New("messaging: body required")
)

const sendAttempts = 3

// jitter is the pause between provider retries.
func jitter() {
	time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
}

// retryable reports whether an HTTP status is worth another attempt.
func retryable(status int) bool {
	return status == 429 || status >= 500
}
