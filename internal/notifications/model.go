package notifications

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind selects the message template.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindReminder24h  Kind = "reminder_24h"
	KindReminder3h   Kind = "reminder_3h"
	KindCancellation Kind = "cancellation"
	KindWaitingList  Kind = "waiting_list"
	KindCustom       Kind = "custom"

	// KindInbound and KindAutoReply are only used for log rows.
	KindInbound   Kind = "inbound_response"
	KindAutoReply Kind = "auto_reply"
)

// ParseKind validates a notificationType from a request.
func ParseKind(value string) (Kind, bool) {
	switch k := Kind(value); k {
	case KindConfirmation, KindReminder24h, KindReminder3h, KindCancellation, KindWaitingList, KindCustom:
		return k, true
	}
	return "", false
}

// IsReminder reports whether delivery should stamp reminder_sent_at.
func (k Kind) IsReminder() bool {
	return k == KindReminder24h || k == KindReminder3h
}

// carriesCancelLink reports whether the message ends with a cancellation link.
func (k Kind) carriesCancelLink() bool {
	return k == KindConfirmation || k == KindReminder24h
}

// Channel is a delivery route.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
)

// ChannelStatus is the per-channel outcome of one dispatch.
type ChannelStatus string

const (
	StatusSent         ChannelStatus = "sent"
	StatusFailed       ChannelStatus = "failed"
	StatusDisabled     ChannelStatus = "disabled"
	StatusNotAttempted ChannelStatus = "not_attempted"
)

// Log statuses beyond the channel outcomes.
const (
	LogReceived  = "received"
	LogUnmatched = "unmatched"
)

var (
	ErrAppointmentNotFound = errors.New("notifications: appointment not found")
	ErrMissingPhone        = errors.New("notifications: customer phone number is missing")
	ErrInvalidKind         = errors.New("notifications: unknown notification type")
	ErrMissingMessage      = errors.New("notifications: message text is required")
	ErrMissingRecipient    = errors.New("notifications: appointmentId or phoneNumber is required")
)

// Request describes one dispatch. Either AppointmentID or Phone must be set.
type Request struct {
	AppointmentID     *uuid.UUID
	UserID            string
	Phone             string
	Kind              Kind
	CustomMessage     string
	Data              map[string]string
	AdminNotification bool
	// LogAs overrides the notification_type written to the log.
	LogAs Kind
}

// Result reports what happened on each channel.
type Result struct {
	Success        bool          `json:"success"`
	Method         string        `json:"method"`
	WhatsAppStatus ChannelStatus `json:"whatsappStatus"`
	SMSStatus      ChannelStatus `json:"smsStatus"`
	Message        string        `json:"-"`
	Error          string        `json:"error,omitempty"`
}

// LogEntry is one row of the append-only notification log.
type LogEntry struct {
	ID               uuid.UUID  `json:"id"`
	UserID           string     `json:"user_id"`
	AppointmentID    *uuid.UUID `json:"appointment_id,omitempty"`
	NotificationType string     `json:"notification_type"`
	Channel          string     `json:"channel"`
	PhoneNumber      string     `json:"phone_number"`
	MessageContent   string     `json:"message_content"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Preference is an owner's channel choice.
type Preference struct {
	UserID             string `json:"user_id"`
	WhatsAppEnabled    bool   `json:"whatsapp_enabled"`
	SMSFallbackEnabled bool   `json:"sms_fallback_enabled"`
}

// DefaultPreference applies when the owner never saved one.
func DefaultPreference(userID string) Preference {
	return Preference{UserID: userID, WhatsAppEnabled: true, SMSFallbackEnabled: true}
}

// BusinessSettings holds owner details used in messages and alerts.
type BusinessSettings struct {
	UserID       string `json:"user_id"`
	BusinessName string `json:"business_name"`
	OwnerEmail   string `json:"owner_email"`
}
