package appointments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment slot.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ConfirmationStatus tracks the customer's answer to a confirmation request.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationCancelled ConfirmationStatus = "cancelled"
)

// Channel identifies what triggered a transition.
type Channel string

const (
	ViaToken     Channel = "token"
	ViaMessaging Channel = "messaging"
	ViaAdmin     Channel = "admin"
)

// Appointment is a booked slot owned by a business (UserID).
type Appointment struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             string             `json:"user_id"`
	CustomerID         string             `json:"customer_id"`
	CustomerName       string             `json:"customer_name"`
	CustomerPhone      string             `json:"customer_phone"`
	EmployeeID         string             `json:"employee_id,omitempty"`
	EmployeeName       string             `json:"employee_name,omitempty"`
	ServiceType        string             `json:"service_type"`
	Date               time.Time          `json:"date"`
	StartTime          string             `json:"start_time"`
	EndTime            string             `json:"end_time"`
	Status             Status             `json:"status"`
	ConfirmationStatus ConfirmationStatus `json:"confirmation_status"`
	ConfirmedAt        *time.Time         `json:"confirmed_at,omitempty"`
	CustomerResponse   string             `json:"customer_response,omitempty"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CancelledVia       Channel            `json:"cancelled_via,omitempty"`
	LateCancellation   bool               `json:"late_cancellation"`
	PaymentRequired    bool               `json:"payment_required"`
	WhatsAppSent       bool               `json:"whatsapp_sent"`
	SMSSent            bool               `json:"sms_sent"`
	Reminder24hSent    bool               `json:"reminder_24h_sent"`
	Reminder3hSent     bool               `json:"reminder_3h_sent"`
	ReminderSentAt     *time.Time         `json:"reminder_sent_at,omitempty"`
	Version            int                `json:"version"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// StartsAt combines the calendar date and the "HH:MM" start time in loc.
func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	hour, minute, err := parseClock(a.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := a.Date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc), nil
}

// DisplayDate renders the date the way customers see it in messages (DD/MM/YYYY).
func (a Appointment) DisplayDate() string {
	if a.Date.IsZero() {
		return ""
	}
	return a.Date.Format("02/01/2006")
}

// DisplayTime trims seconds from the start time if present.
func (a Appointment) DisplayTime() string {
	parts := strings.Split(a.StartTime, ":")
	if len(parts) >= 2 {
		return parts[0] + ":" + parts[1]
	}
	return a.StartTime
}

func parseClock(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	var hour, minute int
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("appointments: invalid start time %q", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("appointments: invalid start time %q", value)
	}
	return hour, minute, nil
}
