package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/salonbook/internal/appointments"
)

// Action is the change mirrored to the external calendar.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ActionForCancellation picks the calendar action for a cancelled slot. A late
// cancellation stays visible on the calendar as cancelled.
func ActionForCancellation(late bool) Action {
	if late {
		return ActionUpdate
	}
	return ActionDelete
}

// Syncer pushes one appointment change to the calendar integration.
type Syncer interface {
	Sync(ctx context.Context, action Action, appt appointments.Appointment) error
}

// Event is the payload both syncers deliver.
type Event struct {
	Action        Action                   `json:"action"`
	AppointmentID string                   `json:"appointmentId"`
	UserID        string                   `json:"userId"`
	Appointment   appointments.Appointment `json:"appointment"`
}

func newEvent(action Action, appt appointments.Appointment) Event {
	return Event{Action: action, AppointmentID: appt.ID.String(), UserID: appt.UserID, Appointment: appt}
}

// HTTPSyncer invokes the calendar sync function over HTTP.
type HTTPSyncer struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPSyncer(url, token string, timeout time.Duration) *HTTPSyncer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSyncer{url: url, token: token, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSyncer) Sync(ctx context.Context, action Action, appt appointments.Appointment) error {
	payload, err := json.Marshal(newEvent(action, appt))
	if err != nil {
		return fmt.Errorf("calendar: marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calendar: sync request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("calendar: sync returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// SQSAPI is the subset of the SQS client used for publishing.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSyncer enqueues calendar events for a downstream worker.
type SQSSyncer struct {
	client   SQSAPI
	queueURL string
}

func NewSQSSyncer(client SQSAPI, queueURL string) *SQSSyncer {
	if client == nil {
		panic("calendar: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("calendar: SQS queueURL cannot be empty")
	}
	return &SQSSyncer{client: client, queueURL: queueURL}
}

func (s *SQSSyncer) Sync(ctx context.Context, action Action, appt appointments.Appointment) error {
	payload, err := json.Marshal(newEvent(action, appt))
	if err != nil {
		return fmt.Errorf("calendar: marshal event: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("calendar: failed to send SQS message: %w", err)
	}
	return nil
}
