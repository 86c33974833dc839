package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salonbook/internal/appointments"
)

func sampleAppointment() appointments.Appointment {
	return appointments.Appointment{
		ID:        uuid.New(),
		UserID:    "owner-1",
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		Status:    appointments.StatusCancelled,
	}
}

func TestActionForCancellation(t *testing.T) {
	assert.Equal(t, ActionUpdate, ActionForCancellation(true))
	assert.Equal(t, ActionDelete, ActionForCancellation(false))
}

func TestHTTPSyncerPostsEvent(t *testing.T) {
	appt := sampleAppointment()
	var got Event
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewHTTPSyncer(srv.URL, "secret", time.Second).Sync(context.Background(), ActionDelete, appt)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, ActionDelete, got.Action)
	assert.Equal(t, appt.ID.String(), got.AppointmentID)
	assert.Equal(t, "owner-1", got.UserID)
}

func TestHTTPSyncerReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "calendar offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTPSyncer(srv.URL, "", time.Second).Sync(context.Background(), ActionUpdate, sampleAppointment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "calendar offline")
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSSyncerEnqueues(t *testing.T) {
	client := &fakeSQS{}
	appt := sampleAppointment()
	require.NoError(t, NewSQSSyncer(client, "https://sqs.local/calendar").Sync(context.Background(), ActionCreate, appt))

	require.Len(t, client.inputs, 1)
	assert.Equal(t, "https://sqs.local/calendar", aws.ToString(client.inputs[0].QueueUrl))
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.inputs[0].MessageBody)), &ev))
	assert.Equal(t, ActionCreate, ev.Action)
	assert.Equal(t, appt.ID.String(), ev.AppointmentID)

	client.err = errors.New("throttled")
	assert.Error(t, NewSQSSyncer(client, "q").Sync(context.Background(), ActionCreate, appt))
}

type recordingSyncer struct {
	mu      sync.Mutex
	actions []Action
	ctxErr  error
	err     error
}

func (r *recordingSyncer) Sync(ctx context.Context, action Action, appt appointments.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	r.ctxErr = ctx.Err()
	return r.err
}

func TestBridgeSurvivesCancelledRequestContext(t *testing.T) {
	syncer := &recordingSyncer{}
	bridge := NewBridge(syncer, time.Second, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bridge.Sync(ctx, ActionUpdate, sampleAppointment())
	bridge.Wait()

	assert.Equal(t, []Action{ActionUpdate}, syncer.actions)
	assert.NoError(t, syncer.ctxErr)
}

func TestBridgeReportsErrors(t *testing.T) {
	syncer := &recordingSyncer{err: errors.New("boom")}
	errs := make(chan error, 1)
	bridge := NewBridge(syncer, time.Second, nil, nil, WithErrors(errs))

	bridge.Sync(context.Background(), ActionDelete, sampleAppointment())
	bridge.Wait()

	select {
	case err := <-errs:
		assert.EqualError(t, err, "boom")
	default:
		t.Fatal("expected sync error")
	}
}

func TestNilBridgeIsNoop(t *testing.T) {
	var bridge *Bridge
	bridge.Sync(context.Background(), ActionDelete, sampleAppointment())
	bridge.Wait()
}
