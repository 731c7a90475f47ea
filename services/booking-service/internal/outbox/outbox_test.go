package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/calbook/calbook/libs/kafkax"
	"github.com/calbook/calbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestAppointmentConfirmedEvent(t *testing.T) {
	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	evt, err := AppointmentConfirmed(model.Appointment{
		ID:          "appt-1",
		SellerID:    "seller-1",
		BuyerID:     "buyer-1",
		Title:       "Intro call",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		MeetingLink: "https://meet.google.com/abc",
		CreatedAt:   start.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("AppointmentConfirmed: %v", err)
	}
	if evt.EventType != TypeAppointmentConfirmed || evt.AggregateID != "appt-1" || evt.AggregateType != AggregateAppointment {
		t.Fatalf("unexpected envelope %+v", evt)
	}

	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["start_time"] != "2026-03-04T10:00:00Z" || payload["meeting_link"] != "https://meet.google.com/abc" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, ok := payload["google_event_id"]; ok {
		t.Fatal("empty google_event_id should be omitted")
	}
}

func TestToMessage(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	const tp = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	msg := toMessage(context.Background(), Record{
		EventID:     "evt-1",
		AggregateID: "appt-1",
		EventType:   TypeAppointmentConfirmed,
		Payload:     []byte(`{}`),
		Traceparent: tp,
	})
	if msg.Topic != TypeAppointmentConfirmed || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if kafkax.HeaderValue(msg.Headers, "event_id") != "evt-1" {
		t.Fatalf("missing event id header: %v", msg.Headers)
	}
	if got := kafkax.HeaderValue(msg.Headers, "traceparent"); got != tp {
		t.Fatalf("expected stored trace to continue, got %q", got)
	}
}
