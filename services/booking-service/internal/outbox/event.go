package outbox

import (
	"encoding/json"
	"time"

	"github.com/calbook/calbook/services/booking-service/internal/model"
)

const (
	AggregateAppointment = "appointment"

	TypeAppointmentConfirmed = "booking.appointment.confirmed.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type appointmentConfirmed struct {
	AppointmentID string    `json:"appointment_id"`
	SellerID      string    `json:"seller_id"`
	BuyerID       string    `json:"buyer_id"`
	Title         string    `json:"title"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	GoogleEventID string    `json:"google_event_id,omitempty"`
	MeetingLink   string    `json:"meeting_link,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func AppointmentConfirmed(appt model.Appointment) (Event, error) {
	payload, err := json.Marshal(appointmentConfirmed{
		AppointmentID: appt.ID,
		SellerID:      appt.SellerID,
		BuyerID:       appt.BuyerID,
		Title:         appt.Title,
		StartTime:     appt.StartTime.UTC(),
		EndTime:       appt.EndTime.UTC(),
		GoogleEventID: appt.GoogleEventID,
		MeetingLink:   appt.MeetingLink,
		OccurredAt:    appt.CreatedAt.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   appt.ID,
		EventType:     TypeAppointmentConfirmed,
		Payload:       payload,
	}, nil
}
