// Package calendar talks to the seller's external calendar.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/calbook/calbook/services/booking-service/internal/availability"
)

// ErrInvalidGrant means the provider rejected the stored credential and the
// owner has to connect their calendar again.
var ErrInvalidGrant = errors.New("calendar credential rejected")

// Credential is what the provider needs to act for a calendar owner.
type Credential struct {
	RefreshToken string
}

type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

type CreatedEvent struct {
	ID          string
	MeetingLink string
}

type Provider interface {
	QueryBusy(ctx context.Context, cred Credential, timeMin, timeMax time.Time) ([]availability.Interval, error)
	CreateEvent(ctx context.Context, cred Credential, ev Event) (CreatedEvent, error)
	DeleteEvent(ctx context.Context, cred Credential, eventID string) error
}
