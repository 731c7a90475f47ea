// Package booking computes seller availability and books appointments
// against the seller's external calendar.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calbook/calbook/services/booking-service/internal/availability"
	"github.com/calbook/calbook/services/booking-service/internal/calendar"
	"github.com/calbook/calbook/services/booking-service/internal/model"
	"github.com/calbook/calbook/services/booking-service/internal/reservation"
)

type Users interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	RefreshToken(ctx context.Context, id string) (string, error)
}

type Appointments interface {
	Create(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	ListByParticipant(ctx context.Context, userID string) ([]model.Appointment, error)
}

type Engine struct {
	users    Users
	appts    Appointments
	calendar calendar.Provider
	locker   reservation.Locker
	hours    availability.WorkingHours
	logger   *slog.Logger
}

func NewEngine(users Users, appts Appointments, cal calendar.Provider, locker reservation.Locker, hours availability.WorkingHours, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		users:    users,
		appts:    appts,
		calendar: cal,
		locker:   locker,
		hours:    hours,
		logger:   logger,
	}
}

type BookingRequest struct {
	SellerID    string
	BuyerID     string
	Slot        model.Slot
	Title       string
	Description string
}

// ListAvailableSlots returns the open slots of the seller's working day on
// date, earliest first. Busy data comes from a single free/busy query over
// the whole working window.
func (e *Engine) ListAvailableSlots(ctx context.Context, sellerID string, date time.Time) ([]model.Slot, error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return nil, fmt.Errorf("%w: seller_id is required", ErrValidation)
	}
	if _, err := e.resolveUser(ctx, sellerID, false); err != nil {
		return nil, err
	}
	cred, err := e.credential(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	windowStart, windowEnd := e.hours.Window(date)
	busy, err := e.calendar.QueryBusy(ctx, cred, windowStart, windowEnd)
	if err != nil {
		return nil, e.providerError(ctx, "free/busy query failed", sellerID, err)
	}

	starts := availability.AvailableSlots(windowStart, windowEnd, e.hours.Slot, e.hours.Slot, busy)
	slots := make([]model.Slot, 0, len(starts))
	for _, s := range starts {
		slots = append(slots, model.Slot{Start: s, End: s.Add(e.hours.Slot)})
	}
	return slots, nil
}

// BookAppointment creates the calendar event first and records the
// appointment second. When the record cannot be written the event is
// deleted again; the persistence error is still returned.
func (e *Engine) BookAppointment(ctx context.Context, req BookingRequest) (model.Appointment, error) {
	req.SellerID = strings.TrimSpace(req.SellerID)
	req.BuyerID = strings.TrimSpace(req.BuyerID)
	req.Title = strings.TrimSpace(req.Title)
	if err := validate(req); err != nil {
		return model.Appointment{}, err
	}

	seller, err := e.resolveUser(ctx, req.SellerID, true)
	if err != nil {
		return model.Appointment{}, err
	}
	buyer, err := e.resolveUser(ctx, req.BuyerID, true)
	if err != nil {
		return model.Appointment{}, err
	}
	cred, err := e.credential(ctx, seller.ID)
	if err != nil {
		return model.Appointment{}, err
	}

	release, err := e.locker.Acquire(ctx, seller.ID, req.Slot.Start)
	if errors.Is(err, reservation.ErrHeld) {
		return model.Appointment{}, fmt.Errorf("%w: %s at %s", ErrConflict, seller.ID, req.Slot.Start.UTC().Format(time.RFC3339))
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			e.logger.WarnContext(ctx, "slot reservation release failed", "seller_id", seller.ID, "err", err)
		}
	}()

	created, err := e.calendar.CreateEvent(ctx, cred, calendar.Event{
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Slot.Start,
		End:         req.Slot.End,
		Attendees:   []string{seller.Email, buyer.Email},
	})
	if err != nil {
		return model.Appointment{}, e.providerError(ctx, "calendar event creation failed", seller.ID, err)
	}

	appt, err := e.appts.Create(ctx, model.Appointment{
		Title:         req.Title,
		Description:   req.Description,
		StartTime:     req.Slot.Start.UTC(),
		EndTime:       req.Slot.End.UTC(),
		SellerID:      seller.ID,
		BuyerID:       buyer.ID,
		Status:        model.StatusConfirmed,
		GoogleEventID: created.ID,
		MeetingLink:   created.MeetingLink,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "appointment persist failed",
			"seller_id", seller.ID, "buyer_id", buyer.ID, "google_event_id", created.ID, "err", err)
		e.compensate(ctx, cred, seller.ID, created.ID)
		if errors.Is(err, model.ErrSlotTaken) {
			return model.Appointment{}, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	appt.Seller = seller
	appt.Buyer = buyer
	return appt, nil
}

// ListAppointments returns every appointment where userID is seller or
// buyer, earliest first.
func (e *Engine) ListAppointments(ctx context.Context, userID string) ([]model.Appointment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	appts, err := e.appts.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	return appts, nil
}

func validate(req BookingRequest) error {
	var problems []string
	if req.SellerID == "" {
		problems = append(problems, "seller_id is required")
	}
	if req.BuyerID == "" {
		problems = append(problems, "buyer_id is required")
	}
	if req.Title == "" {
		problems = append(problems, "title is required")
	}
	if req.Slot.Start.IsZero() || req.Slot.End.IsZero() {
		problems = append(problems, "start and end are required")
	} else if !req.Slot.End.After(req.Slot.Start) {
		problems = append(problems, "end must be after start")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (e *Engine) resolveUser(ctx context.Context, id string, needEmail bool) (model.User, error) {
	u, err := e.users.GetByID(ctx, id)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("%w: load user %s: %v", ErrPersistence, id, err)
	}
	if needEmail && u.Email == "" {
		return model.User{}, fmt.Errorf("%w: %s has no email", ErrNotFound, id)
	}
	return u, nil
}

func (e *Engine) credential(ctx context.Context, sellerID string) (calendar.Credential, error) {
	token, err := e.users.RefreshToken(ctx, sellerID)
	switch {
	case errors.Is(err, model.ErrNoCredential), err == nil && token == "":
		return calendar.Credential{}, fmt.Errorf("%w: %s", ErrCredential, sellerID)
	case errors.Is(err, model.ErrUserNotFound):
		return calendar.Credential{}, fmt.Errorf("%w: %s", ErrNotFound, sellerID)
	case err != nil:
		return calendar.Credential{}, fmt.Errorf("%w: load credential: %v", ErrPersistence, err)
	}
	return calendar.Credential{RefreshToken: token}, nil
}

func (e *Engine) providerError(ctx context.Context, msg, sellerID string, err error) error {
	if errors.Is(err, calendar.ErrInvalidGrant) {
		e.logger.WarnContext(ctx, msg, "seller_id", sellerID, "err", err)
		return fmt.Errorf("%w: %v", ErrCredential, err)
	}
	e.logger.ErrorContext(ctx, msg, "seller_id", sellerID, "err", err)
	return fmt.Errorf("%w: %v", ErrProvider, err)
}

func (e *Engine) compensate(ctx context.Context, cred calendar.Credential, sellerID, eventID string) {
	if eventID == "" {
		return
	}
	if err := e.calendar.DeleteEvent(context.WithoutCancel(ctx), cred, eventID); err != nil {
		e.logger.ErrorContext(ctx, "orphaned calendar event left behind",
			"seller_id", sellerID, "google_event_id", eventID, "err", err)
		return
	}
	e.logger.InfoContext(ctx, "calendar event rolled back", "seller_id", sellerID, "google_event_id", eventID)
}
