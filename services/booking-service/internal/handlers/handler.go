package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/calbook/calbook/libs/httpx"
	"github.com/calbook/calbook/services/booking-service/internal/booking"
	"github.com/calbook/calbook/services/booking-service/internal/model"
	"github.com/calbook/calbook/services/booking-service/internal/storage"
)

type Engine interface {
	ListAvailableSlots(ctx context.Context, sellerID string, date time.Time) ([]model.Slot, error)
	BookAppointment(ctx context.Context, req booking.BookingRequest) (model.Appointment, error)
	ListAppointments(ctx context.Context, userID string) ([]model.Appointment, error)
}

type Accounts interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	UpsertCredential(ctx context.Context, in storage.CredentialUpsert) (model.User, error)
	SetRole(ctx context.Context, id, role string) (model.User, error)
	ListSellers(ctx context.Context) ([]model.User, error)
}

type Handler struct {
	engine   Engine
	accounts Accounts
	logger   *slog.Logger
}

func New(engine Engine, accounts Accounts, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, accounts: accounts, logger: logger}
}

// Register mounts the API on mux. Routes that act for a user are wrapped
// with requireAuth.
func (h *Handler) Register(mux *http.ServeMux, requireAuth httpx.Middleware) {
	protect := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, requireAuth)
	}

	mux.HandleFunc("GET /api/v1/availability", h.Availability)
	mux.HandleFunc("GET /api/v1/sellers", h.Sellers)
	mux.Handle("GET /api/v1/appointments", protect(h.ListAppointments))
	mux.Handle("POST /api/v1/appointments", protect(h.CreateAppointment))
	mux.Handle("GET /api/v1/me", protect(h.Me))
	mux.Handle("POST /api/v1/seller/role", protect(h.BecomeSeller))
	mux.Handle("POST /api/v1/auth/store-token", protect(h.StoreToken))
}

// writeEngineError maps engine failures to a status and a generic message;
// the detail only goes to the log.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, booking.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, booking.ErrNotFound):
		status, msg = http.StatusNotFound, "seller or buyer not found"
	case errors.Is(err, booking.ErrCredential):
		status, msg = http.StatusPreconditionFailed, "seller must reconnect their calendar"
	case errors.Is(err, booking.ErrConflict):
		status, msg = http.StatusConflict, "slot is no longer available"
	case errors.Is(err, booking.ErrProvider):
		status, msg = http.StatusBadGateway, "calendar provider unavailable"
	case errors.Is(err, booking.ErrPersistence):
		status, msg = http.StatusInternalServerError, "failed to save appointment"
	}

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, op+" failed",
		"status", status,
		"request_id", httpx.RequestIDFromContext(r.Context()),
		"err", err,
	)
	httpx.WriteError(w, status, msg)
}
