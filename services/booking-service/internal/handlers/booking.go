package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/calbook/calbook/libs/auth"
	"github.com/calbook/calbook/libs/httpx"
	"github.com/calbook/calbook/services/booking-service/internal/booking"
	"github.com/calbook/calbook/services/booking-service/internal/model"
)

type createAppointmentRequest struct {
	SellerID    string `json:"seller_id"`
	BuyerID     string `json:"buyer_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sellerID := strings.TrimSpace(q.Get("seller_id"))
	if sellerID == "" {
		sellerID = strings.TrimSpace(q.Get("sellerId"))
	}
	rawDate := strings.TrimSpace(q.Get("date"))
	if sellerID == "" || rawDate == "" {
		httpx.WriteError(w, http.StatusBadRequest, "seller_id and date are required")
		return
	}
	date, err := time.Parse(time.DateOnly, rawDate)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	slots, err := h.engine.ListAvailableSlots(r.Context(), sellerID, date)
	if err != nil {
		h.writeEngineError(w, r, "list availability", err)
		return
	}
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{Start: formatTime(s.Start), End: formatTime(s.End)})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if b := strings.TrimSpace(req.BuyerID); b != "" && b != id.UserID {
		httpx.WriteError(w, http.StatusForbidden, "cannot book on behalf of another user")
		return
	}
	if strings.TrimSpace(req.StartTime) == "" || strings.TrimSpace(req.EndTime) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "start_time and end_time are required")
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid start_time")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid end_time")
		return
	}

	appt, err := h.engine.BookAppointment(r.Context(), booking.BookingRequest{
		SellerID:    req.SellerID,
		BuyerID:     id.UserID,
		Slot:        model.Slot{Start: start, End: end},
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		h.writeEngineError(w, r, "book appointment", err)
		return
	}
	h.logger.InfoContext(r.Context(), "appointment booked",
		"appointment_id", appt.ID,
		"seller_id", appt.SellerID,
		"buyer_id", appt.BuyerID,
	)
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	appts, err := h.engine.ListAppointments(r.Context(), id.UserID)
	if err != nil {
		h.writeEngineError(w, r, "list appointments", err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}
