package handlers

import (
	"time"

	"github.com/calbook/calbook/services/booking-service/internal/model"
)

type slotItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type userItem struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

type profileItem struct {
	userItem
	Role        string `json:"role,omitempty"`
	HasCalendar bool   `json:"has_calendar"`
}

type appointmentItem struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	SellerID      string   `json:"seller_id"`
	BuyerID       string   `json:"buyer_id"`
	Status        string   `json:"status"`
	GoogleEventID string   `json:"google_event_id,omitempty"`
	MeetingLink   string   `json:"meeting_link,omitempty"`
	CreatedAt     string   `json:"created_at"`
	Seller        userItem `json:"seller"`
	Buyer         userItem `json:"buyer"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toUserItem(u model.User) userItem {
	return userItem{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}

func toProfileItem(u model.User) profileItem {
	return profileItem{userItem: toUserItem(u), Role: u.Role, HasCalendar: u.HasCalendar}
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		ID:            a.ID,
		Title:         a.Title,
		Description:   a.Description,
		StartTime:     formatTime(a.StartTime),
		EndTime:       formatTime(a.EndTime),
		SellerID:      a.SellerID,
		BuyerID:       a.BuyerID,
		Status:        a.Status,
		GoogleEventID: a.GoogleEventID,
		MeetingLink:   a.MeetingLink,
		CreatedAt:     formatTime(a.CreatedAt),
		Seller:        toUserItem(a.Seller),
		Buyer:         toUserItem(a.Buyer),
	}
}
