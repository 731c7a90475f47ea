package model

import (
	"errors"
	"time"
)

const (
	RoleSeller = "seller"
	RoleBuyer  = "buyer"

	StatusConfirmed = "confirmed"
)

type User struct {
	ID          string
	Name        string
	Email       string
	Image       string
	Role        string
	HasCalendar bool
}

type Appointment struct {
	ID            string
	Title         string
	Description   string
	StartTime     time.Time
	EndTime       time.Time
	SellerID      string
	BuyerID       string
	Status        string
	GoogleEventID string
	MeetingLink   string
	CreatedAt     time.Time

	Seller User
	Buyer  User
}

// Slot is a candidate booking window. It is never stored on its own.
type Slot struct {
	Start time.Time
	End   time.Time
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNoCredential = errors.New("no calendar credential stored")
	// ErrSlotTaken is returned by stores that already hold a confirmed
	// appointment for the same seller and start time.
	ErrSlotTaken = errors.New("slot already booked")
)
