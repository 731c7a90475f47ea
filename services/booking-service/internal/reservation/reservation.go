// Package reservation holds short-lived locks on a seller's slot while a
// booking is in flight.
package reservation

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var ErrHeld = errors.New("slot reservation held by another booking")

// Locker reserves (seller, slot start) keys. Release must be called with the
// func returned by Acquire; it only frees a reservation the caller still owns.
type Locker interface {
	Acquire(ctx context.Context, sellerID string, slotStart time.Time) (release func(context.Context) error, err error)
}

func key(prefix, sellerID string, slotStart time.Time) string {
	return prefix + ":" + sellerID + ":" + strconv.FormatInt(slotStart.UTC().Unix(), 10)
}
