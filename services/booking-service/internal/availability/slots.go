package availability

import (
	"errors"
	"time"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// WorkingHours is the daily bookable window, [StartHour, EndHour) local time
// in Location, cut into consecutive slots of length Slot.
type WorkingHours struct {
	StartHour int
	EndHour   int
	Slot      time.Duration
	Location  *time.Location
}

func DefaultWorkingHours(loc *time.Location) WorkingHours {
	if loc == nil {
		loc = time.UTC
	}
	return WorkingHours{StartHour: 9, EndHour: 17, Slot: time.Hour, Location: loc}
}

func (w WorkingHours) Validate() error {
	if w.Location == nil {
		return errors.New("working hours: location is required")
	}
	if w.StartHour < 0 || w.EndHour > 24 || w.EndHour <= w.StartHour {
		return errors.New("working hours: start hour must be before end hour within 0..24")
	}
	if w.Slot <= 0 || w.Slot > time.Duration(w.EndHour-w.StartHour)*time.Hour {
		return errors.New("working hours: slot length must fit the window")
	}
	return nil
}

// Window returns the working window for the calendar date of day,
// interpreted in w.Location.
func (w WorkingHours) Window(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, w.StartHour, 0, 0, 0, w.Location)
	end := time.Date(y, m, d, w.EndHour, 0, 0, 0, w.Location)
	return start, end
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if !Overlaps(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

// Overlaps reports whether [start,end) intersects any busy interval.
// Touching endpoints do not overlap.
func Overlaps(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	return false
}
