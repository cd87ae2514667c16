package timeslot

import (
	"fmt"
	"time"
)

// Weekday uses the platform's Monday-based encoding: Monday=0 .. Sunday=6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// FromTime converts a stdlib weekday (Sunday=0) to the Monday-based encoding.
func FromTime(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

// TimeSlot is a weekly recurring template. Concrete intervals are expanded
// at scheduling time. StartMinutes/EndMinutes count from midnight UTC.
// An empty field binding means "any qualifying field".
type TimeSlot struct {
	ID           string
	DayOfWeek    Weekday
	DaysOfWeek   []Weekday
	StartDate    *time.Time
	EndDate      *time.Time
	Repeating    bool
	StartMinutes int
	EndMinutes   int
	FieldID      string
	FieldIDs     []string
	DivisionID   string
}

func (s TimeSlot) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("time slot id is required")
	}
	if s.StartMinutes < 0 || s.EndMinutes > 24*60 || s.StartMinutes >= s.EndMinutes {
		return fmt.Errorf("time slot window %d..%d is invalid", s.StartMinutes, s.EndMinutes)
	}
	for _, d := range s.Days() {
		if d < Monday || d > Sunday {
			return fmt.Errorf("time slot day %d is out of range", d)
		}
	}

	return nil
}

// Days returns the weekdays the template applies to; DaysOfWeek wins over
// the single DayOfWeek when present.
func (s TimeSlot) Days() []Weekday {
	if len(s.DaysOfWeek) > 0 {
		return s.DaysOfWeek
	}
	return []Weekday{s.DayOfWeek}
}

// BoundFieldIDs returns the explicit field binding, or nil for a floating
// template.
func (s TimeSlot) BoundFieldIDs() []string {
	if len(s.FieldIDs) > 0 {
		return s.FieldIDs
	}
	if s.FieldID != "" {
		return []string{s.FieldID}
	}
	return nil
}
