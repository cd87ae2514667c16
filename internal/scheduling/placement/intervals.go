package placement

import (
	"sort"
	"time"

	"github.com/camka14/mvp-scheduler/internal/domain/timeslot"
)

// Interval is one concrete weekly occurrence of a template. An empty
// FieldID marks a floating interval that binds to a qualifying field at
// placement time. Fragments produced by splitting keep their parent id.
type Interval struct {
	ID         int
	FieldID    string
	DivisionID string
	Start      time.Time
	End        time.Time
}

// ExpandSlots materializes every concrete interval of the templates inside
// [windowStart, windowEnd], clamped to the window. A template with
// daysOfWeek emits one occurrence per listed day per week; one with a
// multi-field binding emits one interval per field per occurrence. A
// non-repeating template emits only its first occurrence.
func ExpandSlots(slots []timeslot.TimeSlot, windowStart, windowEnd time.Time) []Interval {
	out := make([]Interval, 0, len(slots)*8)
	nextID := 1

	for _, slot := range slots {
		activeStart := windowStart
		if slot.StartDate != nil && slot.StartDate.After(activeStart) {
			activeStart = *slot.StartDate
		}
		activeEnd := windowEnd
		if slot.EndDate != nil && slot.EndDate.Before(activeEnd) {
			activeEnd = *slot.EndDate
		}
		if !activeStart.Before(activeEnd) {
			continue
		}

		days := append([]timeslot.Weekday(nil), slot.Days()...)
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	weeks:
		for week := 0; ; week++ {
			anyInWindow := false
			for _, day := range days {
				date := firstOnOrAfter(activeStart, day).AddDate(0, 0, 7*week)
				start := date.Add(time.Duration(slot.StartMinutes) * time.Minute)
				end := date.Add(time.Duration(slot.EndMinutes) * time.Minute)
				if start.After(activeEnd) {
					continue
				}
				anyInWindow = true
				if start.Before(activeStart) {
					start = activeStart
				}
				if end.After(activeEnd) {
					end = activeEnd
				}
				if !start.Before(end) {
					continue
				}

				bound := slot.BoundFieldIDs()
				if len(bound) == 0 {
					out = append(out, Interval{ID: nextID, DivisionID: slot.DivisionID, Start: start, End: end})
					nextID++
				} else {
					for _, fieldID := range bound {
						out = append(out, Interval{ID: nextID, FieldID: fieldID, DivisionID: slot.DivisionID, Start: start, End: end})
						nextID++
					}
				}
				if !slot.Repeating {
					break weeks
				}
			}
			if !anyInWindow {
				break
			}
		}
	}

	sortIntervals(out)
	return out
}

// firstOnOrAfter returns midnight UTC of the first date with the given
// Monday-based weekday on or after t.
func firstOnOrAfter(t time.Time, day timeslot.Weekday) time.Time {
	t = t.UTC()
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	diff := (int(day) - int(timeslot.FromTime(date.Weekday())) + 7) % 7
	return date.AddDate(0, 0, diff)
}

func sortIntervals(items []Interval) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Start.Equal(items[j].Start) {
			return items[i].Start.Before(items[j].Start)
		}
		if !items[i].End.Equal(items[j].End) {
			return items[i].End.Before(items[j].End)
		}
		return items[i].ID < items[j].ID
	})
}
