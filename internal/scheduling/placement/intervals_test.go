package placement

import (
	"testing"
	"time"

	"github.com/camka14/mvp-scheduler/internal/domain/timeslot"
)

// The window opens Monday 2026-06-01; the first Saturday inside it is
// 2026-06-06.
var (
	windowStart = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2026, 6, 21, 23, 59, 0, 0, time.UTC)
)

func TestExpandSlots_WeeklyOccurrences(t *testing.T) {
	t.Parallel()

	slots := []timeslot.TimeSlot{{
		ID:           "sat",
		DayOfWeek:    timeslot.Saturday,
		Repeating:    true,
		StartMinutes: 9 * 60,
		EndMinutes:   17 * 60,
		FieldID:      "f1",
	}}

	got := ExpandSlots(slots, windowStart, windowEnd)
	if len(got) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(got))
	}

	first := got[0]
	if !first.Start.Equal(time.Date(2026, 6, 6, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first start: %s", first.Start)
	}
	if !first.End.Equal(time.Date(2026, 6, 6, 17, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first end: %s", first.End)
	}
	if first.FieldID != "f1" {
		t.Fatalf("unexpected field binding: %q", first.FieldID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Start.Sub(got[i-1].Start) != 7*24*time.Hour {
			t.Fatalf("occurrences not a week apart: %s then %s", got[i-1].Start, got[i].Start)
		}
	}
}

func TestExpandSlots_MultipleDaysPerWeek(t *testing.T) {
	t.Parallel()

	slots := []timeslot.TimeSlot{{
		ID:           "weekend",
		DaysOfWeek:   []timeslot.Weekday{timeslot.Sunday, timeslot.Saturday},
		Repeating:    true,
		StartMinutes: 10 * 60,
		EndMinutes:   12 * 60,
	}}

	got := ExpandSlots(slots, windowStart, windowEnd)
	if len(got) != 6 {
		t.Fatalf("expected 6 occurrences over 3 weeks, got %d", len(got))
	}
	if got[0].Start.Weekday() != time.Saturday || got[1].Start.Weekday() != time.Sunday {
		t.Fatalf("occurrences not ordered Saturday then Sunday: %s, %s", got[0].Start.Weekday(), got[1].Start.Weekday())
	}
	if got[0].FieldID != "" {
		t.Fatalf("floating template must not bind a field, got %q", got[0].FieldID)
	}
}

func TestExpandSlots_MultiFieldBinding(t *testing.T) {
	t.Parallel()

	slots := []timeslot.TimeSlot{{
		ID:           "courts",
		DayOfWeek:    timeslot.Saturday,
		Repeating:    false,
		StartMinutes: 9 * 60,
		EndMinutes:   11 * 60,
		FieldIDs:     []string{"f1", "f2"},
	}}

	got := ExpandSlots(slots, windowStart, windowEnd)
	if len(got) != 2 {
		t.Fatalf("expected one interval per bound field, got %d", len(got))
	}
	if got[0].FieldID != "f1" || got[1].FieldID != "f2" {
		t.Fatalf("unexpected field bindings: %q, %q", got[0].FieldID, got[1].FieldID)
	}
	if !got[0].Start.Equal(got[1].Start) {
		t.Fatalf("bound intervals should share the occurrence window")
	}
}

func TestExpandSlots_NonRepeatingEmitsOnce(t *testing.T) {
	t.Parallel()

	slots := []timeslot.TimeSlot{{
		ID:           "one-off",
		DayOfWeek:    timeslot.Friday,
		Repeating:    false,
		StartMinutes: 18 * 60,
		EndMinutes:   21 * 60,
	}}

	got := ExpandSlots(slots, windowStart, windowEnd)
	if len(got) != 1 {
		t.Fatalf("expected a single occurrence, got %d", len(got))
	}
	if got[0].Start.Weekday() != time.Friday {
		t.Fatalf("unexpected weekday: %s", got[0].Start.Weekday())
	}
}

func TestExpandSlots_DateBoundsClamp(t *testing.T) {
	t.Parallel()

	activeFrom := time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC)
	activeTo := time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)
	slots := []timeslot.TimeSlot{{
		ID:           "bounded",
		DayOfWeek:    timeslot.Saturday,
		Repeating:    true,
		StartMinutes: 9 * 60,
		EndMinutes:   17 * 60,
		StartDate:    &activeFrom,
		EndDate:      &activeTo,
	}}

	got := ExpandSlots(slots, windowStart, windowEnd)
	if len(got) != 1 {
		t.Fatalf("expected 1 occurrence inside the active range, got %d", len(got))
	}
	if !got[0].Start.Equal(time.Date(2026, 6, 13, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start: %s", got[0].Start)
	}
}

func TestExpandSlots_DivisionCarriesThrough(t *testing.T) {
	t.Parallel()

	slots := []timeslot.TimeSlot{{
		ID:           "div-slot",
		DayOfWeek:    timeslot.Monday,
		Repeating:    false,
		StartMinutes: 9 * 60,
		EndMinutes:   10 * 60,
		DivisionID:   "div-a",
	}}

	got := ExpandSlots(slots, windowStart, windowEnd)
	if len(got) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(got))
	}
	if got[0].DivisionID != "div-a" {
		t.Fatalf("division binding lost: %q", got[0].DivisionID)
	}
}
