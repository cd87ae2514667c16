package event

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/camka14/mvp-scheduler/internal/domain/field"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateForScheduling checks a snapshot for every condition that makes a
// schedule request unusable and returns the full list of human-readable
// problems. An empty slice means the event can be scheduled.
func ValidateForScheduling(s *Snapshot) []string {
	var problems []string

	e := s.Event
	if err := validate.Struct(e); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				problems = append(problems, fmt.Sprintf("event field %s failed %s validation", fe.Field(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if !e.NoFixedEnd && !e.Start.Before(e.End) {
		problems = append(problems, "event start must be before its end when the end date is fixed")
	}

	if e.UsesSets {
		if e.SetsPerMatch < 1 {
			problems = append(problems, "setsPerMatch must be at least 1 when sets are used")
		}
		if e.SetDurationMinutes*e.SetsPerMatch <= 0 {
			problems = append(problems, "set duration times sets per match must be positive")
		}
	} else if e.MatchDurationMinutes <= 0 {
		problems = append(problems, "matchDurationMinutes must be positive")
	}

	if len(s.Divisions) == 0 && !e.SingleDivision {
		problems = append(problems, "event has no divisions")
	}

	ids, buckets := s.DivisionPartition()
	for _, id := range ids {
		name := id
		for _, d := range s.Divisions {
			if d.ID == id && d.Name != "" {
				name = d.Name
			}
		}
		if len(field.Supporting(s.Fields, id)) == 0 {
			problems = append(problems, fmt.Sprintf("no fields are available for division %s", name))
		}
		if e.IncludePlayoffs && e.PlayoffTeamCount > len(buckets[id]) {
			problems = append(problems, fmt.Sprintf("playoff team count %d exceeds the %d participating teams in division %s",
				e.PlayoffTeamCount, len(buckets[id]), name))
		}
	}

	if len(s.Slots) == 0 {
		problems = append(problems, "event has no time slots")
	}

	return problems
}
