package placement

import (
	"time"

	"github.com/camka14/mvp-scheduler/internal/domain/match"
)

// SubtractMatches carves already scheduled matches out of a free-interval
// set, reconstructing the capacity left for a relocation pass. An interval
// bound to the match's field is split around the occupied window; floating
// intervals are split too, since the binding pass cannot see past a busy
// instant inside them. Fragments shorter than minDuration are dropped.
func SubtractMatches(free []Interval, matches []*match.Match, minDuration time.Duration) []Interval {
	out := append([]Interval(nil), free...)

	for _, m := range matches {
		if m.Start.IsZero() || m.End.IsZero() {
			continue
		}
		next := make([]Interval, 0, len(out))
		for _, iv := range out {
			if iv.FieldID != "" && iv.FieldID != m.FieldID {
				next = append(next, iv)
				continue
			}
			if !iv.Start.Before(m.End) || !m.Start.Before(iv.End) {
				next = append(next, iv)
				continue
			}
			if leading := (Interval{ID: iv.ID, FieldID: iv.FieldID, DivisionID: iv.DivisionID, Start: iv.Start, End: m.Start}); leading.End.Sub(leading.Start) >= minDuration {
				next = append(next, leading)
			}
			if trailing := (Interval{ID: iv.ID, FieldID: iv.FieldID, DivisionID: iv.DivisionID, Start: m.End, End: iv.End}); trailing.End.Sub(trailing.Start) >= minDuration {
				next = append(next, trailing)
			}
		}
		out = next
	}

	sortIntervals(out)
	return out
}
