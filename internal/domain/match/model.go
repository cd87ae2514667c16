package match

import (
	"fmt"
	"sort"
	"time"
)

// Set result values.
const (
	SetNotPlayed = 0
	SetTeam1Won  = 1
	SetTeam2Won  = 2
)

// Match is one scheduled game. MatchID is the 1-based id unique within the
// event; ID is the storage identity. Link fields hold match ids, 0 meaning
// absent.
type Match struct {
	ID      string
	EventID string
	MatchID int

	Team1 TeamRef
	Team2 TeamRef

	RefereeID     string
	TeamRefereeID string

	FieldID string
	Start   time.Time
	End     time.Time

	Team1Points []int
	Team2Points []int
	SetResults  []int

	LosersBracket    bool
	WinnerNextID     int
	LoserNextID      int
	PreviousLeftID   int
	PreviousRightID  int
	Locked           bool
	RefereeCheckedIn bool
	DivisionID       string

	// Round is the abstract round the match belongs to; placement orders by
	// it. Not part of the wire shape.
	Round int
	// Finalized is set once the winner has been applied to team records and
	// bracket links. Not part of the wire shape.
	Finalized bool
}

// NewWithSets returns a match with score arrays sized for setCount sets.
func NewWithSets(setCount int) *Match {
	if setCount < 1 {
		setCount = 1
	}
	return &Match{
		Team1Points: make([]int, setCount),
		Team2Points: make([]int, setCount),
		SetResults:  make([]int, setCount),
	}
}

func (m *Match) ValidateScores() error {
	if len(m.Team1Points) != len(m.Team2Points) || len(m.Team1Points) != len(m.SetResults) {
		return fmt.Errorf("score arrays must have equal length: %d/%d/%d",
			len(m.Team1Points), len(m.Team2Points), len(m.SetResults))
	}
	for i, r := range m.SetResults {
		if r != SetNotPlayed && r != SetTeam1Won && r != SetTeam2Won {
			return fmt.Errorf("set result %d at index %d is out of range", r, i)
		}
	}

	return nil
}

// AllSetsDecided reports whether every set result is non-zero.
func (m *Match) AllSetsDecided() bool {
	if len(m.SetResults) == 0 {
		return false
	}
	for _, r := range m.SetResults {
		if r == SetNotPlayed {
			return false
		}
	}
	return true
}

// Untouched reports whether no set has been recorded at all. Only untouched
// matches qualify for auto-rescheduling; a partially scored match is in
// progress and stays where it is.
func (m *Match) Untouched() bool {
	for _, r := range m.SetResults {
		if r != SetNotPlayed {
			return false
		}
	}
	return true
}

// SetsWon counts sets won by each side.
func (m *Match) SetsWon() (team1, team2 int) {
	for _, r := range m.SetResults {
		switch r {
		case SetTeam1Won:
			team1++
		case SetTeam2Won:
			team2++
		}
	}
	return team1, team2
}

// TotalPoints sums per-set points for each side.
func (m *Match) TotalPoints() (team1, team2 int) {
	for _, p := range m.Team1Points {
		team1 += p
	}
	for _, p := range m.Team2Points {
		team2 += p
	}
	return team1, team2
}

// Overlaps reports whether the two half-open intervals [Start, End) collide.
func (m *Match) Overlaps(start, end time.Time) bool {
	if m.Start.IsZero() || m.End.IsZero() {
		return false
	}
	return m.Start.Before(end) && start.Before(m.End)
}

// Clone returns a deep copy.
func (m *Match) Clone() *Match {
	out := *m
	out.Team1Points = append([]int(nil), m.Team1Points...)
	out.Team2Points = append([]int(nil), m.Team2Points...)
	out.SetResults = append([]int(nil), m.SetResults...)
	return &out
}

// SortByID orders matches by their in-event match id.
func SortByID(matches []*Match) {
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].MatchID < matches[j].MatchID
	})
}
