package event

import (
	"time"

	"github.com/camka14/mvp-scheduler/internal/domain/division"
	"github.com/camka14/mvp-scheduler/internal/domain/field"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
	"github.com/camka14/mvp-scheduler/internal/domain/timeslot"
)

// Kind is the event type.
type Kind string

const (
	KindLeague     Kind = "LEAGUE"
	KindTournament Kind = "TOURNAMENT"
	KindCasual     Kind = "CASUAL"
	KindTemplate   Kind = "TEMPLATE"
)

// Event is the scheduler's configuration root. Relations are stored as id
// sets; hydrated entities travel in a Snapshot.
type Event struct {
	ID             string `validate:"required"`
	Name           string `validate:"required"`
	Start          time.Time
	End            time.Time
	NoFixedEnd     bool
	Kind           Kind `validate:"required,oneof=LEAGUE TOURNAMENT CASUAL TEMPLATE"`
	SingleDivision bool
	TeamSignup     bool

	MaxParticipants int `validate:"min=0"`
	TeamSizeLimit   int `validate:"min=0"`

	MatchDurationMinutes int `validate:"min=0"`
	SetDurationMinutes   int `validate:"min=0"`
	SetsPerMatch         int `validate:"min=0"`
	UsesSets             bool
	RestMinutes          int `validate:"min=0"`

	IncludePlayoffs   bool
	PlayoffTeamCount  int `validate:"min=0"`
	DoubleElimination bool
	WinnerSetCount    int `validate:"min=0"`
	LoserSetCount     int `validate:"min=0"`

	WinnerBracketPointsToVictory []int
	LoserBracketPointsToVictory  []int
	PointsToVictory              []int

	GamesPerOpponent int `validate:"min=0"`
	DoTeamsRef       bool

	DivisionIDs    []string
	FieldIDs       []string
	TimeSlotIDs    []string
	TeamIDs        []string
	ParticipantIDs []string
	FreeAgentIDs   []string
	WaitListIDs    []string
	RefereeIDs     []string

	HostID         string
	OrganizationID string
}

// MatchDuration is the wall-clock length of one match for this event.
func (e *Event) MatchDuration() time.Duration {
	minutes := e.MatchDurationMinutes
	if e.UsesSets {
		minutes = e.SetDurationMinutes * e.SetsPerMatch
	}
	return time.Duration(minutes) * time.Minute
}

// SetsPerRegularMatch is the score-array length for non-bracket matches.
func (e *Event) SetsPerRegularMatch() int {
	if e.UsesSets && e.SetsPerMatch > 0 {
		return e.SetsPerMatch
	}
	return 1
}

// Snapshot is an event plus every relation the scheduler consumes, as
// returned by Store.LoadEventWithRelations.
type Snapshot struct {
	Event     *Event
	Divisions []division.Division
	Fields    []field.Field
	Slots     []timeslot.TimeSlot
	Teams     []team.Team
	Matches   []*match.Match
}

// DivisionPartition returns the team buckets the scheduler iterates over.
// With SingleDivision set, every team lands in one bucket keyed by the
// first configured division (or the team's own division when none exist).
func (s *Snapshot) DivisionPartition() ([]string, map[string][]team.Team) {
	if s.Event.SingleDivision {
		id := ""
		if len(s.Divisions) > 0 {
			id = s.Divisions[0].ID
		} else if len(s.Teams) > 0 {
			id = s.Teams[0].DivisionID
		}
		return []string{id}, map[string][]team.Team{id: append([]team.Team(nil), s.Teams...)}
	}

	buckets := team.ByDivision(s.Teams)
	ids := make([]string, 0, len(s.Divisions))
	for _, d := range s.Divisions {
		ids = append(ids, d.ID)
	}
	return ids, buckets
}

// TeamByID resolves a concrete team from the snapshot.
func (s *Snapshot) TeamByID(id string) (team.Team, bool) {
	for _, t := range s.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return team.Team{}, false
}

// MatchByID resolves a match by its in-event match id.
func (s *Snapshot) MatchByID(matchID int) (*match.Match, bool) {
	for _, m := range s.Matches {
		if m.MatchID == matchID {
			return m, true
		}
	}
	return nil, false
}
