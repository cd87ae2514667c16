// Package wire projects the internal model to and from the public JSON
// shape. The encoding is bit-stable: identical input produces identical
// bytes.
package wire

import (
	"strconv"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/valyala/bytebufferpool"

	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
)

// TimeLayout is the wire timestamp format: ISO-8601 UTC with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// MatchJSON is the public match shape. Null team references stand for
// bracket placeholders; the back links say which feeder fills each slot.
type MatchJSON struct {
	MatchID           int     `json:"matchId"`
	Team1ID           *string `json:"team1Id"`
	Team2ID           *string `json:"team2Id"`
	RefereeID         *string `json:"refereeId"`
	TeamRefereeID     *string `json:"teamRefereeId"`
	FieldID           *string `json:"fieldId"`
	Start             *string `json:"start"`
	End               *string `json:"end"`
	Team1Points       []int   `json:"team1Points"`
	Team2Points       []int   `json:"team2Points"`
	SetResults        []int   `json:"setResults"`
	LosersBracket     bool    `json:"losersBracket"`
	WinnerNextMatchID *string `json:"winnerNextMatchId"`
	LoserNextMatchID  *string `json:"loserNextMatchId"`
	PreviousLeftID    *string `json:"previousLeftId"`
	PreviousRightID   *string `json:"previousRightId"`
	Division          *string `json:"division"`
	Locked            bool    `json:"locked"`
	RefereeCheckedIn  bool    `json:"refereeCheckedIn"`
}

// EventJSON mirrors the event input fields plus the derived
// scheduledMatchCount and effectiveEnd.
type EventJSON struct {
	ID                           string   `json:"id"`
	Name                         string   `json:"name"`
	Start                        *string  `json:"start"`
	End                          *string  `json:"end"`
	NoFixedEndDateTime           bool     `json:"noFixedEndDateTime"`
	EventType                    string   `json:"eventType"`
	SingleDivision               bool     `json:"singleDivision"`
	TeamSignup                   bool     `json:"teamSignup"`
	MaxParticipants              int      `json:"maxParticipants"`
	TeamSizeLimit                int      `json:"teamSizeLimit"`
	MatchDurationMinutes         int      `json:"matchDurationMinutes"`
	SetDurationMinutes           int      `json:"setDurationMinutes"`
	SetsPerMatch                 int      `json:"setsPerMatch"`
	UsesSets                     bool     `json:"usesSets"`
	RestTimeMinutes              int      `json:"restTimeMinutes"`
	IncludePlayoffs              bool     `json:"includePlayoffs"`
	PlayoffTeamCount             int      `json:"playoffTeamCount"`
	DoubleElimination            bool     `json:"doubleElimination"`
	WinnerSetCount               int      `json:"winnerSetCount"`
	LoserSetCount                int      `json:"loserSetCount"`
	WinnerBracketPointsToVictory []int    `json:"winnerBracketPointsToVictory"`
	LoserBracketPointsToVictory  []int    `json:"loserBracketPointsToVictory"`
	PointsToVictory              []int    `json:"pointsToVictory"`
	GamesPerOpponent             int      `json:"gamesPerOpponent"`
	DoTeamsRef                   bool     `json:"doTeamsRef"`
	DivisionIDs                  []string `json:"divisionIds"`
	FieldIDs                     []string `json:"fieldIds"`
	TimeSlotIDs                  []string `json:"timeSlotIds"`
	TeamIDs                      []string `json:"teamIds"`
	ParticipantIDs               []string `json:"participantIds"`
	FreeAgentIDs                 []string `json:"freeAgentIds"`
	WaitListIDs                  []string `json:"waitListIds"`
	RefereeIDs                   []string `json:"refereeIds"`
	HostID                       string   `json:"hostId"`
	OrganizationID               string   `json:"organizationId"`
	ScheduledMatchCount          int      `json:"scheduledMatchCount"`
	EffectiveEnd                 *string  `json:"effectiveEnd"`
}

// ScheduleJSON is the full serialized schedule response.
type ScheduleJSON struct {
	Event   EventJSON   `json:"event"`
	Matches []MatchJSON `json:"matches"`
}

// EncodeMatch projects one match onto the wire shape.
func EncodeMatch(m *match.Match) MatchJSON {
	return MatchJSON{
		MatchID:           m.MatchID,
		Team1ID:           teamRefID(m.Team1),
		Team2ID:           teamRefID(m.Team2),
		RefereeID:         optString(m.RefereeID),
		TeamRefereeID:     optString(m.TeamRefereeID),
		FieldID:           optString(m.FieldID),
		Start:             optTime(m.Start),
		End:               optTime(m.End),
		Team1Points:       intArray(m.Team1Points),
		Team2Points:       intArray(m.Team2Points),
		SetResults:        intArray(m.SetResults),
		LosersBracket:     m.LosersBracket,
		WinnerNextMatchID: optMatchID(m.WinnerNextID),
		LoserNextMatchID:  optMatchID(m.LoserNextID),
		PreviousLeftID:    optMatchID(m.PreviousLeftID),
		PreviousRightID:   optMatchID(m.PreviousRightID),
		Division:          optString(m.DivisionID),
		Locked:            m.Locked,
		RefereeCheckedIn:  m.RefereeCheckedIn,
	}
}

// DecodeMatch reconstructs a match from its wire shape. Null team slots
// with back links become feeder placeholders; other placeholder kinds do
// not survive a round trip.
func DecodeMatch(j MatchJSON) (*match.Match, error) {
	m := &match.Match{
		MatchID:          j.MatchID,
		RefereeID:        strValue(j.RefereeID),
		TeamRefereeID:    strValue(j.TeamRefereeID),
		FieldID:          strValue(j.FieldID),
		Team1Points:      intArray(j.Team1Points),
		Team2Points:      intArray(j.Team2Points),
		SetResults:       intArray(j.SetResults),
		LosersBracket:    j.LosersBracket,
		Locked:           j.Locked,
		RefereeCheckedIn: j.RefereeCheckedIn,
		DivisionID:       strValue(j.Division),
	}

	var err error
	if m.Start, err = parseOptTime(j.Start); err != nil {
		return nil, err
	}
	if m.End, err = parseOptTime(j.End); err != nil {
		return nil, err
	}
	if m.WinnerNextID, err = parseOptMatchID(j.WinnerNextMatchID); err != nil {
		return nil, err
	}
	if m.LoserNextID, err = parseOptMatchID(j.LoserNextMatchID); err != nil {
		return nil, err
	}
	if m.PreviousLeftID, err = parseOptMatchID(j.PreviousLeftID); err != nil {
		return nil, err
	}
	if m.PreviousRightID, err = parseOptMatchID(j.PreviousRightID); err != nil {
		return nil, err
	}

	m.Team1 = decodeTeamRef(j.Team1ID, m.PreviousLeftID, match.SideLeft)
	m.Team2 = decodeTeamRef(j.Team2ID, m.PreviousRightID, match.SideRight)
	return m, nil
}

// EncodeSchedule projects an event and its matches.
func EncodeSchedule(e *event.Event, matches []*match.Match) ScheduleJSON {
	out := ScheduleJSON{
		Event:   EncodeEvent(e, len(matches)),
		Matches: make([]MatchJSON, 0, len(matches)),
	}
	for _, m := range matches {
		out.Matches = append(out.Matches, EncodeMatch(m))
	}
	return out
}

func EncodeEvent(e *event.Event, scheduledMatchCount int) EventJSON {
	return EventJSON{
		ID:                           e.ID,
		Name:                         e.Name,
		Start:                        optTime(e.Start),
		End:                          optTime(e.End),
		NoFixedEndDateTime:           e.NoFixedEnd,
		EventType:                    string(e.Kind),
		SingleDivision:               e.SingleDivision,
		TeamSignup:                   e.TeamSignup,
		MaxParticipants:              e.MaxParticipants,
		TeamSizeLimit:                e.TeamSizeLimit,
		MatchDurationMinutes:         e.MatchDurationMinutes,
		SetDurationMinutes:           e.SetDurationMinutes,
		SetsPerMatch:                 e.SetsPerMatch,
		UsesSets:                     e.UsesSets,
		RestTimeMinutes:              e.RestMinutes,
		IncludePlayoffs:              e.IncludePlayoffs,
		PlayoffTeamCount:             e.PlayoffTeamCount,
		DoubleElimination:            e.DoubleElimination,
		WinnerSetCount:               e.WinnerSetCount,
		LoserSetCount:                e.LoserSetCount,
		WinnerBracketPointsToVictory: intArray(e.WinnerBracketPointsToVictory),
		LoserBracketPointsToVictory:  intArray(e.LoserBracketPointsToVictory),
		PointsToVictory:              intArray(e.PointsToVictory),
		GamesPerOpponent:             e.GamesPerOpponent,
		DoTeamsRef:                   e.DoTeamsRef,
		DivisionIDs:                  strArray(e.DivisionIDs),
		FieldIDs:                     strArray(e.FieldIDs),
		TimeSlotIDs:                  strArray(e.TimeSlotIDs),
		TeamIDs:                      strArray(e.TeamIDs),
		ParticipantIDs:               strArray(e.ParticipantIDs),
		FreeAgentIDs:                 strArray(e.FreeAgentIDs),
		WaitListIDs:                  strArray(e.WaitListIDs),
		RefereeIDs:                   strArray(e.RefereeIDs),
		HostID:                       e.HostID,
		OrganizationID:               e.OrganizationID,
		ScheduledMatchCount:          scheduledMatchCount,
		EffectiveEnd:                 optTime(e.End),
	}
}

// Marshal renders any wire value through a pooled buffer.
func Marshal(v any) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	b := buf.Bytes()
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return append([]byte(nil), b...), nil
}

func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// MarshalSchedule is the canonical serialized schedule response.
func MarshalSchedule(e *event.Event, matches []*match.Match) ([]byte, error) {
	return Marshal(EncodeSchedule(e, matches))
}

func teamRefID(r match.TeamRef) *string {
	if r.IsConcrete() {
		id := r.TeamID
		return &id
	}
	return nil
}

func decodeTeamRef(id *string, feederID int, side match.Side) match.TeamRef {
	if id != nil && *id != "" {
		return match.ConcreteRef(*id)
	}
	if feederID > 0 {
		return match.FeederRef(feederID, side)
	}
	return match.NoRef()
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(TimeLayout)
	return &s
}

func parseOptTime(s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Time{}, nil
	}
	return time.Parse(TimeLayout, *s)
}

func optMatchID(id int) *string {
	if id <= 0 {
		return nil
	}
	s := strconv.Itoa(id)
	return &s
}

func parseOptMatchID(s *string) (int, error) {
	if s == nil || *s == "" {
		return 0, nil
	}
	return strconv.Atoi(*s)
}

// intArray normalizes nil to an empty slice so the wire emits [] not null.
func intArray(in []int) []int {
	if in == nil {
		return []int{}
	}
	return append([]int(nil), in...)
}

func strArray(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string(nil), in...)
}
