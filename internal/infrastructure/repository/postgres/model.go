package postgres

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/camka14/mvp-scheduler/internal/domain/division"
	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/domain/field"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
	"github.com/camka14/mvp-scheduler/internal/domain/timeslot"
)

type eventTableModel struct {
	ID                   string         `db:"id"`
	Name                 string         `db:"name"`
	StartAt              time.Time      `db:"start_at"`
	EndAt                time.Time      `db:"end_at"`
	NoFixedEnd           bool           `db:"no_fixed_end"`
	Kind                 string         `db:"kind"`
	SingleDivision       bool           `db:"single_division"`
	TeamSignup           bool           `db:"team_signup"`
	MaxParticipants      int            `db:"max_participants"`
	TeamSizeLimit        int            `db:"team_size_limit"`
	MatchDurationMinutes int            `db:"match_duration_minutes"`
	SetDurationMinutes   int            `db:"set_duration_minutes"`
	SetsPerMatch         int            `db:"sets_per_match"`
	UsesSets             bool           `db:"uses_sets"`
	RestMinutes          int            `db:"rest_minutes"`
	IncludePlayoffs      bool           `db:"include_playoffs"`
	PlayoffTeamCount     int            `db:"playoff_team_count"`
	DoubleElimination    bool           `db:"double_elimination"`
	WinnerSetCount       int            `db:"winner_set_count"`
	LoserSetCount        int            `db:"loser_set_count"`
	WinnerPointsVictory  pq.Int64Array  `db:"winner_points_to_victory"`
	LoserPointsVictory   pq.Int64Array  `db:"loser_points_to_victory"`
	PointsToVictory      pq.Int64Array  `db:"points_to_victory"`
	GamesPerOpponent     int            `db:"games_per_opponent"`
	DoTeamsRef           bool           `db:"do_teams_ref"`
	DivisionIDs          pq.StringArray `db:"division_ids"`
	FieldIDs             pq.StringArray `db:"field_ids"`
	TimeSlotIDs          pq.StringArray `db:"time_slot_ids"`
	TeamIDs              pq.StringArray `db:"team_ids"`
	ParticipantIDs       pq.StringArray `db:"participant_ids"`
	FreeAgentIDs         pq.StringArray `db:"free_agent_ids"`
	WaitListIDs          pq.StringArray `db:"wait_list_ids"`
	RefereeIDs           pq.StringArray `db:"referee_ids"`
	HostID               string         `db:"host_id"`
	OrganizationID       string         `db:"organization_id"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (m eventTableModel) toDomain() *event.Event {
	return &event.Event{
		ID:                           m.ID,
		Name:                         m.Name,
		Start:                        m.StartAt.UTC(),
		End:                          m.EndAt.UTC(),
		NoFixedEnd:                   m.NoFixedEnd,
		Kind:                         event.Kind(m.Kind),
		SingleDivision:               m.SingleDivision,
		TeamSignup:                   m.TeamSignup,
		MaxParticipants:              m.MaxParticipants,
		TeamSizeLimit:                m.TeamSizeLimit,
		MatchDurationMinutes:         m.MatchDurationMinutes,
		SetDurationMinutes:           m.SetDurationMinutes,
		SetsPerMatch:                 m.SetsPerMatch,
		UsesSets:                     m.UsesSets,
		RestMinutes:                  m.RestMinutes,
		IncludePlayoffs:              m.IncludePlayoffs,
		PlayoffTeamCount:             m.PlayoffTeamCount,
		DoubleElimination:            m.DoubleElimination,
		WinnerSetCount:               m.WinnerSetCount,
		LoserSetCount:                m.LoserSetCount,
		WinnerBracketPointsToVictory: int64sToInts(m.WinnerPointsVictory),
		LoserBracketPointsToVictory:  int64sToInts(m.LoserPointsVictory),
		PointsToVictory:              int64sToInts(m.PointsToVictory),
		GamesPerOpponent:             m.GamesPerOpponent,
		DoTeamsRef:                   m.DoTeamsRef,
		DivisionIDs:                  m.DivisionIDs,
		FieldIDs:                     m.FieldIDs,
		TimeSlotIDs:                  m.TimeSlotIDs,
		TeamIDs:                      m.TeamIDs,
		ParticipantIDs:               m.ParticipantIDs,
		FreeAgentIDs:                 m.FreeAgentIDs,
		WaitListIDs:                  m.WaitListIDs,
		RefereeIDs:                   m.RefereeIDs,
		HostID:                       m.HostID,
		OrganizationID:               m.OrganizationID,
	}
}

type divisionTableModel struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	SkillLevel string `db:"skill_level"`
	AgeGroup   string `db:"age_group"`
}

func (m divisionTableModel) toDomain() division.Division {
	return division.Division{ID: m.ID, Name: m.Name, SkillLevel: m.SkillLevel, AgeGroup: m.AgeGroup}
}

type fieldTableModel struct {
	ID          string         `db:"id"`
	Number      int            `db:"number"`
	Name        string         `db:"name"`
	DivisionIDs pq.StringArray `db:"division_ids"`
}

func (m fieldTableModel) toDomain() field.Field {
	return field.Field{ID: m.ID, Number: m.Number, Name: m.Name, DivisionIDs: m.DivisionIDs}
}

type timeSlotTableModel struct {
	ID           string         `db:"id"`
	DayOfWeek    int            `db:"day_of_week"`
	DaysOfWeek   pq.Int64Array  `db:"days_of_week"`
	StartDate    *time.Time     `db:"start_date"`
	EndDate      *time.Time     `db:"end_date"`
	Repeating    bool           `db:"repeating"`
	StartMinutes int            `db:"start_minutes"`
	EndMinutes   int            `db:"end_minutes"`
	FieldID      sql.NullString `db:"field_id"`
	FieldIDs     pq.StringArray `db:"field_ids"`
	DivisionID   sql.NullString `db:"division_id"`
}

func (m timeSlotTableModel) toDomain() timeslot.TimeSlot {
	days := make([]timeslot.Weekday, 0, len(m.DaysOfWeek))
	for _, d := range m.DaysOfWeek {
		days = append(days, timeslot.Weekday(d))
	}
	return timeslot.TimeSlot{
		ID:           m.ID,
		DayOfWeek:    timeslot.Weekday(m.DayOfWeek),
		DaysOfWeek:   days,
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		Repeating:    m.Repeating,
		StartMinutes: m.StartMinutes,
		EndMinutes:   m.EndMinutes,
		FieldID:      m.FieldID.String,
		FieldIDs:     m.FieldIDs,
		DivisionID:   m.DivisionID.String,
	}
}

type teamTableModel struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Seed       int            `db:"seed"`
	CaptainID  string         `db:"captain_id"`
	DivisionID string         `db:"division_id"`
	Wins       int            `db:"wins"`
	Losses     int            `db:"losses"`
	MatchIDs   pq.StringArray `db:"match_ids"`
}

func (m teamTableModel) toDomain() team.Team {
	return team.Team{
		ID:         m.ID,
		Name:       m.Name,
		Seed:       m.Seed,
		CaptainID:  m.CaptainID,
		DivisionID: m.DivisionID,
		Wins:       m.Wins,
		Losses:     m.Losses,
		MatchIDs:   m.MatchIDs,
	}
}

type matchTableModel struct {
	ID               string         `db:"id"`
	EventID          string         `db:"event_id"`
	MatchID          int            `db:"match_id"`
	Team1Ref         string         `db:"team1_ref"`
	Team2Ref         string         `db:"team2_ref"`
	RefereeID        sql.NullString `db:"referee_id"`
	TeamRefereeID    sql.NullString `db:"team_referee_id"`
	FieldID          sql.NullString `db:"field_id"`
	StartAt          *time.Time     `db:"start_at"`
	EndAt            *time.Time     `db:"end_at"`
	Team1Points      pq.Int64Array  `db:"team1_points"`
	Team2Points      pq.Int64Array  `db:"team2_points"`
	SetResults       pq.Int64Array  `db:"set_results"`
	LosersBracket    bool           `db:"losers_bracket"`
	WinnerNextID     int            `db:"winner_next_id"`
	LoserNextID      int            `db:"loser_next_id"`
	PreviousLeftID   int            `db:"previous_left_id"`
	PreviousRightID  int            `db:"previous_right_id"`
	Locked           bool           `db:"locked"`
	RefereeCheckedIn bool           `db:"referee_checked_in"`
	DivisionID       sql.NullString `db:"division_id"`
	Round            int            `db:"round"`
	Finalized        bool           `db:"finalized"`
}

func (m matchTableModel) toDomain() (*match.Match, error) {
	team1, err := parseTeamRef(m.Team1Ref)
	if err != nil {
		return nil, fmt.Errorf("match %s team1: %w", m.ID, err)
	}
	team2, err := parseTeamRef(m.Team2Ref)
	if err != nil {
		return nil, fmt.Errorf("match %s team2: %w", m.ID, err)
	}

	out := &match.Match{
		ID:               m.ID,
		EventID:          m.EventID,
		MatchID:          m.MatchID,
		Team1:            team1,
		Team2:            team2,
		RefereeID:        m.RefereeID.String,
		TeamRefereeID:    m.TeamRefereeID.String,
		FieldID:          m.FieldID.String,
		Team1Points:      int64sToInts(m.Team1Points),
		Team2Points:      int64sToInts(m.Team2Points),
		SetResults:       int64sToInts(m.SetResults),
		LosersBracket:    m.LosersBracket,
		WinnerNextID:     m.WinnerNextID,
		LoserNextID:      m.LoserNextID,
		PreviousLeftID:   m.PreviousLeftID,
		PreviousRightID:  m.PreviousRightID,
		Locked:           m.Locked,
		RefereeCheckedIn: m.RefereeCheckedIn,
		DivisionID:       m.DivisionID.String,
		Round:            m.Round,
		Finalized:        m.Finalized,
	}
	if m.StartAt != nil {
		out.Start = m.StartAt.UTC()
	}
	if m.EndAt != nil {
		out.End = m.EndAt.UTC()
	}
	return out, nil
}

// encodeTeamRef flattens a team reference to one text column:
// "team:<id>", "feeder:<matchId>:<SIDE>", "standing:<rank>" or "".
func encodeTeamRef(r match.TeamRef) string {
	switch r.Kind {
	case match.RefTeam:
		return "team:" + r.TeamID
	case match.RefFeeder:
		return fmt.Sprintf("feeder:%d:%s", r.FeederID, r.FeederSide)
	case match.RefStanding:
		return fmt.Sprintf("standing:%d", r.Rank)
	default:
		return ""
	}
}

func parseTeamRef(raw string) (match.TeamRef, error) {
	if raw == "" {
		return match.NoRef(), nil
	}
	parts := strings.SplitN(raw, ":", 3)
	switch parts[0] {
	case "team":
		if len(parts) < 2 || parts[1] == "" {
			return match.TeamRef{}, fmt.Errorf("malformed team ref %q", raw)
		}
		return match.ConcreteRef(strings.Join(parts[1:], ":")), nil
	case "feeder":
		if len(parts) != 3 {
			return match.TeamRef{}, fmt.Errorf("malformed feeder ref %q", raw)
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			return match.TeamRef{}, fmt.Errorf("malformed feeder ref %q", raw)
		}
		return match.FeederRef(id, match.Side(parts[2])), nil
	case "standing":
		if len(parts) != 2 {
			return match.TeamRef{}, fmt.Errorf("malformed standing ref %q", raw)
		}
		rank, err := strconv.Atoi(parts[1])
		if err != nil {
			return match.TeamRef{}, fmt.Errorf("malformed standing ref %q", raw)
		}
		return match.StandingRef(rank), nil
	default:
		return match.TeamRef{}, fmt.Errorf("unknown team ref %q", raw)
	}
}

func int64sToInts(in pq.Int64Array) []int {
	out := make([]int, 0, len(in))
	for _, v := range in {
		out = append(out, int(v))
	}
	return out
}

func intsToInt64s(in []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(in))
	for _, v := range in {
		out = append(out, int64(v))
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
