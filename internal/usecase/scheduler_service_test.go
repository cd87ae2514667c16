package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/camka14/mvp-scheduler/internal/domain/division"
	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/domain/field"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
	"github.com/camka14/mvp-scheduler/internal/domain/timeslot"
	"github.com/camka14/mvp-scheduler/internal/infrastructure/repository/memory"
	"github.com/camka14/mvp-scheduler/internal/platform/logging"
	"github.com/camka14/mvp-scheduler/internal/wire"
)

// The test calendar starts Monday 2026-06-01; the first weekend inside it
// is June 6 and 7.
var (
	seasonStart = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	seasonEnd   = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
)

func testTeams(divisionID string, count int) []team.Team {
	out := make([]team.Team, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, team.Team{
			ID:         fmt.Sprintf("t%d", i),
			Name:       fmt.Sprintf("Team %d", i),
			Seed:       i,
			DivisionID: divisionID,
		})
	}
	return out
}

func leagueSnapshot(teamCount int) *event.Snapshot {
	teams := testTeams("div-a", teamCount)
	teamIDs := make([]string, 0, len(teams))
	for _, t := range teams {
		teamIDs = append(teamIDs, t.ID)
	}

	return &event.Snapshot{
		Event: &event.Event{
			ID:                   "evt-1",
			Name:                 "Summer League",
			Kind:                 event.KindLeague,
			Start:                seasonStart,
			End:                  seasonEnd,
			MatchDurationMinutes: 60,
			RestMinutes:          30,
			GamesPerOpponent:     1,
			DivisionIDs:          []string{"div-a"},
			FieldIDs:             []string{"f1", "f2"},
			TimeSlotIDs:          []string{"weekend"},
			TeamIDs:              teamIDs,
			HostID:               "host-1",
		},
		Divisions: []division.Division{{ID: "div-a", Name: "Open"}},
		Fields: []field.Field{
			{ID: "f1", Number: 1},
			{ID: "f2", Number: 2},
		},
		Slots: []timeslot.TimeSlot{{
			ID:           "weekend",
			DaysOfWeek:   []timeslot.Weekday{timeslot.Saturday, timeslot.Sunday},
			Repeating:    true,
			StartMinutes: 9 * 60,
			EndMinutes:   17 * 60,
			FieldIDs:     []string{"f1", "f2"},
		}},
		Teams: teams,
	}
}

func TestSchedulerService_BuildSchedule_LeagueRoundRobin(t *testing.T) {
	t.Parallel()

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	snap := leagueSnapshot(4)

	result, err := svc.BuildSchedule(context.Background(), snap)
	if err != nil {
		t.Fatalf("BuildSchedule error: %v", err)
	}
	if len(result.Matches) != 6 {
		t.Fatalf("expected 6 matches for 4 teams, got %d", len(result.Matches))
	}
	if result.Preview.MatchCount != 6 {
		t.Fatalf("preview count %d", result.Preview.MatchCount)
	}
	if !result.Preview.FirstStart.Equal(time.Date(2026, 6, 6, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first start: %s", result.Preview.FirstStart)
	}
	if !result.Preview.EffectiveEnd.Equal(seasonEnd) {
		t.Fatalf("fixed-end event must keep its end, got %s", result.Preview.EffectiveEnd)
	}

	seen := make(map[string]bool)
	for i, m := range result.Matches {
		if m.MatchID != i+1 {
			t.Fatalf("match ids not contiguous at index %d: %d", i, m.MatchID)
		}
		if m.ID == "" || seen[m.ID] {
			t.Fatalf("storage id for match %d not opaque and unique: %q", m.MatchID, m.ID)
		}
		seen[m.ID] = true
		if m.Start.IsZero() || m.FieldID == "" {
			t.Fatalf("match %d not placed", m.MatchID)
		}
		if m.DivisionID != "div-a" {
			t.Fatalf("match %d missing division tag: %q", m.MatchID, m.DivisionID)
		}
		if !m.Team1.IsConcrete() || !m.Team2.IsConcrete() {
			t.Fatalf("league match %d has abstract slots", m.MatchID)
		}
	}

	// No field hosts two matches at once.
	for i, a := range result.Matches {
		for _, b := range result.Matches[i+1:] {
			if a.FieldID == b.FieldID && a.Overlaps(b.Start, b.End) {
				t.Fatalf("matches %d and %d overlap on field %s", a.MatchID, b.MatchID, a.FieldID)
			}
		}
	}
}

func TestSchedulerService_BuildSchedule_ValidationProblems(t *testing.T) {
	t.Parallel()

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	snap := leagueSnapshot(4)
	snap.Fields = nil

	_, err := svc.BuildSchedule(context.Background(), snap)
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(err.Error(), "no fields are available for division") {
		t.Fatalf("unexpected problem list: %v", err)
	}
}

func TestSchedulerService_BuildSchedule_TournamentDivisionOffsets(t *testing.T) {
	t.Parallel()

	snap := leagueSnapshot(4)
	snap.Event.Kind = event.KindTournament
	snap.Event.DivisionIDs = []string{"div-a", "div-b"}
	snap.Divisions = append(snap.Divisions, division.Division{ID: "div-b", Name: "Rec"})
	for i := 5; i <= 8; i++ {
		snap.Teams = append(snap.Teams, team.Team{
			ID: fmt.Sprintf("t%d", i), Name: fmt.Sprintf("Team %d", i), Seed: i - 4, DivisionID: "div-b",
		})
		snap.Event.TeamIDs = append(snap.Event.TeamIDs, fmt.Sprintf("t%d", i))
	}

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	result, err := svc.BuildSchedule(context.Background(), snap)
	if err != nil {
		t.Fatalf("BuildSchedule error: %v", err)
	}
	if len(result.Matches) != 6 {
		t.Fatalf("expected 3 matches per division, got %d", len(result.Matches))
	}

	// The second division's block is renumbered past the first's.
	finalB := result.Matches[5]
	if finalB.DivisionID != "div-b" {
		t.Fatalf("match 6 should belong to div-b, got %q", finalB.DivisionID)
	}
	if finalB.PreviousLeftID != 4 || finalB.PreviousRightID != 5 {
		t.Fatalf("div-b final back links not offset: %d/%d", finalB.PreviousLeftID, finalB.PreviousRightID)
	}
	if finalB.Team1.Kind != match.RefFeeder || finalB.Team1.FeederID != 4 {
		t.Fatalf("div-b final left feeder not offset: %+v", finalB.Team1)
	}
	semiB := result.Matches[3]
	if semiB.WinnerNextID != 6 {
		t.Fatalf("div-b semifinal forward link not offset: %d", semiB.WinnerNextID)
	}
}

func TestSchedulerService_BuildSchedule_DoubleEliminationFeederOrder(t *testing.T) {
	t.Parallel()

	// Five teams produce a loser bracket whose drop-in matches depend on
	// second-round results; every match must still land after the matches
	// feeding it, rest included.
	snap := leagueSnapshot(5)
	snap.Event.Kind = event.KindTournament
	snap.Event.DoubleElimination = true

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	result, err := svc.BuildSchedule(context.Background(), snap)
	if err != nil {
		t.Fatalf("BuildSchedule error: %v", err)
	}
	if len(result.Matches) != 9 {
		t.Fatalf("expected 9 matches for 5 teams, got %d", len(result.Matches))
	}

	rest := 30 * time.Minute
	byID := map[int]*match.Match{}
	for _, m := range result.Matches {
		byID[m.MatchID] = m
	}
	for _, m := range result.Matches {
		for _, feederID := range []int{m.PreviousLeftID, m.PreviousRightID} {
			if feederID == 0 || feederID == m.MatchID {
				continue
			}
			feeder := byID[feederID]
			if feeder == nil {
				t.Fatalf("match %d links missing match %d", m.MatchID, feederID)
			}
			if m.Start.Before(feeder.End.Add(rest)) {
				t.Fatalf("match %d (round %d, losers=%v) starts %s before feeder %d ends %s",
					m.MatchID, m.Round, m.LosersBracket, m.Start, feeder.MatchID, feeder.End)
			}
		}
	}
}

func TestSchedulerService_BuildSchedule_TournamentNeedsThreeTeams(t *testing.T) {
	t.Parallel()

	snap := leagueSnapshot(2)
	snap.Event.Kind = event.KindTournament

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	_, err := svc.BuildSchedule(context.Background(), snap)
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError for a 2-team bracket, got %v", err)
	}
}

func TestSchedulerService_BuildSchedule_LeaguePlayoffs(t *testing.T) {
	t.Parallel()

	snap := leagueSnapshot(4)
	snap.Event.IncludePlayoffs = true
	snap.Event.PlayoffTeamCount = 4

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	result, err := svc.BuildSchedule(context.Background(), snap)
	if err != nil {
		t.Fatalf("BuildSchedule error: %v", err)
	}
	if len(result.Matches) != 9 {
		t.Fatalf("expected 6 regular plus 3 playoff matches, got %d", len(result.Matches))
	}

	semi := result.Matches[6]
	if semi.Team1.Kind != match.RefStanding || semi.Team1.Rank != 1 {
		t.Fatalf("first playoff slot should hold rank 1, got %+v", semi.Team1)
	}
	if semi.Team2.Kind != match.RefStanding || semi.Team2.Rank != 4 {
		t.Fatalf("first playoff slot should meet rank 4, got %+v", semi.Team2)
	}

	// Playoffs land after the entire regular season.
	lastRegularEnd := time.Time{}
	for _, m := range result.Matches[:6] {
		if m.End.After(lastRegularEnd) {
			lastRegularEnd = m.End
		}
	}
	for _, m := range result.Matches[6:] {
		if m.Start.Before(lastRegularEnd) {
			t.Fatalf("playoff match %d starts %s before the regular season ends %s", m.MatchID, m.Start, lastRegularEnd)
		}
	}
}

func TestSchedulerService_BuildSchedule_PlayoffCountTooSmall(t *testing.T) {
	t.Parallel()

	snap := leagueSnapshot(4)
	snap.Event.IncludePlayoffs = true
	snap.Event.PlayoffTeamCount = 2

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	_, err := svc.BuildSchedule(context.Background(), snap)
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError for a 2-team playoff, got %v", err)
	}
}

func TestSchedulerService_BuildSchedule_InfeasibleWindow(t *testing.T) {
	t.Parallel()

	snap := leagueSnapshot(4)
	// A single two-hour block can hold only 2 of the 6 required matches.
	snap.Event.TimeSlotIDs = []string{"tiny"}
	snap.Slots = []timeslot.TimeSlot{{
		ID:           "tiny",
		DayOfWeek:    timeslot.Saturday,
		Repeating:    false,
		StartMinutes: 9 * 60,
		EndMinutes:   11 * 60,
		FieldID:      "f1",
	}}

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	_, err := svc.BuildSchedule(context.Background(), snap)
	if !IsInfeasible(err) {
		t.Fatalf("expected InfeasibleError, got %v", err)
	}
	infErr := err.(*InfeasibleError)
	if infErr.ApproxMatchesNeeded != 6 {
		t.Fatalf("expected 6 matches reported, got %d", infErr.ApproxMatchesNeeded)
	}
}

func TestSchedulerService_BuildSchedule_NoFixedEndExtends(t *testing.T) {
	t.Parallel()

	snap := leagueSnapshot(4)
	snap.Event.NoFixedEnd = true
	snap.Event.End = seasonStart
	snap.Event.RestMinutes = 0
	snap.Event.FieldIDs = []string{"f1"}
	snap.Fields = snap.Fields[:1]
	snap.Event.TimeSlotIDs = []string{"sat-morning"}
	snap.Slots = []timeslot.TimeSlot{{
		ID:           "sat-morning",
		DayOfWeek:    timeslot.Saturday,
		Repeating:    true,
		StartMinutes: 9 * 60,
		EndMinutes:   11 * 60,
		FieldID:      "f1",
	}}

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	result, err := svc.BuildSchedule(context.Background(), snap)
	if err != nil {
		t.Fatalf("BuildSchedule error: %v", err)
	}

	// Two matches per Saturday: six matches span three weekends.
	wantEnd := time.Date(2026, 6, 20, 11, 0, 0, 0, time.UTC)
	if !result.Event.End.Equal(wantEnd) {
		t.Fatalf("expected extended end %s, got %s", wantEnd, result.Event.End)
	}
	if !result.Preview.EffectiveEnd.Equal(wantEnd) {
		t.Fatalf("preview effective end %s", result.Preview.EffectiveEnd)
	}
	if snap.Event.End != seasonStart {
		t.Fatalf("input event mutated")
	}
}

func TestSchedulerService_BuildSchedule_AssignsUserReferees(t *testing.T) {
	t.Parallel()

	snap := leagueSnapshot(4)
	snap.Event.RefereeIDs = []string{"ref-1", "ref-2"}

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())
	result, err := svc.BuildSchedule(context.Background(), snap)
	if err != nil {
		t.Fatalf("BuildSchedule error: %v", err)
	}
	for _, m := range result.Matches {
		want := "ref-1"
		if (m.MatchID-1)%2 == 1 {
			want = "ref-2"
		}
		if m.RefereeID != want {
			t.Fatalf("match %d expected referee %s, got %s", m.MatchID, want, m.RefereeID)
		}
	}
}

func TestSchedulerService_BuildSchedule_Deterministic(t *testing.T) {
	t.Parallel()

	svc := NewSchedulerService(memory.NewStore(), logging.NewNop())

	first, err := svc.BuildSchedule(context.Background(), leagueSnapshot(8))
	if err != nil {
		t.Fatalf("first BuildSchedule error: %v", err)
	}
	second, err := svc.BuildSchedule(context.Background(), leagueSnapshot(8))
	if err != nil {
		t.Fatalf("second BuildSchedule error: %v", err)
	}

	if len(first.Matches) != 28 {
		t.Fatalf("expected 28 matches for 8 teams, got %d", len(first.Matches))
	}

	a, err := wire.MarshalSchedule(first.Event, first.Matches)
	if err != nil {
		t.Fatalf("marshal first schedule: %v", err)
	}
	b, err := wire.MarshalSchedule(second.Event, second.Matches)
	if err != nil {
		t.Fatalf("marshal second schedule: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("identical input produced different schedules")
	}
}

func TestSchedulerService_ScheduleEvent_PersistsUnderLock(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	snap := leagueSnapshot(4)
	store.Seed(*snap.Event, snap.Divisions, snap.Fields, snap.Slots, snap.Teams)

	svc := NewSchedulerService(store, logging.NewNop())
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	result, err := svc.ScheduleEvent(ctx, tx, "evt-1")
	if err != nil {
		t.Fatalf("ScheduleEvent error: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	check, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin check tx: %v", err)
	}
	defer func() { _ = check.Rollback() }()
	persisted, err := store.LoadEventWithRelations(ctx, check, "evt-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(persisted.Matches) != len(result.Matches) {
		t.Fatalf("persisted %d matches, scheduled %d", len(persisted.Matches), len(result.Matches))
	}
}

func TestSchedulerService_ScheduleEvent_ReplacesPreviousSchedule(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	snap := leagueSnapshot(4)
	store.Seed(*snap.Event, snap.Divisions, snap.Fields, snap.Slots, snap.Teams)

	svc := NewSchedulerService(store, logging.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		tx, err := store.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if _, err := svc.ScheduleEvent(ctx, tx, "evt-1"); err != nil {
			t.Fatalf("ScheduleEvent run %d: %v", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit run %d: %v", i+1, err)
		}
	}

	check, _ := store.Begin(ctx)
	defer func() { _ = check.Rollback() }()
	persisted, err := store.LoadEventWithRelations(ctx, check, "evt-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(persisted.Matches) != 6 {
		t.Fatalf("rescheduling must replace, not append: %d matches", len(persisted.Matches))
	}
}
