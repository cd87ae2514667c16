package wire

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
)

func sampleMatch() *match.Match {
	m := match.NewWithSets(3)
	m.MatchID = 4
	m.Team1 = match.ConcreteRef("t1")
	m.Team2 = match.ConcreteRef("t2")
	m.RefereeID = "ref-1"
	m.FieldID = "f1"
	m.Start = time.Date(2026, 6, 6, 9, 0, 0, 0, time.UTC)
	m.End = time.Date(2026, 6, 6, 10, 0, 0, 0, time.UTC)
	m.Team1Points = []int{21, 15, 15}
	m.Team2Points = []int{15, 21, 11}
	m.SetResults = []int{match.SetTeam1Won, match.SetTeam2Won, match.SetTeam1Won}
	m.DivisionID = "div-a"
	return m
}

func TestEncodeMatch_ConcreteTeams(t *testing.T) {
	t.Parallel()

	j := EncodeMatch(sampleMatch())
	if j.MatchID != 4 {
		t.Fatalf("matchId %d", j.MatchID)
	}
	if j.Team1ID == nil || *j.Team1ID != "t1" || j.Team2ID == nil || *j.Team2ID != "t2" {
		t.Fatalf("team ids not encoded: %v / %v", j.Team1ID, j.Team2ID)
	}
	if j.Start == nil || *j.Start != "2026-06-06T09:00:00.000Z" {
		t.Fatalf("start not ISO millis: %v", j.Start)
	}
	if j.WinnerNextMatchID != nil || j.PreviousLeftID != nil {
		t.Fatalf("absent links must encode as null")
	}
}

func TestEncodeMatch_FeederSlotsAreNull(t *testing.T) {
	t.Parallel()

	m := match.NewWithSets(1)
	m.MatchID = 7
	m.Team1 = match.FeederRef(3, match.SideLeft)
	m.Team2 = match.FeederRef(4, match.SideRight)
	m.PreviousLeftID = 3
	m.PreviousRightID = 4
	m.WinnerNextID = 9

	j := EncodeMatch(m)
	if j.Team1ID != nil || j.Team2ID != nil {
		t.Fatalf("feeder slots must encode as null, got %v / %v", j.Team1ID, j.Team2ID)
	}
	// Link ids travel as strings.
	if j.PreviousLeftID == nil || *j.PreviousLeftID != "3" {
		t.Fatalf("previousLeftId: %v", j.PreviousLeftID)
	}
	if j.WinnerNextMatchID == nil || *j.WinnerNextMatchID != "9" {
		t.Fatalf("winnerNextMatchId: %v", j.WinnerNextMatchID)
	}
	if j.Start != nil || j.End != nil {
		t.Fatalf("unscheduled times must encode as null")
	}
}

func TestDecodeMatch_RoundTripConcrete(t *testing.T) {
	t.Parallel()

	orig := sampleMatch()
	decoded, err := DecodeMatch(EncodeMatch(orig))
	if err != nil {
		t.Fatalf("DecodeMatch error: %v", err)
	}

	if decoded.MatchID != orig.MatchID || decoded.FieldID != orig.FieldID {
		t.Fatalf("identity fields lost: %+v", decoded)
	}
	if !decoded.Team1.IsConcrete() || decoded.Team1.TeamID != "t1" {
		t.Fatalf("team1 lost: %+v", decoded.Team1)
	}
	if !decoded.Start.Equal(orig.Start) || !decoded.End.Equal(orig.End) {
		t.Fatalf("times lost: %s / %s", decoded.Start, decoded.End)
	}
	if len(decoded.SetResults) != 3 || decoded.SetResults[1] != match.SetTeam2Won {
		t.Fatalf("scores lost: %v", decoded.SetResults)
	}
}

func TestDecodeMatch_NullSlotsBecomeFeeders(t *testing.T) {
	t.Parallel()

	left, right := "3", "4"
	decoded, err := DecodeMatch(MatchJSON{
		MatchID:         5,
		PreviousLeftID:  &left,
		PreviousRightID: &right,
	})
	if err != nil {
		t.Fatalf("DecodeMatch error: %v", err)
	}
	if decoded.Team1.Kind != match.RefFeeder || decoded.Team1.FeederID != 3 || decoded.Team1.FeederSide != match.SideLeft {
		t.Fatalf("left feeder not reconstructed: %+v", decoded.Team1)
	}
	if decoded.Team2.Kind != match.RefFeeder || decoded.Team2.FeederID != 4 || decoded.Team2.FeederSide != match.SideRight {
		t.Fatalf("right feeder not reconstructed: %+v", decoded.Team2)
	}
}

func TestDecodeMatch_NullSlotsWithoutLinksAreEmpty(t *testing.T) {
	t.Parallel()

	decoded, err := DecodeMatch(MatchJSON{MatchID: 1})
	if err != nil {
		t.Fatalf("DecodeMatch error: %v", err)
	}
	if decoded.Team1.Kind != match.RefNone || decoded.Team2.Kind != match.RefNone {
		t.Fatalf("unlinked null slots must stay empty: %+v / %+v", decoded.Team1, decoded.Team2)
	}
}

func TestDecodeMatch_BadTimestampRejected(t *testing.T) {
	t.Parallel()

	bad := "2026-06-06 09:00"
	if _, err := DecodeMatch(MatchJSON{MatchID: 1, Start: &bad}); err == nil {
		t.Fatalf("expected error for a non-ISO timestamp")
	}
}

func TestDecodeMatch_BadLinkIDRejected(t *testing.T) {
	t.Parallel()

	bad := "not-a-number"
	if _, err := DecodeMatch(MatchJSON{MatchID: 1, WinnerNextMatchID: &bad}); err == nil {
		t.Fatalf("expected error for a non-numeric link id")
	}
}

func TestMarshal_EmptyArraysNotNull(t *testing.T) {
	t.Parallel()

	m := &match.Match{MatchID: 1}
	data, err := Marshal(EncodeMatch(m))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"team1Points":[]`) {
		t.Fatalf("nil points must emit []: %s", s)
	}
	if strings.Contains(s, `"setResults":null`) {
		t.Fatalf("nil scores must not emit null: %s", s)
	}
	if !strings.Contains(s, `"team1Id":null`) {
		t.Fatalf("empty team slot must emit null: %s", s)
	}
}

func TestMarshalSchedule_Shape(t *testing.T) {
	t.Parallel()

	e := &event.Event{
		ID:    "evt-1",
		Name:  "Summer League",
		Kind:  event.KindLeague,
		Start: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
	}
	data, err := MarshalSchedule(e, []*match.Match{sampleMatch()})
	if err != nil {
		t.Fatalf("MarshalSchedule error: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"eventType":"LEAGUE"`) {
		t.Fatalf("event kind missing: %s", s)
	}
	if !strings.Contains(s, `"scheduledMatchCount":1`) {
		t.Fatalf("derived match count missing: %s", s)
	}
	if !strings.Contains(s, `"effectiveEnd":"2026-08-31T00:00:00.000Z"`) {
		t.Fatalf("effective end missing: %s", s)
	}

	var decoded ScheduleJSON
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if decoded.Event.ID != "evt-1" || len(decoded.Matches) != 1 {
		t.Fatalf("schedule did not survive a round trip: %+v", decoded)
	}
}

func TestMarshal_Stable(t *testing.T) {
	t.Parallel()

	e := &event.Event{ID: "evt-1", Name: "Summer League", Kind: event.KindLeague}
	matches := []*match.Match{sampleMatch(), sampleMatch()}

	a, err := MarshalSchedule(e, matches)
	if err != nil {
		t.Fatalf("first marshal: %v", err)
	}
	b, err := MarshalSchedule(e, matches)
	if err != nil {
		t.Fatalf("second marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("identical input produced different bytes")
	}
}
