// Package placement maps abstract matches onto concrete (field, start, end)
// triples. The pass is greedy and deterministic: matches are visited in the
// caller's order, each taking the earliest feasible start, tie-broken by
// field number then interval id. There is no backtracking.
package placement

import (
	"fmt"
	"sort"
	"time"

	"github.com/camka14/mvp-scheduler/internal/domain/field"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
)

// CapacityError reports how many abstract matches could not be placed
// inside the event window.
type CapacityError struct {
	Unplaced int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("placement: %d matches do not fit inside the event window", e.Unplaced)
}

// Request carries everything one placement pass needs. Matches must already
// be in placement order and are mutated in place.
type Request struct {
	Matches  []*match.Match
	Teams    []team.Team
	Fields   []field.Field
	Free     []Interval
	Duration time.Duration
	Rest     time.Duration

	// NotBefore floors every candidate start; the auto-reschedule pass sets
	// it to the current time.
	NotBefore time.Time

	// PrePlaced matches occupy fields, teams and referee counts but are not
	// moved. Used when relocating a subset of an existing schedule.
	PrePlaced []*match.Match

	DoTeamsRef bool

	// Logf, when set, receives per-placement diagnostics.
	Logf func(format string, args ...any)
}

type span struct {
	start time.Time
	end   time.Time
}

type engine struct {
	req           Request
	free          []Interval
	fieldsByID    map[string]field.Field
	fieldsOrdered []field.Field

	teamReady  map[string]time.Time
	teamSpans  map[string][]span
	fieldSpans map[string][]span
	feederEnd  map[int]time.Time
	refCount   map[string]int
	teamsByID  map[string]team.Team
}

type candidate struct {
	start    time.Time
	fieldID  string
	fieldNum int
	slot     int // index into engine.free
}

// Place assigns field, start and end to every match in the request. On
// exhaustion it stops at the first unplaceable match and returns a
// CapacityError counting it and everything after it.
func Place(req Request) error {
	e := newEngine(req)

	for i, m := range req.Matches {
		cand, ok := e.findCandidate(m)
		if !ok {
			return &CapacityError{Unplaced: len(req.Matches) - i}
		}
		e.commit(m, cand)
		if req.Logf != nil {
			req.Logf("placed match %d on field %s at %s", m.MatchID, m.FieldID, m.Start.Format(time.RFC3339))
		}
	}

	return nil
}

func newEngine(req Request) *engine {
	e := &engine{
		req:        req,
		free:       append([]Interval(nil), req.Free...),
		fieldsByID: make(map[string]field.Field, len(req.Fields)),
		teamReady:  make(map[string]time.Time),
		teamSpans:  make(map[string][]span),
		fieldSpans: make(map[string][]span),
		feederEnd:  make(map[int]time.Time),
		refCount:   make(map[string]int),
		teamsByID:  make(map[string]team.Team, len(req.Teams)),
	}
	sortIntervals(e.free)

	for _, f := range req.Fields {
		e.fieldsByID[f.ID] = f
	}
	e.fieldsOrdered = append([]field.Field(nil), req.Fields...)
	sort.Slice(e.fieldsOrdered, func(i, j int) bool {
		if e.fieldsOrdered[i].Number != e.fieldsOrdered[j].Number {
			return e.fieldsOrdered[i].Number < e.fieldsOrdered[j].Number
		}
		return e.fieldsOrdered[i].ID < e.fieldsOrdered[j].ID
	})
	for _, t := range req.Teams {
		e.teamsByID[t.ID] = t
	}

	for _, m := range req.PrePlaced {
		e.occupy(m)
	}

	return e
}

// occupy registers an already scheduled match's footprint.
func (e *engine) occupy(m *match.Match) {
	if m.Start.IsZero() || m.End.IsZero() {
		return
	}
	s := span{start: m.Start, end: m.End}
	if m.FieldID != "" {
		e.fieldSpans[m.FieldID] = append(e.fieldSpans[m.FieldID], s)
	}
	for _, ref := range []match.TeamRef{m.Team1, m.Team2} {
		if ref.IsConcrete() {
			e.noteTeamSpan(ref.TeamID, s)
		}
	}
	if m.TeamRefereeID != "" {
		e.refCount[m.TeamRefereeID]++
		e.noteRefereeSpan(m.TeamRefereeID, s)
	}
	e.feederEnd[m.MatchID] = m.End
}

func (e *engine) noteTeamSpan(teamID string, s span) {
	e.teamSpans[teamID] = append(e.teamSpans[teamID], s)
	ready := s.end.Add(e.req.Rest)
	if ready.After(e.teamReady[teamID]) {
		e.teamReady[teamID] = ready
	}
}

// noteRefereeSpan blocks the window for the refereeing team without adding
// rest; refereeing is not a played match.
func (e *engine) noteRefereeSpan(teamID string, s span) {
	e.teamSpans[teamID] = append(e.teamSpans[teamID], s)
	if s.end.After(e.teamReady[teamID]) {
		e.teamReady[teamID] = s.end
	}
}

// earliestStart is the floor every candidate for m must respect: interval
// start, the request floor, both teams' rest-adjusted readiness, and both
// feeders' ends plus rest.
func (e *engine) earliestStart(m *match.Match, iv Interval) time.Time {
	s := iv.Start
	if e.req.NotBefore.After(s) {
		s = e.req.NotBefore
	}
	for _, ref := range []match.TeamRef{m.Team1, m.Team2} {
		if ref.IsConcrete() {
			if ready := e.teamReady[ref.TeamID]; ready.After(s) {
				s = ready
			}
		}
	}
	for _, feeder := range []int{m.PreviousLeftID, m.PreviousRightID} {
		if feeder == 0 {
			continue
		}
		if ready := e.feederEnd[feeder].Add(e.req.Rest); ready.After(s) {
			s = ready
		}
	}
	return s
}

// feedersPlaced reports whether every feeder of m already has an end time,
// from this pass or from PrePlaced. A match must not start before the
// matches that determine its participants.
func (e *engine) feedersPlaced(m *match.Match) bool {
	for _, feeder := range []int{m.PreviousLeftID, m.PreviousRightID} {
		if feeder == 0 {
			continue
		}
		if _, ok := e.feederEnd[feeder]; !ok {
			return false
		}
	}
	return true
}

func (e *engine) findCandidate(m *match.Match) (candidate, bool) {
	if !e.feedersPlaced(m) {
		return candidate{}, false
	}

	var best candidate
	found := false
	dur := e.req.Duration

	for idx, iv := range e.free {
		if found && iv.Start.After(best.start) {
			break
		}
		if iv.DivisionID != "" && m.DivisionID != "" && iv.DivisionID != m.DivisionID {
			continue
		}

		s := e.earliestStart(m, iv)
		end := s.Add(dur)
		if end.After(iv.End) {
			continue
		}

		var cand candidate
		if iv.FieldID != "" {
			f, ok := e.fieldsByID[iv.FieldID]
			if !ok || !f.Supports(m.DivisionID) {
				continue
			}
			if e.fieldBusy(f.ID, s, end) {
				continue
			}
			cand = candidate{start: s, fieldID: f.ID, fieldNum: f.Number, slot: idx}
		} else {
			f, ok := e.bindFloating(m.DivisionID, s, end)
			if !ok {
				continue
			}
			cand = candidate{start: s, fieldID: f.ID, fieldNum: f.Number, slot: idx}
		}

		if !found || less(cand, best, e.free) {
			best = cand
			found = true
		}
	}

	return best, found
}

func less(a, b candidate, free []Interval) bool {
	if !a.start.Equal(b.start) {
		return a.start.Before(b.start)
	}
	if a.fieldNum != b.fieldNum {
		return a.fieldNum < b.fieldNum
	}
	return free[a.slot].ID < free[b.slot].ID
}

// bindFloating picks the lowest-numbered qualifying field with no conflict.
func (e *engine) bindFloating(divisionID string, start, end time.Time) (field.Field, bool) {
	for _, f := range e.fieldsOrdered {
		if !f.Supports(divisionID) {
			continue
		}
		if !e.fieldBusy(f.ID, start, end) {
			return f, true
		}
	}
	return field.Field{}, false
}

func (e *engine) fieldBusy(fieldID string, start, end time.Time) bool {
	for _, s := range e.fieldSpans[fieldID] {
		if s.start.Before(end) && start.Before(s.end) {
			return true
		}
	}
	return false
}

// commit writes the placement onto the match, splits the consumed interval,
// and updates team, field and feeder state.
func (e *engine) commit(m *match.Match, cand candidate) {
	iv := e.free[cand.slot]
	m.Start = cand.start
	m.End = cand.start.Add(e.req.Duration)
	m.FieldID = cand.fieldID

	// Split around the consumed window; fragments shorter than one match
	// are discarded.
	fragments := make([]Interval, 0, 2)
	if leading := (Interval{ID: iv.ID, FieldID: iv.FieldID, DivisionID: iv.DivisionID, Start: iv.Start, End: m.Start}); leading.End.Sub(leading.Start) >= e.req.Duration {
		fragments = append(fragments, leading)
	}
	if trailing := (Interval{ID: iv.ID, FieldID: iv.FieldID, DivisionID: iv.DivisionID, Start: m.End, End: iv.End}); trailing.End.Sub(trailing.Start) >= e.req.Duration {
		fragments = append(fragments, trailing)
	}
	e.free = append(e.free[:cand.slot], e.free[cand.slot+1:]...)
	e.free = append(e.free, fragments...)
	sortIntervals(e.free)

	s := span{start: m.Start, end: m.End}
	e.fieldSpans[m.FieldID] = append(e.fieldSpans[m.FieldID], s)
	for _, ref := range []match.TeamRef{m.Team1, m.Team2} {
		if ref.IsConcrete() {
			e.noteTeamSpan(ref.TeamID, s)
		}
	}
	e.feederEnd[m.MatchID] = m.End

	if e.req.DoTeamsRef && m.RefereeID == "" && m.TeamRefereeID == "" {
		if refID, ok := e.pickTeamReferee(m); ok {
			m.TeamRefereeID = refID
			e.refCount[refID]++
			e.noteRefereeSpan(refID, s)
		}
	}
}

// pickTeamReferee chooses the division team that is free during the match
// window and has refereed least; ties break by seed then team id.
func (e *engine) pickTeamReferee(m *match.Match) (string, bool) {
	var bestID string
	bestCount, bestSeed := 0, 0
	found := false

	sorted := append([]team.Team(nil), e.req.Teams...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, t := range sorted {
		if m.DivisionID != "" && t.DivisionID != m.DivisionID {
			continue
		}
		if (m.Team1.IsConcrete() && m.Team1.TeamID == t.ID) || (m.Team2.IsConcrete() && m.Team2.TeamID == t.ID) {
			continue
		}
		if e.teamBusy(t.ID, m.Start, m.End) {
			continue
		}
		count := e.refCount[t.ID]
		if !found || count < bestCount || (count == bestCount && t.Seed < bestSeed) {
			bestID, bestCount, bestSeed = t.ID, count, t.Seed
			found = true
		}
	}

	return bestID, found
}

func (e *engine) teamBusy(teamID string, start, end time.Time) bool {
	for _, s := range e.teamSpans[teamID] {
		if s.start.Before(end) && start.Before(s.end) {
			return true
		}
	}
	return false
}
