package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
	"github.com/camka14/mvp-scheduler/internal/platform/id"
	"github.com/camka14/mvp-scheduler/internal/platform/logging"
	"github.com/camka14/mvp-scheduler/internal/scheduling/bracket"
	"github.com/camka14/mvp-scheduler/internal/scheduling/placement"
	"github.com/camka14/mvp-scheduler/internal/scheduling/roundrobin"
)

// DefaultHorizonWeeks bounds template expansion when the event has no fixed
// end. Must leave room for every required match plus a week of slack.
const DefaultHorizonWeeks = 52

// SchedulerService composes pairing generation, bracket construction and
// slot placement into full event schedules.
type SchedulerService struct {
	store        event.Store
	ids          id.Generator
	logger       *logging.Logger
	horizonWeeks int
	debug        bool
}

func NewSchedulerService(store event.Store, logger *logging.Logger, opts ...SchedulerOption) *SchedulerService {
	s := &SchedulerService{
		store:        store,
		ids:          id.NewRandomGenerator(),
		logger:       logger,
		horizonWeeks: DefaultHorizonWeeks,
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SchedulerOption func(*SchedulerService)

func WithHorizonWeeks(weeks int) SchedulerOption {
	return func(s *SchedulerService) {
		if weeks > 0 {
			s.horizonWeeks = weeks
		}
	}
}

// WithDebug turns on per-placement diagnostics (SCHEDULER_DEBUG).
func WithDebug(enabled bool) SchedulerOption {
	return func(s *SchedulerService) { s.debug = enabled }
}

// Preview summarizes a computed schedule.
type Preview struct {
	MatchCount   int
	FirstStart   time.Time
	LastEnd      time.Time
	EffectiveEnd time.Time
}

// ScheduleResult is the outcome of one schedule computation. Event is the
// input event, with End advanced when a no-fixed-end schedule ran past it.
type ScheduleResult struct {
	Event   *event.Event
	Matches []*match.Match
	Preview Preview
}

// BuildSchedule computes the full match set for a snapshot. It is pure:
// no I/O, no store writes, deterministic for identical input.
func (s *SchedulerService) BuildSchedule(ctx context.Context, snap *event.Snapshot) (*ScheduleResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SchedulerService.BuildSchedule")
	defer span.End()

	if problems := event.ValidateForScheduling(snap); len(problems) > 0 {
		return nil, NewConfigError(problems...)
	}

	e := snap.Event
	matches, err := s.buildAbstractMatches(snap)
	if err != nil {
		return nil, err
	}

	s.assignUserReferees(e, matches)

	windowEnd := e.End
	if e.NoFixedEnd {
		horizon := e.Start.AddDate(0, 0, 7*s.horizonWeeks)
		if horizon.After(windowEnd) {
			windowEnd = horizon
		}
	}
	free := placement.ExpandSlots(snap.Slots, e.Start, windowEnd)

	ordered := orderForPlacement(matches)
	req := placement.Request{
		Matches:    ordered,
		Teams:      snap.Teams,
		Fields:     snap.Fields,
		Free:       free,
		Duration:   e.MatchDuration(),
		Rest:       time.Duration(e.RestMinutes) * time.Minute,
		DoTeamsRef: e.DoTeamsRef,
	}
	if s.debug {
		req.Logf = func(format string, args ...any) {
			s.logger.DebugContext(ctx, fmt.Sprintf(format, args...))
		}
	}
	if err := placement.Place(req); err != nil {
		var capErr *placement.CapacityError
		if errors.As(err, &capErr) {
			return nil, &InfeasibleError{ApproxMatchesNeeded: len(matches)}
		}
		return nil, err
	}

	match.SortByID(matches)

	out := *e
	preview := Preview{MatchCount: len(matches), EffectiveEnd: e.End}
	for _, m := range matches {
		if preview.FirstStart.IsZero() || m.Start.Before(preview.FirstStart) {
			preview.FirstStart = m.Start
		}
		if m.End.After(preview.LastEnd) {
			preview.LastEnd = m.End
		}
	}
	if e.NoFixedEnd && preview.LastEnd.After(out.End) {
		out.End = preview.LastEnd
		preview.EffectiveEnd = preview.LastEnd
	}

	return &ScheduleResult{Event: &out, Matches: matches, Preview: preview}, nil
}

// ScheduleEvent loads the event under its advisory lock, computes the
// schedule, and replaces the persisted match set. The caller owns the
// transaction and commits or rolls back.
func (s *SchedulerService) ScheduleEvent(ctx context.Context, tx event.Tx, eventID string) (*ScheduleResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SchedulerService.ScheduleEvent")
	defer span.End()

	if err := s.store.AcquireEventLock(ctx, tx, eventID); err != nil {
		return nil, errors.Wrap(err, "acquire event lock")
	}
	if err := requireEventLock(tx, eventID); err != nil {
		return nil, err
	}

	snap, err := s.store.LoadEventWithRelations(ctx, tx, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "load event with relations")
	}

	result, err := s.BuildSchedule(ctx, snap)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteMatchesByEvent(ctx, tx, eventID); err != nil {
		return nil, errors.Wrap(err, "delete previous matches")
	}
	if err := s.store.SaveMatches(ctx, tx, eventID, result.Matches); err != nil {
		return nil, errors.Wrap(err, "save matches")
	}
	if err := s.store.SaveEventSchedule(ctx, tx, result.Event); err != nil {
		return nil, errors.Wrap(err, "save event schedule")
	}

	s.logger.InfoContext(ctx, "event scheduled",
		"event_id", eventID,
		"matches", len(result.Matches),
		"first_start", result.Preview.FirstStart,
		"effective_end", result.Preview.EffectiveEnd,
	)

	return result, nil
}

// buildAbstractMatches produces the unplaced match list: round-robin play
// for league-style events, an elimination bracket for tournaments, and a
// standings-seeded playoff bracket when the league includes one. Match ids
// are assigned 1..M in concatenation order across divisions.
func (s *SchedulerService) buildAbstractMatches(snap *event.Snapshot) ([]*match.Match, error) {
	e := snap.Event
	divisionIDs, buckets := snap.DivisionPartition()

	var out []*match.Match
	for _, divisionID := range divisionIDs {
		teams := buckets[divisionID]
		block, err := s.buildDivision(e, divisionID, teams)
		if err != nil {
			return nil, err
		}
		out = appendWithOffset(out, block)
	}

	for _, m := range out {
		m.EventID = e.ID
		storageID, err := s.ids.NewID()
		if err != nil {
			return nil, errors.Wrap(err, "generate match id")
		}
		m.ID = storageID
	}

	return out, nil
}

func (s *SchedulerService) buildDivision(e *event.Event, divisionID string, teams []team.Team) ([]*match.Match, error) {
	if e.Kind == event.KindTournament {
		entries := make([]bracket.Entry, 0, len(teams))
		for _, t := range teams {
			entries = append(entries, bracket.Entry{Ref: match.ConcreteRef(t.ID), Seed: t.Seed})
		}
		block := bracket.Build(e.ID, entries, bracket.Options{
			DoubleElimination: e.DoubleElimination,
			WinnerSetCount:    e.WinnerSetCount,
			LoserSetCount:     e.LoserSetCount,
		})
		if len(block) == 0 {
			return nil, NewConfigError(fmt.Sprintf("division %s needs at least 3 teams for a bracket, found %d", divisionID, len(teams)))
		}
		tagDivision(block, divisionID)
		return block, nil
	}

	games := e.GamesPerOpponent
	if games < 1 {
		games = 1
	}
	teamIDs := make([]string, 0, len(teams))
	for _, t := range teams {
		teamIDs = append(teamIDs, t.ID)
	}

	var block []*match.Match
	for roundIdx, round := range roundrobin.Rounds(teamIDs, games) {
		for _, pairing := range round {
			m := match.NewWithSets(e.SetsPerRegularMatch())
			m.MatchID = len(block) + 1
			m.Round = roundIdx + 1
			m.Team1 = match.ConcreteRef(pairing.Home)
			m.Team2 = match.ConcreteRef(pairing.Away)
			block = append(block, m)
		}
	}

	if e.IncludePlayoffs {
		if e.PlayoffTeamCount < 3 {
			return nil, NewConfigError(fmt.Sprintf("division %s playoffs need at least 3 teams, configured %d", divisionID, e.PlayoffTeamCount))
		}
		entries := make([]bracket.Entry, 0, e.PlayoffTeamCount)
		for rank := 1; rank <= e.PlayoffTeamCount; rank++ {
			entries = append(entries, bracket.Entry{Ref: match.StandingRef(rank), Seed: rank})
		}
		playoffs := bracket.Build(e.ID, entries, bracket.Options{
			DoubleElimination: e.DoubleElimination,
			WinnerSetCount:    e.WinnerSetCount,
			LoserSetCount:     e.LoserSetCount,
		})
		// Playoff rounds start after the last regular-season round so
		// placement keeps them at the tail of the calendar.
		regularRounds := 0
		for _, m := range block {
			if m.Round > regularRounds {
				regularRounds = m.Round
			}
		}
		for _, m := range playoffs {
			m.Round += regularRounds
		}
		block = appendWithOffset(block, playoffs)
	}

	tagDivision(block, divisionID)
	return block, nil
}

func tagDivision(matches []*match.Match, divisionID string) {
	for _, m := range matches {
		m.DivisionID = divisionID
	}
}

// appendWithOffset concatenates a locally numbered block onto dst,
// renumbering its match ids and every internal link past dst's end.
func appendWithOffset(dst, block []*match.Match) []*match.Match {
	offset := len(dst)
	for _, m := range block {
		m.MatchID += offset
		if m.WinnerNextID > 0 {
			m.WinnerNextID += offset
		}
		if m.LoserNextID > 0 {
			m.LoserNextID += offset
		}
		if m.PreviousLeftID > 0 {
			m.PreviousLeftID += offset
		}
		if m.PreviousRightID > 0 {
			m.PreviousRightID += offset
		}
		if m.Team1.Kind == match.RefFeeder {
			m.Team1.FeederID += offset
		}
		if m.Team2.Kind == match.RefFeeder {
			m.Team2.FeederID += offset
		}
		dst = append(dst, m)
	}
	return dst
}

// assignUserReferees distributes the event's referee pool round-robin over
// the match list; team referees remain a placement concern.
func (s *SchedulerService) assignUserReferees(e *event.Event, matches []*match.Match) {
	if len(e.RefereeIDs) == 0 {
		return
	}
	for _, m := range matches {
		m.RefereeID = e.RefereeIDs[(m.MatchID-1)%len(e.RefereeIDs)]
	}
}

// requireEventLock guards every mutation path: the advisory lock must have
// been taken inside the transaction.
func requireEventLock(tx event.Tx, eventID string) error {
	if tx == nil || !tx.HoldsEventLock(eventID) {
		return errors.Wrapf(ErrNoEventLock, "event %s", eventID)
	}
	return nil
}
