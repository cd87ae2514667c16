package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
	"github.com/camka14/mvp-scheduler/internal/platform/logging"
	"github.com/camka14/mvp-scheduler/internal/platform/resilience"
	"github.com/camka14/mvp-scheduler/internal/scheduling/placement"
)

const isoMillisLayout = "2006-01-02T15:04:05.000Z"

// Actor identifies the caller of a match mutation. Hosts may edit locked
// matches; everyone else is rejected.
type Actor struct {
	UserID string
	IsHost bool
}

// MatchUpdates carries the editable match fields. Nil pointers leave the
// current value untouched; a pointer to the empty string clears the field.
type MatchUpdates struct {
	Team1Points []int
	Team2Points []int
	SetResults  []int

	Team1ID       *string
	Team2ID       *string
	RefereeID     *string
	TeamRefereeID *string
	FieldID       *string
	Start         *time.Time
	End           *time.Time

	Locked           *bool
	RefereeCheckedIn *bool
}

// MatchService applies score updates, finalizes matches with bracket
// advancement and team records, and relocates overdue matches.
type MatchService struct {
	store    event.Store
	notifier event.Notifier
	logger   *logging.Logger
	breaker  *resilience.CircuitBreaker

	now          func() time.Time
	horizonWeeks int
}

func NewMatchService(store event.Store, notifier event.Notifier, logger *logging.Logger, opts ...MatchOption) *MatchService {
	cbCfg := resilience.DefaultCircuitBreakerConfig()
	s := &MatchService{
		store:        store,
		notifier:     notifier,
		logger:       logger,
		breaker:      resilience.NewCircuitBreaker(cbCfg.FailureThreshold, cbCfg.OpenTimeout, cbCfg.HalfOpenMaxReq),
		now:          time.Now,
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

type MatchOption func(*MatchService)

// WithClock fixes the service's notion of now. Tests use it.
func WithClock(now func() time.Time) MatchOption {
	return func(s *MatchService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithNotifyBreaker(cfg resilience.CircuitBreakerConfig) MatchOption {
	return func(s *MatchService) {
		cfg = resilience.NormalizeCircuitBreakerConfig(cfg)
		if !cfg.Enabled {
			s.breaker = nil
			return
		}
		s.breaker = resilience.NewCircuitBreaker(cfg.FailureThreshold, cfg.OpenTimeout, cfg.HalfOpenMaxReq)
	}
}

func WithMatchHorizonWeeks(weeks int) MatchOption {
	return func(s *MatchService) {
		if weeks > 0 {
			s.horizonWeeks = weeks
		}
	}
}

// ApplyUpdates merges the allowed edits onto one match and persists the
// event's match set. Locked matches reject edits from non-hosts.
func (s *MatchService) ApplyUpdates(ctx context.Context, tx event.Tx, eventID string, matchID int, updates MatchUpdates, actor Actor) (*match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.ApplyUpdates")
	defer span.End()

	if err := requireEventLock(tx, eventID); err != nil {
		return nil, err
	}
	snap, err := s.store.LoadEventWithRelations(ctx, tx, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "load event with relations")
	}
	m, ok := snap.MatchByID(matchID)
	if !ok {
		return nil, NewConfigError(fmt.Sprintf("match %d does not exist in event %s", matchID, eventID))
	}
	if m.Locked && !actor.IsHost {
		return nil, NewConfigError(fmt.Sprintf("match %d is locked", matchID))
	}

	applyUpdates(m, updates)
	if err := m.ValidateScores(); err != nil {
		return nil, NewConfigError(err.Error())
	}

	if err := s.store.SaveMatches(ctx, tx, eventID, snap.Matches); err != nil {
		return nil, errors.Wrap(err, "save matches")
	}

	s.logger.DebugContext(ctx, "match updated", "event_id", eventID, "match_id", matchID, "actor", actor.UserID)
	return m, nil
}

func applyUpdates(m *match.Match, u MatchUpdates) {
	if u.Team1Points != nil {
		m.Team1Points = append([]int(nil), u.Team1Points...)
	}
	if u.Team2Points != nil {
		m.Team2Points = append([]int(nil), u.Team2Points...)
	}
	if u.SetResults != nil {
		m.SetResults = append([]int(nil), u.SetResults...)
	}
	if u.Team1ID != nil {
		m.Team1 = refFromID(*u.Team1ID)
	}
	if u.Team2ID != nil {
		m.Team2 = refFromID(*u.Team2ID)
	}
	if u.RefereeID != nil {
		m.RefereeID = *u.RefereeID
	}
	if u.TeamRefereeID != nil {
		m.TeamRefereeID = *u.TeamRefereeID
	}
	if u.FieldID != nil {
		m.FieldID = *u.FieldID
	}
	if u.Start != nil {
		m.Start = *u.Start
	}
	if u.End != nil {
		m.End = *u.End
	}
	if u.Locked != nil {
		m.Locked = *u.Locked
	}
	if u.RefereeCheckedIn != nil {
		m.RefereeCheckedIn = *u.RefereeCheckedIn
	}
}

func refFromID(teamID string) match.TeamRef {
	if teamID == "" {
		return match.NoRef()
	}
	return match.ConcreteRef(teamID)
}

// Finalize fixes the match winner, updates team records, advances bracket
// links, resolves league standings placeholders once the regular season is
// complete, and relocates any overdue matches. Finalizing an already
// finalized match is a no-op.
func (s *MatchService) Finalize(ctx context.Context, tx event.Tx, eventID string, matchID int) (*match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Finalize")
	defer span.End()

	if err := requireEventLock(tx, eventID); err != nil {
		return nil, err
	}
	snap, err := s.store.LoadEventWithRelations(ctx, tx, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "load event with relations")
	}
	m, ok := snap.MatchByID(matchID)
	if !ok {
		return nil, NewConfigError(fmt.Sprintf("match %d does not exist in event %s", matchID, eventID))
	}
	if m.Finalized {
		return m, nil
	}
	if !m.AllSetsDecided() {
		return nil, NewConfigError(fmt.Sprintf("match %d has undecided sets", matchID))
	}

	team1Won, err := s.decideWinner(snap.Event, m)
	if err != nil {
		return nil, err
	}

	winner, loser := m.Team1, m.Team2
	if !team1Won {
		winner, loser = m.Team2, m.Team1
	}

	changed := s.updateRecords(snap, winner, loser)
	s.advance(snap, m, winner, loser, team1Won)
	m.Finalized = true
	s.resolveStandings(snap, m)

	if err := s.autoReschedule(ctx, tx, snap); err != nil {
		return nil, err
	}

	if err := s.store.SaveMatches(ctx, tx, eventID, snap.Matches); err != nil {
		return nil, errors.Wrap(err, "save matches")
	}
	if len(changed) > 0 {
		if err := s.store.SaveTeamRecords(ctx, tx, changed); err != nil {
			return nil, errors.Wrap(err, "save team records")
		}
	}

	s.logger.InfoContext(ctx, "match finalized",
		"event_id", eventID, "match_id", matchID, "winner", winner.String())
	return m, nil
}

// decideWinner applies set majority, falling back to total points when the
// event configures points-to-victory criteria for the match's bracket.
func (s *MatchService) decideWinner(e *event.Event, m *match.Match) (bool, error) {
	sets1, sets2 := m.SetsWon()
	if sets1 != sets2 {
		return sets1 > sets2, nil
	}
	if !pointsCriteriaConfigured(e, m) {
		return false, NewConfigError("Set cannot end in a tie")
	}
	points1, points2 := m.TotalPoints()
	if points1 == points2 {
		return false, NewConfigError("Set cannot end in a tie")
	}
	return points1 > points2, nil
}

func pointsCriteriaConfigured(e *event.Event, m *match.Match) bool {
	if isBracketMatch(m) {
		if m.LosersBracket {
			return len(e.LoserBracketPointsToVictory) > 0 || len(e.PointsToVictory) > 0
		}
		return len(e.WinnerBracketPointsToVictory) > 0 || len(e.PointsToVictory) > 0
	}
	return len(e.PointsToVictory) > 0
}

// updateRecords bumps wins and losses for the concrete participants and
// returns the changed teams.
func (s *MatchService) updateRecords(snap *event.Snapshot, winner, loser match.TeamRef) []team.Team {
	var changed []team.Team
	for i := range snap.Teams {
		t := &snap.Teams[i]
		if winner.IsConcrete() && t.ID == winner.TeamID {
			t.Wins++
			changed = append(changed, *t)
		}
		if loser.IsConcrete() && t.ID == loser.TeamID {
			t.Losses++
			changed = append(changed, *t)
		}
	}
	return changed
}

// advance pushes winner and loser into their next matches. The bracket
// reset is the one match fed twice by the same feeder: the winner takes
// team1, the loser team2, and the reset only unlocks when the
// loser-bracket finalist won the grand final.
func (s *MatchService) advance(snap *event.Snapshot, m *match.Match, winner, loser match.TeamRef, team1Won bool) {
	if m.WinnerNextID > 0 {
		if target, ok := snap.MatchByID(m.WinnerNextID); ok {
			if target.PreviousLeftID == m.MatchID && target.PreviousRightID == m.MatchID {
				target.Team1 = winner
				target.Team2 = loser
				if !team1Won {
					target.Locked = false
				} else {
					target.Finalized = true
				}
			} else {
				fillSlot(target, m.MatchID, winner)
			}
		}
	}
	if m.LoserNextID > 0 && m.LoserNextID != m.WinnerNextID {
		if target, ok := snap.MatchByID(m.LoserNextID); ok {
			fillSlot(target, m.MatchID, loser)
		}
	}
}

func fillSlot(target *match.Match, feederID int, ref match.TeamRef) {
	switch feederID {
	case target.PreviousLeftID:
		target.Team1 = ref
	case target.PreviousRightID:
		target.Team2 = ref
	}
}

// resolveStandings replaces standings placeholders with concrete teams once
// every regular-season match in the division is finalized.
func (s *MatchService) resolveStandings(snap *event.Snapshot, m *match.Match) {
	e := snap.Event
	if e.Kind == event.KindTournament || !e.IncludePlayoffs || isBracketMatch(m) {
		return
	}
	for _, other := range snap.Matches {
		if isBracketMatch(other) || other.DivisionID != m.DivisionID {
			continue
		}
		if !other.Finalized {
			return
		}
	}

	var divTeams []team.Team
	for _, t := range snap.Teams {
		if e.SingleDivision || t.DivisionID == m.DivisionID {
			divTeams = append(divTeams, t)
		}
	}
	ranked := rankTeams(divTeams)

	for _, bm := range snap.Matches {
		if !isBracketMatch(bm) || bm.DivisionID != m.DivisionID {
			continue
		}
		if bm.Team1.Kind == match.RefStanding && bm.Team1.Rank <= len(ranked) {
			bm.Team1 = match.ConcreteRef(ranked[bm.Team1.Rank-1].ID)
		}
		if bm.Team2.Kind == match.RefStanding && bm.Team2.Rank <= len(ranked) {
			bm.Team2 = match.ConcreteRef(ranked[bm.Team2.Rank-1].ID)
		}
	}
}

// autoReschedule relocates matches whose window has passed without a single
// recorded set. Partially scored matches are in progress and stay put.
func (s *MatchService) autoReschedule(ctx context.Context, tx event.Tx, snap *event.Snapshot) error {
	e := snap.Event
	now := s.now().UTC()

	var overdue, kept []*match.Match
	for _, m := range snap.Matches {
		if !m.Finalized && !m.Locked && !m.End.IsZero() && !m.End.After(now) && m.Untouched() {
			overdue = append(overdue, m)
			continue
		}
		kept = append(kept, m)
	}
	if len(overdue) == 0 {
		return nil
	}

	windowEnd := e.End
	if e.NoFixedEnd {
		horizon := e.Start.AddDate(0, 0, 7*s.horizonWeeks)
		if horizon.After(windowEnd) {
			windowEnd = horizon
		}
	}
	free := placement.ExpandSlots(snap.Slots, e.Start, windowEnd)
	free = placement.SubtractMatches(free, kept, e.MatchDuration())

	ordered := orderForPlacement(overdue)
	req := placement.Request{
		Matches:    ordered,
		Teams:      snap.Teams,
		Fields:     snap.Fields,
		Free:       free,
		Duration:   e.MatchDuration(),
		Rest:       time.Duration(e.RestMinutes) * time.Minute,
		NotBefore:  now,
		PrePlaced:  kept,
		DoTeamsRef: false,
	}
	if err := placement.Place(req); err != nil {
		var capErr *placement.CapacityError
		if !errors.As(err, &capErr) {
			return err
		}
		if e.NoFixedEnd {
			return &InfeasibleError{ApproxMatchesNeeded: capErr.Unplaced}
		}
		failed := ordered[len(ordered)-capErr.Unplaced]
		failure := event.RescheduleFailure{
			EventID:     e.ID,
			EventName:   e.Name,
			EventEndISO: e.End.UTC().Format(isoMillisLayout),
			HostID:      e.HostID,
			MatchID:     failed.MatchID,
		}
		s.notifyHost(ctx, failure)
		return &WindowExceededError{Failure: failure}
	}

	if e.NoFixedEnd {
		lastEnd := e.End
		for _, m := range snap.Matches {
			if m.End.After(lastEnd) {
				lastEnd = m.End
			}
		}
		if lastEnd.After(e.End) {
			e.End = lastEnd
			if err := s.store.SaveEventSchedule(ctx, tx, e); err != nil {
				return errors.Wrap(err, "save extended event end")
			}
		}
	}

	s.logger.InfoContext(ctx, "overdue matches rescheduled", "event_id", e.ID, "count", len(overdue))
	return nil
}

// notifyHost is best-effort and must never fail or panic into the caller.
func (s *MatchService) notifyHost(ctx context.Context, failure event.RescheduleFailure) {
	if s.notifier == nil {
		return
	}
	if s.breaker != nil {
		if err := s.breaker.Allow(); err != nil {
			s.logger.WarnContext(ctx, "host notification skipped", "event_id", failure.EventID, "error", err)
			return
		}
	}
	defer func() {
		if r := recover(); r != nil {
			if s.breaker != nil {
				s.breaker.RecordFailure()
			}
			s.logger.ErrorContext(ctx, "host notifier panicked", "event_id", failure.EventID, "panic", fmt.Sprint(r))
		}
	}()
	if err := s.notifier.NotifyHostOfAutoRescheduleFailure(ctx, failure); err != nil {
		if s.breaker != nil {
			s.breaker.RecordFailure()
		}
		s.logger.ErrorContext(ctx, "host notification failed", "event_id", failure.EventID, "error", err)
		return
	}
	if s.breaker != nil {
		s.breaker.RecordSuccess()
	}
}
