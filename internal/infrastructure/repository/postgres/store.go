// Package postgres persists events, matches and relations in PostgreSQL.
// The per-event advisory lock maps event ids onto pg_advisory_xact_lock
// keys, so the lock lives and dies with the wrapping transaction.
package postgres

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/camka14/mvp-scheduler/internal/domain/division"
	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/domain/field"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
	"github.com/camka14/mvp-scheduler/internal/domain/timeslot"
	qb "github.com/camka14/mvp-scheduler/internal/platform/querybuilder"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type pgTx struct {
	tx *sqlx.Tx

	mu   sync.Mutex
	done bool
	held map[string]bool
}

func (t *pgTx) HoldsEventLock(eventID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.held[eventID]
}

func (t *pgTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New("postgres: transaction already finished")
	}
	t.done = true
	t.held = nil
	return t.tx.Commit()
}

func (t *pgTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.held = nil
	return t.tx.Rollback()
}

func (s *Store) Begin(ctx context.Context) (event.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	return &pgTx{tx: tx, held: make(map[string]bool)}, nil
}

// AcquireEventLock blocks until the advisory lock keyed by the event id is
// held. The lock key is the FNV-1a hash of the id; Postgres releases it
// when the transaction ends.
func (s *Store) AcquireEventLock(ctx context.Context, tx event.Tx, eventID string) error {
	t, err := s.tx(tx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.held[eventID] {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if _, err := t.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey(eventID)); err != nil {
		return errors.Wrapf(err, "acquire advisory lock for event %s", eventID)
	}

	t.mu.Lock()
	t.held[eventID] = true
	t.mu.Unlock()
	return nil
}

func advisoryLockKey(eventID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(eventID))
	return int64(h.Sum64())
}

func (s *Store) LoadEventWithRelations(ctx context.Context, tx event.Tx, eventID string) (*event.Snapshot, error) {
	t, err := s.tx(tx)
	if err != nil {
		return nil, err
	}

	query, args, err := qb.Select("*").From("events").Where(qb.Eq("id", eventID)).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build select event")
	}
	var row eventTableModel
	if err := t.tx.GetContext(ctx, &row, query, args...); err != nil {
		return nil, errors.Wrapf(err, "select event %s", eventID)
	}
	e := row.toDomain()
	snap := &event.Snapshot{Event: e}

	if snap.Divisions, err = s.loadDivisions(ctx, t, e.DivisionIDs); err != nil {
		return nil, err
	}
	if snap.Fields, err = s.loadFields(ctx, t, e.FieldIDs); err != nil {
		return nil, err
	}
	if snap.Slots, err = s.loadSlots(ctx, t, e.TimeSlotIDs); err != nil {
		return nil, err
	}
	if snap.Teams, err = s.loadTeams(ctx, t, e.TeamIDs); err != nil {
		return nil, err
	}
	if snap.Matches, err = s.loadMatches(ctx, t, eventID); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) loadDivisions(ctx context.Context, t *pgTx, ids []string) ([]division.Division, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := qb.Select("*").From("divisions").Where(qb.In("id", anyValues(ids))).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build select divisions")
	}
	var rows []divisionTableModel
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select divisions")
	}
	byID := make(map[string]division.Division, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toDomain()
	}
	return inEventOrder(ids, byID), nil
}

func (s *Store) loadFields(ctx context.Context, t *pgTx, ids []string) ([]field.Field, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := qb.Select("*").From("fields").Where(qb.In("id", anyValues(ids))).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build select fields")
	}
	var rows []fieldTableModel
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select fields")
	}
	byID := make(map[string]field.Field, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toDomain()
	}
	return inEventOrder(ids, byID), nil
}

func (s *Store) loadSlots(ctx context.Context, t *pgTx, ids []string) ([]timeslot.TimeSlot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := qb.Select("*").From("time_slots").Where(qb.In("id", anyValues(ids))).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build select time slots")
	}
	var rows []timeSlotTableModel
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select time slots")
	}
	byID := make(map[string]timeslot.TimeSlot, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toDomain()
	}
	return inEventOrder(ids, byID), nil
}

func (s *Store) loadTeams(ctx context.Context, t *pgTx, ids []string) ([]team.Team, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := qb.Select("*").From("teams").Where(qb.In("id", anyValues(ids))).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build select teams")
	}
	var rows []teamTableModel
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select teams")
	}
	byID := make(map[string]team.Team, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toDomain()
	}
	return inEventOrder(ids, byID), nil
}

func (s *Store) loadMatches(ctx context.Context, t *pgTx, eventID string) ([]*match.Match, error) {
	query, args, err := qb.Select("*").From("matches").
		Where(qb.Eq("event_id", eventID)).
		OrderBy("match_id").
		ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build select matches")
	}
	var rows []matchTableModel
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "select matches")
	}
	out := make([]*match.Match, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) SaveMatches(ctx context.Context, tx event.Tx, eventID string, matches []*match.Match) error {
	t, err := s.lockedTx(tx, eventID)
	if err != nil {
		return err
	}

	if err := s.deleteMatches(ctx, t, eventID); err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	builder := qb.InsertInto("matches").Columns(
		"id", "event_id", "match_id", "team1_ref", "team2_ref",
		"referee_id", "team_referee_id", "field_id", "start_at", "end_at",
		"team1_points", "team2_points", "set_results",
		"losers_bracket", "winner_next_id", "loser_next_id",
		"previous_left_id", "previous_right_id",
		"locked", "referee_checked_in", "division_id", "round", "finalized",
	)
	for _, m := range matches {
		builder.Values(
			m.ID, eventID, m.MatchID, encodeTeamRef(m.Team1), encodeTeamRef(m.Team2),
			nullString(m.RefereeID), nullString(m.TeamRefereeID), nullString(m.FieldID),
			nullTime(m.Start), nullTime(m.End),
			intsToInt64s(m.Team1Points), intsToInt64s(m.Team2Points), intsToInt64s(m.SetResults),
			m.LosersBracket, m.WinnerNextID, m.LoserNextID,
			m.PreviousLeftID, m.PreviousRightID,
			m.Locked, m.RefereeCheckedIn, nullString(m.DivisionID), m.Round, m.Finalized,
		)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return errors.Wrap(err, "build insert matches")
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "insert matches for event %s", eventID)
	}
	return nil
}

func (s *Store) SaveTeamRecords(ctx context.Context, tx event.Tx, teams []team.Team) error {
	t, err := s.tx(tx)
	if err != nil {
		return err
	}
	for _, tm := range teams {
		query, args, err := qb.Update("teams").
			Set("wins", tm.Wins).
			Set("losses", tm.Losses).
			SetExpr("updated_at", "NOW()").
			Where(qb.Eq("id", tm.ID)).
			ToSQL()
		if err != nil {
			return errors.Wrap(err, "build update team record")
		}
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "update record for team %s", tm.ID)
		}
	}
	return nil
}

func (s *Store) SaveEventSchedule(ctx context.Context, tx event.Tx, e *event.Event) error {
	t, err := s.lockedTx(tx, e.ID)
	if err != nil {
		return err
	}
	query, args, err := qb.Update("events").
		Set("end_at", e.End.UTC()).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", e.ID)).
		ToSQL()
	if err != nil {
		return errors.Wrap(err, "build update event schedule")
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "update schedule for event %s", e.ID)
	}
	return nil
}

func (s *Store) DeleteMatchesByEvent(ctx context.Context, tx event.Tx, eventID string) error {
	t, err := s.lockedTx(tx, eventID)
	if err != nil {
		return err
	}
	return s.deleteMatches(ctx, t, eventID)
}

func (s *Store) deleteMatches(ctx context.Context, t *pgTx, eventID string) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM matches WHERE event_id = $1", eventID); err != nil {
		return errors.Wrapf(err, "delete matches for event %s", eventID)
	}
	return nil
}

func (s *Store) ListEventIDs(ctx context.Context) ([]string, error) {
	query, _, err := qb.Select("id").From("events").OrderBy("id").ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build list event ids")
	}
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, errors.Wrap(err, "list event ids")
	}
	return ids, nil
}

func (s *Store) tx(tx event.Tx) (*pgTx, error) {
	t, ok := tx.(*pgTx)
	if !ok || t == nil {
		return nil, errors.New("postgres: transaction does not belong to this store")
	}
	return t, nil
}

func (s *Store) lockedTx(tx event.Tx, eventID string) (*pgTx, error) {
	t, err := s.tx(tx)
	if err != nil {
		return nil, err
	}
	if !t.HoldsEventLock(eventID) {
		return nil, errors.Newf("postgres: event lock for %s is not held", eventID)
	}
	return t, nil
}

func anyValues(ids []string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

// inEventOrder re-sorts loaded rows into the event's declared id order so
// scheduling stays deterministic regardless of database ordering.
func inEventOrder[T any](ids []string, byID map[string]T) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}
