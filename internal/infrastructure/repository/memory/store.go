// Package memory is the in-process store used by tests and the demo mode.
// Writes buffer inside a transaction and apply on commit; the per-event
// advisory lock is a real mutex held for the transaction's lifetime.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/camka14/mvp-scheduler/internal/domain/division"
	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/domain/field"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
	"github.com/camka14/mvp-scheduler/internal/domain/timeslot"
)

var errTxFinished = errors.New("memory: transaction already finished")

type Store struct {
	mu        sync.RWMutex
	events    map[string]event.Event
	divisions map[string]division.Division
	fields    map[string]field.Field
	slots     map[string]timeslot.TimeSlot
	teams     map[string]team.Team
	matches   map[string][]*match.Match

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		events:    make(map[string]event.Event),
		divisions: make(map[string]division.Division),
		fields:    make(map[string]field.Field),
		slots:     make(map[string]timeslot.TimeSlot),
		teams:     make(map[string]team.Team),
		matches:   make(map[string][]*match.Match),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Seed loads an event and its relations. Existing entries with the same ids
// are replaced.
func (s *Store) Seed(e event.Event, divisions []division.Division, fields []field.Field, slots []timeslot.TimeSlot, teams []team.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[e.ID] = e
	for _, d := range divisions {
		s.divisions[d.ID] = d
	}
	for _, f := range fields {
		s.fields[f.ID] = f
	}
	for _, slot := range slots {
		s.slots[slot.ID] = slot
	}
	for _, t := range teams {
		s.teams[t.ID] = t
	}
}

type memTx struct {
	store *Store

	mu   sync.Mutex
	done bool
	held map[string]*sync.Mutex

	savedEvents    map[string]event.Event
	savedTeams     map[string]team.Team
	savedMatches   map[string][]*match.Match
	deletedMatches map[string]bool
}

func (s *Store) Begin(ctx context.Context) (event.Tx, error) {
	return &memTx{
		store:          s,
		held:           make(map[string]*sync.Mutex),
		savedEvents:    make(map[string]event.Event),
		savedTeams:     make(map[string]team.Team),
		savedMatches:   make(map[string][]*match.Match),
		deletedMatches: make(map[string]bool),
	}, nil
}

func (t *memTx) HoldsEventLock(eventID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.held[eventID]
	return ok
}

func (t *memTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errTxFinished
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	for id := range t.deletedMatches {
		delete(s.matches, id)
	}
	for id, set := range t.savedMatches {
		s.matches[id] = cloneMatches(set)
	}
	for id, e := range t.savedEvents {
		s.events[id] = e
	}
	for id, saved := range t.savedTeams {
		current, ok := s.teams[id]
		if !ok {
			continue
		}
		current.Wins = saved.Wins
		current.Losses = saved.Losses
		s.teams[id] = current
	}
	s.mu.Unlock()

	t.releaseLocks()
	return nil
}

func (t *memTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.releaseLocks()
	return nil
}

func (t *memTx) releaseLocks() {
	for _, l := range t.held {
		l.Unlock()
	}
	t.held = make(map[string]*sync.Mutex)
}

func (s *Store) AcquireEventLock(ctx context.Context, tx event.Tx, eventID string) error {
	t, err := s.tx(tx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return errTxFinished
	}
	if _, ok := t.held[eventID]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	s.locksMu.Lock()
	l, ok := s.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[eventID] = l
	}
	s.locksMu.Unlock()

	// Block outside t.mu so a competing holder can finish.
	l.Lock()

	t.mu.Lock()
	t.held[eventID] = l
	t.mu.Unlock()
	return nil
}

func (s *Store) LoadEventWithRelations(ctx context.Context, tx event.Tx, eventID string) (*event.Snapshot, error) {
	t, err := s.tx(tx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok {
		return nil, errors.Newf("memory: event %s not found", eventID)
	}
	t.mu.Lock()
	if buffered, ok := t.savedEvents[eventID]; ok {
		e = buffered
	}
	t.mu.Unlock()

	snap := &event.Snapshot{Event: &e}
	for _, id := range e.DivisionIDs {
		if d, ok := s.divisions[id]; ok {
			snap.Divisions = append(snap.Divisions, d)
		}
	}
	for _, id := range e.FieldIDs {
		if f, ok := s.fields[id]; ok {
			snap.Fields = append(snap.Fields, f)
		}
	}
	for _, id := range e.TimeSlotIDs {
		if slot, ok := s.slots[id]; ok {
			snap.Slots = append(snap.Slots, slot)
		}
	}
	for _, id := range e.TeamIDs {
		if tm, ok := s.teams[id]; ok {
			t.mu.Lock()
			if saved, ok := t.savedTeams[id]; ok {
				tm.Wins = saved.Wins
				tm.Losses = saved.Losses
			}
			t.mu.Unlock()
			snap.Teams = append(snap.Teams, tm)
		}
	}

	t.mu.Lock()
	if set, ok := t.savedMatches[eventID]; ok {
		snap.Matches = cloneMatches(set)
	} else if !t.deletedMatches[eventID] {
		snap.Matches = cloneMatches(s.matches[eventID])
	}
	t.mu.Unlock()

	return snap, nil
}

func (s *Store) SaveMatches(ctx context.Context, tx event.Tx, eventID string, matches []*match.Match) error {
	t, err := s.lockedTx(tx, eventID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.savedMatches[eventID] = cloneMatches(matches)
	delete(t.deletedMatches, eventID)
	return nil
}

func (s *Store) SaveTeamRecords(ctx context.Context, tx event.Tx, teams []team.Team) error {
	t, err := s.tx(tx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tm := range teams {
		t.savedTeams[tm.ID] = tm
	}
	return nil
}

func (s *Store) SaveEventSchedule(ctx context.Context, tx event.Tx, e *event.Event) error {
	t, err := s.lockedTx(tx, e.ID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.savedEvents[e.ID] = *e
	return nil
}

func (s *Store) DeleteMatchesByEvent(ctx context.Context, tx event.Tx, eventID string) error {
	t, err := s.lockedTx(tx, eventID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.savedMatches, eventID)
	t.deletedMatches[eventID] = true
	return nil
}

func (s *Store) ListEventIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.events))
	for id := range s.events {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) tx(tx event.Tx) (*memTx, error) {
	t, ok := tx.(*memTx)
	if !ok || t == nil || t.store != s {
		return nil, errors.New("memory: transaction does not belong to this store")
	}
	return t, nil
}

func (s *Store) lockedTx(tx event.Tx, eventID string) (*memTx, error) {
	t, err := s.tx(tx)
	if err != nil {
		return nil, err
	}
	if !t.HoldsEventLock(eventID) {
		return nil, errors.Newf("memory: event lock for %s is not held", eventID)
	}
	return t, nil
}

func cloneMatches(in []*match.Match) []*match.Match {
	out := make([]*match.Match, 0, len(in))
	for _, m := range in {
		out = append(out, m.Clone())
	}
	return out
}
