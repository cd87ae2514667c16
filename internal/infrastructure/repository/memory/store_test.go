package memory

import (
	"context"
	"testing"
	"time"

	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
)

func seededStore() *Store {
	s := NewStore()
	s.Seed(event.Event{
		ID:      "evt-1",
		Name:    "Summer League",
		Kind:    event.KindLeague,
		TeamIDs: []string{"t1", "t2"},
	}, nil, nil, nil, []team.Team{
		{ID: "t1", Name: "Team 1"},
		{ID: "t2", Name: "Team 2"},
	})
	return s
}

func testMatch(id int) *match.Match {
	m := match.NewWithSets(1)
	m.MatchID = id
	m.EventID = "evt-1"
	m.Team1 = match.ConcreteRef("t1")
	m.Team2 = match.ConcreteRef("t2")
	return m
}

func begin(t *testing.T, s *Store) event.Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx
}

func acquire(t *testing.T, s *Store, tx event.Tx) {
	t.Helper()
	if err := s.AcquireEventLock(context.Background(), tx, "evt-1"); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
}

func TestStore_SaveMatchesRequiresLock(t *testing.T) {
	t.Parallel()

	s := seededStore()
	tx := begin(t, s)
	defer func() { _ = tx.Rollback() }()

	err := s.SaveMatches(context.Background(), tx, "evt-1", []*match.Match{testMatch(1)})
	if err == nil {
		t.Fatalf("SaveMatches without the event lock must fail")
	}
}

func TestStore_WritesInvisibleUntilCommit(t *testing.T) {
	t.Parallel()

	s := seededStore()
	ctx := context.Background()

	writer := begin(t, s)
	acquire(t, s, writer)
	if err := s.SaveMatches(ctx, writer, "evt-1", []*match.Match{testMatch(1)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The writer sees its own buffer.
	snap, err := s.LoadEventWithRelations(ctx, writer, "evt-1")
	if err != nil {
		t.Fatalf("load in writer: %v", err)
	}
	if len(snap.Matches) != 1 {
		t.Fatalf("writer must see its buffered matches, got %d", len(snap.Matches))
	}

	// Another transaction does not.
	reader := begin(t, s)
	snap, err = s.LoadEventWithRelations(ctx, reader, "evt-1")
	if err != nil {
		t.Fatalf("load in reader: %v", err)
	}
	if len(snap.Matches) != 0 {
		t.Fatalf("uncommitted matches leaked to another tx: %d", len(snap.Matches))
	}
	_ = reader.Rollback()

	if err := writer.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	after := begin(t, s)
	defer func() { _ = after.Rollback() }()
	snap, err = s.LoadEventWithRelations(ctx, after, "evt-1")
	if err != nil {
		t.Fatalf("load after commit: %v", err)
	}
	if len(snap.Matches) != 1 {
		t.Fatalf("committed matches not visible: %d", len(snap.Matches))
	}
}

func TestStore_RollbackDiscardsBuffer(t *testing.T) {
	t.Parallel()

	s := seededStore()
	ctx := context.Background()

	tx := begin(t, s)
	acquire(t, s, tx)
	if err := s.SaveMatches(ctx, tx, "evt-1", []*match.Match{testMatch(1)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	check := begin(t, s)
	defer func() { _ = check.Rollback() }()
	snap, err := s.LoadEventWithRelations(ctx, check, "evt-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Matches) != 0 {
		t.Fatalf("rolled-back matches persisted: %d", len(snap.Matches))
	}
}

func TestStore_EventLockBlocksSecondTx(t *testing.T) {
	t.Parallel()

	s := seededStore()
	ctx := context.Background()

	first := begin(t, s)
	acquire(t, s, first)

	acquired := make(chan struct{})
	second := begin(t, s)
	go func() {
		if err := s.AcquireEventLock(ctx, second, "evt-1"); err != nil {
			t.Errorf("second acquire: %v", err)
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("second tx acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatalf("lock not released on commit")
	}
	_ = second.Rollback()
}

func TestStore_EventLockReentrant(t *testing.T) {
	t.Parallel()

	s := seededStore()
	tx := begin(t, s)
	defer func() { _ = tx.Rollback() }()

	acquire(t, s, tx)
	acquire(t, s, tx)
	if !tx.HoldsEventLock("evt-1") {
		t.Fatalf("lock not held after reentrant acquire")
	}
}

func TestStore_DeleteThenSaveReplaces(t *testing.T) {
	t.Parallel()

	s := seededStore()
	ctx := context.Background()

	setup := begin(t, s)
	acquire(t, s, setup)
	if err := s.SaveMatches(ctx, setup, "evt-1", []*match.Match{testMatch(1), testMatch(2)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := setup.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx := begin(t, s)
	acquire(t, s, tx)
	if err := s.DeleteMatchesByEvent(ctx, tx, "evt-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The delete is visible inside the transaction.
	snap, err := s.LoadEventWithRelations(ctx, tx, "evt-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Matches) != 0 {
		t.Fatalf("delete not visible in tx: %d", len(snap.Matches))
	}

	if err := s.SaveMatches(ctx, tx, "evt-1", []*match.Match{testMatch(3)}); err != nil {
		t.Fatalf("save replacement: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	check := begin(t, s)
	defer func() { _ = check.Rollback() }()
	snap, err = s.LoadEventWithRelations(ctx, check, "evt-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(snap.Matches) != 1 || snap.Matches[0].MatchID != 3 {
		t.Fatalf("replacement set wrong: %+v", snap.Matches)
	}
}

func TestStore_SaveTeamRecordsApplyOnCommit(t *testing.T) {
	t.Parallel()

	s := seededStore()
	ctx := context.Background()

	tx := begin(t, s)
	if err := s.SaveTeamRecords(ctx, tx, []team.Team{{ID: "t1", Wins: 3, Losses: 1}}); err != nil {
		t.Fatalf("save records: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	check := begin(t, s)
	defer func() { _ = check.Rollback() }()
	snap, err := s.LoadEventWithRelations(ctx, check, "evt-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := snap.TeamByID("t1")
	if !ok || got.Wins != 3 || got.Losses != 1 {
		t.Fatalf("records not applied: %+v", got)
	}
	// Only the record columns change.
	if got.Name != "Team 1" {
		t.Fatalf("commit clobbered team fields: %+v", got)
	}
}

func TestStore_SavedMatchesAreIsolatedCopies(t *testing.T) {
	t.Parallel()

	s := seededStore()
	ctx := context.Background()

	m := testMatch(1)
	tx := begin(t, s)
	acquire(t, s, tx)
	if err := s.SaveMatches(ctx, tx, "evt-1", []*match.Match{m}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Mutating the caller's match must not reach the store.
	m.Locked = true

	check := begin(t, s)
	defer func() { _ = check.Rollback() }()
	snap, err := s.LoadEventWithRelations(ctx, check, "evt-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Matches[0].Locked {
		t.Fatalf("store shares match pointers with the caller")
	}
}

func TestStore_ListEventIDsSorted(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Seed(event.Event{ID: "evt-b", Kind: event.KindLeague}, nil, nil, nil, nil)
	s.Seed(event.Event{ID: "evt-a", Kind: event.KindLeague}, nil, nil, nil, nil)

	ids, err := s.ListEventIDs(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "evt-a" || ids[1] != "evt-b" {
		t.Fatalf("unexpected id order: %v", ids)
	}
}

func TestStore_CommitTwiceFails(t *testing.T) {
	t.Parallel()

	s := seededStore()
	tx := begin(t, s)
	if err := tx.Commit(); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := tx.Commit(); err == nil {
		t.Fatalf("second commit must fail")
	}
}
