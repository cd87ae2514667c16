package event

import (
	"context"

	"github.com/camka14/mvp-scheduler/internal/domain/match"
	"github.com/camka14/mvp-scheduler/internal/domain/team"
)

// Tx is the persistence transaction every mutating operation runs inside.
// The per-event advisory lock is scoped to it and released when the
// transaction ends, commit or rollback.
type Tx interface {
	// HoldsEventLock reports whether the advisory lock for eventID was
	// acquired inside this transaction.
	HoldsEventLock(eventID string) bool
	Commit() error
	Rollback() error
}

// Store is the persistence collaborator the scheduler consumes. All writes
// are deferred to it and gated on a successful scheduler return.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// AcquireEventLock takes the advisory lock keyed by eventID for the
	// duration of tx. A nested acquisition inside the same tx is a no-op.
	AcquireEventLock(ctx context.Context, tx Tx, eventID string) error

	LoadEventWithRelations(ctx context.Context, tx Tx, eventID string) (*Snapshot, error)

	// SaveMatches atomically replaces the event's match set.
	SaveMatches(ctx context.Context, tx Tx, eventID string, matches []*match.Match) error

	// SaveTeamRecords persists wins/losses only.
	SaveTeamRecords(ctx context.Context, tx Tx, teams []team.Team) error

	// SaveEventSchedule persists event-level fields the scheduler updated,
	// such as an extended effective end.
	SaveEventSchedule(ctx context.Context, tx Tx, e *Event) error

	DeleteMatchesByEvent(ctx context.Context, tx Tx, eventID string) error

	// ListEventIDs feeds the periodic auto-reschedule sweep.
	ListEventIDs(ctx context.Context) ([]string, error)
}

// RescheduleFailure carries what the host needs to know when an
// auto-reschedule cannot fit a match inside a fixed event window.
type RescheduleFailure struct {
	EventID     string
	EventName   string
	EventEndISO string
	HostID      string
	MatchID     int
}

// Notifier is the host-notification collaborator. Implementations must not
// panic into the scheduler's return path; failures are best-effort.
type Notifier interface {
	NotifyHostOfAutoRescheduleFailure(ctx context.Context, failure RescheduleFailure) error
}
