package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"

	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/platform/logging"
	"github.com/camka14/mvp-scheduler/internal/platform/resilience"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultSweepWorkers  = 8
)

// SweepService periodically walks every event and relocates overdue
// matches. Each event is processed inside its own transaction and advisory
// lock; concurrent sweeps of the same event are deduplicated.
type SweepService struct {
	store   event.Store
	matches *MatchService
	logger  *logging.Logger

	interval time.Duration
	workers  int
	flight   resilience.SingleFlight
}

// SweepResult summarizes one pass over all events.
type SweepResult struct {
	EventCount int
	Swept      int
	Deduped    int
	Failed     int
}

func NewSweepService(store event.Store, matches *MatchService, logger *logging.Logger, opts ...SweepOption) *SweepService {
	s := &SweepService{
		store:    store,
		matches:  matches,
		logger:   logger,
		interval: defaultSweepInterval,
		workers:  defaultSweepWorkers,
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SweepOption func(*SweepService)

func WithSweepInterval(interval time.Duration) SweepOption {
	return func(s *SweepService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithSweepWorkers(workers int) SweepOption {
	return func(s *SweepService) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *SweepService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "sweep pass failed", "error", err)
				continue
			}
			if result.Swept > 0 || result.Failed > 0 {
				s.logger.InfoContext(ctx, "sweep pass finished",
					"events", result.EventCount, "swept", result.Swept,
					"deduped", result.Deduped, "failed", result.Failed)
			}
		}
	}
}

// SweepOnce processes every known event across a bounded worker pool.
func (s *SweepService) SweepOnce(ctx context.Context) (SweepResult, error) {
	ids, err := s.store.ListEventIDs(ctx)
	if err != nil {
		return SweepResult{}, errors.Wrap(err, "list event ids")
	}

	result := SweepResult{EventCount: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}

	workerCount := s.workers
	if workerCount > len(ids) {
		workerCount = len(ids)
	}
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return SweepResult{}, errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	var swept, deduped, failed atomic.Int32

	var workers sync.WaitGroup
	for _, id := range ids {
		id := id
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			_, sweepErr, shared := s.flight.Do(id, func() (any, error) {
				return nil, s.sweepEvent(ctx, id)
			})
			if shared {
				deduped.Add(1)
				return
			}
			if sweepErr != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "event sweep failed", "event_id", id, "error", sweepErr)
				return
			}
			swept.Add(1)
		}); err != nil {
			workers.Done()
			return SweepResult{}, errors.Wrap(err, "submit sweep task")
		}
	}
	workers.Wait()

	result.Swept = int(swept.Load())
	result.Deduped = int(deduped.Load())
	result.Failed = int(failed.Load())
	return result, nil
}

func (s *SweepService) sweepEvent(ctx context.Context, eventID string) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.store.AcquireEventLock(ctx, tx, eventID); err != nil {
		return errors.Wrap(err, "acquire event lock")
	}
	snap, err := s.store.LoadEventWithRelations(ctx, tx, eventID)
	if err != nil {
		return errors.Wrap(err, "load event with relations")
	}

	if err := s.matches.autoReschedule(ctx, tx, snap); err != nil {
		// A window overrun has already notified the host; the sweep moves on.
		if IsWindowExceeded(err) {
			return nil
		}
		return err
	}
	if err := s.store.SaveMatches(ctx, tx, eventID, snap.Matches); err != nil {
		return errors.Wrap(err, "save matches")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	committed = true
	return nil
}
