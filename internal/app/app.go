package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/camka14/mvp-scheduler/internal/config"
	"github.com/camka14/mvp-scheduler/internal/domain/event"
	"github.com/camka14/mvp-scheduler/internal/infrastructure/repository/memory"
	"github.com/camka14/mvp-scheduler/internal/infrastructure/repository/postgres"
	"github.com/camka14/mvp-scheduler/internal/platform/logging"
	"github.com/camka14/mvp-scheduler/internal/platform/resilience"
	"github.com/camka14/mvp-scheduler/internal/usecase"
)

// App bundles the scheduler services wired onto the configured store backend.
type App struct {
	Store     event.Store
	Scheduler *usecase.SchedulerService
	Matches   *usecase.MatchService
	Sweeper   *usecase.SweepService
}

// New builds the application. The returned cleanup closes the database
// connection when the postgres backend is selected.
func New(cfg config.Config, logger *logging.Logger, notifier event.Notifier) (*App, func() error, error) {
	if logger == nil {
		logger = logging.Default()
	}

	store, cleanup, err := newStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	scheduler := usecase.NewSchedulerService(store, logger,
		usecase.WithHorizonWeeks(cfg.HorizonWeeks),
		usecase.WithDebug(cfg.SchedulerDebug),
	)
	matches := usecase.NewMatchService(store, notifier, logger,
		usecase.WithMatchHorizonWeeks(cfg.HorizonWeeks),
		usecase.WithNotifyBreaker(resilience.CircuitBreakerConfig{
			Enabled:          cfg.NotifyCircuitEnabled,
			FailureThreshold: cfg.NotifyCircuitFailures,
			OpenTimeout:      cfg.NotifyCircuitOpenWait,
			HalfOpenMaxReq:   cfg.NotifyCircuitHalfOpen,
		}),
	)
	sweeper := usecase.NewSweepService(store, matches, logger,
		usecase.WithSweepInterval(cfg.SweepInterval),
		usecase.WithSweepWorkers(cfg.SweepWorkers),
	)

	return &App{
		Store:     store,
		Scheduler: scheduler,
		Matches:   matches,
		Sweeper:   sweeper,
	}, cleanup, nil
}

func newStore(cfg config.Config, logger *logging.Logger) (event.Store, func() error, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		logger.Info("store backend selected", "backend", config.StoreBackendMemory)
		return memory.NewStore(), func() error { return nil }, nil
	}

	db, err := otelsqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open postgres connection")
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "ping postgres")
	}

	logger.Info("store backend selected", "backend", config.StoreBackendPostgres, "database", dbNameFromURL(cfg.DBURL))

	return postgres.NewStore(db), db.Close, nil
}

// LogNotifier reports auto-reschedule failures through the structured log.
// It stands in until a real delivery channel is attached.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}

	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyHostOfAutoRescheduleFailure(ctx context.Context, failure event.RescheduleFailure) error {
	n.logger.WarnContext(ctx, "auto-reschedule exceeded event window",
		"event_id", failure.EventID,
		"event_name", failure.EventName,
		"event_end", failure.EventEndISO,
		"host_id", failure.HostID,
		"match_id", failure.MatchID,
	)

	return nil
}
