package usecase

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/camka14/mvp-scheduler/internal/domain/event"
)

// ErrNoEventLock is returned when a mutating operation runs without the
// per-event advisory lock. Programmer error; acquire the lock and retry.
var ErrNoEventLock = errors.New("event lock is not held for this transaction")

// ConfigError reports unusable scheduling input. It is surfaced to the
// caller unchanged and nothing is persisted.
type ConfigError struct {
	Problems []string
}

func NewConfigError(problems ...string) *ConfigError {
	return &ConfigError{Problems: problems}
}

func (e *ConfigError) Error() string {
	return "schedule config: " + strings.Join(e.Problems, "; ")
}

// InfeasibleError reports that the fixed event window cannot hold the
// schedule. ApproxMatchesNeeded is the full abstract match count: on error
// nothing is persisted, so every match is still unplaced.
type InfeasibleError struct {
	ApproxMatchesNeeded int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("schedule infeasible: approximately %d matches need slots inside the event window", e.ApproxMatchesNeeded)
}

// WindowExceededError reports that an auto-reschedule pass could not
// re-place a match inside a fixed event window. The caller notifies the
// host with the attached failure and rolls back.
type WindowExceededError struct {
	Failure event.RescheduleFailure
}

func (e *WindowExceededError) Error() string {
	return fmt.Sprintf("schedule window exceeded: match %d of event %s does not fit before %s",
		e.Failure.MatchID, e.Failure.EventID, e.Failure.EventEndISO)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsInfeasible reports whether err is (or wraps) an InfeasibleError.
func IsInfeasible(err error) bool {
	var target *InfeasibleError
	return errors.As(err, &target)
}

// IsWindowExceeded reports whether err is (or wraps) a WindowExceededError.
func IsWindowExceeded(err error) bool {
	var target *WindowExceededError
	return errors.As(err, &target)
}
