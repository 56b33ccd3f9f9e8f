package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitai/fitness-tracker/internal/domain"
	"fitai/fitness-tracker/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Service Interface ---

// SessionService manages the per-account workout session log, enforcing the
// single-active-session invariant.
type SessionService interface {
	// StartSession appends a new active entry. Fails with
	// ErrSessionAlreadyActive if one is already active.
	StartSession(ctx context.Context, accountID primitive.ObjectID, plannedDay domain.WorkoutDay) (*domain.SessionEntry, error)
	// EndSession validates the final day, then finalizes the tracked active
	// entry in place. Fails with ErrNoActiveSession if nothing is active and
	// ErrValidationFailed (no mutation) on a malformed final day.
	EndSession(ctx context.Context, accountID primitive.ObjectID, finalDay domain.WorkoutDay, elapsedSeconds int64) (*domain.SessionEntry, error)
	// GetActiveSession returns the active entry or nil. O(1) via the marker.
	GetActiveSession(ctx context.Context, accountID primitive.ObjectID) (*domain.SessionEntry, error)
}

// --- Service Implementation ---

type sessionService struct {
	accountRepo repository.AccountRepository
	locks       *accountLocks
	logger      *zap.SugaredLogger
	now         func() time.Time
}

// NewSessionService creates a new instance of sessionService.
func NewSessionService(accountRepo repository.AccountRepository, logger *zap.SugaredLogger) SessionService {
	return &sessionService{
		accountRepo: accountRepo,
		locks:       newAccountLocks(),
		logger:      logger,
		now:         time.Now,
	}
}

// StartSession appends {startedAt: now, active: true, snapshot: plannedDay}
// and records its index as the active marker. The append itself is an atomic
// guarded push, so no lock is needed here.
func (s *sessionService) StartSession(ctx context.Context, accountID primitive.ObjectID, plannedDay domain.WorkoutDay) (*domain.SessionEntry, error) {
	account, err := s.accountRepo.EnsureByID(ctx, accountID)
	if err != nil {
		return nil, upstream("account lookup", err)
	}
	if account.ActiveWorkout != nil {
		return nil, ErrSessionAlreadyActive
	}

	entry := domain.SessionEntry{
		StartedAt: s.now().UTC(),
		Active:    true,
		Snapshot:  plannedDay,
	}
	err = s.accountRepo.AppendSession(ctx, accountID, entry, len(account.Workouts))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost the race to a concurrent start; the invariant held.
			return nil, ErrSessionAlreadyActive
		}
		return nil, upstream("session append", err)
	}

	s.logger.Infow("workout session started", "account", accountID.Hex(), "index", len(account.Workouts))
	return &entry, nil
}

// EndSession is the one unavoidable read-then-write sequence in this service,
// so it is serialized per account.
func (s *sessionService) EndSession(ctx context.Context, accountID primitive.ObjectID, finalDay domain.WorkoutDay, elapsedSeconds int64) (*domain.SessionEntry, error) {
	// Validate before taking the lock or touching state: a malformed payload
	// must leave the log untouched.
	if err := validateWorkoutDay(finalDay); err != nil {
		return nil, err
	}
	if elapsedSeconds < 0 {
		return nil, fmt.Errorf("%w: elapsed must be non-negative", ErrValidationFailed)
	}

	lock := s.locks.get(accountID.Hex())
	lock.Lock()
	defer lock.Unlock()

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, upstream("account lookup", err)
	}
	if account.ActiveWorkout == nil {
		return nil, ErrNoActiveSession
	}
	index := *account.ActiveWorkout
	if index < 0 || index >= len(account.Workouts) {
		// Marker points outside the log; refuse rather than guess a slot.
		return nil, upstream("session finish", fmt.Errorf("active marker %d out of range", index))
	}

	entry := domain.SessionEntry{
		StartedAt: account.Workouts[index].StartedAt,
		Active:    false,
		Snapshot:  finalDay,
		Elapsed:   &elapsedSeconds,
	}
	err = s.accountRepo.FinishSession(ctx, accountID, index, entry)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrNoActiveSession
		}
		return nil, upstream("session finish", err)
	}

	s.logger.Infow("workout session ended", "account", accountID.Hex(), "index", index, "elapsed", elapsedSeconds)
	return &entry, nil
}

// GetActiveSession resolves the marker to the entry it references.
func (s *sessionService) GetActiveSession(ctx context.Context, accountID primitive.ObjectID) (*domain.SessionEntry, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, upstream("account lookup", err)
	}
	if account.ActiveWorkout == nil {
		return nil, nil
	}
	index := *account.ActiveWorkout
	if index < 0 || index >= len(account.Workouts) {
		return nil, nil
	}
	return &account.Workouts[index], nil
}

// validateWorkoutDay checks that every leaf numeric field across all
// exercises and sets is present and non-negative.
func validateWorkoutDay(day domain.WorkoutDay) error {
	for ei, exercise := range day.Exercises {
		for si, set := range exercise.Data {
			if set.Weight == nil {
				return fmt.Errorf("%w: exercise %d set %d: weight is missing", ErrValidationFailed, ei, si)
			}
			if set.Reps == nil {
				return fmt.Errorf("%w: exercise %d set %d: reps is missing", ErrValidationFailed, ei, si)
			}
			if *set.Weight < 0 {
				return fmt.Errorf("%w: exercise %d set %d: weight must be non-negative", ErrValidationFailed, ei, si)
			}
			if *set.Reps < 0 {
				return fmt.Errorf("%w: exercise %d set %d: reps must be non-negative", ErrValidationFailed, ei, si)
			}
		}
	}
	return nil
}
