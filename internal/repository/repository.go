package repository

import (
	"context"
	"time"

	"fitai/fitness-tracker/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound       = RepositoryError("not found")
	ErrConflict       = RepositoryError("conflict")
	ErrUpdateFailed   = RepositoryError("update failed")
	ErrCooldownActive = RepositoryError("cooldown still active")
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// AccountRepository defines the persistence surface for the per-user
// aggregate. Mutations are targeted field-path updates on the account
// document, never whole-document read-modify-write.
type AccountRepository interface {
	// GetByID retrieves the account document, or ErrNotFound.
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Account, error)
	// GetByPhone retrieves the account that has claimed a verified phone,
	// or ErrNotFound.
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	// EnsureByID returns the account, lazily creating an empty one on first
	// authenticated touch.
	EnsureByID(ctx context.Context, id primitive.ObjectID) (*domain.Account, error)
	// SetPhone stores a verified phone on the account.
	SetPhone(ctx context.Context, id primitive.ObjectID, phone string) error

	// --- Workout sessions ---

	// AppendSession pushes a new active entry and sets the active marker to
	// atIndex. The update only matches when no session is active and the log
	// still has exactly atIndex entries; otherwise ErrConflict.
	AppendSession(ctx context.Context, id primitive.ObjectID, entry domain.SessionEntry, atIndex int) error
	// FinishSession replaces the positional slot wholesale (clear-then-set,
	// no merge with stale siblings) and clears the active marker. The update
	// only matches while index is still the tracked active entry; otherwise
	// ErrConflict.
	FinishSession(ctx context.Context, id primitive.ObjectID, index int, entry domain.SessionEntry) error

	// --- Moderation ---

	// IncrementMistakes bumps the violation counter and returns the new value.
	IncrementMistakes(ctx context.Context, id primitive.ObjectID) (int, error)
	// SetBan installs or replaces the ban, optionally zeroing the counter in
	// the same update.
	SetBan(ctx context.Context, id primitive.ObjectID, ban domain.Ban, resetMistakes bool) error
	// ClearBan removes any ban. Idempotent.
	ClearBan(ctx context.Context, id primitive.ObjectID) error
	// ResetMistakes zeroes the violation counter. Idempotent.
	ResetMistakes(ctx context.Context, id primitive.ObjectID) error
	// ClearModeration zeroes the counter and removes any ban in one update.
	ClearModeration(ctx context.Context, id primitive.ObjectID) error

	// --- Training thread (singleton) ---

	// EnsureTraining returns the training thread, lazily seeding it with the
	// given system message if absent.
	EnsureTraining(ctx context.Context, id primitive.ObjectID, seed domain.Message) (*domain.ProgramEntry, error)
	// AppendTrainingMessage appends to the training history.
	AppendTrainingMessage(ctx context.Context, id primitive.ObjectID, msg domain.Message) error
	// SetTrainingPlan replaces only the plan slot, preserving history.
	SetTrainingPlan(ctx context.Context, id primitive.ObjectID, plan string) error
	// ResetTraining discards history down to the seed and clears the plan.
	ResetTraining(ctx context.Context, id primitive.ObjectID, seed domain.Message) error

	// --- Diet threads (per calendar date) ---

	// EnsureDietDay returns the diet thread for the date, lazily creating it
	// seeded with the given system message.
	EnsureDietDay(ctx context.Context, id primitive.ObjectID, date string, seed domain.Message) (*domain.DietDay, error)
	// GetDietDay retrieves the diet thread for the date, or ErrNotFound.
	GetDietDay(ctx context.Context, id primitive.ObjectID, date string) (*domain.DietDay, error)
	// AppendDietMessage appends to the matched day's history.
	AppendDietMessage(ctx context.Context, id primitive.ObjectID, date string, msg domain.Message) error
	// SetDietPlan replaces only the matched day's plan slot.
	SetDietPlan(ctx context.Context, id primitive.ObjectID, date string, plan string) error
}

// CooldownRepository defines the persistence surface for rate-limit windows.
// Commit operations must be atomic per key.
type CooldownRepository interface {
	// Get retrieves the record for a key, or ErrNotFound. Callers apply lazy
	// expiry: an expired record counts as absent.
	Get(ctx context.Context, key domain.CooldownKey) (*domain.CooldownRecord, error)
	// CommitGuarded upserts a fresh expiry only if no unexpired record exists
	// for the key; otherwise ErrCooldownActive with the stored expiry intact.
	CommitGuarded(ctx context.Context, key domain.CooldownKey, now, expiresAt time.Time) error
	// CommitUnconditional always upserts a fresh expiry. Reserved for flows
	// that have proven ownership through an independent channel.
	CommitUnconditional(ctx context.Context, key domain.CooldownKey, expiresAt time.Time) error
}
