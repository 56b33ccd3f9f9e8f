package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"fitai/fitness-tracker/internal/domain"
	"fitai/fitness-tracker/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CooldownPolicy selects how a commit treats an existing window. The two
// policies exist because different call sites rely on each; Guarded is the
// default and callers must justify Unconditional with a prior out-of-band
// ownership proof.
type CooldownPolicy int

const (
	// PolicyGuarded re-checks the remaining cooldown and refuses if active.
	PolicyGuarded CooldownPolicy = iota
	// PolicyUnconditional always installs a fresh window.
	PolicyUnconditional
)

// DefaultCooldownWindow is the issuance cooldown when none is configured.
const DefaultCooldownWindow = 60 * time.Second

// --- Service Interface ---

// RateLimitService gates verification-code issuance per (identity, origin).
type RateLimitService interface {
	// Preflight is read-only: it fails with ErrIdentityConflict when the
	// identity is already claimed by a different account, and with a
	// RateLimitError when the cooldown window is still active. No mutation.
	Preflight(ctx context.Context, accountID primitive.ObjectID, identity, origin string) error
	// Commit installs a fresh cooldown window under the given policy.
	// Guarded commits fail with a RateLimitError while a window is active,
	// leaving the stored expiry unchanged.
	Commit(ctx context.Context, identity, origin string, policy CooldownPolicy) error
}

// --- Service Implementation ---

type rateLimitService struct {
	cooldownRepo repository.CooldownRepository
	accountRepo  repository.AccountRepository
	window       time.Duration
	logger       *zap.SugaredLogger
	now          func() time.Time
}

// NewRateLimitService creates a new instance of rateLimitService.
func NewRateLimitService(cooldownRepo repository.CooldownRepository, accountRepo repository.AccountRepository, window time.Duration, logger *zap.SugaredLogger) RateLimitService {
	if window <= 0 {
		window = DefaultCooldownWindow
	}
	return &rateLimitService{
		cooldownRepo: cooldownRepo,
		accountRepo:  accountRepo,
		window:       window,
		logger:       logger,
		now:          time.Now,
	}
}

// Preflight layers the identity-collision check on top of the cooldown
// check; it is not a substitute for the guarded commit.
func (s *rateLimitService) Preflight(ctx context.Context, accountID primitive.ObjectID, identity, origin string) error {
	key, err := s.key(identity, origin)
	if err != nil {
		return err
	}

	owner, err := s.accountRepo.GetByPhone(ctx, key.Identity)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return upstream("identity lookup", err)
	}
	if owner != nil && owner.ID != accountID {
		return ErrIdentityConflict
	}

	record, err := s.cooldownRepo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return upstream("cooldown lookup", err)
	}
	// Lazy expiry: an expired record counts as absent even before the sweep.
	now := s.now().UTC()
	if record.ActiveAt(now) {
		return &RateLimitError{RetryAfterSeconds: secondsUntil(now, record.ExpiresAt)}
	}
	return nil
}

// Commit installs expiresAt = now + window under the requested policy.
func (s *rateLimitService) Commit(ctx context.Context, identity, origin string, policy CooldownPolicy) error {
	key, err := s.key(identity, origin)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.window)

	switch policy {
	case PolicyUnconditional:
		if err := s.cooldownRepo.CommitUnconditional(ctx, key, expiresAt); err != nil {
			return upstream("cooldown commit", err)
		}
		return nil
	case PolicyGuarded:
		err := s.cooldownRepo.CommitGuarded(ctx, key, now, expiresAt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrCooldownActive) {
			return upstream("cooldown commit", err)
		}
		// Refused atomically; read back the surviving expiry for retryAfter.
		retryAfter := int(math.Ceil(s.window.Seconds()))
		if record, getErr := s.cooldownRepo.Get(ctx, key); getErr == nil && record.ActiveAt(now) {
			retryAfter = secondsUntil(now, record.ExpiresAt)
		}
		return &RateLimitError{RetryAfterSeconds: retryAfter}
	default:
		return fmt.Errorf("%w: unknown cooldown policy %d", ErrValidationFailed, policy)
	}
}

func (s *rateLimitService) key(identity, origin string) (domain.CooldownKey, error) {
	normalized := normalizeIdentity(identity)
	origin = strings.TrimSpace(origin)
	if normalized == "" || origin == "" {
		return domain.CooldownKey{}, fmt.Errorf("%w: identity and origin are required", ErrValidationFailed)
	}
	return domain.CooldownKey{Identity: normalized, Origin: origin}, nil
}

// normalizeIdentity canonicalizes a phone or email so that trivially
// different spellings of the same identity share one window.
func normalizeIdentity(identity string) string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	for _, ch := range []string{" ", "-", "(", ")"} {
		identity = strings.ReplaceAll(identity, ch, "")
	}
	return identity
}

func secondsUntil(now, deadline time.Time) int {
	return int(math.Ceil(deadline.Sub(now).Seconds()))
}
