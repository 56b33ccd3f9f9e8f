package service

import (
	"context"
	"errors"
	"math"
	"time"

	"fitai/fitness-tracker/internal/domain"
	"fitai/fitness-tracker/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Escalation policy defaults. Both are configurable via ModerationConfig.
const (
	DefaultViolationThreshold = 2
	DefaultBanBaseline        = 5 * time.Minute
)

// --- Service Interface ---

// ModerationService tracks off-domain AI-chat violations per account and
// issues escalating temporary bans.
type ModerationService interface {
	// RecordViolation applies the escalation policy for one violation and
	// returns the resulting ban, or nil if the account got off with a warning.
	RecordViolation(ctx context.Context, accountID primitive.ObjectID) (*domain.Ban, error)
	// RecordCompliance clears the violation counter and any active ban after
	// a successful on-topic interaction.
	RecordCompliance(ctx context.Context, accountID primitive.ObjectID) error
	// IsBanned reports whether the account is currently banned and, if so,
	// how many seconds remain.
	IsBanned(ctx context.Context, accountID primitive.ObjectID) (bool, int, error)
	// ClearBan is an idempotent administrative reset of the ban alone.
	ClearBan(ctx context.Context, accountID primitive.ObjectID) error
	// ClearMistakes is an idempotent administrative reset of the counter alone.
	ClearMistakes(ctx context.Context, accountID primitive.ObjectID) error
}

// --- Service Implementation ---

type moderationService struct {
	accountRepo repository.AccountRepository
	threshold   int
	baseline    time.Duration
	logger      *zap.SugaredLogger
	now         func() time.Time
}

// NewModerationService creates a new instance of moderationService.
// Non-positive threshold/baseline fall back to the policy defaults.
func NewModerationService(accountRepo repository.AccountRepository, threshold int, baseline time.Duration, logger *zap.SugaredLogger) ModerationService {
	if threshold <= 0 {
		threshold = DefaultViolationThreshold
	}
	if baseline <= 0 {
		baseline = DefaultBanBaseline
	}
	return &moderationService{
		accountRepo: accountRepo,
		threshold:   threshold,
		baseline:    baseline,
		logger:      logger,
		now:         time.Now,
	}
}

// RecordViolation implements the escalation policy:
//
//   - violation while a ban is active: double the current ban's duration and
//     extend monotonically, expiresAt = max(now, old expiresAt) + doubled.
//   - violation below the threshold: warning only, counter incremented.
//   - violation reaching the threshold: baseline ban anchored at now,
//     counter reset to zero.
func (s *moderationService) RecordViolation(ctx context.Context, accountID primitive.ObjectID) (*domain.Ban, error) {
	account, err := s.accountRepo.EnsureByID(ctx, accountID)
	if err != nil {
		return nil, upstream("account lookup", err)
	}
	now := s.now().UTC()

	if account.Ban.ActiveAt(now) {
		doubled := account.Ban.Minutes * 2
		anchor := now
		if account.Ban.ExpiresAt.After(anchor) {
			anchor = account.Ban.ExpiresAt
		}
		ban := domain.Ban{
			ExpiresAt: anchor.Add(time.Duration(doubled) * time.Minute),
			Minutes:   doubled,
		}
		if err := s.accountRepo.SetBan(ctx, accountID, ban, false); err != nil {
			return nil, upstream("ban extend", err)
		}
		s.logger.Warnw("ban extended", "account", accountID.Hex(), "minutes", doubled, "expiresAt", ban.ExpiresAt)
		return &ban, nil
	}

	count, err := s.accountRepo.IncrementMistakes(ctx, accountID)
	if err != nil {
		return nil, upstream("mistake increment", err)
	}
	if count < s.threshold {
		s.logger.Infow("violation warning", "account", accountID.Hex(), "mistakes", count)
		return nil, nil
	}

	minutes := int(s.baseline / time.Minute)
	ban := domain.Ban{
		ExpiresAt: now.Add(s.baseline),
		Minutes:   minutes,
	}
	if err := s.accountRepo.SetBan(ctx, accountID, ban, true); err != nil {
		return nil, upstream("ban issue", err)
	}
	s.logger.Warnw("ban issued", "account", accountID.Hex(), "minutes", minutes, "expiresAt", ban.ExpiresAt)
	return &ban, nil
}

// RecordCompliance clears the counter and any ban in one update.
func (s *moderationService) RecordCompliance(ctx context.Context, accountID primitive.ObjectID) error {
	err := s.accountRepo.ClearModeration(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return upstream("moderation clear", err)
	}
	return nil
}

// IsBanned reports the current ban state with ceiling-rounded seconds left.
func (s *moderationService) IsBanned(ctx context.Context, accountID primitive.ObjectID) (bool, int, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, 0, nil
		}
		return false, 0, upstream("account lookup", err)
	}

	now := s.now().UTC()
	if !account.Ban.ActiveAt(now) {
		return false, 0, nil
	}
	remaining := int(math.Ceil(account.Ban.ExpiresAt.Sub(now).Seconds()))
	return true, remaining, nil
}

// ClearBan is an idempotent administrative reset.
func (s *moderationService) ClearBan(ctx context.Context, accountID primitive.ObjectID) error {
	err := s.accountRepo.ClearBan(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return upstream("ban clear", err)
	}
	return nil
}

// ClearMistakes is an idempotent administrative reset.
func (s *moderationService) ClearMistakes(ctx context.Context, accountID primitive.ObjectID) error {
	err := s.accountRepo.ResetMistakes(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return upstream("mistake clear", err)
	}
	return nil
}
