package service

import (
	"context"
	"errors"
	"fmt"

	"fitai/fitness-tracker/internal/repository"
	"fitai/fitness-tracker/internal/verify"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Service Interface ---

// VerificationService drives the phone-verification flow: code issuance
// behind the rate-limit window, and commit after the provider has proven
// ownership of the number.
type VerificationService interface {
	// RequestCode checks the identity and cooldown, then opens a fresh
	// guarded window and returns an opaque request id for the issuance.
	RequestCode(ctx context.Context, accountID primitive.ObjectID, phone, origin string) (string, error)
	// CommitCode exchanges the one-time token with the provider, compares
	// the verified number against the claimed one, and stores it. The
	// cooldown is refreshed unconditionally: ownership was just proven
	// through an independent channel.
	CommitCode(ctx context.Context, accountID primitive.ObjectID, token, claimedPhone, origin string) error
}

// --- Service Implementation ---

type verificationService struct {
	accountRepo repository.AccountRepository
	rateLimit   RateLimitService
	provider    verify.Provider
	logger      *zap.SugaredLogger
}

// NewVerificationService creates a new instance of verificationService.
func NewVerificationService(accountRepo repository.AccountRepository, rateLimit RateLimitService, provider verify.Provider, logger *zap.SugaredLogger) VerificationService {
	return &verificationService{
		accountRepo: accountRepo,
		rateLimit:   rateLimit,
		provider:    provider,
		logger:      logger,
	}
}

// RequestCode gates issuance: preflight (identity collision + read-only
// cooldown check), then the guarded commit that actually claims the window.
func (s *verificationService) RequestCode(ctx context.Context, accountID primitive.ObjectID, phone, origin string) (string, error) {
	phone = verify.NormalizePhone(phone)
	if phone == "" {
		return "", fmt.Errorf("%w: phone is required", ErrValidationFailed)
	}

	if _, err := s.accountRepo.EnsureByID(ctx, accountID); err != nil {
		return "", upstream("account lookup", err)
	}
	if err := s.rateLimit.Preflight(ctx, accountID, phone, origin); err != nil {
		return "", err
	}
	if err := s.rateLimit.Commit(ctx, phone, origin, PolicyGuarded); err != nil {
		return "", err
	}

	// The actual code delivery belongs to the provider; the request id ties
	// our log line to its delivery attempt.
	requestID := uuid.NewString()
	s.logger.Infow("verification code requested", "account", accountID.Hex(), "request", requestID)
	return requestID, nil
}

// CommitCode finalizes verification with the provider-checked number.
func (s *verificationService) CommitCode(ctx context.Context, accountID primitive.ObjectID, token, claimedPhone, origin string) error {
	claimed := verify.NormalizePhone(claimedPhone)
	if token == "" || claimed == "" {
		return fmt.Errorf("%w: token and phone are required", ErrValidationFailed)
	}

	if _, err := s.accountRepo.EnsureByID(ctx, accountID); err != nil {
		return upstream("account lookup", err)
	}

	verified, err := s.provider.Check(ctx, token)
	if err != nil {
		return upstream("verification check", err)
	}
	if verified != claimed {
		return fmt.Errorf("%w: verified phone does not match the claimed phone", ErrValidationFailed)
	}

	owner, err := s.accountRepo.GetByPhone(ctx, verified)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return upstream("identity lookup", err)
	}
	if owner != nil && owner.ID != accountID {
		return ErrIdentityConflict
	}

	if err := s.accountRepo.SetPhone(ctx, accountID, verified); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrIdentityConflict
		}
		return upstream("phone store", err)
	}

	// Ownership proven out of band, so the refresh bypasses the guard.
	if err := s.rateLimit.Commit(ctx, verified, origin, PolicyUnconditional); err != nil {
		return err
	}

	s.logger.Infow("phone verified", "account", accountID.Hex())
	return nil
}
