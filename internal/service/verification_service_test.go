package service

import (
	"context"
	"testing"
	"time"

	"fitai/fitness-tracker/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const verifiedPhone = "+15550001111"

type verificationFixture struct {
	svc       VerificationService
	accounts  *fakeAccountRepo
	cooldowns *fakeCooldownRepo
	clock     *time.Time
	account   primitive.ObjectID
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()
	accounts := newFakeAccountRepo()
	cooldowns := newFakeCooldownRepo()
	logger := zap.NewNop().Sugar()
	current := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	rateLimit := NewRateLimitService(cooldowns, accounts, 60*time.Second, logger).(*rateLimitService)
	rateLimit.now = func() time.Time { return current }

	provider := &fakeProvider{phones: map[string]string{"tok-1": verifiedPhone}}
	svc := NewVerificationService(accounts, rateLimit, provider, logger)

	return &verificationFixture{
		svc:       svc,
		accounts:  accounts,
		cooldowns: cooldowns,
		clock:     &current,
		account:   primitive.NewObjectID(),
	}
}

func TestRequestCodeOpensGuardedWindow(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	t0 := *f.clock

	requestID, err := f.svc.RequestCode(ctx, f.account, "+1 (555) 000-1111", testOrigin)
	require.NoError(t, err)
	_, err = uuid.Parse(requestID)
	assert.NoError(t, err, "request id is an opaque uuid")

	record, err := f.cooldowns.Get(ctx, domain.CooldownKey{Identity: verifiedPhone, Origin: testOrigin})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(60*time.Second), record.ExpiresAt)

	// Immediate retry is refused with the remaining wait.
	*f.clock = t0.Add(20 * time.Second)
	_, err = f.svc.RequestCode(ctx, f.account, verifiedPhone, testOrigin)
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 40, rateErr.RetryAfterSeconds)
}

func TestRequestCodeIdentityConflict(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	owner := primitive.NewObjectID()

	_, err := f.accounts.EnsureByID(ctx, owner)
	require.NoError(t, err)
	require.NoError(t, f.accounts.SetPhone(ctx, owner, verifiedPhone))

	_, err = f.svc.RequestCode(ctx, f.account, verifiedPhone, testOrigin)
	assert.ErrorIs(t, err, ErrIdentityConflict)
}

func TestCommitCodeStoresPhoneAndRefreshesWindow(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	t0 := *f.clock

	_, err := f.svc.RequestCode(ctx, f.account, verifiedPhone, testOrigin)
	require.NoError(t, err)

	// Commit lands inside the issuance window; the unconditional refresh is
	// allowed because ownership was just proven.
	*f.clock = t0.Add(30 * time.Second)
	err = f.svc.CommitCode(ctx, f.account, "tok-1", "+1 555-000-1111", testOrigin)
	require.NoError(t, err)

	stored := f.accounts.raw(f.account)
	require.NotNil(t, stored)
	assert.Equal(t, verifiedPhone, stored.Phone)

	record, err := f.cooldowns.Get(ctx, domain.CooldownKey{Identity: verifiedPhone, Origin: testOrigin})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(90*time.Second), record.ExpiresAt)
}

func TestCommitCodePhoneMismatch(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	err := f.svc.CommitCode(ctx, f.account, "tok-1", "+15559999999", testOrigin)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Empty(t, f.accounts.raw(f.account).Phone)
}

func TestCommitCodeIdentityConflict(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	owner := primitive.NewObjectID()

	_, err := f.accounts.EnsureByID(ctx, owner)
	require.NoError(t, err)
	require.NoError(t, f.accounts.SetPhone(ctx, owner, verifiedPhone))

	err = f.svc.CommitCode(ctx, f.account, "tok-1", verifiedPhone, testOrigin)
	assert.ErrorIs(t, err, ErrIdentityConflict)
}

func TestCommitCodeProviderFailure(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	err := f.svc.CommitCode(ctx, f.account, "unknown-token", verifiedPhone, testOrigin)
	var upstreamErr *UpstreamError
	assert.ErrorAs(t, err, &upstreamErr)
}

func TestRequestCodeRequiresPhone(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestCode(ctx, f.account, "   ", testOrigin)
	assert.ErrorIs(t, err, ErrValidationFailed)

	err = f.svc.CommitCode(ctx, f.account, "", verifiedPhone, testOrigin)
	assert.ErrorIs(t, err, ErrValidationFailed)
}
