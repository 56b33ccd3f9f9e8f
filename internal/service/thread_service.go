package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitai/fitness-tracker/internal/ai"
	"fitai/fitness-tracker/internal/domain"
	"fitai/fitness-tracker/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Fixed system seeds. The first message of every thread is exactly one of
// these; regenerate resets the training history back down to its seed.
const (
	trainingSeedContent = "You are a personal fitness and nutrition coach. Answer every request " +
		"with a single JSON object holding the plan: numeric totals calories, protein, carbs and fat, " +
		"plus a meals array where each meal has a name, a time and a non-empty foods list, and each " +
		"food has a name, a serving and its own calories, protein, carbs and fat. If the request is " +
		"not about fitness or nutrition, reply with exactly {\"off_topic\": true}."
	dietSeedContent = "You are a nutrition coach planning meals for a single day. Answer every " +
		"request with a single JSON object holding the day plan: numeric totals calories, protein, " +
		"carbs and fat, plus a meals array where each meal has a name, a time and a non-empty foods " +
		"list, and each food has a name, a serving and its own calories, protein, carbs and fat. If " +
		"the request is not about food or nutrition, reply with exactly {\"off_topic\": true}."
)

// DefaultHistoryCap is the soft cap on messages per thread.
const DefaultHistoryCap = 64

// --- Service Interface ---

// ThreadService manages the per-account AI conversation threads (the
// training singleton and one diet thread per calendar date) and gates every
// model completion behind the plan schema contract before trusting it.
type ThreadService interface {
	// GetTrainingThread returns the training thread, seeding it on first use.
	GetTrainingThread(ctx context.Context, accountID primitive.ObjectID) (*domain.ProgramEntry, error)
	// GetDietDay returns the diet thread for a date, seeding it on first use.
	GetDietDay(ctx context.Context, accountID primitive.ObjectID, date string) (*domain.DietDay, error)
	// RegenerateProgram resets the training thread to its seed, then runs one
	// interaction for a wholly new plan.
	RegenerateProgram(ctx context.Context, accountID primitive.ObjectID, goal string) (*domain.Plan, error)
	// ModifyProgram appends the instruction and, on acceptance, replaces only
	// the plan slot, preserving history for continued context.
	ModifyProgram(ctx context.Context, accountID primitive.ObjectID, instruction string) (*domain.Plan, error)
	// SendDietMessage appends a user message to the date's diet thread and
	// runs the completion through the same contract gate.
	SendDietMessage(ctx context.Context, accountID primitive.ObjectID, date, text string) (*domain.Plan, error)
}

// --- Service Implementation ---

type threadService struct {
	accountRepo repository.AccountRepository
	moderation  ModerationService
	model       ai.Model
	historyCap  int
	logger      *zap.SugaredLogger
	now         func() time.Time
}

// NewThreadService creates a new instance of threadService.
func NewThreadService(accountRepo repository.AccountRepository, moderation ModerationService, model ai.Model, historyCap int, logger *zap.SugaredLogger) ThreadService {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &threadService{
		accountRepo: accountRepo,
		moderation:  moderation,
		model:       model,
		historyCap:  historyCap,
		logger:      logger,
		now:         time.Now,
	}
}

// GetTrainingThread lazily seeds and returns the training singleton.
func (s *threadService) GetTrainingThread(ctx context.Context, accountID primitive.ObjectID) (*domain.ProgramEntry, error) {
	if _, err := s.accountRepo.EnsureByID(ctx, accountID); err != nil {
		return nil, upstream("account lookup", err)
	}
	entry, err := s.accountRepo.EnsureTraining(ctx, accountID, s.seed(trainingSeedContent))
	if err != nil {
		return nil, upstream("training thread", err)
	}
	return entry, nil
}

// GetDietDay lazily creates and returns the diet thread for a calendar date.
// An existing thread is returned unchanged, so an accepted plan re-fetched
// for the same day is byte-identical.
func (s *threadService) GetDietDay(ctx context.Context, accountID primitive.ObjectID, date string) (*domain.DietDay, error) {
	if err := validateDietDate(date); err != nil {
		return nil, err
	}
	if _, err := s.accountRepo.EnsureByID(ctx, accountID); err != nil {
		return nil, upstream("account lookup", err)
	}
	day, err := s.accountRepo.EnsureDietDay(ctx, accountID, date, s.seed(dietSeedContent))
	if err != nil {
		return nil, upstream("diet thread", err)
	}
	return day, nil
}

// RegenerateProgram discards training history down to the seed, clears the
// plan slot, and runs one interaction with the stated goal.
func (s *threadService) RegenerateProgram(ctx context.Context, accountID primitive.ObjectID, goal string) (*domain.Plan, error) {
	if goal == "" {
		return nil, fmt.Errorf("%w: goal must not be empty", ErrValidationFailed)
	}
	if err := s.guardBanned(ctx, accountID); err != nil {
		return nil, err
	}

	if _, err := s.GetTrainingThread(ctx, accountID); err != nil {
		return nil, err
	}
	seed := s.seed(trainingSeedContent)
	if err := s.accountRepo.ResetTraining(ctx, accountID, seed); err != nil {
		return nil, upstream("training reset", err)
	}

	userMsg := domain.Message{Role: domain.RoleUser, Content: goal, At: s.now().UTC()}
	if err := s.accountRepo.AppendTrainingMessage(ctx, accountID, userMsg); err != nil {
		return nil, upstream("history append", err)
	}

	plan, raw, err := s.completeAndGate(ctx, accountID, []domain.Message{seed, userMsg})
	if err != nil {
		return nil, err
	}
	return plan, s.persistTrainingPlan(ctx, accountID, raw)
}

// ModifyProgram appends the instruction to the existing history; on
// acceptance only the plan slot is replaced.
func (s *threadService) ModifyProgram(ctx context.Context, accountID primitive.ObjectID, instruction string) (*domain.Plan, error) {
	if instruction == "" {
		return nil, fmt.Errorf("%w: instruction must not be empty", ErrValidationFailed)
	}
	if err := s.guardBanned(ctx, accountID); err != nil {
		return nil, err
	}

	entry, err := s.GetTrainingThread(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(entry.History) >= s.historyCap {
		return nil, ErrHistoryCapReached
	}

	userMsg := domain.Message{Role: domain.RoleUser, Content: instruction, At: s.now().UTC()}
	if err := s.accountRepo.AppendTrainingMessage(ctx, accountID, userMsg); err != nil {
		return nil, upstream("history append", err)
	}

	plan, raw, err := s.completeAndGate(ctx, accountID, append(entry.History, userMsg))
	if err != nil {
		return nil, err
	}
	return plan, s.persistTrainingPlan(ctx, accountID, raw)
}

// SendDietMessage runs one interaction on the date's diet thread.
func (s *threadService) SendDietMessage(ctx context.Context, accountID primitive.ObjectID, date, text string) (*domain.Plan, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: message must not be empty", ErrValidationFailed)
	}
	if err := s.guardBanned(ctx, accountID); err != nil {
		return nil, err
	}

	day, err := s.GetDietDay(ctx, accountID, date)
	if err != nil {
		return nil, err
	}
	if len(day.History) >= s.historyCap {
		return nil, ErrHistoryCapReached
	}

	userMsg := domain.Message{Role: domain.RoleUser, Content: text, At: s.now().UTC()}
	if err := s.accountRepo.AppendDietMessage(ctx, accountID, date, userMsg); err != nil {
		return nil, upstream("history append", err)
	}

	plan, raw, err := s.completeAndGate(ctx, accountID, append(day.History, userMsg))
	if err != nil {
		return nil, err
	}

	// A completion may outlive its thread. Re-check the day still exists
	// before persisting; a validated but stale result is discarded.
	if _, err := s.accountRepo.GetDietDay(ctx, accountID, date); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warnw("discarding stale diet completion", "account", accountID.Hex(), "date", date)
			return plan, nil
		}
		return nil, upstream("diet thread", err)
	}

	assistantMsg := domain.Message{Role: domain.RoleAssistant, Content: raw, At: s.now().UTC()}
	if err := s.accountRepo.AppendDietMessage(ctx, accountID, date, assistantMsg); err != nil {
		return nil, upstream("history append", err)
	}
	if err := s.accountRepo.SetDietPlan(ctx, accountID, date, raw); err != nil {
		return nil, upstream("plan store", err)
	}
	if err := s.moderation.RecordCompliance(ctx, accountID); err != nil {
		return nil, err
	}
	return plan, nil
}

// guardBanned refuses to forward anything to the model while a ban is
// active, so the external call is never wasted.
func (s *threadService) guardBanned(ctx context.Context, accountID primitive.ObjectID) error {
	banned, remaining, err := s.moderation.IsBanned(ctx, accountID)
	if err != nil {
		return err
	}
	if banned {
		return &ModerationBanError{RetryAfterSeconds: remaining}
	}
	return nil
}

// completeAndGate calls the model and runs the two-stage output gate. Only
// the refusal sentinel escalates moderation; parse and schema failures are
// plain contract rejections.
func (s *threadService) completeAndGate(ctx context.Context, accountID primitive.ObjectID, history []domain.Message) (*domain.Plan, string, error) {
	rawText, err := s.model.Complete(ctx, history)
	if err != nil {
		return nil, "", upstream("model completion", err)
	}

	plan, raw, err := evaluateResponse(rawText)
	if err != nil {
		if errors.Is(err, ErrOffDomainRequest) {
			if _, vErr := s.moderation.RecordViolation(ctx, accountID); vErr != nil {
				return nil, "", vErr
			}
			s.logger.Infow("off-domain response", "account", accountID.Hex())
		}
		return nil, "", err
	}
	return plan, raw, nil
}

// persistTrainingPlan records the accepted interaction on the training
// thread: assistant message, plan slot, compliance.
func (s *threadService) persistTrainingPlan(ctx context.Context, accountID primitive.ObjectID, raw string) error {
	assistantMsg := domain.Message{Role: domain.RoleAssistant, Content: raw, At: s.now().UTC()}
	if err := s.accountRepo.AppendTrainingMessage(ctx, accountID, assistantMsg); err != nil {
		return upstream("history append", err)
	}
	if err := s.accountRepo.SetTrainingPlan(ctx, accountID, raw); err != nil {
		return upstream("plan store", err)
	}
	return s.moderation.RecordCompliance(ctx, accountID)
}

func (s *threadService) seed(content string) domain.Message {
	return domain.Message{Role: domain.RoleSystem, Content: content, At: s.now().UTC()}
}

func validateDietDate(date string) error {
	if _, err := time.Parse(domain.DietDateLayout, date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidationFailed)
	}
	return nil
}
