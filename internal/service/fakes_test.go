package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fitai/fitness-tracker/internal/domain"
	"fitai/fitness-tracker/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeAccountRepo is an in-memory AccountRepository mirroring the guarded
// update semantics of the Mongo implementation.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[primitive.ObjectID]*domain.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[primitive.ObjectID]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.Workouts = append([]domain.SessionEntry(nil), a.Workouts...)
	c.Training = make([]domain.ProgramEntry, len(a.Training))
	for i, t := range a.Training {
		c.Training[i] = domain.ProgramEntry{History: append([]domain.Message(nil), t.History...), Plan: t.Plan}
	}
	c.Diets = make([]domain.DietDay, len(a.Diets))
	for i, d := range a.Diets {
		c.Diets[i] = domain.DietDay{Date: d.Date, History: append([]domain.Message(nil), d.History...), Plan: d.Plan}
	}
	if a.ActiveWorkout != nil {
		idx := *a.ActiveWorkout
		c.ActiveWorkout = &idx
	}
	if a.Ban != nil {
		ban := *a.Ban
		c.Ban = &ban
	}
	return &c
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (r *fakeAccountRepo) GetByPhone(_ context.Context, phone string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Phone == phone {
			return cloneAccount(a), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRepo) EnsureByID(_ context.Context, id primitive.ObjectID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		a = &domain.Account{
			ID:       id,
			Workouts: []domain.SessionEntry{},
			Training: []domain.ProgramEntry{},
			Diets:    []domain.DietDay{},
		}
		r.accounts[id] = a
	}
	return cloneAccount(a), nil
}

func (r *fakeAccountRepo) SetPhone(_ context.Context, id primitive.ObjectID, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for otherID, other := range r.accounts {
		if other.Phone == phone && otherID != id {
			return repository.ErrConflict
		}
	}
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Phone = phone
	return nil
}

func (r *fakeAccountRepo) AppendSession(_ context.Context, id primitive.ObjectID, entry domain.SessionEntry, atIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrConflict
	}
	if a.ActiveWorkout != nil || len(a.Workouts) != atIndex {
		return repository.ErrConflict
	}
	a.Workouts = append(a.Workouts, entry)
	a.ActiveWorkout = &atIndex
	return nil
}

func (r *fakeAccountRepo) FinishSession(_ context.Context, id primitive.ObjectID, index int, entry domain.SessionEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrConflict
	}
	if a.ActiveWorkout == nil || *a.ActiveWorkout != index {
		return repository.ErrConflict
	}
	a.Workouts[index] = entry
	a.ActiveWorkout = nil
	return nil
}

func (r *fakeAccountRepo) IncrementMistakes(_ context.Context, id primitive.ObjectID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	a.Mistakes++
	return a.Mistakes, nil
}

func (r *fakeAccountRepo) SetBan(_ context.Context, id primitive.ObjectID, ban domain.Ban, resetMistakes bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Ban = &ban
	if resetMistakes {
		a.Mistakes = 0
	}
	return nil
}

func (r *fakeAccountRepo) ClearBan(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Ban = nil
	return nil
}

func (r *fakeAccountRepo) ResetMistakes(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Mistakes = 0
	return nil
}

func (r *fakeAccountRepo) ClearModeration(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Mistakes = 0
	a.Ban = nil
	return nil
}

func (r *fakeAccountRepo) EnsureTraining(_ context.Context, id primitive.ObjectID, seed domain.Message) (*domain.ProgramEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if len(a.Training) == 0 {
		a.Training = append(a.Training, domain.ProgramEntry{History: []domain.Message{seed}})
	}
	entry := domain.ProgramEntry{
		History: append([]domain.Message(nil), a.Training[0].History...),
		Plan:    a.Training[0].Plan,
	}
	return &entry, nil
}

func (r *fakeAccountRepo) AppendTrainingMessage(_ context.Context, id primitive.ObjectID, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok || len(a.Training) == 0 {
		return repository.ErrNotFound
	}
	a.Training[0].History = append(a.Training[0].History, msg)
	return nil
}

func (r *fakeAccountRepo) SetTrainingPlan(_ context.Context, id primitive.ObjectID, plan string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok || len(a.Training) == 0 {
		return repository.ErrNotFound
	}
	a.Training[0].Plan = plan
	return nil
}

func (r *fakeAccountRepo) ResetTraining(_ context.Context, id primitive.ObjectID, seed domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok || len(a.Training) == 0 {
		return repository.ErrNotFound
	}
	a.Training[0] = domain.ProgramEntry{History: []domain.Message{seed}}
	return nil
}

func (r *fakeAccountRepo) EnsureDietDay(_ context.Context, id primitive.ObjectID, date string, seed domain.Message) (*domain.DietDay, error) {
	r.mu.Lock()
	a, ok := r.accounts[id]
	if !ok {
		r.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	found := false
	for _, d := range a.Diets {
		if d.Date == date {
			found = true
			break
		}
	}
	if !found {
		a.Diets = append(a.Diets, domain.DietDay{Date: date, History: []domain.Message{seed}})
	}
	r.mu.Unlock()
	return r.GetDietDay(context.Background(), id, date)
}

func (r *fakeAccountRepo) GetDietDay(_ context.Context, id primitive.ObjectID, date string) (*domain.DietDay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, d := range a.Diets {
		if d.Date == date {
			day := domain.DietDay{Date: d.Date, History: append([]domain.Message(nil), d.History...), Plan: d.Plan}
			return &day, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRepo) AppendDietMessage(_ context.Context, id primitive.ObjectID, date string, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range a.Diets {
		if a.Diets[i].Date == date {
			a.Diets[i].History = append(a.Diets[i].History, msg)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeAccountRepo) SetDietPlan(_ context.Context, id primitive.ObjectID, date string, plan string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range a.Diets {
		if a.Diets[i].Date == date {
			a.Diets[i].Plan = plan
			return nil
		}
	}
	return repository.ErrNotFound
}

// raw returns the stored aggregate for assertions.
func (r *fakeAccountRepo) raw(id primitive.ObjectID) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil
	}
	return cloneAccount(a)
}

// fakeCooldownRepo is an in-memory CooldownRepository with the same
// guarded-commit semantics as the Mongo implementation.
type fakeCooldownRepo struct {
	mu      sync.Mutex
	records map[domain.CooldownKey]domain.CooldownRecord
}

func newFakeCooldownRepo() *fakeCooldownRepo {
	return &fakeCooldownRepo{records: make(map[domain.CooldownKey]domain.CooldownRecord)}
}

func (r *fakeCooldownRepo) Get(_ context.Context, key domain.CooldownKey) (*domain.CooldownRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (r *fakeCooldownRepo) CommitGuarded(_ context.Context, key domain.CooldownKey, now, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[key]; ok && rec.ExpiresAt.After(now) {
		return repository.ErrCooldownActive
	}
	r.records[key] = domain.CooldownRecord{Identity: key.Identity, Origin: key.Origin, ExpiresAt: expiresAt}
	return nil
}

func (r *fakeCooldownRepo) CommitUnconditional(_ context.Context, key domain.CooldownKey, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key] = domain.CooldownRecord{Identity: key.Identity, Origin: key.Origin, ExpiresAt: expiresAt}
	return nil
}

// fakeModel replays queued completions and counts calls.
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (m *fakeModel) Complete(_ context.Context, _ []domain.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("fake model has no queued response")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeProvider resolves tokens to phones.
type fakeProvider struct {
	phones map[string]string
	err    error
}

func (p *fakeProvider) Check(_ context.Context, token string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	phone, ok := p.phones[token]
	if !ok {
		return "", fmt.Errorf("unknown token")
	}
	return phone, nil
}
