package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitai/fitness-tracker/internal/domain"
	"fitai/fitness-tracker/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const accountCollectionName = "accounts"

// mongoAccountRepository implements repository.AccountRepository using MongoDB.
// Every mutation is a targeted field-path update ($push/$set/$unset/$inc,
// positional operator, explicit array index) so concurrent requests from the
// same account only race where the contract says they may.
type mongoAccountRepository struct {
	collection *mongo.Collection
}

// NewMongoAccountRepository creates a new account repository.
// It expects a connected *mongo.Database instance.
func NewMongoAccountRepository(db *mongo.Database) repository.AccountRepository {
	return &mongoAccountRepository{
		collection: db.Collection(accountCollectionName),
	}
}

// GetByID retrieves an account by its ObjectID.
func (r *mongoAccountRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Account, error) {
	var account domain.Account
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByPhone retrieves the account holding a verified phone number.
func (r *mongoAccountRepository) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	var account domain.Account
	filter := bson.M{"phone": phone}

	err := r.collection.FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// EnsureByID returns the account for id, creating an empty aggregate on
// first authenticated touch. The upsert makes concurrent first touches safe.
func (r *mongoAccountRepository) EnsureByID(ctx context.Context, id primitive.ObjectID) (*domain.Account, error) {
	now := time.Now().UTC()
	filter := bson.M{"_id": id}
	update := bson.M{
		"$setOnInsert": bson.M{
			"mistakes":  0,
			"workouts":  []domain.SessionEntry{},
			"training":  []domain.ProgramEntry{},
			"diets":     []domain.DietDay{},
			"createdAt": now,
			"updatedAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var account domain.Account
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&account); err != nil {
		return nil, err
	}
	return &account, nil
}

// SetPhone stores a verified phone. The unique sparse index on phone turns a
// concurrent double-claim into a duplicate key error.
func (r *mongoAccountRepository) SetPhone(ctx context.Context, id primitive.ObjectID, phone string) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"phone": phone, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrConflict
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// === Workout sessions ===

// AppendSession atomically appends an active entry and points the active
// marker at it. The filter requires the marker to be clear AND the log to
// still hold exactly atIndex entries, so two concurrent starts cannot both
// succeed and the marker always references the pushed slot.
func (r *mongoAccountRepository) AppendSession(ctx context.Context, id primitive.ObjectID, entry domain.SessionEntry, atIndex int) error {
	filter := bson.M{
		"_id":           id,
		"activeWorkout": nil,
		"workouts":      bson.M{"$size": atIndex},
	}
	update := bson.M{
		"$push": bson.M{"workouts": entry},
		"$set":  bson.M{"activeWorkout": atIndex, "updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Either a session is already active or the log moved underneath us.
		return repository.ErrConflict
	}
	return nil
}

// FinishSession replaces the tracked positional slot wholesale and clears the
// marker. Setting the whole array element (rather than individual subfields)
// is the clear-then-set semantics: no partial merge with stale siblings.
func (r *mongoAccountRepository) FinishSession(ctx context.Context, id primitive.ObjectID, index int, entry domain.SessionEntry) error {
	filter := bson.M{
		"_id":           id,
		"activeWorkout": index,
	}
	update := bson.M{
		"$set": bson.M{
			fmt.Sprintf("workouts.%d", index): entry,
			"updatedAt":                       time.Now().UTC(),
		},
		"$unset": bson.M{"activeWorkout": ""},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// The slot is no longer the tracked active entry.
		return repository.ErrConflict
	}
	return nil
}

// === Moderation ===

// IncrementMistakes bumps the violation counter and returns the new value.
func (r *mongoAccountRepository) IncrementMistakes(ctx context.Context, id primitive.ObjectID) (int, error) {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$inc": bson.M{"mistakes": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var account domain.Account
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return account.Mistakes, nil
}

// SetBan installs or replaces the ban document.
func (r *mongoAccountRepository) SetBan(ctx context.Context, id primitive.ObjectID, ban domain.Ban, resetMistakes bool) error {
	set := bson.M{"ban": ban, "updatedAt": time.Now().UTC()}
	if resetMistakes {
		set["mistakes"] = 0
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ClearBan removes any ban. Idempotent: clearing an absent ban is not an error.
func (r *mongoAccountRepository) ClearBan(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$unset": bson.M{"ban": ""},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ResetMistakes zeroes the violation counter. Idempotent.
func (r *mongoAccountRepository) ResetMistakes(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"mistakes": 0, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ClearModeration zeroes the counter and drops any ban in a single update,
// so a compliant interaction cannot be half-applied.
func (r *mongoAccountRepository) ClearModeration(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$set":   bson.M{"mistakes": 0, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"ban": ""},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// === Training thread (singleton slot at training.0) ===

// EnsureTraining lazily seeds the singleton training thread. The filter only
// matches while the slot is empty, so a concurrent seed is pushed at most once.
func (r *mongoAccountRepository) EnsureTraining(ctx context.Context, id primitive.ObjectID, seed domain.Message) (*domain.ProgramEntry, error) {
	filter := bson.M{"_id": id, "training.0": bson.M{"$exists": false}}
	update := bson.M{
		"$push": bson.M{"training": domain.ProgramEntry{History: []domain.Message{seed}}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return nil, err
	}
	// MatchedCount 0 just means the thread already exists.

	account, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(account.Training) == 0 {
		return nil, repository.ErrUpdateFailed
	}
	return &account.Training[0], nil
}

// AppendTrainingMessage appends one message to the training history.
func (r *mongoAccountRepository) AppendTrainingMessage(ctx context.Context, id primitive.ObjectID, msg domain.Message) error {
	filter := bson.M{"_id": id, "training.0": bson.M{"$exists": true}}
	update := bson.M{
		"$push": bson.M{"training.0.history": msg},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetTrainingPlan replaces only the plan slot, leaving history untouched.
func (r *mongoAccountRepository) SetTrainingPlan(ctx context.Context, id primitive.ObjectID, plan string) error {
	filter := bson.M{"_id": id, "training.0": bson.M{"$exists": true}}
	update := bson.M{
		"$set": bson.M{"training.0.plan": plan, "updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ResetTraining discards history down to the seed message and clears the
// plan slot, in one update.
func (r *mongoAccountRepository) ResetTraining(ctx context.Context, id primitive.ObjectID, seed domain.Message) error {
	filter := bson.M{"_id": id, "training.0": bson.M{"$exists": true}}
	update := bson.M{
		"$set": bson.M{
			"training.0.history": []domain.Message{seed},
			"updatedAt":          time.Now().UTC(),
		},
		"$unset": bson.M{"training.0.plan": ""},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// === Diet threads (one array element per calendar date) ===

// EnsureDietDay lazily creates the diet thread for a date. The $ne filter
// makes concurrent first touches push at most one element for the date.
func (r *mongoAccountRepository) EnsureDietDay(ctx context.Context, id primitive.ObjectID, date string, seed domain.Message) (*domain.DietDay, error) {
	filter := bson.M{"_id": id, "diets.date": bson.M{"$ne": date}}
	update := bson.M{
		"$push": bson.M{"diets": domain.DietDay{Date: date, History: []domain.Message{seed}}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return nil, err
	}

	return r.GetDietDay(ctx, id, date)
}

// GetDietDay retrieves the single matching diet entry via a positional
// projection, so the rest of the aggregate is never transferred.
func (r *mongoAccountRepository) GetDietDay(ctx context.Context, id primitive.ObjectID, date string) (*domain.DietDay, error) {
	filter := bson.M{"_id": id, "diets.date": date}
	opts := options.FindOne().SetProjection(bson.M{"diets.$": 1})

	var account domain.Account
	err := r.collection.FindOne(ctx, filter, opts).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if len(account.Diets) == 0 {
		return nil, repository.ErrNotFound
	}
	return &account.Diets[0], nil
}

// AppendDietMessage appends one message to the matched day's history using
// the positional operator.
func (r *mongoAccountRepository) AppendDietMessage(ctx context.Context, id primitive.ObjectID, date string, msg domain.Message) error {
	filter := bson.M{"_id": id, "diets.date": date}
	update := bson.M{
		"$push": bson.M{"diets.$.history": msg},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetDietPlan replaces only the matched day's plan slot.
func (r *mongoAccountRepository) SetDietPlan(ctx context.Context, id primitive.ObjectID, date string, plan string) error {
	filter := bson.M{"_id": id, "diets.date": date}
	update := bson.M{
		"$set": bson.M{"diets.$.plan": plan, "updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureAccountIndexes creates necessary indexes for the accounts collection.
// Call this once during application startup.
func EnsureAccountIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// A verified phone belongs to at most one account. Sparse because
			// most accounts have no verified phone yet.
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
