package mongo

import (
	"context"
	"errors"
	"time"

	"fitai/fitness-tracker/internal/domain"
	"fitai/fitness-tracker/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cooldownCollectionName = "cooldowns"

// mongoCooldownRepository implements repository.CooldownRepository.
//
// Atomicity of the guarded commit leans on the unique (identity, origin)
// index: the upsert filter only matches a record whose expiry has passed, so
// when an active record exists the update matches nothing and the insert leg
// collides with the unique index. Two concurrent guarded commits therefore
// cannot both bypass an active cooldown.
type mongoCooldownRepository struct {
	collection *mongo.Collection
}

// NewMongoCooldownRepository creates a new cooldown repository.
func NewMongoCooldownRepository(db *mongo.Database) repository.CooldownRepository {
	return &mongoCooldownRepository{
		collection: db.Collection(cooldownCollectionName),
	}
}

// Get retrieves the record for a key, expired or not. Lazy expiry is the
// caller's concern: the TTL monitor sweeps in the background and may lag.
func (r *mongoCooldownRepository) Get(ctx context.Context, key domain.CooldownKey) (*domain.CooldownRecord, error) {
	var record domain.CooldownRecord
	filter := bson.M{"identity": key.Identity, "origin": key.Origin}

	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// CommitGuarded installs a fresh expiry unless an unexpired record exists.
func (r *mongoCooldownRepository) CommitGuarded(ctx context.Context, key domain.CooldownKey, now, expiresAt time.Time) error {
	// Matches only an expired record; a fresh key falls through to the upsert
	// insert. An active record matches neither and trips the unique index.
	filter := bson.M{
		"identity":  key.Identity,
		"origin":    key.Origin,
		"expiresAt": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{"expiresAt": expiresAt}}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrCooldownActive
		}
		return err
	}
	return nil
}

// CommitUnconditional always installs a fresh expiry for the key.
func (r *mongoCooldownRepository) CommitUnconditional(ctx context.Context, key domain.CooldownKey, expiresAt time.Time) error {
	filter := bson.M{"identity": key.Identity, "origin": key.Origin}
	record := domain.CooldownRecord{
		Identity:  key.Identity,
		Origin:    key.Origin,
		ExpiresAt: expiresAt,
	}
	opts := options.Replace().SetUpsert(true)

	_, err := r.collection.ReplaceOne(ctx, filter, record, opts)
	return err
}

// EnsureCooldownIndexes creates the unique key index and the TTL index that
// passively sweeps expired records. Call once during application startup.
func EnsureCooldownIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "identity", Value: 1}, {Key: "origin", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// expireAfterSeconds 0 means "delete once expiresAt has passed".
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
