// internal/repository/mongo/session_repo.go
package mongo

import (
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollectionName = "sessions"

// mongoSessionRepository implements repository.SessionRepository
type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new session log repository.
func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

// Add inserts a new session event. IDs are ObjectID hex strings unless the caller supplied one.
func (r *mongoSessionRepository) Add(ctx context.Context, event *domain.SessionEvent) (string, error) {
	if event.UserID == "" {
		return "", errors.New("session event requires userId")
	}
	if event.ID == "" {
		event.ID = primitive.NewObjectID().Hex()
	}

	result, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		return "", err
	}
	insertedID, ok := result.InsertedID.(string)
	if !ok {
		return "", errors.New("failed to convert inserted session ID")
	}
	return insertedID, nil
}

// Get retrieves one event owned by the user.
func (r *mongoSessionRepository) Get(ctx context.Context, userID, id string) (*domain.SessionEvent, error) {
	var event domain.SessionEvent
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// List retrieves every event of the user.
func (r *mongoSessionRepository) List(ctx context.Context, userID string) ([]domain.SessionEvent, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

// isoDatePattern matches the shape of a YYYY-MM-DD date.
const isoDatePattern = `^[0-9]{4}-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$`

// ListRange retrieves events dated within [fromISO, toISO] plus those with an
// empty or malformed dateISO, which are placed by timestamp.
func (r *mongoSessionRepository) ListRange(ctx context.Context, userID, fromISO, toISO string) ([]domain.SessionEvent, error) {
	filter := bson.M{
		"userId": userID,
		"$or": bson.A{
			bson.M{"dateISO": bson.M{"$gte": fromISO, "$lte": toISO}},
			bson.M{"dateISO": bson.M{"$exists": false}},
			bson.M{"dateISO": ""},
			bson.M{"dateISO": bson.M{"$not": primitive.Regex{Pattern: isoDatePattern}}},
			// Right shape, impossible day (2025-02-30).
			bson.M{"$expr": bson.M{"$eq": bson.A{
				bson.M{"$dateFromString": bson.M{
					"dateString": "$dateISO",
					"format":     "%Y-%m-%d",
					"onError":    nil,
					"onNull":     nil,
				}},
				nil,
			}}},
		},
	}
	return r.find(ctx, filter)
}

func (r *mongoSessionRepository) find(ctx context.Context, filter bson.M) ([]domain.SessionEvent, error) {
	events := []domain.SessionEvent{}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Delete removes an event owned by the user.
func (r *mongoSessionRepository) Delete(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return errors.New("session ID and user ID are required for deletion")
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSessionIndexes creates necessary indexes. Call during startup.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Range scans for one week of one user
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "dateISO", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "completedAt", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
