// internal/repository/mongo/weekly_repo.go
package mongo

import (
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const weeklyCollectionName = "weekly"

// mongoWeeklyRepository implements repository.WeeklyRepository
type mongoWeeklyRepository struct {
	collection *mongo.Collection
}

// NewMongoWeeklyRepository creates a new weekly document repository.
func NewMongoWeeklyRepository(db *mongo.Database) repository.WeeklyRepository {
	return &mongoWeeklyRepository{
		collection: db.Collection(weeklyCollectionName),
	}
}

func weekFilter(userID, weekKey string) bson.M {
	return bson.M{"userId": userID, "weekOfISO": weekKey}
}

// Get retrieves the document for one week.
func (r *mongoWeeklyRepository) Get(ctx context.Context, userID, weekKey string) (*domain.WeeklyDocument, error) {
	var doc domain.WeeklyDocument
	err := r.collection.FindOne(ctx, weekFilter(userID, weekKey)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// Set replaces the stored document in one write, inserting it if absent.
func (r *mongoWeeklyRepository) Set(ctx context.Context, userID, weekKey string, doc *domain.WeeklyDocument) error {
	if userID == "" || weekKey == "" {
		return errors.New("weekly document requires userId and weekOfISO")
	}
	replacement := *doc
	replacement.UserID = userID
	replacement.WeekOfISO = weekKey
	replacement.UpdatedAt = time.Now().UTC()

	opts := options.Replace().SetUpsert(true)
	result, err := r.collection.ReplaceOne(ctx, weekFilter(userID, weekKey), &replacement, opts)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return repository.ErrUpdateFailed
	}
	return nil
}

// Latest finds the newest week stored before the given week key.
func (r *mongoWeeklyRepository) Latest(ctx context.Context, userID, beforeWeekKey string) (*domain.WeeklyDocument, error) {
	var doc domain.WeeklyDocument
	filter := bson.M{"userId": userID, "weekOfISO": bson.M{"$lt": beforeWeekKey}}
	// ISO dates sort lexically in calendar order.
	findOptions := options.FindOne().SetSort(bson.D{{Key: "weekOfISO", Value: -1}})

	err := r.collection.FindOne(ctx, filter, findOptions).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// EnsureWeeklyIndexes creates necessary indexes. Call during startup.
func EnsureWeeklyIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// One document per user and week
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "weekOfISO", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
