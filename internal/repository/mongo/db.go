package mongo

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB and verifies it with a ping.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// The initial connect can succeed against an unresponsive server; ping to be sure.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}
	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection. Failures are logged,
// not fatal: the repositories work without indexes, only slower.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger zerolog.Logger) {
	if err := EnsureWeeklyIndexes(ctx, db.Collection(weeklyCollectionName)); err != nil {
		logger.Warn().Err(err).Str("collection", weeklyCollectionName).Msg("failed to create indexes")
	}
	if err := EnsureSessionIndexes(ctx, db.Collection(sessionCollectionName)); err != nil {
		logger.Warn().Err(err).Str("collection", sessionCollectionName).Msg("failed to create indexes")
	}
	logger.Info().Msg("index creation process completed")
}
