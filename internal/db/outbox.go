package db

import (
	"context"
	"time"

	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOutboxCollection implements OutboxCollection for MongoDB.
type MongoOutboxCollection struct {
	Collection *mongo.Collection
}

func (c *MongoOutboxCollection) InsertEvent(ctx context.Context, evt *models.OutboxEvent) error {
	if c.Collection == nil {
		return errNilCollection
	}
	_, err := c.Collection.InsertOne(ctx, evt)
	return mapErr(err)
}

func (c *MongoOutboxCollection) FindEvent(ctx context.Context, id string) (*models.OutboxEvent, error) {
	var evt models.OutboxEvent
	if err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&evt); err != nil {
		return nil, mapErr(err)
	}
	return &evt, nil
}

// FindEvents lists events, newest first. An empty status lists all of them.
func (c *MongoOutboxCollection) FindEvents(ctx context.Context, status models.OutboxStatus, limit int64) ([]models.OutboxEvent, error) {
	q := bson.M{}
	if status != "" {
		q["status"] = status
	}
	opts := newest()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return c.find(ctx, q, opts)
}

// FindRetryable returns failed events that are due and still have attempts left.
func (c *MongoOutboxCollection) FindRetryable(ctx context.Context, now time.Time, maxAttempts int, limit int64) ([]models.OutboxEvent, error) {
	q := bson.M{
		"status":          bson.M{"$in": bson.A{models.OutboxPending, models.OutboxFailed}},
		"attempts":        bson.M{"$lt": maxAttempts},
		"next_attempt_at": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "next_attempt_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return c.find(ctx, q, opts)
}

func (c *MongoOutboxCollection) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]models.OutboxEvent, error) {
	cursor, err := c.Collection.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.OutboxEvent{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MongoOutboxCollection) MarkEventDone(ctx context.Context, id string, at time.Time) error {
	res, err := c.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"status": models.OutboxDone, "processed_at": at},
		"$inc":   bson.M{"attempts": 1},
		"$unset": bson.M{"last_error": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *MongoOutboxCollection) MarkEventFailed(ctx context.Context, id string, errMsg string, next time.Time) error {
	res, err := c.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": models.OutboxFailed, "last_error": errMsg, "next_attempt_at": next},
		"$inc": bson.M{"attempts": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
