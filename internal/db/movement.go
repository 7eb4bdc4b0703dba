package db

import (
	"context"
	"time"

	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoMovementCollection implements MovementCollection for MongoDB.
type MongoMovementCollection struct {
	Collection *mongo.Collection
}

func (c *MongoMovementCollection) InsertMovement(ctx context.Context, m *models.StockMovement) error {
	if c.Collection == nil {
		return errNilCollection
	}
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := c.Collection.InsertOne(ctx, m)
	return mapErr(err)
}

// FindMovements returns the latest movements of one item, newest first.
func (c *MongoMovementCollection) FindMovements(ctx context.Context, item primitive.ObjectID, limit int64) ([]models.StockMovement, error) {
	opts := newest()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := c.Collection.Find(ctx, bson.M{"item": item}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.StockMovement{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
