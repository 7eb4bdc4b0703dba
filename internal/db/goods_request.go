package db

import (
	"context"
	"time"

	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoGoodsRequestCollection implements GoodsRequestCollection for MongoDB.
type MongoGoodsRequestCollection struct {
	Collection *mongo.Collection
}

// InsertGoodsRequest stores a request. The unique request_id index turns a replayed
// insert into ErrDuplicate.
func (c *MongoGoodsRequestCollection) InsertGoodsRequest(ctx context.Context, req *models.GoodsRequest) error {
	if c.Collection == nil {
		return errNilCollection
	}
	now := time.Now()
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	req.CreatedAt = now
	req.UpdatedAt = now
	_, err := c.Collection.InsertOne(ctx, req)
	return mapErr(err)
}

func (c *MongoGoodsRequestCollection) FindGoodsRequest(ctx context.Context, ref string) (*models.GoodsRequest, error) {
	var req models.GoodsRequest
	if err := c.Collection.FindOne(ctx, refFilter(ref, "request_id")).Decode(&req); err != nil {
		return nil, mapErr(err)
	}
	return &req, nil
}

func (c *MongoGoodsRequestCollection) FindGoodsRequests(ctx context.Context, filter GoodsRequestFilter) ([]models.GoodsRequest, error) {
	q := bson.M{}
	if filter.Job != nil {
		q["job"] = *filter.Job
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	cursor, err := c.Collection.Find(ctx, q, newest())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reqs := []models.GoodsRequest{}
	if err := cursor.All(ctx, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (c *MongoGoodsRequestCollection) UpdateGoodsRequestStatus(ctx context.Context, id primitive.ObjectID, from models.GoodsRequestStatus, u GoodsRequestUpdate) (*models.GoodsRequest, error) {
	set := bson.M{
		"status":     u.Status,
		"handled_by": u.HandledBy,
		"handled_at": u.HandledAt,
		"updated_at": u.HandledAt,
	}
	if u.RejectedReason != "" {
		set["rejected_reason"] = u.RejectedReason
	}
	var req models.GoodsRequest
	err := c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set}, afterUpdate()).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, exists(ctx, c.Collection, id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &req, nil
}
