package db

import (
	"context"
	"regexp"
	"time"

	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// lowStockExpr matches items whose stock is at or below their minimum.
var lowStockExpr = bson.M{"$lte": bson.A{"$current_stock", "$minimum_stock"}}

// MongoInventoryCollection implements InventoryCollection for MongoDB.
type MongoInventoryCollection struct {
	Collection *mongo.Collection
}

func (c *MongoInventoryCollection) InsertItem(ctx context.Context, item *models.InventoryItem) error {
	if c.Collection == nil {
		return errNilCollection
	}
	now := time.Now()
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	_, err := c.Collection.InsertOne(ctx, item)
	return mapErr(err)
}

func (c *MongoInventoryCollection) FindItem(ctx context.Context, ref string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := c.Collection.FindOne(ctx, refFilter(ref, "item_id")).Decode(&item); err != nil {
		return nil, mapErr(err)
	}
	return &item, nil
}

func (c *MongoInventoryCollection) FindItems(ctx context.Context, filter ItemFilter) ([]models.InventoryItem, error) {
	q := bson.M{}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	switch {
	case filter.Status != "":
		q["status"] = filter.Status
	case filter.ExcludeDiscontinued:
		q["status"] = bson.M{"$ne": models.ItemDiscontinued}
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		q["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"item_id": pattern}}
	}
	if filter.LowStockOnly {
		q["$expr"] = lowStockExpr
	}

	cursor, err := c.Collection.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "item_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []models.InventoryItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItem sets the descriptive fields. current_stock is never written here so a
// concurrent adjustment cannot be overwritten.
func (c *MongoInventoryCollection) UpdateItem(ctx context.Context, item *models.InventoryItem) error {
	item.UpdatedAt = time.Now()
	res, err := c.Collection.UpdateOne(ctx, bson.M{"_id": item.ID}, bson.M{"$set": bson.M{
		"name":          item.Name,
		"description":   item.Description,
		"category":      item.Category,
		"unit":          item.Unit,
		"unit_price":    item.UnitPrice,
		"minimum_stock": item.MinimumStock,
		"supplier":      item.Supplier,
		"location":      item.Location,
		"status":        item.Status,
		"updated_at":    item.UpdatedAt,
	}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock applies delta with a conditional update: a decrement only matches while
// current_stock covers it, so concurrent subtractions can never drive stock negative.
func (c *MongoInventoryCollection) AdjustStock(ctx context.Context, id primitive.ObjectID, delta float64) (*models.InventoryItem, error) {
	now := time.Now()
	filter := bson.M{"_id": id}
	set := bson.M{"updated_at": now}
	if delta < 0 {
		filter["current_stock"] = bson.M{"$gte": -delta}
	} else {
		set["last_restocked"] = now
	}
	update := bson.M{
		"$inc": bson.M{"current_stock": delta},
		"$set": set,
	}

	var before models.InventoryItem
	err := c.Collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&before)
	if err == mongo.ErrNoDocuments {
		err = exists(ctx, c.Collection, id)
		if err == ErrConflict {
			return nil, ErrInsufficientStock
		}
		return nil, err
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &before, nil
}

// CountLowStock counts low-stock items that are not discontinued.
func (c *MongoInventoryCollection) CountLowStock(ctx context.Context) (int64, error) {
	return c.Collection.CountDocuments(ctx, bson.M{
		"status": bson.M{"$ne": models.ItemDiscontinued},
		"$expr":  lowStockExpr,
	})
}
