package db

import (
	"context"
	"time"

	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoInvoiceCollection implements InvoiceCollection for MongoDB.
type MongoInvoiceCollection struct {
	Collection *mongo.Collection
}

func (c *MongoInvoiceCollection) InsertInvoice(ctx context.Context, inv *models.Invoice) error {
	if c.Collection == nil {
		return errNilCollection
	}
	now := time.Now()
	if inv.ID.IsZero() {
		inv.ID = primitive.NewObjectID()
	}
	inv.CreatedAt = now
	inv.UpdatedAt = now
	_, err := c.Collection.InsertOne(ctx, inv)
	return mapErr(err)
}

func (c *MongoInvoiceCollection) FindInvoice(ctx context.Context, ref string) (*models.Invoice, error) {
	return c.findOne(ctx, refFilter(ref, "invoice_number"))
}

func (c *MongoInvoiceCollection) FindInvoiceByJob(ctx context.Context, job primitive.ObjectID) (*models.Invoice, error) {
	return c.findOne(ctx, bson.M{"job": job})
}

func (c *MongoInvoiceCollection) findOne(ctx context.Context, filter bson.M) (*models.Invoice, error) {
	var inv models.Invoice
	if err := c.Collection.FindOne(ctx, filter).Decode(&inv); err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

func (c *MongoInvoiceCollection) FindInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.Customer != nil {
		q["customer"] = *filter.Customer
	}
	cursor, err := c.Collection.Find(ctx, q, newest())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Invoice{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MongoInvoiceCollection) MarkInvoicePaid(ctx context.Context, id primitive.ObjectID, method models.PaymentMethod, paidAt time.Time) (*models.Invoice, error) {
	update := bson.M{"$set": bson.M{
		"status":         models.InvoicePaid,
		"payment_method": method,
		"paid_at":        paidAt,
		"updated_at":     paidAt,
	}}
	var inv models.Invoice
	err := c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": models.InvoicePending}, update, afterUpdate()).Decode(&inv)
	if err == mongo.ErrNoDocuments {
		return nil, exists(ctx, c.Collection, id)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

// SumPaidRevenue totals every paid invoice.
func (c *MongoInvoiceCollection) SumPaidRevenue(ctx context.Context) (float64, error) {
	cursor, err := c.Collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "status", Value: models.InvoicePaid}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$total"}}},
		}}},
	})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}
