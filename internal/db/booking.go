package db

import (
	"context"
	"time"

	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoBookingCollection implements BookingCollection for MongoDB.
type MongoBookingCollection struct {
	Collection *mongo.Collection
}

func (c *MongoBookingCollection) InsertBooking(ctx context.Context, booking *models.Booking) error {
	if c.Collection == nil {
		return errNilCollection
	}
	now := time.Now()
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	if booking.Notes == nil {
		booking.Notes = []models.BookingNote{}
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now
	_, err := c.Collection.InsertOne(ctx, booking)
	return mapErr(err)
}

func (c *MongoBookingCollection) FindBooking(ctx context.Context, ref string) (*models.Booking, error) {
	var booking models.Booking
	if err := c.Collection.FindOne(ctx, refFilter(ref, "booking_id")).Decode(&booking); err != nil {
		return nil, mapErr(err)
	}
	return &booking, nil
}

func (c *MongoBookingCollection) FindBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	q := bson.M{}
	if filter.Customer != nil {
		q["customer"] = *filter.Customer
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	cursor, err := c.Collection.Find(ctx, q, newest())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateBookingStatus sets the status and appends note, when given, in one write.
func (c *MongoBookingCollection) UpdateBookingStatus(ctx context.Context, id primitive.ObjectID, status models.BookingStatus, note *models.BookingNote) (*models.Booking, error) {
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}}
	if note != nil {
		update["$push"] = bson.M{"notes": note}
	}
	var booking models.Booking
	if err := c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, afterUpdate()).Decode(&booking); err != nil {
		return nil, mapErr(err)
	}
	return &booking, nil
}

func (c *MongoBookingCollection) AssignInspector(ctx context.Context, id, inspector primitive.ObjectID, note *models.BookingNote) (*models.Booking, error) {
	update := bson.M{"$set": bson.M{"assigned_inspector": inspector, "updated_at": time.Now()}}
	if note != nil {
		update["$push"] = bson.M{"notes": note}
	}
	var booking models.Booking
	if err := c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, afterUpdate()).Decode(&booking); err != nil {
		return nil, mapErr(err)
	}
	return &booking, nil
}

func (c *MongoBookingCollection) CountBookingsByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, c.Collection)
}
