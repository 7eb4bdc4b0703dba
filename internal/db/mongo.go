package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	usersCollection         = "users"
	vehiclesCollection      = "vehicles"
	bookingsCollection      = "bookings"
	jobsCollection          = "jobs"
	inventoryCollection     = "inventory_items"
	goodsRequestsCollection = "goods_requests"
	movementsCollection     = "stock_movements"
	invoicesCollection      = "invoices"
	countersCollection      = "counters"
	outboxCollection        = "outbox_events"
)

// Sequence names used by the counters collection.
const (
	SeqBooking   = "booking"
	SeqJob       = "job"
	SeqInventory = "inventory"
	SeqInvoice   = "invoice"
)

var errNilCollection = errors.New("mongo collection is nil")

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// Store groups the collections of one database.
type Store struct {
	db *mongo.Database

	Users         *MongoUserCollection
	Vehicles      *MongoVehicleCollection
	Bookings      *MongoBookingCollection
	Jobs          *MongoJobCollection
	Inventory     *MongoInventoryCollection
	GoodsRequests *MongoGoodsRequestCollection
	Movements     *MongoMovementCollection
	Invoices      *MongoInvoiceCollection
	Counters      *MongoCounterCollection
	Outbox        *MongoOutboxCollection
}

// NewStore wires every collection of db.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		db:            db,
		Users:         &MongoUserCollection{Collection: db.Collection(usersCollection)},
		Vehicles:      &MongoVehicleCollection{Collection: db.Collection(vehiclesCollection)},
		Bookings:      &MongoBookingCollection{Collection: db.Collection(bookingsCollection)},
		Jobs:          &MongoJobCollection{Collection: db.Collection(jobsCollection)},
		Inventory:     &MongoInventoryCollection{Collection: db.Collection(inventoryCollection)},
		GoodsRequests: &MongoGoodsRequestCollection{Collection: db.Collection(goodsRequestsCollection)},
		Movements:     &MongoMovementCollection{Collection: db.Collection(movementsCollection)},
		Invoices:      &MongoInvoiceCollection{Collection: db.Collection(invoicesCollection)},
		Counters:      &MongoCounterCollection{Collection: db.Collection(countersCollection)},
		Outbox:        &MongoOutboxCollection{Collection: db.Collection(outboxCollection)},
	}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// EnsureIndexes creates the unique and lookup indexes the collections rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			unique(bson.D{{Key: "username", Value: 1}}),
			unique(bson.D{{Key: "email", Value: 1}}),
			plain(bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}}),
		},
		vehiclesCollection: {
			unique(bson.D{{Key: "registration_number", Value: 1}}),
			plain(bson.D{{Key: "owner", Value: 1}}),
		},
		bookingsCollection: {
			unique(bson.D{{Key: "booking_id", Value: 1}}),
			plain(bson.D{{Key: "customer", Value: 1}, {Key: "created_at", Value: -1}}),
		},
		jobsCollection: {
			unique(bson.D{{Key: "job_id", Value: 1}}),
			plain(bson.D{{Key: "booking", Value: 1}}),
			plain(bson.D{{Key: "assigned_labourers.technician", Value: 1}}),
		},
		inventoryCollection: {
			unique(bson.D{{Key: "item_id", Value: 1}}),
		},
		goodsRequestsCollection: {
			unique(bson.D{{Key: "request_id", Value: 1}}),
			plain(bson.D{{Key: "job", Value: 1}}),
		},
		movementsCollection: {
			plain(bson.D{{Key: "item", Value: 1}, {Key: "created_at", Value: -1}}),
		},
		invoicesCollection: {
			unique(bson.D{{Key: "invoice_number", Value: 1}}),
			unique(bson.D{{Key: "job", Value: 1}}),
		},
		outboxCollection: {
			plain(bson.D{{Key: "status", Value: 1}, {Key: "next_attempt_at", Value: 1}}),
		},
	}

	for name, idx := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// SeedCounters raises every sequence to at least the number of existing documents, so ids
// handed out after a migration from count-based numbering never collide.
func (s *Store) SeedCounters(ctx context.Context) error {
	seeds := map[string]string{
		SeqBooking:   bookingsCollection,
		SeqJob:       jobsCollection,
		SeqInventory: inventoryCollection,
		SeqInvoice:   invoicesCollection,
	}
	for seq, coll := range seeds {
		n, err := s.db.Collection(coll).CountDocuments(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", coll, err)
		}
		if err := s.Counters.SeedSequence(ctx, seq, n); err != nil {
			return err
		}
		log.WithFields(log.Fields{"sequence": seq, "floor": n}).Debug("Seeded counter")
	}
	return nil
}

// refFilter matches ref against the document id when it is a hex object id, and against
// the human readable field otherwise.
func refFilter(ref, field string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(ref); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{field: ref}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// mapErr translates driver errors into the package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// newest sorts by creation time, newest first.
func newest() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// countByStatus groups a collection by its status field.
func countByStatus(ctx context.Context, coll *mongo.Collection) (map[string]int64, error) {
	cursor, err := coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// exists distinguishes a missing document from one that failed a conditional filter.
func exists(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}
