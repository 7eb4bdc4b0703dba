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

// MongoUserCollection implements UserCollection for MongoDB
type MongoUserCollection struct {
	Collection *mongo.Collection
}

// InsertUser inserts a new user into the database
func (c *MongoUserCollection) InsertUser(ctx context.Context, user *models.User) error {
	if c.Collection == nil {
		return errNilCollection
	}
	now := time.Now()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := c.Collection.InsertOne(ctx, user)
	return mapErr(err)
}

// FindUserByID finds a user by their ID
func (c *MongoUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return c.findOne(ctx, bson.M{"_id": oid})
}

// FindUserByUsername finds a user by their username
func (c *MongoUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return c.findOne(ctx, bson.M{"username": username})
}

// FindUserByEmail finds a user by their email
func (c *MongoUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.findOne(ctx, bson.M{"email": email})
}

func (c *MongoUserCollection) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := c.Collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// FindUsers finds users with optional filtering
func (c *MongoUserCollection) FindUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	q := bson.M{}
	if filter.Role != "" {
		q["role"] = filter.Role
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.Specialization != "" {
		q["employment.specializations"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.Specialization) + "$", Options: "i"}
	}
	return c.find(ctx, q, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
}

// FindUsersByIDs returns the users with the given ids, in no particular order.
func (c *MongoUserCollection) FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return c.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (c *MongoUserCollection) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.User, error) {
	cursor, err := c.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser replaces the stored user with the given one.
func (c *MongoUserCollection) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	res, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserStatus changes the account status. Moving to inactive records the deactivation time.
func (c *MongoUserCollection) SetUserStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	update := bson.M{"$set": bson.M{"status": status, "updated_at": now}}
	if status == models.UserStatusInactive {
		update["$set"].(bson.M)["deactivated_at"] = now
	} else {
		update["$unset"] = bson.M{"deactivated_at": ""}
	}

	var user models.User
	if err := c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, afterUpdate()).Decode(&user); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// UpdateLastLogin updates the last login time and clears any failed attempts.
func (c *MongoUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = c.Collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$set":   bson.M{"last_login": now, "login_attempts": 0, "updated_at": now},
			"$unset": bson.M{"lock_until": ""},
		},
	)
	return err
}

// RecordFailedLogin stores the failed attempt count and, when set, the lock expiry.
func (c *MongoUserCollection) RecordFailedLogin(ctx context.Context, id string, attempts int, lockUntil *time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	set := bson.M{"login_attempts": attempts, "updated_at": time.Now()}
	if lockUntil != nil {
		set["lock_until"] = *lockUntil
	}
	_, err = c.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	return err
}
