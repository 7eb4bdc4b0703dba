package db

import (
	"context"
	"time"

	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoJobCollection implements JobCollection for MongoDB.
type MongoJobCollection struct {
	Collection *mongo.Collection
}

func (c *MongoJobCollection) InsertJob(ctx context.Context, job *models.Job) error {
	if c.Collection == nil {
		return errNilCollection
	}
	now := time.Now()
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	if job.WorkLog == nil {
		job.WorkLog = []models.WorkLogEntry{}
	}
	if job.StatusHistory == nil {
		job.StatusHistory = []models.StatusChange{}
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := c.Collection.InsertOne(ctx, job)
	return mapErr(err)
}

func (c *MongoJobCollection) FindJob(ctx context.Context, ref string) (*models.Job, error) {
	var job models.Job
	if err := c.Collection.FindOne(ctx, refFilter(ref, "job_id")).Decode(&job); err != nil {
		return nil, mapErr(err)
	}
	return &job, nil
}

func (c *MongoJobCollection) FindJobs(ctx context.Context, filter JobFilter) ([]models.Job, error) {
	q := bson.M{}
	if filter.Booking != nil {
		q["booking"] = *filter.Booking
	}
	if filter.Technician != nil {
		q["assigned_labourers.technician"] = *filter.Technician
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	cursor, err := c.Collection.Find(ctx, q, newest())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	jobs := []models.Job{}
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateJobStatus writes the new status and appends the history entry. The filter pins the
// previous status so two concurrent transitions cannot both apply.
func (c *MongoJobCollection) UpdateJobStatus(ctx context.Context, id primitive.ObjectID, u JobStatusUpdate) (*models.Job, error) {
	set := bson.M{"status": u.Status, "updated_at": u.Change.ChangedAt}
	if u.StartedAt != nil {
		set["started_at"] = *u.StartedAt
	}
	if u.CompletedAt != nil {
		set["completed_at"] = *u.CompletedAt
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"status_history": u.Change},
	}
	return c.updateOne(ctx, bson.M{"_id": id, "status": u.Change.From}, update)
}

// AddWorkLog appends the entry and adds its hours to both the job total and the
// technician's own assignment in a single document update.
func (c *MongoJobCollection) AddWorkLog(ctx context.Context, id primitive.ObjectID, entry models.WorkLogEntry) (*models.Job, error) {
	filter := bson.M{"_id": id, "assigned_labourers.technician": entry.Technician}
	update := bson.M{
		"$push": bson.M{"work_log": entry},
		"$inc": bson.M{
			"actual_hours":                     entry.HoursWorked,
			"assigned_labourers.$.hours_worked": entry.HoursWorked,
		},
		"$set": bson.M{"updated_at": entry.LoggedAt},
	}
	return c.updateOne(ctx, filter, update)
}

func (c *MongoJobCollection) SetPreWorkInspection(ctx context.Context, id primitive.ObjectID, report models.PreWorkInspection) (*models.Job, error) {
	update := bson.M{"$set": bson.M{
		"inspection_report.pre_work": report,
		"updated_at":                 report.InspectedAt,
	}}
	return c.updateOne(ctx, bson.M{"_id": id}, update)
}

// SetPostWorkInspection only applies to completed jobs. An approved report also stamps
// approved_at and inspected_by.
func (c *MongoJobCollection) SetPostWorkInspection(ctx context.Context, id primitive.ObjectID, report models.PostWorkInspection) (*models.Job, error) {
	set := bson.M{
		"inspection_report.post_work": report,
		"updated_at":                  report.InspectedAt,
	}
	if report.Approved {
		set["approved_at"] = report.InspectedAt
		set["inspected_by"] = report.InspectedBy
	}
	return c.updateOne(ctx, bson.M{"_id": id, "status": models.JobCompleted}, bson.M{"$set": set})
}

func (c *MongoJobCollection) CountJobsByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, c.Collection)
}

func (c *MongoJobCollection) updateOne(ctx context.Context, filter, update bson.M) (*models.Job, error) {
	var job models.Job
	err := c.Collection.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, exists(ctx, c.Collection, filter["_id"].(primitive.ObjectID))
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &job, nil
}
