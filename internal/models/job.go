package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobStatus is the technical lifecycle state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobWorking   JobStatus = "working"
	JobCompleted JobStatus = "completed"
	JobOnHold    JobStatus = "on_hold"
	JobCancelled JobStatus = "cancelled"
)

// technicianTransitions are the only edges a technician may take.
var technicianTransitions = map[JobStatus][]JobStatus{
	JobPending: {JobWorking},
	JobWorking: {JobCompleted, JobOnHold},
	JobOnHold:  {JobWorking},
}

// JobCategories lists accepted job categories.
var JobCategories = []string{
	"maintenance",
	"repair",
	"diagnostic",
	"inspection",
	"bodywork",
	"electrical",
	"other",
}

// AssignedLabourer is a technician on a job and the hours they have logged.
type AssignedLabourer struct {
	Technician  primitive.ObjectID `bson:"technician" json:"technician"`
	AssignedAt  time.Time          `bson:"assigned_at" json:"assignedAt"`
	HoursWorked float64            `bson:"hours_worked" json:"hoursWorked"`
}

// MaterialRequirement is one requested inventory line.
type MaterialRequirement struct {
	ItemID            string  `bson:"item_id" json:"itemId"`
	Name              string  `bson:"name,omitempty" json:"name,omitempty"`
	RequestedQuantity float64 `bson:"requested_quantity" json:"requestedQuantity"`
}

// Requirements of a job.
type Requirements struct {
	Skills    []string              `bson:"skills,omitempty" json:"skills,omitempty"`
	Tools     []string              `bson:"tools,omitempty" json:"tools,omitempty"`
	Materials []MaterialRequirement `bson:"materials,omitempty" json:"materials,omitempty"`
}

// WorkLogEntry records time spent on a job by one technician.
type WorkLogEntry struct {
	Technician  primitive.ObjectID `bson:"technician" json:"technician"`
	StartTime   time.Time          `bson:"start_time" json:"startTime"`
	EndTime     time.Time          `bson:"end_time" json:"endTime"`
	HoursWorked float64            `bson:"hours_worked" json:"hoursWorked"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	LoggedAt    time.Time          `bson:"logged_at" json:"loggedAt"`
}

// PreWorkInspection is recorded before work starts.
type PreWorkInspection struct {
	Condition   string             `bson:"condition" json:"condition"`
	Issues      []string           `bson:"issues,omitempty" json:"issues,omitempty"`
	Photos      []string           `bson:"photos,omitempty" json:"photos,omitempty"`
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	InspectedBy primitive.ObjectID `bson:"inspected_by" json:"inspectedBy"`
	InspectedAt time.Time          `bson:"inspected_at" json:"inspectedAt"`
}

// PostWorkInspection is recorded once a job is completed.
type PostWorkInspection struct {
	QualityRating int                `bson:"quality_rating" json:"qualityRating"`
	Issues        []string           `bson:"issues,omitempty" json:"issues,omitempty"`
	Photos        []string           `bson:"photos,omitempty" json:"photos,omitempty"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Approved      bool               `bson:"approved" json:"approved"`
	InspectedBy   primitive.ObjectID `bson:"inspected_by" json:"inspectedBy"`
	InspectedAt   time.Time          `bson:"inspected_at" json:"inspectedAt"`
}

// InspectionReport groups the pre and post work inspections.
type InspectionReport struct {
	PreWork  *PreWorkInspection  `bson:"pre_work,omitempty" json:"preWork,omitempty"`
	PostWork *PostWorkInspection `bson:"post_work,omitempty" json:"postWork,omitempty"`
}

// StatusChange is one entry of a job's status history.
type StatusChange struct {
	From      JobStatus          `bson:"from" json:"from"`
	To        JobStatus          `bson:"to" json:"to"`
	ChangedBy primitive.ObjectID `bson:"changed_by" json:"changedBy"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	ChangedAt time.Time          `bson:"changed_at" json:"changedAt"`
}

// Job is a work order derived from a booking.
type Job struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	JobID             string              `bson:"job_id" json:"jobId"`
	Booking           primitive.ObjectID  `bson:"booking" json:"booking"`
	Title             string              `bson:"title" json:"title"`
	Description       string              `bson:"description,omitempty" json:"description,omitempty"`
	Category          string              `bson:"category" json:"category"`
	Priority          Priority            `bson:"priority" json:"priority"`
	Status            JobStatus           `bson:"status" json:"status"`
	AssignedLabourers []AssignedLabourer  `bson:"assigned_labourers" json:"assignedLabourers"`
	Requirements      Requirements        `bson:"requirements" json:"requirements"`
	WorkLog           []WorkLogEntry      `bson:"work_log" json:"workLog"`
	InspectionReport  InspectionReport    `bson:"inspection_report" json:"inspectionReport"`
	StatusHistory     []StatusChange      `bson:"status_history" json:"statusHistory"`
	EstimatedHours    float64             `bson:"estimated_hours" json:"estimatedHours"`
	ActualHours       float64             `bson:"actual_hours" json:"actualHours"`
	EstimatedCost     float64             `bson:"estimated_cost" json:"estimatedCost"`
	ActualCost        float64             `bson:"actual_cost" json:"actualCost"`
	StartedAt         *time.Time          `bson:"started_at,omitempty" json:"startedAt,omitempty"`
	CompletedAt       *time.Time          `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
	ApprovedAt        *time.Time          `bson:"approved_at,omitempty" json:"approvedAt,omitempty"`
	InspectedBy       *primitive.ObjectID `bson:"inspected_by,omitempty" json:"inspectedBy,omitempty"`
	CreatedBy         primitive.ObjectID  `bson:"created_by" json:"createdBy"`
	CreatedAt         time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updated_at" json:"updatedAt"`
}

// IsValidJobStatus checks if a job status is valid
func IsValidJobStatus(s JobStatus) bool {
	switch s {
	case JobPending, JobWorking, JobCompleted, JobOnHold, JobCancelled:
		return true
	default:
		return false
	}
}

// IsValidJobCategory checks the category against JobCategories.
func IsValidJobCategory(c string) bool {
	for _, cat := range JobCategories {
		if cat == c {
			return true
		}
	}
	return false
}

// TechnicianCanTransition reports whether a technician may move a job from one status to another.
func TechnicianCanTransition(from, to JobStatus) bool {
	for _, allowed := range technicianTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsAssigned reports whether the user is one of the job's labourers.
func (j *Job) IsAssigned(userID primitive.ObjectID) bool {
	return j.Labourer(userID) != nil
}

// Labourer returns the assignment for the user, or nil.
func (j *Job) Labourer(userID primitive.ObjectID) *AssignedLabourer {
	for i := range j.AssignedLabourers {
		if j.AssignedLabourers[i].Technician == userID {
			return &j.AssignedLabourers[i]
		}
	}
	return nil
}

// StatusTimestamps returns the startedAt/completedAt values that entering status to at the
// given time would set. Nil means the field is left untouched.
func (j *Job) StatusTimestamps(to JobStatus, at time.Time) (startedAt, completedAt *time.Time) {
	if to == JobWorking && j.StartedAt == nil {
		startedAt = &at
	}
	if to == JobCompleted && j.CompletedAt == nil {
		completedAt = &at
	}
	return startedAt, completedAt
}

// TotalLoggedHours sums the work log.
func (j *Job) TotalLoggedHours() float64 {
	total := 0.0
	for _, e := range j.WorkLog {
		total += e.HoursWorked
	}
	return total
}

// HoursBetween returns the fractional hours between start and end, unrounded so short
// entries still count towards the totals.
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}
