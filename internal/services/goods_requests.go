package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/outbox"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GoodsRequestError reports one material line whose goods request could not be created.
type GoodsRequestError struct {
	Index  int    `json:"index"`
	ItemID string `json:"itemId"`
	Error  string `json:"error"`
}

type goodsRequestPayload struct {
	Job         primitive.ObjectID `bson:"job"`
	JobID       string             `bson:"job_id"`
	Ordinal     int                `bson:"ordinal"`
	ItemID      string             `bson:"item_id"`
	Quantity    float64            `bson:"quantity"`
	RequestedBy primitive.ObjectID `bson:"requested_by"`
}

// GoodsRequestService creates goods requests for jobs and handles their fulfillment.
// Requests do not reserve stock; only fulfillment decrements it.
type GoodsRequestService struct {
	requests  db.GoodsRequestCollection
	items     db.InventoryCollection
	jobs      db.JobCollection
	inventory *InventoryService
	outbox    outbox.Deferrer
	now       func() time.Time
}

// NewGoodsRequestService creates a goods request service.
func NewGoodsRequestService(repos Repositories, inventory *InventoryService, deferrer outbox.Deferrer) *GoodsRequestService {
	return &GoodsRequestService{
		requests:  repos.GoodsRequests,
		items:     repos.Inventory,
		jobs:      repos.Jobs,
		inventory: inventory,
		outbox:    deferrer,
		now:       time.Now,
	}
}

// CreateForJob creates one request per material line. Failures never abort the loop:
// each is logged, recorded for retry and returned alongside the created requests.
func (s *GoodsRequestService) CreateForJob(ctx context.Context, job *models.Job, requestedBy primitive.ObjectID) ([]models.GoodsRequest, []GoodsRequestError) {
	ctx = context.WithoutCancel(ctx)
	created := []models.GoodsRequest{}
	var failures []GoodsRequestError

	for i, m := range job.Requirements.Materials {
		p := goodsRequestPayload{
			Job:         job.ID,
			JobID:       job.JobID,
			Ordinal:     i + 1,
			ItemID:      m.ItemID,
			Quantity:    m.RequestedQuantity,
			RequestedBy: requestedBy,
		}
		req, err := s.create(ctx, p)
		if err == nil {
			created = append(created, *req)
			continue
		}

		logger := log.WithFields(log.Fields{"job_id": job.JobID, "item_id": m.ItemID, "ordinal": p.Ordinal})
		logger.WithError(err).Error("Failed to create goods request")
		failures = append(failures, GoodsRequestError{Index: i, ItemID: m.ItemID, Error: err.Error()})
		if s.outbox != nil {
			if derr := s.outbox.Defer(ctx, models.EventGoodsRequest, job.JobID, p, err); derr != nil {
				logger.WithError(derr).Error("Failed to record goods request for retry")
			}
		}
	}
	return created, failures
}

// create is idempotent per (job, ordinal): a replay returns the existing request.
func (s *GoodsRequestService) create(ctx context.Context, p goodsRequestPayload) (*models.GoodsRequest, error) {
	item, err := s.items.FindItem(ctx, p.ItemID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("inventory item %s not found", p.ItemID)
		}
		return nil, fmt.Errorf("failed to load inventory item %s: %w", p.ItemID, err)
	}

	key := models.GoodsRequestKey(p.Job, p.Ordinal)
	req := &models.GoodsRequest{
		RequestID:   key,
		Job:         p.Job,
		JobID:       p.JobID,
		Item:        item.ID,
		ItemID:      item.ItemID,
		ItemName:    item.Name,
		Unit:        item.Unit,
		Quantity:    p.Quantity,
		Purpose:     "Materials for job " + p.JobID,
		RequestedBy: p.RequestedBy,
		Status:      models.GoodsRequestPending,
	}
	err = s.requests.InsertGoodsRequest(ctx, req)
	if errors.Is(err, db.ErrDuplicate) {
		return s.requests.FindGoodsRequest(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store goods request %s: %w", key, err)
	}
	return req, nil
}

// HandleCreateEvent replays a recorded goods request creation.
func (s *GoodsRequestService) HandleCreateEvent(ctx context.Context, evt models.OutboxEvent) error {
	var p goodsRequestPayload
	if err := outbox.Decode(evt, &p); err != nil {
		return fmt.Errorf("failed to decode goods request payload: %w", err)
	}
	_, err := s.create(ctx, p)
	return err
}

// List returns goods requests, optionally narrowed to a job and status.
func (s *GoodsRequestService) List(ctx context.Context, jobRef string, status models.GoodsRequestStatus) ([]models.GoodsRequest, error) {
	if status != "" && !models.IsValidGoodsRequestStatus(status) {
		return nil, apperror.BadRequest("invalid status")
	}
	filter := db.GoodsRequestFilter{Status: status}
	if jobRef != "" {
		job, err := s.jobs.FindJob(ctx, jobRef)
		if err != nil {
			return nil, lookupErr(err, "Job")
		}
		filter.Job = &job.ID
	}
	out, err := s.requests.FindGoodsRequests(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list goods requests")
	}
	return out, nil
}

// Get returns one goods request by id or key.
func (s *GoodsRequestService) Get(ctx context.Context, ref string) (*models.GoodsRequest, error) {
	req, err := s.requests.FindGoodsRequest(ctx, ref)
	if err != nil {
		return nil, lookupErr(err, "Goods request")
	}
	return req, nil
}

// Fulfill hands out the requested quantity. The request is claimed first so it cannot be
// fulfilled twice; if the stock decrement then fails the claim is released.
func (s *GoodsRequestService) Fulfill(ctx context.Context, actor Actor, ref string) (*models.GoodsRequest, *StockResult, error) {
	req, err := s.Get(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != models.GoodsRequestPending {
		return nil, nil, apperror.BadRequest("Goods request is already %s", req.Status)
	}
	item, err := s.inventory.Get(ctx, req.Item.Hex())
	if err != nil {
		return nil, nil, err
	}

	claimed, err := s.requests.UpdateGoodsRequestStatus(ctx, req.ID, models.GoodsRequestPending, db.GoodsRequestUpdate{
		Status:    models.GoodsRequestFulfilled,
		HandledBy: actor.ID,
		HandledAt: s.now(),
	})
	if err != nil {
		return nil, nil, s.transitionErr(err)
	}
	// Once claimed, the decrement or the release has to run to the end.
	ctx = context.WithoutCancel(ctx)

	adj := models.StockAdjustment{
		ItemID:    item.ItemID,
		Quantity:  req.Quantity,
		Operation: models.StockSubtract,
		Reason:    "Goods request for job " + req.JobID,
	}
	stock, err := s.inventory.apply(ctx, actor, item, adj, req.RequestID)
	if err != nil {
		_, rerr := s.requests.UpdateGoodsRequestStatus(ctx, req.ID, models.GoodsRequestFulfilled, db.GoodsRequestUpdate{
			Status:    models.GoodsRequestPending,
			HandledBy: actor.ID,
			HandledAt: s.now(),
		})
		if rerr != nil {
			log.WithError(rerr).WithField("request_id", req.RequestID).Error("Failed to release goods request claim")
		}
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"request_id": req.RequestID,
		"item_id":    item.ItemID,
		"quantity":   req.Quantity,
	}).Info("Goods request fulfilled")
	return claimed, stock, nil
}

// Reject closes a pending request without touching stock.
func (s *GoodsRequestService) Reject(ctx context.Context, actor Actor, ref, reason string) (*models.GoodsRequest, error) {
	req, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if req.Status != models.GoodsRequestPending {
		return nil, apperror.BadRequest("Goods request is already %s", req.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.BadRequest("reason is required")
	}
	updated, err := s.requests.UpdateGoodsRequestStatus(ctx, req.ID, models.GoodsRequestPending, db.GoodsRequestUpdate{
		Status:         models.GoodsRequestRejected,
		HandledBy:      actor.ID,
		HandledAt:      s.now(),
		RejectedReason: reason,
	})
	if err != nil {
		return nil, s.transitionErr(err)
	}
	return updated, nil
}

func (s *GoodsRequestService) transitionErr(err error) error {
	if errors.Is(err, db.ErrConflict) {
		return apperror.Conflict("Goods request was handled concurrently")
	}
	return lookupErr(err, "Goods request")
}
