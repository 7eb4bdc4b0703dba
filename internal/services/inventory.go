package services

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
)

// defaultMovementLimit bounds movement listings when the caller gives no limit.
const defaultMovementLimit = 100

// InventoryService manages items and their stock.
type InventoryService struct {
	items     db.InventoryCollection
	movements db.MovementCollection
	counters  db.CounterCollection
	events    EventPublisher
	now       func() time.Time
}

// NewInventoryService creates an inventory service.
func NewInventoryService(repos Repositories, events EventPublisher) *InventoryService {
	return &InventoryService{
		items:     repos.Inventory,
		movements: repos.Movements,
		counters:  repos.Counters,
		events:    eventsOrNop(events),
		now:       time.Now,
	}
}

// ItemInput carries the writable fields of an item. Nil fields are left unchanged on update.
type ItemInput struct {
	ItemID       string               `json:"itemId"`
	Name         *string              `json:"name"`
	Description  *string              `json:"description"`
	Category     *models.ItemCategory `json:"category"`
	Unit         *models.Unit         `json:"unit"`
	UnitPrice    *float64             `json:"unitPrice"`
	CurrentStock *float64             `json:"currentStock"`
	MinimumStock *float64             `json:"minimumStock"`
	Supplier     *models.Supplier     `json:"supplier"`
	Location     *string              `json:"location"`
	Status       *models.ItemStatus   `json:"status"`
}

func (in ItemInput) applyTo(item *models.InventoryItem) {
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.Category != nil {
		item.Category = *in.Category
	}
	if in.Unit != nil {
		item.Unit = *in.Unit
	}
	if in.UnitPrice != nil {
		item.UnitPrice = *in.UnitPrice
	}
	if in.MinimumStock != nil {
		item.MinimumStock = *in.MinimumStock
	}
	if in.Supplier != nil {
		item.Supplier = *in.Supplier
	}
	if in.Location != nil {
		item.Location = *in.Location
	}
	if in.Status != nil {
		item.Status = *in.Status
	}
}

// Create adds an item. The item code is generated when not given.
func (s *InventoryService) Create(ctx context.Context, in ItemInput) (*models.InventoryItem, error) {
	item := &models.InventoryItem{
		ItemID: strings.TrimSpace(in.ItemID),
		Unit:   models.UnitPiece,
		Status: models.ItemActive,
	}
	in.applyTo(item)
	if in.CurrentStock != nil {
		item.CurrentStock = *in.CurrentStock
	}
	if err := item.Validate(); err != nil {
		return nil, apperror.BadRequest("%s", err.Error())
	}

	if item.ItemID == "" {
		id, err := nextID(ctx, s.counters, db.SeqInventory, prefixInventory)
		if err != nil {
			return nil, err
		}
		item.ItemID = id
	}
	if item.CurrentStock > 0 {
		now := s.now()
		item.LastRestocked = &now
	}

	if err := s.items.InsertItem(ctx, item); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperror.Conflict("Item %s already exists", item.ItemID)
		}
		return nil, apperror.Internal(err, "failed to create item")
	}
	log.WithFields(log.Fields{"item_id": item.ItemID, "name": item.Name}).Info("Inventory item created")
	return item, nil
}

// List returns items matching filter.
func (s *InventoryService) List(ctx context.Context, filter db.ItemFilter) ([]models.InventoryItem, error) {
	items, err := s.items.FindItems(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list items")
	}
	return items, nil
}

// Get returns one item by id or code.
func (s *InventoryService) Get(ctx context.Context, ref string) (*models.InventoryItem, error) {
	item, err := s.items.FindItem(ctx, ref)
	if err != nil {
		return nil, lookupErr(err, "Inventory item")
	}
	return item, nil
}

// Update changes descriptive fields. Stock is only changed through adjustments.
func (s *InventoryService) Update(ctx context.Context, ref string, in ItemInput) (*models.InventoryItem, error) {
	if in.CurrentStock != nil {
		return nil, apperror.BadRequest("currentStock can only be changed through stock adjustments")
	}
	item, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	in.applyTo(item)
	if err := item.Validate(); err != nil {
		return nil, apperror.BadRequest("%s", err.Error())
	}
	if err := s.items.UpdateItem(ctx, item); err != nil {
		return nil, lookupErr(err, "Inventory item")
	}
	return item, nil
}

// LowStock lists items at or below their minimum, excluding discontinued ones.
func (s *InventoryService) LowStock(ctx context.Context) ([]models.InventoryItem, error) {
	return s.List(ctx, db.ItemFilter{LowStockOnly: true, ExcludeDiscontinued: true})
}

// Movements lists the latest stock movements of an item.
func (s *InventoryService) Movements(ctx context.Context, ref string, limit int64) ([]models.StockMovement, error) {
	item, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	out, err := s.movements.FindMovements(ctx, item.ID, limit)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list stock movements")
	}
	return out, nil
}

// StockResult describes one applied adjustment.
type StockResult struct {
	Item          *models.InventoryItem `json:"item"`
	PreviousStock float64               `json:"previousStock"`
	NewStock      float64               `json:"newStock"`
	Operation     models.StockOperation `json:"operation"`
	Quantity      float64               `json:"quantity"`
}

// AdjustStock applies a single add or subtract.
func (s *InventoryService) AdjustStock(ctx context.Context, actor Actor, ref string, adj models.StockAdjustment) (*StockResult, error) {
	if err := adj.Validate(); err != nil {
		return nil, apperror.BadRequest("%s", err.Error())
	}
	item, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, item, adj, "")
}

// BulkItemResult is a successful entry of a bulk update.
type BulkItemResult struct {
	Index         int     `json:"index"`
	ItemID        string  `json:"itemId"`
	Name          string  `json:"name"`
	PreviousStock float64 `json:"previousStock"`
	NewStock      float64 `json:"newStock"`
}

// BulkItemError is a failed entry of a bulk update.
type BulkItemError struct {
	Index  int    `json:"index"`
	ItemID string `json:"itemId"`
	Error  string `json:"error"`
}

// BulkResult reports a bulk update entry by entry.
type BulkResult struct {
	Success   bool             `json:"success"`
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Results   []BulkItemResult `json:"results"`
	Errors    []BulkItemError  `json:"errors"`
}

// BulkAdjustStock applies each entry independently. A failed entry is reported and
// does not stop the batch.
func (s *InventoryService) BulkAdjustStock(ctx context.Context, actor Actor, entries []models.StockAdjustment) (*BulkResult, error) {
	if len(entries) == 0 {
		return nil, apperror.BadRequest("items array is required")
	}
	if len(entries) > models.MaxBulkStockItems {
		return nil, apperror.BadRequest("Maximum %d items per bulk update", models.MaxBulkStockItems)
	}

	res := &BulkResult{Results: []BulkItemResult{}, Errors: []BulkItemError{}}
	for i, adj := range entries {
		r, err := s.bulkEntry(ctx, actor, adj)
		if err != nil {
			res.Errors = append(res.Errors, BulkItemError{Index: i, ItemID: adj.ItemID, Error: apperror.PublicMessage(err)})
			continue
		}
		res.Results = append(res.Results, BulkItemResult{
			Index:         i,
			ItemID:        r.Item.ItemID,
			Name:          r.Item.Name,
			PreviousStock: r.PreviousStock,
			NewStock:      r.NewStock,
		})
	}
	res.Processed = len(res.Results)
	res.Failed = len(res.Errors)
	res.Success = res.Failed == 0

	log.WithFields(log.Fields{
		"processed": res.Processed,
		"failed":    res.Failed,
		"user_id":   actor.ID.Hex(),
	}).Info("Bulk stock update completed")
	return res, nil
}

func (s *InventoryService) bulkEntry(ctx context.Context, actor Actor, adj models.StockAdjustment) (*StockResult, error) {
	if strings.TrimSpace(adj.ItemID) == "" {
		return nil, apperror.BadRequest("itemId is required")
	}
	return s.AdjustStock(ctx, actor, adj.ItemID, adj)
}

// apply performs the conditional stock update and records the movement.
func (s *InventoryService) apply(ctx context.Context, actor Actor, item *models.InventoryItem, adj models.StockAdjustment, reference string) (*StockResult, error) {
	before, err := s.items.AdjustStock(ctx, item.ID, adj.Delta())
	switch {
	case errors.Is(err, db.ErrInsufficientStock):
		current := item.CurrentStock
		if fresh, ferr := s.items.FindItem(ctx, item.ID.Hex()); ferr == nil {
			current = fresh.CurrentStock
		}
		return nil, apperror.BadRequest("Insufficient stock for %s. Available: %g, requested: %g", item.ItemID, current, adj.Quantity)
	case err != nil:
		return nil, lookupErr(err, "Inventory item")
	}

	now := s.now()
	after := *before
	after.CurrentStock = before.CurrentStock + adj.Delta()
	after.UpdatedAt = now
	if adj.Operation == models.StockAdd {
		after.LastRestocked = &now
	}

	movement := &models.StockMovement{
		Item:        after.ID,
		ItemID:      after.ItemID,
		Operation:   adj.Operation,
		Quantity:    adj.Quantity,
		StockBefore: before.CurrentStock,
		StockAfter:  after.CurrentStock,
		Reason:      adj.Reason,
		Reference:   reference,
		PerformedBy: actor.ID,
		CreatedAt:   now,
	}
	if err := s.movements.InsertMovement(ctx, movement); err != nil {
		log.WithError(err).WithField("item_id", after.ItemID).Error("Failed to record stock movement")
	}

	log.WithFields(log.Fields{
		"item_id":   after.ItemID,
		"operation": adj.Operation,
		"quantity":  adj.Quantity,
		"before":    before.CurrentStock,
		"after":     after.CurrentStock,
	}).Info("Stock adjusted")

	if adj.Operation == models.StockSubtract && after.IsLowStock() && after.Status != models.ItemDiscontinued {
		s.events.LowStock(context.WithoutCancel(ctx), &after)
	}
	return &StockResult{
		Item:          &after,
		PreviousStock: before.CurrentStock,
		NewStock:      after.CurrentStock,
		Operation:     adj.Operation,
		Quantity:      adj.Quantity,
	}, nil
}
