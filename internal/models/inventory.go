package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ItemCategory of an inventory item.
type ItemCategory string

const (
	CategoryParts       ItemCategory = "parts"
	CategoryTools       ItemCategory = "tools"
	CategoryFluids      ItemCategory = "fluids"
	CategoryConsumables ItemCategory = "consumables"
)

// Unit an item is stocked in.
type Unit string

const (
	UnitPiece Unit = "piece"
	UnitLiter Unit = "liter"
	UnitKg    Unit = "kg"
	UnitMeter Unit = "meter"
	UnitSet   Unit = "set"
)

// ItemStatus of an inventory item.
type ItemStatus string

const (
	ItemActive       ItemStatus = "active"
	ItemInactive     ItemStatus = "inactive"
	ItemDiscontinued ItemStatus = "discontinued"
)

// StockOperation is the direction of a stock adjustment.
type StockOperation string

const (
	StockAdd      StockOperation = "add"
	StockSubtract StockOperation = "subtract"
)

// MaxBulkStockItems caps the size of a bulk stock update.
const MaxBulkStockItems = 50

// Supplier of an inventory item.
type Supplier struct {
	Name    string `bson:"name,omitempty" json:"name,omitempty"`
	Contact string `bson:"contact,omitempty" json:"contact,omitempty"`
	Email   string `bson:"email,omitempty" json:"email,omitempty"`
}

// InventoryItem is one stocked item.
type InventoryItem struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ItemID        string             `bson:"item_id" json:"itemId"`
	Name          string             `bson:"name" json:"name"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Category      ItemCategory       `bson:"category" json:"category"`
	Unit          Unit               `bson:"unit" json:"unit"`
	UnitPrice     float64            `bson:"unit_price" json:"unitPrice"`
	CurrentStock  float64            `bson:"current_stock" json:"currentStock"`
	MinimumStock  float64            `bson:"minimum_stock" json:"minimumStock"`
	Supplier      Supplier           `bson:"supplier" json:"supplier"`
	Location      string             `bson:"location,omitempty" json:"location,omitempty"`
	Status        ItemStatus         `bson:"status" json:"status"`
	LastRestocked *time.Time         `bson:"last_restocked,omitempty" json:"lastRestocked,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

// IsLowStock reports whether stock is at or below the minimum, regardless of status.
func (i *InventoryItem) IsLowStock() bool {
	return i.CurrentStock <= i.MinimumStock
}

// Validate checks the descriptive fields of an item.
func (i *InventoryItem) Validate() error {
	if i.Name == "" {
		return errors.New("name is required")
	}
	if !IsValidItemCategory(i.Category) {
		return errors.New("invalid category")
	}
	if !IsValidUnit(i.Unit) {
		return errors.New("invalid unit")
	}
	if !IsValidItemStatus(i.Status) {
		return errors.New("invalid status")
	}
	if i.UnitPrice < 0 {
		return errors.New("unit price cannot be negative")
	}
	if i.CurrentStock < 0 || i.MinimumStock < 0 {
		return errors.New("stock levels cannot be negative")
	}
	return nil
}

// IsValidItemCategory checks if a category is valid
func IsValidItemCategory(c ItemCategory) bool {
	switch c {
	case CategoryParts, CategoryTools, CategoryFluids, CategoryConsumables:
		return true
	default:
		return false
	}
}

// IsValidUnit checks if a unit is valid
func IsValidUnit(u Unit) bool {
	switch u {
	case UnitPiece, UnitLiter, UnitKg, UnitMeter, UnitSet:
		return true
	default:
		return false
	}
}

// IsValidItemStatus checks if an item status is valid
func IsValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemActive, ItemInactive, ItemDiscontinued:
		return true
	default:
		return false
	}
}

// StockAdjustment is a single requested change to an item's stock.
type StockAdjustment struct {
	ItemID    string         `json:"itemId,omitempty"`
	Quantity  float64        `json:"quantity"`
	Operation StockOperation `json:"operation"`
	Reason    string         `json:"reason,omitempty"`
}

// Validate checks operation and quantity.
func (a StockAdjustment) Validate() error {
	if a.Operation != StockAdd && a.Operation != StockSubtract {
		return errors.New("operation must be 'add' or 'subtract'")
	}
	if a.Quantity <= 0 {
		return errors.New("quantity must be a positive number")
	}
	return nil
}

// Delta is the signed stock change.
func (a StockAdjustment) Delta() float64 {
	if a.Operation == StockSubtract {
		return -a.Quantity
	}
	return a.Quantity
}

// StockMovement is an append-only record of an applied adjustment.
type StockMovement struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Item        primitive.ObjectID `bson:"item" json:"item"`
	ItemID      string             `bson:"item_id" json:"itemId"`
	Operation   StockOperation     `bson:"operation" json:"operation"`
	Quantity    float64            `bson:"quantity" json:"quantity"`
	StockBefore float64            `bson:"stock_before" json:"stockBefore"`
	StockAfter  float64            `bson:"stock_after" json:"stockAfter"`
	Reason      string             `bson:"reason,omitempty" json:"reason,omitempty"`
	Reference   string             `bson:"reference,omitempty" json:"reference,omitempty"`
	PerformedBy primitive.ObjectID `bson:"performed_by" json:"performedBy"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}
