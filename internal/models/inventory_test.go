package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInventoryItem_IsLowStock(t *testing.T) {
	tests := []struct {
		name     string
		item     InventoryItem
		expected bool
	}{
		{"below minimum", InventoryItem{CurrentStock: 2, MinimumStock: 5}, true},
		{"at minimum", InventoryItem{CurrentStock: 5, MinimumStock: 5}, true},
		{"above minimum", InventoryItem{CurrentStock: 6, MinimumStock: 5}, false},
		{"discontinued still counts", InventoryItem{CurrentStock: 0, MinimumStock: 1, Status: ItemDiscontinued}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.item.IsLowStock())
		})
	}
}

func TestStockAdjustment_Validate(t *testing.T) {
	assert.NoError(t, StockAdjustment{Quantity: 1, Operation: StockAdd}.Validate())
	assert.NoError(t, StockAdjustment{Quantity: 0.5, Operation: StockSubtract}.Validate())
	assert.Error(t, StockAdjustment{Quantity: 0, Operation: StockAdd}.Validate())
	assert.Error(t, StockAdjustment{Quantity: -3, Operation: StockSubtract}.Validate())
	assert.Error(t, StockAdjustment{Quantity: 3, Operation: "set"}.Validate())

	assert.Equal(t, -4.0, StockAdjustment{Quantity: 4, Operation: StockSubtract}.Delta())
	assert.Equal(t, 4.0, StockAdjustment{Quantity: 4, Operation: StockAdd}.Delta())
}

func TestInventoryItem_Validate(t *testing.T) {
	item := InventoryItem{Name: "Oil filter", Category: CategoryParts, Unit: UnitPiece, Status: ItemActive, UnitPrice: 12}
	assert.NoError(t, item.Validate())

	bad := item
	bad.Unit = "gallon"
	assert.Error(t, bad.Validate())

	bad = item
	bad.CurrentStock = -1
	assert.Error(t, bad.Validate())
}
