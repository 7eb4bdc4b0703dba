package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/response"
	"github.com/ukydev/garage-service/internal/services"
)

// InventoryManager is stock accounting as the handlers see it.
type InventoryManager interface {
	Create(ctx context.Context, in services.ItemInput) (*models.InventoryItem, error)
	List(ctx context.Context, filter db.ItemFilter) ([]models.InventoryItem, error)
	Get(ctx context.Context, ref string) (*models.InventoryItem, error)
	Update(ctx context.Context, ref string, in services.ItemInput) (*models.InventoryItem, error)
	LowStock(ctx context.Context) ([]models.InventoryItem, error)
	Movements(ctx context.Context, ref string, limit int64) ([]models.StockMovement, error)
	AdjustStock(ctx context.Context, actor services.Actor, ref string, adj models.StockAdjustment) (*services.StockResult, error)
	BulkAdjustStock(ctx context.Context, actor services.Actor, entries []models.StockAdjustment) (*services.BulkResult, error)
}

// InventoryHandler serves /api/inventory.
type InventoryHandler struct {
	inventory InventoryManager
}

// NewInventoryHandler creates an inventory handler.
func NewInventoryHandler(inventory InventoryManager) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// Create handles POST /api/inventory
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	item, err := h.inventory.Create(r.Context(), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "Inventory item created successfully", response.Fields{"item": item})
}

// List handles GET /api/inventory
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.inventory.List(r.Context(), db.ItemFilter{
		Category:     models.ItemCategory(q.Get("category")),
		Status:       models.ItemStatus(q.Get("status")),
		Search:       strings.TrimSpace(q.Get("search")),
		LowStockOnly: q.Get("lowStock") == "true",
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"items": items, "count": len(items)})
}

// Get handles GET /api/inventory/{id}
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.inventory.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"item": item})
}

// Update handles PUT /api/inventory/{id}
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in services.ItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	item, err := h.inventory.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Inventory item updated successfully", response.Fields{"item": item})
}

// LowStock handles GET /api/inventory/low-stock
func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.LowStock(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"items": items, "count": len(items)})
}

// Movements handles GET /api/inventory/{id}/movements
func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt64(r, "limit")
	if err != nil {
		response.Error(w, r, err)
		return
	}
	movements, err := h.inventory.Movements(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"movements": movements, "count": len(movements)})
}

// AdjustStock handles PATCH /api/inventory/{id}/stock
func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var adj models.StockAdjustment
	if err := decodeJSON(w, r, &adj); err != nil {
		response.Error(w, r, err)
		return
	}
	res, err := h.inventory.AdjustStock(r.Context(), actor, r.PathValue("id"), adj)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Stock updated successfully", response.Fields{
		"item":          res.Item,
		"previousStock": res.PreviousStock,
		"newStock":      res.NewStock,
		"operation":     res.Operation,
		"quantity":      res.Quantity,
	})
}

// BulkAdjustStock handles PATCH /api/inventory/bulk-update-stock
func (h *InventoryHandler) BulkAdjustStock(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body struct {
		Items []models.StockAdjustment `json:"items"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, err)
		return
	}
	res, err := h.inventory.BulkAdjustStock(r.Context(), actor, body.Items)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// GoodsRequestManager is goods request handling as the handlers see it.
type GoodsRequestManager interface {
	List(ctx context.Context, jobRef string, status models.GoodsRequestStatus) ([]models.GoodsRequest, error)
	Get(ctx context.Context, ref string) (*models.GoodsRequest, error)
	Fulfill(ctx context.Context, actor services.Actor, ref string) (*models.GoodsRequest, *services.StockResult, error)
	Reject(ctx context.Context, actor services.Actor, ref, reason string) (*models.GoodsRequest, error)
}

// GoodsRequestHandler serves /api/goods-requests.
type GoodsRequestHandler struct {
	requests GoodsRequestManager
}

// NewGoodsRequestHandler creates a goods request handler.
func NewGoodsRequestHandler(requests GoodsRequestManager) *GoodsRequestHandler {
	return &GoodsRequestHandler{requests: requests}
}

// List handles GET /api/goods-requests
func (h *GoodsRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	requests, err := h.requests.List(r.Context(), q.Get("job"), models.GoodsRequestStatus(q.Get("status")))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"goodsRequests": requests, "count": len(requests)})
}

// Get handles GET /api/goods-requests/{id}
func (h *GoodsRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"goodsRequest": req})
}

// Fulfill handles PATCH /api/goods-requests/{id}/fulfill
func (h *GoodsRequestHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	req, stock, err := h.requests.Fulfill(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Goods request fulfilled", response.Fields{"goodsRequest": req, "stock": stock})
}

// Reject handles PATCH /api/goods-requests/{id}/reject
func (h *GoodsRequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, err)
		return
	}
	req, err := h.requests.Reject(r.Context(), actor, r.PathValue("id"), body.Reason)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Goods request rejected", response.Fields{"goodsRequest": req})
}
