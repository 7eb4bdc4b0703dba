package handlers

import (
	"context"
	"net/http"

	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/response"
	"github.com/ukydev/garage-service/internal/services"
)

// InvoiceManager is billing as the handlers see it.
type InvoiceManager interface {
	Create(ctx context.Context, actor services.Actor, jobRef, notes string) (*models.Invoice, error)
	Get(ctx context.Context, ref string) (*models.Invoice, error)
	List(ctx context.Context, status models.InvoiceStatus) ([]models.Invoice, error)
	MarkPaid(ctx context.Context, actor services.Actor, ref string, method models.PaymentMethod) (*models.Invoice, error)
}

// InvoiceHandler serves /api/invoices.
type InvoiceHandler struct {
	invoices InvoiceManager
}

// NewInvoiceHandler creates an invoice handler.
func NewInvoiceHandler(invoices InvoiceManager) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Create handles POST /api/invoices/job/{jobId}
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			response.Error(w, r, err)
			return
		}
	}
	inv, err := h.invoices.Create(r.Context(), actor, r.PathValue("jobId"), body.Notes)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "Invoice created successfully", response.Fields{"invoice": inv})
}

// List handles GET /api/invoices
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.invoices.List(r.Context(), models.InvoiceStatus(r.URL.Query().Get("status")))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"invoices": invoices, "count": len(invoices)})
}

// Get handles GET /api/invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", response.Fields{"invoice": inv})
}

// MarkPaid handles PATCH /api/invoices/{id}/pay
func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body struct {
		PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, r, err)
		return
	}
	inv, err := h.invoices.MarkPaid(r.Context(), actor, r.PathValue("id"), body.PaymentMethod)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Invoice marked as paid", response.Fields{"invoice": inv})
}
