package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
)

const (
	lineLabour = "labour"
	lineParts  = "parts"
)

// InvoiceService bills completed jobs. Amounts are computed in decimal and rounded to cents.
type InvoiceService struct {
	invoices   db.InvoiceCollection
	jobs       db.JobCollection
	bookings   db.BookingCollection
	requests   db.GoodsRequestCollection
	items      db.InventoryCollection
	counters   db.CounterCollection
	labourRate decimal.Decimal
	taxRate    decimal.Decimal
	now        func() time.Time
}

// NewInvoiceService creates an invoice service with an hourly labour rate and a tax rate in 0..1.
func NewInvoiceService(repos Repositories, labourRate, taxRate float64) *InvoiceService {
	return &InvoiceService{
		invoices:   repos.Invoices,
		jobs:       repos.Jobs,
		bookings:   repos.Bookings,
		requests:   repos.GoodsRequests,
		items:      repos.Inventory,
		counters:   repos.Counters,
		labourRate: decimal.NewFromFloat(labourRate),
		taxRate:    decimal.NewFromFloat(taxRate),
		now:        time.Now,
	}
}

// Create bills a completed job: logged hours at the labour rate plus fulfilled goods requests
// at the item's unit price. A job is billed at most once.
func (s *InvoiceService) Create(ctx context.Context, actor Actor, jobRef, notes string) (*models.Invoice, error) {
	job, err := s.jobs.FindJob(ctx, jobRef)
	if err != nil {
		return nil, lookupErr(err, "Job")
	}
	if job.Status != models.JobCompleted {
		return nil, apperror.BadRequest("Only completed jobs can be invoiced (current: %s)", job.Status)
	}
	existing, err := s.invoices.FindInvoiceByJob(ctx, job.ID)
	switch {
	case err == nil:
		return nil, apperror.Conflict("Job %s is already invoiced (%s)", job.JobID, existing.InvoiceNumber)
	case !errors.Is(err, db.ErrNotFound):
		return nil, apperror.Internal(err, "failed to check existing invoice")
	}

	lines, err := s.lines(ctx, job)
	if err != nil {
		return nil, err
	}

	number, err := nextID(ctx, s.counters, db.SeqInvoice, prefixInvoice)
	if err != nil {
		return nil, err
	}
	inv := &models.Invoice{
		InvoiceNumber: number,
		Job:           job.ID,
		JobID:         job.JobID,
		Booking:       job.Booking,
		Lines:         lines,
		Status:        models.InvoicePending,
		Notes:         notes,
		CreatedBy:     actor.ID,
	}
	if booking, err := s.bookings.FindBooking(ctx, job.Booking.Hex()); err == nil {
		inv.Customer = booking.Customer
	} else {
		log.WithError(err).WithField("job_id", job.JobID).Warn("Failed to resolve booking for invoice")
	}
	s.total(inv)

	if err := s.invoices.InsertInvoice(ctx, inv); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperror.Conflict("Job %s is already invoiced", job.JobID)
		}
		return nil, apperror.Internal(err, "failed to create invoice")
	}
	log.WithFields(log.Fields{
		"invoice": inv.InvoiceNumber,
		"job_id":  job.JobID,
		"total":   inv.Total,
	}).Info("Invoice created")
	return inv, nil
}

func (s *InvoiceService) lines(ctx context.Context, job *models.Job) ([]models.InvoiceLine, error) {
	lines := []models.InvoiceLine{}
	if job.ActualHours > 0 {
		hours := decimal.NewFromFloat(job.ActualHours)
		lines = append(lines, models.InvoiceLine{
			Kind:        lineLabour,
			Description: fmt.Sprintf("Labour for %s", job.Title),
			Quantity:    job.ActualHours,
			UnitPrice:   s.labourRate.InexactFloat64(),
			Amount:      hours.Mul(s.labourRate).Round(2).InexactFloat64(),
			Reference:   job.JobID,
		})
	}

	requests, err := s.requests.FindGoodsRequests(ctx, db.GoodsRequestFilter{Job: &job.ID, Status: models.GoodsRequestFulfilled})
	if err != nil {
		return nil, apperror.Internal(err, "failed to load goods requests")
	}
	for _, req := range requests {
		item, err := s.items.FindItem(ctx, req.ItemID)
		if err != nil {
			return nil, apperror.Internal(err, "failed to load inventory item "+req.ItemID)
		}
		qty := decimal.NewFromFloat(req.Quantity)
		price := decimal.NewFromFloat(item.UnitPrice)
		lines = append(lines, models.InvoiceLine{
			Kind:        lineParts,
			Description: item.Name,
			Quantity:    req.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      qty.Mul(price).Round(2).InexactFloat64(),
			Reference:   req.RequestID,
		})
	}
	return lines, nil
}

// total fills subtotal, tax and total from the invoice lines.
func (s *InvoiceService) total(inv *models.Invoice) {
	subtotal := decimal.Zero
	for _, l := range inv.Lines {
		subtotal = subtotal.Add(decimal.NewFromFloat(l.Amount))
	}
	tax := subtotal.Mul(s.taxRate).Round(2)
	inv.Subtotal = subtotal.Round(2).InexactFloat64()
	inv.TaxRate = s.taxRate.InexactFloat64()
	inv.Tax = tax.InexactFloat64()
	inv.Total = subtotal.Add(tax).Round(2).InexactFloat64()
}

// Get returns one invoice by id or invoice number.
func (s *InvoiceService) Get(ctx context.Context, ref string) (*models.Invoice, error) {
	inv, err := s.invoices.FindInvoice(ctx, ref)
	if err != nil {
		return nil, lookupErr(err, "Invoice")
	}
	return inv, nil
}

// List returns invoices, optionally by status.
func (s *InvoiceService) List(ctx context.Context, status models.InvoiceStatus) ([]models.Invoice, error) {
	switch status {
	case "", models.InvoicePending, models.InvoicePaid, models.InvoiceCancelled:
	default:
		return nil, apperror.BadRequest("Invalid status: %s", status)
	}
	invoices, err := s.invoices.FindInvoices(ctx, db.InvoiceFilter{Status: status})
	if err != nil {
		return nil, apperror.Internal(err, "failed to list invoices")
	}
	return invoices, nil
}

// MarkPaid settles a pending invoice.
func (s *InvoiceService) MarkPaid(ctx context.Context, actor Actor, ref string, method models.PaymentMethod) (*models.Invoice, error) {
	if !models.IsValidPaymentMethod(method) {
		return nil, apperror.BadRequest("Invalid payment method: %s", method)
	}
	inv, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	paid, err := s.invoices.MarkInvoicePaid(ctx, inv.ID, method, s.now())
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, apperror.Conflict("Invoice %s is not pending", inv.InvoiceNumber)
		}
		return nil, lookupErr(err, "Invoice")
	}
	log.WithFields(log.Fields{
		"invoice": paid.InvoiceNumber,
		"method":  method,
		"user_id": actor.ID.Hex(),
	}).Info("Invoice paid")
	return paid, nil
}
