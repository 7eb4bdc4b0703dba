package services

import (
	"context"
	"time"

	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/db"
)

// Summary is the management overview.
type Summary struct {
	BookingsByStatus map[string]int64 `json:"bookingsByStatus"`
	JobsByStatus     map[string]int64 `json:"jobsByStatus"`
	LowStockItems    int64            `json:"lowStockItems"`
	PaidRevenue      float64          `json:"paidRevenue"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}

// ReportService aggregates counts across collections.
type ReportService struct {
	bookings  db.BookingCollection
	jobs      db.JobCollection
	inventory db.InventoryCollection
	invoices  db.InvoiceCollection
	now       func() time.Time
}

// NewReportService creates a report service.
func NewReportService(repos Repositories) *ReportService {
	return &ReportService{
		bookings:  repos.Bookings,
		jobs:      repos.Jobs,
		inventory: repos.Inventory,
		invoices:  repos.Invoices,
		now:       time.Now,
	}
}

// Summary computes the overview.
func (s *ReportService) Summary(ctx context.Context) (*Summary, error) {
	bookings, err := s.bookings.CountBookingsByStatus(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "failed to count bookings")
	}
	jobs, err := s.jobs.CountJobsByStatus(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "failed to count jobs")
	}
	lowStock, err := s.inventory.CountLowStock(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "failed to count low stock items")
	}
	revenue, err := s.invoices.SumPaidRevenue(ctx)
	if err != nil {
		return nil, apperror.Internal(err, "failed to sum revenue")
	}
	return &Summary{
		BookingsByStatus: bookings,
		JobsByStatus:     jobs,
		LowStockItems:    lowStock,
		PaidRevenue:      revenue,
		GeneratedAt:      s.now(),
	}, nil
}
