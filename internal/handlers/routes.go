package handlers

import (
	"net/http"

	"github.com/ukydev/garage-service/internal/middleware"
	"github.com/ukydev/garage-service/internal/policy"
)

// Handlers groups every resource handler served by the router.
type Handlers struct {
	Auth          *AuthHandler
	Jobs          *JobHandler
	Bookings      *BookingHandler
	Inventory     *InventoryHandler
	GoodsRequests *GoodsRequestHandler
	Users         *UserHandler
	Vehicles      *VehicleHandler
	Invoices      *InvoiceHandler
	Reports       *ReportHandler
	Outbox        *OutboxHandler
	Health        *HealthHandler
}

// NewRouter registers every route. Each protected route is guarded by its policy action.
func NewRouter(h Handlers, authMW *middleware.AuthMiddleware, limiter *middleware.RateLimitMiddleware) http.Handler {
	mux := http.NewServeMux()
	g := authMW.Guard

	mux.HandleFunc("GET /health", h.Health.Health)

	// Authentication
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("GET /api/auth/profile", h.Auth.GetProfile)
	mux.HandleFunc("PUT /api/auth/profile", h.Auth.UpdateProfile)
	mux.HandleFunc("POST /api/auth/change-password", h.Auth.ChangePassword)

	// Jobs
	mux.Handle("POST /api/jobs/booking/{bookingId}", g(policy.JobCreate, h.Jobs.Create))
	mux.Handle("GET /api/jobs", g(policy.JobView, h.Jobs.List))
	mux.Handle("GET /api/jobs/{id}", g(policy.JobView, h.Jobs.Get))
	mux.Handle("PATCH /api/jobs/{id}/status", g(policy.JobUpdateStatus, h.Jobs.UpdateStatus))
	mux.Handle("POST /api/jobs/{id}/worklog", g(policy.JobWorkLog, h.Jobs.AddWorkLog))
	mux.Handle("POST /api/jobs/{id}/inspection", g(policy.JobInspect, h.Jobs.RecordInspection))

	// Bookings
	mux.Handle("POST /api/bookings", g(policy.BookingCreate, h.Bookings.Create))
	mux.Handle("GET /api/bookings", g(policy.BookingView, h.Bookings.List))
	mux.Handle("GET /api/bookings/{id}", g(policy.BookingView, h.Bookings.Get))
	mux.Handle("PATCH /api/bookings/{id}/status", g(policy.BookingUpdateState, h.Bookings.UpdateStatus))
	mux.Handle("PATCH /api/bookings/{id}/inspector", g(policy.BookingAssign, h.Bookings.AssignInspector))
	mux.Handle("PATCH /api/bookings/{id}/cancel", g(policy.BookingCancel, h.Bookings.Cancel))

	// Inventory
	mux.Handle("POST /api/inventory", g(policy.InventoryManage, h.Inventory.Create))
	mux.Handle("GET /api/inventory", g(policy.InventoryView, h.Inventory.List))
	mux.Handle("GET /api/inventory/low-stock", g(policy.InventoryView, h.Inventory.LowStock))
	mux.Handle("PATCH /api/inventory/bulk-update-stock", g(policy.InventoryAdjust, h.Inventory.BulkAdjustStock))
	mux.Handle("GET /api/inventory/{id}", g(policy.InventoryView, h.Inventory.Get))
	mux.Handle("PUT /api/inventory/{id}", g(policy.InventoryManage, h.Inventory.Update))
	mux.Handle("PATCH /api/inventory/{id}/stock", g(policy.InventoryAdjust, h.Inventory.AdjustStock))
	mux.Handle("GET /api/inventory/{id}/movements", g(policy.InventoryView, h.Inventory.Movements))

	// Goods requests
	mux.Handle("GET /api/goods-requests", g(policy.GoodsRequestView, h.GoodsRequests.List))
	mux.Handle("GET /api/goods-requests/{id}", g(policy.GoodsRequestView, h.GoodsRequests.Get))
	mux.Handle("PATCH /api/goods-requests/{id}/fulfill", g(policy.GoodsRequestHandle, h.GoodsRequests.Fulfill))
	mux.Handle("PATCH /api/goods-requests/{id}/reject", g(policy.GoodsRequestHandle, h.GoodsRequests.Reject))

	// Users
	mux.Handle("POST /api/users", g(policy.UserManage, h.Users.Create))
	mux.Handle("GET /api/users", g(policy.UserView, h.Users.List))
	mux.Handle("GET /api/users/technicians", g(policy.UserView, h.Users.Technicians))
	mux.Handle("GET /api/users/{id}", g(policy.UserView, h.Users.Get))
	mux.Handle("PATCH /api/users/{id}/status", g(policy.UserManage, h.Users.UpdateStatus))
	mux.Handle("DELETE /api/users/{id}", g(policy.UserManage, h.Users.Delete))

	// Vehicles
	mux.Handle("POST /api/vehicles", g(policy.VehicleManage, h.Vehicles.Create))
	mux.Handle("GET /api/vehicles", g(policy.VehicleView, h.Vehicles.List))
	mux.Handle("GET /api/vehicles/{id}", g(policy.VehicleView, h.Vehicles.Get))
	mux.Handle("PUT /api/vehicles/{id}", g(policy.VehicleManage, h.Vehicles.Update))

	// Invoices
	mux.Handle("POST /api/invoices/job/{jobId}", g(policy.InvoiceCreate, h.Invoices.Create))
	mux.Handle("GET /api/invoices", g(policy.InvoiceView, h.Invoices.List))
	mux.Handle("GET /api/invoices/{id}", g(policy.InvoiceView, h.Invoices.Get))
	mux.Handle("PATCH /api/invoices/{id}/pay", g(policy.InvoicePay, h.Invoices.MarkPaid))

	// Operations
	mux.Handle("GET /api/reports/summary", g(policy.ReportView, h.Reports.Summary))
	mux.Handle("GET /api/outbox", g(policy.OutboxManage, h.Outbox.List))
	mux.Handle("POST /api/outbox/{id}/retry", g(policy.OutboxManage, h.Outbox.Retry))

	return middleware.Chain(mux,
		middleware.Recoverer,
		middleware.RequestLogger,
		limiter.RateLimit,
		authMW.Authenticate,
	)
}
