package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory stand-in for the Mongo store with the same conditional
// update semantics.
type memStore struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*models.User
	vehicles  map[primitive.ObjectID]*models.Vehicle
	bookings  map[primitive.ObjectID]*models.Booking
	jobs      map[primitive.ObjectID]*models.Job
	items     map[primitive.ObjectID]*models.InventoryItem
	requests  map[primitive.ObjectID]*models.GoodsRequest
	movements []models.StockMovement
	invoices  map[primitive.ObjectID]*models.Invoice
	counters  map[string]int64

	// failBookingUpdates makes UpdateBookingStatus fail, for sync failure paths.
	failBookingUpdates error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[primitive.ObjectID]*models.User{},
		vehicles: map[primitive.ObjectID]*models.Vehicle{},
		bookings: map[primitive.ObjectID]*models.Booking{},
		jobs:     map[primitive.ObjectID]*models.Job{},
		items:    map[primitive.ObjectID]*models.InventoryItem{},
		requests: map[primitive.ObjectID]*models.GoodsRequest{},
		invoices: map[primitive.ObjectID]*models.Invoice{},
		counters: map[string]int64{},
	}
}

func (m *memStore) repos() Repositories {
	return Repositories{
		Users:         memUsers{m},
		Vehicles:      memVehicles{m},
		Bookings:      memBookings{m},
		Jobs:          memJobs{m},
		Inventory:     memItems{m},
		GoodsRequests: memRequests{m},
		Movements:     memMovements{m},
		Invoices:      memInvoices{m},
		Counters:      memCounters{m},
	}
}

func byRef(ref string, id primitive.ObjectID, code string) bool {
	if oid, err := primitive.ObjectIDFromHex(ref); err == nil {
		return oid == id
	}
	return ref == code
}

type memUsers struct{ m *memStore }

func (r memUsers) InsertUser(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return db.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	cp := *u
	r.m.users[u.ID] = &cp
	return nil
}

func (r memUsers) FindUserByID(_ context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, db.ErrInvalidID
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[oid]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) find(match func(*models.User) bool) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memUsers) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r memUsers) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r memUsers) FindUsers(_ context.Context, f db.UserFilter) ([]models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.User{}
	for _, u := range r.m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		if f.Specialization != "" && !u.HasSpecialization(f.Specialization) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r memUsers) FindUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r memUsers) UpdateUser(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[u.ID]; !ok {
		return db.ErrNotFound
	}
	cp := *u
	r.m.users[u.ID] = &cp
	return nil
}

func (r memUsers) SetUserStatus(_ context.Context, id string, status models.UserStatus) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, db.ErrInvalidID
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[oid]
	if !ok {
		return nil, db.ErrNotFound
	}
	u.Status = status
	if status == models.UserStatusInactive {
		now := time.Now()
		u.DeactivatedAt = &now
	} else {
		u.DeactivatedAt = nil
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) UpdateLastLogin(context.Context, string) error { return nil }

func (r memUsers) RecordFailedLogin(context.Context, string, int, *time.Time) error { return nil }

type memVehicles struct{ m *memStore }

func (r memVehicles) InsertVehicle(_ context.Context, v *models.Vehicle) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.vehicles {
		if existing.RegistrationNumber == v.RegistrationNumber {
			return db.ErrDuplicate
		}
	}
	v.ID = primitive.NewObjectID()
	cp := *v
	r.m.vehicles[v.ID] = &cp
	return nil
}

func (r memVehicles) FindVehicles(_ context.Context, f db.VehicleFilter) ([]models.Vehicle, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.Vehicle{}
	for _, v := range r.m.vehicles {
		if f.Owner == nil || v.Owner == *f.Owner {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r memVehicles) FindVehicleByID(_ context.Context, id string) (*models.Vehicle, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, db.ErrInvalidID
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v, ok := r.m.vehicles[oid]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r memVehicles) UpdateVehicle(_ context.Context, v *models.Vehicle) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.vehicles[v.ID]; !ok {
		return db.ErrNotFound
	}
	for id, existing := range r.m.vehicles {
		if id != v.ID && existing.RegistrationNumber == v.RegistrationNumber {
			return db.ErrDuplicate
		}
	}
	cp := *v
	r.m.vehicles[v.ID] = &cp
	return nil
}

type memBookings struct{ m *memStore }

func (r memBookings) InsertBooking(_ context.Context, b *models.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	if b.Notes == nil {
		b.Notes = []models.BookingNote{}
	}
	cp := *b
	cp.Notes = append([]models.BookingNote{}, b.Notes...)
	r.m.bookings[b.ID] = &cp
	return nil
}

func (r memBookings) FindBooking(_ context.Context, ref string) (*models.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, b := range r.m.bookings {
		if byRef(ref, b.ID, b.BookingID) {
			cp := *b
			cp.Notes = append([]models.BookingNote{}, b.Notes...)
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memBookings) FindBookings(_ context.Context, f db.BookingFilter) ([]models.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.Booking{}
	for _, b := range r.m.bookings {
		if f.Customer != nil && b.Customer != *f.Customer {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r memBookings) UpdateBookingStatus(ctx context.Context, id primitive.ObjectID, status models.BookingStatus, note *models.BookingNote) (*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failBookingUpdates != nil {
		return nil, r.m.failBookingUpdates
	}
	b, ok := r.m.bookings[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	b.Status = status
	if note != nil {
		b.Notes = append(b.Notes, *note)
	}
	cp := *b
	cp.Notes = append([]models.BookingNote{}, b.Notes...)
	return &cp, nil
}

func (r memBookings) AssignInspector(_ context.Context, id, inspector primitive.ObjectID, note *models.BookingNote) (*models.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	b.AssignedInspector = &inspector
	if note != nil {
		b.Notes = append(b.Notes, *note)
	}
	cp := *b
	return &cp, nil
}

func (r memBookings) CountBookingsByStatus(context.Context) (map[string]int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := map[string]int64{}
	for _, b := range r.m.bookings {
		out[string(b.Status)]++
	}
	return out, nil
}

type memJobs struct{ m *memStore }

func cloneJob(j *models.Job) *models.Job {
	cp := *j
	cp.AssignedLabourers = append([]models.AssignedLabourer{}, j.AssignedLabourers...)
	cp.WorkLog = append([]models.WorkLogEntry{}, j.WorkLog...)
	cp.StatusHistory = append([]models.StatusChange{}, j.StatusHistory...)
	return &cp
}

func (r memJobs) InsertJob(_ context.Context, j *models.Job) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if j.ID.IsZero() {
		j.ID = primitive.NewObjectID()
	}
	r.m.jobs[j.ID] = cloneJob(j)
	return nil
}

func (r memJobs) FindJob(_ context.Context, ref string) (*models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, j := range r.m.jobs {
		if byRef(ref, j.ID, j.JobID) {
			return cloneJob(j), nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memJobs) FindJobs(_ context.Context, f db.JobFilter) ([]models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.Job{}
	for _, j := range r.m.jobs {
		if f.Booking != nil && j.Booking != *f.Booking {
			continue
		}
		if f.Technician != nil && !j.IsAssigned(*f.Technician) {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, *cloneJob(j))
	}
	return out, nil
}

func (r memJobs) UpdateJobStatus(_ context.Context, id primitive.ObjectID, u db.JobStatusUpdate) (*models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	j, ok := r.m.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if j.Status != u.Change.From {
		return nil, db.ErrConflict
	}
	j.Status = u.Status
	if u.StartedAt != nil {
		j.StartedAt = u.StartedAt
	}
	if u.CompletedAt != nil {
		j.CompletedAt = u.CompletedAt
	}
	j.StatusHistory = append(j.StatusHistory, u.Change)
	return cloneJob(j), nil
}

func (r memJobs) AddWorkLog(_ context.Context, id primitive.ObjectID, e models.WorkLogEntry) (*models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	j, ok := r.m.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	l := j.Labourer(e.Technician)
	if l == nil {
		return nil, db.ErrConflict
	}
	l.HoursWorked += e.HoursWorked
	j.ActualHours += e.HoursWorked
	j.WorkLog = append(j.WorkLog, e)
	return cloneJob(j), nil
}

func (r memJobs) SetPreWorkInspection(_ context.Context, id primitive.ObjectID, rep models.PreWorkInspection) (*models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	j, ok := r.m.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	j.InspectionReport.PreWork = &rep
	return cloneJob(j), nil
}

func (r memJobs) SetPostWorkInspection(_ context.Context, id primitive.ObjectID, rep models.PostWorkInspection) (*models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	j, ok := r.m.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if j.Status != models.JobCompleted {
		return nil, db.ErrConflict
	}
	j.InspectionReport.PostWork = &rep
	if rep.Approved {
		at := rep.InspectedAt
		by := rep.InspectedBy
		j.ApprovedAt = &at
		j.InspectedBy = &by
	}
	return cloneJob(j), nil
}

func (r memJobs) CountJobsByStatus(context.Context) (map[string]int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := map[string]int64{}
	for _, j := range r.m.jobs {
		out[string(j.Status)]++
	}
	return out, nil
}

type memItems struct{ m *memStore }

func (r memItems) InsertItem(_ context.Context, it *models.InventoryItem) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.items {
		if existing.ItemID == it.ItemID {
			return db.ErrDuplicate
		}
	}
	if it.ID.IsZero() {
		it.ID = primitive.NewObjectID()
	}
	cp := *it
	r.m.items[it.ID] = &cp
	return nil
}

func (r memItems) FindItem(_ context.Context, ref string) (*models.InventoryItem, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, it := range r.m.items {
		if byRef(ref, it.ID, it.ItemID) {
			cp := *it
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memItems) FindItems(_ context.Context, f db.ItemFilter) ([]models.InventoryItem, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.InventoryItem{}
	for _, it := range r.m.items {
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if f.Status != "" && it.Status != f.Status {
			continue
		}
		if f.ExcludeDiscontinued && it.Status == models.ItemDiscontinued {
			continue
		}
		if f.LowStockOnly && !it.IsLowStock() {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

func (r memItems) UpdateItem(_ context.Context, it *models.InventoryItem) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	existing, ok := r.m.items[it.ID]
	if !ok {
		return db.ErrNotFound
	}
	stock := existing.CurrentStock
	cp := *it
	cp.CurrentStock = stock
	r.m.items[it.ID] = &cp
	return nil
}

func (r memItems) AdjustStock(_ context.Context, id primitive.ObjectID, delta float64) (*models.InventoryItem, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	it, ok := r.m.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if it.CurrentStock+delta < 0 {
		return nil, db.ErrInsufficientStock
	}
	before := *it
	it.CurrentStock += delta
	return &before, nil
}

func (r memItems) CountLowStock(context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, it := range r.m.items {
		if it.IsLowStock() && it.Status != models.ItemDiscontinued {
			n++
		}
	}
	return n, nil
}

type memRequests struct{ m *memStore }

func (r memRequests) InsertGoodsRequest(ctx context.Context, req *models.GoodsRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.requests {
		if existing.RequestID == req.RequestID {
			return db.ErrDuplicate
		}
	}
	req.ID = primitive.NewObjectID()
	cp := *req
	r.m.requests[req.ID] = &cp
	return nil
}

func (r memRequests) FindGoodsRequest(_ context.Context, ref string) (*models.GoodsRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, req := range r.m.requests {
		if byRef(ref, req.ID, req.RequestID) {
			cp := *req
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memRequests) FindGoodsRequests(_ context.Context, f db.GoodsRequestFilter) ([]models.GoodsRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.GoodsRequest{}
	for _, req := range r.m.requests {
		if f.Job != nil && req.Job != *f.Job {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out, nil
}

func (r memRequests) UpdateGoodsRequestStatus(_ context.Context, id primitive.ObjectID, from models.GoodsRequestStatus, u db.GoodsRequestUpdate) (*models.GoodsRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	req, ok := r.m.requests[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if req.Status != from {
		return nil, db.ErrConflict
	}
	req.Status = u.Status
	by, at := u.HandledBy, u.HandledAt
	req.HandledBy = &by
	req.HandledAt = &at
	req.RejectedReason = u.RejectedReason
	cp := *req
	return &cp, nil
}

type memMovements struct{ m *memStore }

func (r memMovements) InsertMovement(_ context.Context, mv *models.StockMovement) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	mv.ID = primitive.NewObjectID()
	r.m.movements = append(r.m.movements, *mv)
	return nil
}

func (r memMovements) FindMovements(_ context.Context, item primitive.ObjectID, limit int64) ([]models.StockMovement, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.StockMovement{}
	for i := len(r.m.movements) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if r.m.movements[i].Item == item {
			out = append(out, r.m.movements[i])
		}
	}
	return out, nil
}

type memInvoices struct{ m *memStore }

func (r memInvoices) InsertInvoice(_ context.Context, inv *models.Invoice) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.invoices {
		if existing.Job == inv.Job || existing.InvoiceNumber == inv.InvoiceNumber {
			return db.ErrDuplicate
		}
	}
	inv.ID = primitive.NewObjectID()
	cp := *inv
	r.m.invoices[inv.ID] = &cp
	return nil
}

func (r memInvoices) FindInvoice(_ context.Context, ref string) (*models.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, inv := range r.m.invoices {
		if byRef(ref, inv.ID, inv.InvoiceNumber) {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memInvoices) FindInvoices(_ context.Context, f db.InvoiceFilter) ([]models.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []models.Invoice{}
	for _, inv := range r.m.invoices {
		if f.Status == "" || inv.Status == f.Status {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r memInvoices) FindInvoiceByJob(_ context.Context, job primitive.ObjectID) (*models.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, inv := range r.m.invoices {
		if inv.Job == job {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r memInvoices) MarkInvoicePaid(_ context.Context, id primitive.ObjectID, method models.PaymentMethod, paidAt time.Time) (*models.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	inv, ok := r.m.invoices[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if inv.Status != models.InvoicePending {
		return nil, db.ErrConflict
	}
	inv.Status = models.InvoicePaid
	inv.PaymentMethod = method
	inv.PaidAt = &paidAt
	cp := *inv
	return &cp, nil
}

func (r memInvoices) SumPaidRevenue(context.Context) (float64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	total := 0.0
	for _, inv := range r.m.invoices {
		if inv.Status == models.InvoicePaid {
			total += inv.Total
		}
	}
	return total, nil
}

type memCounters struct{ m *memStore }

func (r memCounters) NextSequence(_ context.Context, name string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.counters[name]++
	return r.m.counters[name], nil
}

func (r memCounters) SeedSequence(_ context.Context, name string, value int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if value > r.m.counters[name] {
		r.m.counters[name] = value
	}
	return nil
}

// deferred is one recorded outbox entry.
type deferred struct {
	eventType   string
	aggregateID string
	payload     interface{}
	cause       error
	ctxErr      error
}

type fakeDeferrer struct {
	mu     sync.Mutex
	events []deferred
	err    error
}

func (f *fakeDeferrer) Defer(ctx context.Context, eventType, aggregateID string, payload interface{}, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, deferred{eventType, aggregateID, payload, cause, ctx.Err()})
	return f.err
}

type recordingEvents struct {
	mu       sync.Mutex
	jobs     []models.JobStatus
	bookings []models.BookingStatus
	lowStock []string
}

func (r *recordingEvents) JobStatusChanged(_ context.Context, job *models.Job, _ models.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job.Status)
}

func (r *recordingEvents) BookingStatusChanged(_ context.Context, b *models.Booking, _ models.BookingStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, b.Status)
}

func (r *recordingEvents) LowStock(_ context.Context, item *models.InventoryItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lowStock = append(r.lowStock, item.ItemID)
}

var errBoom = errors.New("boom")
