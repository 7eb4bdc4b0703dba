package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/middleware"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockUserCollection is a mock implementation of db.UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUsers(ctx context.Context, filter db.UserFilter) ([]models.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserCollection) FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) SetUserStatus(ctx context.Context, id string, status models.UserStatus) (*models.User, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserCollection) RecordFailedLogin(ctx context.Context, id string, attempts int, lockUntil *time.Time) error {
	args := m.Called(ctx, id, attempts, lockUntil)
	return args.Error(0)
}

// MockJobManager is a mock implementation of JobManager
type MockJobManager struct {
	mock.Mock
}

func (m *MockJobManager) Create(ctx context.Context, actor services.Actor, bookingRef string, in services.CreateJobInput) (*services.CreateJobResult, error) {
	args := m.Called(ctx, actor, bookingRef, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CreateJobResult), args.Error(1)
}

func (m *MockJobManager) UpdateStatus(ctx context.Context, actor services.Actor, ref string, in services.StatusInput) (*services.JobView, error) {
	args := m.Called(ctx, actor, ref, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JobView), args.Error(1)
}

func (m *MockJobManager) AddWorkLog(ctx context.Context, actor services.Actor, ref string, in services.WorkLogInput) (*services.JobView, error) {
	args := m.Called(ctx, actor, ref, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JobView), args.Error(1)
}

func (m *MockJobManager) RecordInspection(ctx context.Context, actor services.Actor, ref string, in services.InspectionInput) (*services.JobView, error) {
	args := m.Called(ctx, actor, ref, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JobView), args.Error(1)
}

func (m *MockJobManager) List(ctx context.Context, actor services.Actor, f services.JobListFilter) ([]models.Job, error) {
	args := m.Called(ctx, actor, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Job), args.Error(1)
}

func (m *MockJobManager) Get(ctx context.Context, actor services.Actor, ref string) (*services.JobView, error) {
	args := m.Called(ctx, actor, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.JobView), args.Error(1)
}

// MockInventoryManager is a mock implementation of InventoryManager
type MockInventoryManager struct {
	mock.Mock
}

func (m *MockInventoryManager) Create(ctx context.Context, in services.ItemInput) (*models.InventoryItem, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryItem), args.Error(1)
}

func (m *MockInventoryManager) List(ctx context.Context, filter db.ItemFilter) ([]models.InventoryItem, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InventoryItem), args.Error(1)
}

func (m *MockInventoryManager) Get(ctx context.Context, ref string) (*models.InventoryItem, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryItem), args.Error(1)
}

func (m *MockInventoryManager) Update(ctx context.Context, ref string, in services.ItemInput) (*models.InventoryItem, error) {
	args := m.Called(ctx, ref, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryItem), args.Error(1)
}

func (m *MockInventoryManager) LowStock(ctx context.Context) ([]models.InventoryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InventoryItem), args.Error(1)
}

func (m *MockInventoryManager) Movements(ctx context.Context, ref string, limit int64) ([]models.StockMovement, error) {
	args := m.Called(ctx, ref, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StockMovement), args.Error(1)
}

func (m *MockInventoryManager) AdjustStock(ctx context.Context, actor services.Actor, ref string, adj models.StockAdjustment) (*services.StockResult, error) {
	args := m.Called(ctx, actor, ref, adj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.StockResult), args.Error(1)
}

func (m *MockInventoryManager) BulkAdjustStock(ctx context.Context, actor services.Actor, entries []models.StockAdjustment) (*services.BulkResult, error) {
	args := m.Called(ctx, actor, entries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BulkResult), args.Error(1)
}

// MockOutboxManager is a mock implementation of OutboxManager
type MockOutboxManager struct {
	mock.Mock
}

func (m *MockOutboxManager) List(ctx context.Context, status models.OutboxStatus, limit int64) ([]models.OutboxEvent, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OutboxEvent), args.Error(1)
}

func (m *MockOutboxManager) Retry(ctx context.Context, id string) (*models.OutboxEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OutboxEvent), args.Error(1)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// newRequest builds a request with a JSON body and, when claims is set, an authenticated context.
func newRequest(t *testing.T, method, target string, body interface{}, claims *models.Claims) *http.Request {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if claims != nil {
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	}
	return req
}

func claimsFor(role models.Role) (*models.Claims, services.Actor) {
	id := primitive.NewObjectID()
	return &models.Claims{UserID: id.Hex(), Username: string(role), Role: role}, services.Actor{ID: id, Role: role}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
