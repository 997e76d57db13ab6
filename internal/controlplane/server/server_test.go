package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsbot/gosms/internal/domain"
	"github.com/smsbot/gosms/internal/services"
	"github.com/smsbot/gosms/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	monitor := services.NewMonitorService(nil, st, st, nil, nil, st, services.MonitorOptions{})
	return New(st, monitor), st
}

func seedData(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.SaveUser(ctx, &domain.User{UserID: 1001, Username: "tester", IsActive: true}))

	now := time.Now()
	require.NoError(t, st.InsertOrder(ctx, &domain.Order{
		OrderID:     "order-live",
		UserID:      1001,
		PhoneNumber: "+81012345678",
		CountryCode: "157",
		ServiceID:   "1552",
		ServiceName: "Pokemon Center",
		Status:      domain.OrderStatusActive,
		Price:       decimal.RequireFromString("0.42"),
		CreatedAt:   now,
		ExpiresAt:   now.Add(10 * time.Minute),
	}))
	require.NoError(t, st.InsertOrder(ctx, &domain.Order{
		OrderID:     "order-stale",
		UserID:      1001,
		PhoneNumber: "+81087654321",
		CountryCode: "157",
		ServiceID:   "1552",
		ServiceName: "Pokemon Center",
		Status:      domain.OrderStatusActive,
		Price:       decimal.RequireFromString("0.42"),
		CreatedAt:   now.Add(-20 * time.Minute),
		ExpiresAt:   now.Add(-10 * time.Minute),
	}))
}

func doGet(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	body := map[string]json.RawMessage{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := doGet(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderGet(t *testing.T) {
	s, st := newTestServer(t)
	seedData(t, st)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/order-live", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view orderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "order-live", view.OrderID)
	assert.Equal(t, int64(1001), view.UserID)
	assert.Equal(t, "0.42", view.Price)
	assert.Equal(t, "active", view.Status)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActiveOrdersPartition(t *testing.T) {
	s, st := newTestServer(t)
	seedData(t, st)

	rec, body := doGet(t, s, "/api/orders/active")
	require.Equal(t, http.StatusOK, rec.Code)

	var pending, awaiting []orderView
	require.NoError(t, json.Unmarshal(body["pending"], &pending))
	require.NoError(t, json.Unmarshal(body["awaiting_refund"], &awaiting))

	require.Len(t, pending, 1)
	assert.Equal(t, "order-live", pending[0].OrderID)
	require.Len(t, awaiting, 1)
	assert.Equal(t, "order-stale", awaiting[0].OrderID)
}

func TestUserOrders(t *testing.T) {
	s, st := newTestServer(t)
	seedData(t, st)

	rec, body := doGet(t, s, "/api/users/1001/orders")
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []orderView
	require.NoError(t, json.Unmarshal(body["orders"], &orders))
	assert.Len(t, orders, 2)

	rec, _ = doGet(t, s, "/api/users/abc/orders")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitorStatus(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doGet(t, s, "/api/monitor/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", string(body["running"]))
}

func TestSweepsEndpoint(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, st.InsertSweepRun(ctx, "run-1", "availability", time.Now()))
	require.NoError(t, st.FinishSweepRun(ctx, "run-1", 3, 0))

	rec, body := doGet(t, s, "/api/sweeps?monitor=availability")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []store.SweepRun
	require.NoError(t, json.Unmarshal(body["sweeps"], &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, 3, runs[0].Entities)
}
