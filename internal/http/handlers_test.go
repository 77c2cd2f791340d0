package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/reservation"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

type ReservationServiceMock struct {
	result   reservation.CreateResult
	rows     []domain.Reservation
	count    int
	err      error
	gotOrder int64
	gotItems []domain.LineItem
}

func (m *ReservationServiceMock) CreateReservations(_ context.Context, orderID int64, items []domain.LineItem) (reservation.CreateResult, error) {
	m.gotOrder, m.gotItems = orderID, items
	return m.result, m.err
}

func (m *ReservationServiceMock) ReleaseReservations(_ context.Context, orderID int64) (int, error) {
	m.gotOrder = orderID
	return m.count, m.err
}

func (m *ReservationServiceMock) ConvertToDeductions(_ context.Context, orderID int64) (int, error) {
	m.gotOrder = orderID
	return m.count, m.err
}

func (m *ReservationServiceMock) GetReservations(_ context.Context, orderID int64) ([]domain.Reservation, error) {
	m.gotOrder = orderID
	return m.rows, m.err
}

type WarehouseServiceMock struct {
	stock  []domain.StockInfo
	err    error
	gotIDs []int64
}

func (m *WarehouseServiceMock) ReceiveStock(_ context.Context, itemID int64, quantity int) (domain.StockInfo, error) {
	if m.err != nil {
		return domain.StockInfo{}, m.err
	}
	return domain.StockInfo{WarehouseItemID: itemID, Name: "Red Rose", OnHand: 10 + quantity}, nil
}

func (m *WarehouseServiceMock) Stock(_ context.Context, ids []int64) ([]domain.StockInfo, error) {
	m.gotIDs = ids
	return m.stock, m.err
}

func (m *WarehouseServiceMock) LowStock(context.Context) ([]domain.StockInfo, error) {
	return m.stock, m.err
}

// --- helpers ---

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// --- Reservation handler ---

func TestCreateReservations_Success(t *testing.T) {
	mock := &ReservationServiceMock{result: reservation.CreateResult{
		Reservations: []domain.Reservation{{ID: "r1", OrderID: 42, WarehouseItemID: 1, ReservedQuantity: 15}},
	}}
	handler := NewReservationHandler(mock, zap.NewNop())

	body := jsonBody(t, LineItemsRequestDTO{Items: []domain.LineItem{{ProductID: 100, Quantity: 1}}})
	request := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/orders/42/reservations", body), "order_id", "42")
	recorder := httptest.NewRecorder()

	handler.CreateReservations(recorder, request)

	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, int64(42), mock.gotOrder)
	assert.Equal(t, []domain.LineItem{{ProductID: 100, Quantity: 1}}, mock.gotItems)

	var response CreateReservationsResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, int64(42), response.OrderID)
	require.Len(t, response.Reservations, 1)
	assert.Equal(t, 15, response.Reservations[0].ReservedQuantity)
	assert.NotNil(t, response.Warnings)
}

func TestCreateReservations_InsufficientStock(t *testing.T) {
	mock := &ReservationServiceMock{err: &domain.InsufficientStockError{
		ComponentID: 1, Component: "Red Rose", Required: 15, Available: 5,
	}}
	handler := NewReservationHandler(mock, zap.NewNop())

	body := jsonBody(t, LineItemsRequestDTO{Items: []domain.LineItem{{ProductID: 100, Quantity: 1}}})
	request := withURLParam(httptest.NewRequest(http.MethodPost, "/", body), "order_id", "4")
	recorder := httptest.NewRecorder()

	handler.CreateReservations(recorder, request)

	require.Equal(t, http.StatusConflict, recorder.Code)
	var response StockErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, StockErrorResponse{
		Kind:        "insufficient_stock",
		ComponentID: 1,
		Component:   "Red Rose",
		Required:    15,
		Available:   5,
		Message:     "insufficient stock for Red Rose: required 15, available 5",
	}, response)
}

func TestCreateReservations_BadInput(t *testing.T) {
	tests := []struct {
		name     string
		orderID  string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"invalid order id", "abc", `{"items":[]}`, nil, http.StatusBadRequest, "invalid_order_id"},
		{"negative order id", "-3", `{"items":[]}`, nil, http.StatusBadRequest, "invalid_order_id"},
		{"invalid json", "1", `{"items":`, nil, http.StatusBadRequest, "invalid_request"},
		{"no items", "1", `{"items":[]}`, domain.ErrNoLineItems, http.StatusBadRequest, "no_line_items"},
		{"zero quantity", "1", `{"items":[{"product_id":1,"quantity":0}]}`, domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
		{"broken recipe", "1", `{"items":[{"product_id":1,"quantity":1}]}`, domain.ErrInvalidRecipe, http.StatusUnprocessableEntity, "invalid_recipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewReservationHandler(&ReservationServiceMock{err: tt.err}, zap.NewNop())
			request := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)), "order_id", tt.orderID)
			recorder := httptest.NewRecorder()

			handler.CreateReservations(recorder, request)

			assert.Equal(t, tt.wantCode, recorder.Code)
			var response ErrorResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
			assert.Equal(t, tt.wantErr, response.Code)
		})
	}
}

func TestReleaseReservations(t *testing.T) {
	mock := &ReservationServiceMock{count: 2}
	handler := NewReservationHandler(mock, zap.NewNop())
	recorder := httptest.NewRecorder()

	handler.ReleaseReservations(recorder, withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "order_id", "9"))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"order_id":9,"released":2}`, recorder.Body.String())
}

func TestReleaseReservations_NothingToRelease(t *testing.T) {
	handler := NewReservationHandler(&ReservationServiceMock{}, zap.NewNop())
	recorder := httptest.NewRecorder()

	handler.ReleaseReservations(recorder, withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "order_id", "9"))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"order_id":9,"released":0}`, recorder.Body.String())
}

func TestConvertToDeductions_StorageError(t *testing.T) {
	mock := &ReservationServiceMock{err: &domain.StorageError{Op: "convert reservations", Err: errors.New("connection reset")}}
	handler := NewReservationHandler(mock, zap.NewNop())
	recorder := httptest.NewRecorder()

	handler.ConvertToDeductions(recorder, withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "order_id", "9"))

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "connection reset")
}

func TestConvertToDeductions_NegativeStock(t *testing.T) {
	handler := NewReservationHandler(&ReservationServiceMock{err: domain.ErrNegativeStock}, zap.NewNop())
	recorder := httptest.NewRecorder()

	handler.ConvertToDeductions(recorder, withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "order_id", "9"))

	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestGetReservations_EmptyIsArray(t *testing.T) {
	handler := NewReservationHandler(&ReservationServiceMock{rows: []domain.Reservation{}}, zap.NewNop())
	recorder := httptest.NewRecorder()

	handler.GetReservations(recorder, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "order_id", "1"))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "[]", strings.TrimSpace(recorder.Body.String()))
}

// --- Warehouse handler ---

func TestStock_ParsesIDs(t *testing.T) {
	mock := &WarehouseServiceMock{stock: []domain.StockInfo{
		{WarehouseItemID: 1, Name: "Red Rose", OnHand: 50, Reserved: 45, MinQuantity: 10},
	}}
	handler := NewWarehouseHandler(mock, zap.NewNop())
	recorder := httptest.NewRecorder()

	handler.Stock(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/warehouse/stock?ids=1,%202", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []int64{1, 2}, mock.gotIDs)

	var response []StockDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	require.Len(t, response, 1)
	assert.Equal(t, 5, response[0].Free)
}

func TestStock_InvalidIDs(t *testing.T) {
	handler := NewWarehouseHandler(&WarehouseServiceMock{}, zap.NewNop())
	recorder := httptest.NewRecorder()

	handler.Stock(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/warehouse/stock?ids=1,x", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestReceiveStock(t *testing.T) {
	handler := NewWarehouseHandler(&WarehouseServiceMock{}, zap.NewNop())
	recorder := httptest.NewRecorder()
	request := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":5}`)), "item_id", "1")

	handler.ReceiveStock(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	var response StockDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, 15, response.OnHand)
}

func TestReceiveStock_UnknownItem(t *testing.T) {
	handler := NewWarehouseHandler(&WarehouseServiceMock{err: domain.ErrItemNotFound}, zap.NewNop())
	recorder := httptest.NewRecorder()
	request := withURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":5}`)), "item_id", "404")

	handler.ReceiveStock(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
