package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"foodorder/internal/domain/model"
	"foodorder/internal/repository"
	"foodorder/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newStoreOrderServer(orders *OrderRepoMock) *StoreOrderHandler {
	return NewStoreOrderHandler(usecase.NewStoreOrderUsecase(txStub{orders: orders}, orders, nil, testLog))
}

func activeStores() *StoreRepoMock {
	stores := new(StoreRepoMock)
	stores.On("FindByID", mock.Anything, int64(1)).Return(model.Store{ID: 1, IsActive: true}, nil)
	stores.On("FindByID", mock.Anything, int64(2)).Return(model.Store{ID: 2, IsActive: false}, nil)
	return stores
}

func TestStoreOrderHandler_Stats(t *testing.T) {
	orders := new(OrderRepoMock)
	orders.On("StatsByStore", mock.Anything, int64(1), mock.Anything).Return(repository.StoreOrderStats{
		TotalOrders:       4,
		TotalRevenueCents: 6500,
		AverageOrderCents: 1625,
	}, nil)

	e := newTestEcho()
	newStoreOrderServer(orders).RegisterRoutes(e, testCfg, activeStores())

	rec := doJSON(t, e, http.MethodGet, "/store/orders/stats", nil, tokenFor(t, model.ActorStore, 1))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out repository.StoreOrderStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, int64(6500), out.TotalRevenueCents)
	assert.Equal(t, float64(1625), out.AverageOrderCents)
}

func TestStoreOrderHandler_Guards(t *testing.T) {
	tests := []struct {
		name     string
		actor    model.ActorType
		id       int64
		wantCode int
	}{
		{name: "customer token", actor: model.ActorCustomer, id: 7, wantCode: http.StatusForbidden},
		{name: "inactive store", actor: model.ActorStore, id: 2, wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(OrderRepoMock)
			e := newTestEcho()
			newStoreOrderServer(orders).RegisterRoutes(e, testCfg, activeStores())

			rec := doJSON(t, e, http.MethodGet, "/store/orders/stats", nil, tokenFor(t, tt.actor, tt.id))
			assert.Equal(t, tt.wantCode, rec.Code)
			orders.AssertNotCalled(t, "StatsByStore", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestStoreOrderHandler_UpdateStatusBadRequest(t *testing.T) {
	e := newTestEcho()
	newStoreOrderServer(new(OrderRepoMock)).RegisterRoutes(e, testCfg, activeStores())
	token := tokenFor(t, model.ActorStore, 1)

	rec := doJSON(t, e, http.MethodPatch, "/store/orders/abc/status", map[string]string{"status": "preparing"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPatch, "/store/orders/5/status", map[string]string{}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "status is required")
}

func TestStoreOrderHandler_UpdateStatusUnknownOrder(t *testing.T) {
	orders := new(OrderRepoMock)
	orders.On("FindByIDForUpdate", mock.Anything, int64(5)).Return(model.Order{}, repository.ErrNotFound)

	e := newTestEcho()
	newStoreOrderServer(orders).RegisterRoutes(e, testCfg, activeStores())

	rec := doJSON(t, e, http.MethodPatch, "/store/orders/5/status", map[string]string{"status": "preparing"}, tokenFor(t, model.ActorStore, 1))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}
