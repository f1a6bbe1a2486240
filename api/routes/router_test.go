package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgauth "github.com/trywear-labs/storefront-backend/pkg/auth"
	"github.com/trywear-labs/storefront-backend/pkg/config"
	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/trywear-labs/storefront-backend/pkg/errors"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/metrics"
	"github.com/trywear-labs/storefront-backend/pkg/pagination"

	salesvc "github.com/trywear-labs/storefront-backend/internal/sales"
)

type fakeSalesService struct {
	orders       []models.Order
	lastStoreID  uuid.UUID
	lastOrderID  uuid.UUID
	completeErr  error
	lastComplete *salesvc.CompleteSaleInput
}

func (f *fakeSalesService) CompleteSale(_ context.Context, input salesvc.CompleteSaleInput) (*salesvc.Receipt, error) {
	f.lastComplete = &input
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	if len(f.orders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no seeded order")
	}
	return &salesvc.Receipt{Order: f.orders[0]}, nil
}

func (f *fakeSalesService) GetOrder(_ context.Context, storeID, orderID uuid.UUID) (*models.Order, error) {
	f.lastStoreID = storeID
	f.lastOrderID = orderID
	for i := range f.orders {
		if f.orders[i].ID == orderID {
			return &f.orders[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (f *fakeSalesService) ListOrders(_ context.Context, storeID uuid.UUID, _ pagination.Params) ([]models.Order, string, error) {
	f.lastStoreID = storeID
	return f.orders, "", nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{
		Secret:            "router-test-secret",
		Issuer:            "storefront-test",
		ExpirationMinutes: 5,
	}
	return cfg
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func mintToken(t *testing.T, cfg *config.Config, storeID *uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:        uuid.New(),
		ActiveStoreID: storeID,
		Role:          enums.MemberRoleCashier,
	})
	require.NoError(t, err)
	return token
}

func seededOrder(storeID uuid.UUID) models.Order {
	return models.Order{
		ID:            uuid.New(),
		StoreID:       storeID,
		OrderNumber:   "ORD-20260830-0001",
		Subtotal:      decimal.NewFromInt(2000),
		TaxPercent:    decimal.NewFromInt(18),
		TaxAmount:     decimal.NewFromInt(324),
		Total:         decimal.NewFromInt(2124),
		PaymentMethod: enums.PaymentMethodCash,
		Status:        enums.OrderStatusCompleted,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestHealthLiveIsOpen(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, testLogger(), nil, nil, nil, &fakeSalesService{}, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Storefront-Env"))
	assert.Contains(t, rec.Body.String(), `"live"`)
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()
	saleMetrics := metrics.NewSaleMetrics(registry)
	saleMetrics.IncCompleted("success")

	router := NewRouter(cfg, testLogger(), nil, nil, registry, &fakeSalesService{}, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sales_completed_total")
}

func TestSalesRequireToken(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, testLogger(), nil, nil, nil, &fakeSalesService{}, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}

func TestTokenWithoutStoreIsForbidden(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, testLogger(), nil, nil, nil, &fakeSalesService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListOrdersScopesToTokenStore(t *testing.T) {
	cfg := testConfig()
	storeID := uuid.New()
	svc := &fakeSalesService{orders: []models.Order{seededOrder(storeID)}}
	router := NewRouter(cfg, testLogger(), nil, nil, nil, svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, &storeID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storeID, svc.lastStoreID)
	assert.Contains(t, rec.Body.String(), "ORD-20260830-0001")
}

func TestGetOrderParsesPathID(t *testing.T) {
	cfg := testConfig()
	storeID := uuid.New()
	order := seededOrder(storeID)
	svc := &fakeSalesService{orders: []models.Order{order}}
	router := NewRouter(cfg, testLogger(), nil, nil, nil, svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/"+order.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, &storeID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.ID, svc.lastOrderID)

	var envelope struct {
		Data struct {
			OrderNumber string `json:"order_number"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, order.OrderNumber, envelope.Data.OrderNumber)
}

func TestGetOrderRejectsMalformedID(t *testing.T) {
	cfg := testConfig()
	storeID := uuid.New()
	router := NewRouter(cfg, testLogger(), nil, nil, nil, &fakeSalesService{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, &storeID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestCompleteSaleDecodesPayload(t *testing.T) {
	cfg := testConfig()
	storeID := uuid.New()
	productID := uuid.New()
	svc := &fakeSalesService{orders: []models.Order{seededOrder(storeID)}}
	router := NewRouter(cfg, testLogger(), nil, nil, nil, svc, nil, nil)

	body := `{
		"lines": [{"product_id": "` + productID.String() + `", "quantity": 2}],
		"discount_percent": 10,
		"payment_method": "cash"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, &storeID))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.lastComplete)
	assert.Equal(t, storeID, svc.lastComplete.StoreID)
	require.Len(t, svc.lastComplete.Lines, 1)
	assert.Equal(t, productID, svc.lastComplete.Lines[0].ProductID)
	assert.Equal(t, 2, svc.lastComplete.Lines[0].Quantity)
	assert.Equal(t, enums.PaymentMethodCash, svc.lastComplete.PaymentMethod)
}

func TestCompleteSaleRejectsUnknownPaymentMethod(t *testing.T) {
	cfg := testConfig()
	storeID := uuid.New()
	router := NewRouter(cfg, testLogger(), nil, nil, nil, &fakeSalesService{}, nil, nil)

	body := `{"lines": [{"product_id": "` + uuid.NewString() + `", "quantity": 1}], "payment_method": "barter"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, &storeID))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}
