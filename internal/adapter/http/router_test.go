package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbms/trading/internal/adapter/http/handler"
	"github.com/sbms/trading/internal/domain"
	"github.com/sbms/trading/internal/infrastructure/auth"
	"github.com/sbms/trading/internal/usecase"
	"github.com/sbms/trading/internal/usecase/mocks"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.JWTManager, uuid.UUID, *mocks.MockProductRepository) {
	t.Helper()

	products := mocks.NewMockProductRepository()
	txns := mocks.NewMockTransactionRepository()
	outbox := mocks.NewMockOutboxRepository()

	engine := usecase.NewTransactionUseCase(
		mocks.NewMockTxManager(), products, txns, outbox,
		mocks.NewMockIDGenerator(), nil)
	queries := usecase.NewTransactionQueryUseCase(txns)

	jwtManager := auth.NewJWTManager("test-secret", time.Minute)

	router := NewRouter(RouterConfig{
		TransactionHandler: handler.NewTransactionHandler(engine, queries),
		HealthHandler:      handler.NewHealthHandler(nil, nil),
		JWTManager:         jwtManager,
		Logger:             zerolog.Nop(),
	})

	return router, jwtManager, uuid.New(), products
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRequiresAuth(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trading/transactions/search", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterAuthenticatedCreate(t *testing.T) {
	router, jwtManager, businessID, products := newTestRouter(t)
	products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: decimal.NewFromInt(5)})

	token, err := jwtManager.Generate(businessID, "owner@example.com")
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"date":        "2026-03-15",
		"type":        "Sale",
		"totalAmount": "100",
		"products": []map[string]any{
			{"productId": 1, "qty": "1", "price": "100", "amount": "100"},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/trading/transactions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, products.Stock(1).Equal(decimal.NewFromInt(4)))
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
