package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbms/trading/internal/adapter/http/middleware"
	"github.com/sbms/trading/internal/domain"
	"github.com/sbms/trading/internal/infrastructure/auth"
	"github.com/sbms/trading/internal/usecase"
	"github.com/sbms/trading/internal/usecase/mocks"
)

type handlerFixture struct {
	router     *chi.Mux
	businessID uuid.UUID
	products   *mocks.MockProductRepository
	txns       *mocks.MockTransactionRepository
	outbox     *mocks.MockOutboxRepository
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		businessID: uuid.New(),
		products:   mocks.NewMockProductRepository(),
		txns:       mocks.NewMockTransactionRepository(),
		outbox:     mocks.NewMockOutboxRepository(),
	}

	engine := usecase.NewTransactionUseCase(
		mocks.NewMockTxManager(), f.products, f.txns, f.outbox,
		mocks.NewMockIDGenerator(), nil)
	queries := usecase.NewTransactionQueryUseCase(f.txns)
	h := NewTransactionHandler(engine, queries)

	f.router = chi.NewRouter()
	f.router.Use(f.withAuth)
	f.router.Route("/api/trading/transactions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/search", h.Search)
		r.Get("/party/{partyId}", h.ListByParty)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return f
}

// withAuth injects verified claims the way the auth middleware would.
func (f *handlerFixture) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.ClaimsContextKey, &auth.Claims{BusinessID: f.businessID})
		ctx = context.WithValue(ctx, middleware.BearerTokenContextKey, "tok-test")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func saleBody() map[string]any {
	return map[string]any{
		"partyId":     7,
		"partyName":   "Acme Traders",
		"date":        "2026-03-15",
		"type":        "Sale",
		"subTotal":    "100",
		"totalAmount": "90.50",
		"paidAmount":  "30",
		"products": []map[string]any{
			{"productId": 1, "qty": "2", "price": "50", "amount": "100"},
		},
	}
}

func TestCreateTransaction(t *testing.T) {
	f := newHandlerFixture(t)
	f.products.Seed(&domain.Product{ID: 1, BusinessID: f.businessID, Name: "Basmati Rice", CurrentStock: decimal.NewFromInt(10)})

	rec := f.do(t, http.MethodPost, "/api/trading/transactions", saleBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Acme Traders", resp["party"])
	assert.Equal(t, "SALE", resp["type"])
	assert.Equal(t, "Partial", resp["status"])
	assert.Equal(t, float64(1), resp["products"])

	// Stock moved and the balance effect is queued.
	assert.True(t, f.products.Stock(1).Equal(decimal.NewFromInt(8)))
	assert.Len(t, f.outbox.ByEffect(domain.EffectBalanceAdjust), 1)
}

func TestCreateTransactionInvalidType(t *testing.T) {
	f := newHandlerFixture(t)

	body := saleBody()
	body["type"] = "Refund"
	delete(body, "products")

	rec := f.do(t, http.MethodPost, "/api/trading/transactions", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransactionMissingDate(t *testing.T) {
	f := newHandlerFixture(t)

	body := saleBody()
	delete(body, "date")

	rec := f.do(t, http.MethodPost, "/api/trading/transactions", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTransactionUnknownProduct(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/trading/transactions", saleBody())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTransaction(t *testing.T) {
	f := newHandlerFixture(t)
	f.txns.Seed(&domain.Transaction{
		BusinessID:  f.businessID,
		Type:        domain.TypeReceipt,
		Date:        time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.NewFromInt(50),
		PaidAmount:  decimal.NewFromInt(50),
	})

	rec := f.do(t, http.MethodGet, "/api/trading/transactions/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Unknown", resp["party"])
	assert.Equal(t, "Cash", resp["paymentMode"])
	assert.Equal(t, "Paid", resp["status"])
}

func TestGetTransactionNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/trading/transactions/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTransactionForeignBusiness(t *testing.T) {
	f := newHandlerFixture(t)
	f.txns.Seed(&domain.Transaction{BusinessID: uuid.New(), Type: domain.TypeReceipt})

	rec := f.do(t, http.MethodGet, "/api/trading/transactions/1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteTransaction(t *testing.T) {
	f := newHandlerFixture(t)
	f.txns.Seed(&domain.Transaction{
		BusinessID: f.businessID,
		Type:       domain.TypePayment,
		PaidAmount: decimal.NewFromInt(50),
	})

	rec := f.do(t, http.MethodDelete, "/api/trading/transactions/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.txns.Count())
}

func TestUpdateTransaction(t *testing.T) {
	f := newHandlerFixture(t)
	f.products.Seed(&domain.Product{ID: 1, BusinessID: f.businessID, Name: "Basmati Rice", CurrentStock: decimal.NewFromInt(10)})

	rec := f.do(t, http.MethodPost, "/api/trading/transactions", saleBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int64(created["id"].(float64))

	body := saleBody()
	body["paidAmount"] = "90.50"
	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/trading/transactions/%d", id), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Paid", updated["status"])

	// Revert plus reapply nets to the original stock level.
	assert.True(t, f.products.Stock(1).Equal(decimal.NewFromInt(8)))
}

func TestSearchTransactions(t *testing.T) {
	f := newHandlerFixture(t)
	name := "Acme Traders"
	f.txns.Seed(&domain.Transaction{
		BusinessID: f.businessID,
		PartyName:  &name,
		Type:       domain.TypeSale,
		Date:       time.Now().UTC(),
	})

	rec := f.do(t, http.MethodGet, "/api/trading/transactions/search?query=acme&type=Sale", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Acme Traders", resp[0]["party"])
}

func TestSearchTransactionsBadType(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/trading/transactions/search?type=Refund", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListByParty(t *testing.T) {
	f := newHandlerFixture(t)
	partyID := int64(7)
	f.txns.Seed(&domain.Transaction{BusinessID: f.businessID, PartyID: &partyID, Type: domain.TypeSale})
	f.txns.Seed(&domain.Transaction{BusinessID: f.businessID, Type: domain.TypeReceipt})

	rec := f.do(t, http.MethodGet, "/api/trading/transactions/party/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)

	rec = f.do(t, http.MethodGet, "/api/trading/transactions/party/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
