package usecase_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbms/trading/internal/domain"
	"github.com/sbms/trading/internal/usecase"
	"github.com/sbms/trading/internal/usecase/mocks"
)

type engineFixture struct {
	uc       *usecase.TransactionUseCase
	txMgr    *mocks.MockTxManager
	products *mocks.MockProductRepository
	txns     *mocks.MockTransactionRepository
	outbox   *mocks.MockOutboxRepository
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		txMgr:    mocks.NewMockTxManager(),
		products: mocks.NewMockProductRepository(),
		txns:     mocks.NewMockTransactionRepository(),
		outbox:   mocks.NewMockOutboxRepository(),
	}
	f.uc = usecase.NewTransactionUseCase(f.txMgr, f.products, f.txns, f.outbox, mocks.NewMockIDGenerator(), nil)
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func i64(v int64) *int64 { return &v }

func str(s string) *string { return &s }

func saleInput(partyID *int64) usecase.PostTransactionInput {
	return usecase.PostTransactionInput{
		PartyID:     partyID,
		PartyName:   str("Acme Traders"),
		Date:        time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		Type:        "SALE",
		SubTotal:    d("100"),
		Discount:    d("0"),
		TotalAmount: d("100"),
		PaidAmount:  d("40"),
		Lines: []usecase.LineItemInput{
			{ProductID: 1, Qty: d("3"), Price: d("33.33"), Amount: d("100")},
		},
		Offers: []usecase.AppliedOfferInput{
			{OfferID: "offer-1", OfferName: "Festive 10%", DiscountAmount: d("10")},
		},
		BearerToken: "tok-123",
	}
}

func balancePayload(t *testing.T, e *domain.OutboxEvent) domain.BalanceAdjustPayload {
	t.Helper()
	var p domain.BalanceAdjustPayload
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	return p
}

func redemptionPayload(t *testing.T, e *domain.OutboxEvent) domain.OfferRedemptionPayload {
	t.Helper()
	var p domain.OfferRedemptionPayload
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	return p
}

func TestCreateTransaction_SaleAdjustsStockAndQueuesEffects(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, Name: "Widget", CurrentStock: d("10")})

	txn, err := f.uc.CreateTransaction(context.Background(), businessID, saleInput(i64(7)))
	require.NoError(t, err)
	require.NotZero(t, txn.ID)

	assert.True(t, f.products.Stock(1).Equal(d("7")), "sale of 3 must leave stock at 7, got %s", f.products.Stock(1))
	assert.Equal(t, 1, f.txns.Count())

	balances := f.outbox.ByEffect(domain.EffectBalanceAdjust)
	require.Len(t, balances, 1)
	p := balancePayload(t, balances[0])
	assert.Equal(t, int64(7), p.PartyID)
	assert.True(t, p.Amount.Equal(d("60")), "SALE 100 paid 40 must adjust +60, got %s", p.Amount)
	assert.Equal(t, "tok-123", p.BearerToken)

	redemptions := f.outbox.ByEffect(domain.EffectOfferRedemption)
	require.Len(t, redemptions, 1)
	r := redemptionPayload(t, redemptions[0])
	assert.Equal(t, "offer-1", r.OfferID)
	assert.Equal(t, txn.ID, r.TransactionID)
	assert.Equal(t, "7", r.CustomerID)
	assert.True(t, r.DiscountAmount.Equal(d("10")))
}

func TestCreateTransaction_PurchaseIncrementsStock(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	input := saleInput(i64(7))
	input.Type = "purchase"
	input.Offers = nil

	_, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)

	assert.True(t, f.products.Stock(1).Equal(d("13")))

	balances := f.outbox.ByEffect(domain.EffectBalanceAdjust)
	require.Len(t, balances, 1)
	assert.True(t, balancePayload(t, balances[0]).Amount.Equal(d("-60")),
		"PURCHASE 100 paid 40 must adjust -60")
}

func TestCreateTransaction_ReceiptCarriesNoLines(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	input := saleInput(i64(7))
	input.Type = "RECEIPT"
	input.TotalAmount = d("0")
	input.SubTotal = d("0")
	input.PaidAmount = d("50")
	input.Lines = nil
	input.Offers = nil
	input.PaymentMode = str("UPI")

	txn, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)
	assert.Empty(t, txn.Lines)

	assert.True(t, f.products.Stock(1).Equal(d("10")), "receipt must not touch stock")

	balances := f.outbox.ByEffect(domain.EffectBalanceAdjust)
	require.Len(t, balances, 1)
	assert.True(t, balancePayload(t, balances[0]).Amount.Equal(d("-50")),
		"RECEIPT of 50 must reduce receivable by 50")
}

func TestCreateTransaction_PaymentRaisesBalance(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()

	input := saleInput(i64(7))
	input.Type = "PAYMENT"
	input.TotalAmount = d("0")
	input.SubTotal = d("0")
	input.PaidAmount = d("50")
	input.Lines = nil
	input.Offers = nil

	_, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)

	balances := f.outbox.ByEffect(domain.EffectBalanceAdjust)
	require.Len(t, balances, 1)
	assert.True(t, balancePayload(t, balances[0]).Amount.Equal(d("50")))
}

func TestCreateTransaction_InvalidTypeFailsBeforeAnySideEffect(t *testing.T) {
	f := newEngineFixture()

	input := saleInput(i64(7))
	input.Type = "REFUND"

	_, err := f.uc.CreateTransaction(context.Background(), uuid.New(), input)
	require.ErrorIs(t, err, domain.ErrInvalidTransactionType)

	assert.Empty(t, f.txMgr.Began, "no database transaction may start for an invalid type")
	assert.Empty(t, f.outbox.Events)
}

func TestCreateTransaction_NegativeAmountRejected(t *testing.T) {
	f := newEngineFixture()

	input := saleInput(nil)
	input.TotalAmount = d("-1")

	_, err := f.uc.CreateTransaction(context.Background(), uuid.New(), input)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCreateTransaction_ForeignProductRejectedBeforeMutation(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: uuid.New(), CurrentStock: d("10")})

	_, err := f.uc.CreateTransaction(context.Background(), businessID, saleInput(i64(7)))
	require.ErrorIs(t, err, domain.ErrForeignBusiness)

	assert.True(t, f.products.Stock(1).Equal(d("10")), "foreign product stock must stay untouched")
	assert.Empty(t, f.outbox.Events, "no side effects may be queued")
	assert.Zero(t, f.txns.Count())
}

func TestCreateTransaction_UnknownProductRejected(t *testing.T) {
	f := newEngineFixture()

	_, err := f.uc.CreateTransaction(context.Background(), uuid.New(), saleInput(nil))
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Zero(t, f.txns.Count())
}

func TestCreateTransaction_WalkInCustomerWithoutParty(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	input := saleInput(nil)
	input.PartyName = nil

	_, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)

	assert.Empty(t, f.outbox.ByEffect(domain.EffectBalanceAdjust), "no party, no balance call")

	redemptions := f.outbox.ByEffect(domain.EffectOfferRedemption)
	require.Len(t, redemptions, 1)
	assert.Equal(t, domain.WalkInCustomerID, redemptionPayload(t, redemptions[0]).CustomerID)
}

func TestCreateTransaction_FullyPaidSaleSkipsBalanceCall(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	input := saleInput(i64(7))
	input.PaidAmount = d("100")

	_, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)

	assert.Empty(t, f.outbox.ByEffect(domain.EffectBalanceAdjust),
		"a zero adjustment must not produce a balance call")
}

func TestUpdateTransaction_IdenticalPayloadNetsToZero(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	input := saleInput(i64(7))
	created, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)
	require.True(t, f.products.Stock(1).Equal(d("7")))

	_, err = f.uc.UpdateTransaction(context.Background(), businessID, created.ID, input)
	require.NoError(t, err)

	assert.True(t, f.products.Stock(1).Equal(d("7")), "identical update must leave stock unchanged")

	// create queued +60; the update must queue the zero-sum pair -60, +60.
	balances := f.outbox.ByEffect(domain.EffectBalanceAdjust)
	require.Len(t, balances, 3)
	revert := balancePayload(t, balances[1])
	reapply := balancePayload(t, balances[2])
	assert.True(t, revert.Amount.Equal(d("-60")))
	assert.True(t, reapply.Amount.Equal(d("60")))
	assert.True(t, revert.Amount.Add(reapply.Amount).IsZero())

	// the old offer is rolled back and the new one re-recorded.
	assert.Len(t, f.outbox.ByEffect(domain.EffectOfferRollback), 1)
	assert.Len(t, f.outbox.ByEffect(domain.EffectOfferRedemption), 2)
}

func TestUpdateTransaction_TypeChangeRevertsOldStockFirst(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	input := saleInput(i64(7))
	input.Offers = nil
	created, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)
	require.True(t, f.products.Stock(1).Equal(d("7")))

	input.Type = "PURCHASE"
	_, err = f.uc.UpdateTransaction(context.Background(), businessID, created.ID, input)
	require.NoError(t, err)

	// revert SALE (+3) then apply PURCHASE (+3): 7 -> 10 -> 13.
	assert.True(t, f.products.Stock(1).Equal(d("13")), "got %s", f.products.Stock(1))

	updated, err := f.uc.GetTransaction(context.Background(), businessID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TypePurchase, updated.Type)
}

func TestUpdateTransaction_SwitchToReceiptDropsLines(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	input := saleInput(i64(7))
	input.Offers = nil
	created, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)

	input.Type = "RECEIPT"
	input.TotalAmount = d("0")
	input.SubTotal = d("0")
	input.PaidAmount = d("40")
	updated, err := f.uc.UpdateTransaction(context.Background(), businessID, created.ID, input)
	require.NoError(t, err)

	assert.Empty(t, updated.Lines, "receipt keeps no line items even when the request carries some")
	assert.True(t, f.products.Stock(1).Equal(d("10")), "old sale stock impact must be reverted")
}

func TestUpdateTransaction_ForeignBusinessRejected(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	input := saleInput(i64(7))
	created, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)

	eventsBefore := len(f.outbox.Events)
	_, err = f.uc.UpdateTransaction(context.Background(), uuid.New(), created.ID, input)
	require.ErrorIs(t, err, domain.ErrForeignBusiness)

	assert.True(t, f.products.Stock(1).Equal(d("7")), "stock must stay as posted")
	assert.Len(t, f.outbox.Events, eventsBefore)
}

func TestDeleteTransaction_RestoresStockAndRevertsEffects(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	created, err := f.uc.CreateTransaction(context.Background(), businessID, saleInput(i64(7)))
	require.NoError(t, err)
	require.True(t, f.products.Stock(1).Equal(d("7")))

	require.NoError(t, f.uc.DeleteTransaction(context.Background(), businessID, created.ID, "tok-123"))

	assert.True(t, f.products.Stock(1).Equal(d("10")), "delete must restore the original stock exactly")
	assert.Zero(t, f.txns.Count())

	balances := f.outbox.ByEffect(domain.EffectBalanceAdjust)
	require.Len(t, balances, 2)
	assert.True(t, balancePayload(t, balances[1]).Amount.Equal(d("-60")),
		"delete must negate the posted adjustment")

	rollbacks := f.outbox.ByEffect(domain.EffectOfferRollback)
	require.Len(t, rollbacks, 1)
	var rb domain.OfferRollbackPayload
	require.NoError(t, json.Unmarshal(rollbacks[0].Payload, &rb))
	assert.Equal(t, "offer-1", rb.OfferID)
	assert.Equal(t, created.ID, rb.TransactionID)
}

func TestDeleteTransaction_NotFound(t *testing.T) {
	f := newEngineFixture()
	err := f.uc.DeleteTransaction(context.Background(), uuid.New(), 404, "")
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestDeleteTransaction_ForeignBusinessRejected(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("10")})

	created, err := f.uc.CreateTransaction(context.Background(), businessID, saleInput(nil))
	require.NoError(t, err)

	err = f.uc.DeleteTransaction(context.Background(), uuid.New(), created.ID, "")
	require.ErrorIs(t, err, domain.ErrForeignBusiness)
	assert.Equal(t, 1, f.txns.Count())
}

func TestCreateThenDelete_StockRoundTripIsExact(t *testing.T) {
	f := newEngineFixture()
	businessID := uuid.New()
	f.products.Seed(&domain.Product{ID: 1, BusinessID: businessID, CurrentStock: d("3.75")})

	input := saleInput(nil)
	input.Lines[0].Qty = d("1.25")
	input.Offers = nil

	created, err := f.uc.CreateTransaction(context.Background(), businessID, input)
	require.NoError(t, err)
	require.True(t, f.products.Stock(1).Equal(d("2.5")))

	require.NoError(t, f.uc.DeleteTransaction(context.Background(), businessID, created.ID, ""))
	assert.True(t, f.products.Stock(1).Equal(d("3.75")), "decimal-exact round trip, got %s", f.products.Stock(1))
}
