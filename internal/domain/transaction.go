package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of supported transaction kinds.
type TransactionType string

const (
	TypeSale     TransactionType = "SALE"
	TypePurchase TransactionType = "PURCHASE"
	TypeReceipt  TransactionType = "RECEIPT"
	TypePayment  TransactionType = "PAYMENT"
)

// ParseTransactionType parses a case-insensitive type string.
// Unknown values are rejected at the boundary, not deep in the engine.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(TypeSale):
		return TypeSale, nil
	case string(TypePurchase):
		return TypePurchase, nil
	case string(TypeReceipt):
		return TypeReceipt, nil
	case string(TypePayment):
		return TypePayment, nil
	default:
		return "", ErrInvalidTransactionType
	}
}

// HasLineItems reports whether this type carries product line items.
// RECEIPT and PAYMENT are pure settlement entries with no stock impact.
func (t TransactionType) HasLineItems() bool {
	return t == TypeSale || t == TypePurchase
}

// Payment status values derived from paid vs total.
const (
	StatusPaid    = "Paid"
	StatusPartial = "Partial"
	StatusUnpaid  = "Unpaid"
)

// TransactionLine is one product line on a transaction. ProductName is
// resolved from the products table on reads, never stored on the line.
type TransactionLine struct {
	ID          int64
	ProductID   int64
	ProductName string
	Qty         decimal.Decimal
	Price       decimal.Decimal
	Amount      decimal.Decimal
	IsFree      bool
}

// AppliedOffer records a promotional offer redeemed against a transaction.
// Usage counts live in the external smart-ops service; this is the local copy.
type AppliedOffer struct {
	ID             int64
	OfferID        string
	OfferName      string
	DiscountAmount decimal.Decimal
}

// Transaction is the aggregate root: header plus owned lines and offers.
// Lines and offers are replaced wholesale on update, never patched.
type Transaction struct {
	ID              int64
	BusinessID      uuid.UUID
	PartyID         *int64
	PartyName       *string
	Date            time.Time
	Type            TransactionType
	SubTotal        decimal.Decimal
	Discount        decimal.Decimal
	TotalAmount     decimal.Decimal
	PaidAmount      decimal.Decimal
	PaymentMode     *string
	ReferenceNumber *string
	Notes           *string
	Lines           []TransactionLine
	Offers          []AppliedOffer
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Status derives the payment status from the financial fields.
func (t *Transaction) Status() string {
	if t.PaidAmount.GreaterThanOrEqual(t.TotalAmount) {
		return StatusPaid
	}
	if t.PaidAmount.IsPositive() {
		return StatusPartial
	}
	return StatusUnpaid
}

// BalanceAdjustment computes the signed change to a counterparty's running
// balance caused by one transaction.
//
//	SALE     +(total - paid)  outstanding receivable grows
//	PURCHASE -(total - paid)  outstanding payable grows
//	RECEIPT  -paid            customer settles, receivable shrinks
//	PAYMENT  +paid            we settle, payable shrinks toward zero
func BalanceAdjustment(t TransactionType, total, paid decimal.Decimal) decimal.Decimal {
	switch t {
	case TypeSale:
		return total.Sub(paid)
	case TypePurchase:
		return total.Sub(paid).Neg()
	case TypeReceipt:
		return paid.Neg()
	case TypePayment:
		return paid
	default:
		return decimal.Zero
	}
}

// BalanceImpact is the adjustment this transaction sends to the party ledger.
// Zero when no counterparty is attached.
func (t *Transaction) BalanceImpact() decimal.Decimal {
	if t.PartyID == nil {
		return decimal.Zero
	}
	return BalanceAdjustment(t.Type, t.TotalAmount, t.PaidAmount)
}
