package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is an inventory item owned by one business. CurrentStock is
// mutated only through StockDelta/ApplyStockDelta inside a posting
// transaction; no other code path writes it.
type Product struct {
	ID           int64
	BusinessID   uuid.UUID
	Name         string
	CategoryID   *int64
	UnitID       *int64
	CurrentStock decimal.Decimal
	MinStock     decimal.Decimal
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	MRP          decimal.Decimal
	GSTRate      decimal.Decimal
	HSNCode      string
	SKU          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StockDelta computes the signed stock change for a line of quantity qty.
// SALE consumes stock, PURCHASE replenishes it, settlement types carry no
// lines and yield zero. A reversal flips the sign to undo a prior apply.
func StockDelta(qty decimal.Decimal, t TransactionType, reversal bool) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}

	var delta decimal.Decimal
	switch t {
	case TypeSale:
		delta = qty.Neg()
	case TypePurchase:
		delta = qty
	default:
		return decimal.Zero
	}

	if reversal {
		delta = delta.Neg()
	}

	return delta
}

// ApplyStockDelta adds delta to the current stock. Stock is deliberately
// allowed to go negative: an oversold product stays visible to the owner
// instead of being silently rejected.
func (p *Product) ApplyStockDelta(delta decimal.Decimal) {
	p.CurrentStock = p.CurrentStock.Add(delta)
}
