package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStockDelta(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	tests := []struct {
		name     string
		qty      string
		typ      TransactionType
		reversal bool
		want     string
	}{
		{"sale consumes stock", "5", TypeSale, false, "-5"},
		{"sale reversal restores stock", "5", TypeSale, true, "5"},
		{"purchase replenishes stock", "5", TypePurchase, false, "5"},
		{"purchase reversal removes stock", "5", TypePurchase, true, "-5"},
		{"receipt has no stock impact", "5", TypeReceipt, false, "0"},
		{"payment has no stock impact", "5", TypePayment, false, "0"},
		{"zero qty is a no-op", "0", TypeSale, false, "0"},
		{"fractional qty stays exact", "2.25", TypeSale, false, "-2.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StockDelta(d(tt.qty), tt.typ, tt.reversal)
			if !got.Equal(d(tt.want)) {
				t.Errorf("StockDelta(%s, %s, %v) = %s, want %s", tt.qty, tt.typ, tt.reversal, got, tt.want)
			}
		})
	}
}

// Applying a delta and then its reversal must restore the original stock
// exactly, with no rounding drift.
func TestStockDelta_ReversalRoundTrip(t *testing.T) {
	quantities := []string{"1", "3.5", "0.001", "12345.6789"}

	for _, q := range quantities {
		for _, typ := range []TransactionType{TypeSale, TypePurchase} {
			qty := decimal.RequireFromString(q)
			p := &Product{CurrentStock: decimal.RequireFromString("100.5")}
			before := p.CurrentStock

			p.ApplyStockDelta(StockDelta(qty, typ, false))
			p.ApplyStockDelta(StockDelta(qty, typ, true))

			if !p.CurrentStock.Equal(before) {
				t.Errorf("%s qty=%s: stock %s after round trip, want %s", typ, q, p.CurrentStock, before)
			}
		}
	}
}

func TestApplyStockDelta_AllowsNegativeStock(t *testing.T) {
	p := &Product{CurrentStock: decimal.NewFromInt(2)}
	p.ApplyStockDelta(StockDelta(decimal.NewFromInt(5), TypeSale, false))

	if !p.CurrentStock.Equal(decimal.NewFromInt(-3)) {
		t.Errorf("oversold stock = %s, want -3", p.CurrentStock)
	}
}
