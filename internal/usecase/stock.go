package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sbms/trading/internal/domain"
)

// adjustStock computes the signed stock delta for one line and persists
// the product immediately. A zero delta (settlement types, zero qty) is
// a no-op. The product row must already be locked by the caller.
func (uc *TransactionUseCase) adjustStock(ctx context.Context, tx Transaction, p *domain.Product, qty decimal.Decimal, typ domain.TransactionType, reversal bool, now time.Time) error {
	delta := domain.StockDelta(qty, typ, reversal)
	if delta.IsZero() {
		return nil
	}

	if p == nil {
		return domain.ErrProductNotFound
	}

	p.ApplyStockDelta(delta)
	return uc.productRepo.UpdateStock(ctx, tx, p.ID, p.CurrentStock, now)
}
