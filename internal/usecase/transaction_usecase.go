package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sbms/trading/internal/domain"
)

// TransactionUseCase orchestrates posting, updating and deleting
// transactions: it composes the stock adjustment, the counterparty
// balance adjustment and the offer redemption notifications around the
// persisted aggregate. Balance and offer effects are written to the
// outbox inside the same database transaction as the stock mutation, so
// a posting either fully commits with its pending effects or not at all.
type TransactionUseCase struct {
	txManager   TransactionManager
	productRepo ProductRepository
	txnRepo     TransactionRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	retrier     Retrier
}

// NewTransactionUseCase creates a new TransactionUseCase. retrier may be
// nil to disable conflict retries.
func NewTransactionUseCase(
	txManager TransactionManager,
	productRepo ProductRepository,
	txnRepo TransactionRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	retrier Retrier,
) *TransactionUseCase {
	return &TransactionUseCase{
		txManager:   txManager,
		productRepo: productRepo,
		txnRepo:     txnRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		retrier:     retrier,
	}
}

// LineItemInput is one product line of a posting request.
type LineItemInput struct {
	ProductID int64
	Qty       decimal.Decimal
	Price     decimal.Decimal
	Amount    decimal.Decimal
	IsFree    bool
}

// AppliedOfferInput is one redeemed offer of a posting request.
type AppliedOfferInput struct {
	OfferID        string
	OfferName      string
	DiscountAmount decimal.Decimal
}

// PostTransactionInput carries a full transaction payload for create and
// update. BearerToken is the caller's token, forwarded downstream by the
// outbox dispatcher.
type PostTransactionInput struct {
	PartyID         *int64
	PartyName       *string
	Date            time.Time
	Type            string
	SubTotal        decimal.Decimal
	Discount        decimal.Decimal
	TotalAmount     decimal.Decimal
	PaidAmount      decimal.Decimal
	PaymentMode     *string
	ReferenceNumber *string
	Notes           *string
	Lines           []LineItemInput
	Offers          []AppliedOfferInput
	BearerToken     string
}

func (in *PostTransactionInput) validate() (domain.TransactionType, error) {
	typ, err := domain.ParseTransactionType(in.Type)
	if err != nil {
		return "", err
	}

	for _, amount := range []decimal.Decimal{in.SubTotal, in.Discount, in.TotalAmount, in.PaidAmount} {
		if amount.IsNegative() {
			return "", domain.ErrInvalidAmount
		}
	}

	return typ, nil
}

// CreateTransaction validates and posts a new transaction: product
// ownership is verified before any mutation, stock deltas are applied
// under row locks, and balance/offer effects are enqueued atomically.
func (uc *TransactionUseCase) CreateTransaction(ctx context.Context, businessID uuid.UUID, input PostTransactionInput) (*domain.Transaction, error) {
	typ, err := input.validate()
	if err != nil {
		return nil, err
	}

	var txn *domain.Transaction

	err = uc.retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		now := time.Now().UTC()
		txn = newTransaction(businessID, typ, input, now)

		var products map[int64]*domain.Product
		if typ.HasLineItems() {
			products, err = uc.lockProducts(ctx, tx, businessID, lineProductIDs(input.Lines))
			if err != nil {
				return err
			}

			for _, li := range input.Lines {
				txn.Lines = append(txn.Lines, domain.TransactionLine{
					ProductID: li.ProductID,
					Qty:       li.Qty,
					Price:     li.Price,
					Amount:    li.Amount,
					IsFree:    li.IsFree,
				})
			}
		}

		for _, oi := range input.Offers {
			txn.Offers = append(txn.Offers, domain.AppliedOffer{
				OfferID:        oi.OfferID,
				OfferName:      oi.OfferName,
				DiscountAmount: oi.DiscountAmount,
			})
		}

		// Persist first so the generated id is available for effect keys.
		if err := uc.txnRepo.Create(ctx, tx, txn); err != nil {
			return err
		}

		for _, line := range txn.Lines {
			if err := uc.adjustStock(ctx, tx, products[line.ProductID], line.Qty, typ, false, now); err != nil {
				return err
			}
		}

		opID := uc.idGen.Generate()
		if err := uc.enqueueBalanceEffect(ctx, tx, txn, txn.BalanceImpact(), opID, 0, input.BearerToken, now); err != nil {
			return err
		}
		if err := uc.enqueueRedemptionEffects(ctx, tx, txn, opID, input.BearerToken, now); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

// UpdateTransaction reapplies a transaction: the old balance, stock and
// offer effects are reverted under the same database transaction, then
// the header is overwritten, the line and offer collections are rebuilt
// from the request, and the new effects are applied. Reverting the old
// collections strictly precedes building the new ones.
func (uc *TransactionUseCase) UpdateTransaction(ctx context.Context, businessID uuid.UUID, id int64, input PostTransactionInput) (*domain.Transaction, error) {
	newType, err := input.validate()
	if err != nil {
		return nil, err
	}

	var txn *domain.Transaction

	err = uc.retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		existing, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing.BusinessID != businessID {
			return domain.ErrForeignBusiness
		}

		now := time.Now().UTC()
		opID := uc.idGen.Generate()

		// Lock every product touched by either the old or the new lines in
		// one sorted batch, so stock reverts and reapplies serialize.
		touched := lineProductIDs(input.Lines)
		for _, line := range existing.Lines {
			touched = append(touched, line.ProductID)
		}
		var products map[int64]*domain.Product
		if len(touched) > 0 {
			products, err = uc.lockProducts(ctx, tx, businessID, touched)
			if err != nil {
				return err
			}
		}

		// 1. Revert the old balance impact.
		if err := uc.enqueueBalanceEffect(ctx, tx, existing, existing.BalanceImpact().Neg(), opID, 0, input.BearerToken, now); err != nil {
			return err
		}

		// 2. Revert the old stock impact using the pre-update type.
		for _, line := range existing.Lines {
			if err := uc.adjustStock(ctx, tx, products[line.ProductID], line.Qty, existing.Type, true, now); err != nil {
				return err
			}
		}

		// 3. Roll back every previously recorded offer.
		for seq, offer := range existing.Offers {
			payload := domain.OfferRollbackPayload{
				OfferID:       offer.OfferID,
				TransactionID: existing.ID,
				BearerToken:   input.BearerToken,
			}
			if err := uc.enqueueEffect(ctx, tx, existing.ID, domain.EffectOfferRollback, opID, seq, payload, now); err != nil {
				return err
			}
		}

		// 4. Overwrite the header and rebuild the collections.
		existing.PartyID = input.PartyID
		existing.PartyName = input.PartyName
		existing.Date = input.Date
		existing.Type = newType
		existing.SubTotal = input.SubTotal
		existing.Discount = input.Discount
		existing.TotalAmount = input.TotalAmount
		existing.PaidAmount = input.PaidAmount
		existing.PaymentMode = input.PaymentMode
		existing.ReferenceNumber = input.ReferenceNumber
		existing.Notes = input.Notes
		existing.UpdatedAt = now

		existing.Lines = nil
		if newType.HasLineItems() {
			for _, li := range input.Lines {
				existing.Lines = append(existing.Lines, domain.TransactionLine{
					ProductID: li.ProductID,
					Qty:       li.Qty,
					Price:     li.Price,
					Amount:    li.Amount,
					IsFree:    li.IsFree,
				})
				if err := uc.adjustStock(ctx, tx, products[li.ProductID], li.Qty, newType, false, now); err != nil {
					return err
				}
			}
		}

		existing.Offers = nil
		for _, oi := range input.Offers {
			existing.Offers = append(existing.Offers, domain.AppliedOffer{
				OfferID:        oi.OfferID,
				OfferName:      oi.OfferName,
				DiscountAmount: oi.DiscountAmount,
			})
		}
		if err := uc.enqueueRedemptionEffects(ctx, tx, existing, opID, input.BearerToken, now); err != nil {
			return err
		}

		// 5. Apply the new balance impact.
		if err := uc.enqueueBalanceEffect(ctx, tx, existing, existing.BalanceImpact(), opID, 1, input.BearerToken, now); err != nil {
			return err
		}

		if err := uc.txnRepo.Update(ctx, tx, existing); err != nil {
			return err
		}

		txn = existing
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

// DeleteTransaction reverts every effect of a posted transaction (stock,
// balance, offers) and removes the row.
func (uc *TransactionUseCase) DeleteTransaction(ctx context.Context, businessID uuid.UUID, id int64, bearerToken string) error {
	return uc.retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		existing, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing.BusinessID != businessID {
			return domain.ErrForeignBusiness
		}

		now := time.Now().UTC()
		opID := uc.idGen.Generate()

		if len(existing.Lines) > 0 {
			ids := make([]int64, 0, len(existing.Lines))
			for _, line := range existing.Lines {
				ids = append(ids, line.ProductID)
			}
			products, err := uc.lockProducts(ctx, tx, businessID, ids)
			if err != nil {
				return err
			}
			for _, line := range existing.Lines {
				if err := uc.adjustStock(ctx, tx, products[line.ProductID], line.Qty, existing.Type, true, now); err != nil {
					return err
				}
			}
		}

		if err := uc.enqueueBalanceEffect(ctx, tx, existing, existing.BalanceImpact().Neg(), opID, 0, bearerToken, now); err != nil {
			return err
		}

		for seq, offer := range existing.Offers {
			payload := domain.OfferRollbackPayload{
				OfferID:       offer.OfferID,
				TransactionID: existing.ID,
				BearerToken:   bearerToken,
			}
			if err := uc.enqueueEffect(ctx, tx, existing.ID, domain.EffectOfferRollback, opID, seq, payload, now); err != nil {
				return err
			}
		}

		if err := uc.txnRepo.Delete(ctx, tx, existing.ID); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

// GetTransaction retrieves one transaction with ownership verification.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, businessID uuid.UUID, id int64) (*domain.Transaction, error) {
	txn, err := uc.txnRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.BusinessID != businessID {
		return nil, domain.ErrForeignBusiness
	}
	return txn, nil
}

func newTransaction(businessID uuid.UUID, typ domain.TransactionType, input PostTransactionInput, now time.Time) *domain.Transaction {
	return &domain.Transaction{
		BusinessID:      businessID,
		PartyID:         input.PartyID,
		PartyName:       input.PartyName,
		Date:            input.Date,
		Type:            typ,
		SubTotal:        input.SubTotal,
		Discount:        input.Discount,
		TotalAmount:     input.TotalAmount,
		PaidAmount:      input.PaidAmount,
		PaymentMode:     input.PaymentMode,
		ReferenceNumber: input.ReferenceNumber,
		Notes:           input.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// lockProducts locks the given product rows in sorted id order and
// verifies existence and business ownership before anything is mutated.
func (uc *TransactionUseCase) lockProducts(ctx context.Context, tx Transaction, businessID uuid.UUID, ids []int64) (map[int64]*domain.Product, error) {
	unique := uniqueSortedIDs(ids)
	if len(unique) == 0 {
		return map[int64]*domain.Product{}, nil
	}

	products, err := uc.productRepo.GetByIDsForUpdate(ctx, tx, unique)
	if err != nil {
		return nil, err
	}
	if len(products) != len(unique) {
		return nil, domain.ErrProductNotFound
	}

	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		if p.BusinessID != businessID {
			return nil, domain.ErrForeignBusiness
		}
		byID[p.ID] = p
	}

	return byID, nil
}

func (uc *TransactionUseCase) enqueueBalanceEffect(ctx context.Context, tx Transaction, txn *domain.Transaction, amount decimal.Decimal, opID string, seq int, token string, now time.Time) error {
	if txn.PartyID == nil || amount.IsZero() {
		return nil
	}

	payload := domain.BalanceAdjustPayload{
		PartyID:     *txn.PartyID,
		Amount:      amount,
		BearerToken: token,
	}

	return uc.enqueueEffect(ctx, tx, txn.ID, domain.EffectBalanceAdjust, opID, seq, payload, now)
}

func (uc *TransactionUseCase) enqueueRedemptionEffects(ctx context.Context, tx Transaction, txn *domain.Transaction, opID, token string, now time.Time) error {
	customerID := domain.WalkInCustomerID
	if txn.PartyID != nil {
		customerID = strconv.FormatInt(*txn.PartyID, 10)
	}

	partyName := ""
	if txn.PartyName != nil {
		partyName = *txn.PartyName
	}

	for seq, offer := range txn.Offers {
		payload := domain.OfferRedemptionPayload{
			OfferID:        offer.OfferID,
			TransactionID:  txn.ID,
			CustomerID:     customerID,
			PartyName:      partyName,
			DiscountAmount: offer.DiscountAmount,
			BearerToken:    token,
		}
		if err := uc.enqueueEffect(ctx, tx, txn.ID, domain.EffectOfferRedemption, opID, seq, payload, now); err != nil {
			return err
		}
	}

	return nil
}

func (uc *TransactionUseCase) enqueueEffect(ctx context.Context, tx Transaction, txnID int64, effect domain.EffectType, opID string, seq int, payload any, now time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:             uc.idGen.Generate(),
		TransactionID:  txnID,
		EffectType:     effect,
		IdempotencyKey: domain.EffectIdempotencyKey(opID, txnID, effect, seq),
		Payload:        raw,
		CreatedAt:      now,
	})
}

func (uc *TransactionUseCase) retry(ctx context.Context, operation func() error) error {
	if uc.retrier == nil {
		return operation()
	}
	return uc.retrier.Retry(ctx, operation)
}

func lineProductIDs(lines []LineItemInput) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, li := range lines {
		ids = append(ids, li.ProductID)
	}
	return ids
}

func uniqueSortedIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))

	var unique []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	return unique
}
