package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sbms/trading/internal/domain"
)

// TransactionQueryUseCase serves transaction list and search reads.
type TransactionQueryUseCase struct {
	txnRepo TransactionRepository
}

// NewTransactionQueryUseCase creates a new TransactionQueryUseCase.
func NewTransactionQueryUseCase(txnRepo TransactionRepository) *TransactionQueryUseCase {
	return &TransactionQueryUseCase{txnRepo: txnRepo}
}

// SearchTransactionsInput carries the search filters as received from
// the HTTP layer.
type SearchTransactionsInput struct {
	Query     string
	Type      string
	DateRange string
	StartDate *time.Time
	EndDate   *time.Time
}

// SearchTransactions lists transactions matching the filters, newest
// first. Type "All" (case-insensitive) disables type filtering; any
// other value must parse to one of the four transaction types.
func (uc *TransactionQueryUseCase) SearchTransactions(ctx context.Context, businessID uuid.UUID, input SearchTransactionsInput) ([]*domain.Transaction, error) {
	filter := TransactionSearchFilter{
		PartyNameQuery: strings.TrimSpace(input.Query),
	}

	if input.Type != "" && !strings.EqualFold(input.Type, "All") {
		typ, err := domain.ParseTransactionType(input.Type)
		if err != nil {
			return nil, err
		}
		filter.Type = &typ
	}

	r := domain.ResolveDateRange(input.DateRange, input.StartDate, input.EndDate, time.Now().UTC())
	filter.From = r.Start
	filter.To = r.End

	return uc.txnRepo.Search(ctx, businessID, filter)
}

// ListTransactionsByParty lists all transactions for one counterparty,
// newest first.
func (uc *TransactionQueryUseCase) ListTransactionsByParty(ctx context.Context, businessID uuid.UUID, partyID int64) ([]*domain.Transaction, error) {
	return uc.txnRepo.ListByParty(ctx, businessID, partyID)
}
