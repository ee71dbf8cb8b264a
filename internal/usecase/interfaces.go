package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sbms/trading/internal/domain"
)

// ProductRepository defines data access for products.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// GetByIDsForUpdate locks the product rows with FOR UPDATE. Callers must
	// pass ids in sorted order so concurrent postings acquire locks in the
	// same sequence.
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []int64) ([]*domain.Product, error)
	UpdateStock(ctx context.Context, tx Transaction, id int64, stock decimal.Decimal, updatedAt time.Time) error
}

// TransactionSearchFilter narrows a transaction search.
type TransactionSearchFilter struct {
	PartyNameQuery string
	Type           *domain.TransactionType
	From           time.Time
	To             time.Time
}

// TransactionRepository defines data access for the transaction aggregate
// (header plus lines plus offers).
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id int64) (*domain.Transaction, error)
	// Update rewrites the header and replaces the line and offer
	// collections wholesale.
	Update(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	Delete(ctx context.Context, tx Transaction, id int64) error
	Search(ctx context.Context, businessID uuid.UUID, filter TransactionSearchFilter) ([]*domain.Transaction, error)
	ListByParty(ctx context.Context, businessID uuid.UUID, partyID int64) ([]*domain.Transaction, error)
}

// OutboxRepository defines data access for pending side-effect events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	IncrementAttempts(ctx context.Context, id string) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// PartyLedgerClient talks to the external party service that owns
// counterparty balances.
type PartyLedgerClient interface {
	AdjustBalance(ctx context.Context, partyID int64, amount decimal.Decimal, bearerToken string) error
}

// OfferServiceClient talks to the external smart-ops service that tracks
// promotional offer usage.
type OfferServiceClient interface {
	RecordRedemption(ctx context.Context, p domain.OfferRedemptionPayload) error
	RollbackRedemption(ctx context.Context, p domain.OfferRollbackPayload) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs for outbox events and operation scopes.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation when it fails with a transient conflict
// (deadlock, serialization failure).
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IdempotencyStore handles idempotency key storage for the HTTP layer.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
