// Package mocks provides hand-rolled test doubles for the usecase
// interfaces. Each mock keeps simple in-memory state and exposes
// overridable ...Func fields for error injection.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sbms/trading/internal/domain"
	"github.com/sbms/trading/internal/usecase"
)

// MockTx is a no-op database transaction.
type MockTx struct {
	Committed  bool
	RolledBack bool
}

func (t *MockTx) Commit(ctx context.Context) error { t.Committed = true; return nil }

func (t *MockTx) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// MockTxManager hands out MockTx transactions.
type MockTxManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
	Began     []*MockTx
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	tx := &MockTx{}
	m.Began = append(m.Began, tx)
	return tx, nil
}

// MockProductRepository is an in-memory ProductRepository.
type MockProductRepository struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product

	GetByIDsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ids []int64) ([]*domain.Product, error)
	UpdateStockFunc       func(ctx context.Context, tx usecase.Transaction, id int64, stock decimal.Decimal, updatedAt time.Time) error
}

func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{products: make(map[int64]*domain.Product)}
}

// Seed stores a product, keyed by its ID.
func (m *MockProductRepository) Seed(p *domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// Stock returns the current stock of a seeded product.
func (m *MockProductRepository) Stock(id int64) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products[id].CurrentStock
}

func (m *MockProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrProductNotFound
}

func (m *MockProductRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []int64) ([]*domain.Product, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockProductRepository) UpdateStock(ctx context.Context, tx usecase.Transaction, id int64, stock decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateStockFunc != nil {
		return m.UpdateStockFunc(ctx, tx, id, stock, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.CurrentStock = stock
	p.UpdatedAt = updatedAt
	return nil
}

// MockTransactionRepository is an in-memory TransactionRepository.
type MockTransactionRepository struct {
	mu     sync.RWMutex
	nextID int64
	txns   map[int64]*domain.Transaction

	CreateFunc func(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error
	SearchFunc func(ctx context.Context, businessID uuid.UUID, filter usecase.TransactionSearchFilter) ([]*domain.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{txns: make(map[int64]*domain.Transaction), nextID: 1}
}

// Count returns the number of stored transactions.
func (m *MockTransactionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txns)
}

// Seed stores a transaction, assigning an id if unset.
func (m *MockTransactionRepository) Seed(txn *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if txn.ID == 0 {
		txn.ID = m.nextID
		m.nextID++
	}
	m.txns[txn.ID] = txn
}

func cloneTransaction(txn *domain.Transaction) *domain.Transaction {
	cp := *txn
	cp.Lines = append([]domain.TransactionLine(nil), txn.Lines...)
	cp.Offers = append([]domain.AppliedOffer(nil), txn.Offers...)
	return &cp
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn.ID = m.nextID
	m.nextID++
	m.txns[txn.ID] = cloneTransaction(txn)
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if txn, ok := m.txns[id]; ok {
		return cloneTransaction(txn), nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Transaction, error) {
	return m.GetByID(ctx, id)
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[txn.ID]; !ok {
		return domain.ErrTransactionNotFound
	}
	m.txns[txn.ID] = cloneTransaction(txn)
	return nil
}

func (m *MockTransactionRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[id]; !ok {
		return domain.ErrTransactionNotFound
	}
	delete(m.txns, id)
	return nil
}

func (m *MockTransactionRepository) Search(ctx context.Context, businessID uuid.UUID, filter usecase.TransactionSearchFilter) ([]*domain.Transaction, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, businessID, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Transaction
	for _, txn := range m.txns {
		if txn.BusinessID == businessID {
			out = append(out, cloneTransaction(txn))
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) ListByParty(ctx context.Context, businessID uuid.UUID, partyID int64) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Transaction
	for _, txn := range m.txns {
		if txn.BusinessID == businessID && txn.PartyID != nil && *txn.PartyID == partyID {
			out = append(out, cloneTransaction(txn))
		}
	}
	return out, nil
}

// MockOutboxRepository is an in-memory OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	Events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository() *MockOutboxRepository { return &MockOutboxRepository{} }

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.OutboxEvent
	for _, e := range m.Events {
		if !e.Published {
			cp := *e
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.ID == id {
			e.Published = true
			at := publishedAt
			e.PublishedAt = &at
			return nil
		}
	}
	return nil
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.ID == id {
			e.Attempts++
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []*domain.OutboxEvent
	for _, e := range m.Events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	m.Events = kept
	return nil
}

// ByEffect returns stored events of one effect type, in insertion order.
func (m *MockOutboxRepository) ByEffect(effect domain.EffectType) []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.OutboxEvent
	for _, e := range m.Events {
		if e.EffectType == effect {
			out = append(out, e)
		}
	}
	return out
}

// MockIDGenerator returns sequential ids unless overridden.
type MockIDGenerator struct {
	mu           sync.Mutex
	n            int
	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator { return &MockIDGenerator{} }

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return fmt.Sprintf("id-%d", m.n)
}

// BalanceCall records one delivered balance adjustment.
type BalanceCall struct {
	PartyID int64
	Amount  decimal.Decimal
	Token   string
}

// MockPartyLedgerClient records balance adjustments.
type MockPartyLedgerClient struct {
	mu    sync.Mutex
	Calls []BalanceCall

	AdjustBalanceFunc func(ctx context.Context, partyID int64, amount decimal.Decimal, bearerToken string) error
}

func NewMockPartyLedgerClient() *MockPartyLedgerClient { return &MockPartyLedgerClient{} }

func (m *MockPartyLedgerClient) AdjustBalance(ctx context.Context, partyID int64, amount decimal.Decimal, bearerToken string) error {
	if m.AdjustBalanceFunc != nil {
		return m.AdjustBalanceFunc(ctx, partyID, amount, bearerToken)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, BalanceCall{PartyID: partyID, Amount: amount, Token: bearerToken})
	return nil
}

// MockOfferServiceClient records redemption and rollback calls.
type MockOfferServiceClient struct {
	mu          sync.Mutex
	Redemptions []domain.OfferRedemptionPayload
	Rollbacks   []domain.OfferRollbackPayload

	RecordRedemptionFunc   func(ctx context.Context, p domain.OfferRedemptionPayload) error
	RollbackRedemptionFunc func(ctx context.Context, p domain.OfferRollbackPayload) error
}

func NewMockOfferServiceClient() *MockOfferServiceClient { return &MockOfferServiceClient{} }

func (m *MockOfferServiceClient) RecordRedemption(ctx context.Context, p domain.OfferRedemptionPayload) error {
	if m.RecordRedemptionFunc != nil {
		return m.RecordRedemptionFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Redemptions = append(m.Redemptions, p)
	return nil
}

func (m *MockOfferServiceClient) RollbackRedemption(ctx context.Context, p domain.OfferRollbackPayload) error {
	if m.RollbackRedemptionFunc != nil {
		return m.RollbackRedemptionFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rollbacks = append(m.Rollbacks, p)
	return nil
}
