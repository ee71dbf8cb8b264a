package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbms/trading/internal/domain"
	"github.com/sbms/trading/internal/usecase"
)

const transactionColumns = `transaction_id, business_id, party_id, party_name,
	transaction_date, type, sub_total, discount, total_amount, paid_amount,
	payment_mode, reference_number, notes, created_at, updated_at`

// TransactionRepository implements usecase.TransactionRepository for the
// transaction aggregate (header, lines, offers).
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create inserts the header and its child collections, setting the
// generated id on txn.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	pgxTx := tx.(*Tx).PgxTx()

	err := pgxTx.QueryRow(ctx,
		`INSERT INTO transactions (business_id, party_id, party_name, transaction_date, type,
			sub_total, discount, total_amount, paid_amount,
			payment_mode, reference_number, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING transaction_id`,
		txn.BusinessID, txn.PartyID, txn.PartyName, txn.Date, string(txn.Type),
		decimalToNumeric(txn.SubTotal), decimalToNumeric(txn.Discount),
		decimalToNumeric(txn.TotalAmount), decimalToNumeric(txn.PaidAmount),
		txn.PaymentMode, txn.ReferenceNumber, txn.Notes, txn.CreatedAt, txn.UpdatedAt,
	).Scan(&txn.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	return r.insertChildren(ctx, pgxTx, txn)
}

// GetByID retrieves a transaction with its lines and offers.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.get(ctx, r.pool, id, false)
}

// GetByIDForUpdate retrieves a transaction with a FOR UPDATE lock on the
// header row.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Transaction, error) {
	return r.get(ctx, tx.(*Tx).PgxTx(), id, true)
}

// Update rewrites the header and replaces both child collections.
func (r *TransactionRepository) Update(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx,
		`UPDATE transactions SET party_id = $2, party_name = $3, transaction_date = $4,
			type = $5, sub_total = $6, discount = $7, total_amount = $8, paid_amount = $9,
			payment_mode = $10, reference_number = $11, notes = $12, updated_at = $13
		 WHERE transaction_id = $1`,
		txn.ID, txn.PartyID, txn.PartyName, txn.Date, string(txn.Type),
		decimalToNumeric(txn.SubTotal), decimalToNumeric(txn.Discount),
		decimalToNumeric(txn.TotalAmount), decimalToNumeric(txn.PaidAmount),
		txn.PaymentMode, txn.ReferenceNumber, txn.Notes, txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", txn.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}

	// Clear-and-rebuild: the collections are replaced wholesale.
	if _, err := pgxTx.Exec(ctx, `DELETE FROM transaction_products WHERE transaction_id = $1`, txn.ID); err != nil {
		return fmt.Errorf("clear transaction lines: %w", err)
	}
	if _, err := pgxTx.Exec(ctx, `DELETE FROM transaction_offers WHERE transaction_id = $1`, txn.ID); err != nil {
		return fmt.Errorf("clear transaction offers: %w", err)
	}

	return r.insertChildren(ctx, pgxTx, txn)
}

// Delete removes the header; lines and offers cascade.
func (r *TransactionRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `DELETE FROM transactions WHERE transaction_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// Search lists transactions matching the filter, newest first.
func (r *TransactionRepository) Search(ctx context.Context, businessID uuid.UUID, filter usecase.TransactionSearchFilter) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		 WHERE business_id = $1
		   AND LOWER(COALESCE(party_name, '')) LIKE '%' || LOWER($2) || '%'
		   AND transaction_date BETWEEN $3 AND $4`
	args := []any{businessID, filter.PartyNameQuery, filter.From, filter.To}

	if filter.Type != nil {
		query += ` AND type = $5`
		args = append(args, string(*filter.Type))
	}
	query += ` ORDER BY transaction_date DESC, created_at DESC`

	return r.list(ctx, query, args...)
}

// ListByParty lists all transactions for one counterparty, newest first.
func (r *TransactionRepository) ListByParty(ctx context.Context, businessID uuid.UUID, partyID int64) ([]*domain.Transaction, error) {
	return r.list(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE business_id = $1 AND party_id = $2
		 ORDER BY transaction_date DESC, created_at DESC`,
		businessID, partyID)
}

func (r *TransactionRepository) get(ctx context.Context, q querier, id int64, forUpdate bool) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	txn, err := scanTransaction(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}

	if err := r.attachChildren(ctx, q, []*domain.Transaction{txn}); err != nil {
		return nil, err
	}

	return txn, nil
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachChildren(ctx, r.pool, txns); err != nil {
		return nil, err
	}

	return txns, nil
}

func (r *TransactionRepository) insertChildren(ctx context.Context, q querier, txn *domain.Transaction) error {
	for i := range txn.Lines {
		line := &txn.Lines[i]
		err := q.QueryRow(ctx,
			`INSERT INTO transaction_products (transaction_id, business_id, product_id, qty, price, amount, is_free)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			txn.ID, txn.BusinessID, line.ProductID,
			decimalToNumeric(line.Qty), decimalToNumeric(line.Price),
			decimalToNumeric(line.Amount), line.IsFree,
		).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("insert transaction line: %w", err)
		}
	}

	for i := range txn.Offers {
		offer := &txn.Offers[i]
		err := q.QueryRow(ctx,
			`INSERT INTO transaction_offers (transaction_id, business_id, offer_id, offer_name, discount_amount)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			txn.ID, txn.BusinessID, offer.OfferID, offer.OfferName,
			decimalToNumeric(offer.DiscountAmount),
		).Scan(&offer.ID)
		if err != nil {
			return fmt.Errorf("insert transaction offer: %w", err)
		}
	}

	return nil
}

func (r *TransactionRepository) attachChildren(ctx context.Context, q querier, txns []*domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(txns))
	byID := make(map[int64]*domain.Transaction, len(txns))
	for _, txn := range txns {
		ids = append(ids, txn.ID)
		byID[txn.ID] = txn
	}

	rows, err := q.Query(ctx,
		`SELECT tp.id, tp.transaction_id, tp.product_id, COALESCE(p.name, ''),
			tp.qty, tp.price, tp.amount, tp.is_free
		 FROM transaction_products tp
		 LEFT JOIN products p ON p.product_id = tp.product_id
		 WHERE tp.transaction_id = ANY($1) ORDER BY tp.id`, ids)
	if err != nil {
		return fmt.Errorf("load transaction lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line              domain.TransactionLine
			txnID             int64
			qty, price, total pgtype.Numeric
		)
		if err := rows.Scan(&line.ID, &txnID, &line.ProductID, &line.ProductName, &qty, &price, &total, &line.IsFree); err != nil {
			return err
		}
		line.Qty = numericToDecimal(qty)
		line.Price = numericToDecimal(price)
		line.Amount = numericToDecimal(total)
		byID[txnID].Lines = append(byID[txnID].Lines, line)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	offerRows, err := q.Query(ctx,
		`SELECT id, transaction_id, offer_id, offer_name, discount_amount
		 FROM transaction_offers WHERE transaction_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load transaction offers: %w", err)
	}
	defer offerRows.Close()

	for offerRows.Next() {
		var (
			offer    domain.AppliedOffer
			txnID    int64
			discount pgtype.Numeric
		)
		if err := offerRows.Scan(&offer.ID, &txnID, &offer.OfferID, &offer.OfferName, &discount); err != nil {
			return err
		}
		offer.DiscountAmount = numericToDecimal(discount)
		byID[txnID].Offers = append(byID[txnID].Offers, offer)
	}

	return offerRows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn                                      domain.Transaction
		typ                                      string
		subTotal, discount, totalAmt, paidAmount pgtype.Numeric
	)

	err := row.Scan(
		&txn.ID, &txn.BusinessID, &txn.PartyID, &txn.PartyName,
		&txn.Date, &typ, &subTotal, &discount, &totalAmt, &paidAmount,
		&txn.PaymentMode, &txn.ReferenceNumber, &txn.Notes,
		&txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Type = domain.TransactionType(typ)
	txn.SubTotal = numericToDecimal(subTotal)
	txn.Discount = numericToDecimal(discount)
	txn.TotalAmount = numericToDecimal(totalAmt)
	txn.PaidAmount = numericToDecimal(paidAmount)

	return &txn, nil
}
