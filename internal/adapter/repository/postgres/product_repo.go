package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sbms/trading/internal/domain"
	"github.com/sbms/trading/internal/usecase"
)

const productColumns = `product_id, business_id, name, category_id, unit_id,
	current_stock, min_stock, buy_price, sell_price, mrp, gst_rate,
	hsn_code, sku, created_at, updated_at`

// ProductRepository implements usecase.ProductRepository.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID retrieves a product by ID.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE product_id = $1`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	return p, nil
}

// GetByIDsForUpdate locks and retrieves multiple products. Rows come back
// in id order, matching the lock acquisition order.
func (r *ProductRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []int64) ([]*domain.Product, error) {
	pgxTx := tx.(*Tx).PgxTx()

	rows, err := pgxTx.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE product_id = ANY($1)
		 ORDER BY product_id
		 FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// UpdateStock persists a new stock level for one product.
func (r *ProductRepository) UpdateStock(ctx context.Context, tx usecase.Transaction, id int64, stock decimal.Decimal, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx,
		`UPDATE products SET current_stock = $2, updated_at = $3 WHERE product_id = $1`,
		id, decimalToNumeric(stock), updatedAt)
	if err != nil {
		return fmt.Errorf("update stock for product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p            domain.Product
		currentStock pgtype.Numeric
		minStock     pgtype.Numeric
		buyPrice     pgtype.Numeric
		sellPrice    pgtype.Numeric
		mrp          pgtype.Numeric
		gstRate      pgtype.Numeric
	)

	err := row.Scan(
		&p.ID, &p.BusinessID, &p.Name, &p.CategoryID, &p.UnitID,
		&currentStock, &minStock, &buyPrice, &sellPrice, &mrp, &gstRate,
		&p.HSNCode, &p.SKU, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.CurrentStock = numericToDecimal(currentStock)
	p.MinStock = numericToDecimal(minStock)
	p.BuyPrice = numericToDecimal(buyPrice)
	p.SellPrice = numericToDecimal(sellPrice)
	p.MRP = numericToDecimal(mrp)
	p.GSTRate = numericToDecimal(gstRate)

	return &p, nil
}
