package inventory

import (
	"context"
	"database/sql"
	"time"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/postgres"
)

type StockRepository struct {
	db          *sql.DB
	ledger      *Ledger
	lockTimeout time.Duration
}

func NewStockRepository(db *sql.DB, ledger *Ledger, lockTimeout time.Duration) *StockRepository {
	return &StockRepository{db: db, ledger: ledger, lockTimeout: lockTimeout}
}

func (r *StockRepository) ListAll(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seller_id, name, stock
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	levels := []domain.StockLevel{}
	for rows.Next() {
		var level domain.StockLevel
		if err := rows.Scan(&level.ProductID, &level.SellerID, &level.Name, &level.Stock); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return levels, nil
}

func (r *StockRepository) GetStock(ctx context.Context, productID string) (*domain.StockLevel, error) {
	level := &domain.StockLevel{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, seller_id, name, stock
		FROM products
		WHERE id = $1
	`, productID).Scan(&level.ProductID, &level.SellerID, &level.Name, &level.Stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return level, nil
}

// GetProduct reads a catalog row without locking it. Callers must not base
// stock decisions on the result.
func (r *StockRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, seller_id, name, stock, price
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.SellerID, &p.Name, &p.Stock, &p.Price)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}

func (r *StockRepository) SetStock(ctx context.Context, productID, sellerID string, stock int) (*domain.StockLevel, error) {
	var level *domain.StockLevel
	err := postgres.WithTx(ctx, r.db, r.lockTimeout, func(tx *sql.Tx) error {
		var err error
		level, err = r.ledger.SetStock(ctx, tx, productID, sellerID, stock)
		return err
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}
