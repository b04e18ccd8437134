package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/postgres"
)

// Ledger is the only writer of products.stock. Every method runs inside the
// caller's transaction and takes the product row lock before touching stock,
// so the lock is held until the caller commits or rolls back.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Lock(ctx context.Context, tx postgres.Queryer, productID string) (*domain.Product, error) {
	p := &domain.Product{}
	err := tx.QueryRowContext(ctx, `
		SELECT id, seller_id, name, stock, price
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&p.ID, &p.SellerID, &p.Name, &p.Stock, &p.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

// LockMany locks the given products in ascending id order, the same order
// every other stock writer uses, so concurrent checkouts cannot deadlock.
func (l *Ledger) LockMany(ctx context.Context, tx postgres.Queryer, productIDs []string) (map[string]*domain.Product, error) {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows, err := tx.QueryContext(ctx, `
		SELECT id, seller_id, name, stock, price
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		p := &domain.Product{}
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Stock, &p.Price); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
		}
	}

	return products, nil
}

// Deduct removes quantity units from the product. It fails with
// *domain.InsufficientStockError and leaves stock untouched when fewer units
// are available.
func (l *Ledger) Deduct(ctx context.Context, tx postgres.Queryer, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	p, err := l.Lock(ctx, tx, productID)
	if err != nil {
		return err
	}
	if p.Stock < quantity {
		return &domain.InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: p.Stock, Requested: quantity}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return &domain.InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: p.Stock, Requested: quantity}
	}

	return nil
}

func (l *Ledger) Restore(ctx context.Context, tx postgres.Queryer, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	if _, err := l.Lock(ctx, tx, productID); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1
	`, productID, quantity)
	return err
}

// SetStock overwrites the stock level of a product owned by sellerID.
// Products of other sellers are reported as not found.
func (l *Ledger) SetStock(ctx context.Context, tx postgres.Queryer, productID, sellerID string, stock int) (*domain.StockLevel, error) {
	if stock < 0 {
		return nil, domain.ErrNegativeStock
	}

	p, err := l.Lock(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if p.SellerID != sellerID {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = $2
		WHERE id = $1
	`, productID, stock); err != nil {
		return nil, err
	}

	return &domain.StockLevel{ProductID: p.ID, SellerID: p.SellerID, Name: p.Name, Stock: stock}, nil
}
