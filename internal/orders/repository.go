package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/postgres"
)

// OrderRepository holds the SQL for orders and their line items. Methods
// taking a postgres.Queryer are meant to run inside a caller's transaction;
// the ones ending in Lock take row locks that last until it ends.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) InsertOrder(ctx context.Context, q postgres.Queryer, order *domain.Order) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, status, total_price, payment_method,
			recipient_name, recipient_phone, shipping_address, visible_to_customer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
	`, order.ID, order.BuyerID, order.Status, order.TotalPrice, order.PaymentMethod,
		order.Shipping.RecipientName, order.Shipping.RecipientPhone, order.Shipping.Address, order.CreatedAt)
	return err
}

func (r *OrderRepository) InsertItem(ctx context.Context, q postgres.Queryer, item *domain.LineItem) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, seller_id, quantity, price_at_purchase, status, visible_to_seller)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
	`, item.ID, item.OrderID, item.ProductID, item.SellerID, item.Quantity, item.PriceAtPurchase, item.Status)
	return err
}

func (r *OrderRepository) OrderIDForItem(ctx context.Context, q postgres.Queryer, itemID string) (string, error) {
	var orderID string
	err := q.QueryRowContext(ctx, `SELECT order_id FROM order_items WHERE id = $1`, itemID).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}
	return orderID, err
}

func (r *OrderRepository) LockOrder(ctx context.Context, q postgres.Queryer, orderID string) (*domain.Order, error) {
	order := &domain.Order{}
	err := q.QueryRowContext(ctx, `
		SELECT id, buyer_id, status, total_price, visible_to_customer
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&order.ID, &order.BuyerID, &order.Status, &order.TotalPrice, &order.VisibleToCustomer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) LockItem(ctx context.Context, q postgres.Queryer, itemID string) (*domain.LineItem, error) {
	item := &domain.LineItem{}
	err := q.QueryRowContext(ctx, `
		SELECT id, order_id, product_id, seller_id, quantity, price_at_purchase, status, visible_to_seller
		FROM order_items
		WHERE id = $1
		FOR UPDATE
	`, itemID).Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SellerID,
		&item.Quantity, &item.PriceAtPurchase, &item.Status, &item.VisibleToSeller)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// LockItems locks every item of an order in id order.
func (r *OrderRepository) LockItems(ctx context.Context, q postgres.Queryer, orderID string) ([]domain.LineItem, error) {
	return r.scanItems(q.QueryContext(ctx, `
		SELECT id, order_id, product_id, seller_id, quantity, price_at_purchase, status, visible_to_seller
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
		FOR UPDATE
	`, orderID))
}

func (r *OrderRepository) ItemsForOrder(ctx context.Context, q postgres.Queryer, orderID string) ([]domain.LineItem, error) {
	return r.scanItems(q.QueryContext(ctx, `
		SELECT id, order_id, product_id, seller_id, quantity, price_at_purchase, status, visible_to_seller
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID))
}

func (r *OrderRepository) scanItems(rows *sql.Rows, err error) ([]domain.LineItem, error) {
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SellerID,
			&item.Quantity, &item.PriceAtPurchase, &item.Status, &item.VisibleToSeller); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *OrderRepository) UpdateItemStatus(ctx context.Context, q postgres.Queryer, itemID string, status domain.ItemStatus) error {
	_, err := q.ExecContext(ctx, `UPDATE order_items SET status = $2 WHERE id = $1`, itemID, status)
	return err
}

func (r *OrderRepository) UpdateOrderAggregate(ctx context.Context, q postgres.Queryer, orderID string, agg domain.Aggregation) error {
	_, err := q.ExecContext(ctx, `
		UPDATE orders SET status = $2, total_price = $3
		WHERE id = $1
	`, orderID, agg.Status, agg.Total)
	return err
}

func (r *OrderRepository) HideOrder(ctx context.Context, q postgres.Queryer, orderID string) error {
	_, err := q.ExecContext(ctx, `UPDATE orders SET visible_to_customer = FALSE WHERE id = $1`, orderID)
	return err
}

func (r *OrderRepository) HideItem(ctx context.Context, q postgres.Queryer, itemID string) error {
	_, err := q.ExecContext(ctx, `UPDATE order_items SET visible_to_seller = FALSE WHERE id = $1`, itemID)
	return err
}

// DeleteOrder removes the order; its items go with it through the foreign key.
func (r *OrderRepository) DeleteOrder(ctx context.Context, q postgres.Queryer, orderID string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	orders, err := r.List(ctx, OrderFilter{OrderID: id})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

type OrderFilter struct {
	OrderID     string
	BuyerID     string
	VisibleOnly bool
}

// List loads orders matching the filter, newest first, together with their
// items. Both queries read one snapshot, so an order's status and total always
// agree with the items returned alongside it.
func (r *OrderRepository) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	var orders []domain.Order
	err := postgres.WithSnapshot(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		orders, err = listOrders(ctx, tx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func listOrders(ctx context.Context, q postgres.Queryer, f OrderFilter) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, buyer_id, status, total_price, payment_method,
			recipient_name, recipient_phone, shipping_address, visible_to_customer, created_at
		FROM orders
		WHERE ($1 = '' OR id = $1)
			AND ($2 = '' OR buyer_id = $2)
			AND (NOT $3 OR visible_to_customer)
		ORDER BY created_at DESC, id
	`, f.OrderID, f.BuyerID, f.VisibleOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.BuyerID, &order.Status, &order.TotalPrice, &order.PaymentMethod,
			&order.Shipping.RecipientName, &order.Shipping.RecipientPhone, &order.Shipping.Address,
			&order.VisibleToCustomer, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.LineItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := q.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.name, ''), oi.seller_id,
			oi.quantity, oi.price_at_purchase, oi.status, oi.visible_to_seller
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.LineItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.SellerID,
			&item.Quantity, &item.PriceAtPurchase, &item.Status, &item.VisibleToSeller); err != nil {
			return nil, err
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) BuyerStats(ctx context.Context, buyerID string) (domain.BuyerStats, error) {
	var stats domain.BuyerStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status NOT IN ('completed', 'cancelled', 'rejected'))
		FROM orders
		WHERE buyer_id = $1 AND visible_to_customer
	`, buyerID).Scan(&stats.TotalOrders, &stats.ActiveOrders)
	if err != nil {
		return stats, err
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(oi.price_at_purchase * oi.quantity), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.buyer_id = $1 AND o.visible_to_customer
			AND oi.status IN ('paid', 'processed', 'shipped', 'completed')
	`, buyerID).Scan(&stats.TotalSpent)
	return stats, err
}

type SellerItemFilter struct {
	SellerID    string
	ItemID      string
	VisibleOnly bool
}

func (r *OrderRepository) ListSellerItems(ctx context.Context, f SellerItemFilter) ([]domain.SellerItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.name, ''), oi.seller_id,
			oi.quantity, oi.price_at_purchase, oi.status, oi.visible_to_seller,
			o.buyer_id, o.status, o.recipient_name, o.recipient_phone, o.shipping_address, o.created_at
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.seller_id = $1
			AND ($2 = '' OR oi.id = $2)
			AND (NOT $3 OR oi.visible_to_seller)
		ORDER BY o.created_at DESC, oi.id
	`, f.SellerID, f.ItemID, f.VisibleOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.SellerItem{}
	for rows.Next() {
		var it domain.SellerItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.SellerID,
			&it.Quantity, &it.PriceAtPurchase, &it.Status, &it.VisibleToSeller,
			&it.BuyerID, &it.OrderStatus, &it.Shipping.RecipientName, &it.Shipping.RecipientPhone,
			&it.Shipping.Address, &it.OrderedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type productTotals struct {
	Count int
	Stock int
}

func (r *OrderRepository) SellerProductTotals(ctx context.Context, sellerID string) (productTotals, error) {
	var t productTotals
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(stock), 0)
		FROM products
		WHERE seller_id = $1
	`, sellerID).Scan(&t.Count, &t.Stock)
	return t, err
}
