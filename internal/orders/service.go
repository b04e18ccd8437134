package orders

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/cart"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/inventory"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/postgres"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/telemetry"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Options struct {
	LockTimeout    time.Duration
	CommissionRate decimal.Decimal
	Publisher      EventPublisher
	Cache          ViewCache
	Carts          cart.Store
	Idempotency    Idempotency
	Metrics        *telemetry.FulfillmentMetrics
	Now            func() time.Time
}

// Service runs every order and line item mutation. Each public mutation is
// one database transaction that locks rows in a fixed order: the order row,
// then its item rows, then product rows by ascending id. The order's status
// and total are recomputed in the same transaction before it commits.
type Service struct {
	db     *sql.DB
	repo   *OrderRepository
	ledger *inventory.Ledger
	carts  cart.Store
	idem   Idempotency
	opts   Options
	logger *slog.Logger
}

func NewService(db *sql.DB, repo *OrderRepository, ledger *inventory.Ledger, opts Options, logger *slog.Logger) *Service {
	if opts.Cache == nil {
		opts.Cache = noopCache{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		db:     db,
		repo:   repo,
		ledger: ledger,
		carts:  opts.Carts,
		idem:   opts.Idempotency,
		opts:   opts,
		logger: logger,
	}
}

func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return postgres.WithTx(ctx, s.db, s.opts.LockTimeout, fn)
}

// Checkout turns a cart into one paid order per seller. Either every order is
// created or none is. Stock is checked under lock but not deducted; sellers
// deduct it when they accept an item.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) ([]string, error) {
	if err := req.Validate(); err != nil {
		s.opts.Metrics.Checkout(ctx, "invalid", 0)
		return nil, err
	}

	groups := domain.GroupBySeller(req.Rows)
	now := s.opts.Now().UTC()
	var created []*domain.Order

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		created = created[:0]

		needed := make(map[string]int)
		ids := make([]string, 0, len(req.Rows))
		for _, row := range req.Rows {
			if _, ok := needed[row.ProductID]; !ok {
				ids = append(ids, row.ProductID)
			}
			needed[row.ProductID] += row.Quantity
		}

		products, err := s.ledger.LockMany(ctx, tx, ids)
		if err != nil {
			return err
		}

		for _, row := range req.Rows {
			p := products[row.ProductID]
			if p.SellerID != row.SellerID {
				return domain.ErrSellerMismatch
			}
			if p.Stock < needed[p.ID] {
				return &domain.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.Stock,
					Requested:   needed[p.ID],
				}
			}
		}

		for _, group := range groups {
			order := &domain.Order{
				ID:                uuid.New().String(),
				BuyerID:           req.BuyerID,
				Status:            domain.OrderStatusPaid,
				TotalPrice:        group.Total(),
				PaymentMethod:     req.PaymentMethod,
				Shipping:          req.Shipping,
				VisibleToCustomer: true,
				CreatedAt:         now,
			}
			if err := s.repo.InsertOrder(ctx, tx, order); err != nil {
				return err
			}

			for _, row := range group.Rows() {
				item := domain.LineItem{
					ID:              uuid.New().String(),
					OrderID:         order.ID,
					ProductID:       row.ProductID,
					ProductName:     products[row.ProductID].Name,
					SellerID:        products[row.ProductID].SellerID,
					Quantity:        row.Quantity,
					PriceAtPurchase: row.UnitPrice,
					Status:          domain.ItemStatusPending,
					VisibleToSeller: true,
				}
				if err := s.repo.InsertItem(ctx, tx, &item); err != nil {
					return err
				}
				order.Items = append(order.Items, item)
			}
			created = append(created, order)
		}
		return nil
	})
	if err != nil {
		s.opts.Metrics.Checkout(ctx, outcome(err), 0)
		return nil, err
	}

	orderIDs := make([]string, 0, len(created))
	for _, order := range created {
		orderIDs = append(orderIDs, order.ID)
		s.publish(ctx, domain.OrderEvent{
			Type:        domain.EventOrderCreated,
			OrderID:     order.ID,
			BuyerID:     order.BuyerID,
			SellerID:    order.SellerID(),
			OrderStatus: order.Status,
			OccurredAt:  now,
		})
	}

	s.opts.Metrics.Checkout(ctx, "success", len(orderIDs))
	s.logger.Info("checkout completed", "buyer_id", req.BuyerID, "orders", len(orderIDs))
	return orderIDs, nil
}

func (s *Service) AcceptItem(ctx context.Context, itemID, sellerID string) (*domain.LineItem, error) {
	return s.transitionItem(ctx, itemID, sellerID, domain.ActionAccept)
}

func (s *Service) ShipItem(ctx context.Context, itemID, sellerID string) (*domain.LineItem, error) {
	return s.transitionItem(ctx, itemID, sellerID, domain.ActionShip)
}

func (s *Service) RejectItem(ctx context.Context, itemID, sellerID string) (*domain.LineItem, error) {
	return s.transitionItem(ctx, itemID, sellerID, domain.ActionReject)
}

func (s *Service) CancelItem(ctx context.Context, itemID, buyerID string) (*domain.LineItem, error) {
	return s.transitionItem(ctx, itemID, buyerID, domain.ActionCancel)
}

func (s *Service) CompleteItem(ctx context.Context, itemID, buyerID string) (*domain.LineItem, error) {
	return s.transitionItem(ctx, itemID, buyerID, domain.ActionComplete)
}

func (s *Service) transitionItem(ctx context.Context, itemID, actorID string, action domain.Action) (*domain.LineItem, error) {
	actor, ok := domain.ActorFor(action)
	if !ok {
		return nil, errors.New("unknown action " + string(action))
	}

	var (
		item   *domain.LineItem
		order  *domain.Order
		effect domain.StockEffect
		agg    domain.Aggregation
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		orderID, err := s.repo.OrderIDForItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		order, err = s.repo.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		item, err = s.repo.LockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.OrderID != order.ID || !owns(actor, actorID, order, item) {
			return domain.ErrNotFound
		}

		var next domain.ItemStatus
		next, effect, err = domain.Transition(item.Status, action)
		if err != nil {
			return err
		}

		if err := s.moveStock(ctx, tx, item, effect); err != nil {
			return err
		}
		if err := s.repo.UpdateItemStatus(ctx, tx, item.ID, next); err != nil {
			return err
		}
		item.Status = next

		agg, err = s.recompute(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		s.opts.Metrics.Transition(ctx, string(action), outcome(err))
		return nil, err
	}

	s.opts.Metrics.Transition(ctx, string(action), "success")
	s.recordStock(ctx, effect, item.Quantity)
	s.opts.Cache.Invalidate(ctx, order.ID)
	s.publish(ctx, domain.OrderEvent{
		Type:        domain.EventItemStatusChanged,
		OrderID:     order.ID,
		ItemID:      item.ID,
		BuyerID:     order.BuyerID,
		SellerID:    item.SellerID,
		ItemStatus:  item.Status,
		OrderStatus: agg.Status,
		OccurredAt:  s.opts.Now().UTC(),
	})

	s.logger.Info("item status changed", "item_id", item.ID, "order_id", order.ID, "action", action, "status", item.Status, "order_status", agg.Status)
	return item, nil
}

// CancelOrder cancels every item of the buyer's order that can still be
// cancelled, returning stock for items that already held it.
func (s *Service) CancelOrder(ctx context.Context, orderID, buyerID string) (*domain.Order, error) {
	var (
		order    *domain.Order
		restored int
		agg      domain.Aggregation
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		restored = 0

		var err error
		order, err = s.repo.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return domain.ErrNotFound
		}

		items, err := s.repo.LockItems(ctx, tx, orderID)
		if err != nil {
			return err
		}

		var cancellable []domain.LineItem
		for _, item := range items {
			if domain.CanTransition(item.Status, domain.ActionCancel) {
				cancellable = append(cancellable, item)
			}
		}
		if len(cancellable) == 0 {
			return domain.ErrInvalidTransition
		}

		for _, item := range sortedByProduct(cancellable) {
			next, effect, err := domain.Transition(item.Status, domain.ActionCancel)
			if err != nil {
				return err
			}
			if err := s.moveStock(ctx, tx, &item, effect); err != nil {
				return err
			}
			if effect == domain.StockRestore {
				restored += item.Quantity
			}
			if err := s.repo.UpdateItemStatus(ctx, tx, item.ID, next); err != nil {
				return err
			}
		}

		agg, err = s.recompute(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		s.opts.Metrics.Transition(ctx, "cancel_order", outcome(err))
		return nil, err
	}

	order.Status = agg.Status
	order.TotalPrice = agg.Total

	s.opts.Metrics.Transition(ctx, "cancel_order", "success")
	s.opts.Metrics.Stock(ctx, domain.StockRestore.String(), restored)
	s.opts.Cache.Invalidate(ctx, order.ID)
	s.publish(ctx, domain.OrderEvent{
		Type:        domain.EventOrderCancelled,
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		OrderStatus: agg.Status,
		OccurredAt:  s.opts.Now().UTC(),
	})

	s.logger.Info("order cancelled", "order_id", order.ID, "buyer_id", buyerID, "restored_units", restored)
	return s.GetBuyerOrder(ctx, order.ID, buyerID)
}

// HideOrderHistory removes a finished order from the buyer's listings.
func (s *Service) HideOrderHistory(ctx context.Context, orderID, buyerID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		order, err := s.repo.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return domain.ErrNotFound
		}
		if !order.Status.IsTerminal() {
			return domain.ErrNotTerminal
		}
		return s.repo.HideOrder(ctx, tx, orderID)
	})
	if err != nil {
		return err
	}

	s.opts.Cache.Invalidate(ctx, orderID)
	s.logger.Info("order hidden from buyer", "order_id", orderID, "buyer_id", buyerID)
	return nil
}

// HideSellerItem removes a finished line item from the seller's queue.
func (s *Service) HideSellerItem(ctx context.Context, itemID, sellerID string) error {
	var orderID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		orderID, err = s.repo.OrderIDForItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if _, err := s.repo.LockOrder(ctx, tx, orderID); err != nil {
			return err
		}
		item, err := s.repo.LockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.SellerID != sellerID {
			return domain.ErrNotFound
		}
		if !item.Status.IsTerminal() {
			return domain.ErrNotTerminal
		}
		return s.repo.HideItem(ctx, tx, itemID)
	})
	if err != nil {
		return err
	}

	s.opts.Cache.Invalidate(ctx, orderID)
	s.logger.Info("item hidden from seller", "item_id", itemID, "seller_id", sellerID)
	return nil
}

// HardDeleteOrder deletes an order and its items outright. It bypasses the
// item state machine, so stock held by the items is not returned.
func (s *Service) HardDeleteOrder(ctx context.Context, orderID string) error {
	var order *domain.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.repo.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		return s.repo.DeleteOrder(ctx, tx, orderID)
	})
	if err != nil {
		return err
	}

	s.opts.Cache.Invalidate(ctx, orderID)
	s.publish(ctx, domain.OrderEvent{
		Type:       domain.EventOrderDeleted,
		OrderID:    orderID,
		BuyerID:    order.BuyerID,
		OccurredAt: s.opts.Now().UTC(),
	})
	s.logger.Warn("order deleted by admin", "order_id", orderID)
	return nil
}

func (s *Service) moveStock(ctx context.Context, tx *sql.Tx, item *domain.LineItem, effect domain.StockEffect) error {
	switch effect {
	case domain.StockDeduct:
		return s.ledger.Deduct(ctx, tx, item.ProductID, item.Quantity)
	case domain.StockRestore:
		return s.ledger.Restore(ctx, tx, item.ProductID, item.Quantity)
	}
	return nil
}

// recompute derives the order's status and total from its items and stores
// them. The caller must hold the order row lock.
func (s *Service) recompute(ctx context.Context, tx *sql.Tx, orderID string) (domain.Aggregation, error) {
	items, err := s.repo.ItemsForOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Aggregation{}, err
	}

	agg, ok := domain.Aggregate(items)
	if !ok {
		return domain.Aggregation{}, nil
	}

	return agg, s.repo.UpdateOrderAggregate(ctx, tx, orderID, agg)
}

func (s *Service) recordStock(ctx context.Context, effect domain.StockEffect, units int) {
	if effect == domain.StockNone {
		return
	}
	s.opts.Metrics.Stock(ctx, effect.String(), units)
}

func (s *Service) publish(ctx context.Context, event domain.OrderEvent) {
	if s.opts.Publisher == nil {
		return
	}
	if err := s.opts.Publisher.Publish(ctx, event.OrderID, event); err != nil {
		s.logger.Error("failed to publish order event", "error", err, "type", event.Type, "order_id", event.OrderID)
	}
}

func owns(actor domain.Actor, actorID string, order *domain.Order, item *domain.LineItem) bool {
	switch actor {
	case domain.ActorBuyer:
		return order.BuyerID == actorID
	case domain.ActorSeller:
		return item.SellerID == actorID
	}
	return false
}

func sortedByProduct(items []domain.LineItem) []domain.LineItem {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b domain.LineItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return out
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflictRetry):
		return "conflict"
	}
	return "error"
}
