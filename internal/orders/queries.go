package orders

import (
	"cmp"
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
)

const topProductsLimit = 5

// GetBuyerOrder returns the order if it belongs to the buyer. Orders of other
// buyers are reported as not found.
func (s *Service) GetBuyerOrder(ctx context.Context, orderID, buyerID string) (*domain.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) getOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, stamp, ok := s.opts.Cache.Get(ctx, orderID)
	if ok {
		return order, nil
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}

	s.opts.Cache.Set(ctx, order, stamp)
	return order, nil
}

func (s *Service) BuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.repo.List(ctx, OrderFilter{BuyerID: buyerID, VisibleOnly: true})
}

func (s *Service) BuyerStats(ctx context.Context, buyerID string) (domain.BuyerStats, error) {
	return s.repo.BuyerStats(ctx, buyerID)
}

func (s *Service) SellerItems(ctx context.Context, sellerID string) ([]domain.SellerItem, error) {
	return s.repo.ListSellerItems(ctx, SellerItemFilter{SellerID: sellerID, VisibleOnly: true})
}

func (s *Service) SellerItem(ctx context.Context, itemID, sellerID string) (*domain.SellerItem, error) {
	items, err := s.repo.ListSellerItems(ctx, SellerItemFilter{SellerID: sellerID, ItemID: itemID})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}
	return &items[0], nil
}

// SellerStats reports revenue over every item the seller has sold, hidden
// ones included. Net revenue is what remains after the platform commission.
func (s *Service) SellerStats(ctx context.Context, sellerID string) (domain.SellerStats, error) {
	items, err := s.repo.ListSellerItems(ctx, SellerItemFilter{SellerID: sellerID})
	if err != nil {
		return domain.SellerStats{}, err
	}

	totals, err := s.repo.SellerProductTotals(ctx, sellerID)
	if err != nil {
		return domain.SellerStats{}, err
	}

	keep := decimal.NewFromInt(1).Sub(s.opts.CommissionRate)
	stats := domain.SellerStats{
		TotalProducts: totals.Count,
		TotalStock:    totals.Stock,
		GrossRevenue:  decimal.Zero,
		NetRevenue:    decimal.Zero,
		ItemsByStatus: make(map[domain.ItemStatus]int),
		TopProducts:   []domain.ProductSales{},
	}

	sales := make(map[string]*domain.ProductSales)
	for _, it := range items {
		stats.ItemsByStatus[it.Status]++
		if !it.Status.CountsAsRevenue() {
			continue
		}

		subtotal := it.Subtotal()
		stats.GrossRevenue = stats.GrossRevenue.Add(subtotal)

		ps, ok := sales[it.ProductID]
		if !ok {
			ps = &domain.ProductSales{ProductID: it.ProductID, Name: it.ProductName, NetRevenue: decimal.Zero}
			sales[it.ProductID] = ps
		}
		ps.Quantity += it.Quantity
		ps.NetRevenue = ps.NetRevenue.Add(subtotal.Mul(keep))
	}
	stats.NetRevenue = stats.GrossRevenue.Mul(keep).Round(2)

	for _, ps := range sales {
		ps.NetRevenue = ps.NetRevenue.Round(2)
		stats.TopProducts = append(stats.TopProducts, *ps)
	}
	slices.SortFunc(stats.TopProducts, func(a, b domain.ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(stats.TopProducts) > topProductsLimit {
		stats.TopProducts = stats.TopProducts[:topProductsLimit]
	}

	return stats, nil
}

// AdminOrders lists every order, hidden ones included.
func (s *Service) AdminOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.List(ctx, OrderFilter{})
}
