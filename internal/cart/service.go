package cart

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
)

type ProductReader interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

type Service struct {
	store    Store
	products ProductReader
}

func NewService(store Store, products ProductReader) *Service {
	return &Service{store: store, products: products}
}

func (s *Service) Get(ctx context.Context, owner string) (*Cart, error) {
	return s.store.Get(ctx, owner)
}

// Add puts quantity more units of a product in the cart, capturing the
// current price and seller. The cart may never hold more units than the
// product has in stock, and sellers cannot buy their own products.
func (s *Service) Add(ctx context.Context, owner, buyerID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if buyerID != "" && product.SellerID == buyerID {
		return nil, domain.ErrOwnProduct
	}

	return s.store.Update(ctx, owner, func(c *Cart) error {
		i := c.find(productID)
		current := 0
		if i >= 0 {
			current = c.Rows[i].Quantity
		}
		if current+quantity > product.Stock {
			return &domain.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   current + quantity,
			}
		}

		if i >= 0 {
			c.Rows[i].Quantity += quantity
			return nil
		}
		c.Rows = append(c.Rows, domain.CartRow{
			ProductID:   product.ID,
			ProductName: product.Name,
			SellerID:    product.SellerID,
			UnitPrice:   product.Price,
			Quantity:    quantity,
		})
		return nil
	})
}

// SetQuantity replaces the quantity of a product already in the cart. Zero
// removes the row.
func (s *Service) SetQuantity(ctx context.Context, owner, productID string, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.Remove(ctx, owner, productID)
	}

	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Stock {
		return nil, &domain.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Stock,
			Requested:   quantity,
		}
	}

	return s.store.Update(ctx, owner, func(c *Cart) error {
		i := c.find(productID)
		if i < 0 {
			return fmt.Errorf("product %s in cart: %w", productID, domain.ErrNotFound)
		}
		c.Rows[i].Quantity = quantity
		return nil
	})
}

func (s *Service) Remove(ctx context.Context, owner, productID string) (*Cart, error) {
	return s.store.Update(ctx, owner, func(c *Cart) error {
		if !c.remove(productID) {
			return fmt.Errorf("product %s in cart: %w", productID, domain.ErrNotFound)
		}
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, owner string) error {
	return s.store.Clear(ctx, owner)
}

func (s *Service) product(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	return product, nil
}
