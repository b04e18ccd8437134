package orders

import (
	"context"
	"errors"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/cart"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
)

type CheckoutInput struct {
	BuyerID        string
	IdempotencyKey string
	Shipping       domain.ShippingInfo
	PaymentMethod  string
}

// CheckoutCart checks out the buyer's saved cart. A repeated request with the
// same idempotency key returns the orders of the first successful attempt.
// The cart is cleared only after the orders are committed.
func (s *Service) CheckoutCart(ctx context.Context, in CheckoutInput) ([]string, error) {
	if s.carts == nil {
		return nil, errors.New("cart store is not configured")
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		ids, err := s.idem.Claim(ctx, in.BuyerID, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if ids != nil {
			s.logger.Info("checkout replayed", "buyer_id", in.BuyerID, "orders", len(ids))
			return ids, nil
		}
	}

	ids, err := s.checkoutCart(ctx, in)
	if in.IdempotencyKey == "" || s.idem == nil {
		return ids, err
	}

	if err != nil {
		if rerr := s.idem.Release(ctx, in.BuyerID, in.IdempotencyKey); rerr != nil {
			s.logger.Error("failed to release idempotency key", "error", rerr, "buyer_id", in.BuyerID)
		}
		return nil, err
	}
	if cerr := s.idem.Complete(ctx, in.BuyerID, in.IdempotencyKey, ids); cerr != nil {
		s.logger.Error("failed to store idempotency result", "error", cerr, "buyer_id", in.BuyerID)
	}
	return ids, nil
}

func (s *Service) checkoutCart(ctx context.Context, in CheckoutInput) ([]string, error) {
	owner, err := cart.Owner(in.BuyerID, "")
	if err != nil {
		return nil, err
	}

	c, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	ids, err := s.Checkout(ctx, domain.CheckoutRequest{
		BuyerID:       in.BuyerID,
		Rows:          c.Rows,
		Shipping:      in.Shipping,
		PaymentMethod: in.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, owner); err != nil {
		s.logger.Error("failed to clear cart after checkout", "error", err, "owner", owner)
	}
	return ids, nil
}
