package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CartRow is one product line of a cart, with the price and seller captured
// when the product was added.
type CartRow struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SellerID    string          `json:"seller_id"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (r CartRow) Subtotal() decimal.Decimal {
	return r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

type CheckoutRequest struct {
	BuyerID       string
	Rows          []CartRow
	Shipping      ShippingInfo
	PaymentMethod string
}

// Validate checks everything that can be checked without touching storage.
func (r CheckoutRequest) Validate() error {
	if len(r.Rows) == 0 {
		return ErrEmptyCart
	}
	if strings.TrimSpace(r.Shipping.Address) == "" || strings.TrimSpace(r.PaymentMethod) == "" {
		return ErrMissingShipping
	}
	for _, row := range r.Rows {
		if row.ProductID == "" || row.SellerID == "" {
			return ErrMissingProduct
		}
		if row.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if row.UnitPrice.IsNegative() {
			return ErrInvalidPrice
		}
		if row.SellerID == r.BuyerID {
			return ErrOwnProduct
		}
	}
	return nil
}

// SellerGroup is a non-empty set of cart rows that all belong to one seller.
// It can only be built through NewSellerGroup or GroupBySeller.
type SellerGroup struct {
	sellerID string
	rows     []CartRow
}

func NewSellerGroup(rows []CartRow) (SellerGroup, error) {
	if len(rows) == 0 {
		return SellerGroup{}, ErrEmptyCart
	}
	seller := rows[0].SellerID
	for _, row := range rows[1:] {
		if row.SellerID != seller {
			return SellerGroup{}, ErrMixedSellers
		}
	}
	return SellerGroup{sellerID: seller, rows: append([]CartRow(nil), rows...)}, nil
}

func (g SellerGroup) SellerID() string { return g.sellerID }

func (g SellerGroup) Rows() []CartRow { return append([]CartRow(nil), g.rows...) }

func (g SellerGroup) Total() decimal.Decimal {
	total := decimal.Zero
	for _, row := range g.rows {
		total = total.Add(row.Subtotal())
	}
	return total
}

// GroupBySeller partitions cart rows into one group per distinct seller,
// keeping the order in which sellers first appear in the cart.
func GroupBySeller(rows []CartRow) []SellerGroup {
	var order []string
	bySeller := make(map[string][]CartRow)
	for _, row := range rows {
		if _, seen := bySeller[row.SellerID]; !seen {
			order = append(order, row.SellerID)
		}
		bySeller[row.SellerID] = append(bySeller[row.SellerID], row)
	}

	groups := make([]SellerGroup, 0, len(order))
	for _, seller := range order {
		groups = append(groups, SellerGroup{sellerID: seller, rows: bySeller[seller]})
	}
	return groups
}
