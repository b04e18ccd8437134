package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
)

var ErrNoOwner = errors.New("cart needs a signed-in user or a session token")

// Owner returns the storage key owner for a cart. Signed-in users always get
// their own cart; guests are keyed by their session token.
func Owner(userID, sessionToken string) (string, error) {
	switch {
	case userID != "":
		return "user:" + userID, nil
	case sessionToken != "":
		return "session:" + sessionToken, nil
	}
	return "", ErrNoOwner
}

type Cart struct {
	Owner string           `json:"-"`
	Rows  []domain.CartRow `json:"rows"`
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, row := range c.Rows {
		total = total.Add(row.Subtotal())
	}
	return total
}

func (c *Cart) Count() int {
	n := 0
	for _, row := range c.Rows {
		n += row.Quantity
	}
	return n
}

func (c *Cart) find(productID string) int {
	for i, row := range c.Rows {
		if row.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(productID string) bool {
	i := c.find(productID)
	if i < 0 {
		return false
	}
	c.Rows = append(c.Rows[:i], c.Rows[i+1:]...)
	return true
}
