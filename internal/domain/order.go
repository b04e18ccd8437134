package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRejected   OrderStatus = "rejected"
)

// IsTerminal reports whether the order can no longer change and may be hidden
// from the buyer's history.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusPaid      ItemStatus = "paid"
	ItemStatusProcessed ItemStatus = "processed"
	ItemStatusShipped   ItemStatus = "shipped"
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusCancelled ItemStatus = "cancelled"
	ItemStatusRejected  ItemStatus = "rejected"
)

// IsActive reports whether the item still counts toward its order's total.
func (s ItemStatus) IsActive() bool {
	return s != ItemStatusCancelled && s != ItemStatusRejected
}

// HoldsStock reports whether units were taken from the product for this item.
func (s ItemStatus) HoldsStock() bool {
	switch s {
	case ItemStatusProcessed, ItemStatusShipped, ItemStatusCompleted:
		return true
	}
	return false
}

func (s ItemStatus) IsTerminal() bool {
	switch s {
	case ItemStatusCompleted, ItemStatusCancelled, ItemStatusRejected:
		return true
	}
	return false
}

// Revenue statuses are the ones counted as money actually spent or earned.
func (s ItemStatus) CountsAsRevenue() bool {
	switch s {
	case ItemStatusPaid, ItemStatusProcessed, ItemStatusShipped, ItemStatusCompleted:
		return true
	}
	return false
}

type ShippingInfo struct {
	RecipientName  string `json:"recipient_name"`
	RecipientPhone string `json:"recipient_phone"`
	Address        string `json:"shipping_address"`
}

type LineItem struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name,omitempty"`
	SellerID        string          `json:"seller_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Status          ItemStatus      `json:"status"`
	VisibleToSeller bool            `json:"visible_to_seller"`
}

func (i LineItem) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID                string          `json:"id"`
	BuyerID           string          `json:"buyer_id"`
	Status            OrderStatus     `json:"status"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	PaymentMethod     string          `json:"payment_method"`
	Shipping          ShippingInfo    `json:"shipping"`
	VisibleToCustomer bool            `json:"visible_to_customer"`
	CreatedAt         time.Time       `json:"created_at"`
	Items             []LineItem      `json:"items"`
}

// SellerID returns the single seller of the order, or "" for an order
// without items.
func (o *Order) SellerID() string {
	if len(o.Items) == 0 {
		return ""
	}
	return o.Items[0].SellerID
}

// SellerItem is a line item as seen from the seller's fulfillment queue.
type SellerItem struct {
	LineItem
	BuyerID     string       `json:"buyer_id"`
	OrderStatus OrderStatus  `json:"order_status"`
	Shipping    ShippingInfo `json:"shipping"`
	OrderedAt   time.Time    `json:"ordered_at"`
}

type BuyerStats struct {
	TotalOrders  int             `json:"total_orders"`
	ActiveOrders int             `json:"active_orders"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
}

type ProductSales struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	NetRevenue decimal.Decimal `json:"net_revenue"`
}

type SellerStats struct {
	TotalProducts int                `json:"total_products"`
	TotalStock    int                `json:"total_stock"`
	GrossRevenue  decimal.Decimal    `json:"gross_revenue"`
	NetRevenue    decimal.Decimal    `json:"net_revenue"`
	ItemsByStatus map[ItemStatus]int `json:"items_by_status"`
	TopProducts   []ProductSales     `json:"top_products"`
}
