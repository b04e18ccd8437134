package domain

import "time"

type EventType string

const (
	EventOrderCreated      EventType = "order.created"
	EventItemStatusChanged EventType = "item.status_changed"
	EventOrderCancelled    EventType = "order.cancelled"
	EventOrderDeleted      EventType = "order.deleted"
)

// OrderEvent is published after the transaction that caused it commits.
type OrderEvent struct {
	Type        EventType   `json:"type"`
	OrderID     string      `json:"order_id"`
	ItemID      string      `json:"item_id,omitempty"`
	BuyerID     string      `json:"buyer_id,omitempty"`
	SellerID    string      `json:"seller_id,omitempty"`
	ItemStatus  ItemStatus  `json:"item_status,omitempty"`
	OrderStatus OrderStatus `json:"order_status,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// EventName satisfies messaging.Typed so the type travels as a header.
func (e OrderEvent) EventName() string { return string(e.Type) }
