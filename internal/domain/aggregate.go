package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

type Aggregation struct {
	Status OrderStatus
	Total  decimal.Decimal
}

type statusRule struct {
	status OrderStatus
	match  func(active []ItemStatus) bool
}

// Evaluated top to bottom over the active items; the first match wins and
// paid is the fallback.
var statusPrecedence = []statusRule{
	{OrderStatusCompleted, allIn(ItemStatusCompleted)},
	{OrderStatusShipped, allIn(ItemStatusShipped, ItemStatusCompleted)},
	{OrderStatusProcessing, anyIn(ItemStatusProcessed, ItemStatusShipped, ItemStatusCompleted)},
}

// Aggregate derives an order's status and total from its line items. It is a
// pure fold: the result depends only on the multiset of item states, so it is
// order-independent and idempotent. ok is false when there are no items, in
// which case the order must be left untouched.
func Aggregate(items []LineItem) (agg Aggregation, ok bool) {
	if len(items) == 0 {
		return Aggregation{}, false
	}

	total := decimal.Zero
	active := make([]ItemStatus, 0, len(items))
	cancelled, rejected := 0, 0

	for _, item := range items {
		switch item.Status {
		case ItemStatusCancelled:
			cancelled++
			continue
		case ItemStatusRejected:
			rejected++
			continue
		}
		active = append(active, item.Status)
		total = total.Add(item.Subtotal())
	}

	if len(active) == 0 {
		// Cancellation dominates a mix of cancelled and rejected items.
		status := OrderStatusCancelled
		if cancelled == 0 && rejected == len(items) {
			status = OrderStatusRejected
		}
		return Aggregation{Status: status, Total: total}, true
	}

	for _, rule := range statusPrecedence {
		if rule.match(active) {
			return Aggregation{Status: rule.status, Total: total}, true
		}
	}

	return Aggregation{Status: OrderStatusPaid, Total: total}, true
}

func allIn(set ...ItemStatus) func([]ItemStatus) bool {
	return func(statuses []ItemStatus) bool {
		for _, s := range statuses {
			if !slices.Contains(set, s) {
				return false
			}
		}
		return true
	}
}

func anyIn(set ...ItemStatus) func([]ItemStatus) bool {
	return func(statuses []ItemStatus) bool {
		for _, s := range statuses {
			if slices.Contains(set, s) {
				return true
			}
		}
		return false
	}
}
