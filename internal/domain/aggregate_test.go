package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(status ItemStatus, qty int, price string) LineItem {
	return LineItem{Status: status, Quantity: qty, PriceAtPurchase: decimal.RequireFromString(price)}
}

func TestAggregate_NoItems(t *testing.T) {
	_, ok := Aggregate(nil)
	assert.False(t, ok)
}

func TestAggregate_Status(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItem
		want  OrderStatus
		total string
	}{
		{
			name:  "all pending is paid",
			items: []LineItem{item(ItemStatusPending, 2, "10"), item(ItemStatusPending, 1, "5")},
			want:  OrderStatusPaid,
			total: "25",
		},
		{
			name:  "one processed is processing",
			items: []LineItem{item(ItemStatusProcessed, 2, "10"), item(ItemStatusPending, 1, "5")},
			want:  OrderStatusProcessing,
			total: "25",
		},
		{
			name:  "shipped and completed is shipped",
			items: []LineItem{item(ItemStatusShipped, 1, "10"), item(ItemStatusCompleted, 1, "5")},
			want:  OrderStatusShipped,
			total: "15",
		},
		{
			name:  "all completed is completed",
			items: []LineItem{item(ItemStatusCompleted, 1, "10"), item(ItemStatusCompleted, 3, "1.50")},
			want:  OrderStatusCompleted,
			total: "14.5",
		},
		{
			name:  "cancelled items drop out of the total",
			items: []LineItem{item(ItemStatusCancelled, 1, "10"), item(ItemStatusShipped, 1, "5")},
			want:  OrderStatusShipped,
			total: "5",
		},
		{
			name:  "rejected and completed is completed",
			items: []LineItem{item(ItemStatusRejected, 4, "10"), item(ItemStatusCompleted, 1, "5")},
			want:  OrderStatusCompleted,
			total: "5",
		},
		{
			name:  "all rejected is rejected",
			items: []LineItem{item(ItemStatusRejected, 1, "10"), item(ItemStatusRejected, 1, "5")},
			want:  OrderStatusRejected,
			total: "0",
		},
		{
			name:  "all cancelled is cancelled",
			items: []LineItem{item(ItemStatusCancelled, 1, "10")},
			want:  OrderStatusCancelled,
			total: "0",
		},
		{
			name:  "cancelled wins over rejected",
			items: []LineItem{item(ItemStatusRejected, 1, "10"), item(ItemStatusCancelled, 1, "5")},
			want:  OrderStatusCancelled,
			total: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, ok := Aggregate(tt.items)
			require.True(t, ok)
			assert.Equal(t, tt.want, agg.Status)
			assert.True(t, decimal.RequireFromString(tt.total).Equal(agg.Total), "total %s, want %s", agg.Total, tt.total)
		})
	}
}

func TestAggregate_OrderIndependentAndIdempotent(t *testing.T) {
	items := []LineItem{
		item(ItemStatusShipped, 1, "7.25"),
		item(ItemStatusRejected, 2, "3"),
		item(ItemStatusProcessed, 3, "1.10"),
	}
	reversed := []LineItem{items[2], items[1], items[0]}

	first, _ := Aggregate(items)
	second, _ := Aggregate(items)
	third, _ := Aggregate(reversed)

	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.Total.Equal(second.Total))
	assert.Equal(t, first.Status, third.Status)
	assert.True(t, first.Total.Equal(third.Total))
	assert.Equal(t, OrderStatusProcessing, first.Status)
	assert.Equal(t, "10.55", first.Total.StringFixed(2))
}

func TestAggregate_TotalMatchesActiveSubtotals(t *testing.T) {
	items := []LineItem{
		item(ItemStatusPending, 3, "19.99"),
		item(ItemStatusCancelled, 1, "100"),
		item(ItemStatusCompleted, 2, "0.01"),
	}

	agg, ok := Aggregate(items)
	require.True(t, ok)

	want := decimal.Zero
	for _, it := range items {
		if it.Status.IsActive() {
			want = want.Add(it.Subtotal())
		}
	}
	assert.True(t, want.Equal(agg.Total))
}
