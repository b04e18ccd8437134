package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FulfillmentMetrics are the business counters of the orders service. A nil
// *FulfillmentMetrics records nothing.
type FulfillmentMetrics struct {
	checkouts     metric.Int64Counter
	ordersCreated metric.Int64Counter
	transitions   metric.Int64Counter
	stockMoved    metric.Int64Counter
}

func NewFulfillmentMetrics(provider metric.MeterProvider) (*FulfillmentMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter("marketplace/fulfillment")

	m := &FulfillmentMetrics{}
	var err error

	if m.checkouts, err = meter.Int64Counter("marketplace.checkouts",
		metric.WithDescription("Checkout attempts by outcome")); err != nil {
		return nil, err
	}
	if m.ordersCreated, err = meter.Int64Counter("marketplace.orders.created",
		metric.WithDescription("Per-seller orders created by checkout")); err != nil {
		return nil, err
	}
	if m.transitions, err = meter.Int64Counter("marketplace.item.transitions",
		metric.WithDescription("Line item actions by action and outcome")); err != nil {
		return nil, err
	}
	if m.stockMoved, err = meter.Int64Counter("marketplace.stock.units",
		metric.WithDescription("Units of stock deducted or restored"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *FulfillmentMetrics) Checkout(ctx context.Context, outcome string, orders int) {
	if m == nil {
		return
	}
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if orders > 0 {
		m.ordersCreated.Add(ctx, int64(orders))
	}
}

func (m *FulfillmentMetrics) Transition(ctx context.Context, action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func (m *FulfillmentMetrics) Stock(ctx context.Context, direction string, units int) {
	if m == nil || units <= 0 {
		return
	}
	m.stockMoved.Add(ctx, int64(units), metric.WithAttributes(attribute.String("direction", direction)))
}
