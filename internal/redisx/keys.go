package redisx

import "time"

const (
	// Cart contents: cart:{owner} -> JSON cart, owner is user:{id} or session:{token}
	KeyCart = "cart:%s"

	// Checkout idempotency: idem:checkout:{buyer_id}:{idempotency_key} -> JSON order ids
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Order read model cache: order_view:{order_id} -> JSON order with items
	KeyOrderView = "order_view:%s"

	// Order view generation: order_view_gen:{order_id} -> counter bumped on every invalidation
	KeyOrderViewGen = "order_view_gen:%s"
)

var (
	TTLCart         = 7 * 24 * time.Hour
	TTLIdempotency  = 24 * time.Hour
	// Outlives any in-flight read of the order, so a reset counter cannot
	// match a stamp taken before the reset.
	TTLOrderViewGen = 24 * time.Hour
)
