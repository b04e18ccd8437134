package domain

import (
	"fmt"
	"slices"
)

type Action string

const (
	ActionAccept   Action = "accept"
	ActionShip     Action = "ship"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionReject   Action = "reject"
)

type Actor string

const (
	ActorBuyer  Actor = "buyer"
	ActorSeller Actor = "seller"
)

type StockEffect int

const (
	StockNone StockEffect = iota
	StockDeduct
	StockRestore
)

func (e StockEffect) String() string {
	switch e {
	case StockDeduct:
		return "deduct"
	case StockRestore:
		return "restore"
	}
	return "none"
}

type transitionRule struct {
	actor Actor
	from  []ItemStatus
	to    ItemStatus
}

var transitions = map[Action]transitionRule{
	ActionAccept: {
		actor: ActorSeller,
		from:  []ItemStatus{ItemStatusPending, ItemStatusPaid},
		to:    ItemStatusProcessed,
	},
	ActionShip: {
		actor: ActorSeller,
		from:  []ItemStatus{ItemStatusProcessed},
		to:    ItemStatusShipped,
	},
	ActionComplete: {
		actor: ActorBuyer,
		from:  []ItemStatus{ItemStatusShipped},
		to:    ItemStatusCompleted,
	},
	ActionCancel: {
		actor: ActorBuyer,
		from:  []ItemStatus{ItemStatusPending, ItemStatusPaid, ItemStatusProcessed, ItemStatusShipped},
		to:    ItemStatusCancelled,
	},
	ActionReject: {
		actor: ActorSeller,
		from:  []ItemStatus{ItemStatusPending, ItemStatusPaid, ItemStatusProcessed},
		to:    ItemStatusRejected,
	},
}

// ActorFor returns who is allowed to perform the action.
func ActorFor(action Action) (Actor, bool) {
	rule, ok := transitions[action]
	return rule.actor, ok
}

// Transition evaluates an action against the current item status and returns
// the next status together with the stock movement it requires. Stock is taken
// when an item enters processed and given back only when it leaves a
// stock-holding status, so an item never moves stock twice in one direction.
func Transition(from ItemStatus, action Action) (ItemStatus, StockEffect, error) {
	rule, ok := transitions[action]
	if !ok {
		return from, StockNone, fmt.Errorf("unknown action %q", action)
	}

	if !slices.Contains(rule.from, from) {
		return from, StockNone, fmt.Errorf("%s from %s: %w", action, from, ErrInvalidTransition)
	}

	effect := StockNone
	switch {
	case rule.to.HoldsStock() && !from.HoldsStock():
		effect = StockDeduct
	case !rule.to.IsActive() && from.HoldsStock():
		effect = StockRestore
	}

	return rule.to, effect, nil
}

// CanTransition is Transition without the result, for callers that only
// need to filter items.
func CanTransition(from ItemStatus, action Action) bool {
	_, _, err := Transition(from, action)
	return err == nil
}
