package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_Allowed(t *testing.T) {
	tests := []struct {
		from   ItemStatus
		action Action
		to     ItemStatus
		effect StockEffect
	}{
		{ItemStatusPending, ActionAccept, ItemStatusProcessed, StockDeduct},
		{ItemStatusPaid, ActionAccept, ItemStatusProcessed, StockDeduct},
		{ItemStatusProcessed, ActionShip, ItemStatusShipped, StockNone},
		{ItemStatusShipped, ActionComplete, ItemStatusCompleted, StockNone},
		{ItemStatusPending, ActionCancel, ItemStatusCancelled, StockNone},
		{ItemStatusPaid, ActionCancel, ItemStatusCancelled, StockNone},
		{ItemStatusProcessed, ActionCancel, ItemStatusCancelled, StockRestore},
		{ItemStatusShipped, ActionCancel, ItemStatusCancelled, StockRestore},
		{ItemStatusPending, ActionReject, ItemStatusRejected, StockNone},
		{ItemStatusPaid, ActionReject, ItemStatusRejected, StockNone},
		{ItemStatusProcessed, ActionReject, ItemStatusRejected, StockRestore},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.action), func(t *testing.T) {
			to, effect, err := Transition(tt.from, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.to, to)
			assert.Equal(t, tt.effect, effect)
		})
	}
}

func TestTransition_Rejected(t *testing.T) {
	tests := []struct {
		from   ItemStatus
		action Action
	}{
		{ItemStatusProcessed, ActionAccept},
		{ItemStatusShipped, ActionAccept},
		{ItemStatusCancelled, ActionAccept},
		{ItemStatusPending, ActionShip},
		{ItemStatusShipped, ActionShip},
		{ItemStatusProcessed, ActionComplete},
		{ItemStatusCompleted, ActionComplete},
		{ItemStatusCompleted, ActionCancel},
		{ItemStatusCancelled, ActionCancel},
		{ItemStatusRejected, ActionCancel},
		{ItemStatusShipped, ActionReject},
		{ItemStatusCompleted, ActionReject},
		{ItemStatusRejected, ActionReject},
		{ItemStatusCancelled, ActionReject},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.action), func(t *testing.T) {
			to, effect, err := Transition(tt.from, tt.action)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Equal(t, tt.from, to)
			assert.Equal(t, StockNone, effect)
		})
	}
}

func TestTransition_UnknownAction(t *testing.T) {
	_, _, err := Transition(ItemStatusPending, Action("teleport"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidTransition))
}

// Walking every path through the machine must never move stock twice in the
// same direction.
func TestTransition_StockMovesAtMostOncePerDirection(t *testing.T) {
	actions := []Action{ActionAccept, ActionShip, ActionComplete, ActionCancel, ActionReject}

	var walk func(status ItemStatus, deducted, restored int)
	walk = func(status ItemStatus, deducted, restored int) {
		require.LessOrEqual(t, deducted, 1)
		require.LessOrEqual(t, restored, 1)
		require.LessOrEqual(t, restored, deducted)
		for _, a := range actions {
			next, effect, err := Transition(status, a)
			if err != nil {
				continue
			}
			d, r := deducted, restored
			switch effect {
			case StockDeduct:
				d++
			case StockRestore:
				r++
			}
			walk(next, d, r)
		}
	}

	walk(ItemStatusPending, 0, 0)
}

func TestActorFor(t *testing.T) {
	actor, ok := ActorFor(ActionReject)
	require.True(t, ok)
	assert.Equal(t, ActorSeller, actor)

	actor, ok = ActorFor(ActionComplete)
	require.True(t, ok)
	assert.Equal(t, ActorBuyer, actor)
}
