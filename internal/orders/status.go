package orders

import (
	"fmt"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
)

// allowedTransitions is the explicit allow-list for whole-order,
// admin-driven status changes. Everything item-level flows through
// reconciliation instead.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPlaced: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered,
	},
	enums.OrderStatusPartiallyCancelled: {
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	},
}

// checkTransition validates a whole-order transition request against the
// allow-list. The returned error names the current state and the rule
// that blocks the request.
func checkTransition(from, to enums.OrderStatus) error {
	if from == to {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is already %s", from))
	}
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s, a terminal state; use item cancellation or the return flow instead", from))
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	if from == enums.OrderStatusReturnRequested || from == enums.OrderStatusPartialReturnRequested {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s and has pending return requests; resolve them first", from))
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("order is %s and cannot move to %s", from, to))
}

// itemCounts classifies an order's items by settlement status.
type itemCounts struct {
	active          int
	cancelled       int
	returned        int
	returnRequested int
}

func countItems(items []models.OrderItem) itemCounts {
	var c itemCounts
	for _, item := range items {
		switch item.Status {
		case enums.OrderItemStatusActive:
			c.active++
		case enums.OrderItemStatusCancelled:
			c.cancelled++
		case enums.OrderItemStatusReturned:
			c.returned++
		case enums.OrderItemStatusReturnRequested:
			c.returnRequested++
		}
	}
	return c
}

// deriveOrderStatus reconciles the whole-order status from its item
// statuses. Runs after every item mutation. An order whose items are all
// still active keeps its current fulfillment status.
func deriveOrderStatus(current enums.OrderStatus, c itemCounts) enums.OrderStatus {
	if c.returnRequested > 0 {
		if c.active > 0 {
			return enums.OrderStatusPartialReturnRequested
		}
		return enums.OrderStatusReturnRequested
	}
	if c.active == 0 {
		switch {
		case c.returned > 0 && c.cancelled > 0:
			return enums.OrderStatusPartiallyReturned
		case c.returned > 0:
			return enums.OrderStatusReturned
		case c.cancelled > 0:
			return enums.OrderStatusCancelled
		default:
			return current
		}
	}
	// Returned takes precedence over cancelled in a mix.
	switch {
	case c.returned > 0:
		return enums.OrderStatusPartiallyReturned
	case c.cancelled > 0:
		return enums.OrderStatusPartiallyCancelled
	default:
		return current
	}
}
