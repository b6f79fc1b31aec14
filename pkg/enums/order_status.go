package enums

import "fmt"

// OrderStatus tracks the whole-order settlement lifecycle.
type OrderStatus string

const (
	OrderStatusPlaced                 OrderStatus = "placed"
	OrderStatusProcessing             OrderStatus = "processing"
	OrderStatusShipped                OrderStatus = "shipped"
	OrderStatusDelivered              OrderStatus = "delivered"
	OrderStatusCancelled              OrderStatus = "cancelled"
	OrderStatusReturned               OrderStatus = "returned"
	OrderStatusPartiallyCancelled     OrderStatus = "partially_cancelled"
	OrderStatusPartiallyReturned      OrderStatus = "partially_returned"
	OrderStatusReturnRequested        OrderStatus = "return_requested"
	OrderStatusPartialReturnRequested OrderStatus = "partially_return_requested"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
	OrderStatusPartiallyCancelled,
	OrderStatusPartiallyReturned,
	OrderStatusReturnRequested,
	OrderStatusPartialReturnRequested,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the whole-order status accepts no further
// admin-driven transition. Returns against a delivered order still flow
// through the item-level path.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned, OrderStatusPartiallyReturned:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
