package enums

import "fmt"

// RefundKind labels why money moved back to a wallet. Together with the
// order and item ids it forms the ledger's refund idempotency key.
type RefundKind string

const (
	RefundKindCancellation RefundKind = "cancellation"
	RefundKindReturn       RefundKind = "return"
	RefundKindRollback     RefundKind = "rollback"
)

var validRefundKinds = []RefundKind{
	RefundKindCancellation,
	RefundKindReturn,
	RefundKindRollback,
}

// String implements fmt.Stringer.
func (k RefundKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known RefundKind.
func (k RefundKind) IsValid() bool {
	for _, candidate := range validRefundKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseRefundKind converts raw input into a RefundKind.
func ParseRefundKind(value string) (RefundKind, error) {
	for _, candidate := range validRefundKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund kind %q", value)
}
