package enums

import "fmt"

// PointTransactionKind labels entries in the loyalty point ledger.
type PointTransactionKind string

const (
	PointTransactionKindEarnPurchase PointTransactionKind = "earn_purchase"
	PointTransactionKindRedeem       PointTransactionKind = "redeem"
	PointTransactionKindAdjust       PointTransactionKind = "adjust"
	PointTransactionKindExpire       PointTransactionKind = "expire"
)

var validPointTransactionKinds = []PointTransactionKind{
	PointTransactionKindEarnPurchase,
	PointTransactionKindRedeem,
	PointTransactionKindAdjust,
	PointTransactionKindExpire,
}

// String implements fmt.Stringer.
func (p PointTransactionKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PointTransactionKind.
func (p PointTransactionKind) IsValid() bool {
	for _, candidate := range validPointTransactionKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePointTransactionKind converts raw input into a PointTransactionKind.
func ParsePointTransactionKind(value string) (PointTransactionKind, error) {
	for _, candidate := range validPointTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid point transaction kind %q", value)
}
