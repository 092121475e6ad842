package enums

import "fmt"

// InventoryTransactionType labels audit entries written by the stock ledger.
type InventoryTransactionType string

const (
	InventoryTransactionTypeReserve     InventoryTransactionType = "reserve"
	InventoryTransactionTypeRelease     InventoryTransactionType = "release"
	InventoryTransactionTypeSale        InventoryTransactionType = "sale"
	InventoryTransactionTypeAdjustment  InventoryTransactionType = "adjustment"
	InventoryTransactionTypeTransferIn  InventoryTransactionType = "transfer_in"
	InventoryTransactionTypeTransferOut InventoryTransactionType = "transfer_out"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTransactionTypeReserve,
	InventoryTransactionTypeRelease,
	InventoryTransactionTypeSale,
	InventoryTransactionTypeAdjustment,
	InventoryTransactionTypeTransferIn,
	InventoryTransactionTypeTransferOut,
}

// String implements fmt.Stringer.
func (i InventoryTransactionType) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InventoryTransactionType.
func (i InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInventoryTransactionType converts raw input into an InventoryTransactionType.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}
