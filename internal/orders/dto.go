package orders

import (
	"github.com/google/uuid"

	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// CreateOrderInput captures a new order with its reservation lines.
type CreateOrderInput struct {
	UserID          uuid.UUID
	Items           []CreateOrderItem
	PaymentMethodID *uuid.UUID
	ShippingAddress string
	Note            string
}

// CreateOrderItem is one requested line. Unit pricing comes from the catalog,
// not the caller.
type CreateOrderItem struct {
	VariantID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    int
}

// TransitionInput moves an order to a new lifecycle status. A nil ActorUserID
// records the system actor in the history row.
type TransitionInput struct {
	OrderID     uuid.UUID
	NewStatus   enums.OrderStatus
	ActorUserID *uuid.UUID
	Comment     string
}
