package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gomartvn/gomart-backend/api/middleware"
	"github.com/gomartvn/gomart-backend/api/responses"
	"github.com/gomartvn/gomart-backend/api/validators"
	"github.com/gomartvn/gomart-backend/internal/orders"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type createOrderRequest struct {
	Items           []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethodID *uuid.UUID               `json:"payment_method_id,omitempty"`
	ShippingAddress string                   `json:"shipping_address,omitempty"`
	Note            string                   `json:"note,omitempty"`
}

type createOrderItemRequest struct {
	VariantID   uuid.UUID `json:"variant_id" validate:"required"`
	WarehouseID uuid.UUID `json:"warehouse_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,gt=0"`
}

type transitionRequest struct {
	Status  string `json:"status" validate:"required"`
	Comment string `json:"comment,omitempty"`
}

type orderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	VariantID   uuid.UUID       `json:"variant_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	OrderNumber string              `json:"order_number"`
	UserID      uuid.UUID           `json:"user_id"`
	Status      string              `json:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Currency    string              `json:"currency"`
	PlacedAt    time.Time           `json:"placed_at"`
	DeliveredAt *time.Time          `json:"delivered_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
	Items       []orderItemResponse `json:"items"`
}

type orderHistoryResponse struct {
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	ActorUserID *string   `json:"actor_user_id,omitempty"`
	Comment     *string   `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		Currency:    string(order.Currency),
		PlacedAt:    order.PlacedAt,
		DeliveredAt: order.DeliveredAt,
		CompletedAt: order.CompletedAt,
		CancelledAt: order.CancelledAt,
		Items:       []orderItemResponse{},
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:          item.ID,
			VariantID:   item.VariantID,
			WarehouseID: item.WarehouseID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return resp
}

func orderFromPath(r *http.Request, svc orders.Service) (*models.Order, error) {
	orderID, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
	if err != nil {
		return nil, err
	}
	return svc.Get(r.Context(), orderID)
}

// canViewOrder allows the owner plus staff and admin actors.
func canViewOrder(r *http.Request, order *models.Order) bool {
	role := middleware.RoleFromContext(r.Context())
	if role == string(enums.UserRoleAdmin) || role == string(enums.UserRoleStaff) {
		return true
	}
	return order.UserID == middleware.UserIDFromContext(r.Context())
}

func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.CreateOrderInput{
			UserID:          userID,
			PaymentMethodID: body.PaymentMethodID,
			ShippingAddress: body.ShippingAddress,
			Note:            body.Note,
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, orders.CreateOrderItem{
				VariantID:   item.VariantID,
				WarehouseID: item.WarehouseID,
				Quantity:    item.Quantity,
			})
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

func ListMyOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		limit := validators.QueryInt(r, "limit", 20)
		list, err := svc.ListByUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]orderResponse, 0, len(list))
		for i := range list {
			resp = append(resp, newOrderResponse(&list[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := orderFromPath(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canViewOrder(r, order) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user"))
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func OrderHistory(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := orderFromPath(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canViewOrder(r, order) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user"))
			return
		}

		rows, err := svc.History(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]orderHistoryResponse, 0, len(rows))
		for _, row := range rows {
			entry := orderHistoryResponse{
				OldStatus: string(row.OldStatus),
				NewStatus: string(row.NewStatus),
				Comment:   row.Comment,
				CreatedAt: row.CreatedAt,
			}
			if row.ActorUserID != nil {
				actor := row.ActorUserID.String()
				entry.ActorUserID = &actor
			}
			resp = append(resp, entry)
		}
		responses.WriteSuccess(w, resp)
	}
}

// CancelOrder lets the owner cancel while the lifecycle graph still allows
// it; reserved stock is released in the same transaction.
func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		order, err := orderFromPath(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.UserID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user"))
			return
		}

		err = svc.Transition(r.Context(), orders.TransitionInput{
			OrderID:     order.ID,
			NewStatus:   enums.OrderStatusCancelled,
			ActorUserID: &userID,
			Comment:     "cancelled by customer",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Get(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(updated))
	}
}

// AdminTransitionOrder moves an order to any status the graph allows.
func AdminTransitionOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.OrderStatus(body.Status)
		if !status.IsValid() {
			err := pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{"status": body.Status})
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID := middleware.UserIDFromContext(r.Context())
		err = svc.Transition(r.Context(), orders.TransitionInput{
			OrderID:     orderID,
			NewStatus:   status,
			ActorUserID: &actorID,
			Comment:     body.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(updated))
	}
}
