package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gomartvn/gomart-backend/api/middleware"
	"github.com/gomartvn/gomart-backend/api/responses"
	"github.com/gomartvn/gomart-backend/api/validators"
	"github.com/gomartvn/gomart-backend/internal/orders"
	"github.com/gomartvn/gomart-backend/internal/payments"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type createIntentRequest struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	MethodCode string    `json:"method_code" validate:"required"`
	BuyerName  string    `json:"buyer_name,omitempty"`
	BuyerEmail string    `json:"buyer_email,omitempty" validate:"omitempty,email"`
}

type cancelIntentRequest struct {
	Reason string `json:"reason,omitempty"`
}

type paymentResponse struct {
	ID              uuid.UUID       `json:"id"`
	TransactionCode string          `json:"transaction_code"`
	OrderID         uuid.UUID       `json:"order_id"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	CheckoutURL     string          `json:"checkout_url,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type paymentMethodResponse struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	IsActive bool      `json:"is_active"`
}

func newPaymentResponse(txn *models.PaymentTransaction) paymentResponse {
	return paymentResponse{
		ID:              txn.ID,
		TransactionCode: txn.TransactionCode,
		OrderID:         txn.OrderID,
		Status:          string(txn.Status),
		Amount:          txn.Amount,
		CheckoutURL:     txn.CheckoutURL,
		PaidAt:          txn.PaidAt,
		CreatedAt:       txn.CreatedAt,
	}
}

func requireOwnOrder(r *http.Request, ordersSvc orders.Service, orderID uuid.UUID) error {
	order, err := ordersSvc.Get(r.Context(), orderID)
	if err != nil {
		return err
	}
	if order.UserID != middleware.UserIDFromContext(r.Context()) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return nil
}

// CreatePaymentIntent builds a checkout link for the caller's own order.
func CreatePaymentIntent(svc payments.Service, ordersSvc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createIntentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := requireOwnOrder(r, ordersSvc, body.OrderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.CreateIntent(r.Context(), payments.CreateIntentInput{
			OrderID:    body.OrderID,
			MethodCode: body.MethodCode,
			BuyerName:  body.BuyerName,
			BuyerEmail: body.BuyerEmail,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(txn))
	}
}

func PaymentIntentStatus(svc payments.Service, ordersSvc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := requireOwnOrder(r, ordersSvc, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.IntentStatus(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(txn))
	}
}

func CancelPaymentIntent(svc payments.Service, ordersSvc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := requireOwnOrder(r, ordersSvc, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelIntentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelIntent(r.Context(), orderID, body.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

func ListPaymentMethods(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		methods, err := svc.ListMethods(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]paymentMethodResponse, 0, len(methods))
		for _, m := range methods {
			resp = append(resp, paymentMethodResponse{
				ID:       m.ID,
				Code:     m.Code,
				Name:     m.Name,
				Kind:     string(m.Kind),
				IsActive: m.IsActive,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

// GatewayWebhook ingests payment notifications. Signature verification and
// idempotent confirmation happen in the service; a bad signature surfaces as
// unauthorized so the gateway retries do not spin.
func GatewayWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// the gateway adds fields over time, so unknown keys are tolerated
		var payload payments.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.HandleWebhook(r.Context(), payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "received"})
	}
}
