package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gomartvn/gomart-backend/api/middleware"
	"github.com/gomartvn/gomart-backend/api/responses"
	"github.com/gomartvn/gomart-backend/api/validators"
	"github.com/gomartvn/gomart-backend/internal/stock"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type adjustStockRequest struct {
	VariantID   uuid.UUID `json:"variant_id" validate:"required"`
	WarehouseID uuid.UUID `json:"warehouse_id" validate:"required"`
	Delta       int       `json:"delta" validate:"required"`
	Reason      string    `json:"reason" validate:"required"`
}

type transferStockRequest struct {
	VariantID     uuid.UUID `json:"variant_id" validate:"required"`
	FromWarehouse uuid.UUID `json:"from_warehouse" validate:"required"`
	ToWarehouse   uuid.UUID `json:"to_warehouse" validate:"required"`
	Quantity      int       `json:"quantity" validate:"required,gt=0"`
	Reason        string    `json:"reason" validate:"required"`
}

type stockResponse struct {
	VariantID   uuid.UUID `json:"variant_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	Reserved    int       `json:"reserved"`
	Available   int       `json:"available"`
}

type stockMovementResponse struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Delta         int        `json:"delta"`
	QuantityAfter int        `json:"quantity_after"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
	ActorUserID   *uuid.UUID `json:"actor_user_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type stockAlertResponse struct {
	ID          uuid.UUID `json:"id"`
	VariantID   uuid.UUID `json:"variant_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Available   int       `json:"available"`
	Threshold   int       `json:"threshold"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// AdjustStock applies a signed manual correction to one stock row.
func AdjustStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body adjustStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err := svc.Adjust(r.Context(), stock.AdjustInput{
			VariantID:   body.VariantID,
			WarehouseID: body.WarehouseID,
			Delta:       body.Delta,
			Reason:      body.Reason,
			ActorUserID: middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeStock(r, w, svc, body.VariantID, body.WarehouseID, logg)
	}
}

// TransferStock moves on-hand quantity between warehouses atomically.
func TransferStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body transferStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err := svc.Transfer(r.Context(), stock.TransferInput{
			VariantID:     body.VariantID,
			FromWarehouse: body.FromWarehouse,
			ToWarehouse:   body.ToWarehouse,
			Qty:           body.Quantity,
			Reason:        body.Reason,
			ActorUserID:   middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "transferred"})
	}
}

func GetStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, warehouseID, err := stockRowParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeStock(r, w, svc, variantID, warehouseID, logg)
	}
}

func StockHistory(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, warehouseID, err := stockRowParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit := validators.QueryInt(r, "limit", 50)
		rows, err := svc.History(r.Context(), variantID, warehouseID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]stockMovementResponse, 0, len(rows))
		for _, row := range rows {
			resp = append(resp, stockMovementResponse{
				ID:            row.ID,
				Type:          string(row.Type),
				Delta:         row.Delta,
				QuantityAfter: row.QuantityAfter,
				OrderID:       row.OrderID,
				Reason:        row.Reason,
				ActorUserID:   row.ActorUserID,
				CreatedAt:     row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

func OpenStockAlerts(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alerts, err := svc.OpenAlerts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]stockAlertResponse, 0, len(alerts))
		for _, alert := range alerts {
			resp = append(resp, stockAlertResponse{
				ID:          alert.ID,
				VariantID:   alert.VariantID,
				WarehouseID: alert.WarehouseID,
				Available:   alert.Available,
				Threshold:   alert.Threshold,
				Status:      string(alert.Status),
				CreatedAt:   alert.CreatedAt,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

func stockRowParams(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	variantID, err := uuid.Parse(r.URL.Query().Get("variant_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "variant_id must be a valid uuid")
	}
	warehouseID, err := uuid.Parse(r.URL.Query().Get("warehouse_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse_id must be a valid uuid")
	}
	return variantID, warehouseID, nil
}

func writeStock(r *http.Request, w http.ResponseWriter, svc stock.Service, variantID, warehouseID uuid.UUID, logg *logger.Logger) {
	row, err := svc.GetStock(r.Context(), variantID, warehouseID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, stockResponse{
		VariantID:   row.VariantID,
		WarehouseID: row.WarehouseID,
		Quantity:    row.Quantity,
		Reserved:    row.Reserved,
		Available:   row.Available(),
	})
}
