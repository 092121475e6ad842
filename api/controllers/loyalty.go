package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gomartvn/gomart-backend/api/middleware"
	"github.com/gomartvn/gomart-backend/api/responses"
	"github.com/gomartvn/gomart-backend/api/validators"
	"github.com/gomartvn/gomart-backend/internal/loyalty"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type redeemRequest struct {
	Points int64  `json:"points" validate:"required,gt=0"`
	Note   string `json:"note,omitempty"`
}

type adjustPointsRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Points int64     `json:"points" validate:"required"`
	Note   string    `json:"note" validate:"required"`
}

type loyaltyBalanceResponse struct {
	Balance        int64 `json:"balance"`
	LifetimeEarned int64 `json:"lifetime_earned"`
}

type pointTransactionResponse struct {
	ID        uuid.UUID  `json:"id"`
	Kind      string     `json:"kind"`
	Points    int64      `json:"points"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Note      *string    `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func LoyaltyBalance(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, loyaltyBalanceResponse{
			Balance:        balance.Balance,
			LifetimeEarned: balance.LifetimeEarned,
		})
	}
}

func LoyaltyHistory(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		limit := validators.QueryInt(r, "limit", 50)
		rows, err := svc.History(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]pointTransactionResponse, 0, len(rows))
		for _, row := range rows {
			resp = append(resp, pointTransactionResponse{
				ID:        row.ID,
				Kind:      string(row.Kind),
				Points:    row.Points,
				OrderID:   row.OrderID,
				Note:      row.Note,
				CreatedAt: row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

// LoyaltyRedeem spends points from the caller's balance.
func LoyaltyRedeem(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body redeemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Redeem(r.Context(), userID, body.Points, body.Note); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, loyaltyBalanceResponse{
			Balance:        balance.Balance,
			LifetimeEarned: balance.LifetimeEarned,
		})
	}
}

// AdminAdjustPoints applies a signed manual correction to any user's balance.
func AdminAdjustPoints(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body adjustPointsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AdjustPoints(r.Context(), body.UserID, body.Points, body.Note); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "adjusted"})
	}
}
