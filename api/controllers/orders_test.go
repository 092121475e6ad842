package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gomartvn/gomart-backend/api/middleware"
	"github.com/gomartvn/gomart-backend/internal/orders"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
)

type stubOrderService struct {
	orders.Service

	order       *models.Order
	getErr      error
	transitions []orders.TransitionInput
}

func (s *stubOrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.order, nil
}

func (s *stubOrderService) Transition(ctx context.Context, input orders.TransitionInput) error {
	s.transitions = append(s.transitions, input)
	return nil
}

func orderRequest(method, path string, userID uuid.UUID, role string, orderID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	ctx := middleware.WithUser(req.Context(), userID, role)

	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", orderID.String())
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	return req.WithContext(ctx)
}

func TestOrderDetailOwnerAllowed(t *testing.T) {
	userID := uuid.New()
	order := &models.Order{ID: uuid.New(), UserID: userID, Status: enums.OrderStatusPending}
	handler := OrderDetail(&stubOrderService{order: order}, nil)

	req := orderRequest(http.MethodGet, "/api/v1/orders/x", userID, string(enums.UserRoleCustomer), order.ID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrderDetailForbiddenForStranger(t *testing.T) {
	order := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusPending}
	handler := OrderDetail(&stubOrderService{order: order}, nil)

	req := orderRequest(http.MethodGet, "/api/v1/orders/x", uuid.New(), string(enums.UserRoleCustomer), order.ID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestOrderDetailAdminBypassesOwnership(t *testing.T) {
	order := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusPending}
	handler := OrderDetail(&stubOrderService{order: order}, nil)

	req := orderRequest(http.MethodGet, "/api/v1/orders/x", uuid.New(), string(enums.UserRoleAdmin), order.ID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestCancelOrderRecordsActor(t *testing.T) {
	userID := uuid.New()
	order := &models.Order{ID: uuid.New(), UserID: userID, Status: enums.OrderStatusPending}
	svc := &stubOrderService{order: order}
	handler := CancelOrder(svc, nil)

	req := orderRequest(http.MethodPost, "/api/v1/orders/x/cancel", userID, string(enums.UserRoleCustomer), order.ID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.transitions) != 1 {
		t.Fatalf("expected one transition, got %d", len(svc.transitions))
	}
	got := svc.transitions[0]
	if got.NewStatus != enums.OrderStatusCancelled {
		t.Fatalf("unexpected status: %s", got.NewStatus)
	}
	if got.ActorUserID == nil || *got.ActorUserID != userID {
		t.Fatalf("expected caller as actor, got %v", got.ActorUserID)
	}
}

func TestAdminTransitionRejectsUnknownStatus(t *testing.T) {
	order := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusPending}
	handler := AdminTransitionOrder(&stubOrderService{order: order}, nil)

	req := orderRequest(http.MethodPost, "/x", uuid.New(), string(enums.UserRoleAdmin), order.ID)
	req.Body = io.NopCloser(strings.NewReader(`{"status":"teleported"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
