package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
	"github.com/tirtakita/api/internal/handler"
	"github.com/tirtakita/api/internal/middleware"
	"github.com/tirtakita/api/internal/service"
)

type mockPaymentService struct {
	addPaymentFn    func(ctx context.Context, req service.AddPaymentRequest) (*service.AddPaymentResult, error)
	deletePaymentFn func(ctx context.Context, companyID, paymentID uuid.UUID) (*database.Order, error)
}

func (m *mockPaymentService) AddPayment(ctx context.Context, req service.AddPaymentRequest) (*service.AddPaymentResult, error) {
	return m.addPaymentFn(ctx, req)
}

func (m *mockPaymentService) DeletePayment(ctx context.Context, companyID, paymentID uuid.UUID) (*database.Order, error) {
	return m.deletePaymentFn(ctx, companyID, paymentID)
}

type mockPaymentReadStore struct {
	listPaymentsByOrderFn func(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

func (m *mockPaymentReadStore) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	if m.listPaymentsByOrderFn != nil {
		return m.listPaymentsByOrderFn(ctx, orderID)
	}
	return []database.Payment{}, nil
}

func setupPaymentRouter(svc *mockPaymentService, store *mockPaymentReadStore) *chi.Mux {
	h := handler.NewPaymentHandler(svc, store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/companies/{cid}/orders/{id}/payments", h.RegisterRoutes)
	return r
}

func TestPaymentCreate_HappyPath(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)
	orderID := uuid.New()

	svc := &mockPaymentService{
		addPaymentFn: func(ctx context.Context, req service.AddPaymentRequest) (*service.AddPaymentResult, error) {
			if req.OrderID != orderID {
				t.Errorf("order_id: got %v, want %v", req.OrderID, orderID)
			}
			if req.ReceivedBy != claims.UserID {
				t.Errorf("received_by: got %v, want %v", req.ReceivedBy, claims.UserID)
			}
			if req.Amount != "15000" || req.PaymentMethod != "TRANSFER" {
				t.Errorf("payment input: got %+v", req)
			}
			order := testDBOrder(t, companyID, enum.OrderStatusCompleted)
			order.ID = orderID
			order.PaymentStatus = enum.PaymentStatusPartial
			return &service.AddPaymentResult{
				Payment: database.Payment{
					ID:            uuid.New(),
					OrderID:       orderID,
					Amount:        testNumeric(t, "15000.00"),
					PaymentMethod: enum.PaymentMethodTransfer,
					ReceivedBy:    claims.UserID,
					CreatedAt:     time.Now(),
				},
				Order: order,
			}, nil
		},
	}

	router := setupPaymentRouter(svc, &mockPaymentReadStore{})
	rr := doAuthRequest(t, router, "POST",
		"/companies/"+companyID.String()+"/orders/"+orderID.String()+"/payments",
		map[string]interface{}{"amount": "15000", "payment_method": "TRANSFER"}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	payment := resp["payment"].(map[string]interface{})
	if payment["amount"] != "15000.00" {
		t.Errorf("payment amount: got %v, want 15000.00", payment["amount"])
	}
	order := resp["order"].(map[string]interface{})
	if order["payment_status"] != "PARTIAL" {
		t.Errorf("order payment_status: got %v, want PARTIAL", order["payment_status"])
	}
}

func TestPaymentCreate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"invalid amount", service.ErrInvalidAmount, http.StatusBadRequest},
		{"invalid method", service.ErrInvalidPaymentMethod, http.StatusBadRequest},
		{"order not found", service.ErrOrderNotFound, http.StatusNotFound},
		{"order not completed", service.ErrOrderNotCompleted, http.StatusConflict},
		{"overpayment", service.ErrOverpayment, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			companyID := uuid.New()
			claims := testClaims(companyID)

			svc := &mockPaymentService{
				addPaymentFn: func(ctx context.Context, req service.AddPaymentRequest) (*service.AddPaymentResult, error) {
					return nil, tt.err
				},
			}

			router := setupPaymentRouter(svc, &mockPaymentReadStore{})
			rr := doAuthRequest(t, router, "POST",
				"/companies/"+companyID.String()+"/orders/"+uuid.New().String()+"/payments",
				map[string]interface{}{"amount": "1", "payment_method": "CASH"}, claims)

			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
		})
	}
}

func TestPaymentList(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)
	orderID := uuid.New()

	store := &mockPaymentReadStore{
		listPaymentsByOrderFn: func(ctx context.Context, id uuid.UUID) ([]database.Payment, error) {
			if id != orderID {
				t.Errorf("order_id: got %v, want %v", id, orderID)
			}
			return []database.Payment{
				{ID: uuid.New(), OrderID: orderID, Amount: testNumeric(t, "10000.00"), PaymentMethod: enum.PaymentMethodCash, ReceivedBy: uuid.New(), CreatedAt: time.Now()},
				{ID: uuid.New(), OrderID: orderID, Amount: testNumeric(t, "30000.00"), PaymentMethod: enum.PaymentMethodQRIS, ReceivedBy: uuid.New(), CreatedAt: time.Now()},
			}, nil
		},
	}

	router := setupPaymentRouter(&mockPaymentService{}, store)
	rr := doAuthRequest(t, router, "GET",
		"/companies/"+companyID.String()+"/orders/"+orderID.String()+"/payments", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	payments := decodeListResponse(t, rr)
	if len(payments) != 2 {
		t.Fatalf("payments count: got %d, want 2", len(payments))
	}
}

func TestPaymentDelete_RederivesOrder(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)
	paymentID := uuid.New()

	svc := &mockPaymentService{
		deletePaymentFn: func(ctx context.Context, cid, pid uuid.UUID) (*database.Order, error) {
			if cid != companyID || pid != paymentID {
				t.Errorf("delete params: got %v/%v, want %v/%v", cid, pid, companyID, paymentID)
			}
			order := testDBOrder(t, companyID, enum.OrderStatusCompleted)
			order.PaymentStatus = enum.PaymentStatusUnpaid
			return &order, nil
		},
	}

	router := setupPaymentRouter(svc, &mockPaymentReadStore{})
	rr := doAuthRequest(t, router, "DELETE",
		"/companies/"+companyID.String()+"/orders/"+uuid.New().String()+"/payments/"+paymentID.String(),
		nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["payment_status"] != "UNPAID" {
		t.Errorf("payment_status: got %v, want UNPAID", resp["payment_status"])
	}
}

func TestPaymentDelete_NotFound(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)

	svc := &mockPaymentService{
		deletePaymentFn: func(ctx context.Context, cid, pid uuid.UUID) (*database.Order, error) {
			return nil, service.ErrPaymentNotFound
		},
	}

	router := setupPaymentRouter(svc, &mockPaymentReadStore{})
	rr := doAuthRequest(t, router, "DELETE",
		"/companies/"+companyID.String()+"/orders/"+uuid.New().String()+"/payments/"+uuid.New().String(),
		nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}
