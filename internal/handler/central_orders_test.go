package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
	"github.com/tirtakita/api/internal/handler"
	"github.com/tirtakita/api/internal/middleware"
	"github.com/tirtakita/api/internal/service"
)

type mockCentralService struct {
	createFn       func(ctx context.Context, req service.CreateCentralOrderRequest) (*service.CreateCentralOrderResult, error)
	receiveFn      func(ctx context.Context, req service.ReceiveCentralOrderRequest) (*database.CentralOrder, error)
	editReceivedFn func(ctx context.Context, req service.ReceiveCentralOrderRequest) (*database.CentralOrder, error)
	unreceiveFn    func(ctx context.Context, companyID, centralOrderID uuid.UUID) (*database.CentralOrder, error)
	deleteFn       func(ctx context.Context, companyID, centralOrderID uuid.UUID) error
}

func (m *mockCentralService) Create(ctx context.Context, req service.CreateCentralOrderRequest) (*service.CreateCentralOrderResult, error) {
	return m.createFn(ctx, req)
}

func (m *mockCentralService) Receive(ctx context.Context, req service.ReceiveCentralOrderRequest) (*database.CentralOrder, error) {
	return m.receiveFn(ctx, req)
}

func (m *mockCentralService) EditReceived(ctx context.Context, req service.ReceiveCentralOrderRequest) (*database.CentralOrder, error) {
	return m.editReceivedFn(ctx, req)
}

func (m *mockCentralService) Unreceive(ctx context.Context, companyID, centralOrderID uuid.UUID) (*database.CentralOrder, error) {
	return m.unreceiveFn(ctx, companyID, centralOrderID)
}

func (m *mockCentralService) Delete(ctx context.Context, companyID, centralOrderID uuid.UUID) error {
	return m.deleteFn(ctx, companyID, centralOrderID)
}

type mockCentralOrderStore struct {
	getCentralOrderFn       func(ctx context.Context, arg database.GetCentralOrderParams) (database.CentralOrder, error)
	listCentralOrdersFn     func(ctx context.Context, arg database.ListCentralOrdersParams) ([]database.CentralOrder, error)
	listCentralOrderItemsFn func(ctx context.Context, centralOrderID uuid.UUID) ([]database.CentralOrderItem, error)
}

func (m *mockCentralOrderStore) GetCentralOrder(ctx context.Context, arg database.GetCentralOrderParams) (database.CentralOrder, error) {
	if m.getCentralOrderFn != nil {
		return m.getCentralOrderFn(ctx, arg)
	}
	return database.CentralOrder{}, pgx.ErrNoRows
}

func (m *mockCentralOrderStore) ListCentralOrders(ctx context.Context, arg database.ListCentralOrdersParams) ([]database.CentralOrder, error) {
	if m.listCentralOrdersFn != nil {
		return m.listCentralOrdersFn(ctx, arg)
	}
	return []database.CentralOrder{}, nil
}

func (m *mockCentralOrderStore) ListCentralOrderItems(ctx context.Context, centralOrderID uuid.UUID) ([]database.CentralOrderItem, error) {
	if m.listCentralOrderItemsFn != nil {
		return m.listCentralOrderItemsFn(ctx, centralOrderID)
	}
	return []database.CentralOrderItem{}, nil
}

func setupCentralRouter(svc *mockCentralService, store *mockCentralOrderStore) *chi.Mux {
	h := handler.NewCentralOrderHandler(svc, store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/companies/{cid}/central-orders", h.RegisterRoutes)
	return r
}

func testDBCentralOrder(t *testing.T, companyID uuid.UUID, status string) database.CentralOrder {
	return database.CentralOrder{
		ID:            uuid.New(),
		CompanyID:     companyID,
		SupplierName:  "Depot Pusat",
		Status:        status,
		GrandTotal:    testNumeric(t, "140000.00"),
		TransportCost: testNumeric(t, "0.00"),
		CreatedBy:     uuid.New(),
		CreatedAt:     time.Now(),
	}
}

func TestCentralOrderCreate_HappyPath(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)
	productID := uuid.New()

	svc := &mockCentralService{
		createFn: func(ctx context.Context, req service.CreateCentralOrderRequest) (*service.CreateCentralOrderResult, error) {
			if req.SupplierName != "Depot Pusat" {
				t.Errorf("supplier_name: got %v", req.SupplierName)
			}
			if !req.OrderDate.Valid {
				t.Error("order_date should be set")
			}
			if len(req.Items) != 1 || req.Items[0].Qty != 10 {
				t.Errorf("items: got %+v", req.Items)
			}
			order := testDBCentralOrder(t, companyID, enum.CentralOrderStatusDraft)
			return &service.CreateCentralOrderResult{
				Order: order,
				Items: []database.CentralOrderItem{
					{ID: uuid.New(), CentralOrderID: order.ID, ProductID: productID, Qty: 10, Price: testNumeric(t, "14000.00")},
				},
			}, nil
		},
	}

	router := setupCentralRouter(svc, &mockCentralOrderStore{})
	rr := doAuthRequest(t, router, "POST", "/companies/"+companyID.String()+"/central-orders", map[string]interface{}{
		"supplier_name": "Depot Pusat",
		"order_date":    "2026-09-01",
		"items": []map[string]interface{}{
			{"product_id": productID.String(), "qty": 10},
		},
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != "DRAFT" {
		t.Errorf("status: got %v, want DRAFT", resp["status"])
	}
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items count: got %d, want 1", len(items))
	}
	item := items[0].(map[string]interface{})
	if item["price"] != "14000.00" {
		t.Errorf("item price: got %v, want 14000.00", item["price"])
	}
}

func TestCentralOrderCreate_MissingSupplier(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)

	router := setupCentralRouter(&mockCentralService{}, &mockCentralOrderStore{})
	rr := doAuthRequest(t, router, "POST", "/companies/"+companyID.String()+"/central-orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": uuid.New().String(), "qty": 10},
		},
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestCentralOrderReceive_HappyPath(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)
	orderID := uuid.New()
	itemID := uuid.New()
	galonID := uuid.New()

	svc := &mockCentralService{
		receiveFn: func(ctx context.Context, req service.ReceiveCentralOrderRequest) (*database.CentralOrder, error) {
			if req.CentralOrderID != orderID {
				t.Errorf("central_order_id: got %v, want %v", req.CentralOrderID, orderID)
			}
			if len(req.ReceivedItems) != 1 || req.ReceivedItems[0].ReceivedQty != 9 {
				t.Errorf("received_items: got %+v", req.ReceivedItems)
			}
			if req.ReturnedToCentral[galonID] != 5 {
				t.Errorf("returned_to_central: got %+v", req.ReturnedToCentral)
			}
			if req.TransportCost != "20000" {
				t.Errorf("transport_cost: got %v", req.TransportCost)
			}
			order := testDBCentralOrder(t, companyID, enum.CentralOrderStatusReceived)
			order.ID = orderID
			order.ReceivedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
			order.ReturnedToCentral, _ = json.Marshal(map[string]int32{galonID.String(): 5})
			return &order, nil
		},
	}

	router := setupCentralRouter(svc, &mockCentralOrderStore{})
	rr := doAuthRequest(t, router, "POST",
		"/companies/"+companyID.String()+"/central-orders/"+orderID.String()+"/receive",
		map[string]interface{}{
			"received_items": []map[string]interface{}{
				{"item_id": itemID.String(), "received_qty": 9},
			},
			"returned_to_central": map[string]int32{galonID.String(): 5},
			"transport_cost":      "20000",
		}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != "RECEIVED" {
		t.Errorf("status: got %v, want RECEIVED", resp["status"])
	}
	if resp["received_at"] == nil {
		t.Error("received_at should be set")
	}
	returned := resp["returned_to_central"].(map[string]interface{})
	if returned[galonID.String()] != float64(5) {
		t.Errorf("returned_to_central: got %v", returned)
	}
}

func TestCentralOrderReceive_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", service.ErrCentralOrderNotFound, http.StatusNotFound},
		{"already received", service.ErrCentralOrderAlreadyReceived, http.StatusConflict},
		{"unknown item", service.ErrUnknownCentralItem, http.StatusBadRequest},
		{"invalid received qty", service.ErrInvalidReceivedQty, http.StatusBadRequest},
		{"invalid transport cost", service.ErrInvalidTransportCost, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			companyID := uuid.New()
			claims := testClaims(companyID)

			svc := &mockCentralService{
				receiveFn: func(ctx context.Context, req service.ReceiveCentralOrderRequest) (*database.CentralOrder, error) {
					return nil, tt.err
				},
			}

			router := setupCentralRouter(svc, &mockCentralOrderStore{})
			rr := doAuthRequest(t, router, "POST",
				"/companies/"+companyID.String()+"/central-orders/"+uuid.New().String()+"/receive",
				map[string]interface{}{}, claims)

			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
		})
	}
}

func TestCentralOrderUnreceive_NotReceived(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)

	svc := &mockCentralService{
		unreceiveFn: func(ctx context.Context, cid, id uuid.UUID) (*database.CentralOrder, error) {
			return nil, service.ErrCentralOrderNotReceived
		},
	}

	router := setupCentralRouter(svc, &mockCentralOrderStore{})
	rr := doAuthRequest(t, router, "POST",
		"/companies/"+companyID.String()+"/central-orders/"+uuid.New().String()+"/unreceive", nil, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestCentralOrderDelete_AlreadyReceived(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)

	svc := &mockCentralService{
		deleteFn: func(ctx context.Context, cid, id uuid.UUID) error {
			return service.ErrCentralOrderAlreadyReceived
		},
	}

	router := setupCentralRouter(svc, &mockCentralOrderStore{})
	rr := doAuthRequest(t, router, "DELETE",
		"/companies/"+companyID.String()+"/central-orders/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestCentralOrderGet_Detail(t *testing.T) {
	companyID := uuid.New()
	claims := testClaims(companyID)
	order := testDBCentralOrder(t, companyID, enum.CentralOrderStatusDraft)

	store := &mockCentralOrderStore{
		getCentralOrderFn: func(ctx context.Context, arg database.GetCentralOrderParams) (database.CentralOrder, error) {
			return order, nil
		},
		listCentralOrderItemsFn: func(ctx context.Context, centralOrderID uuid.UUID) ([]database.CentralOrderItem, error) {
			return []database.CentralOrderItem{
				{ID: uuid.New(), CentralOrderID: order.ID, ProductID: uuid.New(), Qty: 10, Price: testNumeric(t, "14000.00")},
			}, nil
		},
	}

	router := setupCentralRouter(&mockCentralService{}, store)
	rr := doAuthRequest(t, router, "GET",
		"/companies/"+companyID.String()+"/central-orders/"+order.ID.String(), nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if len(resp["items"].([]interface{})) != 1 {
		t.Error("expected one item")
	}
}
