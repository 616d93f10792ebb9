package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/middleware"
	"github.com/tirtakita/api/internal/service"
	"github.com/tirtakita/api/internal/ws"
)

// OrderCreator defines the service method for creating draft orders.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderCreator interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// DeliveryCompleter defines the service method for settling a delivery.
// Satisfied by *service.DeliveryService.
type DeliveryCompleter interface {
	Complete(ctx context.Context, req service.CompleteDeliveryRequest) (*service.CompleteDeliveryResult, error)
}

// OrderNotifier pushes order lifecycle events to connected clients.
// Satisfied by *ws.Hub.
type OrderNotifier interface {
	BroadcastToCompany(companyID uuid.UUID, event ws.Event)
}

// OrderStore defines the database methods needed by order read/update handlers.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderGalonItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderGalonItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	AssignCourier(ctx context.Context, arg database.AssignCourierParams) (database.Order, error)
}

// OrderHandler handles the delivery order lifecycle: draft, send, settle.
type OrderHandler struct {
	svc      OrderCreator
	delivery DeliveryCompleter
	store    OrderStore
	notifier OrderNotifier
}

func NewOrderHandler(svc OrderCreator, delivery DeliveryCompleter, store OrderStore, notifier OrderNotifier) *OrderHandler {
	return &OrderHandler{svc: svc, delivery: delivery, store: store, notifier: notifier}
}

// RegisterRoutes registers order endpoints. Mounted at /companies/{cid}/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/assign", h.Assign)
	r.Post("/{id}/complete", h.Complete)
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerID  string                   `json:"customer_id"`
	PlannedDate string                   `json:"planned_date"`
	Items       []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type assignCourierRequest struct {
	CourierID string `json:"courier_id"`
}

type completeOrderRequest struct {
	ReturnableItems []returnableItemRequest `json:"returnable_items"`
	TransportCost   string                  `json:"transport_cost"`
	Payment         *orderPaymentRequest    `json:"payment"`
	ProofRef        string                  `json:"proof_ref"`
}

type returnableItemRequest struct {
	ProductID         string `json:"product_id"`
	ReturnedQty       int32  `json:"returned_qty"`
	PurchasedEmptyQty int32  `json:"purchased_empty_qty"`
}

type orderPaymentRequest struct {
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	ProofRef      string `json:"proof_ref"`
}

type orderResponse struct {
	ID                uuid.UUID  `json:"id"`
	CompanyID         uuid.UUID  `json:"company_id"`
	CustomerID        uuid.UUID  `json:"customer_id"`
	CourierID         *uuid.UUID `json:"courier_id"`
	Status            string     `json:"status"`
	PaymentStatus     string     `json:"payment_status"`
	PlannedDate       *time.Time `json:"planned_date"`
	GrandTotal        string     `json:"grand_total"`
	TransportCost     string     `json:"transport_cost"`
	ReturnedQty       int32      `json:"returned_qty"`
	BorrowedQty       int32      `json:"borrowed_qty"`
	PurchasedEmptyQty int32      `json:"purchased_empty_qty"`
	ProofRef          *string    `json:"proof_ref"`
	DeliveredAt       *time.Time `json:"delivered_at"`
	CreatedBy         uuid.UUID  `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Qty       int32     `json:"qty"`
	Price     string    `json:"price"`
}

type orderGalonItemResponse struct {
	ProductID         uuid.UUID `json:"product_id"`
	ReturnedQty       int32     `json:"returned_qty"`
	BorrowedQty       int32     `json:"borrowed_qty"`
	PurchasedEmptyQty int32     `json:"purchased_empty_qty"`
}

type orderPaymentResponse struct {
	ID            uuid.UUID `json:"id"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	ReceivedBy    uuid.UUID `json:"received_by"`
	ProofRef      *string   `json:"proof_ref"`
	CreatedAt     time.Time `json:"created_at"`
}

// orderDetailResponse extends orderResponse with lines, container results
// and payments for the GET detail endpoint.
type orderDetailResponse struct {
	orderResponse
	Items      []orderItemResponse      `json:"items"`
	GalonItems []orderGalonItemResponse `json:"galon_items"`
	Payments   []orderPaymentResponse   `json:"payments"`
}

func dbOrderToResponse(o database.Order) orderResponse {
	var proofRef *string
	if o.ProofRef.Valid {
		proofRef = &o.ProofRef.String
	}
	return orderResponse{
		ID:                o.ID,
		CompanyID:         o.CompanyID,
		CustomerID:        o.CustomerID,
		CourierID:         uuidOrNil(o.CourierID),
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		PlannedDate:       dateOrNil(o.PlannedDate),
		GrandTotal:        numericToString(o.GrandTotal),
		TransportCost:     numericToString(o.TransportCost),
		ReturnedQty:       o.ReturnedQty,
		BorrowedQty:       o.BorrowedQty,
		PurchasedEmptyQty: o.PurchasedEmptyQty,
		ProofRef:          proofRef,
		DeliveredAt:       timeOrNil(o.DeliveredAt),
		CreatedBy:         o.CreatedBy,
		CreatedAt:         o.CreatedAt,
	}
}

func dbPaymentToResponse(p database.Payment) orderPaymentResponse {
	var proofRef *string
	if p.ProofRef.Valid {
		proofRef = &p.ProofRef.String
	}
	return orderPaymentResponse{
		ID:            p.ID,
		Amount:        numericToString(p.Amount),
		PaymentMethod: p.PaymentMethod,
		ReceivedBy:    p.ReceivedBy,
		ProofRef:      proofRef,
		CreatedAt:     p.CreatedAt,
	}
}

// --- Handlers ---

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer_id"})
		return
	}
	plannedDate := pgtype.Date{}
	if req.PlannedDate != "" {
		t, err := time.Parse("2006-01-02", req.PlannedDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid planned_date"})
			return
		}
		plannedDate = pgtype.Date{Time: t, Valid: true}
	}
	items := make([]service.OrderItemInput, 0, len(req.Items))
	for _, in := range req.Items {
		productID, err := uuid.Parse(in.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
			return
		}
		items = append(items, service.OrderItemInput{ProductID: productID, Qty: in.Qty})
	}

	result, err := h.svc.Create(r.Context(), service.CreateOrderRequest{
		CompanyID:   companyID,
		CustomerID:  customerID,
		PlannedDate: plannedDate,
		CreatedBy:   claims.UserID,
		Items:       items,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoOrderItems), errors.Is(err, service.ErrInvalidQty):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrCustomerNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
		case errors.Is(err, service.ErrUnknownProduct):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		default:
			log.Printf("ERROR: create order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := orderDetailResponse{
		orderResponse: dbOrderToResponse(result.Order),
		Items:         make([]orderItemResponse, len(result.Items)),
		GalonItems:    []orderGalonItemResponse{},
		Payments:      []orderPaymentResponse{},
	}
	for i, item := range result.Items {
		resp.Items[i] = orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Qty:       item.Qty,
			Price:     numericToString(item.Price),
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	courierID := pgtype.UUID{}
	if raw := r.URL.Query().Get("courier_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid courier_id"})
			return
		}
		courierID = pgtype.UUID{Bytes: id, Valid: true}
	}

	limit, offset := parsePagination(r)
	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		CompanyID: companyID,
		Status:    optionalText(r.URL.Query().Get("status")),
		CourierID: courierID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, orderID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	galonItems, err := h.store.ListOrderGalonItemsByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list galon items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	payments, err := h.store.ListPaymentsByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderDetailResponse{
		orderResponse: dbOrderToResponse(order),
		Items:         make([]orderItemResponse, len(items)),
		GalonItems:    make([]orderGalonItemResponse, len(galonItems)),
		Payments:      make([]orderPaymentResponse, len(payments)),
	}
	for i, item := range items {
		resp.Items[i] = orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Qty:       item.Qty,
			Price:     numericToString(item.Price),
		}
	}
	for i, gi := range galonItems {
		resp.GalonItems[i] = orderGalonItemResponse{
			ProductID:         gi.ProductID,
			ReturnedQty:       gi.ReturnedQty,
			BorrowedQty:       gi.BorrowedQty,
			PurchasedEmptyQty: gi.PurchasedEmptyQty,
		}
	}
	for i, p := range payments {
		resp.Payments[i] = dbPaymentToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Assign hands a draft order to a courier, moving it to SENT.
func (h *OrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	companyID, orderID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	var req assignCourierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	courierID, err := uuid.Parse(req.CourierID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid courier_id"})
		return
	}

	order, err := h.store.AssignCourier(r.Context(), database.AssignCourierParams{
		ID:        orderID,
		CompanyID: companyID,
		CourierID: courierID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not in DRAFT status"})
			return
		}
		log.Printf("ERROR: assign courier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.broadcast(companyID, "order.sent", dbOrderToResponse(order))
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// Complete settles a delivered order: stock, container ledger, money and
// order state all move in one server-side transaction.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	companyID, orderID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req completeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	returnables := make([]service.ReturnableItem, 0, len(req.ReturnableItems))
	for _, ri := range req.ReturnableItems {
		productID, err := uuid.Parse(ri.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
			return
		}
		returnables = append(returnables, service.ReturnableItem{
			ProductID:         productID,
			ReturnedQty:       ri.ReturnedQty,
			PurchasedEmptyQty: ri.PurchasedEmptyQty,
		})
	}

	var payment *service.DeliveryPayment
	if req.Payment != nil {
		payment = &service.DeliveryPayment{
			Amount:        req.Payment.Amount,
			PaymentMethod: req.Payment.PaymentMethod,
			ProofRef:      req.Payment.ProofRef,
		}
	}

	result, err := h.delivery.Complete(r.Context(), service.CompleteDeliveryRequest{
		CompanyID:       companyID,
		OrderID:         orderID,
		UserID:          claims.UserID,
		ReturnableItems: returnables,
		TransportCost:   req.TransportCost,
		Payment:         payment,
		ProofRef:        req.ProofRef,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderAlreadyCompleted):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order already completed"})
		case errors.Is(err, service.ErrOrderNotSent):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order has not been sent out"})
		case errors.Is(err, service.ErrOverpayment):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "payment exceeds remaining amount due"})
		case errors.Is(err, service.ErrReturnExceedsDelivered),
			errors.Is(err, service.ErrUnknownReturnable),
			errors.Is(err, service.ErrInvalidTransportCost),
			errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrInvalidPaymentMethod):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: complete order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := dbOrderToResponse(result.Order)
	h.broadcast(companyID, "order.completed", resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) broadcast(companyID uuid.UUID, eventType string, payload interface{}) {
	if h.notifier == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.notifier.BroadcastToCompany(companyID, ws.Event{Type: eventType, Payload: data})
}
