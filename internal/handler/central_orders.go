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
)

// CentralServicer defines the service methods needed by central order
// handlers. Satisfied by *service.CentralService.
type CentralServicer interface {
	Create(ctx context.Context, req service.CreateCentralOrderRequest) (*service.CreateCentralOrderResult, error)
	Receive(ctx context.Context, req service.ReceiveCentralOrderRequest) (*database.CentralOrder, error)
	EditReceived(ctx context.Context, req service.ReceiveCentralOrderRequest) (*database.CentralOrder, error)
	Unreceive(ctx context.Context, companyID, centralOrderID uuid.UUID) (*database.CentralOrder, error)
	Delete(ctx context.Context, companyID, centralOrderID uuid.UUID) error
}

// CentralOrderStore defines the read methods needed by central order handlers.
type CentralOrderStore interface {
	GetCentralOrder(ctx context.Context, arg database.GetCentralOrderParams) (database.CentralOrder, error)
	ListCentralOrders(ctx context.Context, arg database.ListCentralOrdersParams) ([]database.CentralOrder, error)
	ListCentralOrderItems(ctx context.Context, centralOrderID uuid.UUID) ([]database.CentralOrderItem, error)
}

// CentralOrderHandler handles restock orders from the central supplier.
type CentralOrderHandler struct {
	svc   CentralServicer
	store CentralOrderStore
}

func NewCentralOrderHandler(svc CentralServicer, store CentralOrderStore) *CentralOrderHandler {
	return &CentralOrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers central order endpoints. Mounted at
// /companies/{cid}/central-orders.
func (h *CentralOrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/receive", h.Receive)
	r.Put("/{id}/receive", h.EditReceived)
	r.Post("/{id}/unreceive", h.Unreceive)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createCentralOrderRequest struct {
	SupplierName string                          `json:"supplier_name"`
	OrderDate    string                          `json:"order_date"`
	Items        []createCentralOrderItemRequest `json:"items"`
}

type createCentralOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type receiveCentralOrderRequest struct {
	ReceivedItems       []receivedItemRequest `json:"received_items"`
	ReturnedToCentral   map[string]int32      `json:"returned_to_central"`
	BorrowedFromCentral map[string]int32      `json:"borrowed_from_central"`
	SoldEmptyToCentral  map[string]int32      `json:"sold_empty_to_central"`
	TransportCost       string                `json:"transport_cost"`
}

type receivedItemRequest struct {
	ItemID      string `json:"item_id"`
	ReceivedQty int32  `json:"received_qty"`
}

type centralOrderResponse struct {
	ID                  uuid.UUID        `json:"id"`
	CompanyID           uuid.UUID        `json:"company_id"`
	SupplierName        string           `json:"supplier_name"`
	Status              string           `json:"status"`
	OrderDate           *time.Time       `json:"order_date"`
	ReceivedAt          *time.Time       `json:"received_at"`
	GrandTotal          string           `json:"grand_total"`
	TransportCost       string           `json:"transport_cost"`
	ReturnedToCentral   map[string]int32 `json:"returned_to_central"`
	BorrowedFromCentral map[string]int32 `json:"borrowed_from_central"`
	SoldEmptyToCentral  map[string]int32 `json:"sold_empty_to_central"`
	CreatedBy           uuid.UUID        `json:"created_by"`
	CreatedAt           time.Time        `json:"created_at"`
}

type centralOrderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	Qty         int32     `json:"qty"`
	ReceivedQty int32     `json:"received_qty"`
	Price       string    `json:"price"`
}

type centralOrderDetailResponse struct {
	centralOrderResponse
	Items []centralOrderItemResponse `json:"items"`
}

func dbCentralOrderToResponse(o database.CentralOrder) centralOrderResponse {
	return centralOrderResponse{
		ID:                  o.ID,
		CompanyID:           o.CompanyID,
		SupplierName:        o.SupplierName,
		Status:              o.Status,
		OrderDate:           dateOrNil(o.OrderDate),
		ReceivedAt:          timeOrNil(o.ReceivedAt),
		GrandTotal:          numericToString(o.GrandTotal),
		TransportCost:       numericToString(o.TransportCost),
		ReturnedToCentral:   qtyMapFromJSON(o.ReturnedToCentral),
		BorrowedFromCentral: qtyMapFromJSON(o.BorrowedFromCentral),
		SoldEmptyToCentral:  qtyMapFromJSON(o.SoldEmptyToCentral),
		CreatedBy:           o.CreatedBy,
		CreatedAt:           o.CreatedAt,
	}
}

func dbCentralOrderItemToResponse(i database.CentralOrderItem) centralOrderItemResponse {
	return centralOrderItemResponse{
		ID:          i.ID,
		ProductID:   i.ProductID,
		Qty:         i.Qty,
		ReceivedQty: i.ReceivedQty,
		Price:       numericToString(i.Price),
	}
}

func qtyMapFromJSON(raw []byte) map[string]int32 {
	m := map[string]int32{}
	if len(raw) == 0 {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]int32{}
	}
	return m
}

// parseQtyMap turns a product-id-keyed request map into UUID keys.
func parseQtyMap(in map[string]int32) (map[uuid.UUID]int32, error) {
	out := make(map[uuid.UUID]int32, len(in))
	for key, qty := range in {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, nil
}

// --- Handlers ---

func (h *CentralOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req createCentralOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SupplierName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "supplier_name is required"})
		return
	}
	orderDate := pgtype.Date{}
	if req.OrderDate != "" {
		t, err := time.Parse("2006-01-02", req.OrderDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_date"})
			return
		}
		orderDate = pgtype.Date{Time: t, Valid: true}
	}
	items := make([]service.CentralOrderItemInput, 0, len(req.Items))
	for _, in := range req.Items {
		productID, err := uuid.Parse(in.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
			return
		}
		items = append(items, service.CentralOrderItemInput{ProductID: productID, Qty: in.Qty})
	}

	result, err := h.svc.Create(r.Context(), service.CreateCentralOrderRequest{
		CompanyID:    companyID,
		SupplierName: req.SupplierName,
		OrderDate:    orderDate,
		CreatedBy:    claims.UserID,
		Items:        items,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoOrderItems), errors.Is(err, service.ErrInvalidQty):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrUnknownProduct):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		default:
			log.Printf("ERROR: create central order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := centralOrderDetailResponse{
		centralOrderResponse: dbCentralOrderToResponse(result.Order),
		Items:                make([]centralOrderItemResponse, len(result.Items)),
	}
	for i, item := range result.Items {
		resp.Items[i] = dbCentralOrderItemToResponse(item)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *CentralOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	limit, offset := parsePagination(r)
	orders, err := h.store.ListCentralOrders(r.Context(), database.ListCentralOrdersParams{
		CompanyID: companyID,
		Status:    optionalText(r.URL.Query().Get("status")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list central orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]centralOrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbCentralOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CentralOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, orderID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetCentralOrder(r.Context(), database.GetCentralOrderParams{ID: orderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "central order not found"})
			return
		}
		log.Printf("ERROR: get central order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListCentralOrderItems(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list central order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := centralOrderDetailResponse{
		centralOrderResponse: dbCentralOrderToResponse(order),
		Items:                make([]centralOrderItemResponse, len(items)),
	}
	for i, item := range items {
		resp.Items[i] = dbCentralOrderItemToResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Receive settles a draft restock shipment.
func (h *CentralOrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.svc.Receive)
}

// EditReceived re-settles a received shipment with corrected quantities.
func (h *CentralOrderHandler) EditReceived(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.svc.EditReceived)
}

func (h *CentralOrderHandler) settle(w http.ResponseWriter, r *http.Request, fn func(context.Context, service.ReceiveCentralOrderRequest) (*database.CentralOrder, error)) {
	companyID, orderID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req receiveCentralOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	receivedItems := make([]service.ReceivedItem, 0, len(req.ReceivedItems))
	for _, ri := range req.ReceivedItems {
		itemID, err := uuid.Parse(ri.ItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
			return
		}
		receivedItems = append(receivedItems, service.ReceivedItem{ItemID: itemID, ReceivedQty: ri.ReceivedQty})
	}
	returned, err := parseQtyMap(req.ReturnedToCentral)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id in returned_to_central"})
		return
	}
	borrowed, err := parseQtyMap(req.BorrowedFromCentral)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id in borrowed_from_central"})
		return
	}
	sold, err := parseQtyMap(req.SoldEmptyToCentral)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id in sold_empty_to_central"})
		return
	}

	order, err := fn(r.Context(), service.ReceiveCentralOrderRequest{
		CompanyID:           companyID,
		CentralOrderID:      orderID,
		UserID:              claims.UserID,
		ReceivedItems:       receivedItems,
		ReturnedToCentral:   returned,
		BorrowedFromCentral: borrowed,
		SoldEmptyToCentral:  sold,
		TransportCost:       req.TransportCost,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dbCentralOrderToResponse(*order))
}

// Unreceive rolls a received shipment back to draft.
func (h *CentralOrderHandler) Unreceive(w http.ResponseWriter, r *http.Request) {
	companyID, orderID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.Unreceive(r.Context(), companyID, orderID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dbCentralOrderToResponse(*order))
}

func (h *CentralOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, orderID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), companyID, orderID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *CentralOrderHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCentralOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "central order not found"})
	case errors.Is(err, service.ErrCentralOrderAlreadyReceived):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "central order already received"})
	case errors.Is(err, service.ErrCentralOrderNotReceived):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "central order has not been received"})
	case errors.Is(err, service.ErrUnknownCentralItem),
		errors.Is(err, service.ErrInvalidReceivedQty),
		errors.Is(err, service.ErrInvalidTransportCost):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: central order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
