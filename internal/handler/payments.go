package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/middleware"
	"github.com/tirtakita/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService.
type PaymentServicer interface {
	AddPayment(ctx context.Context, req service.AddPaymentRequest) (*service.AddPaymentResult, error)
	DeletePayment(ctx context.Context, companyID, paymentID uuid.UUID) (*database.Order, error)
}

// PaymentReadStore defines the read methods needed by payment handlers.
type PaymentReadStore interface {
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// PaymentHandler handles payments against completed orders.
type PaymentHandler struct {
	svc   PaymentServicer
	store PaymentReadStore
}

func NewPaymentHandler(svc PaymentServicer, store PaymentReadStore) *PaymentHandler {
	return &PaymentHandler{svc: svc, store: store}
}

// RegisterRoutes registers payment endpoints. Mounted at
// /companies/{cid}/orders/{id}/payments.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Delete("/{pid}", h.Delete)
}

type createPaymentRequest struct {
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	ProofRef      string `json:"proof_ref"`
}

type paymentWithOrderResponse struct {
	Payment orderPaymentResponse `json:"payment"`
	Order   orderResponse        `json:"order"`
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, orderID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.AddPayment(r.Context(), service.AddPaymentRequest{
		CompanyID:     companyID,
		OrderID:       orderID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		ReceivedBy:    claims.UserID,
		ProofRef:      req.ProofRef,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidPaymentMethod):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderNotCompleted):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not completed"})
		case errors.Is(err, service.ErrOverpayment):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "payment exceeds remaining amount due"})
		default:
			log.Printf("ERROR: add payment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, paymentWithOrderResponse{
		Payment: dbPaymentToResponse(result.Payment),
		Order:   dbOrderToResponse(result.Order),
	})
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	_, orderID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderPaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = dbPaymentToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a payment; the order payment status is re-derived from the
// remaining payments and can move back to PARTIAL or UNPAID.
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}
	paymentID, err := uuid.Parse(chi.URLParam(r, "pid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	order, err := h.svc.DeletePayment(r.Context(), companyID, paymentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment not found"})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		default:
			log.Printf("ERROR: delete payment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(*order))
}
