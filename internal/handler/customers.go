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

// CustomerStore defines the database methods needed by customer handlers.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
	GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
	ListCustomers(ctx context.Context, arg database.ListCustomersParams) ([]database.Customer, error)
	UpdateCustomer(ctx context.Context, arg database.UpdateCustomerParams) (database.Customer, error)
	SoftDeleteCustomer(ctx context.Context, arg database.GetCustomerParams) (uuid.UUID, error)
}

// CustomerHandler handles customer master data and the container debt view.
type CustomerHandler struct {
	store CustomerStore
	debt  *service.DebtService
}

func NewCustomerHandler(store CustomerStore, debt *service.DebtService) *CustomerHandler {
	return &CustomerHandler{store: store, debt: debt}
}

// RegisterRoutes registers customer endpoints. Mounted at /companies/{cid}/customers.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/debt", h.Debt)
	r.Post("/{id}/debt/settle", h.SettleDebt)
}

type customerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type customerResponse struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func dbCustomerToResponse(c database.Customer) customerResponse {
	return customerResponse{
		ID:        c.ID,
		CompanyID: c.CompanyID,
		Name:      c.Name,
		Phone:     textOrEmpty(c.Phone),
		Address:   textOrEmpty(c.Address),
		CreatedAt: c.CreatedAt,
	}
}

type productDebtResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Balance   int32     `json:"balance"`
}

type settleDebtRequest struct {
	ProductID string `json:"product_id"`
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	customer, err := h.store.CreateCustomer(r.Context(), database.CreateCustomerParams{
		CompanyID: companyID,
		Name:      req.Name,
		Phone:     optionalText(req.Phone),
		Address:   optionalText(req.Address),
	})
	if err != nil {
		log.Printf("ERROR: create customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbCustomerToResponse(customer))
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	limit, offset := parsePagination(r)
	customers, err := h.store.ListCustomers(r.Context(), database.ListCustomersParams{
		CompanyID: companyID,
		Search:    optionalText(r.URL.Query().Get("search")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list customers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]customerResponse, len(customers))
	for i, c := range customers {
		resp[i] = dbCustomerToResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, customerID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	customer, err := h.store.GetCustomer(r.Context(), database.GetCustomerParams{ID: customerID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: get customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbCustomerToResponse(customer))
}

func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	companyID, customerID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	customer, err := h.store.UpdateCustomer(r.Context(), database.UpdateCustomerParams{
		ID:        customerID,
		CompanyID: companyID,
		Name:      req.Name,
		Phone:     optionalText(req.Phone),
		Address:   optionalText(req.Address),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: update customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbCustomerToResponse(customer))
}

func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, customerID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	if _, err := h.store.SoftDeleteCustomer(r.Context(), database.GetCustomerParams{ID: customerID, CompanyID: companyID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: delete customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Debt returns the outstanding container balance per product, recomputed
// from the full history on every call.
func (h *CustomerHandler) Debt(w http.ResponseWriter, r *http.Request) {
	companyID, customerID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	debts, err := h.debt.Balances(r.Context(), companyID, customerID)
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: compute debt: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productDebtResponse, len(debts))
	for i, d := range debts {
		resp[i] = productDebtResponse{ProductID: d.ProductID, Balance: d.Balance}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SettleDebt appends a settle-to-zero event for one product.
func (h *CustomerHandler) SettleDebt(w http.ResponseWriter, r *http.Request) {
	companyID, customerID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req settleDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}

	settlement, err := h.debt.Settle(r.Context(), service.SettleRequest{
		CompanyID:  companyID,
		CustomerID: customerID,
		ProductID:  productID,
		CreatedBy:  claims.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCustomerNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
		case errors.Is(err, service.ErrNoOutstandingDebt):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "customer has no outstanding debt for this product"})
		default:
			log.Printf("ERROR: settle debt: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":          settlement.ID,
		"customer_id": settlement.CustomerID,
		"product_id":  settlement.ProductID,
		"settled_at":  settlement.SettledAt,
	})
}

// --- Helpers ---

func parseCompanyAndID(w http.ResponseWriter, r *http.Request) (companyID, id uuid.UUID, ok bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return companyID, id, false
	}
	id, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ID"})
		return companyID, id, false
	}
	return companyID, id, true
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
