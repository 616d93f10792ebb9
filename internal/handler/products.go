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
	"github.com/shopspring/decimal"
	"github.com/tirtakita/api/internal/database"
)

// ProductStore defines the database methods needed by product handlers.
type ProductStore interface {
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	ListProductsByCompany(ctx context.Context, companyID uuid.UUID) ([]database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, arg database.SoftDeleteProductParams) (uuid.UUID, error)
}

// ProductHandler handles product master data. Stock counters are read-only
// here; they only move through settlements and reconciliation.
type ProductHandler struct {
	store ProductStore
}

func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterRoutes registers product endpoints. Mounted at /companies/{cid}/products.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type productRequest struct {
	Name             string `json:"name"`
	InitialStock     int32  `json:"initial_stock"`
	InitialEmpty     int32  `json:"initial_empty_stock"`
	IsReturnable     bool   `json:"is_returnable"`
	Price            string `json:"price"`
	PurchasePrice    string `json:"purchase_price"`
	EmptyBottlePrice string `json:"empty_bottle_price"`
}

type productResponse struct {
	ID               uuid.UUID `json:"id"`
	CompanyID        uuid.UUID `json:"company_id"`
	Name             string    `json:"name"`
	Stock            int32     `json:"stock"`
	EmptyBottleStock int32     `json:"empty_bottle_stock"`
	IsReturnable     bool      `json:"is_returnable"`
	Price            string    `json:"price"`
	PurchasePrice    string    `json:"purchase_price"`
	EmptyBottlePrice string    `json:"empty_bottle_price"`
	CreatedAt        time.Time `json:"created_at"`
}

func dbProductToResponse(p database.Product) productResponse {
	return productResponse{
		ID:               p.ID,
		CompanyID:        p.CompanyID,
		Name:             p.Name,
		Stock:            p.Stock,
		EmptyBottleStock: p.EmptyBottleStock,
		IsReturnable:     p.IsReturnable,
		Price:            numericToString(p.Price),
		PurchasePrice:    numericToString(p.PurchasePrice),
		EmptyBottlePrice: numericToString(p.EmptyBottlePrice),
		CreatedAt:        p.CreatedAt,
	}
}

// parsePrice parses a non-negative money amount; empty means zero.
func parsePrice(s string) (pgtype.Numeric, bool) {
	if s == "" {
		var n pgtype.Numeric
		_ = n.Scan("0")
		return n, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return pgtype.Numeric{}, false
	}
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n, true
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.InitialStock < 0 || req.InitialEmpty < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "initial stock must be >= 0"})
		return
	}
	price, ok := parsePrice(req.Price)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}
	purchasePrice, ok := parsePrice(req.PurchasePrice)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purchase_price"})
		return
	}
	emptyPrice, ok := parsePrice(req.EmptyBottlePrice)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid empty_bottle_price"})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		CompanyID:        companyID,
		Name:             req.Name,
		Stock:            req.InitialStock,
		EmptyBottleStock: req.InitialEmpty,
		IsReturnable:     req.IsReturnable,
		Price:            price,
		PurchasePrice:    purchasePrice,
		EmptyBottlePrice: emptyPrice,
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbProductToResponse(product))
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	products, err := h.store.ListProductsByCompany(r.Context(), companyID)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = dbProductToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, productID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	product, err := h.store.GetProduct(r.Context(), database.GetProductParams{ID: productID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbProductToResponse(product))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	companyID, productID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, ok := parsePrice(req.Price)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}
	purchasePrice, ok := parsePrice(req.PurchasePrice)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purchase_price"})
		return
	}
	emptyPrice, ok := parsePrice(req.EmptyBottlePrice)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid empty_bottle_price"})
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:               productID,
		CompanyID:        companyID,
		Name:             req.Name,
		IsReturnable:     req.IsReturnable,
		Price:            price,
		PurchasePrice:    purchasePrice,
		EmptyBottlePrice: emptyPrice,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbProductToResponse(product))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, productID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	if _, err := h.store.SoftDeleteProduct(r.Context(), database.SoftDeleteProductParams{ID: productID, CompanyID: companyID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
