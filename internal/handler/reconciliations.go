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
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/middleware"
	"github.com/tirtakita/api/internal/service"
)

// ReconcileServicer defines the service methods needed by reconciliation
// handlers. Satisfied by *service.ReconcileService.
type ReconcileServicer interface {
	Preview(ctx context.Context, req service.ReconcileRequest) ([]service.ReconcileLine, error)
	Apply(ctx context.Context, req service.ReconcileRequest) (*service.ReconcileResult, error)
}

// ReconciliationStore defines the read methods for reconciliation history.
type ReconciliationStore interface {
	GetStockReconciliation(ctx context.Context, arg database.GetStockReconciliationParams) (database.StockReconciliation, error)
	ListStockReconciliations(ctx context.Context, arg database.ListStockReconciliationsParams) ([]database.StockReconciliation, error)
}

// ReconciliationHandler handles physical stock counts.
type ReconciliationHandler struct {
	svc   ReconcileServicer
	store ReconciliationStore
}

func NewReconciliationHandler(svc ReconcileServicer, store ReconciliationStore) *ReconciliationHandler {
	return &ReconciliationHandler{svc: svc, store: store}
}

// RegisterRoutes registers reconciliation endpoints. Mounted at
// /companies/{cid}/reconciliations.
func (h *ReconciliationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/preview", h.Preview)
	r.Post("/", h.Apply)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

type reconcileRequest struct {
	StockType string                  `json:"stock_type"`
	Counts    []reconcileCountRequest `json:"counts"`
}

type reconcileCountRequest struct {
	ProductID     string `json:"product_id"`
	PhysicalCount int32  `json:"physical_count"`
}

type reconciliationResponse struct {
	ID                 uuid.UUID               `json:"id"`
	UserID             uuid.UUID               `json:"user_id"`
	ReconciliationDate time.Time               `json:"reconciliation_date"`
	StockType          string                  `json:"stock_type"`
	Items              []service.ReconcileLine `json:"items"`
	CreatedAt          time.Time               `json:"created_at"`
}

func dbReconciliationToResponse(rec database.StockReconciliation) reconciliationResponse {
	items := []service.ReconcileLine{}
	if len(rec.Items) > 0 {
		if err := json.Unmarshal(rec.Items, &items); err != nil {
			items = []service.ReconcileLine{}
		}
	}
	return reconciliationResponse{
		ID:                 rec.ID,
		UserID:             rec.UserID,
		ReconciliationDate: rec.ReconciliationDate,
		StockType:          rec.StockType,
		Items:              items,
		CreatedAt:          rec.CreatedAt,
	}
}

func (h *ReconciliationHandler) parseRequest(w http.ResponseWriter, r *http.Request) (service.ReconcileRequest, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return service.ReconcileRequest{}, false
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return service.ReconcileRequest{}, false
	}

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return service.ReconcileRequest{}, false
	}
	counts := make([]service.ReconcileCount, 0, len(req.Counts))
	for _, c := range req.Counts {
		productID, err := uuid.Parse(c.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
			return service.ReconcileRequest{}, false
		}
		counts = append(counts, service.ReconcileCount{ProductID: productID, PhysicalCount: c.PhysicalCount})
	}

	return service.ReconcileRequest{
		CompanyID: companyID,
		UserID:    claims.UserID,
		StockType: req.StockType,
		Counts:    counts,
	}, true
}

// Preview computes the differences without applying anything.
func (h *ReconciliationHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	lines, err := h.svc.Preview(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

// Apply overrides the stock counters to the physical counts and persists an
// immutable snapshot of the comparison.
func (h *ReconciliationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Apply(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := dbReconciliationToResponse(result.Reconciliation)
	resp.Items = result.Lines
	writeJSON(w, http.StatusCreated, resp)
}

func (h *ReconciliationHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	limit, offset := parsePagination(r)
	recs, err := h.store.ListStockReconciliations(r.Context(), database.ListStockReconciliationsParams{
		CompanyID: companyID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list reconciliations: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]reconciliationResponse, len(recs))
	for i, rec := range recs {
		resp[i] = dbReconciliationToResponse(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReconciliationHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, recID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	rec, err := h.store.GetStockReconciliation(r.Context(), database.GetStockReconciliationParams{ID: recID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "reconciliation not found"})
			return
		}
		log.Printf("ERROR: get reconciliation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbReconciliationToResponse(rec))
}

func (h *ReconciliationHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidStockType),
		errors.Is(err, service.ErrEmptyReconciliation),
		errors.Is(err, service.ErrInvalidPhysicalQty):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
	default:
		log.Printf("ERROR: reconciliation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
