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
)

// CompanyStore defines the database methods needed by company handlers.
type CompanyStore interface {
	CreateCompany(ctx context.Context, name string) (database.Company, error)
	GetCompany(ctx context.Context, id uuid.UUID) (database.Company, error)
	ListCompanies(ctx context.Context) ([]database.Company, error)
}

// CompanyHandler handles tenant administration. Reserved for SUPER_ADMIN.
type CompanyHandler struct {
	store CompanyStore
}

func NewCompanyHandler(store CompanyStore) *CompanyHandler {
	return &CompanyHandler{store: store}
}

// RegisterRoutes registers company endpoints. Mounted at /admin/companies.
func (h *CompanyHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

type companyRequest struct {
	Name string `json:"name"`
}

type companyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func dbCompanyToResponse(c database.Company) companyResponse {
	return companyResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	company, err := h.store.CreateCompany(r.Context(), req.Name)
	if err != nil {
		log.Printf("ERROR: create company: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbCompanyToResponse(company))
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.store.ListCompanies(r.Context())
	if err != nil {
		log.Printf("ERROR: list companies: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]companyResponse, len(companies))
	for i, c := range companies {
		resp[i] = dbCompanyToResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	company, err := h.store.GetCompany(r.Context(), companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "company not found"})
			return
		}
		log.Printf("ERROR: get company: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbCompanyToResponse(company))
}
