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
	"github.com/tirtakita/api/internal/enum"
	"github.com/tirtakita/api/internal/middleware"
	"github.com/tirtakita/api/internal/service"
)

// ExpenseServicer defines the service methods needed by expense handlers.
// Satisfied by *service.ExpenseService.
type ExpenseServicer interface {
	SetStatus(ctx context.Context, companyID, expenseID uuid.UUID, status string) (*database.ExpenseReport, error)
}

// ExpenseReportStore defines the database methods needed by expense handlers.
type ExpenseReportStore interface {
	CreateExpenseReport(ctx context.Context, arg database.CreateExpenseReportParams) (database.ExpenseReport, error)
	GetExpenseReport(ctx context.Context, arg database.GetExpenseReportParams) (database.ExpenseReport, error)
	ListExpenseReports(ctx context.Context, arg database.ListExpenseReportsParams) ([]database.ExpenseReport, error)
}

// ExpenseReportHandler handles staff expense reports and their approval flow.
type ExpenseReportHandler struct {
	svc   ExpenseServicer
	store ExpenseReportStore
}

func NewExpenseReportHandler(svc ExpenseServicer, store ExpenseReportStore) *ExpenseReportHandler {
	return &ExpenseReportHandler{svc: svc, store: store}
}

// RegisterRoutes registers expense report endpoints. Mounted at
// /companies/{cid}/expense-reports.
func (h *ExpenseReportHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/status", h.SetStatus)
}

type createExpenseRequest struct {
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	ProofRef      string `json:"proof_ref"`
}

type expenseStatusRequest struct {
	Status string `json:"status"`
}

type expenseResponse struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Description   string     `json:"description"`
	Amount        string     `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	ProofRef      *string    `json:"proof_ref"`
	PaidAt        *time.Time `json:"paid_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func dbExpenseToResponse(e database.ExpenseReport) expenseResponse {
	var proofRef *string
	if e.ProofRef.Valid {
		proofRef = &e.ProofRef.String
	}
	return expenseResponse{
		ID:            e.ID,
		UserID:        e.UserID,
		Description:   e.Description,
		Amount:        numericToString(e.Amount),
		PaymentMethod: e.PaymentMethod,
		Status:        e.Status,
		ProofRef:      proofRef,
		PaidAt:        timeOrNil(e.PaidAt),
		CreatedAt:     e.CreatedAt,
	}
}

func (h *ExpenseReportHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
		return
	}
	if !enum.IsValidPaymentMethod(req.PaymentMethod) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment_method"})
		return
	}
	amount, ok := parsePositiveAmount(req.Amount)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	report, err := h.store.CreateExpenseReport(r.Context(), database.CreateExpenseReportParams{
		CompanyID:     companyID,
		UserID:        claims.UserID,
		Description:   req.Description,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		ProofRef:      optionalText(req.ProofRef),
	})
	if err != nil {
		log.Printf("ERROR: create expense report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbExpenseToResponse(report))
}

func (h *ExpenseReportHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	userID := pgtype.UUID{}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user_id"})
			return
		}
		userID = pgtype.UUID{Bytes: id, Valid: true}
	}

	limit, offset := parsePagination(r)
	reports, err := h.store.ListExpenseReports(r.Context(), database.ListExpenseReportsParams{
		CompanyID: companyID,
		Status:    optionalText(r.URL.Query().Get("status")),
		UserID:    userID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list expense reports: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]expenseResponse, len(reports))
	for i, e := range reports {
		resp[i] = dbExpenseToResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ExpenseReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, reportID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	report, err := h.store.GetExpenseReport(r.Context(), database.GetExpenseReportParams{ID: reportID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "expense report not found"})
			return
		}
		log.Printf("ERROR: get expense report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbExpenseToResponse(report))
}

// SetStatus moves a report through PENDING -> APPROVED/REJECTED -> PAID.
func (h *ExpenseReportHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	companyID, reportID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	var req expenseStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	report, err := h.svc.SetStatus(r.Context(), companyID, reportID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExpenseNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "expense report not found"})
		case errors.Is(err, service.ErrInvalidExpenseStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidExpenseTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: set expense status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dbExpenseToResponse(*report))
}
