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
	"github.com/tirtakita/api/internal/enum"
)

// TransactionStore defines the database methods needed by transaction handlers.
type TransactionStore interface {
	CreateFinancialTransaction(ctx context.Context, arg database.CreateFinancialTransactionParams) (database.FinancialTransaction, error)
	GetFinancialTransaction(ctx context.Context, arg database.GetFinancialTransactionParams) (database.FinancialTransaction, error)
	ListFinancialTransactions(ctx context.Context, arg database.ListFinancialTransactionsParams) ([]database.FinancialTransaction, error)
	DeleteFinancialTransaction(ctx context.Context, arg database.GetFinancialTransactionParams) error
}

// TransactionHandler handles manual income/expense entries. Rows sourced
// from a settlement are read-only here; their lifecycle belongs to the
// settlement that wrote them.
type TransactionHandler struct {
	store TransactionStore
}

func NewTransactionHandler(store TransactionStore) *TransactionHandler {
	return &TransactionHandler{store: store}
}

// RegisterRoutes registers transaction endpoints. Mounted at
// /companies/{cid}/transactions.
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
}

type createTransactionRequest struct {
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Description   string `json:"description"`
}

type transactionResponse struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Amount        string     `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	Description   string     `json:"description"`
	SourceTable   *string    `json:"source_table"`
	SourceID      *uuid.UUID `json:"source_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

func dbTransactionToResponse(t database.FinancialTransaction) transactionResponse {
	var sourceTable *string
	if t.SourceTable.Valid {
		sourceTable = &t.SourceTable.String
	}
	return transactionResponse{
		ID:            t.ID,
		Type:          t.Type,
		Amount:        numericToString(t.Amount),
		PaymentMethod: t.PaymentMethod,
		Description:   t.Description,
		SourceTable:   sourceTable,
		SourceID:      uuidOrNil(t.SourceID),
		CreatedAt:     t.CreatedAt,
	}
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Type != enum.TransactionIncome && req.Type != enum.TransactionExpense {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be INCOME or EXPENSE"})
		return
	}
	if !enum.IsValidPaymentMethod(req.PaymentMethod) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment_method"})
		return
	}
	if req.Description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
		return
	}
	amount, ok := parsePositiveAmount(req.Amount)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	txn, err := h.store.CreateFinancialTransaction(r.Context(), database.CreateFinancialTransactionParams{
		CompanyID:     companyID,
		Type:          req.Type,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
	})
	if err != nil {
		log.Printf("ERROR: create transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbTransactionToResponse(txn))
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	from, to, ok := parseDateRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date range"})
		return
	}

	limit, offset := parsePagination(r)
	txns, err := h.store.ListFinancialTransactions(r.Context(), database.ListFinancialTransactionsParams{
		CompanyID: companyID,
		Type:      optionalText(r.URL.Query().Get("type")),
		From:      from,
		To:        to,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]transactionResponse, len(txns))
	for i, t := range txns {
		resp[i] = dbTransactionToResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, txnID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	txn, err := h.store.GetFinancialTransaction(r.Context(), database.GetFinancialTransactionParams{ID: txnID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
			return
		}
		log.Printf("ERROR: get transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbTransactionToResponse(txn))
}

// Delete removes a manual entry. Settlement-sourced rows are rejected; they
// disappear only when their settlement is reversed.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, txnID, ok := parseCompanyAndID(w, r)
	if !ok {
		return
	}

	txn, err := h.store.GetFinancialTransaction(r.Context(), database.GetFinancialTransactionParams{ID: txnID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
			return
		}
		log.Printf("ERROR: get transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if txn.SourceTable.Valid {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "settlement-sourced transactions cannot be deleted manually"})
		return
	}

	if err := h.store.DeleteFinancialTransaction(r.Context(), database.GetFinancialTransactionParams{ID: txnID, CompanyID: companyID}); err != nil {
		log.Printf("ERROR: delete transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
