package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tirtakita/api/internal/database"
)

// ReportStore defines the database methods needed by report handlers.
type ReportStore interface {
	BalanceReport(ctx context.Context, arg database.BalanceReportParams) ([]database.BalanceRow, error)
	DailyCashflowReport(ctx context.Context, arg database.BalanceReportParams) ([]database.DailyCashflowRow, error)
	SalesSummaryReport(ctx context.Context, arg database.BalanceReportParams) ([]database.SalesSummaryRow, error)
	ReceivablesReport(ctx context.Context, companyID uuid.UUID) ([]database.ReceivableRow, error)
}

// ReportHandler serves the financial reporting endpoints. All money in the
// responses is derived from realized payments and booked transactions, never
// recomputed client-side.
type ReportHandler struct {
	store ReportStore
}

func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers report endpoints. Mounted at /companies/{cid}/reports.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/balance", h.Balance)
	r.Get("/cashflow", h.Cashflow)
	r.Get("/sales", h.Sales)
	r.Get("/receivables", h.Receivables)
}

type balanceMethodResponse struct {
	PaymentMethod string `json:"payment_method"`
	Income        string `json:"income"`
	Expense       string `json:"expense"`
	Balance       string `json:"balance"`
}

type balanceReportResponse struct {
	Methods      []balanceMethodResponse `json:"methods"`
	TotalIncome  string                  `json:"total_income"`
	TotalExpense string                  `json:"total_expense"`
	TotalBalance string                  `json:"total_balance"`
}

type cashflowDayResponse struct {
	Date    string `json:"date"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

type salesSummaryResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	TotalQty    int64     `json:"total_qty"`
	Revenue     string    `json:"revenue"`
}

type receivableResponse struct {
	OrderID       uuid.UUID  `json:"order_id"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	CustomerName  string     `json:"customer_name"`
	GrandTotal    string     `json:"grand_total"`
	TotalPaid     string     `json:"total_paid"`
	Outstanding   string     `json:"outstanding"`
	PaymentStatus string     `json:"payment_status"`
	DeliveredAt   *time.Time `json:"delivered_at"`
}

func (h *ReportHandler) reportParams(w http.ResponseWriter, r *http.Request) (database.BalanceReportParams, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return database.BalanceReportParams{}, false
	}
	from, to, ok := parseDateRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date range"})
		return database.BalanceReportParams{}, false
	}
	return database.BalanceReportParams{CompanyID: companyID, From: from, To: to}, true
}

// Balance returns the cash position per payment method over the range.
func (h *ReportHandler) Balance(w http.ResponseWriter, r *http.Request) {
	params, ok := h.reportParams(w, r)
	if !ok {
		return
	}

	rows, err := h.store.BalanceReport(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: balance report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := balanceReportResponse{Methods: make([]balanceMethodResponse, len(rows))}
	totalIncome, totalExpense := decimal.Zero, decimal.Zero
	for i, row := range rows {
		income := numericToDecimalOrZero(row.Income)
		expense := numericToDecimalOrZero(row.Expense)
		totalIncome = totalIncome.Add(income)
		totalExpense = totalExpense.Add(expense)
		resp.Methods[i] = balanceMethodResponse{
			PaymentMethod: row.PaymentMethod,
			Income:        income.StringFixed(2),
			Expense:       expense.StringFixed(2),
			Balance:       income.Sub(expense).StringFixed(2),
		}
	}
	resp.TotalIncome = totalIncome.StringFixed(2)
	resp.TotalExpense = totalExpense.StringFixed(2)
	resp.TotalBalance = totalIncome.Sub(totalExpense).StringFixed(2)
	writeJSON(w, http.StatusOK, resp)
}

// Cashflow returns per-day income and expense over the range.
func (h *ReportHandler) Cashflow(w http.ResponseWriter, r *http.Request) {
	params, ok := h.reportParams(w, r)
	if !ok {
		return
	}

	rows, err := h.store.DailyCashflowReport(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: cashflow report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]cashflowDayResponse, len(rows))
	for i, row := range rows {
		income := numericToDecimalOrZero(row.Income)
		expense := numericToDecimalOrZero(row.Expense)
		resp[i] = cashflowDayResponse{
			Date:    row.Day.Format("2006-01-02"),
			Income:  income.StringFixed(2),
			Expense: expense.StringFixed(2),
			Net:     income.Sub(expense).StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sales returns delivered quantity and revenue per product over the range.
func (h *ReportHandler) Sales(w http.ResponseWriter, r *http.Request) {
	params, ok := h.reportParams(w, r)
	if !ok {
		return
	}

	rows, err := h.store.SalesSummaryReport(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: sales report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]salesSummaryResponse, len(rows))
	for i, row := range rows {
		resp[i] = salesSummaryResponse{
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			TotalQty:    row.TotalQty,
			Revenue:     numericToString(row.Revenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Receivables returns completed orders that are not fully paid.
func (h *ReportHandler) Receivables(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company ID"})
		return
	}

	rows, err := h.store.ReceivablesReport(r.Context(), companyID)
	if err != nil {
		log.Printf("ERROR: receivables report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]receivableResponse, len(rows))
	for i, row := range rows {
		grandTotal := numericToDecimalOrZero(row.GrandTotal)
		totalPaid := numericToDecimalOrZero(row.TotalPaid)
		resp[i] = receivableResponse{
			OrderID:       row.OrderID,
			CustomerID:    row.CustomerID,
			CustomerName:  row.CustomerName,
			GrandTotal:    grandTotal.StringFixed(2),
			TotalPaid:     totalPaid.StringFixed(2),
			Outstanding:   grandTotal.Sub(totalPaid).StringFixed(2),
			PaymentStatus: row.PaymentStatus,
			DeliveredAt:   timeOrNil(row.DeliveredAt),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
