package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
)

// Errors returned by the expense service.
var (
	ErrExpenseNotFound          = errors.New("expense report not found")
	ErrInvalidExpenseStatus     = errors.New("invalid expense status")
	ErrInvalidExpenseTransition = errors.New("expense status transition not allowed")
)

// ExpenseStore defines the DB methods expense approval needs.
// Satisfied by *database.Queries.
type ExpenseStore interface {
	GetExpenseReportForUpdate(ctx context.Context, arg database.GetExpenseReportParams) (database.ExpenseReport, error)
	SetExpenseReportStatus(ctx context.Context, arg database.SetExpenseReportStatusParams) (database.ExpenseReport, error)
	CreateFinancialTransaction(ctx context.Context, arg database.CreateFinancialTransactionParams) (database.FinancialTransaction, error)
}

// NewExpenseStore creates an ExpenseStore from a DBTX (pool or tx).
type NewExpenseStore func(db database.DBTX) ExpenseStore

// expenseTransitions is the allowed state machine: a report is approved or
// rejected while pending, and paid only after approval.
var expenseTransitions = map[string]map[string]bool{
	enum.ExpenseStatusPending: {
		enum.ExpenseStatusApproved: true,
		enum.ExpenseStatusRejected: true,
	},
	enum.ExpenseStatusApproved: {
		enum.ExpenseStatusPaid: true,
	},
}

// ExpenseService moves expense reports through their approval lifecycle.
type ExpenseService struct {
	pool     TxBeginner
	newStore NewExpenseStore
}

func NewExpenseService(pool TxBeginner, newStore NewExpenseStore) *ExpenseService {
	return &ExpenseService{pool: pool, newStore: newStore}
}

// SetStatus applies one transition under a row lock so concurrent approvals
// cannot race past each other.
func (s *ExpenseService) SetStatus(ctx context.Context, companyID, expenseID uuid.UUID, status string) (*database.ExpenseReport, error) {
	switch status {
	case enum.ExpenseStatusApproved, enum.ExpenseStatusRejected, enum.ExpenseStatusPaid:
	default:
		return nil, ErrInvalidExpenseStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	report, err := store.GetExpenseReportForUpdate(ctx, database.GetExpenseReportParams{ID: expenseID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("lock expense report: %w", err)
	}
	if !expenseTransitions[report.Status][status] {
		return nil, ErrInvalidExpenseTransition
	}

	updated, err := store.SetExpenseReportStatus(ctx, database.SetExpenseReportStatusParams{
		ID:        expenseID,
		CompanyID: companyID,
		Status:    status,
	})
	if err != nil {
		return nil, fmt.Errorf("set expense status: %w", err)
	}

	// A payout is money leaving the company, so it lands in the
	// transaction log sourced to this report.
	if status == enum.ExpenseStatusPaid {
		if _, err := store.CreateFinancialTransaction(ctx, database.CreateFinancialTransactionParams{
			CompanyID:     companyID,
			Type:          enum.TransactionExpense,
			Amount:        report.Amount,
			PaymentMethod: report.PaymentMethod,
			Description:   fmt.Sprintf("Pembayaran pengeluaran: %s", report.Description),
			SourceTable:   pgtype.Text{String: "expense_reports", Valid: true},
			SourceID:      pgtype.UUID{Bytes: report.ID, Valid: true},
		}); err != nil {
			return nil, fmt.Errorf("record expense payout: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}
