package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
)

type mockExpenseStore struct {
	getForUpdateFn func(ctx context.Context, arg database.GetExpenseReportParams) (database.ExpenseReport, error)
	setStatusFn    func(ctx context.Context, arg database.SetExpenseReportStatusParams) (database.ExpenseReport, error)

	transactions []database.CreateFinancialTransactionParams
}

func (m *mockExpenseStore) GetExpenseReportForUpdate(ctx context.Context, arg database.GetExpenseReportParams) (database.ExpenseReport, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, arg)
	}
	return database.ExpenseReport{}, pgx.ErrNoRows
}

func (m *mockExpenseStore) SetExpenseReportStatus(ctx context.Context, arg database.SetExpenseReportStatusParams) (database.ExpenseReport, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, arg)
	}
	return database.ExpenseReport{ID: arg.ID, CompanyID: arg.CompanyID, Status: arg.Status}, nil
}

func (m *mockExpenseStore) CreateFinancialTransaction(ctx context.Context, arg database.CreateFinancialTransactionParams) (database.FinancialTransaction, error) {
	m.transactions = append(m.transactions, arg)
	return database.FinancialTransaction{ID: uuid.New(), Type: arg.Type, Amount: arg.Amount}, nil
}

func newTestExpenseService(store *mockExpenseStore) (*ExpenseService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	return NewExpenseService(pool, func(db database.DBTX) ExpenseStore { return store }), tx
}

func approvedReport(companyID uuid.UUID) database.ExpenseReport {
	return database.ExpenseReport{
		ID:            uuid.New(),
		CompanyID:     companyID,
		UserID:        uuid.New(),
		Description:   "Bensin motor kurir",
		Amount:        makeNumeric("35000.00"),
		PaymentMethod: enum.PaymentMethodCash,
		Status:        enum.ExpenseStatusApproved,
	}
}

func TestExpenseSetStatus_PaidBooksTransaction(t *testing.T) {
	companyID := uuid.New()
	report := approvedReport(companyID)

	store := &mockExpenseStore{
		getForUpdateFn: func(ctx context.Context, arg database.GetExpenseReportParams) (database.ExpenseReport, error) {
			return report, nil
		},
	}
	svc, tx := newTestExpenseService(store)

	updated, err := svc.SetStatus(context.Background(), companyID, report.ID, enum.ExpenseStatusPaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.ExpenseStatusPaid {
		t.Errorf("expected PAID, got %s", updated.Status)
	}

	if len(store.transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(store.transactions))
	}
	ft := store.transactions[0]
	if ft.Type != enum.TransactionExpense {
		t.Errorf("expected EXPENSE, got %s", ft.Type)
	}
	if !numericEquals(ft.Amount, "35000") {
		t.Errorf("payout amount: expected 35000, got %v", ft.Amount)
	}
	if ft.PaymentMethod != enum.PaymentMethodCash {
		t.Errorf("expected CASH, got %s", ft.PaymentMethod)
	}
	if ft.SourceTable.String != "expense_reports" {
		t.Errorf("expected source_table expense_reports, got %q", ft.SourceTable.String)
	}
	if ft.SourceID.Bytes != report.ID {
		t.Errorf("expected source_id %v, got %v", report.ID, ft.SourceID.Bytes)
	}
	if !tx.committed {
		t.Error("expected transaction commit")
	}
}

func TestExpenseSetStatus_ApproveBooksNothing(t *testing.T) {
	companyID := uuid.New()
	report := approvedReport(companyID)
	report.Status = enum.ExpenseStatusPending

	store := &mockExpenseStore{
		getForUpdateFn: func(ctx context.Context, arg database.GetExpenseReportParams) (database.ExpenseReport, error) {
			return report, nil
		},
	}
	svc, _ := newTestExpenseService(store)

	if _, err := svc.SetStatus(context.Background(), companyID, report.ID, enum.ExpenseStatusApproved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.transactions) != 0 {
		t.Errorf("approval must not book a transaction, got %d", len(store.transactions))
	}
}

func TestExpenseSetStatus_InvalidTransitions(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
	}{
		{"pending straight to paid", enum.ExpenseStatusPending, enum.ExpenseStatusPaid},
		{"paid again", enum.ExpenseStatusPaid, enum.ExpenseStatusPaid},
		{"rejected to approved", enum.ExpenseStatusRejected, enum.ExpenseStatusApproved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			companyID := uuid.New()
			report := approvedReport(companyID)
			report.Status = tc.from

			store := &mockExpenseStore{
				getForUpdateFn: func(ctx context.Context, arg database.GetExpenseReportParams) (database.ExpenseReport, error) {
					return report, nil
				},
			}
			svc, tx := newTestExpenseService(store)

			_, err := svc.SetStatus(context.Background(), companyID, report.ID, tc.to)
			if !errors.Is(err, ErrInvalidExpenseTransition) {
				t.Fatalf("expected ErrInvalidExpenseTransition, got: %v", err)
			}
			if len(store.transactions) != 0 {
				t.Error("no transaction may be booked")
			}
			if tx.committed {
				t.Error("transaction must not commit")
			}
		})
	}
}

func TestExpenseSetStatus_NotFound(t *testing.T) {
	svc, _ := newTestExpenseService(&mockExpenseStore{})

	_, err := svc.SetStatus(context.Background(), uuid.New(), uuid.New(), enum.ExpenseStatusApproved)
	if !errors.Is(err, ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got: %v", err)
	}
}
