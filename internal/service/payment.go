package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
)

// Errors returned by the payment service.
var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotCompleted    = errors.New("order is not completed")
	ErrInvalidAmount        = errors.New("amount must be > 0")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrOverpayment          = errors.New("payment exceeds remaining amount due")
)

// PaymentStore defines the DB methods needed to record and remove payments.
// Satisfied by *database.Queries.
type PaymentStore interface {
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
	SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	UpdateOrderPaymentStatus(ctx context.Context, arg database.UpdateOrderPaymentStatusParams) (database.Order, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// DerivePaymentStatus maps the paid total against the order total. The
// status is never stored independently of this derivation.
func DerivePaymentStatus(totalPaid, grandTotal decimal.Decimal) string {
	switch {
	case totalPaid.GreaterThanOrEqual(grandTotal) && grandTotal.GreaterThan(decimal.Zero):
		return enum.PaymentStatusPaid
	case grandTotal.IsZero() || grandTotal.IsNegative():
		return enum.PaymentStatusPaid
	case totalPaid.GreaterThan(decimal.Zero):
		return enum.PaymentStatusPartial
	default:
		return enum.PaymentStatusUnpaid
	}
}

// PaymentService records and removes payments against completed orders,
// re-deriving the order payment status inside the same transaction.
type PaymentService struct {
	pool     TxBeginner
	newStore NewPaymentStore
}

func NewPaymentService(pool TxBeginner, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{pool: pool, newStore: newStore}
}

// AddPaymentRequest is the validated input for recording a payment.
type AddPaymentRequest struct {
	CompanyID     uuid.UUID
	OrderID       uuid.UUID
	Amount        string
	PaymentMethod string
	ReceivedBy    uuid.UUID
	ProofRef      string
}

// AddPaymentResult carries the new payment and the re-derived order.
type AddPaymentResult struct {
	Payment database.Payment
	Order   database.Order
}

func (s *PaymentService) AddPayment(ctx context.Context, req AddPaymentRequest) (*AddPaymentResult, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.GreaterThan(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if !enum.IsValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: req.OrderID, CompanyID: req.CompanyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if order.Status != enum.OrderStatusCompleted {
		return nil, ErrOrderNotCompleted
	}

	paid, err := store.SumPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	remaining := numericToDecimal(order.GrandTotal).Sub(numericToDecimal(paid))
	if amount.GreaterThan(remaining) {
		return nil, ErrOverpayment
	}

	proofRef := pgtype.Text{}
	if req.ProofRef != "" {
		proofRef = pgtype.Text{String: req.ProofRef, Valid: true}
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:       req.OrderID,
		Amount:        decimalToNumeric(amount),
		PaymentMethod: req.PaymentMethod,
		ReceivedBy:    req.ReceivedBy,
		ProofRef:      proofRef,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	updated, err := s.rederiveStatus(ctx, store, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &AddPaymentResult{Payment: payment, Order: updated}, nil
}

// DeletePayment removes a payment and re-derives the order status. A paid
// order can move back to PARTIAL or UNPAID here.
func (s *PaymentService) DeletePayment(ctx context.Context, companyID, paymentID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	payment, err := store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: payment.OrderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if err := store.DeletePayment(ctx, paymentID); err != nil {
		return nil, fmt.Errorf("delete payment: %w", err)
	}

	updated, err := s.rederiveStatus(ctx, store, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

func (s *PaymentService) rederiveStatus(ctx context.Context, store PaymentStore, order database.Order) (database.Order, error) {
	total, err := store.SumPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return database.Order{}, fmt.Errorf("sum payments: %w", err)
	}
	status := DerivePaymentStatus(numericToDecimal(total), numericToDecimal(order.GrandTotal))
	updated, err := store.UpdateOrderPaymentStatus(ctx, database.UpdateOrderPaymentStatusParams{
		ID:            order.ID,
		PaymentStatus: status,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update payment status: %w", err)
	}
	return updated, nil
}
