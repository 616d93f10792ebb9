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

// Errors returned by the delivery service.
var (
	ErrOrderAlreadyCompleted  = errors.New("order already completed")
	ErrOrderNotSent           = errors.New("order has not been sent out")
	ErrReturnExceedsDelivered = errors.New("returned + purchased exceeds delivered quantity")
	ErrUnknownReturnable      = errors.New("returnable item does not match any order line")
	ErrInvalidTransportCost   = errors.New("invalid transport_cost")
)

// DeliveryStore defines the DB methods the settlement needs.
// Satisfied by *database.Queries.
type DeliveryStore interface {
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetProductForUpdate(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	AdjustProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error)
	AdjustEmptyBottleStock(ctx context.Context, arg database.AdjustStockParams) (int32, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	UpsertOrderGalonItem(ctx context.Context, arg database.UpsertOrderGalonItemParams) (database.OrderGalonItem, error)
	CreateFinancialTransaction(ctx context.Context, arg database.CreateFinancialTransactionParams) (database.FinancialTransaction, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	CompleteOrder(ctx context.Context, arg database.CompleteOrderParams) (database.Order, error)
}

// NewDeliveryStore creates a DeliveryStore from a DBTX (pool or tx).
type NewDeliveryStore func(db database.DBTX) DeliveryStore

// ReturnableItem is the courier-entered container outcome for one product.
// BorrowedQty is derived from the delivered quantity, never supplied.
type ReturnableItem struct {
	ProductID         uuid.UUID
	ReturnedQty       int32
	PurchasedEmptyQty int32
}

// DeliveryPayment is the optional payment collected at the door.
type DeliveryPayment struct {
	Amount        string
	PaymentMethod string
	ProofRef      string
}

// CompleteDeliveryRequest is the validated input for settling a delivery.
type CompleteDeliveryRequest struct {
	CompanyID       uuid.UUID
	OrderID         uuid.UUID
	UserID          uuid.UUID
	ReturnableItems []ReturnableItem
	TransportCost   string
	Payment         *DeliveryPayment
	ProofRef        string
}

// CompleteDeliveryResult carries the settled order and derived totals.
type CompleteDeliveryResult struct {
	Order      database.Order
	GrandTotal decimal.Decimal
	TotalPaid  decimal.Decimal
}

// DeliveryService settles completed deliveries: stock, container ledger,
// money and order state move together in one transaction.
type DeliveryService struct {
	pool     TxBeginner
	newStore NewDeliveryStore
}

func NewDeliveryService(pool TxBeginner, newStore NewDeliveryStore) *DeliveryService {
	return &DeliveryService{pool: pool, newStore: newStore}
}

// Complete runs the full settlement. The order row lock plus the status
// predicate in CompleteOrder make it one-shot: a concurrent second attempt
// blocks on the lock and then fails the status check.
func (s *DeliveryService) Complete(ctx context.Context, req CompleteDeliveryRequest) (*CompleteDeliveryResult, error) {
	transportCost := decimal.Zero
	if req.TransportCost != "" {
		var err error
		transportCost, err = decimal.NewFromString(req.TransportCost)
		if err != nil || transportCost.IsNegative() {
			return nil, ErrInvalidTransportCost
		}
	}
	var paymentAmount decimal.Decimal
	if req.Payment != nil {
		var err error
		paymentAmount, err = decimal.NewFromString(req.Payment.Amount)
		if err != nil || !paymentAmount.GreaterThan(decimal.Zero) {
			return nil, ErrInvalidAmount
		}
		if !enum.IsValidPaymentMethod(req.Payment.PaymentMethod) {
			return nil, ErrInvalidPaymentMethod
		}
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
	switch order.Status {
	case enum.OrderStatusCompleted:
		return nil, ErrOrderAlreadyCompleted
	case enum.OrderStatusSent:
	default:
		return nil, ErrOrderNotSent
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	// Delivered quantity per product; an order can carry the same product
	// on multiple lines.
	delivered := map[uuid.UUID]int32{}
	itemsTotal := decimal.Zero
	for _, item := range items {
		delivered[item.ProductID] += item.Qty
		itemsTotal = itemsTotal.Add(numericToDecimal(item.Price).Mul(decimal.NewFromInt32(item.Qty)))
	}

	returnables := map[uuid.UUID]ReturnableItem{}
	for _, ri := range req.ReturnableItems {
		if _, ok := delivered[ri.ProductID]; !ok {
			return nil, ErrUnknownReturnable
		}
		returnables[ri.ProductID] = ri
	}

	orderRef := pgtype.UUID{Bytes: order.ID, Valid: true}
	purchaseCost := decimal.Zero
	settled := map[uuid.UUID]bool{}
	var totalReturned, totalBorrowed, totalPurchased int32

	for _, item := range items {
		product, err := store.GetProductForUpdate(ctx, database.GetProductParams{ID: item.ProductID, CompanyID: req.CompanyID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", item.ProductID, pgx.ErrNoRows)
			}
			return nil, fmt.Errorf("lock product: %w", err)
		}

		if _, err := store.AdjustProductStock(ctx, database.AdjustStockParams{
			ID: item.ProductID, CompanyID: req.CompanyID, Delta: -item.Qty,
		}); err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			CompanyID: req.CompanyID,
			ProductID: item.ProductID,
			Type:      enum.MovementKeluar,
			Qty:       item.Qty,
			OrderID:   orderRef,
			UserID:    req.UserID,
		}); err != nil {
			return nil, fmt.Errorf("record keluar movement: %w", err)
		}

		// Multi-line orders settle the product once, on its first line.
		if !product.IsReturnable || settled[item.ProductID] {
			continue
		}
		settled[item.ProductID] = true

		ri := returnables[item.ProductID]
		deliveredQty := delivered[item.ProductID]
		if ri.ReturnedQty < 0 || ri.PurchasedEmptyQty < 0 ||
			ri.ReturnedQty+ri.PurchasedEmptyQty > deliveredQty {
			return nil, ErrReturnExceedsDelivered
		}

		if ri.ReturnedQty > 0 {
			if _, err := store.AdjustEmptyBottleStock(ctx, database.AdjustStockParams{
				ID: item.ProductID, CompanyID: req.CompanyID, Delta: ri.ReturnedQty,
			}); err != nil {
				return nil, fmt.Errorf("increment empty stock: %w", err)
			}
			if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
				CompanyID: req.CompanyID,
				ProductID: item.ProductID,
				Type:      enum.MovementPengembalian,
				Qty:       ri.ReturnedQty,
				OrderID:   orderRef,
				UserID:    req.UserID,
			}); err != nil {
				return nil, fmt.Errorf("record pengembalian movement: %w", err)
			}
		}

		if ri.PurchasedEmptyQty > 0 {
			if _, err := store.AdjustEmptyBottleStock(ctx, database.AdjustStockParams{
				ID: item.ProductID, CompanyID: req.CompanyID, Delta: ri.PurchasedEmptyQty,
			}); err != nil {
				return nil, fmt.Errorf("increment empty stock: %w", err)
			}
			if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
				CompanyID: req.CompanyID,
				ProductID: item.ProductID,
				Type:      enum.MovementGalonDibeli,
				Qty:       ri.PurchasedEmptyQty,
				OrderID:   orderRef,
				UserID:    req.UserID,
			}); err != nil {
				return nil, fmt.Errorf("record galon_dibeli movement: %w", err)
			}
			purchaseCost = purchaseCost.Add(
				numericToDecimal(product.EmptyBottlePrice).Mul(decimal.NewFromInt32(ri.PurchasedEmptyQty)))
		}

		borrowed := deliveredQty - ri.ReturnedQty - ri.PurchasedEmptyQty
		if borrowed > 0 {
			if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
				CompanyID: req.CompanyID,
				ProductID: item.ProductID,
				Type:      enum.MovementPinjamKembali,
				Qty:       borrowed,
				OrderID:   orderRef,
				UserID:    req.UserID,
			}); err != nil {
				return nil, fmt.Errorf("record pinjam_kembali movement: %w", err)
			}
		}

		if _, err := store.UpsertOrderGalonItem(ctx, database.UpsertOrderGalonItemParams{
			OrderID:           order.ID,
			ProductID:         item.ProductID,
			ReturnedQty:       ri.ReturnedQty,
			BorrowedQty:       borrowed,
			PurchasedEmptyQty: ri.PurchasedEmptyQty,
		}); err != nil {
			return nil, fmt.Errorf("upsert galon item: %w", err)
		}

		totalReturned += ri.ReturnedQty
		totalBorrowed += borrowed
		totalPurchased += ri.PurchasedEmptyQty
	}

	grandTotal := itemsTotal.Add(transportCost).Add(purchaseCost)

	// Empty-bottle purchases raise the customer's bill, so the line books
	// as income even though containers flow inward.
	if purchaseCost.GreaterThan(decimal.Zero) {
		if _, err := store.CreateFinancialTransaction(ctx, database.CreateFinancialTransactionParams{
			CompanyID:     req.CompanyID,
			Type:          enum.TransactionIncome,
			Amount:        decimalToNumeric(purchaseCost),
			PaymentMethod: enum.PaymentMethodCash,
			Description:   "Pembelian galon kosong dari pelanggan",
			SourceTable:   pgtype.Text{String: "orders", Valid: true},
			SourceID:      orderRef,
		}); err != nil {
			return nil, fmt.Errorf("record purchase income: %w", err)
		}
	}
	if transportCost.GreaterThan(decimal.Zero) {
		if _, err := store.CreateFinancialTransaction(ctx, database.CreateFinancialTransactionParams{
			CompanyID:     req.CompanyID,
			Type:          enum.TransactionIncome,
			Amount:        decimalToNumeric(transportCost),
			PaymentMethod: enum.PaymentMethodCash,
			Description:   "Biaya transportasi pengiriman",
			SourceTable:   pgtype.Text{String: "orders", Valid: true},
			SourceID:      orderRef,
		}); err != nil {
			return nil, fmt.Errorf("record transport income: %w", err)
		}
	}

	if req.Payment != nil {
		if paymentAmount.GreaterThan(grandTotal) {
			return nil, ErrOverpayment
		}
		proofRef := pgtype.Text{}
		if req.Payment.ProofRef != "" {
			proofRef = pgtype.Text{String: req.Payment.ProofRef, Valid: true}
		}
		if _, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID:       order.ID,
			Amount:        decimalToNumeric(paymentAmount),
			PaymentMethod: req.Payment.PaymentMethod,
			ReceivedBy:    req.UserID,
			ProofRef:      proofRef,
		}); err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
	}

	// Re-sum from storage; the client-supplied amount is never trusted as
	// the paid total.
	paidNumeric, err := store.SumPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	totalPaid := numericToDecimal(paidNumeric)
	paymentStatus := DerivePaymentStatus(totalPaid, grandTotal)

	proofRef := pgtype.Text{}
	if req.ProofRef != "" {
		proofRef = pgtype.Text{String: req.ProofRef, Valid: true}
	}
	completed, err := store.CompleteOrder(ctx, database.CompleteOrderParams{
		ID:                order.ID,
		CompanyID:         req.CompanyID,
		PaymentStatus:     paymentStatus,
		GrandTotal:        decimalToNumeric(grandTotal),
		TransportCost:     decimalToNumeric(transportCost),
		ReturnedQty:       totalReturned,
		BorrowedQty:       totalBorrowed,
		PurchasedEmptyQty: totalPurchased,
		ProofRef:          proofRef,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderAlreadyCompleted
		}
		return nil, fmt.Errorf("complete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CompleteDeliveryResult{
		Order:      completed,
		GrandTotal: grandTotal,
		TotalPaid:  totalPaid,
	}, nil
}
