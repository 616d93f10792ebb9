package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tirtakita/api/internal/database"
)

// Errors returned by the order service.
var (
	ErrNoOrderItems   = errors.New("order must have at least one item")
	ErrInvalidQty     = errors.New("item quantity must be positive")
	ErrUnknownProduct = errors.New("product not found")
)

// OrderStore defines the DB methods order creation needs.
// Satisfied by *database.Queries.
type OrderStore interface {
	GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderItemInput is one requested line on a draft order.
type OrderItemInput struct {
	ProductID uuid.UUID
	Qty       int32
}

// CreateOrderRequest is the validated input for creating a draft order.
type CreateOrderRequest struct {
	CompanyID   uuid.UUID
	CustomerID  uuid.UUID
	PlannedDate pgtype.Date
	CreatedBy   uuid.UUID
	Items       []OrderItemInput
}

// CreateOrderResult carries the created order and its lines.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService creates draft orders. Prices are snapshotted from the product
// at creation time; stock does not move until settlement.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// Create inserts the order header and its lines in one transaction.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoOrderItems
	}
	for _, item := range req.Items {
		if item.Qty <= 0 {
			return nil, ErrInvalidQty
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetCustomer(ctx, database.GetCustomerParams{ID: req.CustomerID, CompanyID: req.CompanyID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CompanyID:   req.CompanyID,
		CustomerID:  req.CustomerID,
		PlannedDate: req.PlannedDate,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		product, err := store.GetProduct(ctx, database.GetProductParams{ID: in.ProductID, CompanyID: req.CompanyID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUnknownProduct
			}
			return nil, fmt.Errorf("get product: %w", err)
		}

		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			ProductID: in.ProductID,
			Qty:       in.Qty,
			Price:     product.Price,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateOrderResult{Order: order, Items: items}, nil
}
