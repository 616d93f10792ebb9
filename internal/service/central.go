package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
)

// Errors returned by the central order service.
var (
	ErrCentralOrderNotFound        = errors.New("central order not found")
	ErrCentralOrderAlreadyReceived = errors.New("central order already received")
	ErrCentralOrderNotReceived     = errors.New("central order has not been received")
	ErrUnknownCentralItem          = errors.New("received item does not match any central order line")
	ErrInvalidReceivedQty          = errors.New("received quantity must be >= 0")
)

// CentralStore defines the DB methods the restock settlement needs.
// Satisfied by *database.Queries.
type CentralStore interface {
	CreateCentralOrder(ctx context.Context, arg database.CreateCentralOrderParams) (database.CentralOrder, error)
	CreateCentralOrderItem(ctx context.Context, arg database.CreateCentralOrderItemParams) (database.CentralOrderItem, error)
	GetCentralOrderForUpdate(ctx context.Context, arg database.GetCentralOrderParams) (database.CentralOrder, error)
	ListCentralOrderItems(ctx context.Context, centralOrderID uuid.UUID) ([]database.CentralOrderItem, error)
	SetCentralOrderItemReceived(ctx context.Context, arg database.SetCentralOrderItemReceivedParams) (database.CentralOrderItem, error)
	SetCentralOrderReceived(ctx context.Context, arg database.SetCentralOrderReceivedParams) (database.CentralOrder, error)
	RollbackCentralOrder(ctx context.Context, arg database.RollbackCentralOrderParams) (database.CentralOrder, error)
	DeleteCentralOrder(ctx context.Context, arg database.GetCentralOrderParams) error
	DeleteCentralOrderItems(ctx context.Context, centralOrderID uuid.UUID) error
	AdjustProductStock(ctx context.Context, arg database.AdjustStockParams) (int32, error)
	AdjustEmptyBottleStock(ctx context.Context, arg database.AdjustStockParams) (int32, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	DeleteStockMovementsByCentralOrder(ctx context.Context, centralOrderID uuid.UUID) error
	CreateFinancialTransaction(ctx context.Context, arg database.CreateFinancialTransactionParams) (database.FinancialTransaction, error)
	DeleteTransactionsBySource(ctx context.Context, arg database.DeleteTransactionsBySourceParams) error
}

// NewCentralStore creates a CentralStore from a DBTX (pool or tx).
type NewCentralStore func(db database.DBTX) CentralStore

// ReceivedItem is the checked-in quantity for one central order line.
type ReceivedItem struct {
	ItemID      uuid.UUID
	ReceivedQty int32
}

// ReceiveCentralOrderRequest is the validated input for receiving a restock
// shipment. The container maps are keyed by product id: ReturnedToCentral
// sends empties back with the truck, BorrowedFromCentral records a container
// liability to the supplier, SoldEmptyToCentral buys extra empties from the
// supplier.
type ReceiveCentralOrderRequest struct {
	CompanyID           uuid.UUID
	CentralOrderID      uuid.UUID
	UserID              uuid.UUID
	ReceivedItems       []ReceivedItem
	ReturnedToCentral   map[uuid.UUID]int32
	BorrowedFromCentral map[uuid.UUID]int32
	SoldEmptyToCentral  map[uuid.UUID]int32
	TransportCost       string
}

// CentralService settles restock shipments from the central supplier. A
// receive, its edit and its rollback each run as one transaction so stock,
// movements and money never drift apart.
type CentralService struct {
	pool     TxBeginner
	newStore NewCentralStore
}

func NewCentralService(pool TxBeginner, newStore NewCentralStore) *CentralService {
	return &CentralService{pool: pool, newStore: newStore}
}

// CentralOrderItemInput is one requested line on a draft central order.
type CentralOrderItemInput struct {
	ProductID uuid.UUID
	Qty       int32
}

// CreateCentralOrderRequest is the validated input for a draft restock order.
type CreateCentralOrderRequest struct {
	CompanyID    uuid.UUID
	SupplierName string
	OrderDate    pgtype.Date
	CreatedBy    uuid.UUID
	Items        []CentralOrderItemInput
}

// CreateCentralOrderResult carries the created order and its lines.
type CreateCentralOrderResult struct {
	Order database.CentralOrder
	Items []database.CentralOrderItem
}

// Create inserts a draft central order with its lines in one transaction.
// Prices are snapshotted from the product purchase price.
func (s *CentralService) Create(ctx context.Context, req CreateCentralOrderRequest) (*CreateCentralOrderResult, error) {
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

	order, err := store.CreateCentralOrder(ctx, database.CreateCentralOrderParams{
		CompanyID:    req.CompanyID,
		SupplierName: req.SupplierName,
		OrderDate:    req.OrderDate,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create central order: %w", err)
	}

	items := make([]database.CentralOrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		product, err := store.GetProduct(ctx, database.GetProductParams{ID: in.ProductID, CompanyID: req.CompanyID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUnknownProduct
			}
			return nil, fmt.Errorf("get product: %w", err)
		}
		item, err := store.CreateCentralOrderItem(ctx, database.CreateCentralOrderItemParams{
			CentralOrderID: order.ID,
			ProductID:      in.ProductID,
			Qty:            in.Qty,
			Price:          product.PurchasePrice,
		})
		if err != nil {
			return nil, fmt.Errorf("create central order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateCentralOrderResult{Order: order, Items: items}, nil
}

// Receive settles a draft central order: received quantities flow into
// sellable stock, the container maps adjust empty-bottle stock, and the
// purchase is booked as expense transactions sourced to this order.
func (s *CentralService) Receive(ctx context.Context, req ReceiveCentralOrderRequest) (*database.CentralOrder, error) {
	transportCost := decimal.Zero
	if req.TransportCost != "" {
		var err error
		transportCost, err = decimal.NewFromString(req.TransportCost)
		if err != nil || transportCost.IsNegative() {
			return nil, ErrInvalidTransportCost
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetCentralOrderForUpdate(ctx, database.GetCentralOrderParams{ID: req.CentralOrderID, CompanyID: req.CompanyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCentralOrderNotFound
		}
		return nil, fmt.Errorf("lock central order: %w", err)
	}
	if order.Status != enum.CentralOrderStatusDraft {
		return nil, ErrCentralOrderAlreadyReceived
	}

	received, err := s.applyReceive(ctx, store, order, req, transportCost)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return received, nil
}

// EditReceived re-settles an already received order with new quantities.
// The old settlement is reversed and the new one applied in the same
// transaction, so stock only ever sees the net delta.
func (s *CentralService) EditReceived(ctx context.Context, req ReceiveCentralOrderRequest) (*database.CentralOrder, error) {
	transportCost := decimal.Zero
	if req.TransportCost != "" {
		var err error
		transportCost, err = decimal.NewFromString(req.TransportCost)
		if err != nil || transportCost.IsNegative() {
			return nil, ErrInvalidTransportCost
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetCentralOrderForUpdate(ctx, database.GetCentralOrderParams{ID: req.CentralOrderID, CompanyID: req.CompanyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCentralOrderNotFound
		}
		return nil, fmt.Errorf("lock central order: %w", err)
	}
	if order.Status != enum.CentralOrderStatusReceived {
		return nil, ErrCentralOrderNotReceived
	}

	if err := s.reverseReceive(ctx, store, order); err != nil {
		return nil, err
	}
	received, err := s.applyReceive(ctx, store, order, req, transportCost)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return received, nil
}

// Unreceive rolls a received order back to draft, reversing every stock
// effect and deleting the movements and transactions the receive wrote.
func (s *CentralService) Unreceive(ctx context.Context, companyID, centralOrderID uuid.UUID) (*database.CentralOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetCentralOrderForUpdate(ctx, database.GetCentralOrderParams{ID: centralOrderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCentralOrderNotFound
		}
		return nil, fmt.Errorf("lock central order: %w", err)
	}
	if order.Status != enum.CentralOrderStatusReceived {
		return nil, ErrCentralOrderNotReceived
	}

	if err := s.reverseReceive(ctx, store, order); err != nil {
		return nil, err
	}
	reverted, err := store.RollbackCentralOrder(ctx, database.RollbackCentralOrderParams{ID: order.ID, CompanyID: companyID})
	if err != nil {
		return nil, fmt.Errorf("rollback central order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &reverted, nil
}

// Delete removes a central order. A received order is reversed first so no
// stock effect survives the deletion.
func (s *CentralService) Delete(ctx context.Context, companyID, centralOrderID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetCentralOrderForUpdate(ctx, database.GetCentralOrderParams{ID: centralOrderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCentralOrderNotFound
		}
		return fmt.Errorf("lock central order: %w", err)
	}
	if order.Status == enum.CentralOrderStatusReceived {
		if err := s.reverseReceive(ctx, store, order); err != nil {
			return err
		}
	}
	if err := store.DeleteCentralOrderItems(ctx, order.ID); err != nil {
		return fmt.Errorf("delete central order items: %w", err)
	}
	if err := store.DeleteCentralOrder(ctx, database.GetCentralOrderParams{ID: order.ID, CompanyID: companyID}); err != nil {
		return fmt.Errorf("delete central order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// applyReceive writes one settlement: item stock, container maps, movements,
// expense transactions and the order row itself.
func (s *CentralService) applyReceive(ctx context.Context, store CentralStore, order database.CentralOrder, req ReceiveCentralOrderRequest, transportCost decimal.Decimal) (*database.CentralOrder, error) {
	items, err := store.ListCentralOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list central order items: %w", err)
	}
	byID := map[uuid.UUID]database.CentralOrderItem{}
	for _, item := range items {
		byID[item.ID] = item
	}

	centralRef := pgtype.UUID{Bytes: order.ID, Valid: true}
	itemsTotal := decimal.Zero
	covered := make(map[uuid.UUID]bool, len(req.ReceivedItems))

	for _, ri := range req.ReceivedItems {
		item, ok := byID[ri.ItemID]
		if !ok {
			return nil, ErrUnknownCentralItem
		}
		covered[item.ID] = true
		if ri.ReceivedQty < 0 {
			return nil, ErrInvalidReceivedQty
		}
		if _, err := store.SetCentralOrderItemReceived(ctx, database.SetCentralOrderItemReceivedParams{
			ID: item.ID, ReceivedQty: ri.ReceivedQty,
		}); err != nil {
			return nil, fmt.Errorf("set received qty: %w", err)
		}
		if ri.ReceivedQty == 0 {
			continue
		}
		if _, err := store.AdjustProductStock(ctx, database.AdjustStockParams{
			ID: item.ProductID, CompanyID: req.CompanyID, Delta: ri.ReceivedQty,
		}); err != nil {
			return nil, fmt.Errorf("increment stock: %w", err)
		}
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			CompanyID:      req.CompanyID,
			ProductID:      item.ProductID,
			Type:           enum.MovementMasukDariPusat,
			Qty:            ri.ReceivedQty,
			CentralOrderID: centralRef,
			UserID:         req.UserID,
		}); err != nil {
			return nil, fmt.Errorf("record masuk_dari_pusat movement: %w", err)
		}
		itemsTotal = itemsTotal.Add(numericToDecimal(item.Price).Mul(decimal.NewFromInt32(ri.ReceivedQty)))
	}

	// Lines omitted from the request count as not received. Their stored
	// qty must be zeroed, otherwise a later reverse would subtract stock
	// this settlement never added.
	for _, item := range items {
		if covered[item.ID] {
			continue
		}
		if _, err := store.SetCentralOrderItemReceived(ctx, database.SetCentralOrderItemReceivedParams{
			ID: item.ID, ReceivedQty: 0,
		}); err != nil {
			return nil, fmt.Errorf("zero received qty: %w", err)
		}
	}

	for productID, qty := range req.ReturnedToCentral {
		if qty <= 0 {
			continue
		}
		if _, err := store.AdjustEmptyBottleStock(ctx, database.AdjustStockParams{
			ID: productID, CompanyID: req.CompanyID, Delta: -qty,
		}); err != nil {
			return nil, fmt.Errorf("decrement empty stock: %w", err)
		}
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			CompanyID:      req.CompanyID,
			ProductID:      productID,
			Type:           enum.MovementGalonDikembalikanKePusat,
			Qty:            qty,
			CentralOrderID: centralRef,
			UserID:         req.UserID,
		}); err != nil {
			return nil, fmt.Errorf("record galon_dikembalikan_ke_pusat movement: %w", err)
		}
	}

	for productID, qty := range req.BorrowedFromCentral {
		if qty <= 0 {
			continue
		}
		// Container liability to the supplier; no stock effect.
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			CompanyID:      req.CompanyID,
			ProductID:      productID,
			Type:           enum.MovementGalonDipinjamDariPusat,
			Qty:            qty,
			CentralOrderID: centralRef,
			UserID:         req.UserID,
		}); err != nil {
			return nil, fmt.Errorf("record galon_dipinjam_dari_pusat movement: %w", err)
		}
	}

	emptiesCost := decimal.Zero
	for productID, qty := range req.SoldEmptyToCentral {
		if qty <= 0 {
			continue
		}
		product, err := store.GetProduct(ctx, database.GetProductParams{ID: productID, CompanyID: req.CompanyID})
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if _, err := store.AdjustEmptyBottleStock(ctx, database.AdjustStockParams{
			ID: productID, CompanyID: req.CompanyID, Delta: qty,
		}); err != nil {
			return nil, fmt.Errorf("increment empty stock: %w", err)
		}
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			CompanyID:      req.CompanyID,
			ProductID:      productID,
			Type:           enum.MovementGalonKosongDibeliPusat,
			Qty:            qty,
			CentralOrderID: centralRef,
			UserID:         req.UserID,
		}); err != nil {
			return nil, fmt.Errorf("record galon_kosong_dibeli movement: %w", err)
		}
		emptiesCost = emptiesCost.Add(numericToDecimal(product.EmptyBottlePrice).Mul(decimal.NewFromInt32(qty)))
	}

	grandTotal := itemsTotal.Add(transportCost).Add(emptiesCost)

	if grandTotal.GreaterThan(decimal.Zero) {
		if _, err := store.CreateFinancialTransaction(ctx, database.CreateFinancialTransactionParams{
			CompanyID:     req.CompanyID,
			Type:          enum.TransactionExpense,
			Amount:        decimalToNumeric(grandTotal),
			PaymentMethod: enum.PaymentMethodTransfer,
			Description:   fmt.Sprintf("Pembelian stok dari %s", order.SupplierName),
			SourceTable:   pgtype.Text{String: "central_orders", Valid: true},
			SourceID:      centralRef,
		}); err != nil {
			return nil, fmt.Errorf("record restock expense: %w", err)
		}
	}

	returnedJSON, err := json.Marshal(req.ReturnedToCentral)
	if err != nil {
		return nil, fmt.Errorf("marshal returned map: %w", err)
	}
	borrowedJSON, err := json.Marshal(req.BorrowedFromCentral)
	if err != nil {
		return nil, fmt.Errorf("marshal borrowed map: %w", err)
	}
	soldJSON, err := json.Marshal(req.SoldEmptyToCentral)
	if err != nil {
		return nil, fmt.Errorf("marshal sold map: %w", err)
	}

	received, err := store.SetCentralOrderReceived(ctx, database.SetCentralOrderReceivedParams{
		ID:                  order.ID,
		CompanyID:           req.CompanyID,
		Status:              enum.CentralOrderStatusReceived,
		GrandTotal:          decimalToNumeric(grandTotal),
		TransportCost:       decimalToNumeric(transportCost),
		ReturnedToCentral:   returnedJSON,
		BorrowedFromCentral: borrowedJSON,
		SoldEmptyToCentral:  soldJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("set central order received: %w", err)
	}
	return &received, nil
}

// reverseReceive undoes every stock effect of a prior receive and deletes
// the movements and transactions it wrote.
func (s *CentralService) reverseReceive(ctx context.Context, store CentralStore, order database.CentralOrder) error {
	items, err := store.ListCentralOrderItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list central order items: %w", err)
	}
	for _, item := range items {
		if item.ReceivedQty == 0 {
			continue
		}
		if _, err := store.AdjustProductStock(ctx, database.AdjustStockParams{
			ID: item.ProductID, CompanyID: order.CompanyID, Delta: -item.ReceivedQty,
		}); err != nil {
			return fmt.Errorf("reverse stock: %w", err)
		}
	}

	returned, err := unmarshalQtyMap(order.ReturnedToCentral)
	if err != nil {
		return fmt.Errorf("unmarshal returned map: %w", err)
	}
	for productID, qty := range returned {
		if qty <= 0 {
			continue
		}
		if _, err := store.AdjustEmptyBottleStock(ctx, database.AdjustStockParams{
			ID: productID, CompanyID: order.CompanyID, Delta: qty,
		}); err != nil {
			return fmt.Errorf("reverse empty stock: %w", err)
		}
	}

	sold, err := unmarshalQtyMap(order.SoldEmptyToCentral)
	if err != nil {
		return fmt.Errorf("unmarshal sold map: %w", err)
	}
	for productID, qty := range sold {
		if qty <= 0 {
			continue
		}
		if _, err := store.AdjustEmptyBottleStock(ctx, database.AdjustStockParams{
			ID: productID, CompanyID: order.CompanyID, Delta: -qty,
		}); err != nil {
			return fmt.Errorf("reverse empty stock: %w", err)
		}
	}

	if err := store.DeleteStockMovementsByCentralOrder(ctx, order.ID); err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}
	if err := store.DeleteTransactionsBySource(ctx, database.DeleteTransactionsBySourceParams{
		SourceTable: "central_orders",
		SourceID:    order.ID,
	}); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	return nil
}

func unmarshalQtyMap(raw []byte) (map[uuid.UUID]int32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[uuid.UUID]int32
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
