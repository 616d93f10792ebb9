package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
)

// Errors returned by the reconciliation service.
var (
	ErrInvalidStockType    = errors.New("invalid stock_type")
	ErrEmptyReconciliation = errors.New("items are required")
	ErrProductNotFound     = errors.New("product not found")
	ErrInvalidPhysicalQty  = errors.New("physical count must be >= 0")
)

// ReconcileStore defines the DB methods the reconciliation needs.
// Satisfied by *database.Queries.
type ReconcileStore interface {
	GetProductForUpdate(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	SetProductStock(ctx context.Context, arg database.SetStockParams) (int32, error)
	SetEmptyBottleStock(ctx context.Context, arg database.SetStockParams) (int32, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	CreateStockReconciliation(ctx context.Context, arg database.CreateStockReconciliationParams) (database.StockReconciliation, error)
}

// NewReconcileStore creates a ReconcileStore from a DBTX (pool or tx).
type NewReconcileStore func(db database.DBTX) ReconcileStore

// ReconcileCount is one product's user-entered physical count.
type ReconcileCount struct {
	ProductID     uuid.UUID
	PhysicalCount int32
}

// ReconcileLine is the computed comparison for one product. Difference is
// physical minus system at the moment the product row was read.
type ReconcileLine struct {
	ProductID     uuid.UUID `json:"product_id"`
	ProductName   string    `json:"product_name"`
	SystemStock   int32     `json:"system_stock"`
	PhysicalCount int32     `json:"physical_count"`
	Difference    int32     `json:"difference"`
}

// ReconcileRequest applies a physical count for one stock column.
type ReconcileRequest struct {
	CompanyID uuid.UUID
	UserID    uuid.UUID
	StockType string
	Counts    []ReconcileCount
}

// ReconcileResult is the persisted snapshot plus its computed lines.
type ReconcileResult struct {
	Reconciliation database.StockReconciliation
	Lines          []ReconcileLine
}

// ReconcileService compares physical counts against the system counters and
// applies the override. Preview has no side effects; Apply persists the
// snapshot and is the only path allowed to set a stock counter to an
// absolute value.
type ReconcileService struct {
	pool     TxBeginner
	store    ReconcileStore
	newStore NewReconcileStore
}

func NewReconcileService(pool TxBeginner, store ReconcileStore, newStore NewReconcileStore) *ReconcileService {
	return &ReconcileService{pool: pool, store: store, newStore: newStore}
}

// Preview computes the comparison without touching anything.
func (s *ReconcileService) Preview(ctx context.Context, req ReconcileRequest) ([]ReconcileLine, error) {
	if err := validateReconcileRequest(req); err != nil {
		return nil, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	lines, err := s.compare(ctx, s.newStore(tx), req)
	if err != nil {
		return nil, err
	}
	// Preview never commits; the locks are released on rollback.
	return lines, nil
}

// Apply persists the snapshot and overrides every differing counter.
func (s *ReconcileService) Apply(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	if err := validateReconcileRequest(req); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	lines, err := s.compare(ctx, store, req)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		if line.Difference == 0 {
			continue
		}

		setStock := store.SetProductStock
		if req.StockType == enum.StockTypeEmpty {
			setStock = store.SetEmptyBottleStock
		}
		if _, err := setStock(ctx, database.SetStockParams{
			ID: line.ProductID, CompanyID: req.CompanyID, Value: line.PhysicalCount,
		}); err != nil {
			return nil, fmt.Errorf("set stock: %w", err)
		}

		movementType := enum.MovementMasukRekonsiliasi
		qty := line.Difference
		if line.Difference < 0 {
			movementType = enum.MovementKeluarRekonsiliasi
			qty = -line.Difference
		}
		notes := pgtype.Text{String: fmt.Sprintf("Rekonsiliasi %s: %d -> %d", req.StockType, line.SystemStock, line.PhysicalCount), Valid: true}
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			CompanyID: req.CompanyID,
			ProductID: line.ProductID,
			Type:      movementType,
			Qty:       qty,
			Notes:     notes,
			UserID:    req.UserID,
		}); err != nil {
			return nil, fmt.Errorf("record reconciliation movement: %w", err)
		}
	}

	// Zero-difference lines are kept in the snapshot for the audit trail.
	itemsJSON, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	rec, err := store.CreateStockReconciliation(ctx, database.CreateStockReconciliationParams{
		CompanyID:          req.CompanyID,
		UserID:             req.UserID,
		ReconciliationDate: pgtype.Timestamptz{Time: time.Now(), Valid: true},
		StockType:          req.StockType,
		Items:              itemsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create reconciliation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ReconcileResult{Reconciliation: rec, Lines: lines}, nil
}

// compare reads each product under lock and builds the comparison lines.
func (s *ReconcileService) compare(ctx context.Context, store ReconcileStore, req ReconcileRequest) ([]ReconcileLine, error) {
	lines := make([]ReconcileLine, 0, len(req.Counts))
	for _, count := range req.Counts {
		if count.PhysicalCount < 0 {
			return nil, ErrInvalidPhysicalQty
		}
		product, err := store.GetProductForUpdate(ctx, database.GetProductParams{ID: count.ProductID, CompanyID: req.CompanyID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("lock product: %w", err)
		}
		systemStock := product.Stock
		if req.StockType == enum.StockTypeEmpty {
			systemStock = product.EmptyBottleStock
		}
		lines = append(lines, ReconcileLine{
			ProductID:     product.ID,
			ProductName:   product.Name,
			SystemStock:   systemStock,
			PhysicalCount: count.PhysicalCount,
			Difference:    count.PhysicalCount - systemStock,
		})
	}
	return lines, nil
}

func validateReconcileRequest(req ReconcileRequest) error {
	if req.StockType != enum.StockTypeSellable && req.StockType != enum.StockTypeEmpty {
		return ErrInvalidStockType
	}
	if len(req.Counts) == 0 {
		return ErrEmptyReconciliation
	}
	return nil
}
