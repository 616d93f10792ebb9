package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
)

// reconcileFixture is a stateful ReconcileStore for asserting on overrides.
type reconcileFixture struct {
	products map[uuid.UUID]database.Product

	stockSets []database.SetStockParams
	emptySets []database.SetStockParams
	movements []database.CreateStockMovementParams
	snapshot  *database.CreateStockReconciliationParams
}

func (f *reconcileFixture) GetProductForUpdate(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
	p, ok := f.products[arg.ID]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}
func (f *reconcileFixture) SetProductStock(ctx context.Context, arg database.SetStockParams) (int32, error) {
	f.stockSets = append(f.stockSets, arg)
	return arg.Value, nil
}
func (f *reconcileFixture) SetEmptyBottleStock(ctx context.Context, arg database.SetStockParams) (int32, error) {
	f.emptySets = append(f.emptySets, arg)
	return arg.Value, nil
}
func (f *reconcileFixture) CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
	f.movements = append(f.movements, arg)
	return database.StockMovement{ID: uuid.New(), Type: arg.Type, Qty: arg.Qty}, nil
}
func (f *reconcileFixture) CreateStockReconciliation(ctx context.Context, arg database.CreateStockReconciliationParams) (database.StockReconciliation, error) {
	f.snapshot = &arg
	return database.StockReconciliation{ID: uuid.New(), CompanyID: arg.CompanyID, StockType: arg.StockType, Items: arg.Items}, nil
}

func newReconcileFixture(companyID uuid.UUID) (*reconcileFixture, uuid.UUID, uuid.UUID) {
	overID := uuid.New()  // system says 50, shelf says 47
	exactID := uuid.New() // system matches shelf

	f := &reconcileFixture{
		products: map[uuid.UUID]database.Product{
			overID:  {ID: overID, CompanyID: companyID, Name: "Galon 19L", Stock: 50, EmptyBottleStock: 12},
			exactID: {ID: exactID, CompanyID: companyID, Name: "Botol 600ml", Stock: 30, EmptyBottleStock: 0},
		},
	}
	return f, overID, exactID
}

func newTestReconcileService(f *reconcileFixture) (*ReconcileService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) ReconcileStore { return f }
	return NewReconcileService(pool, f, newStore), tx
}

func TestReconcilePreview_NoSideEffects(t *testing.T) {
	companyID := uuid.New()
	f, overID, exactID := newReconcileFixture(companyID)
	svc, tx := newTestReconcileService(f)

	lines, err := svc.Preview(context.Background(), ReconcileRequest{
		CompanyID: companyID,
		UserID:    uuid.New(),
		StockType: enum.StockTypeSellable,
		Counts: []ReconcileCount{
			{ProductID: overID, PhysicalCount: 47},
			{ProductID: exactID, PhysicalCount: 30},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Difference != -3 || lines[1].Difference != 0 {
		t.Errorf("differences: expected (-3, 0), got (%d, %d)", lines[0].Difference, lines[1].Difference)
	}
	if len(f.stockSets) != 0 || len(f.movements) != 0 || f.snapshot != nil {
		t.Error("preview must not write anything")
	}
	if tx.committed {
		t.Error("preview must not commit")
	}
}

func TestReconcileApply_OverridesAndLogs(t *testing.T) {
	companyID := uuid.New()
	f, overID, exactID := newReconcileFixture(companyID)
	svc, tx := newTestReconcileService(f)

	res, err := svc.Apply(context.Background(), ReconcileRequest{
		CompanyID: companyID,
		UserID:    uuid.New(),
		StockType: enum.StockTypeSellable,
		Counts: []ReconcileCount{
			{ProductID: overID, PhysicalCount: 47},
			{ProductID: exactID, PhysicalCount: 30},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Only the differing product is overridden, to the absolute count.
	if len(f.stockSets) != 1 {
		t.Fatalf("expected 1 stock set, got %d", len(f.stockSets))
	}
	if f.stockSets[0].ID != overID || f.stockSets[0].Value != 47 {
		t.Errorf("expected set %s to 47, got %s to %d", overID, f.stockSets[0].ID, f.stockSets[0].Value)
	}

	// Shrinkage of 3 logs a keluar_rekonsiliasi movement.
	if len(f.movements) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(f.movements))
	}
	if f.movements[0].Type != enum.MovementKeluarRekonsiliasi || f.movements[0].Qty != 3 {
		t.Errorf("expected keluar_rekonsiliasi qty 3, got %s qty %d", f.movements[0].Type, f.movements[0].Qty)
	}

	// Snapshot keeps the zero-difference line for the audit trail.
	if f.snapshot == nil {
		t.Fatal("expected snapshot persisted")
	}
	var items []ReconcileLine
	if err := json.Unmarshal(f.snapshot.Items, &items); err != nil {
		t.Fatalf("unmarshal snapshot items: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("snapshot: expected 2 items, got %d", len(items))
	}
	if len(res.Lines) != 2 {
		t.Errorf("result: expected 2 lines, got %d", len(res.Lines))
	}
	if !tx.committed {
		t.Error("expected transaction commit")
	}
}

func TestReconcileApply_EmptyBottleColumn(t *testing.T) {
	companyID := uuid.New()
	f, overID, _ := newReconcileFixture(companyID)
	svc, _ := newTestReconcileService(f)

	_, err := svc.Apply(context.Background(), ReconcileRequest{
		CompanyID: companyID,
		UserID:    uuid.New(),
		StockType: enum.StockTypeEmpty,
		Counts:    []ReconcileCount{{ProductID: overID, PhysicalCount: 15}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Empty column compared against empty_bottle_stock (12): surplus of 3.
	if len(f.emptySets) != 1 || f.emptySets[0].Value != 15 {
		t.Fatalf("expected empty stock set to 15, got %+v", f.emptySets)
	}
	if len(f.stockSets) != 0 {
		t.Error("sellable column must not move")
	}
	if f.movements[0].Type != enum.MovementMasukRekonsiliasi || f.movements[0].Qty != 3 {
		t.Errorf("expected masuk_rekonsiliasi qty 3, got %s qty %d", f.movements[0].Type, f.movements[0].Qty)
	}
}

func TestReconcile_Validation(t *testing.T) {
	companyID := uuid.New()
	f, overID, _ := newReconcileFixture(companyID)
	svc, _ := newTestReconcileService(f)

	_, err := svc.Apply(context.Background(), ReconcileRequest{
		CompanyID: companyID,
		StockType: "WAREHOUSE",
		Counts:    []ReconcileCount{{ProductID: overID, PhysicalCount: 1}},
	})
	if !errors.Is(err, ErrInvalidStockType) {
		t.Fatalf("expected ErrInvalidStockType, got: %v", err)
	}

	_, err = svc.Apply(context.Background(), ReconcileRequest{
		CompanyID: companyID,
		StockType: enum.StockTypeSellable,
	})
	if !errors.Is(err, ErrEmptyReconciliation) {
		t.Fatalf("expected ErrEmptyReconciliation, got: %v", err)
	}

	_, err = svc.Apply(context.Background(), ReconcileRequest{
		CompanyID: companyID,
		StockType: enum.StockTypeSellable,
		Counts:    []ReconcileCount{{ProductID: overID, PhysicalCount: -1}},
	})
	if !errors.Is(err, ErrInvalidPhysicalQty) {
		t.Fatalf("expected ErrInvalidPhysicalQty, got: %v", err)
	}

	_, err = svc.Apply(context.Background(), ReconcileRequest{
		CompanyID: companyID,
		StockType: enum.StockTypeSellable,
		Counts:    []ReconcileCount{{ProductID: uuid.New(), PhysicalCount: 5}},
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
}
