package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tirtakita/api/internal/database"
)

// Errors returned by the debt service.
var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrNoOutstandingDebt = errors.New("customer has no outstanding container debt")
)

// DebtEvent is one entry in a customer's container history for a single
// product. Settlement entries zero the running balance; delivery entries
// shift it by delivered - returned - purchased.
type DebtEvent struct {
	At         time.Time
	Key        string // tie-break for identical timestamps
	Delivered  int32
	Returned   int32
	Purchased  int32
	Settlement bool
}

// FoldDebt replays events in (At, Key) order and returns the outstanding
// container count. The balance is clamped at zero after every event:
// returning more than is owed never produces a credit.
func FoldDebt(events []DebtEvent) int32 {
	sorted := make([]DebtEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].At.Equal(sorted[j].At) {
			return sorted[i].At.Before(sorted[j].At)
		}
		return sorted[i].Key < sorted[j].Key
	})

	var balance int32
	for _, e := range sorted {
		if e.Settlement {
			balance = 0
			continue
		}
		balance += e.Delivered - e.Returned - e.Purchased
		if balance < 0 {
			balance = 0
		}
	}
	return balance
}

// DebtStore defines the DB methods needed to compute and settle container
// debt. Satisfied by *database.Queries.
type DebtStore interface {
	GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
	ListGalonDeliveryEvents(ctx context.Context, arg database.ListGalonDeliveryEventsParams) ([]database.GalonDeliveryEventRow, error)
	ListGalonSettlements(ctx context.Context, arg database.ListGalonSettlementsParams) ([]database.GalonSettlement, error)
	CreateGalonSettlement(ctx context.Context, arg database.CreateGalonSettlementParams) (database.GalonSettlement, error)
}

// NewDebtStore creates a DebtStore from a DBTX (pool or tx).
type NewDebtStore func(db database.DBTX) DebtStore

// ProductDebt is the outstanding container balance for one product.
type ProductDebt struct {
	ProductID uuid.UUID
	Balance   int32
}

// DebtService recomputes container balances from history on every read.
// Nothing here mutates past events; settlements are appended.
type DebtService struct {
	pool     TxBeginner
	store    DebtStore
	newStore NewDebtStore
}

func NewDebtService(pool TxBeginner, store DebtStore, newStore NewDebtStore) *DebtService {
	return &DebtService{pool: pool, store: store, newStore: newStore}
}

// Balances returns the per-product outstanding container count for a
// customer, products with zero balance included.
func (s *DebtService) Balances(ctx context.Context, companyID, customerID uuid.UUID) ([]ProductDebt, error) {
	return s.balances(ctx, s.store, companyID, customerID)
}

func (s *DebtService) balances(ctx context.Context, store DebtStore, companyID, customerID uuid.UUID) ([]ProductDebt, error) {
	if _, err := store.GetCustomer(ctx, database.GetCustomerParams{ID: customerID, CompanyID: companyID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	deliveries, err := store.ListGalonDeliveryEvents(ctx, database.ListGalonDeliveryEventsParams{
		CompanyID:  companyID,
		CustomerID: customerID,
	})
	if err != nil {
		return nil, fmt.Errorf("list delivery events: %w", err)
	}
	settlements, err := store.ListGalonSettlements(ctx, database.ListGalonSettlementsParams{
		CompanyID:  companyID,
		CustomerID: customerID,
	})
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}

	byProduct := map[uuid.UUID][]DebtEvent{}
	for _, d := range deliveries {
		byProduct[d.ProductID] = append(byProduct[d.ProductID], DebtEvent{
			At:        d.DeliveredAt.Time,
			Key:       d.OrderID.String(),
			Delivered: d.DeliveredQty,
			Returned:  d.ReturnedQty,
			Purchased: d.PurchasedEmptyQty,
		})
	}
	for _, st := range settlements {
		byProduct[st.ProductID] = append(byProduct[st.ProductID], DebtEvent{
			At:         st.SettledAt,
			Key:        st.ID.String(),
			Settlement: true,
		})
	}

	debts := make([]ProductDebt, 0, len(byProduct))
	for productID, events := range byProduct {
		debts = append(debts, ProductDebt{ProductID: productID, Balance: FoldDebt(events)})
	}
	sort.Slice(debts, func(i, j int) bool {
		return debts[i].ProductID.String() < debts[j].ProductID.String()
	})
	return debts, nil
}

// SettleRequest zeroes a customer's balance for one product by appending a
// settlement event.
type SettleRequest struct {
	CompanyID  uuid.UUID
	CustomerID uuid.UUID
	ProductID  uuid.UUID
	CreatedBy  uuid.UUID
}

// Settle appends a settle-to-zero event. Settling a product the customer
// owes nothing on is rejected so the history stays meaningful.
func (s *DebtService) Settle(ctx context.Context, req SettleRequest) (*database.GalonSettlement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	debts, err := s.balances(ctx, store, req.CompanyID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	var balance int32
	for _, d := range debts {
		if d.ProductID == req.ProductID {
			balance = d.Balance
			break
		}
	}
	if balance <= 0 {
		return nil, ErrNoOutstandingDebt
	}

	settlement, err := store.CreateGalonSettlement(ctx, database.CreateGalonSettlementParams{
		CompanyID:  req.CompanyID,
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create settlement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &settlement, nil
}
