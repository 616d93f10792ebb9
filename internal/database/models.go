package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Company struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CreatedAt      time.Time
}

type Customer struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Name      string
	Phone     pgtype.Text
	Address   pgtype.Text
	IsActive  bool
	CreatedAt time.Time
}

type Product struct {
	ID               uuid.UUID
	CompanyID        uuid.UUID
	Name             string
	Stock            int32
	EmptyBottleStock int32
	IsReturnable     bool
	Price            pgtype.Numeric
	PurchasePrice    pgtype.Numeric
	EmptyBottlePrice pgtype.Numeric
	IsActive         bool
	CreatedAt        time.Time
}

type Order struct {
	ID                uuid.UUID
	CompanyID         uuid.UUID
	CustomerID        uuid.UUID
	CourierID         pgtype.UUID
	Status            string
	PaymentStatus     string
	PlannedDate       pgtype.Date
	GrandTotal        pgtype.Numeric
	TransportCost     pgtype.Numeric
	ReturnedQty       int32
	BorrowedQty       int32
	PurchasedEmptyQty int32
	ProofRef          pgtype.Text
	DeliveredAt       pgtype.Timestamptz
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Qty       int32
	Price     pgtype.Numeric
}

// OrderGalonItem is the per-order container ledger line, one row per
// order x returnable product. Upserted by the delivery settlement.
type OrderGalonItem struct {
	OrderID           uuid.UUID
	ProductID         uuid.UUID
	ReturnedQty       int32
	BorrowedQty       int32
	PurchasedEmptyQty int32
}

// GalonSettlement is an appended settle-to-zero event for the debt fold.
// History is never rewritten; a settlement row zeroes the running balance
// from its timestamp onward.
type GalonSettlement struct {
	ID         uuid.UUID
	CompanyID  uuid.UUID
	CustomerID uuid.UUID
	ProductID  uuid.UUID
	SettledAt  time.Time
	CreatedBy  uuid.UUID
}

// StockMovement is the append-only audit log. Qty is always positive; the
// direction is implied by Type. OrderID and CentralOrderID are mutually
// exclusive.
type StockMovement struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	ProductID      uuid.UUID
	Type           string
	Qty            int32
	OrderID        pgtype.UUID
	CentralOrderID pgtype.UUID
	Notes          pgtype.Text
	UserID         uuid.UUID
	CreatedAt      time.Time
}

type CentralOrder struct {
	ID                  uuid.UUID
	CompanyID           uuid.UUID
	SupplierName        string
	Status              string
	OrderDate           pgtype.Date
	ReceivedAt          pgtype.Timestamptz
	GrandTotal          pgtype.Numeric
	TransportCost       pgtype.Numeric
	ReturnedToCentral   []byte
	BorrowedFromCentral []byte
	SoldEmptyToCentral  []byte
	CreatedBy           uuid.UUID
	CreatedAt           time.Time
}

type CentralOrderItem struct {
	ID             uuid.UUID
	CentralOrderID uuid.UUID
	ProductID      uuid.UUID
	Qty            int32
	ReceivedQty    int32
	Price          pgtype.Numeric
}

type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Amount        pgtype.Numeric
	PaymentMethod string
	ReceivedBy    uuid.UUID
	ProofRef      pgtype.Text
	CreatedAt     time.Time
}

type FinancialTransaction struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	Type          string
	Amount        pgtype.Numeric
	PaymentMethod string
	Description   string
	SourceTable   pgtype.Text
	SourceID      pgtype.UUID
	CreatedAt     time.Time
}

// StockReconciliation is an immutable snapshot of a physical count.
// Items is a JSONB array of {product_id, system_stock, physical_count,
// difference}; zero-difference items are included for the audit trail.
type StockReconciliation struct {
	ID                 uuid.UUID
	CompanyID          uuid.UUID
	UserID             uuid.UUID
	ReconciliationDate time.Time
	StockType          string
	Items              []byte
	CreatedAt          time.Time
}

type ExpenseReport struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	UserID        uuid.UUID
	Description   string
	Amount        pgtype.Numeric
	PaymentMethod string
	Status        string
	ProofRef      pgtype.Text
	PaidAt        pgtype.Timestamptz
	CreatedAt     time.Time
}
