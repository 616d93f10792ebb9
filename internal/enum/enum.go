package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusDraft     = "DRAFT"
	OrderStatusSent      = "SENT"
	OrderStatusCompleted = "COMPLETED"
)

const (
	PaymentStatusUnpaid  = "UNPAID"
	PaymentStatusPartial = "PARTIAL"
	PaymentStatusPaid    = "PAID"
)

const (
	CentralOrderStatusDraft    = "DRAFT"
	CentralOrderStatusReceived = "RECEIVED"
)

const (
	ExpenseStatusPending  = "PENDING"
	ExpenseStatusApproved = "APPROVED"
	ExpenseStatusPaid     = "PAID"
	ExpenseStatusRejected = "REJECTED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleCourier    = "COURIER"
)

const (
	TransactionIncome  = "INCOME"
	TransactionExpense = "EXPENSE"
)

const (
	StockTypeSellable = "SELLABLE"
	StockTypeEmpty    = "EMPTY"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodTransfer = "TRANSFER"
	PaymentMethodQRIS     = "QRIS"
)

// Stock movement types. Labels kept in Indonesian because they are the
// business vocabulary shared with the field staff and the audit exports.
const (
	MovementMasuk                    = "masuk"
	MovementKeluar                   = "keluar"
	MovementPengembalian             = "pengembalian"
	MovementGalonDibeli              = "galon_dibeli"
	MovementPinjamKembali            = "pinjam_kembali"
	MovementMasukDariPusat           = "masuk_dari_pusat"
	MovementGalonDikembalikanKePusat = "galon_dikembalikan_ke_pusat"
	MovementGalonDipinjamDariPusat   = "galon_dipinjam_dari_pusat"
	MovementGalonKosongDibeliPusat   = "galon_kosong_dibeli_dari_pusat"
	MovementMasukRekonsiliasi        = "masuk_rekonsiliasi"
	MovementKeluarRekonsiliasi       = "keluar_rekonsiliasi"
)

// Capability is a closed set of privileged operation classes. Authorization
// checks go through RoleCan instead of comparing role strings inline.
type Capability int

const (
	CapManageUsers Capability = iota
	CapManageMasterData
	CapSettleDelivery
	CapManageCentralOrders
	CapReconcileStock
	CapManagePayments
	CapApproveExpenses
	CapViewReports
)

var roleCapabilities = map[string]map[Capability]bool{
	RoleSuperAdmin: {
		CapManageUsers:         true,
		CapManageMasterData:    true,
		CapSettleDelivery:      true,
		CapManageCentralOrders: true,
		CapReconcileStock:      true,
		CapManagePayments:      true,
		CapApproveExpenses:     true,
		CapViewReports:         true,
	},
	RoleAdmin: {
		CapManageMasterData:    true,
		CapSettleDelivery:      true,
		CapManageCentralOrders: true,
		CapReconcileStock:      true,
		CapManagePayments:      true,
		CapApproveExpenses:     true,
		CapViewReports:         true,
	},
	RoleCourier: {
		CapSettleDelivery: true,
	},
}

// RoleCan reports whether the given role holds the capability.
// Unknown roles hold nothing.
func RoleCan(role string, cap Capability) bool {
	return roleCapabilities[role][cap]
}

// IsValidPaymentMethod reports whether s is a known payment method.
func IsValidPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodQRIS:
		return true
	}
	return false
}

// IsValidRole reports whether s is one of the closed role set.
func IsValidRole(s string) bool {
	switch s {
	case RoleSuperAdmin, RoleAdmin, RoleCourier:
		return true
	}
	return false
}
