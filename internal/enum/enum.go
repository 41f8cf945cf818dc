package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusRunning = "RUNNING"
)

const (
	BatchStatusPending  = "PENDING"
	BatchStatusAccepted = "ACCEPTED"
	BatchStatusReady    = "READY"
	BatchStatusFinished = "FINISHED"
)

const (
	SaleStatusPaid   = "PAID"
	SaleStatusUnpaid = "UNPAID"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	StaffRoleOwner   = "OWNER"
	StaffRoleManager = "MANAGER"
	StaffRoleCashier = "CASHIER"
	StaffRoleKitchen = "KITCHEN"
)

// RoleCustomer marks tokens issued at customer registration. It is not
// a staff role and never appears in a staff row.
const RoleCustomer = "CUSTOMER"

const (
	CatalogStatusActive   = "ACTIVE"
	CatalogStatusInactive = "INACTIVE"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodCard     = "CARD"
	PaymentMethodTransfer = "TRANSFER"
	PaymentMethodDue      = "DUE"
)
