package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Enumerated string columns. The values are the exact literals stored in the
// database and shown to clients; the CHECK constraints in the migrations
// enforce the same sets.

type UserRole string

const (
	UserRoleAdmin    UserRole = "Admin"
	UserRoleCashier  UserRole = "Cashier"
	UserRoleReseller UserRole = "Reseller"
)

type ItemType string

const (
	ItemTypeProduct    ItemType = "Product"
	ItemTypeIngredient ItemType = "Ingredient"
)

type MovementType string

const (
	MovementTypeSale       MovementType = "Sale"
	MovementTypeAdjustment MovementType = "Adjustment"
	MovementTypeRestock    MovementType = "Restock"
	MovementTypeReturn     MovementType = "Return"
	MovementTypeWaste      MovementType = "Waste"
)

type AvailabilityStatus string

const (
	AvailabilityStatusActive       AvailabilityStatus = "Active"
	AvailabilityStatusOutOfStock   AvailabilityStatus = "Out of Stock"
	AvailabilityStatusDiscontinued AvailabilityStatus = "Discontinued"
)

type OrderType string

const (
	OrderTypeWalkIn   OrderType = "Walk-in"
	OrderTypeReseller OrderType = "Reseller"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusApproved       OrderStatus = "Approved"
	OrderStatusPacked         OrderStatus = "Packed"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusCompleted      OrderStatus = "Completed"
	OrderStatusCancelled      OrderStatus = "Cancelled"
)

// OrderPaymentStatus is the order-level payment flag; PaymentStatus below is
// the per-payment-row lifecycle. They intentionally use different vocabularies
// (Paid vs Completed), matching what the client pages display.
type OrderPaymentStatus string

const (
	OrderPaymentStatusPending OrderPaymentStatus = "Pending"
	OrderPaymentStatusPaid    OrderPaymentStatus = "Paid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "Cash"
	PaymentMethodGCash        PaymentMethod = "GCash"
	PaymentMethodBankTransfer PaymentMethod = "Bank Transfer"
)

type DeliveryStatus string

const (
	DeliveryStatusScheduled      DeliveryStatus = "Scheduled"
	DeliveryStatusOutForDelivery DeliveryStatus = "Out for Delivery"
	DeliveryStatusDelivered      DeliveryStatus = "Delivered"
	DeliveryStatusFailed         DeliveryStatus = "Failed"
	DeliveryStatusReturned       DeliveryStatus = "Returned"
	DeliveryStatusCancelled      DeliveryStatus = "Cancelled"
)

type ReturnAction string

const (
	ReturnActionRefund      ReturnAction = "Refund"
	ReturnActionReplace     ReturnAction = "Replace"
	ReturnActionStoreCredit ReturnAction = "Store Credit"
)

// --- Row models ---

type User struct {
	ID             uuid.UUID
	Username       string
	FirstName      string
	LastName       string
	Email          string
	HashedPassword string
	Role           UserRole
	ContactNumber  pgtype.Text
	Address        pgtype.Text
	CreatedAt      time.Time
}

type Product struct {
	ID                 uuid.UUID
	Name               string
	Description        pgtype.Text
	Price              pgtype.Numeric
	CostPrice          pgtype.Numeric
	StockQuantity      int32
	MinStockLevel      int32
	ImageURL           pgtype.Text
	AvailabilityStatus AvailabilityStatus
	CreatedAt          time.Time
}

type Ingredient struct {
	ID           uuid.UUID
	Name         string
	Unit         string
	CurrentStock pgtype.Numeric
	ReorderLevel pgtype.Numeric
	CostPerUnit  pgtype.Numeric
	CreatedAt    time.Time
}

type StockMovement struct {
	ID             uuid.UUID
	ItemType       ItemType
	ItemID         uuid.UUID
	MovementType   MovementType
	QuantityChange pgtype.Numeric
	PreviousStock  pgtype.Numeric
	NewStock       pgtype.Numeric
	OrderID        pgtype.UUID
	CreatedBy      uuid.UUID
	Notes          pgtype.Text
	CreatedAt      time.Time
}

type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	OrderDate     pgtype.Date
	CustomerID    pgtype.UUID
	OrderType     OrderType
	OrderStatus   OrderStatus
	PaymentStatus OrderPaymentStatus
	TotalAmount   pgtype.Numeric
	ReceivedBy    uuid.UUID
	ApprovedBy    pgtype.UUID
	Notes         pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
}

type Delivery struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	DriverName       string
	DeliveryStatus   DeliveryStatus
	ScheduledDate    pgtype.Date
	DeliveredAt      pgtype.Timestamptz
	RecipientName    string
	RecipientContact string
	CashCollected    pgtype.Numeric
	Notes            pgtype.Text
	RecordedBy       uuid.UUID
	CreatedAt        time.Time
}

type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	PaymentMethod PaymentMethod
	Amount        pgtype.Numeric
	PaymentStatus PaymentStatus
	ReceivedBy    pgtype.UUID
	PaymentDate   pgtype.Timestamptz
	CreatedAt     time.Time
}

type Return struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	ProductID    uuid.UUID
	Quantity     int32
	ReturnReason string
	ActionTaken  ReturnAction
	RefundAmount pgtype.Numeric
	ProcessedBy  uuid.UUID
	Notes        pgtype.Text
	ProcessedAt  time.Time
}
