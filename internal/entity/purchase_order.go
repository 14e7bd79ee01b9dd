package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// SupplierSnapshot is the point-in-time copy of a supplier stored on an order.
// Later supplier edits never reach orders that already carry a snapshot; code that
// needs the live supplier resolves Supplier.ID through the supplier repository.
type SupplierSnapshot struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// SnapshotOf captures the supplier fields copied onto new orders.
func SnapshotOf(s *Supplier) SupplierSnapshot {
	return SupplierSnapshot{ID: s.ID, Name: s.Name, Email: s.Email}
}

// TrackingEvent is one entry in an order's shipment log.
type TrackingEvent struct {
	Status   string    `json:"status"`
	Location string    `json:"location,omitempty"`
	Note     string    `json:"note,omitempty"`
	At       time.Time `json:"at"`
}

// PurchaseOrder represents a purchase order stored in the relational database.
type PurchaseOrder struct {
	bun.BaseModel `bun:"table:purchase_orders,alias:po"`

	ID          uuid.UUID        `bun:"id,pk,type:uuid"`
	OrderNumber string           `bun:"order_number,notnull,unique"`
	Status      Status           `bun:"status,notnull"`
	Site        string           `bun:"site,notnull"`
	Supplier    SupplierSnapshot `bun:"supplier,type:jsonb,notnull"`
	TotalAmount decimal.Decimal  `bun:"total_amount,type:numeric(14,2),notnull"`
	Currency    string           `bun:"currency,notnull"`
	Notes       string           `bun:"notes,nullzero"`
	OrderedBy   uuid.UUID        `bun:"ordered_by,type:uuid,notnull"`

	TrackingNumber    string          `bun:"tracking_number,nullzero"`
	ShippingStatus    string          `bun:"shipping_status,nullzero"`
	CurrentLocation   string          `bun:"current_location,nullzero"`
	EstimatedDelivery *time.Time      `bun:"estimated_delivery"`
	LastStatusUpdate  *time.Time      `bun:"last_status_update"`
	TrackingHistory   []TrackingEvent `bun:"tracking_history,type:jsonb,nullzero"`
	PDFPath           string          `bun:"pdf_path,nullzero"`

	Version   int64     `bun:"version,notnull"`
	OrderDate time.Time `bun:"order_date,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`

	Items []*LineItem `bun:"rel:has-many,join:id=purchase_order_id"`
}

// LineItem is a single product line on a purchase order.
type LineItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID              int64           `bun:",pk,autoincrement"`
	PurchaseOrderID uuid.UUID       `bun:"purchase_order_id,type:uuid,notnull"`
	Position        int             `bun:"position,notnull"`
	ProductID       string          `bun:"product_id,notnull"`
	Name            string          `bun:"name,notnull"`
	Quantity        int64           `bun:"quantity,notnull"`
	UnitPrice       decimal.Decimal `bun:"unit_price,type:numeric(14,2),notnull"`
	TotalPrice      decimal.Decimal `bun:"total_price,type:numeric(14,2),notnull"`
}

// ItemsTotal sums the line totals of the order.
func (o *PurchaseOrder) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// OwnedBy reports whether the given user created the order.
func (o *PurchaseOrder) OwnedBy(userID uuid.UUID) bool {
	return userID != uuid.Nil && o.OrderedBy == userID
}

// StatusHistoryEntry is an immutable record of one lifecycle transition.
type StatusHistoryEntry struct {
	bun.BaseModel `bun:"table:purchase_order_status_history,alias:sh"`

	ID              int64     `bun:",pk,autoincrement"`
	PurchaseOrderID uuid.UUID `bun:"purchase_order_id,type:uuid,notnull"`
	FromStatus      Status    `bun:"from_status,nullzero"`
	ToStatus        Status    `bun:"to_status,notnull"`
	ActorID         uuid.UUID `bun:"actor_id,type:uuid,notnull"`
	Note            string    `bun:"note,nullzero"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// OrderSummary is an order with totals computed from its line items.
type OrderSummary struct {
	bun.BaseModel `bun:"table:purchase_orders,alias:po"`

	ID          uuid.UUID        `bun:"id"`
	OrderNumber string           `bun:"order_number"`
	Status      Status           `bun:"status"`
	Site        string           `bun:"site"`
	Supplier    SupplierSnapshot `bun:"supplier,type:jsonb"`
	TotalAmount decimal.Decimal  `bun:"total_amount"`
	ItemsTotal  decimal.Decimal  `bun:"items_total,scanonly"`
	ItemCount   int64            `bun:"item_count,scanonly"`
	UpdatedAt   time.Time        `bun:"updated_at"`
}
