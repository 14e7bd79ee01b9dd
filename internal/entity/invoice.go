package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// InvoiceStatus tracks settlement of a supplier invoice.
type InvoiceStatus string

const (
	InvoiceOpen InvoiceStatus = "open"
	InvoicePaid InvoiceStatus = "paid"
)

// Invoice is a supplier bill raised against a purchase order.
type Invoice struct {
	bun.BaseModel `bun:"table:invoices,alias:inv"`

	ID              uuid.UUID       `bun:"id,pk,type:uuid"`
	PurchaseOrderID uuid.UUID       `bun:"purchase_order_id,type:uuid,notnull"`
	InvoiceNumber   string          `bun:"invoice_number,notnull,unique"`
	Amount          decimal.Decimal `bun:"amount,type:numeric(14,2),notnull"`
	Status          InvoiceStatus   `bun:"status,notnull"`
	IssuedAt        time.Time       `bun:"issued_at,notnull"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
