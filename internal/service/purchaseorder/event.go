package purchaseorder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/procura/internal/entity"
)

// Event types published on the purchase-order topic.
const (
	EventCreated       = "purchase_order.created"
	EventStatusChanged = "purchase_order.status_changed"
)

// StatusChange describes one lifecycle transition.
type StatusChange struct {
	From    entity.Status `json:"from"`
	To      entity.Status `json:"to"`
	ActorID uuid.UUID     `json:"actor_id"`
	Note    string        `json:"note,omitempty"`
}

// Event is the message emitted on lifecycle changes. ID is unique per event
// and stays the same across redeliveries.
type Event struct {
	ID          uuid.UUID               `json:"id"`
	Type        string                  `json:"type"`
	OrderID     uuid.UUID               `json:"order_id"`
	OrderNumber string                  `json:"order_number"`
	Status      entity.Status           `json:"status"`
	Site        string                  `json:"site"`
	Supplier    entity.SupplierSnapshot `json:"supplier"`
	TotalAmount decimal.Decimal         `json:"total_amount"`
	Currency    string                  `json:"currency"`
	OrderedBy   uuid.UUID               `json:"ordered_by"`
	Change      *StatusChange           `json:"change,omitempty"`
	OccurredAt  time.Time               `json:"occurred_at"`
}

// NewEvent builds the event describing order after a change.
func NewEvent(kind string, order *entity.PurchaseOrder, change *StatusChange, at time.Time) Event {
	return Event{
		ID:          uuid.New(),
		Type:        kind,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Site:        order.Site,
		Supplier:    order.Supplier,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		OrderedBy:   order.OrderedBy,
		Change:      change,
		OccurredAt:  at,
	}
}
