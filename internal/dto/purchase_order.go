package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/procura/internal/entity"
)

// LineItemRequest is one requested order line.
type LineItemRequest struct {
	ProductID  string           `json:"product_id" validate:"max=128"`
	Name       string           `json:"name" validate:"max=255"`
	Quantity   int64            `json:"quantity" validate:"gt=0"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
}

// CreatePurchaseOrderRequest is the body of POST /api/purchase-orders.
type CreatePurchaseOrderRequest struct {
	OrderNumber string            `json:"order_number" validate:"required,max=64"`
	SupplierID  string            `json:"supplier_id" validate:"required,uuid"`
	Site        string            `json:"site" validate:"max=128"`
	Currency    string            `json:"currency" validate:"omitempty,len=3"`
	Notes       string            `json:"notes"`
	TotalAmount *decimal.Decimal  `json:"total_amount,omitempty"`
	Items       []LineItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateStatusRequest is the body of PATCH /api/purchase-orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}

// UpdateTrackingRequest is the body of PATCH /api/purchase-orders/:id/tracking.
type UpdateTrackingRequest struct {
	TrackingNumber    string     `json:"tracking_number" validate:"max=128"`
	ShippingStatus    string     `json:"shipping_status" validate:"max=64"`
	CurrentLocation   string     `json:"current_location" validate:"max=255"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	Note              string     `json:"note" validate:"max=1000"`
}

// LineItemResponse is an order line as exposed via transport layers.
type LineItemResponse struct {
	Position   int             `json:"position"`
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// PurchaseOrderResponse represents a purchase order as exposed via transport layers.
type PurchaseOrderResponse struct {
	ID                uuid.UUID               `json:"id"`
	OrderNumber       string                  `json:"order_number"`
	Status            entity.Status           `json:"status"`
	Site              string                  `json:"site"`
	Supplier          entity.SupplierSnapshot `json:"supplier"`
	Items             []LineItemResponse      `json:"items"`
	TotalAmount       decimal.Decimal         `json:"total_amount"`
	Currency          string                  `json:"currency"`
	Notes             string                  `json:"notes,omitempty"`
	OrderedBy         uuid.UUID               `json:"ordered_by"`
	TrackingNumber    string                  `json:"tracking_number,omitempty"`
	ShippingStatus    string                  `json:"shipping_status,omitempty"`
	CurrentLocation   string                  `json:"current_location,omitempty"`
	EstimatedDelivery *time.Time              `json:"estimated_delivery,omitempty"`
	LastStatusUpdate  *time.Time              `json:"last_status_update,omitempty"`
	TrackingHistory   []entity.TrackingEvent  `json:"tracking_history"`
	PDFPath           string                  `json:"pdf_path,omitempty"`
	Version           int64                   `json:"version"`
	OrderDate         time.Time               `json:"order_date"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// FromPurchaseOrder maps an order entity to its response shape.
func FromPurchaseOrder(o *entity.PurchaseOrder) PurchaseOrderResponse {
	items := make([]LineItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItemResponse{
			Position:   it.Position,
			ProductID:  it.ProductID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		})
	}
	history := o.TrackingHistory
	if history == nil {
		history = []entity.TrackingEvent{}
	}
	return PurchaseOrderResponse{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		Status:            o.Status,
		Site:              o.Site,
		Supplier:          o.Supplier,
		Items:             items,
		TotalAmount:       o.TotalAmount,
		Currency:          o.Currency,
		Notes:             o.Notes,
		OrderedBy:         o.OrderedBy,
		TrackingNumber:    o.TrackingNumber,
		ShippingStatus:    o.ShippingStatus,
		CurrentLocation:   o.CurrentLocation,
		EstimatedDelivery: o.EstimatedDelivery,
		LastStatusUpdate:  o.LastStatusUpdate,
		TrackingHistory:   history,
		PDFPath:           o.PDFPath,
		Version:           o.Version,
		OrderDate:         o.OrderDate,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// FromPurchaseOrders maps a slice of orders.
func FromPurchaseOrders(orders []*entity.PurchaseOrder) []PurchaseOrderResponse {
	out := make([]PurchaseOrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromPurchaseOrder(o))
	}
	return out
}

// OrderSummaryResponse is a history row with totals computed from line items.
type OrderSummaryResponse struct {
	ID          uuid.UUID               `json:"id"`
	OrderNumber string                  `json:"order_number"`
	Status      entity.Status           `json:"status"`
	Site        string                  `json:"site"`
	Supplier    entity.SupplierSnapshot `json:"supplier"`
	TotalAmount decimal.Decimal         `json:"total_amount"`
	ItemsTotal  decimal.Decimal         `json:"items_total"`
	ItemCount   int64                   `json:"item_count"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// FromSummaries maps history rows.
func FromSummaries(rows []entity.OrderSummary) []OrderSummaryResponse {
	out := make([]OrderSummaryResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, OrderSummaryResponse{
			ID:          r.ID,
			OrderNumber: r.OrderNumber,
			Status:      r.Status,
			Site:        r.Site,
			Supplier:    r.Supplier,
			TotalAmount: r.TotalAmount,
			ItemsTotal:  r.ItemsTotal,
			ItemCount:   r.ItemCount,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return out
}

// StatusHistoryResponse is one recorded transition.
type StatusHistoryResponse struct {
	From      entity.Status `json:"from,omitempty"`
	To        entity.Status `json:"to"`
	ActorID   uuid.UUID     `json:"actor_id"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// FromStatusHistory maps recorded transitions.
func FromStatusHistory(entries []entity.StatusHistoryEntry) []StatusHistoryResponse {
	out := make([]StatusHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, StatusHistoryResponse{
			From:      e.FromStatus,
			To:        e.ToStatus,
			ActorID:   e.ActorID,
			Note:      e.Note,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
