package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/procura/internal/entity"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	Name     string   `json:"name"`
	Roles    []string `json:"roles"`
	Site     string   `json:"assigned_site"`
}

// UserResponse is an account without its credentials.
type UserResponse struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Roles        []string  `json:"roles"`
	AssignedSite string    `json:"assigned_site,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FromUser maps a user entity.
func FromUser(u *entity.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Roles:        u.Roles,
		AssignedSite: u.AssignedSite,
		CreatedAt:    u.CreatedAt,
	}
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// SupplierRequest is the body of supplier writes.
type SupplierRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	ContactPerson string `json:"contact_person"`
}

// SupplierResponse represents a supplier as exposed via transport layers.
type SupplierResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	ContactPerson string    `json:"contact_person,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FromSupplier maps a supplier entity.
func FromSupplier(s *entity.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:            s.ID,
		Name:          s.Name,
		Email:         s.Email,
		Phone:         s.Phone,
		Address:       s.Address,
		ContactPerson: s.ContactPerson,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// CreateInvoiceRequest is the body of POST /api/purchase-orders/:id/invoices.
type CreateInvoiceRequest struct {
	InvoiceNumber string          `json:"invoice_number" validate:"required,max=64"`
	Amount        decimal.Decimal `json:"amount"`
	IssuedAt      time.Time       `json:"issued_at"`
}

// InvoiceResponse represents an invoice as exposed via transport layers.
type InvoiceResponse struct {
	ID              uuid.UUID            `json:"id"`
	PurchaseOrderID uuid.UUID            `json:"purchase_order_id"`
	InvoiceNumber   string               `json:"invoice_number"`
	Amount          decimal.Decimal      `json:"amount"`
	Status          entity.InvoiceStatus `json:"status"`
	IssuedAt        time.Time            `json:"issued_at"`
	CreatedAt       time.Time            `json:"created_at"`
}

// FromInvoice maps an invoice entity.
func FromInvoice(inv *entity.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:              inv.ID,
		PurchaseOrderID: inv.PurchaseOrderID,
		InvoiceNumber:   inv.InvoiceNumber,
		Amount:          inv.Amount,
		Status:          inv.Status,
		IssuedAt:        inv.IssuedAt,
		CreatedAt:       inv.CreatedAt,
	}
}
