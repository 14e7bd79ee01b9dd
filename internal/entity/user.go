package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleAdmin is the privileged role that bypasses site scoping.
const RoleAdmin = "admin"

// Other roles referenced by the purchase-order lifecycle.
const (
	RoleApprover  = "approver"
	RolePurchaser = "purchaser"
	RoleUser      = "user"
)

// User is an account that can sign in and act on purchase orders.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Name         string    `bun:"name,nullzero"`
	Roles        []string  `bun:"roles,type:jsonb,notnull"`
	AssignedSite string    `bun:"assigned_site,nullzero"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero"`
}
