package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Supplier is a vendor goods are purchased from.
type Supplier struct {
	bun.BaseModel `bun:"table:suppliers,alias:s"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	Name          string    `bun:"name,notnull"`
	Email         string    `bun:"email,notnull"`
	Phone         string    `bun:"phone,nullzero"`
	Address       string    `bun:"address,nullzero"`
	ContactPerson string    `bun:"contact_person,nullzero"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero"`
}
