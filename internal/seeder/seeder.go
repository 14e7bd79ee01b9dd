package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Additional-Code/procura/internal/database"
	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/internal/service/auth"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// DefaultPassword is assigned to seeded accounts.
const DefaultPassword = "procura-dev"

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
	cost   int
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{
		db:     conns.Writer,
		logger: logger,
		cost:   bcrypt.DefaultCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run seeds users, suppliers and orders. Existing rows are left untouched.
func (s *Seeder) Run(ctx context.Context) error {
	if err := s.Users(ctx); err != nil {
		return err
	}
	suppliers, err := s.Suppliers(ctx)
	if err != nil {
		return err
	}
	return s.Orders(ctx, suppliers)
}

// Users seeds an admin plus one account per lifecycle role on sites A and B.
func (s *Seeder) Users(ctx context.Context) error {
	hash, err := auth.HashPassword(DefaultPassword, s.cost)
	if err != nil {
		return err
	}
	users := Users(hash, s.now())
	for _, u := range users {
		if _, err := s.db.NewInsert().Model(u).On("CONFLICT (email) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	s.logger.Info("seeded users", zap.Int("count", len(users)))
	return nil
}

// Suppliers seeds the sample suppliers and returns what is stored.
func (s *Seeder) Suppliers(ctx context.Context) ([]*entity.Supplier, error) {
	existing := make([]*entity.Supplier, 0)
	if err := s.db.NewSelect().Model(&existing).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	suppliers := Suppliers(s.now())
	if _, err := s.db.NewInsert().Model(&suppliers).Exec(ctx); err != nil {
		return nil, fmt.Errorf("seed suppliers: %w", err)
	}
	s.logger.Info("seeded suppliers", zap.Int("count", len(suppliers)))
	return suppliers, nil
}

// Orders seeds one sample order per status.
func (s *Seeder) Orders(ctx context.Context, suppliers []*entity.Supplier) error {
	if len(suppliers) == 0 {
		return nil
	}
	owner := new(entity.User)
	if err := s.db.NewSelect().Model(owner).Where("email = ?", adminEmail).Scan(ctx); err != nil {
		return fmt.Errorf("load admin: %w", err)
	}

	orders := Orders(suppliers, owner.ID, s.now())
	for _, order := range orders {
		err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			res, err := tx.NewInsert().Model(order).On("CONFLICT (order_number) DO NOTHING").Exec(ctx)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return nil
			}
			_, err = tx.NewInsert().Model(&order.Items).Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("seed order %s: %w", order.OrderNumber, err)
		}
	}
	s.logger.Info("seeded purchase orders", zap.Int("count", len(orders)))
	return nil
}

const adminEmail = "admin@procura.local"

// Users builds the seed accounts with the given password hash.
func Users(hash string, now time.Time) []*entity.User {
	mk := func(email, name, site string, roles ...string) *entity.User {
		return &entity.User{
			ID: uuid.New(), Email: email, Name: name, PasswordHash: hash,
			Roles: roles, AssignedSite: site, CreatedAt: now, UpdatedAt: now,
		}
	}
	return []*entity.User{
		mk(adminEmail, "Administrator", "", entity.RoleAdmin),
		mk("clerk.a@procura.local", "Site A Clerk", "A", entity.RoleUser),
		mk("approver.a@procura.local", "Site A Approver", "A", entity.RoleUser, entity.RoleApprover),
		mk("buyer.a@procura.local", "Site A Buyer", "A", entity.RoleUser, entity.RolePurchaser),
		mk("clerk.b@procura.local", "Site B Clerk", "B", entity.RoleUser),
	}
}

// Suppliers builds the sample suppliers.
func Suppliers(now time.Time) []*entity.Supplier {
	return []*entity.Supplier{
		{ID: uuid.New(), Name: "Acme Industrial", Email: "sales@acme.example", Phone: "+1 555 0100", ContactPerson: "Dana Reyes", CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New(), Name: "Northwind Supply", Email: "orders@northwind.example", Address: "12 Harbor Rd", CreatedAt: now, UpdatedAt: now},
	}
}

// Orders builds one order per lifecycle status, alternating sites and suppliers.
func Orders(suppliers []*entity.Supplier, owner uuid.UUID, now time.Time) []*entity.PurchaseOrder {
	statuses := entity.Statuses()
	orders := make([]*entity.PurchaseOrder, 0, len(statuses))
	for i, status := range statuses {
		supplier := suppliers[i%len(suppliers)]
		site := "A"
		if i%2 == 1 {
			site = "B"
		}
		qty := int64(i + 1)
		price := decimal.RequireFromString("12.50")
		total := price.Mul(decimal.NewFromInt(qty))
		id := uuid.New()
		orders = append(orders, &entity.PurchaseOrder{
			ID:          id,
			OrderNumber: fmt.Sprintf("PO-%d", 1000+i),
			Status:      status,
			Site:        site,
			Supplier:    entity.SnapshotOf(supplier),
			TotalAmount: total,
			Currency:    "USD",
			OrderedBy:   owner,
			Version:     1,
			OrderDate:   now,
			CreatedAt:   now,
			UpdatedAt:   now,
			Items: []*entity.LineItem{{
				PurchaseOrderID: id,
				Position:        1,
				ProductID:       fmt.Sprintf("SKU-%03d", i+1),
				Name:            "Shelving unit",
				Quantity:        qty,
				UnitPrice:       price,
				TotalPrice:      total,
			}},
		})
	}
	return orders
}
