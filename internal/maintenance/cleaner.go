package maintenance

import (
	"context"
	"fmt"
	"regexp"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/database"
)

var tracer = otel.Tracer("github.com/Additional-Code/procura/maintenance")

// DefaultTables lists the purchasing tables in delete order: children first.
var DefaultTables = []string{
	"order_items",
	"invoices",
	"purchase_order_status_history",
	"purchase_orders",
	"suppliers",
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Module provides the Cleaner to Fx.
var Module = fx.Provide(func(conns *database.Connections, logger *zap.Logger) *Cleaner {
	return NewCleaner(conns, logger)
})

// Cleared reports the rows removed from one table.
type Cleared struct {
	Table   string
	Deleted int64
}

// Cleaner wipes the purchasing tables.
type Cleaner struct {
	db     *bun.DB
	tables []string
	logger *zap.Logger
}

// Option customises a Cleaner.
type Option func(*Cleaner)

// WithTables overrides the tables cleared and their order.
func WithTables(tables ...string) Option {
	return func(c *Cleaner) {
		c.tables = append([]string(nil), tables...)
	}
}

// NewCleaner builds a Cleaner on the writer connection.
func NewCleaner(conns *database.Connections, logger *zap.Logger, opts ...Option) *Cleaner {
	c := &Cleaner{db: conns.Writer, tables: DefaultTables, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tables returns the tables Clear deletes from, in order.
func (c *Cleaner) Tables() []string {
	return append([]string(nil), c.tables...)
}

// Clear deletes every row of every table in a single transaction. Any failure
// rolls back all deletes.
func (c *Cleaner) Clear(ctx context.Context) ([]Cleared, error) {
	for _, table := range c.tables {
		if !identifier.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}

	ctx, span := tracer.Start(ctx, "Cleaner.Clear")
	defer span.End()

	result := make([]Cleared, 0, len(c.tables))
	err := c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, table := range c.tables {
			res, err := tx.NewDelete().
				Table(table).
				Where("TRUE").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
			result = append(result, Cleared{Table: table, Deleted: n})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clear failed")
		c.logger.Error("clear tables rolled back", zap.Error(err))
		return nil, err
	}

	for _, r := range result {
		span.SetAttributes(attribute.Int64("deleted."+r.Table, r.Deleted))
		c.logger.Info("table cleared", zap.String("table", r.Table), zap.Int64("deleted", r.Deleted))
	}
	return result, nil
}
