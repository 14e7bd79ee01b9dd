package maintenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/database"
)

func TestTablesDefaultToChildFirstOrder(t *testing.T) {
	c := NewCleaner(&database.Connections{}, zap.NewNop())

	tables := c.Tables()
	assert.Equal(t, DefaultTables, tables)
	assert.Less(t, indexOf(tables, "order_items"), indexOf(tables, "purchase_orders"))
	assert.Less(t, indexOf(tables, "invoices"), indexOf(tables, "purchase_orders"))

	tables[0] = "mutated"
	assert.Equal(t, "order_items", c.Tables()[0])
}

func TestClearRejectsUnsafeTableNames(t *testing.T) {
	c := NewCleaner(&database.Connections{}, zap.NewNop(), WithTables("suppliers; DROP TABLE users"))

	_, err := c.Clear(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
