package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/procura/internal/config"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mysql duplicate", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}), true},
		{"mysql other", &mysql.MySQLError{Number: 1213}, false},
		{"generic", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestSelectDialect(t *testing.T) {
	for _, driver := range []string{"postgres", "pg", "mysql"} {
		d, err := selectDialect(driver)
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}

	_, err := selectDialect("sqlite")
	assert.Error(t, err)
}

func TestOpenSQLDBRejectsEmptyDSN(t *testing.T) {
	_, err := openSQLDB("postgres", "")
	assert.Error(t, err)
}

func TestApplyPoolSettings(t *testing.T) {
	db, err := openSQLDB("postgres", "postgres://u:p@127.0.0.1:1/none?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()

	applyPoolSettings(db, config.Database{MaxOpenConns: 7})
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}

func TestSlowQueryHook(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	hook := &slowQueryHook{role: "writer", threshold: 50 * time.Millisecond, logger: zap.New(core)}

	hook.AfterQuery(context.Background(), &bun.QueryEvent{StartTime: time.Now(), Query: "SELECT 1"})
	assert.Zero(t, logs.Len())

	hook.AfterQuery(context.Background(), &bun.QueryEvent{
		StartTime: time.Now().Add(-time.Second),
		Query:     "SELECT * FROM purchase_orders",
		Err:       sql.ErrNoRows,
	})
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "slow query", entry.Message)
	assert.Equal(t, "writer", entry.ContextMap()["db"])
	assert.NotContains(t, entry.ContextMap(), "error")
}
