package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"luahost/pkg/models"
)

// newTestDB creates a fresh in-memory log database for testing
func newTestDB(t *testing.T) *DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	require.NoError(t, sqldb.Ping())

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().
		Model((*models.SystemLog)(nil)).
		IfNotExists().
		Exec(context.Background())
	require.NoError(t, err)

	d := &DB{
		logDB:   bunDB,
		logChan: make(chan *models.SystemLog, 100),
	}

	d.startLogWorkers(1)

	t.Cleanup(func() {
		_ = d.Close()
	})

	return d
}
