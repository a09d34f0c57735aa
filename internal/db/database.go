// Package db owns the system log database: an SQLite file written to
// asynchronously through a buffered channel so the dispatch paths never wait
// on disk.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"luahost/pkg/models"
)

const (
	logChannelSize = 1000
	logWorkers     = 5

	// DefaultLogDb is the log database file used when none is configured.
	DefaultLogDb = "logs.db"
)

// DB wraps the log database and its writer pool.
type DB struct {
	logDB *bun.DB

	logChan chan *models.SystemLog
	logWg   sync.WaitGroup
}

// New opens the log database and starts the writer pool.
func New(logDSN string) (*DB, error) {
	logSqlDb, err := sql.Open(sqliteshim.ShimName, logDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open log db: %w", err)
	}

	logDB := bun.NewDB(logSqlDb, sqlitedialect.New())

	d := &DB{
		logDB:   logDB,
		logChan: make(chan *models.SystemLog, logChannelSize),
	}

	d.startLogWorkers(logWorkers)

	err = d.createTables(context.Background())
	if err != nil {
		return nil, err
	}

	return d, nil
}

// Ping checks the connectivity of the log database.
func (d *DB) Ping(_ context.Context) error {
	err := d.logDB.Ping()
	if err != nil {
		return fmt.Errorf("log db ping failed: %w", err)
	}

	return nil
}

// Close flushes pending entries and closes the database.
func (d *DB) Close() error {
	close(d.logChan)
	d.logWg.Wait()

	return d.logDB.Close()
}

// createTables creates the necessary database tables if they don't exist.
func (d *DB) createTables(ctx context.Context) error {
	logModels := []any{
		(*models.SystemLog)(nil),
	}

	for _, model := range logModels {
		_, err := d.logDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create log table: %w", err)
		}
	}

	return nil
}

// startLogWorkers spins up 'count' background goroutines to process logs.
func (d *DB) startLogWorkers(count int) {
	for range count {

		d.logWg.Go(func() {

			for entry := range d.logChan {
				_, _ = d.logDB.NewInsert().Model(entry).Exec(context.Background())
			}
		})
	}
}
