package host

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	lua "github.com/yuin/gopher-lua"

	"luahost/internal/bridge"
	"luahost/pkg/models"
)

const (
	pluginDBFile = "plugin.db"
	dbOpTimeout  = 10 * time.Second
)

// openPluginDB opens the plugin's file-scoped database. Every db_exec and
// db_query opens and closes its own handle, so plugins never pin a
// connection across requests.
func openPluginDB(p *Plugin) (*bun.DB, error) {
	dsn := "file:" + filepath.Join(p.Path, pluginDBFile) + "?cache=shared"

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin db: %w", err)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// dbExec runs a single statement against the plugin's database.
func (m *Manager) dbExec(p *Plugin, stmt string) error {
	db, err := openPluginDB(p)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), dbOpTimeout)
	defer cancel()

	start := time.Now()
	_, err = db.ExecContext(ctx, stmt)
	m.logSQL(p, stmt, time.Since(start), err)

	return err
}

// dbQuery runs a single query and returns each row as a column→value map.
func (m *Manager) dbQuery(p *Plugin, stmt string) ([]map[string]any, error) {
	db, err := openPluginDB(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), dbOpTimeout)
	defer cancel()

	start := time.Now()
	rows, err := db.QueryContext(ctx, stmt)
	m.logSQL(p, stmt, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		for i := range vals {
			vals[i] = new(any)
		}

		if err := rows.Scan(vals...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := *(vals[i].(*any))
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// applySchema creates the tables a plugin declares in its global `schema`
// table: one CREATE TABLE IF NOT EXISTS per key, column definitions taken
// verbatim from the inner mapping. A schema failure is logged; the plugin
// still loads.
func (m *Manager) applySchema(p *Plugin) {
	tbl, ok := p.L.GetGlobal("schema").(*lua.LTable)
	if !ok {
		return
	}

	g, err := bridge.ToGo(tbl)
	if err != nil {
		m.logf(models.LevelError, "MANAGER", "plugin %s: unreadable schema: %v", p.Name, err)
		return
	}

	tables, ok := g.(map[string]any)
	if !ok {
		return
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cols, ok := tables[name].(map[string]any)
		if !ok {
			continue
		}

		colNames := make([]string, 0, len(cols))
		for col := range cols {
			colNames = append(colNames, col)
		}
		sort.Strings(colNames)

		defs := make([]string, 0, len(colNames))
		for _, col := range colNames {
			def, _ := cols[col].(string)
			defs = append(defs, fmt.Sprintf("%s %s", col, def))
		}

		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(defs, ", "))
		if err := m.dbExec(p, stmt); err != nil {
			m.logf(models.LevelError, "MANAGER", "plugin %s: schema for table %s: %v", p.Name, name, err)
		}
	}
}
