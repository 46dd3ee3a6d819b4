// Package sqlite wires a toasty Driver to a SQLite database via
// mattn/go-sqlite3, grounded on
// v3/internal/adapters/database/sqlite/adapter.go.
package sqlite

import (
	"context"
	gosql "database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/satishbabariya/toasty-go/internal/capability"
	sqlcompile "github.com/satishbabariya/toasty-go/internal/driver/sql"
	"github.com/satishbabariya/toasty-go/internal/schema"
)

// Open connects to the SQLite file (or ":memory:") at path and returns a
// ready-to-use driver.Driver.
func Open(ctx context.Context, s schema.Schema, path string) (*sqlcompile.Driver, error) {
	db, err := gosql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// SQLite serializes writers internally; a single open connection avoids
	// "database is locked" errors under concurrent opir waves.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &sqlcompile.Driver{
		DB:     db,
		Schema: s,
		Cap:    capability.SQLite,
		PH:     sqlcompile.Question,
	}, nil
}
