// Package mysql wires a toasty Driver to a MySQL database via
// go-sql-driver/mysql, grounded on
// v3/internal/adapters/database/mysql/adapter.go.
package mysql

import (
	"context"
	gosql "database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/satishbabariya/toasty-go/internal/capability"
	sqlcompile "github.com/satishbabariya/toasty-go/internal/driver/sql"
	"github.com/satishbabariya/toasty-go/internal/schema"
)

// Config mirrors the connection-pool knobs the teacher's adapter.Config
// exposes.
type Config struct {
	DSN            string
	MaxConnections int
	MaxIdleTime    time.Duration
	ConnectTimeout time.Duration
}

// Open connects to MySQL and returns a ready-to-use driver.Driver.
func Open(ctx context.Context, s schema.Schema, cfg Config) (*sqlcompile.Driver, error) {
	db, err := gosql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections / 2)
	}
	if cfg.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}

	pingCtx := ctx
	var cancel context.CancelFunc
	if cfg.ConnectTimeout > 0 {
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}

	return &sqlcompile.Driver{
		DB:     db,
		Schema: s,
		Cap:    capability.MySQL,
		PH:     sqlcompile.Question,
	}, nil
}
