// Package driver declares the interface the Operation IR's evaluation VM
// dispatches Actions against. Concrete drivers (internal/driver/sql/*,
// internal/driver/kv/bolt) implement it; the planner and opir packages never
// import a concrete driver, only this interface, per spec.md §6 ("we emit a
// driver-independent operation IR").
package driver

import (
	"context"

	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// Row is one result record: column/field values in projection order.
type Row []stmt.Value

// Driver executes Operation IR Actions against a concrete backend.
type Driver interface {
	// Capability reports this backend's feature matrix.
	Capability() capability.Capability

	// ExecStatement dispatches a fully lowered Statement and returns the
	// resulting rows (empty for a mutation with no Returning).
	ExecStatement(ctx context.Context, st stmt.Statement, inputs []Row) ([]Row, error)

	// GetByKey performs a point read on table's primary key for each key in
	// keys, in order; a missing key yields a nil Row at that position.
	GetByKey(ctx context.Context, table string, keys []Row) ([]Row, error)

	// FindPkByIndex looks up the owning primary key for each index-column
	// tuple in keys against table's named unique secondary index.
	FindPkByIndex(ctx context.Context, table, indexName string, keys []Row) ([]Row, error)

	// DeleteByKey removes rows by primary key.
	DeleteByKey(ctx context.Context, table string, keys []Row) error

	// UpdateByKey mutates rows by primary key, applying assignments;
	// condition, if non-nil, must hold on the pre-update row or the update
	// is rejected as a Conflict.
	UpdateByKey(ctx context.Context, table string, keys []Row, assignments []stmt.Assignment, condition stmt.Expr) ([]Row, error)

	// QueryPk scans table's primary-key range, applying indexFilter at the
	// storage layer and rowFilter on candidate rows.
	QueryPk(ctx context.Context, table string, indexFilter, rowFilter stmt.Expr) ([]Row, error)

	// ReadModifyWrite performs the read-then-conditional-transact-write
	// pattern used to maintain a unique secondary index on a backend
	// without native unique secondary indices (§4.5's Update bullet).
	ReadModifyWrite(ctx context.Context, table string, keys []Row, indexTable string, oldKey, newKey stmt.Value, assignments []stmt.Assignment) ([]Row, error)
}
