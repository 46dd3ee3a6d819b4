// Package schema holds the resolved, immutable schema the planner consumes:
// an application layer (models, fields, relations) and a database layer
// (tables, columns, indices), connected by per-model mappings.
//
// Models reference each other through relations, so a pointer-graph
// representation would have cycles. Instead the schema is a flat arena:
// parallel slices indexed by small integer ids. Relation pairing stores the
// counterpart's FieldID rather than a pointer, so cycles simply don't arise.
package schema

// ModelID identifies a Model within AppSchema.Models.
type ModelID int

// FieldID identifies a Field within its owning Model.
type FieldID struct {
	Model ModelID
	Index int
}

// TableID identifies a Table within DbSchema.Tables.
type TableID int

// ColumnID identifies a Column within its owning Table.
type ColumnID struct {
	Table TableID
	Index int
}

// IndexID identifies an Index within its owning Table.
type IndexID struct {
	Table TableID
	Index int
}
