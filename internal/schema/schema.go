package schema

import "github.com/satishbabariya/toasty-go/internal/stmt"

// FieldKind enumerates the shapes a Field can take.
type FieldKind int

const (
	FieldPrimitive FieldKind = iota
	FieldBelongsTo
	FieldHasMany
	FieldHasOne
)

// Field is one application-layer attribute of a Model.
type Field struct {
	Name       string
	Kind       FieldKind
	Type       stmt.Type
	Nullable   bool
	Auto       bool // true for an @auto-generated field (e.g. @auto id)
	MaxLength  *int

	// Relation fields only:
	TargetModel string  // the model this relation points at / collects
	PairField   *int    // field index on TargetModel that is this field's inverse, nil if none declared
}

// Model is one application-layer entity.
type Model struct {
	ID         ModelID
	Name       string
	Fields     []Field
	PrimaryKey []int // field indices composing the PK
	Table      TableID
}

// FieldIndex returns the field index with the given name, or -1.
func (m Model) FieldIndex(name string) int {
	for i, f := range m.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// AppSchema is the application layer: models and their fields.
type AppSchema struct {
	Models []Model
}

func (s AppSchema) Model(id ModelID) Model { return s.Models[id] }

func (s AppSchema) ModelByName(name string) (Model, bool) {
	for _, m := range s.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

func (s AppSchema) Field(id FieldID) Field { return s.Models[id.Model].Fields[id.Index] }

// StorageKind tags a column's physical storage type. Discriminant columns
// (DiscriminantPrefix non-empty) store "<prefix>#<value>" so several models
// can share one table.
type StorageKind int

const (
	StorageInt StorageKind = iota
	StorageUint
	StorageBool
	StorageText
	StorageVarChar
	StorageBlob
	StorageUuid
	StorageNumeric
	StorageTimestamp
	StorageDate
	StorageTime
	StorageDateTime
)

// Column is one database-layer attribute of a Table.
type Column struct {
	Name    string
	Storage StorageKind
	// Discriminants lists the "<prefix>" tags that may appear in this
	// column when the owning table is shared by multiple models. Empty
	// when the column is not discriminated.
	Discriminants []string
}

// Index is a table index; the first declared index is always the PK index.
type Index struct {
	Name    string
	Columns []int // column positions, in index-column order
	Unique  bool
	// PartitionScope marks columns (by position within Columns) that only
	// accept equality matches — a key-value backend's partition key.
	PartitionScope []int
}

// Table is one database-layer relation.
type Table struct {
	ID      TableID
	Name    string
	Columns []Column
	Indices []Index // Indices[0] is always the PK index
}

func (t Table) PKIndex() Index { return t.Indices[0] }

// DbSchema is the database layer: tables, columns, indices.
type DbSchema struct {
	Tables []Table
}

func (s DbSchema) Table(id TableID) Table { return s.Tables[id] }

// Mapping is the per-model bidirectional projection between model altitude
// and table altitude: ModelToTable produces one expression per table
// column (including the PK) from model-field references; TableToModel
// produces one expression per model field from table-column references.
// The two are inverses modulo discriminant prefixes: round-tripping a
// representable value through both is identity.
type Mapping struct {
	Model        ModelID
	Table        TableID
	ModelToTable []stmt.Expr // len == table column count; each refs ExprField(0, fieldIndex)
	TableToModel []stmt.Expr // len == model field count; each refs ExprColumn(0, table, column)

	// Discriminant is this model's tag prefix when Table is shared with
	// other models ("" when the table belongs to this model alone). A
	// discriminated column's ModelToTable expression is
	// ConcatStr(ExprValue(Discriminant), fieldExpr, "#").
	Discriminant string
}

// FieldForColumn returns the model field index whose ModelToTable
// expression targets column col, or -1 if no field maps to it (a purely
// literal/discriminant column).
func (m Mapping) FieldForColumn(col int) int {
	found := -1
	stmt.WalkExpr(m.ModelToTable[col], func(e stmt.Expr) {
		if f, ok := e.(stmt.ExprField); ok && f.Nesting == 0 {
			found = f.Index
		}
	})
	return found
}

// PKLowering returns the subset of ModelToTable restricted to PK columns,
// in PK column order.
func (m Mapping) PKLowering(t Table) []stmt.Expr {
	pk := t.PKIndex()
	out := make([]stmt.Expr, len(pk.Columns))
	for i, col := range pk.Columns {
		out[i] = m.ModelToTable[col]
	}
	return out
}

// Schema is the full, resolved, immutable schema consumed by the planner.
type Schema struct {
	App      AppSchema
	Db       DbSchema
	Mappings []Mapping // indexed by ModelID
}

func (s Schema) MappingFor(model ModelID) Mapping { return s.Mappings[model] }

func (s Schema) TableFor(model ModelID) Table {
	return s.Db.Table(s.App.Model(model).Table)
}

// FindByKey builds the canonical point-lookup Query for model: a Select over
// Source::Model(model) filtered by the conjunction of PK field equalities to
// keyExprs, in primary-key field order. Used by the write planner to derive
// a selection from a just-known primary key (e.g. the HasMany cascade's
// "this row" selector).
func (s Schema) FindByKey(model ModelID, keyExprs []stmt.Expr) stmt.Query {
	m := s.App.Model(model)
	conj := make([]stmt.Expr, len(m.PrimaryKey))
	for i, fieldIdx := range m.PrimaryKey {
		conj[i] = stmt.Eq(stmt.Field(0, fieldIdx), keyExprs[i])
	}
	var filter stmt.Expr = stmt.True
	if len(conj) == 1 {
		filter = conj[0]
	} else if len(conj) > 1 {
		filter = stmt.ExprAnd{Operands: conj}
	}
	return stmt.Query{
		Body: stmt.ExprSet{
			Kind: stmt.ExprSetSelect,
			Select: &stmt.Select{
				Source: stmt.Source{Kind: stmt.SourceModel, Model: m.Name},
				Filter: filter,
				Returning: stmt.Returning{Kind: stmt.ReturningModel},
			},
		},
	}
}
