package stmt

// Kind tags the closed set of types a Field, Column or Expr can carry.
type Kind int

const (
	KindUnknown Kind = iota
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindBool
	KindString
	KindBytes
	KindUuid
	KindDecimal
	KindBigDecimal
	KindTimestamp
	KindZoned
	KindDate
	KindTime
	KindDateTime
	KindModel
	KindID
	KindRecord
	KindSparseRecord
	KindList
	KindKey
	KindNull
	KindEnum
)

// Type is a closed, switchable description of a value's shape. Record,
// List, Id, Model and Enum carry extra payload in the fields below; every
// other Kind is self-describing.
type Type struct {
	Kind Kind

	// Model is set when Kind is KindModel, KindID or KindKey: the model the
	// type is identifying or referencing.
	Model string

	// Fields is set when Kind is KindRecord: the ordered field types of the
	// record.
	Fields []Type

	// FieldSet is set when Kind is KindSparseRecord: the set of field
	// indices present in the sparse record (by position in the owning
	// model).
	FieldSet []int

	// Elem is set when Kind is KindList: the element type. A nil Elem with
	// Kind == KindList means List(Null), used only when no surrounding
	// context supplies an element type for an empty list literal.
	Elem *Type

	// Variants is set when Kind is KindEnum: the declared variant names.
	Variants []string

	// Nullable marks that, in addition to values of Kind, Null is a valid
	// value for this type. It is tracked separately from Kind so
	// non-nullability can be asked of any type, including KindNull itself
	// (which is never considered non-nullable).
	Nullable bool
}

// NonNullable reports whether a value of this type can never be NULL. Used
// by the simplifier's complement and self-comparison rules.
func (t Type) NonNullable() bool {
	return !t.Nullable && t.Kind != KindNull && t.Kind != KindUnknown
}

// Id returns the Id(model) type.
func Id(model string) Type { return Type{Kind: KindID, Model: model} }

// ModelType returns the Model(model) type.
func ModelType(model string) Type { return Type{Kind: KindModel, Model: model} }

// List returns the List(inner) type.
func List(inner Type) Type { return Type{Kind: KindList, Elem: &inner} }

// Record returns the Record(fields) type.
func Record(fields ...Type) Type { return Type{Kind: KindRecord, Fields: fields} }

// SparseRecord returns the SparseRecord(fieldSet) type.
func SparseRecord(fieldSet []int) Type { return Type{Kind: KindSparseRecord, FieldSet: fieldSet} }

// Equal reports structural equality of two types, including Nullable.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Model != o.Model || t.Nullable != o.Nullable {
		return false
	}
	switch t.Kind {
	case KindRecord:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	case KindSparseRecord:
		if len(t.FieldSet) != len(o.FieldSet) {
			return false
		}
		for i := range t.FieldSet {
			if t.FieldSet[i] != o.FieldSet[i] {
				return false
			}
		}
		return true
	case KindList:
		if (t.Elem == nil) != (o.Elem == nil) {
			return false
		}
		if t.Elem == nil {
			return true
		}
		return t.Elem.Equal(*o.Elem)
	case KindEnum:
		if len(t.Variants) != len(o.Variants) {
			return false
		}
		for i := range t.Variants {
			if t.Variants[i] != o.Variants[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}
