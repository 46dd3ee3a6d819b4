package stmt

import (
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

// Value is a closed sum of the literal kinds the planner can fold, compare
// and emit as bind parameters. It mirrors the application-level Type system:
// every Kind above (other than Unknown, Model, SparseRecord and Key) has
// exactly one Value constructor.
type Value interface {
	valueKind() Kind
}

type (
	BoolValue    bool
	I8Value      int8
	I16Value     int16
	I32Value     int32
	I64Value     int64
	U8Value      uint8
	U16Value     uint16
	U32Value     uint32
	U64Value     uint64
	StringValue  string
	BytesValue   []byte
	UuidValue    uuid.UUID
	DecimalValue struct {
		// Unscaled integer digits plus a decimal Scale, avoiding a
		// dependency the retrieval pack doesn't carry (see DESIGN.md).
		Unscaled string
		Scale    int32
	}
	BigDecimalValue  DecimalValue
	TimestampValue   time.Time
	ZonedValue       time.Time
	DateValue        civil.Date
	TimeValue        civil.Time
	DateTimeValue    civil.DateTime
	IdValue          struct {
		Model string
		Key   Value
	}
	RecordValue []Value
	ListValue   []Value
	EnumValue   struct {
		Variant string
		Value   Value
	}
	NullValue struct{}
)

func (BoolValue) valueKind() Kind       { return KindBool }
func (I8Value) valueKind() Kind         { return KindI8 }
func (I16Value) valueKind() Kind        { return KindI16 }
func (I32Value) valueKind() Kind        { return KindI32 }
func (I64Value) valueKind() Kind        { return KindI64 }
func (U8Value) valueKind() Kind         { return KindU8 }
func (U16Value) valueKind() Kind        { return KindU16 }
func (U32Value) valueKind() Kind        { return KindU32 }
func (U64Value) valueKind() Kind        { return KindU64 }
func (StringValue) valueKind() Kind     { return KindString }
func (BytesValue) valueKind() Kind      { return KindBytes }
func (UuidValue) valueKind() Kind       { return KindUuid }
func (DecimalValue) valueKind() Kind    { return KindDecimal }
func (BigDecimalValue) valueKind() Kind { return KindBigDecimal }
func (TimestampValue) valueKind() Kind  { return KindTimestamp }
func (ZonedValue) valueKind() Kind      { return KindZoned }
func (DateValue) valueKind() Kind       { return KindDate }
func (TimeValue) valueKind() Kind       { return KindTime }
func (DateTimeValue) valueKind() Kind   { return KindDateTime }
func (IdValue) valueKind() Kind         { return KindID }
func (RecordValue) valueKind() Kind     { return KindRecord }
func (ListValue) valueKind() Kind       { return KindList }
func (EnumValue) valueKind() Kind       { return KindEnum }
func (NullValue) valueKind() Kind       { return KindNull }

// IsNull reports whether v is the Null value.
func IsNull(v Value) bool {
	_, ok := v.(NullValue)
	return ok
}

// NewUUID generates a fresh UUIDv4, used by the write planner's @auto id
// default-generation rule.
func NewUUID() UuidValue {
	return UuidValue(uuid.New())
}
