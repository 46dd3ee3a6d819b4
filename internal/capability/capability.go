// Package capability describes each backend's feature matrix, gating the
// planner's choice of SQL vs key-value Action emission and steering the
// lowering, index-selection and write-planning passes around features a
// given backend lacks.
package capability

import "fmt"

// StorageType names a concrete column storage type a backend can offer for
// an application-level type that has no native representation.
type StorageType int

const (
	StorageText StorageType = iota
	StorageVarChar
	StorageBlob
	StorageUuidNative
	StorageNumeric
	StorageTimestamp
	StorageDate
	StorageTime
	StorageDateTime
)

// StorageTypes records the default column storage type a backend uses for
// each application-level type that isn't self-describing.
type StorageTypes struct {
	DefaultStringType   StorageType
	Varchar             *uint64 // nil when the backend has no bounded varchar
	DefaultUuidType     StorageType
	DefaultDecimalType  StorageType
	DefaultBigDecimal   StorageType
	DefaultTimestamp    StorageType
	DefaultZoned        StorageType
	DefaultDate         StorageType
	DefaultTime         StorageType
	DefaultDateTime     StorageType
	MaxUnsignedInteger  *uint64 // nil = full u64 range supported
}

// SchemaMutations records a backend's DDL capabilities; the migration
// planner consumes these but the query planner does not.
type SchemaMutations struct {
	AlterColumnType             bool
	AlterColumnPropertiesAtomic bool
}

// Capability is a backend's full feature matrix, consumed by every planner
// subsystem that needs to branch on what the target store can do.
type Capability struct {
	// SQL selects the SQL emission Action path; when false the planner
	// emits key-value primitives (GetByKey, FindPkByIndex, ...) instead.
	SQL bool

	StorageTypes    StorageTypes
	SchemaMutations SchemaMutations

	CTEWithUpdate          bool
	SelectForUpdate        bool
	ReturningFromMutation  bool
	PrimaryKeyNePredicate  bool
	AutoIncrement          bool
	NativeVarchar          bool
	NativeTimestamp        bool
	NativeDate             bool
	NativeTime             bool
	NativeDateTime         bool
	NativeDecimal          bool
	DecimalArbitraryPrec   bool

	// UniqueSecondaryIndex reports whether the backend itself maintains
	// unique secondary indices. When false, the write planner must emit its
	// own transact-write-items bookkeeping (§4.5).
	UniqueSecondaryIndex bool
}

func u64p(v uint64) *uint64 { return &v }

// SQLite is the capability matrix for the sqlite driver.
var SQLite = Capability{
	SQL: true,
	StorageTypes: StorageTypes{
		DefaultStringType:  StorageText,
		Varchar:            u64p(1_000_000_000),
		DefaultUuidType:    StorageBlob,
		DefaultDecimalType: StorageText,
		DefaultBigDecimal:  StorageText,
		DefaultTimestamp:   StorageText,
		DefaultZoned:       StorageText,
		DefaultDate:        StorageText,
		DefaultTime:        StorageText,
		DefaultDateTime:    StorageText,
		MaxUnsignedInteger: u64p(1<<63 - 1),
	},
	CTEWithUpdate:         false,
	SelectForUpdate:       false,
	ReturningFromMutation: true,
	PrimaryKeyNePredicate: true,
	AutoIncrement:         true,
	NativeVarchar:         true,
	UniqueSecondaryIndex:  true,
}

// PostgreSQL is the capability matrix for the postgres driver.
var PostgreSQL = func() Capability {
	c := SQLite
	c.StorageTypes.Varchar = u64p(10_485_760)
	c.StorageTypes.DefaultUuidType = StorageUuidNative
	c.StorageTypes.DefaultDecimalType = StorageNumeric
	c.StorageTypes.DefaultTimestamp = StorageTimestamp
	c.StorageTypes.DefaultDate = StorageDate
	c.StorageTypes.DefaultTime = StorageTime
	c.StorageTypes.DefaultDateTime = StorageDateTime
	c.CTEWithUpdate = true
	c.SelectForUpdate = true
	c.NativeTimestamp = true
	c.NativeDate = true
	c.NativeTime = true
	c.NativeDateTime = true
	c.NativeDecimal = true
	c.DecimalArbitraryPrec = true
	return c
}()

// MySQL is the capability matrix for the mysql driver.
var MySQL = func() Capability {
	c := SQLite
	c.StorageTypes.Varchar = u64p(65_535)
	c.StorageTypes.DefaultUuidType = StorageVarChar
	c.StorageTypes.DefaultTimestamp = StorageDateTime
	c.StorageTypes.DefaultDate = StorageDate
	c.StorageTypes.DefaultTime = StorageTime
	c.StorageTypes.DefaultDateTime = StorageDateTime
	c.StorageTypes.MaxUnsignedInteger = nil
	c.CTEWithUpdate = false
	c.SelectForUpdate = true
	c.ReturningFromMutation = false
	c.NativeTimestamp = true
	c.NativeDate = true
	c.NativeTime = true
	c.NativeDateTime = true
	c.NativeDecimal = true
	c.DecimalArbitraryPrec = false
	return c
}()

// DynamoStyleKV is the capability matrix for the key-value driver family
// (modeled on DynamoDB's constraints, realized over a Bolt-backed store).
var DynamoStyleKV = Capability{
	SQL: false,
	StorageTypes: StorageTypes{
		DefaultStringType:  StorageText,
		Varchar:            nil,
		DefaultUuidType:    StorageText,
		DefaultDecimalType: StorageText,
		DefaultBigDecimal:  StorageText,
		DefaultTimestamp:   StorageText,
		DefaultZoned:       StorageText,
		DefaultDate:        StorageText,
		DefaultTime:        StorageText,
		DefaultDateTime:    StorageText,
		MaxUnsignedInteger: u64p(1<<63 - 1),
	},
	CTEWithUpdate:         false,
	SelectForUpdate:       false,
	ReturningFromMutation: false,
	PrimaryKeyNePredicate: false,
	AutoIncrement:         false,
	NativeVarchar:         false,
	UniqueSecondaryIndex:  false,
}

// Validate rejects internally inconsistent configurations, e.g. a backend
// claiming native varchar support without declaring a varchar storage type.
func (c Capability) Validate() error {
	if c.NativeVarchar && c.StorageTypes.Varchar == nil {
		return fmt.Errorf("capability: native_varchar is true but storage_types.varchar is nil")
	}
	if !c.NativeVarchar && c.StorageTypes.Varchar != nil {
		return fmt.Errorf("capability: native_varchar is false but storage_types.varchar is set")
	}
	return nil
}
