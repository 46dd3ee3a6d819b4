package sqlcompile

import (
	"fmt"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/satishbabariya/toasty-go/internal/driver"
	"github.com/satishbabariya/toasty-go/internal/perr"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// goValue converts a stmt.Value into the Go type database/sql expects as a
// bind argument.
func goValue(v stmt.Value) any {
	switch x := v.(type) {
	case stmt.NullValue:
		return nil
	case stmt.BoolValue:
		return bool(x)
	case stmt.I8Value:
		return int64(x)
	case stmt.I16Value:
		return int64(x)
	case stmt.I32Value:
		return int64(x)
	case stmt.I64Value:
		return int64(x)
	case stmt.U8Value:
		return int64(x)
	case stmt.U16Value:
		return int64(x)
	case stmt.U32Value:
		return int64(x)
	case stmt.U64Value:
		return int64(x)
	case stmt.StringValue:
		return string(x)
	case stmt.BytesValue:
		return []byte(x)
	case stmt.UuidValue:
		return uuid.UUID(x).String()
	case stmt.DecimalValue:
		return fmt.Sprintf("%se%d", x.Unscaled, -x.Scale)
	case stmt.BigDecimalValue:
		return fmt.Sprintf("%se%d", x.Unscaled, -x.Scale)
	case stmt.TimestampValue:
		return x
	case stmt.ZonedValue:
		return x
	case stmt.DateValue:
		return civil.Date(x).String()
	case stmt.TimeValue:
		return civil.Time(x).String()
	case stmt.DateTimeValue:
		return civil.DateTime(x).String()
	case stmt.IdValue:
		return goValue(x.Key)
	default:
		return nil
	}
}

// DecodeRow converts one database/sql scan result (via sql.Rows.Scan into
// []any) into a driver.Row, reading each column's StorageKind off cols to
// pick the right stmt.Value constructor.
func DecodeRow(cols []schema.Column, scanned []any) (driver.Row, error) {
	row := make(driver.Row, len(scanned))
	for i, raw := range scanned {
		val, err := decodeOne(cols[i].Storage, raw)
		if err != nil {
			return nil, err
		}
		row[i] = val
	}
	return row, nil
}

func decodeOne(storage schema.StorageKind, raw any) (stmt.Value, error) {
	if raw == nil {
		return stmt.NullValue{}, nil
	}
	switch storage {
	case schema.StorageInt:
		return stmt.I64Value(toInt64(raw)), nil
	case schema.StorageUint:
		return stmt.U64Value(uint64(toInt64(raw))), nil
	case schema.StorageBool:
		switch v := raw.(type) {
		case bool:
			return stmt.BoolValue(v), nil
		case int64:
			return stmt.BoolValue(v != 0), nil
		}
		return nil, perr.Newf(perr.KindUnsupported, "sql: cannot decode %T as bool", raw)
	case schema.StorageText, schema.StorageVarChar:
		return stmt.StringValue(toString(raw)), nil
	case schema.StorageBlob:
		b, ok := raw.([]byte)
		if !ok {
			return nil, perr.Newf(perr.KindUnsupported, "sql: cannot decode %T as bytes", raw)
		}
		return stmt.BytesValue(b), nil
	case schema.StorageUuid:
		s := toString(raw)
		if b, ok := raw.([]byte); ok && len(b) == 16 {
			var u uuid.UUID
			copy(u[:], b)
			return stmt.UuidValue(u), nil
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, perr.Newf(perr.KindUnsupported, "sql: cannot decode %q as uuid: %v", s, err)
		}
		return stmt.UuidValue(u), nil
	default:
		return stmt.StringValue(toString(raw)), nil
	}
}

func toInt64(raw any) int64 {
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
