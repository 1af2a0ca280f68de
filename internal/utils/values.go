package utils

import (
	"database/sql"
	"time"
)

// NormalizeValue maps driver-specific scan values onto JSON-friendly Go
// types. Drivers disagree on how they hand back text and numbers
// ([]byte vs string, int32 vs int64), so result rows are normalized
// before serialization.
func NormalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case sql.RawBytes:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return x
	}
}

// NormalizeRow normalizes every value of a scanned row in place.
func NormalizeRow(row []interface{}) []interface{} {
	for i, v := range row {
		row[i] = NormalizeValue(v)
	}
	return row
}

// RowToMap pairs a normalized row with its column names.
func RowToMap(columns []string, row []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		if i < len(row) {
			m[col] = row[i]
		}
	}
	return m
}
