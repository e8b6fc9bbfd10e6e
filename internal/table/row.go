package table

import (
	"fmt"
	"strconv"
)

// Row is one result row keyed by column name, as returned by the driver.
type Row map[string]any

// Int64 returns the value as int64; NULL and non-numeric values are 0.
func (r Row) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// String returns the value as text; NULL is "".
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Empty reports whether the value is absent: NULL, zero or the empty string.
func (r Row) Empty(key string) bool {
	switch v := r[key].(type) {
	case nil:
		return true
	case string:
		return v == "" || v == "0"
	case bool:
		return !v
	default:
		return r.Int64(key) == 0
	}
}
