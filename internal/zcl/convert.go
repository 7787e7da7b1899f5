package zcl

import "math"

// Coercions from the loosely typed values that arrive from JSON payloads,
// the attribute cache and DecodeValue. Each returns false when the value
// cannot be represented without losing its sign or meaning.

// AsBool accepts bool and any numeric type (non-zero is true).
func AsBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if f, ok := AsFloat64(v); ok {
		return f != 0, true
	}
	return false, false
}

// AsUint64 accepts non-negative integers and floats.
func AsUint64(v any) (uint64, bool) {
	switch val := v.(type) {
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case uint:
		return uint64(val), true
	case float32:
		return AsUint64(float64(val))
	case float64:
		if val < 0 || val > math.MaxUint64 {
			return 0, false
		}
		return uint64(val), true
	}
	if i, ok := AsInt64(v); ok && i >= 0 {
		return uint64(i), true
	}
	return 0, false
}

// AsInt64 accepts any integer that fits int64 and in-range floats.
func AsInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case int:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float32:
		return AsInt64(float64(val))
	case float64:
		if val > math.MaxInt64 || val < math.MinInt64 {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}

// AsFloat64 accepts any numeric type.
func AsFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case uint64:
		return float64(val), true
	}
	if i, ok := AsInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
