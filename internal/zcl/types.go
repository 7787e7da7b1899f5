package zcl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ZCL data type IDs understood by the tunnel and the Aqara TLV struct.
const (
	TypeNoData     uint8 = 0x00
	TypeBool       uint8 = 0x10
	TypeBitmap8    uint8 = 0x18
	TypeBitmap16   uint8 = 0x19
	TypeBitmap24   uint8 = 0x1A
	TypeBitmap32   uint8 = 0x1B
	TypeUint8      uint8 = 0x20
	TypeUint16     uint8 = 0x21
	TypeUint24     uint8 = 0x22
	TypeUint32     uint8 = 0x23
	TypeUint40     uint8 = 0x24
	TypeUint48     uint8 = 0x25
	TypeInt8       uint8 = 0x28
	TypeInt16      uint8 = 0x29
	TypeInt24      uint8 = 0x2A
	TypeInt32      uint8 = 0x2B
	TypeEnum8      uint8 = 0x30
	TypeEnum16     uint8 = 0x31
	TypeFloat32    uint8 = 0x39
	TypeFloat64    uint8 = 0x3A
	TypeOctetStr   uint8 = 0x41
	TypeCharStr    uint8 = 0x42
	TypeOctetStr16 uint8 = 0x43
	TypeCharStr16  uint8 = 0x44
)

type kind uint8

const (
	kindNone kind = iota
	kindBool
	kindUnsigned
	kindSigned
	kindFloat
	kindOctets
	kindChars
)

type typeInfo struct {
	name string
	kind kind
	size int // fixed payload size, or length-prefix width for string kinds
}

var types = map[uint8]typeInfo{
	TypeNoData:     {"nodata", kindNone, 0},
	TypeBool:       {"bool", kindBool, 1},
	TypeBitmap8:    {"map8", kindUnsigned, 1},
	TypeBitmap16:   {"map16", kindUnsigned, 2},
	TypeBitmap24:   {"map24", kindUnsigned, 3},
	TypeBitmap32:   {"map32", kindUnsigned, 4},
	TypeUint8:      {"uint8", kindUnsigned, 1},
	TypeUint16:     {"uint16", kindUnsigned, 2},
	TypeUint24:     {"uint24", kindUnsigned, 3},
	TypeUint32:     {"uint32", kindUnsigned, 4},
	TypeUint40:     {"uint40", kindUnsigned, 5},
	TypeUint48:     {"uint48", kindUnsigned, 6},
	TypeInt8:       {"int8", kindSigned, 1},
	TypeInt16:      {"int16", kindSigned, 2},
	TypeInt24:      {"int24", kindSigned, 3},
	TypeInt32:      {"int32", kindSigned, 4},
	TypeEnum8:      {"enum8", kindUnsigned, 1},
	TypeEnum16:     {"enum16", kindUnsigned, 2},
	TypeFloat32:    {"float32", kindFloat, 4},
	TypeFloat64:    {"float64", kindFloat, 8},
	TypeOctetStr:   {"octstr", kindOctets, 1},
	TypeCharStr:    {"string", kindChars, 1},
	TypeOctetStr16: {"octstr16", kindOctets, 2},
	TypeCharStr16:  {"string16", kindChars, 2},
}

// TypeSize returns the fixed size in bytes of a ZCL type, or -1 for
// length-prefixed and unknown types.
func TypeSize(typeID uint8) int {
	ti, ok := types[typeID]
	if !ok || ti.kind == kindOctets || ti.kind == kindChars {
		return -1
	}
	return ti.size
}

// TypeName returns a human-readable name for a ZCL type.
func TypeName(typeID uint8) string {
	if ti, ok := types[typeID]; ok {
		return ti.name
	}
	return fmt.Sprintf("0x%02X", typeID)
}

// DecodeValue decodes a ZCL typed value from raw bytes, returning the Go value and bytes consumed.
//
// Unsigned values up to 16 bits come back as uint8/uint16, 24 and 32 bit as
// uint32, wider as uint64. Signed values follow the same scheme with int types.
// Octet strings are returned as a fresh []byte, char strings as string.
func DecodeValue(typeID uint8, data []byte) (any, int, error) {
	ti, ok := types[typeID]
	if !ok {
		return nil, 0, fmt.Errorf("zcl: unsupported type 0x%02X", typeID)
	}

	switch ti.kind {
	case kindNone:
		return nil, 0, nil
	case kindOctets, kindChars:
		return decodeString(ti, data)
	}

	if len(data) < ti.size {
		return nil, 0, fmt.Errorf("zcl: not enough data for type 0x%02X: need %d, have %d", typeID, ti.size, len(data))
	}
	raw := uintLE(data, ti.size)

	switch ti.kind {
	case kindBool:
		return raw != 0, 1, nil
	case kindUnsigned:
		switch ti.size {
		case 1:
			return uint8(raw), 1, nil
		case 2:
			return uint16(raw), 2, nil
		case 3, 4:
			return uint32(raw), ti.size, nil
		default:
			return raw, ti.size, nil
		}
	case kindSigned:
		shift := 64 - 8*ti.size
		v := int64(raw<<shift) >> shift // sign extend
		switch ti.size {
		case 1:
			return int8(v), 1, nil
		case 2:
			return int16(v), 2, nil
		default:
			return int32(v), ti.size, nil
		}
	case kindFloat:
		if ti.size == 4 {
			return math.Float32frombits(uint32(raw)), 4, nil
		}
		return math.Float64frombits(raw), 8, nil
	}
	return nil, 0, fmt.Errorf("zcl: unsupported type 0x%02X", typeID)
}

func decodeString(ti typeInfo, data []byte) (any, int, error) {
	if len(data) < ti.size {
		return nil, 0, fmt.Errorf("zcl: no length prefix for %s", ti.name)
	}
	length := int(uintLE(data, ti.size))
	invalid := 0xFF
	if ti.size == 2 {
		invalid = 0xFFFF
	}
	if length == invalid {
		return nil, ti.size, nil
	}
	end := ti.size + length
	if len(data) < end {
		return nil, 0, fmt.Errorf("zcl: %s truncated: need %d, have %d", ti.name, length, len(data)-ti.size)
	}
	if ti.kind == kindChars {
		return string(data[ti.size:end]), end, nil
	}
	b := make([]byte, length)
	copy(b, data[ti.size:end])
	return b, end, nil
}

// EncodeValue encodes a Go value into ZCL wire format.
func EncodeValue(typeID uint8, val any) ([]byte, error) {
	ti, ok := types[typeID]
	if !ok || ti.kind == kindNone {
		return nil, fmt.Errorf("zcl: encode not implemented for type 0x%02X", typeID)
	}

	switch ti.kind {
	case kindBool:
		v, ok := AsBool(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to bool", val)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case kindUnsigned:
		v, ok := AsUint64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, ti.name)
		}
		limit := uint64(1)<<(8*ti.size) - 1
		if v > limit {
			return nil, fmt.Errorf("zcl: value %d overflows %s (max %d)", v, ti.name, limit)
		}
		return putUintLE(v, ti.size), nil

	case kindSigned:
		v, ok := AsInt64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, ti.name)
		}
		lo, hi := -int64(1)<<(8*ti.size-1), int64(1)<<(8*ti.size-1)-1
		if v < lo || v > hi {
			return nil, fmt.Errorf("zcl: value %d overflows %s (range %d..%d)", v, ti.name, lo, hi)
		}
		return putUintLE(uint64(v), ti.size), nil

	case kindFloat:
		v, ok := AsFloat64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, ti.name)
		}
		if ti.size == 4 {
			buf := make([]byte, 4)
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
			return buf, nil
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		return buf, nil
	}

	var payload []byte
	switch v := val.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, ti.name)
	}
	limit := 254
	if ti.size == 2 {
		limit = 65534
	}
	if len(payload) > limit {
		return nil, fmt.Errorf("zcl: data too long for %s: %d (max %d)", ti.name, len(payload), limit)
	}
	buf := putUintLE(uint64(len(payload)), ti.size)
	return append(buf, payload...), nil
}
