package zcl

import (
	"bytes"
	"testing"
)

func TestDecodeFixedWidth(t *testing.T) {
	tests := []struct {
		name     string
		typeID   uint8
		data     []byte
		want     any
		consumed int
	}{
		{"bool true", TypeBool, []byte{0x01}, true, 1},
		{"bool false", TypeBool, []byte{0x00}, false, 1},
		{"uint8", TypeUint8, []byte{0x42}, uint8(0x42), 1},
		{"enum8", TypeEnum8, []byte{0x03}, uint8(3), 1},
		{"uint16", TypeUint16, []byte{0x34, 0x12}, uint16(0x1234), 2},
		{"uint24", TypeUint24, []byte{0x56, 0x34, 0x12}, uint32(0x123456), 3},
		{"map24", TypeBitmap24, []byte{0xFF, 0xFF, 0xFF}, uint32(0xFFFFFF), 3},
		{"uint32", TypeUint32, []byte{0x78, 0x56, 0x34, 0x12}, uint32(0x12345678), 4},
		{"uint40", TypeUint40, []byte{0x02, 0x00, 0x00, 0x00, 0x00}, uint64(2), 5},
		{"uint48", TypeUint48, []byte{1, 2, 3, 4, 5, 6}, uint64(0x060504030201), 6},
		{"int8", TypeInt8, []byte{0x80}, int8(-128), 1},
		{"int16", TypeInt16, []byte{0x9C, 0xFF}, int16(-100), 2},
		{"int24 negative", TypeInt24, []byte{0xFF, 0xFF, 0xFF}, int32(-1), 3},
		{"int24 positive", TypeInt24, []byte{0x64, 0x00, 0x00}, int32(100), 3},
		{"int32", TypeInt32, []byte{0xFE, 0xFF, 0xFF, 0xFF}, int32(-2), 4},
		{"float32", TypeFloat32, []byte{0x00, 0x00, 0xC0, 0x3F}, float32(1.5), 4},
		{"trailing bytes ignored", TypeUint8, []byte{0x07, 0xAA}, uint8(7), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := DecodeValue(tt.typeID, tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.consumed {
				t.Errorf("consumed %d, want %d", n, tt.consumed)
			}
			if got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestDecodeStrings(t *testing.T) {
	val, n, err := DecodeValue(TypeCharStr, []byte{5, 'l', 'u', 'm', 'i', '.'})
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 || val.(string) != "lumi." {
		t.Errorf("char string = %q (%d bytes), want %q (6)", val, n, "lumi.")
	}

	raw := []byte{0x05, 0x00, 0x03, 0xFF, 0xFF, 0xFF}
	val, n, err = DecodeValue(TypeOctetStr, raw)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 || !bytes.Equal(val.([]byte), raw[1:]) {
		t.Errorf("octet string = %X (%d bytes), want %X (6)", val, n, raw[1:])
	}
	// The decoded slice must not alias the input.
	raw[1] = 0xAA
	if val.([]byte)[0] != 0x00 {
		t.Error("decoded octet string aliases input buffer")
	}

	val, n, err = DecodeValue(TypeCharStr16, []byte{0x02, 0x00, 'o', 'k'})
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || val.(string) != "ok" {
		t.Errorf("char string16 = %q (%d bytes)", val, n)
	}
}

func TestDecodeStringInvalidMarker(t *testing.T) {
	val, n, err := DecodeValue(TypeCharStr, []byte{0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if val != nil || n != 1 {
		t.Errorf("got %v, %d; want nil, 1", val, n)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		typeID uint8
		data   []byte
	}{
		{"not enough data", TypeUint32, []byte{0x01}},
		{"string truncated", TypeOctetStr, []byte{0x05, 0x00}},
		{"no length byte", TypeCharStr, nil},
		{"unknown type", 0xFE, []byte{0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeValue(tt.typeID, tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeNoData(t *testing.T) {
	val, n, err := DecodeValue(TypeNoData, []byte{0x01})
	if err != nil || val != nil || n != 0 {
		t.Errorf("got %v, %d, %v", val, n, err)
	}
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name   string
		typeID uint8
		val    any
		want   []byte
	}{
		{"bool", TypeBool, true, []byte{0x01}},
		{"bool from json number", TypeBool, float64(0), []byte{0x00}},
		{"uint8", TypeUint8, uint8(0x42), []byte{0x42}},
		{"enum8 from int", TypeEnum8, 2, []byte{0x02}},
		{"uint16", TypeUint16, 0x1234, []byte{0x34, 0x12}},
		{"uint24", TypeUint24, uint64(0x123456), []byte{0x56, 0x34, 0x12}},
		{"uint32 from float", TypeUint32, float64(60000), []byte{0x60, 0xEA, 0x00, 0x00}},
		{"int8", TypeInt8, -128, []byte{0x80}},
		{"int24", TypeInt24, int64(-1), []byte{0xFF, 0xFF, 0xFF}},
		{"float32", TypeFloat32, 1.5, []byte{0x00, 0x00, 0xC0, 0x3F}},
		{"char string", TypeCharStr, "Hi", []byte{0x02, 'H', 'i'}},
		{"octet string", TypeOctetStr, []byte{0x00, 0x03, 0xFF, 0xFF, 0xFF}, []byte{0x05, 0x00, 0x03, 0xFF, 0xFF, 0xFF}},
		{"octet string16", TypeOctetStr16, []byte{0xAB}, []byte{0x01, 0x00, 0xAB}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeValue(tt.typeID, tt.val)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoded %X, want %X", got, tt.want)
			}
		})
	}
}

func TestEncodeValueErrors(t *testing.T) {
	tests := []struct {
		name   string
		typeID uint8
		val    any
	}{
		{"uint8 overflow", TypeUint8, 256},
		{"uint8 negative", TypeUint8, -1},
		{"uint16 negative float", TypeUint16, float64(-1)},
		{"uint24 overflow", TypeUint24, uint64(0x1000000)},
		{"int8 overflow", TypeInt8, 128},
		{"int24 underflow", TypeInt24, int64(-8388609)},
		{"bool from string", TypeBool, "yes"},
		{"octet string from int", TypeOctetStr, 5},
		{"string too long", TypeCharStr, string(make([]byte, 255))},
		{"no data", TypeNoData, nil},
		{"unknown type", 0xFE, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeValue(tt.typeID, tt.val); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, typeID := range []uint8{TypeUint8, TypeUint16, TypeUint24, TypeUint32, TypeUint40, TypeUint48} {
		size := TypeSize(typeID)
		limit := uint64(1)<<(8*size) - 1
		enc, err := EncodeValue(typeID, limit)
		if err != nil {
			t.Fatalf("%s: %v", TypeName(typeID), err)
		}
		got, n, err := DecodeValue(typeID, enc)
		if err != nil {
			t.Fatalf("%s: %v", TypeName(typeID), err)
		}
		v, _ := AsUint64(got)
		if n != size || v != limit {
			t.Errorf("%s: round trip = %d (%d bytes), want %d (%d)", TypeName(typeID), v, n, limit, size)
		}
	}
}

func TestTypeSizeAndName(t *testing.T) {
	if TypeSize(TypeUint24) != 3 {
		t.Errorf("TypeSize(uint24) = %d", TypeSize(TypeUint24))
	}
	if TypeSize(TypeOctetStr) != -1 {
		t.Errorf("TypeSize(octstr) = %d, want -1", TypeSize(TypeOctetStr))
	}
	if TypeSize(0xFE) != -1 {
		t.Errorf("TypeSize(unknown) = %d, want -1", TypeSize(0xFE))
	}
	if TypeName(TypeOctetStr) != "octstr" {
		t.Errorf("TypeName(octstr) = %q", TypeName(TypeOctetStr))
	}
	if TypeName(0xFE) != "0xFE" {
		t.Errorf("TypeName(unknown) = %q", TypeName(0xFE))
	}
}

func TestUint24(t *testing.T) {
	b := make([]byte, 4)
	PutUint24(b, 0xABCDEF12)
	if !bytes.Equal(b, []byte{0x12, 0xEF, 0xCD, 0x00}) {
		t.Errorf("PutUint24 = %X", b)
	}
	if got := Uint24([]byte{0x0F, 0x00, 0x00, 0xFF}); got != 0x00000F {
		t.Errorf("Uint24 = 0x%06X, want 0x00000F", got)
	}
}

func TestCoercions(t *testing.T) {
	if _, ok := AsUint64(-1); ok {
		t.Error("AsUint64(-1) accepted")
	}
	if _, ok := AsUint64(float64(-0.5)); ok {
		t.Error("AsUint64(-0.5) accepted")
	}
	if v, ok := AsUint64(uint16(768)); !ok || v != 768 {
		t.Errorf("AsUint64(uint16) = %d, %v", v, ok)
	}
	if v, ok := AsInt64(float64(-3)); !ok || v != -3 {
		t.Errorf("AsInt64(-3.0) = %d, %v", v, ok)
	}
	if _, ok := AsInt64(uint64(1 << 63)); ok {
		t.Error("AsInt64(1<<63) accepted")
	}
	if b, ok := AsBool(uint8(2)); !ok || !b {
		t.Errorf("AsBool(2) = %v, %v", b, ok)
	}
	if _, ok := AsBool("true"); ok {
		t.Error("AsBool(string) accepted")
	}
	if f, ok := AsFloat64(int32(-7)); !ok || f != -7 {
		t.Errorf("AsFloat64(int32) = %v, %v", f, ok)
	}
}
