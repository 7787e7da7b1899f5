package fp300

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func allBands(on bool) [BandCount]bool {
	var b [BandCount]bool
	for i := range b {
		b[i] = on
	}
	return b
}

func TestDecodeShortInputDefaults(t *testing.T) {
	want := DefaultDetectionRange()
	for _, raw := range [][]byte{nil, {}, {0x00}, {0x00, 0x03, 0xFF, 0xFF}} {
		if got := Decode(raw); got != want {
			t.Errorf("Decode(%X) = %+v, want %+v", raw, got, want)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		prefix uint16
		bands  [BandCount]bool
	}{
		{"all enabled", "0003ffffff", 0x0300, allBands(true)},
		{"only nearest", "00030f0000", 0x0300, [BandCount]bool{true, false, false, false, false, false}},
		{"all disabled", "0003000000", 0x0300, allBands(false)},
		{"single bit counts", "0100100000", 0x0001, [BandCount]bool{false, true, false, false, false, false}},
		{"farthest only", "0003000080", 0x0300, [BandCount]bool{false, false, false, false, false, true}},
		{"trailing bytes ignored", "0003f0ff00aabb", 0x0300, [BandCount]bool{false, true, true, true, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(mustHex(t, tt.raw))
			if got.Prefix != tt.prefix {
				t.Errorf("prefix = 0x%04X, want 0x%04X", got.Prefix, tt.prefix)
			}
			if got.Bands != tt.bands {
				t.Errorf("bands = %v, want %v", got.Bands, tt.bands)
			}
		})
	}
}

func TestEncodeDefaults(t *testing.T) {
	got := Encode(DefaultPrefix, allBands(true))
	if want := mustHex(t, "0003ffffff"); !bytes.Equal(got, want) {
		t.Errorf("Encode = %X, want %X", got, want)
	}
	if got := DefaultDetectionRange().Encode(); !bytes.Equal(got, mustHex(t, "0003ffffff")) {
		t.Errorf("default Encode = %X", got)
	}
}

func TestEncodeLength(t *testing.T) {
	for _, prefix := range []uint16{0, 0x0300, 0xFFFF} {
		if got := Encode(prefix, allBands(false)); len(got) != RawLength {
			t.Errorf("Encode(0x%04X) length = %d, want %d", prefix, len(got), RawLength)
		}
	}
}

func TestRoundTripAllCombinations(t *testing.T) {
	for combo := 0; combo < 1<<BandCount; combo++ {
		var bands [BandCount]bool
		for i := range bands {
			bands[i] = combo&(1<<i) != 0
		}
		raw := Encode(0x0300, bands)
		got := Decode(raw)
		if got.Prefix != 0x0300 || got.Bands != bands {
			t.Fatalf("combo %06b: Decode(Encode) = %+v from %X", combo, got, raw)
		}
	}
}

func TestDecodeIdempotent(t *testing.T) {
	// Partial nibbles are lossy once, then stable.
	raw := mustHex(t, "2a00214365")
	first := Decode(raw)
	again := Decode(first.Encode())
	if again != first {
		t.Errorf("Decode(Encode(Decode(x))) = %+v, want %+v", again, first)
	}
	if first.Prefix != 0x002A {
		t.Errorf("prefix = 0x%04X, want 0x002A", first.Prefix)
	}
	if m := first.Mask(); m != 0xFFFFFF {
		t.Errorf("mask = 0x%06X, want 0xFFFFFF", m)
	}
}

func TestFromAttributes(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[uint16]any
		want  string
	}{
		{"empty uses defaults", nil, "0003ffffff"},
		{"one band off", map[uint16]any{Bands[2].AttrID: false}, "0003fff0ff"},
		{"non-numeric prefix", map[uint16]any{AttrPrefix: "abc"}, "0003ffffff"},
		{"wide prefix truncated", map[uint16]any{AttrPrefix: 0x12345}, "4523ffffff"},
		{"prefix from json float", map[uint16]any{AttrPrefix: float64(1)}, "0100ffffff"},
		{"numeric band flags", map[uint16]any{Bands[0].AttrID: uint8(0), Bands[5].AttrID: uint8(1)}, "0003f0ffff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeAttributes(tt.attrs)
			if want := mustHex(t, tt.want); !bytes.Equal(got, want) {
				t.Errorf("EncodeAttributes = %X, want %X", got, want)
			}
		})
	}
}

func TestPartialUpdateFromFullCache(t *testing.T) {
	cache := map[uint16]any{AttrPrefix: uint16(0x0300)}
	for _, b := range Bands {
		cache[b.AttrID] = true
	}
	cache[Bands[BandByName("range_2_3m")].AttrID] = false

	d := FromAttributes(cache)
	if m := d.Mask(); m != 0xFFF0FF {
		t.Errorf("mask = 0x%06X, want 0xFFF0FF", m)
	}
	if got, want := d.Encode(), mustHex(t, "0003fff0ff"); !bytes.Equal(got, want) {
		t.Errorf("Encode = %X, want %X", got, want)
	}
}

func TestUpdatesOrder(t *testing.T) {
	ups := Decode(mustHex(t, "00030f0000")).Updates()
	if len(ups) != BandCount+1 {
		t.Fatalf("updates = %d, want %d", len(ups), BandCount+1)
	}
	if ups[0].AttrID != AttrPrefix || ups[0].Value != uint16(0x0300) {
		t.Errorf("first update = %+v, want prefix", ups[0])
	}
	for i, b := range Bands {
		u := ups[i+1]
		if u.ClusterID != DetectionRangeClusterID || u.AttrID != b.AttrID {
			t.Errorf("update %d = %+v, want %s", i+1, u, b.Name)
		}
		if u.Value != (i == 0) {
			t.Errorf("%s = %v", b.Name, u.Value)
		}
	}
}

func TestBandByName(t *testing.T) {
	if BandByName("range_5_6m") != 5 {
		t.Error("range_5_6m not at index 5")
	}
	if BandByName("range_6_7m") != -1 {
		t.Error("unknown band found")
	}
}
