package fp300

import (
	"encoding/binary"

	"fp300-bridge/internal/zcl"
)

// Layout of the detection_range_raw (0x019A) buffer:
//
//	[0:2] prefix, uint16 little-endian
//	[2:5] mask, uint24 little-endian
//
// Each 1 m band owns one nibble of the mask, nearest band in the lowest nibble.
const (
	RawLength = 5

	DefaultPrefix uint16 = 0x0300
	DefaultMask   uint32 = 0xFFFFFF

	BandCount = 6
	bandWidth = 4
	bandBits  = 1<<bandWidth - 1
	mask24    = 1<<24 - 1
)

// Band is one distance segment of the detection range.
type Band struct {
	Name   string // attribute name on the detection range cluster
	AttrID uint16
	Offset uint // bit offset of the nibble in the mask
}

// Bands in ascending distance.
var Bands = [BandCount]Band{
	{Name: "range_0_1m", AttrID: 0x0001, Offset: 0},
	{Name: "range_1_2m", AttrID: 0x0002, Offset: 4},
	{Name: "range_2_3m", AttrID: 0x0003, Offset: 8},
	{Name: "range_3_4m", AttrID: 0x0004, Offset: 12},
	{Name: "range_4_5m", AttrID: 0x0005, Offset: 16},
	{Name: "range_5_6m", AttrID: 0x0006, Offset: 20},
}

// BandByName returns the index of a band, or -1.
func BandByName(name string) int {
	for i, b := range Bands {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// DetectionRange is the decoded form of the raw buffer.
type DetectionRange struct {
	Prefix uint16
	Bands  [BandCount]bool
}

// DefaultDetectionRange is what a device reports before it has been
// configured: default prefix, every band enabled.
func DefaultDetectionRange() DetectionRange {
	return DetectionRange{
		Prefix: DefaultPrefix,
		Bands:  [BandCount]bool{true, true, true, true, true, true},
	}
}

// Decode parses a raw buffer. Buffers shorter than RawLength, nil included,
// decode to the defaults. Bytes past RawLength are ignored. A band is enabled
// when any bit of its nibble is set.
func Decode(raw []byte) DetectionRange {
	prefix, mask := DefaultPrefix, DefaultMask
	if len(raw) >= RawLength {
		prefix = binary.LittleEndian.Uint16(raw[0:2])
		mask = zcl.Uint24(raw[2:5]) & mask24
	}

	d := DetectionRange{Prefix: prefix}
	for i, b := range Bands {
		d.Bands[i] = (mask>>b.Offset)&bandBits != 0
	}
	return d
}

// Mask returns the 24-bit mask with a full nibble set for every enabled band.
func (d DetectionRange) Mask() uint32 {
	var mask uint32
	for i, b := range Bands {
		if d.Bands[i] {
			mask |= bandBits << b.Offset
		}
	}
	return mask
}

// Encode returns the RawLength byte wire buffer.
func (d DetectionRange) Encode() []byte {
	return Encode(d.Prefix, d.Bands)
}

// Encode builds the raw buffer from a prefix and six band flags.
func Encode(prefix uint16, bands [BandCount]bool) []byte {
	d := DetectionRange{Prefix: prefix, Bands: bands}
	out := make([]byte, RawLength)
	binary.LittleEndian.PutUint16(out[0:2], d.Prefix)
	zcl.PutUint24(out[2:5], d.Mask())
	return out
}

// FromAttributes builds a DetectionRange from detection range cluster
// attribute values keyed by attribute id. A missing band counts as enabled.
// A missing or non-numeric prefix falls back to DefaultPrefix, and numeric
// prefixes are truncated to 16 bits.
func FromAttributes(attrs map[uint16]any) DetectionRange {
	d := DetectionRange{Prefix: DefaultPrefix}
	if v, ok := attrs[AttrPrefix]; ok {
		if p, ok := prefixValue(v); ok {
			d.Prefix = p
		}
	}
	for i, b := range Bands {
		d.Bands[i] = true
		if v, ok := attrs[b.AttrID]; ok {
			if on, ok := zcl.AsBool(v); ok {
				d.Bands[i] = on
			}
		}
	}
	return d
}

// EncodeAttributes is FromAttributes followed by Encode.
func EncodeAttributes(attrs map[uint16]any) []byte {
	return FromAttributes(attrs).Encode()
}

func prefixValue(v any) (uint16, bool) {
	if i, ok := zcl.AsInt64(v); ok {
		return uint16(i), true
	}
	if u, ok := zcl.AsUint64(v); ok {
		return uint16(u), true
	}
	return 0, false
}

// Updates returns the cache mutations for the detection range cluster:
// prefix first, then each band in ascending distance.
func (d DetectionRange) Updates() []zcl.AttributeUpdate {
	out := make([]zcl.AttributeUpdate, 0, BandCount+1)
	out = append(out, zcl.AttributeUpdate{ClusterID: DetectionRangeClusterID, AttrID: AttrPrefix, Value: d.Prefix})
	for i, b := range Bands {
		out = append(out, zcl.AttributeUpdate{ClusterID: DetectionRangeClusterID, AttrID: b.AttrID, Value: d.Bands[i]})
	}
	return out
}
