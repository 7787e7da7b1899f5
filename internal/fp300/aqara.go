package fp300

import (
	"fmt"

	"fp300-bridge/internal/zcl"
)

// Well-known tags of the Xiaomi/Aqara attribute struct.
var aqaraTags = map[uint8]string{
	1: BatteryVoltageMV,
	3: Temperature,
	5: PowerOutageCount,
}

// ParseAqaraAttributes decodes the Aqara attribute struct carried in 0x00F7
// on the manufacturer cluster and 0xFF01 on Basic.
// Each entry is [tag:uint8][zcl_type:uint8][value]. Known tags get their
// names, the rest are keyed "0xff01-<tag>". A trailing byte too short to
// hold tag and type ends parsing. On a malformed value the entries decoded
// so far are returned along with the error.
func ParseAqaraAttributes(data []byte) (map[string]any, error) {
	result := make(map[string]any)
	pos := 0

	for pos+2 <= len(data) {
		tag := data[pos]
		typeID := data[pos+1]
		pos += 2

		val, consumed, err := zcl.DecodeValue(typeID, data[pos:])
		if err != nil {
			return RemapAttributes(result), fmt.Errorf("tag %d type 0x%02X at offset %d: %w", tag, typeID, pos, err)
		}
		pos += consumed

		key, ok := aqaraTags[tag]
		if !ok {
			key = fmt.Sprintf("0xff01-%d", tag)
		}
		result[key] = val
	}

	return RemapAttributes(result), nil
}

// asBytes accepts the forms an octet or char string attribute can take.
func asBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	}
	return nil, false
}
