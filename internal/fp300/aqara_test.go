package fp300

import (
	"reflect"
	"testing"
)

var heartbeat = []byte{
	0x01, 0x21, 0xB8, 0x0B, // tag 1: 3000 mV
	0x03, 0x28, 0x19, // tag 3: 25 °C
	0x05, 0x21, 0x02, 0x00, // tag 5: power outages
	0x17, 0x21, 0x1C, 0x0C, // tag 23: 3100 mV
	0x18, 0x20, 0x50, // tag 24: 80 %
	0x64, 0x10, 0x01, // tag 100: bool
}

func TestParseAqaraAttributes(t *testing.T) {
	got, err := ParseAqaraAttributes(heartbeat)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		BatteryVoltageMV:           uint16(3100),
		BatteryPercentageRemaining: uint8(80),
		Temperature:                int8(25),
		PowerOutageCount:           uint16(2),
		"0xff01-100":               true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseAqaraAttributes = %v, want %v", got, want)
	}
}

func TestParseAqaraAttributesTruncated(t *testing.T) {
	// A lone trailing tag byte is ignored.
	got, err := ParseAqaraAttributes(append([]byte{0x03, 0x28, 0x19}, 0x05))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[Temperature] != int8(25) {
		t.Errorf("got %v", got)
	}

	// A value cut short is an error, earlier entries survive.
	got, err = ParseAqaraAttributes([]byte{0x03, 0x28, 0x19, 0x17, 0x21, 0x1C})
	if err == nil {
		t.Fatal("expected error")
	}
	if got[Temperature] != int8(25) {
		t.Errorf("partial result = %v", got)
	}
}

func TestParseAqaraAttributesEmpty(t *testing.T) {
	got, err := ParseAqaraAttributes(nil)
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}
