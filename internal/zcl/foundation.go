package zcl

import "fmt"

// AttrKey formats an attribute id the way unknown attributes are named in
// caches and logs.
func AttrKey(id uint16) string {
	return fmt.Sprintf("0x%04X", id)
}

// AttributeReport is one attribute value received from a device, either
// from a report or a read response.
type AttributeReport struct {
	IEEE      string
	Endpoint  uint8
	ClusterID uint16
	AttrID    uint16
	DataType  uint8
	Value     any // already decoded with DecodeValue
}

// AttributeUpdate is a single cache mutation. Updates produced from one
// report are applied in slice order.
type AttributeUpdate struct {
	ClusterID uint16
	AttrID    uint16
	Value     any
}

// WriteRecord is a single attribute write, value already ZCL-encoded.
type WriteRecord struct {
	AttrID   uint16 `json:"attribute"`
	DataType uint8  `json:"type"`
	Value    []byte `json:"-"`
}

// WriteRequest is a Write Attributes command for one cluster on one endpoint.
type WriteRequest struct {
	IEEE             string
	Endpoint         uint8
	ClusterID        uint16
	ManufacturerCode uint16 // 0 for standard attributes
	Records          []WriteRecord
}
