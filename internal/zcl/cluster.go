package zcl

// Access flags
const (
	AccessRead   uint8 = 0x01
	AccessWrite  uint8 = 0x02
	AccessReport uint8 = 0x04
)

// AttributeDef defines a ZCL attribute.
type AttributeDef struct {
	ID     uint16 `json:"id"`
	Name   string `json:"name"`
	Type   uint8  `json:"type"`
	Access uint8  `json:"access"` // bitmask: 1=read, 2=write, 4=reportable

	// ManufacturerSpecific attributes are written with the cluster's
	// manufacturer code in the ZCL header.
	ManufacturerSpecific bool `json:"manufacturer_specific,omitempty"`
}

// IsWritable returns true if the attribute can be written.
func (a *AttributeDef) IsWritable() bool {
	return a.Access&AccessWrite != 0
}

// IsReportable returns true if the attribute supports reporting.
func (a *AttributeDef) IsReportable() bool {
	return a.Access&AccessReport != 0
}

// ClusterDef defines a ZCL cluster and its attributes.
type ClusterDef struct {
	ID               uint16         `json:"id"`
	Name             string         `json:"name"`
	ManufacturerCode uint16         `json:"manufacturer_code,omitempty"`
	Local            bool           `json:"local,omitempty"` // exists only in this process, never on the device
	Attributes       []AttributeDef `json:"attributes,omitempty"`
}

// FindAttribute looks up an attribute by ID.
func (c *ClusterDef) FindAttribute(id uint16) *AttributeDef {
	for i := range c.Attributes {
		if c.Attributes[i].ID == id {
			return &c.Attributes[i]
		}
	}
	return nil
}

// FindAttributeByName looks up an attribute by its name.
func (c *ClusterDef) FindAttributeByName(name string) *AttributeDef {
	for i := range c.Attributes {
		if c.Attributes[i].Name == name {
			return &c.Attributes[i]
		}
	}
	return nil
}

// AttributeName returns the attribute's name, or its hex id when unknown.
func (c *ClusterDef) AttributeName(id uint16) string {
	if a := c.FindAttribute(id); a != nil {
		return a.Name
	}
	return AttrKey(id)
}

// DeepCopy returns a deep copy of the cluster definition.
func (c *ClusterDef) DeepCopy() *ClusterDef {
	cp := *c
	if c.Attributes != nil {
		cp.Attributes = make([]AttributeDef, len(c.Attributes))
		copy(cp.Attributes, c.Attributes)
	}
	return &cp
}

// Merge adds attributes from another definition that are not yet present.
func (c *ClusterDef) Merge(other *ClusterDef) {
	for _, attr := range other.Attributes {
		if c.FindAttribute(attr.ID) == nil {
			c.Attributes = append(c.Attributes, attr)
		}
	}
	if c.ManufacturerCode == 0 {
		c.ManufacturerCode = other.ManufacturerCode
	}
}
