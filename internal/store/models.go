package store

import "time"

// Device is a known sensor. Attribute values are not part of the record;
// they live in the coordinator's in-memory cache.
type Device struct {
	IEEEAddress  string    `json:"ieee_address"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Model        string    `json:"model,omitempty"`
	FriendlyName string    `json:"friendly_name,omitempty"`
	Endpoints    []uint8   `json:"endpoints,omitempty"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// HasEndpoint reports whether ep is in the endpoint list.
func (d *Device) HasEndpoint(ep uint8) bool {
	for _, e := range d.Endpoints {
		if e == ep {
			return true
		}
	}
	return false
}

// DisplayName returns the friendly name, falling back to the IEEE address.
func (d *Device) DisplayName() string {
	if d.FriendlyName != "" {
		return d.FriendlyName
	}
	return d.IEEEAddress
}
