package coordinator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"fp300-bridge/internal/store"
	"fp300-bridge/internal/zcl"
	"fp300-bridge/internal/zcl/clusters"
)

var (
	ErrUnknownEndpoint  = errors.New("unknown endpoint")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrReadOnly         = errors.New("attribute is read-only")
	ErrInvalidValue     = errors.New("invalid value")
)

// ParseIEEE parses "DD:DD:DD:DD:DD:DD:DD:DD", "0xDDDDDDDDDDDDDDDD" or
// "DDDDDDDDDDDDDDDD" into [8]byte.
func ParseIEEE(s string) ([8]byte, error) {
	var result [8]byte
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.ReplaceAll(s, ":", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return result, fmt.Errorf("parse ieee address: %w", err)
	}
	if len(b) != 8 {
		return result, fmt.Errorf("ieee address must be 8 bytes, got %d", len(b))
	}
	copy(result[:], b)
	return result, nil
}

// NormalizeIEEE returns the canonical form used as store key: 16 upper-case
// hex digits.
func NormalizeIEEE(s string) (string, error) {
	b, err := ParseIEEE(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016X", b), nil
}

type endpointKey struct {
	ieee string
	ep   uint8
}

// Coordinator owns the endpoint arena and routes attribute traffic between
// the transport, the cache and the store.
type Coordinator struct {
	transport Transport
	store     store.Store
	registry  *zcl.Registry
	quirks    *QuirkDB
	events    *EventBus
	logger    *slog.Logger

	mu        sync.Mutex
	endpoints map[endpointKey]*Endpoint
}

// New creates a Coordinator and subscribes it to the transport's reports.
func New(tr Transport, st store.Store, registry *zcl.Registry, quirks *QuirkDB, events *EventBus, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		transport: tr,
		store:     st,
		registry:  registry,
		quirks:    quirks,
		events:    events,
		logger:    logger.With("component", "coordinator"),
		endpoints: make(map[endpointKey]*Endpoint),
	}
	tr.OnAttributeReport(c.HandleReport)
	return c
}

// Store returns the store.
func (c *Coordinator) Store() store.Store {
	return c.store
}

// Registry returns the ZCL registry.
func (c *Coordinator) Registry() *zcl.Registry {
	return c.registry
}

// Events returns the event bus.
func (c *Coordinator) Events() *EventBus {
	return c.events
}

// Endpoint returns the endpoint for ieee/ep, creating it on first use.
func (c *Coordinator) Endpoint(ieee string, ep uint8) *Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := endpointKey{ieee, ep}
	e := c.endpoints[key]
	if e == nil {
		e = newEndpoint(c, ieee, ep)
		c.endpoints[key] = e
	}
	return e
}

// LookupEndpoint returns an endpoint of a known device. The endpoint must be
// listed on the device record or have been seen in a report.
func (c *Coordinator) LookupEndpoint(ieee string, ep uint8) (*Endpoint, error) {
	norm, err := NormalizeIEEE(ieee)
	if err != nil {
		return nil, err
	}
	dev, err := c.store.GetDevice(norm)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	e := c.endpoints[endpointKey{norm, ep}]
	c.mu.Unlock()
	if e != nil {
		return e, nil
	}
	if !dev.HasEndpoint(ep) {
		return nil, fmt.Errorf("%s/%d: %w", norm, ep, ErrUnknownEndpoint)
	}
	e = c.Endpoint(norm, ep)
	e.bindQuirk(c.quirks.Lookup(dev.Manufacturer, dev.Model))
	return e, nil
}

// SeedDevice stores a statically configured device. Fields left empty keep
// the values of an existing record.
func (c *Coordinator) SeedDevice(dev store.Device) error {
	norm, err := NormalizeIEEE(dev.IEEEAddress)
	if err != nil {
		return err
	}
	dev.IEEEAddress = norm

	err = c.store.UpdateDevice(norm, func(existing *store.Device) error {
		if dev.Manufacturer != "" {
			existing.Manufacturer = dev.Manufacturer
		}
		if dev.Model != "" {
			existing.Model = dev.Model
		}
		if dev.FriendlyName != "" {
			existing.FriendlyName = dev.FriendlyName
		}
		for _, ep := range dev.Endpoints {
			if !existing.HasEndpoint(ep) {
				existing.Endpoints = append(existing.Endpoints, ep)
			}
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		err = c.store.SaveDevice(&dev)
	}
	if err != nil {
		return fmt.Errorf("seed device %s: %w", norm, err)
	}

	stored, err := c.store.GetDevice(norm)
	if err != nil {
		return fmt.Errorf("seed device %s: %w", norm, err)
	}
	q := c.quirks.Lookup(stored.Manufacturer, stored.Model)
	for _, ep := range dev.Endpoints {
		c.Endpoint(norm, ep).bindQuirk(q)
	}
	c.logger.Info("device seeded", "ieee", norm, "model", dev.Model, "quirk", q != nil)
	return nil
}

// RenameDevice sets a device's friendly name.
func (c *Coordinator) RenameDevice(ieee, name string) (*store.Device, error) {
	norm, err := NormalizeIEEE(ieee)
	if err != nil {
		return nil, err
	}
	var updated store.Device
	err = c.store.UpdateDevice(norm, func(dev *store.Device) error {
		dev.FriendlyName = name
		updated = *dev
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rename device %s: %w", norm, err)
	}
	c.events.Emit(Event{Type: EventDeviceUpdated, Data: &updated})
	return &updated, nil
}

// RemoveDevice deletes a device record and drops its endpoints and cached
// values.
func (c *Coordinator) RemoveDevice(ieee string) error {
	norm, err := NormalizeIEEE(ieee)
	if err != nil {
		return err
	}
	dev, err := c.store.GetDevice(norm)
	if err != nil {
		return err
	}
	if err := c.store.DeleteDevice(norm); err != nil {
		return fmt.Errorf("remove device %s: %w", norm, err)
	}

	c.mu.Lock()
	for key := range c.endpoints {
		if key.ieee == norm {
			delete(c.endpoints, key)
		}
	}
	c.mu.Unlock()

	c.logger.Info("device removed", "ieee", norm)
	c.events.Emit(Event{Type: EventDeviceRemoved, Data: dev})
	return nil
}

// HandleReport processes one inbound attribute value.
func (c *Coordinator) HandleReport(r zcl.AttributeReport) {
	ieee, err := NormalizeIEEE(r.IEEE)
	if err != nil {
		c.logger.Warn("report with bad ieee", "ieee", r.IEEE, "err", err)
		return
	}

	dev, changed := c.touchDevice(ieee, r)
	ep := c.Endpoint(ieee, r.Endpoint)
	if dev != nil {
		ep.bindQuirk(c.quirks.Lookup(dev.Manufacturer, dev.Model))
	}
	if changed && dev != nil {
		c.events.Emit(Event{Type: EventDeviceUpdated, Data: dev})
	}

	c.logger.Debug("attribute report",
		"ieee", ieee,
		"ep", r.Endpoint,
		"cluster", fmt.Sprintf("0x%04X", r.ClusterID),
		"attr", c.attrName(r.ClusterID, r.AttrID),
		"value", r.Value,
	)
	ep.ApplyReport(r.ClusterID, r.AttrID, r.Value)
}

// touchDevice updates last-seen, the endpoint list and, for Basic identity
// attributes, manufacturer and model. It reports whether anything other than
// last-seen changed.
func (c *Coordinator) touchDevice(ieee string, r zcl.AttributeReport) (*store.Device, bool) {
	now := time.Now()
	changed := false
	apply := func(dev *store.Device) error {
		dev.LastSeen = now
		if !dev.HasEndpoint(r.Endpoint) {
			dev.Endpoints = append(dev.Endpoints, r.Endpoint)
			changed = true
		}
		if r.ClusterID == clusters.BasicID {
			s, ok := r.Value.(string)
			switch {
			case !ok:
			case r.AttrID == clusters.BasicManufacturer && dev.Manufacturer != s:
				dev.Manufacturer = s
				changed = true
			case r.AttrID == clusters.BasicModel && dev.Model != s:
				dev.Model = s
				changed = true
			}
		}
		return nil
	}

	var dev store.Device
	err := c.store.UpdateDevice(ieee, func(d *store.Device) error {
		err := apply(d)
		dev = *d
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		dev = store.Device{IEEEAddress: ieee, FirstSeen: now}
		apply(&dev)
		changed = true
		err = c.store.SaveDevice(&dev)
		if err == nil {
			c.logger.Info("new device", "ieee", ieee, "ep", r.Endpoint)
		}
	}
	if err != nil {
		c.logger.Error("save device last_seen", "err", err, "ieee", ieee)
		return nil, false
	}
	return &dev, changed
}

// WriteAttribute writes one attribute by name.
func (c *Coordinator) WriteAttribute(ctx context.Context, ieee string, ep uint8, clusterID uint16, name string, value any) error {
	return c.WriteAttributes(ctx, ieee, ep, clusterID, map[string]any{name: value})
}

// WriteAttributes writes several attributes of one cluster in a single
// write. Names resolve through the registry; "0x019A" style ids are accepted
// too. Values are range-checked against the attribute's ZCL type.
func (c *Coordinator) WriteAttributes(ctx context.Context, ieee string, ep uint8, clusterID uint16, values map[string]any) error {
	def := c.registry.Get(clusterID)
	if def == nil {
		return fmt.Errorf("cluster 0x%04X: %w", clusterID, ErrUnknownAttribute)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	updates := make([]zcl.AttributeUpdate, 0, len(names))
	for _, name := range names {
		attr := findAttribute(def, name)
		if attr == nil {
			return fmt.Errorf("%s on cluster 0x%04X: %w", name, clusterID, ErrUnknownAttribute)
		}
		if !attr.IsWritable() {
			return fmt.Errorf("%s: %w", attr.Name, ErrReadOnly)
		}
		v, err := coerce(attr.Type, values[name])
		if err != nil {
			return fmt.Errorf("%s: %w: %w", attr.Name, ErrInvalidValue, err)
		}
		updates = append(updates, zcl.AttributeUpdate{ClusterID: clusterID, AttrID: attr.ID, Value: v})
	}

	e, err := c.LookupEndpoint(ieee, ep)
	if err != nil {
		return err
	}
	if err := e.Write(ctx, clusterID, updates); err != nil {
		c.logger.Error("write failed", "ieee", e.IEEE, "ep", ep, "cluster", fmt.Sprintf("0x%04X", clusterID), "err", err)
		return err
	}
	return nil
}

func findAttribute(def *zcl.ClusterDef, name string) *zcl.AttributeDef {
	if a := def.FindAttributeByName(name); a != nil {
		return a
	}
	if strings.HasPrefix(name, "0x") || strings.HasPrefix(name, "0X") {
		if id, err := strconv.ParseUint(name[2:], 16, 16); err == nil {
			return def.FindAttribute(uint16(id))
		}
	}
	return nil
}

// coerce converts a loosely typed value to the Go type DecodeValue yields for
// typeID, so written and reported values look the same in the cache.
func coerce(typeID uint8, value any) (any, error) {
	if b, ok := value.(bool); ok && typeID != zcl.TypeBool {
		if b {
			value = 1
		} else {
			value = 0
		}
	}
	enc, err := zcl.EncodeValue(typeID, value)
	if err != nil {
		return nil, err
	}
	v, _, err := zcl.DecodeValue(typeID, enc)
	return v, err
}

// buildRequests groups updates per cluster into encoded Write Attributes
// requests, preserving first-seen cluster order.
func (c *Coordinator) buildRequests(ep *Endpoint, updates []zcl.AttributeUpdate) ([]zcl.WriteRequest, error) {
	var reqs []zcl.WriteRequest
	index := make(map[uint16]int)
	for _, u := range updates {
		def := c.registry.Get(u.ClusterID)
		if def == nil {
			return nil, fmt.Errorf("cluster 0x%04X: %w", u.ClusterID, ErrUnknownAttribute)
		}
		attr := def.FindAttribute(u.AttrID)
		if attr == nil {
			return nil, fmt.Errorf("0x%04X/0x%04X: %w", u.ClusterID, u.AttrID, ErrUnknownAttribute)
		}
		data, err := zcl.EncodeValue(attr.Type, u.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", attr.Name, err)
		}

		i, ok := index[u.ClusterID]
		if !ok {
			i = len(reqs)
			index[u.ClusterID] = i
			reqs = append(reqs, zcl.WriteRequest{IEEE: ep.IEEE, Endpoint: ep.ID, ClusterID: u.ClusterID})
		}
		if attr.ManufacturerSpecific {
			reqs[i].ManufacturerCode = def.ManufacturerCode
		}
		reqs[i].Records = append(reqs[i].Records, zcl.WriteRecord{AttrID: attr.ID, DataType: attr.Type, Value: data})
	}
	return reqs, nil
}

func (c *Coordinator) readable(clusterID, attrID uint16) bool {
	a, ok := c.registry.Attribute(clusterID, attrID)
	return !ok || a.Access&zcl.AccessRead != 0
}

func (c *Coordinator) attrName(clusterID, attrID uint16) string {
	if a, ok := c.registry.Attribute(clusterID, attrID); ok {
		return a.Name
	}
	return zcl.AttrKey(attrID)
}

func (c *Coordinator) describe(ep *Endpoint, u zcl.AttributeUpdate) AttributeChange {
	ch := AttributeChange{
		IEEE:        ep.IEEE,
		Endpoint:    ep.ID,
		ClusterID:   u.ClusterID,
		ClusterName: zcl.AttrKey(u.ClusterID),
		AttrID:      u.AttrID,
		Name:        zcl.AttrKey(u.AttrID),
		Value:       u.Value,
	}
	if def := c.registry.Get(u.ClusterID); def != nil {
		ch.ClusterName = def.Name
		ch.Name = def.AttributeName(u.AttrID)
	}
	return ch
}

// NamedSnapshot returns an endpoint's cache keyed by cluster and attribute
// names. Byte values are rendered as hex.
func (c *Coordinator) NamedSnapshot(ep *Endpoint) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for cid, attrs := range ep.Snapshot() {
		def := c.registry.Get(cid)
		cname := zcl.AttrKey(cid)
		if def != nil {
			cname = def.Name
		}
		m := make(map[string]any, len(attrs))
		for id, v := range attrs {
			name := zcl.AttrKey(id)
			if def != nil {
				name = def.AttributeName(id)
			}
			if b, ok := v.([]byte); ok {
				v = fmt.Sprintf("%X", b)
			}
			m[name] = v
		}
		out[cname] = m
	}
	return out
}

// Close shuts down the transport.
func (c *Coordinator) Close() error {
	return c.transport.Close()
}
