package coordinator

import (
	"context"
	"fmt"
	"sync"

	"fp300-bridge/internal/zcl"
)

// Endpoint is one endpoint of a device together with its attribute cache.
//
// cacheMu guards the cache and the bound quirk. writeMu serializes writes
// and is held from reading the cache through the transport send, so two
// writes that each rebuild a packed attribute from the full cache cannot
// interleave and drop one another's change. Reports only take cacheMu and
// keep landing while a write is in flight.
type Endpoint struct {
	IEEE string
	ID   uint8

	coord *Coordinator

	cacheMu sync.RWMutex
	cache   map[uint16]map[uint16]any
	quirk   Quirk

	writeMu sync.Mutex
}

func newEndpoint(c *Coordinator, ieee string, id uint8) *Endpoint {
	return &Endpoint{
		IEEE:  ieee,
		ID:    id,
		coord: c,
		cache: make(map[uint16]map[uint16]any),
	}
}

// Quirk returns the bound quirk, or nil.
func (ep *Endpoint) Quirk() Quirk {
	ep.cacheMu.RLock()
	defer ep.cacheMu.RUnlock()
	return ep.quirk
}

func (ep *Endpoint) bindQuirk(q Quirk) {
	ep.cacheMu.Lock()
	defer ep.cacheMu.Unlock()
	ep.quirk = q
}

// Get returns one cached value.
func (ep *Endpoint) Get(clusterID, attrID uint16) (any, bool) {
	ep.cacheMu.RLock()
	defer ep.cacheMu.RUnlock()
	v, ok := ep.cache[clusterID][attrID]
	return v, ok
}

// ClusterSnapshot returns a copy of the cached attributes of one cluster.
func (ep *Endpoint) ClusterSnapshot(clusterID uint16) map[uint16]any {
	ep.cacheMu.RLock()
	defer ep.cacheMu.RUnlock()
	out := make(map[uint16]any, len(ep.cache[clusterID]))
	for id, v := range ep.cache[clusterID] {
		out[id] = v
	}
	return out
}

// Snapshot returns a copy of the whole cache.
func (ep *Endpoint) Snapshot() map[uint16]map[uint16]any {
	ep.cacheMu.RLock()
	defer ep.cacheMu.RUnlock()
	out := make(map[uint16]map[uint16]any, len(ep.cache))
	for cid, attrs := range ep.cache {
		m := make(map[uint16]any, len(attrs))
		for id, v := range attrs {
			m[id] = v
		}
		out[cid] = m
	}
	return out
}

// ApplyReport routes a received value through the bound quirk and applies
// the result to the cache as one ordered update.
func (ep *Endpoint) ApplyReport(clusterID, attrID uint16, value any) []zcl.AttributeUpdate {
	var updates []zcl.AttributeUpdate
	if q := ep.Quirk(); q != nil {
		updates = q.TranslateReport(clusterID, attrID, value)
	} else {
		updates = []zcl.AttributeUpdate{{ClusterID: clusterID, AttrID: attrID, Value: value}}
	}
	ep.apply(updates)
	return updates
}

// apply stores updates in slice order and emits one attribute_updated per
// update, in the same order, after the cache lock is released.
func (ep *Endpoint) apply(updates []zcl.AttributeUpdate) {
	if len(updates) == 0 {
		return
	}
	ep.cacheMu.Lock()
	for _, u := range updates {
		attrs := ep.cache[u.ClusterID]
		if attrs == nil {
			attrs = make(map[uint16]any)
			ep.cache[u.ClusterID] = attrs
		}
		attrs[u.AttrID] = u.Value
	}
	ep.cacheMu.Unlock()

	for _, u := range updates {
		ep.coord.Events().Emit(Event{Type: EventAttributeUpdated, Data: ep.coord.describe(ep, u)})
	}
}

// Write applies a write on one cluster. values carry attribute values already
// coerced to their ZCL types.
//
// With a quirk bound, the quirk decides which updates land in the local cache
// immediately and which go to the device. Readable attributes sent to the
// device are cached once the transport accepts them.
func (ep *Endpoint) Write(ctx context.Context, clusterID uint16, values []zcl.AttributeUpdate) error {
	ep.writeMu.Lock()
	defer ep.writeMu.Unlock()

	var local []zcl.AttributeUpdate
	remote := values
	if q := ep.Quirk(); q != nil {
		local, remote = q.TranslateWrite(clusterID, values, ep.ClusterSnapshot(clusterID))
	} else if def := ep.coord.registry.Get(clusterID); def != nil && def.Local {
		return fmt.Errorf("write local cluster 0x%04X without quirk: %w", clusterID, ErrUnknownAttribute)
	}

	ep.apply(local)

	reqs, err := ep.coord.buildRequests(ep, remote)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		if err := ep.coord.transport.WriteAttributes(ctx, req); err != nil {
			return fmt.Errorf("write attributes 0x%04X on %s/%d: %w", req.ClusterID, ep.IEEE, ep.ID, err)
		}
		ids := make([]uint16, len(req.Records))
		for i, r := range req.Records {
			ids[i] = r.AttrID
		}
		ep.coord.Events().Emit(Event{Type: EventWriteSent, Data: WriteSent{
			IEEE: ep.IEEE, Endpoint: ep.ID, ClusterID: req.ClusterID, Attributes: ids,
		}})

		for _, u := range remote {
			if u.ClusterID == req.ClusterID && ep.coord.readable(u.ClusterID, u.AttrID) {
				ep.ApplyReport(u.ClusterID, u.AttrID, u.Value)
			}
		}
	}
	return nil
}
