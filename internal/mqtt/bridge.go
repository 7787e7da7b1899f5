//go:build !no_homeassistant

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/fp300"
	"fp300-bridge/internal/store"
	"fp300-bridge/internal/zcl"
)

// Bridge exposes coordinator devices to Home Assistant over MQTT.
type Bridge struct {
	client          *Client
	coord           *coordinator.Coordinator
	prefix          string
	discoveryPrefix string
	logger          *slog.Logger
	unsub           func()
	ctx             context.Context
	cancel          context.CancelFunc

	// Per-device state accumulator.
	mu     sync.Mutex
	states map[string]map[string]any // IEEE -> state key -> value
	topics map[string]string         // IEEE -> subscribed command topic
}

// NewBridge creates a bridge on client. Discovery and command subscriptions
// are (re)published on every connect.
func NewBridge(client *Client, coord *coordinator.Coordinator, cfg Config, logger *slog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		client:          client,
		coord:           coord,
		prefix:          cfg.TopicPrefix,
		discoveryPrefix: cfg.DiscoveryPrefix,
		logger:          logger.With("component", "homeassistant"),
		ctx:             ctx,
		cancel:          cancel,
		states:          make(map[string]map[string]any),
		topics:          make(map[string]string),
	}
	client.OnConnect(b.connected)
	return b
}

// Start subscribes to coordinator events.
func (b *Bridge) Start() {
	b.unsub = b.coord.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state and unsubscribes from events.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) connected() {
	b.publishBridgeState("online")

	devices, err := b.coord.Store().ListDevices()
	if err != nil {
		b.logger.Error("list devices", "err", err)
		return
	}
	b.mu.Lock()
	clear(b.topics)
	b.mu.Unlock()
	for _, dev := range devices {
		b.publishDeviceDiscovery(dev)
		b.subscribeDeviceCommands(dev)
	}
}

func (b *Bridge) handleEvent(event coordinator.Event) {
	switch event.Type {
	case coordinator.EventAttributeUpdated:
		if ch, ok := event.Data.(coordinator.AttributeChange); ok {
			b.handleAttributeUpdated(ch)
		}
	case coordinator.EventDeviceUpdated:
		if dev, ok := event.Data.(*store.Device); ok {
			b.publishDeviceDiscovery(dev)
			b.subscribeDeviceCommands(dev)
		}
	case coordinator.EventDeviceRemoved:
		if dev, ok := event.Data.(*store.Device); ok {
			b.handleDeviceRemoved(dev)
		}
	}
}

func (b *Bridge) handleAttributeUpdated(ch coordinator.AttributeChange) {
	dev, err := b.coord.Store().GetDevice(ch.IEEE)
	if err != nil {
		return
	}
	key, value, ok := stateValue(fp300.IsFP300(dev.Model), ch.ClusterID, ch.AttrID, ch.Value)
	if !ok {
		return
	}
	b.updateAndPublishState(dev, key, value)
}

func (b *Bridge) updateAndPublishState(dev *store.Device, key string, value any) {
	b.mu.Lock()
	state, ok := b.states[dev.IEEEAddress]
	if !ok {
		state = make(map[string]any)
		b.states[dev.IEEEAddress] = state
	}
	state[key] = value
	state["last_seen"] = dev.LastSeen.Format(time.RFC3339)
	payload := mustJSON(state)
	b.mu.Unlock()

	b.client.PublishAsync(b.prefix+"/"+deviceTopicName(dev), payload, true)
}

func (b *Bridge) handleDeviceRemoved(dev *store.Device) {
	for _, msg := range buildRemoveDiscovery(dev, b.discoveryPrefix) {
		b.client.PublishAsync(msg.Topic, msg.Payload, true)
	}
	// Clear the retained state.
	b.client.PublishAsync(b.prefix+"/"+deviceTopicName(dev), nil, true)

	b.mu.Lock()
	delete(b.states, dev.IEEEAddress)
	topic := b.topics[dev.IEEEAddress]
	delete(b.topics, dev.IEEEAddress)
	b.mu.Unlock()
	if topic != "" {
		if err := b.client.Unsubscribe(topic); err != nil {
			b.logger.Warn("unsubscribe commands", "ieee", dev.IEEEAddress, "err", err)
		}
	}
}

func (b *Bridge) publishBridgeState(state string) {
	b.client.PublishAsync(b.prefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publishDeviceDiscovery(dev *store.Device) {
	msgs := buildDiscovery(dev, b.prefix, b.discoveryPrefix)
	if len(msgs) == 0 {
		return
	}
	for _, msg := range msgs {
		b.client.PublishAsync(msg.Topic, msg.Payload, true)
	}
	b.logger.Info("published HA discovery", "ieee", dev.IEEEAddress, "name", dev.DisplayName(), "entities", len(msgs))
}

// subscribeDeviceCommands subscribes the device's /set topic, replacing a
// previous subscription when the friendly name changed.
func (b *Bridge) subscribeDeviceCommands(dev *store.Device) {
	topic := b.prefix + "/" + deviceTopicName(dev) + "/set"
	ieee := dev.IEEEAddress

	b.mu.Lock()
	prev := b.topics[ieee]
	if prev == topic {
		b.mu.Unlock()
		return
	}
	b.topics[ieee] = topic
	b.mu.Unlock()

	if prev != "" {
		if err := b.client.Unsubscribe(prev); err != nil {
			b.logger.Warn("unsubscribe commands", "topic", prev, "err", err)
		}
	}
	err := b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if err := b.handleCommand(ieee, msg.Payload()); err != nil {
			b.logger.Warn("command failed", "ieee", ieee, "err", err)
		}
	})
	if err != nil {
		b.logger.Error("subscribe commands", "ieee", ieee, "err", err)
	}
}

type writeTarget struct {
	endpoint uint8
	cluster  uint16
}

// handleCommand turns a /set payload such as
// {"detection_range_2_3m":"OFF","motion_sensitivity":"high"} into writes.
// Keys on the same cluster are written together.
func (b *Bridge) handleCommand(ieee string, payload []byte) error {
	dev, err := b.coord.Store().GetDevice(ieee)
	if err != nil {
		return err
	}
	if !fp300.IsFP300(dev.Model) {
		return fmt.Errorf("model %q has no writable entities", dev.Model)
	}

	var cmd map[string]any
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("invalid command JSON: %w", err)
	}

	writes := make(map[writeTarget]map[string]any)
	var order []writeTarget
	keys := make([]string, 0, len(cmd))
	for k := range cmd {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		e, ok := fp300.FindEntity(key)
		if !ok || !e.Writable() {
			b.logger.Warn("ignoring command key", "ieee", ieee, "key", key)
			continue
		}
		raw, err := e.Raw(b.commandValue(ieee, e, cmd[key]))
		if err != nil {
			return err
		}
		target := writeTarget{e.Endpoint, e.ClusterID}
		if writes[target] == nil {
			writes[target] = make(map[string]any)
			order = append(order, target)
		}
		writes[target][zcl.AttrKey(e.AttrID)] = raw
	}

	ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
	defer cancel()
	for _, target := range order {
		if err := b.coord.WriteAttributes(ctx, ieee, target.endpoint, target.cluster, writes[target]); err != nil {
			return err
		}
	}
	return nil
}

// commandValue maps switch payloads ON, OFF and TOGGLE onto bools.
func (b *Bridge) commandValue(ieee string, e fp300.Entity, v any) any {
	s, ok := v.(string)
	if !ok || e.Kind != fp300.KindSwitch {
		return v
	}
	switch strings.ToUpper(s) {
	case "ON":
		return true
	case "OFF":
		return false
	case "TOGGLE":
		b.mu.Lock()
		cur := b.states[ieee][e.Key]
		b.mu.Unlock()
		return cur != "ON"
	}
	return v
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
