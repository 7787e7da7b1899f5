package mqtt

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"fp300-bridge/internal/zcl"
)

// reportMsg is published by the radio side on <raw_prefix>/<ieee>/<ep>/report.
type reportMsg struct {
	Cluster   uint16 `json:"cluster"`
	Attribute uint16 `json:"attribute"`
	Type      uint8  `json:"type"`
	Data      string `json:"data"` // hex of the ZCL value
}

type writeRecordMsg struct {
	Attribute uint16 `json:"attribute"`
	Type      uint8  `json:"type"`
	Data      string `json:"data"`
}

// writeMsg is published on <raw_prefix>/<ieee>/<ep>/write.
type writeMsg struct {
	Cluster          uint16           `json:"cluster"`
	ManufacturerCode uint16           `json:"manufacturer_code,omitempty"`
	Records          []writeRecordMsg `json:"records"`
}

// Transport tunnels ZCL attribute traffic over MQTT. It implements
// coordinator.Transport.
type Transport struct {
	client *Client
	prefix string
	logger *slog.Logger

	mu      sync.RWMutex
	handler func(zcl.AttributeReport)
}

// NewTransport creates a transport on client. The report subscription is
// made on every connect.
func NewTransport(client *Client, rawPrefix string, logger *slog.Logger) *Transport {
	t := &Transport{
		client: client,
		prefix: strings.TrimSuffix(rawPrefix, "/"),
		logger: logger.With("component", "mqtt-transport"),
	}
	client.OnConnect(t.subscribe)
	return t
}

func (t *Transport) reportTopic() string {
	return t.prefix + "/+/+/report"
}

func (t *Transport) subscribe() {
	if err := t.client.Subscribe(t.reportTopic(), 1, t.handleMessage); err != nil {
		t.logger.Error("subscribe reports", "err", err)
		return
	}
	t.logger.Info("subscribed to reports", "topic", t.reportTopic())
}

// OnAttributeReport sets the handler for decoded reports.
func (t *Transport) OnAttributeReport(handler func(zcl.AttributeReport)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *Transport) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	r, err := t.parseReport(msg.Topic(), msg.Payload())
	if err != nil {
		t.logger.Warn("bad report", "topic", msg.Topic(), "err", err)
		return
	}

	t.mu.RLock()
	h := t.handler
	t.mu.RUnlock()
	if h != nil {
		h(r)
	}
}

// parseReport decodes one report message. The topic carries ieee and
// endpoint; the payload carries the attribute and its ZCL encoded value.
func (t *Transport) parseReport(topic string, payload []byte) (zcl.AttributeReport, error) {
	var r zcl.AttributeReport

	rest, ok := strings.CutPrefix(topic, t.prefix+"/")
	if !ok {
		return r, fmt.Errorf("topic outside %s", t.prefix)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "report" {
		return r, fmt.Errorf("want <ieee>/<ep>/report, got %q", rest)
	}
	ep, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return r, fmt.Errorf("parse endpoint: %w", err)
	}

	var m reportMsg
	if err := json.Unmarshal(payload, &m); err != nil {
		return r, fmt.Errorf("parse payload: %w", err)
	}
	data, err := hex.DecodeString(m.Data)
	if err != nil {
		return r, fmt.Errorf("parse data: %w", err)
	}
	value, _, err := zcl.DecodeValue(m.Type, data)
	if err != nil {
		return r, err
	}

	return zcl.AttributeReport{
		IEEE:      parts[0],
		Endpoint:  uint8(ep),
		ClusterID: m.Cluster,
		AttrID:    m.Attribute,
		DataType:  m.Type,
		Value:     value,
	}, nil
}

// WriteAttributes publishes a write request at QoS 1 and waits for the
// broker to accept it.
func (t *Transport) WriteAttributes(ctx context.Context, req zcl.WriteRequest) error {
	m := writeMsg{
		Cluster:          req.ClusterID,
		ManufacturerCode: req.ManufacturerCode,
		Records:          make([]writeRecordMsg, len(req.Records)),
	}
	for i, rec := range req.Records {
		m.Records[i] = writeRecordMsg{
			Attribute: rec.AttrID,
			Type:      rec.DataType,
			Data:      hex.EncodeToString(rec.Value),
		}
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal write: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/%d/write", t.prefix, req.IEEE, req.Endpoint)
	if err := t.client.Publish(ctx, topic, 1, false, payload); err != nil {
		return err
	}
	t.logger.Debug("write published", "topic", topic, "cluster", fmt.Sprintf("0x%04X", req.ClusterID), "records", len(req.Records))
	return nil
}

// Close drops the report subscription. The shared client stays connected.
func (t *Transport) Close() error {
	return t.client.Unsubscribe(t.reportTopic())
}
