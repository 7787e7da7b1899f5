package coordinator

import (
	"context"

	"fp300-bridge/internal/zcl"
)

// Transport carries ZCL attribute traffic between the bridge and devices.
type Transport interface {
	// WriteAttributes sends a Write Attributes command and returns once the
	// transport has accepted it.
	WriteAttributes(ctx context.Context, req zcl.WriteRequest) error

	// OnAttributeReport registers the handler for inbound attribute values.
	// It must be called before the transport starts delivering.
	OnAttributeReport(handler func(zcl.AttributeReport))

	Close() error
}
