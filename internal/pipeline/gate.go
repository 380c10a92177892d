package pipeline

import (
	"context"

	"go.uber.org/zap"

	"fleetmedic/internal/severity"
)

// ForwardRequest carries one record's output to the next stage in the
// chain.
type ForwardRequest struct {
	AnomalyDetails string `json:"anomaly_details"`
	DeviceID       string `json:"device_id"`
	SchemaType     string `json:"schema_type"`
	Severity       string `json:"severity"`
	SourceContext  string `json:"source_context"`
}

// Forwarder hands a record's output to the downstream stage. Delivery is
// fire-and-forget: implementations must not block record completion on the
// downstream stage's own processing.
type Forwarder interface {
	Forward(ctx context.Context, req ForwardRequest)
}

// Gate applies the forwarding policy: MEDIUM, HIGH and CRITICAL go
// downstream, LOW and unclassified are terminal at this stage.
type Gate struct {
	forwarder Forwarder
	logger    *zap.Logger
}

// NewGate builds a gate. A nil forwarder makes the gate a no-op, for the
// final stage of the chain.
func NewGate(forwarder Forwarder, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{forwarder: forwarder, logger: logger}
}

// Dispatch forwards the request when the severity requires it. Returns
// whether a forward was issued.
func (g *Gate) Dispatch(ctx context.Context, level severity.Level, classified bool, req ForwardRequest) bool {
	if g.forwarder == nil || !classified || !level.RequiresForwarding() {
		return false
	}
	req.Severity = level.String()
	g.forwarder.Forward(ctx, req)
	g.logger.Info("forwarded to next stage",
		zap.String("device_id", req.DeviceID),
		zap.String("severity", req.Severity))
	return true
}
