package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartgarage/garage-core/internal/garage"
)

// Relay delivers commands to live device sessions.
//
// Delivery is at-most-once and unconfirmed: Send writes exactly one frame
// and returns. There is no queuing, no retry, and no wait for an
// acknowledgement; the device confirms out-of-band by pushing a status
// report after it acts, which reaches callers via the Broadcaster. Treat
// confirmation latency as unbounded.
type Relay struct {
	registry *Registry
	logger   Logger
}

// NewRelay creates a command relay over the given registry.
func NewRelay(registry *Registry) *Relay {
	return &Relay{
		registry: registry,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
}

// Send relays a single command frame to the device's live session.
//
// Returns ErrNotConnected if the device has no session, or an error
// wrapping ErrTransport if the write fails, in which case the caller
// must not assume the command was or was not received.
//
// Concurrent Sends to the same device are delivered independently, in
// the order their writes are issued on the transport; the relay adds no
// ordering of its own beyond the transport's FIFO guarantee.
func (r *Relay) Send(ctx context.Context, deviceID string, action garage.Action) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("relay send: %w", err)
	}

	conn, ok := r.registry.Connection(deviceID)
	if !ok {
		return ErrNotConnected
	}

	frame, err := json.Marshal(CommandMessage{
		Type:      MsgTypeCommand,
		Action:    action,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	if err := conn.WriteMessage(frame); err != nil {
		r.logger.Warn("command write failed", "device_id", deviceID, "action", action, "error", err)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	r.logger.Info("command relayed", "device_id", deviceID, "action", action)
	return nil
}
