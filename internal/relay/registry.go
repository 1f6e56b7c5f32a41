package relay

import (
	"sync"
	"time"

	"github.com/smartgarage/garage-core/internal/garage"
)

// Logger defines the logging interface used by the relay core.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is one live bidirectional session to a peer.
//
// Implementations must serialise concurrent WriteMessage calls themselves
// (FIFO by call order) and must make Close idempotent and safe to call
// while a write or read is in flight. The gateway's WebSocket wrapper and
// the test fakes both satisfy this.
type Transport interface {
	WriteMessage(data []byte) error
	Close() error
}

// DeviceConn is one live session to a controller, owned by the Registry
// for its whole lifetime. The transport handle is never shared; all
// writes to the device go through this struct.
type DeviceConn struct {
	DeviceID    string
	ConnectedAt time.Time

	transport Transport
}

// WriteMessage writes a single frame to the device.
func (c *DeviceConn) WriteMessage(data []byte) error {
	return c.transport.WriteMessage(data)
}

// close shuts the underlying transport, best-effort.
func (c *DeviceConn) close() {
	_ = c.transport.Close() //nolint:errcheck // Best-effort close of superseded/evicted session
}

// EventSink receives registry lifecycle and state events.
//
// Events are delivered synchronously from the goroutine performing the
// mutation, after the registry lock has been released. Implementations
// must not call back into the registry's mutating methods from the sink.
type EventSink interface {
	DeviceConnected(deviceID string)
	DeviceDisconnected(deviceID string)
	StateChanged(deviceID string, status garage.Status)
}

// noopSink is an EventSink that does nothing.
type noopSink struct{}

func (noopSink) DeviceConnected(string)             {}
func (noopSink) DeviceDisconnected(string)          {}
func (noopSink) StateChanged(string, garage.Status) {}

// Registry is the single source of truth for which devices are online
// and what they last reported.
//
// It does only in-memory bookkeeping: sessions come and go with the
// transport, statuses live until overwritten or process exit. One mutex
// guards both maps; at the scale of tens to low hundreds of connections
// finer-grained locking buys nothing.
//
// All public methods are thread-safe.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*DeviceConn
	statuses map[string]garage.Status

	sink   EventSink
	logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[string]*DeviceConn),
		statuses: make(map[string]garage.Status),
		sink:     noopSink{},
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetSink sets the event sink. Must be called before the first session
// arrives; it is not synchronised against concurrent mutations.
func (r *Registry) SetSink(sink EventSink) {
	if sink == nil {
		sink = noopSink{}
	}
	r.sink = sink
}

// Register stores a new live session for deviceID.
//
// If a session already exists for the id it is superseded: the old
// transport is closed (errors swallowed) and the new one takes its place.
// The close happens outside the lock.
func (r *Registry) Register(deviceID string, t Transport) *DeviceConn {
	conn := &DeviceConn{
		DeviceID:    deviceID,
		ConnectedAt: time.Now().UTC(),
		transport:   t,
	}

	r.mu.Lock()
	old := r.conns[deviceID]
	r.conns[deviceID] = conn
	r.mu.Unlock()

	if old != nil {
		r.logger.Info("device session superseded", "device_id", deviceID)
		old.close()
	}

	r.logger.Info("device connected", "device_id", deviceID)
	r.sink.DeviceConnected(deviceID)
	return conn
}

// Unregister removes the session for deviceID, but only if conn is still
// the stored session. A superseded connection tearing itself down must not
// evict its replacement. Calling it twice, or for an unknown id, is a
// no-op. The disconnected event fires only when a session was actually
// removed.
func (r *Registry) Unregister(deviceID string, conn *DeviceConn) {
	r.mu.Lock()
	current, ok := r.conns[deviceID]
	removed := ok && current == conn
	if removed {
		delete(r.conns, deviceID)
	}
	r.mu.Unlock()

	if !removed {
		return
	}

	r.logger.Info("device disconnected", "device_id", deviceID)
	r.sink.DeviceDisconnected(deviceID)
}

// Connection returns the live session for deviceID, if any.
func (r *Registry) Connection(deviceID string) (*DeviceConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[deviceID]
	return conn, ok
}

// UpdateStatus overwrites the stored status for deviceID unconditionally.
//
// Last write wins by arrival order, not by timestamp comparison: the
// transport delivers at-least-once and a late frame still overwrites.
func (r *Registry) UpdateStatus(deviceID string, status garage.Status) {
	status.DeviceID = deviceID
	if status.ObservedAt.IsZero() {
		status.ObservedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.statuses[deviceID] = status
	r.mu.Unlock()

	r.logger.Debug("device status updated", "device_id", deviceID, "state", status.State)
	r.sink.StateChanged(deviceID, status)
}

// Status returns the last reported status for deviceID. The second return
// is false if the device has never reported, distinct from a device
// explicitly reporting an unknown state.
func (r *Registry) Status(deviceID string) (garage.Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.statuses[deviceID]
	return status, ok
}

// ConnectedIDs returns a snapshot of currently connected device ids.
func (r *Registry) ConnectedIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live device sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll evicts every session and closes its transport. Used on
// shutdown; no disconnected events are emitted.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*DeviceConn, 0, len(r.conns))
	for id, conn := range r.conns {
		conns = append(conns, conn)
		delete(r.conns, id)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}
