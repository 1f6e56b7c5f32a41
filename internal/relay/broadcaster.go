package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/smartgarage/garage-core/internal/garage"
)

// Notifier delivers one-line admin notices. Delivery is best-effort;
// errors are logged by the broadcaster and never propagated.
type Notifier interface {
	Notify(text string) error
}

// StatePublisher mirrors status reports to an external bus (MQTT) so
// integrations without a live observer session can follow device state.
type StatePublisher interface {
	PublishState(deviceID string, payload []byte) error
}

// Telemetry records sensor readings to a time-series store. Writes are
// expected to be non-blocking and fire-and-forget.
type Telemetry interface {
	WriteClimate(deviceID string, temperature, humidity float64)
	WriteDoorState(deviceID, state string)
}

// Broadcaster fans device state changes out to all subscribed observers
// and raises admin notices on session churn.
//
// The core correctness property: a broadcast is all-attempted and
// partial-failure tolerant. One observer's dead socket removes that
// observer, never blocks the others, and never raises an error to the
// event source.
type Broadcaster struct {
	mu        sync.Mutex
	observers map[Transport]struct{}

	notifier  Notifier
	publisher StatePublisher
	telemetry Telemetry
	logger    Logger
}

// NewBroadcaster creates a broadcaster with no observers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		observers: make(map[Transport]struct{}),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the broadcaster.
func (b *Broadcaster) SetLogger(logger Logger) {
	b.logger = logger
}

// SetNotifier sets the admin notifier. Nil disables notices.
func (b *Broadcaster) SetNotifier(n Notifier) {
	b.notifier = n
}

// SetStatePublisher sets the external state mirror. Nil disables it.
func (b *Broadcaster) SetStatePublisher(p StatePublisher) {
	b.publisher = p
}

// SetTelemetry sets the telemetry sink. Nil disables it.
func (b *Broadcaster) SetTelemetry(t Telemetry) {
	b.telemetry = t
}

// Subscribe adds an observer to the broadcast set.
func (b *Broadcaster) Subscribe(obs Transport) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	count := len(b.observers)
	b.mu.Unlock()
	b.logger.Debug("observer subscribed", "observers", count)
}

// Unsubscribe removes an observer. Unknown observers are a no-op.
func (b *Broadcaster) Unsubscribe(obs Transport) {
	b.mu.Lock()
	delete(b.observers, obs)
	count := len(b.observers)
	b.mu.Unlock()
	b.logger.Debug("observer unsubscribed", "observers", count)
}

// ObserverCount returns the number of subscribed observers.
func (b *Broadcaster) ObserverCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// CloseAll unsubscribes and closes every observer. Used on shutdown.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	observers := make([]Transport, 0, len(b.observers))
	for obs := range b.observers {
		observers = append(observers, obs)
		delete(b.observers, obs)
	}
	b.mu.Unlock()

	for _, obs := range observers {
		_ = obs.Close() //nolint:errcheck // Best-effort close on shutdown
	}
}

// DeviceConnected implements EventSink.
func (b *Broadcaster) DeviceConnected(deviceID string) {
	b.notify(fmt.Sprintf("garage %s connected", deviceID))
}

// DeviceDisconnected implements EventSink.
func (b *Broadcaster) DeviceDisconnected(deviceID string) {
	b.notify(fmt.Sprintf("garage %s disconnected", deviceID))
}

// StateChanged implements EventSink. It serialises the new state once and
// attempts delivery to every current observer; failed observers are
// removed and closed after the sweep.
func (b *Broadcaster) StateChanged(deviceID string, status garage.Status) {
	frame, err := json.Marshal(StateUpdateMessage{
		Type:      MsgTypeStateUpdate,
		DeviceID:  deviceID,
		State:     status.State,
		Timestamp: status.ObservedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		b.logger.Error("failed to marshal state update", "device_id", deviceID, "error", err)
		return
	}

	// Snapshot under lock, write outside it.
	b.mu.Lock()
	observers := make([]Transport, 0, len(b.observers))
	for obs := range b.observers {
		observers = append(observers, obs)
	}
	b.mu.Unlock()

	var dead []Transport
	for _, obs := range observers {
		if writeErr := obs.WriteMessage(frame); writeErr != nil {
			dead = append(dead, obs)
		}
	}

	for _, obs := range dead {
		b.Unsubscribe(obs)
		_ = obs.Close() //nolint:errcheck // Observer already failed a write
	}
	if len(dead) > 0 {
		b.logger.Debug("dropped dead observers", "count", len(dead))
	}

	b.mirror(deviceID, status, frame)
}

// mirror pushes the state change to the optional external sinks.
// Both are best-effort; neither failure reaches the event source.
func (b *Broadcaster) mirror(deviceID string, status garage.Status, frame []byte) {
	if b.publisher != nil {
		if err := b.publisher.PublishState(deviceID, frame); err != nil {
			b.logger.Warn("state mirror publish failed", "device_id", deviceID, "error", err)
		}
	}

	if b.telemetry != nil {
		b.telemetry.WriteDoorState(deviceID, string(status.State))
		if status.Temperature != nil && status.Humidity != nil {
			b.telemetry.WriteClimate(deviceID, *status.Temperature, *status.Humidity)
		}
	}
}

// notify delivers an admin notice, swallowing notifier errors.
func (b *Broadcaster) notify(text string) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(text); err != nil {
		b.logger.Warn("admin notification failed", "error", err)
	}
}
