package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartgarage/garage-core/internal/garage"
)

// failingNotifier always errors, to prove notifier failures are swallowed.
type failingNotifier struct {
	calls int
}

func (n *failingNotifier) Notify(string) error {
	n.calls++
	return errors.New("telegram unreachable")
}

// recordingNotifier captures notice texts.
type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Notify(text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func TestBroadcasterPartialFailure(t *testing.T) {
	b := NewBroadcaster()

	alive1 := &fakeTransport{}
	dead := &fakeTransport{writeErr: errors.New("use of closed network connection")}
	alive2 := &fakeTransport{}

	b.Subscribe(alive1)
	b.Subscribe(dead)
	b.Subscribe(alive2)

	b.StateChanged("esp32-a", garage.Status{
		State:      garage.StateOpening,
		ObservedAt: time.Now().UTC(),
	})

	if alive1.frameCount() != 1 || alive2.frameCount() != 1 {
		t.Error("healthy observers should each receive the broadcast")
	}
	if !dead.isClosed() {
		t.Error("failed observer should be closed")
	}
	if b.ObserverCount() != 2 {
		t.Errorf("ObserverCount() = %d, want 2 after dropping the dead one", b.ObserverCount())
	}

	// The next broadcast must not attempt the removed observer again.
	b.StateChanged("esp32-a", garage.Status{State: garage.StateOpen, ObservedAt: time.Now().UTC()})
	if alive1.frameCount() != 2 {
		t.Errorf("frames = %d, want 2", alive1.frameCount())
	}
}

func TestBroadcasterStateUpdateFrame(t *testing.T) {
	b := NewBroadcaster()
	obs := &fakeTransport{}
	b.Subscribe(obs)

	observed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	b.StateChanged("esp32-a", garage.Status{State: garage.StateOpening, ObservedAt: observed})

	obs.mu.Lock()
	defer obs.mu.Unlock()
	var msg StateUpdateMessage
	if err := json.Unmarshal(obs.frames[0], &msg); err != nil {
		t.Fatalf("unmarshalling state update: %v", err)
	}
	if msg.Type != MsgTypeStateUpdate {
		t.Errorf("Type = %q, want %q", msg.Type, MsgTypeStateUpdate)
	}
	if msg.DeviceID != "esp32-a" {
		t.Errorf("DeviceID = %q, want %q", msg.DeviceID, "esp32-a")
	}
	if msg.State != garage.StateOpening {
		t.Errorf("State = %q, want %q", msg.State, garage.StateOpening)
	}
	if msg.Timestamp != "2026-03-14T09:26:53Z" {
		t.Errorf("Timestamp = %q, want RFC3339 of observation time", msg.Timestamp)
	}
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	obs := &fakeTransport{}

	b.Subscribe(obs)
	b.Unsubscribe(obs)
	b.Unsubscribe(obs) // unknown observer is a no-op

	b.StateChanged("esp32-a", garage.Status{State: garage.StateClosed, ObservedAt: time.Now().UTC()})
	if obs.frameCount() != 0 {
		t.Error("unsubscribed observer should not receive broadcasts")
	}
}

func TestBroadcasterAdminNotices(t *testing.T) {
	b := NewBroadcaster()
	notifier := &recordingNotifier{}
	b.SetNotifier(notifier)

	b.DeviceConnected("esp32-a")
	b.DeviceDisconnected("esp32-a")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.texts) != 2 {
		t.Fatalf("notices = %d, want 2", len(notifier.texts))
	}
	if notifier.texts[0] != "garage esp32-a connected" {
		t.Errorf("first notice = %q", notifier.texts[0])
	}
	if notifier.texts[1] != "garage esp32-a disconnected" {
		t.Errorf("second notice = %q", notifier.texts[1])
	}
}

func TestBroadcasterNotifierErrorsSwallowed(t *testing.T) {
	b := NewBroadcaster()
	notifier := &failingNotifier{}
	b.SetNotifier(notifier)

	// Must not panic or propagate.
	b.DeviceConnected("esp32-a")
	b.DeviceDisconnected("esp32-a")

	if notifier.calls != 2 {
		t.Errorf("notifier calls = %d, want 2", notifier.calls)
	}
}

// recordingTelemetry captures climate and door-state writes.
type recordingTelemetry struct {
	deviceIDs    []string
	temperatures []float64
	humidities   []float64
	doorStates   []string
}

func (r *recordingTelemetry) WriteClimate(deviceID string, temperature, humidity float64) {
	r.deviceIDs = append(r.deviceIDs, deviceID)
	r.temperatures = append(r.temperatures, temperature)
	r.humidities = append(r.humidities, humidity)
}

func (r *recordingTelemetry) WriteDoorState(deviceID, state string) {
	r.doorStates = append(r.doorStates, state)
}

func TestBroadcasterTelemetryMirror(t *testing.T) {
	b := NewBroadcaster()
	telemetry := &recordingTelemetry{}
	b.SetTelemetry(telemetry)

	temp := 21.5
	hum := 48.0
	b.StateChanged("esp32-a", garage.Status{
		State:       garage.StateClosed,
		Temperature: &temp,
		Humidity:    &hum,
		ObservedAt:  time.Now().UTC(),
	})

	// No sensors, no climate write. Door state is still recorded.
	b.StateChanged("esp32-a", garage.Status{State: garage.StateOpen, ObservedAt: time.Now().UTC()})

	if len(telemetry.deviceIDs) != 1 {
		t.Fatalf("climate writes = %d, want 1", len(telemetry.deviceIDs))
	}
	if telemetry.temperatures[0] != 21.5 || telemetry.humidities[0] != 48.0 {
		t.Errorf("climate write = (%v, %v), want (21.5, 48)", telemetry.temperatures[0], telemetry.humidities[0])
	}
	if len(telemetry.doorStates) != 2 {
		t.Fatalf("door state writes = %d, want 2", len(telemetry.doorStates))
	}
	if telemetry.doorStates[0] != "closed" || telemetry.doorStates[1] != "open" {
		t.Errorf("door states = %v, want [closed open]", telemetry.doorStates)
	}
}
