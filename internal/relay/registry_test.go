package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/smartgarage/garage-core/internal/garage"
)

// fakeTransport is a test Transport that records frames in write order.
type fakeTransport struct {
	mu       sync.Mutex
	frames   [][]byte
	writeErr error
	closed   bool
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// recordingSink captures registry events for assertions.
type recordingSink struct {
	mu           sync.Mutex
	connected    []string
	disconnected []string
	stateChanges []garage.Status
}

func (s *recordingSink) DeviceConnected(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = append(s.connected, id)
}

func (s *recordingSink) DeviceDisconnected(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = append(s.disconnected, id)
}

func (s *recordingSink) StateChanged(_ string, status garage.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateChanges = append(s.stateChanges, status)
}

func TestRegistryStatusAbsentBeforeFirstReport(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Status("never-seen"); ok {
		t.Error("Status() for unknown device should report absent")
	}
}

func TestRegistryRegisterSupersedes(t *testing.T) {
	r := NewRegistry()
	sink := &recordingSink{}
	r.SetSink(sink)

	first := &fakeTransport{}
	second := &fakeTransport{}

	firstConn := r.Register("esp32-a", first)
	r.Register("esp32-a", second)

	if !first.isClosed() {
		t.Error("superseded transport should be closed")
	}
	if second.isClosed() {
		t.Error("replacement transport should stay open")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}

	// The superseded connection's teardown must not evict the replacement.
	r.Unregister("esp32-a", firstConn)
	if r.Count() != 1 {
		t.Error("unregistering a superseded session evicted the replacement")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.connected) != 2 {
		t.Errorf("connected events = %d, want 2", len(sink.connected))
	}
	if len(sink.disconnected) != 0 {
		t.Errorf("disconnected events = %d, want 0", len(sink.disconnected))
	}
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	sink := &recordingSink{}
	r.SetSink(sink)

	conn := r.Register("esp32-a", &fakeTransport{})

	r.Unregister("esp32-a", conn)
	r.Unregister("esp32-a", conn) // second call is a no-op
	r.Unregister("never-seen", conn)

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.disconnected) != 1 {
		t.Errorf("disconnected events = %d, want exactly 1", len(sink.disconnected))
	}
}

func TestRegistryUpdateStatusLastWriteWins(t *testing.T) {
	r := NewRegistry()

	earlier := time.Now().UTC().Add(-time.Minute)
	r.UpdateStatus("esp32-a", garage.Status{State: garage.StateOpen})
	// A late-arriving report still overwrites: ordering is by arrival,
	// not by timestamp comparison.
	r.UpdateStatus("esp32-a", garage.Status{State: garage.StateClosed, ObservedAt: earlier})

	status, ok := r.Status("esp32-a")
	if !ok {
		t.Fatal("Status() should be present after a report")
	}
	if status.State != garage.StateClosed {
		t.Errorf("State = %q, want %q", status.State, garage.StateClosed)
	}
	if !status.ObservedAt.Equal(earlier) {
		t.Errorf("ObservedAt = %v, want %v", status.ObservedAt, earlier)
	}
	if status.DeviceID != "esp32-a" {
		t.Errorf("DeviceID = %q, want %q", status.DeviceID, "esp32-a")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	const workers = 16
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(n int) {
			defer wg.Done()
			id := "device"
			if n%2 == 0 {
				id = "other"
			}
			for i := 0; i < iterations; i++ {
				conn := r.Register(id, &fakeTransport{})
				r.UpdateStatus(id, garage.Status{State: garage.StateOpen})
				r.Status(id)
				r.Connection(id)
				r.ConnectedIDs()
				r.Unregister(id, conn)
			}
		}(w)
	}
	wg.Wait()
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry()
	a := &fakeTransport{}
	b := &fakeTransport{}
	r.Register("a", a)
	r.Register("b", b)

	r.CloseAll()

	if !a.isClosed() || !b.isClosed() {
		t.Error("CloseAll should close every transport")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}
