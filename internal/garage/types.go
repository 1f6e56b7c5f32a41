package garage

import "time"

// State is the reported position of a garage door.
type State string

// Door states as reported by controller firmware.
const (
	StateOpen    State = "open"
	StateClosed  State = "closed"
	StateOpening State = "opening"
	StateClosing State = "closing"

	// StateUnknown is the default before a device has ever reported,
	// and the fallback for unrecognised state strings.
	StateUnknown State = "unknown"
)

// ParseState converts a wire string into a State.
// Older firmware reports a single transitional value "moving" while the
// servo runs; it is treated as an opening-phase transition since the
// firmware does not distinguish direction.
func ParseState(s string) State {
	switch State(s) {
	case StateOpen, StateClosed, StateOpening, StateClosing:
		return State(s)
	}
	if s == "moving" {
		return StateOpening
	}
	return StateUnknown
}

// Action is a command verb relayed to a device.
type Action string

// Supported command actions.
const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
	ActionStop  Action = "stop"
)

// ParseAction validates a wire string as an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionOpen, ActionClose, ActionStop:
		return Action(s), nil
	}
	return "", ErrInvalidAction
}

// Status is the last known report from a device.
//
// State reflects the most recent status message received from the owning
// device; it is never inferred. Temperature and Humidity are optional
// sensor readings (the reference hardware carries a DHT sensor).
type Status struct {
	DeviceID    string    `json:"device_id"`
	State       State     `json:"state"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Registration is a persisted controller record.
//
// A registration is created automatically (unapproved) the first time a
// device identifier connects, and must be approved by an admin before
// commands are relayed to it.
type Registration struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DeviceID  string    `json:"device_id"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
