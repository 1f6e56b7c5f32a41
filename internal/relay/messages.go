package relay

import (
	"github.com/smartgarage/garage-core/internal/garage"
)

// Wire message type discriminators. Every frame on a device or observer
// session is a single JSON object with a required "type" field.
const (
	MsgTypeStatus      = "status"       // device → gateway
	MsgTypeCommand     = "command"      // gateway → device
	MsgTypeStateUpdate = "state_update" // gateway → observer
)

// StatusMessage is the inbound report from a device.
type StatusMessage struct {
	Type        string   `json:"type"`
	State       string   `json:"state"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// CommandMessage is the frame delivered to a device.
type CommandMessage struct {
	Type      string        `json:"type"`
	Action    garage.Action `json:"action"`
	Timestamp string        `json:"timestamp"`
}

// StateUpdateMessage is the broadcast frame delivered to observers.
type StateUpdateMessage struct {
	Type      string       `json:"type"`
	DeviceID  string       `json:"device_id"`
	State     garage.State `json:"state"`
	Timestamp string       `json:"timestamp"`
}
