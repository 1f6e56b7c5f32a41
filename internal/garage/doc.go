// Package garage defines the domain model for garage door controllers.
//
// It contains the door state and command action enumerations shared by the
// relay core and the API layer, the Status value reported by devices over
// their WebSocket session, and the Registration repository that persists
// which controllers are known to (and approved by) this installation.
//
// # Key Types
//
//   - State: reported door position (open, closed, opening, closing, unknown)
//   - Action: a command verb a caller may send (open, close, stop)
//   - Status: the last report from a device, including optional climate data
//   - Registration: a persisted controller record with its approval flag
//
// Live connection and state tracking lives in the relay package; this
// package only holds the vocabulary and the durable registration store.
package garage
