// Package relay implements the device session and command-relay core.
//
// It is the single owner of all live controller sessions and their
// last-reported status, and it fans state changes out to observers.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                         relay core                           │
//	│                                                              │
//	│  ┌──────────────┐   ┌──────────────┐   ┌──────────────────┐  │
//	│  │   Registry   │   │    Relay     │   │   Broadcaster    │  │
//	│  │(registry.go) │──▶│  (relay.go)  │   │ (broadcaster.go) │  │
//	│  │              │   │              │   │                  │  │
//	│  │ • sessions   │   │ • Send()     │   │ • observer set   │  │
//	│  │ • status map │   │ • at-most-   │   │ • admin notices  │  │
//	│  │ • events     │   │   once write │   │ • MQTT/telemetry │  │
//	│  └──────┬───────┘   └──────────────┘   └──────────────────┘  │
//	│         │ EventSink                            ▲             │
//	│         └──────────────────────────────────────┘             │
//	└──────────────────────────────────────────────────────────────┘
//
// # Contracts
//
//   - At most one live session per device id; a new session with the same
//     id supersedes the old one, whose transport is closed.
//   - Command delivery is at-most-once and unconfirmed. Confirmation
//     arrives later, out-of-band, as the device's next status report.
//   - Broadcasts are all-attempted and partial-failure tolerant: a dead
//     observer is removed, the rest still receive the notification.
//   - The registry lock is held only for map mutation, never across
//     transport I/O or event delivery.
//
// All types in this package are safe for concurrent use.
package relay
