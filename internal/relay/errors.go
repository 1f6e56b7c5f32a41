package relay

import "errors"

// Domain errors for the relay package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, relay.ErrNotConnected) {
//	    // surface as "device offline"
//	}
var (
	// ErrNotConnected is returned when a command targets a device with
	// no live session. Recoverable; the caller decides whether to surface
	// it as "device offline".
	ErrNotConnected = errors.New("relay: device not connected")

	// ErrTransport wraps write failures on a live connection. The caller
	// must not assume the command was or was not received.
	ErrTransport = errors.New("relay: transport write failed")
)
