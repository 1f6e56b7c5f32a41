// Package api provides the HTTP REST API and WebSocket session gateway
// for Garage Core.
//
// The REST surface exposes garage registrations, command relay, access
// logs, and authentication to browsers and tooling. The WebSocket
// endpoint /ws/{client_id} carries both kinds of live session: ids with
// the "web_" prefix are observers (browsers watching door state),
// anything else is a controller reporting status and receiving commands.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
