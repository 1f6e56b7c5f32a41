// Package mqtt provides the optional MQTT state mirror for Garage Core.
//
// When enabled, every garage state update is published as a retained
// message so home-automation consumers (dashboards, Home Assistant,
// other services) can follow door state without holding a WebSocket
// connection to the relay.
//
// # Topics
//
//	garage/state/{device_id}   retained, latest state frame per garage
//	garage/system/status       retained, relay online/offline status (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	mirror := mqtt.NewStateMirror(client)
//	broadcaster.SetPublisher(mirror)
//
// The client auto-reconnects with exponential backoff. Publishes while
// disconnected return ErrNotConnected rather than queuing.
package mqtt
