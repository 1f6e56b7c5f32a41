package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteClimate records a temperature and humidity reading for a garage.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Readings arrive with status frames from firmware, so a garage with
// sensors produces one point per status report.
//
// Parameters:
//   - deviceID: The reporting garage device (e.g., "esp32-door-1")
//   - temperature: Temperature in degrees Celsius
//   - humidity: Relative humidity percentage
func (c *Client) WriteClimate(deviceID string, temperature, humidity float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"climate",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"temperature": temperature,
			"humidity":    humidity,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDoorState records a door state transition for a garage.
//
// Each point carries the state as a field so dashboards can graph
// open/close history per device.
//
// Parameters:
//   - deviceID: The garage device identifier
//   - state: Door state ("open", "closed", "opening", "closing", "unknown")
func (c *Client) WriteDoorState(deviceID, state string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"door_state",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"state": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now", such as replaying readings
// that were observed before a reconnect.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
