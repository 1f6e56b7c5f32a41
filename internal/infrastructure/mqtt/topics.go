package mqtt

import "fmt"

// Topic prefixes for the garage MQTT hierarchy.
//
// All topics use the flat scheme: garage/{category}/{id}
const (
	// TopicPrefix is the base for all garage topics.
	TopicPrefix = "garage"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "garage/system"
)

// Topics provides builders for garage MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.GarageState("esp32-door-1")
//	// Returns: "garage/state/esp32-door-1"
type Topics struct{}

// GarageState returns the retained state topic for a garage device.
//
// Example: garage/state/esp32-door-1
func (Topics) GarageState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// SystemStatus returns the relay online/offline status topic.
// This is also the Last Will topic for crash detection.
//
// Example: garage/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllGarageStates returns a pattern matching every garage state topic.
//
// Pattern: garage/state/+
func (Topics) AllGarageStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}
