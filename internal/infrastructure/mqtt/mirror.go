package mqtt

// StateMirror publishes garage state frames to per-device retained topics.
// It satisfies the broadcaster's StatePublisher interface.
type StateMirror struct {
	client *Client
	topics Topics
}

// NewStateMirror creates a mirror backed by the given client.
func NewStateMirror(client *Client) *StateMirror {
	return &StateMirror{client: client}
}

// PublishState publishes a state frame for the given device.
// The frame is retained so new subscribers see the latest state immediately.
func (m *StateMirror) PublishState(deviceID string, payload []byte) error {
	return m.client.PublishRetained(m.topics.GarageState(deviceID), payload)
}
