//go:build integration

package mqtt

import (
	"context"
	"testing"

	"github.com/smartgarage/garage-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for integration testing.
// These tests require a running Mosquitto broker at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "garage-core-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestIntegration_ConnectAndPublish(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	mirror := NewStateMirror(client)
	if err := mirror.PublishState("esp32-test", []byte(`{"state":"open"}`)); err != nil {
		t.Errorf("PublishState() error = %v", err)
	}
}

func TestIntegration_Close(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "garage-core-test-close"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
