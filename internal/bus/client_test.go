package bus

import (
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// newDisconnectedClient builds a Client whose paho connection was never
// established (the broker address points nowhere and Connect is not called).
func newDisconnectedClient(device string) *Client {
	opts := mqtt.NewClientOptions().
		AddBroker("tcp://127.0.0.1:1").
		SetClientID("solgo-" + device)
	return &Client{mqtt: mqtt.NewClient(opts), device: device}
}

func TestPublish_DisconnectedDropsImmediately(t *testing.T) {
	c := newDisconnectedClient("cam1")

	start := time.Now()
	c.Publish("cam1/state/capture", `{"state":"ON"}`, true)
	c.Publish("cam1/state/uptime", `{"state":1}`, true)

	// Status publishes are best-effort: with the broker gone they are
	// dropped without waiting anywhere near the publish timeout.
	if elapsed := time.Since(start); elapsed > publishTimeout/2 {
		t.Errorf("publishes on a disconnected client took %s, want well under %s", elapsed, publishTimeout)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c := newDisconnectedClient("cam1")
	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * publishTimeout):
		t.Fatal("Close blocked on a client that never connected")
	}
}
