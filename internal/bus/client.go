// Package bus integrates the camera with a home-automation MQTT broker:
// retained status topics, Home Assistant discovery documents, and inbound
// command topics. Publishing is best-effort and bounded; a disconnected
// broker never blocks the scheduler.
package bus

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cjeanneret/SolGo/internal/config"
	"github.com/cjeanneret/SolGo/internal/debug"
)

// publishTimeout bounds every publish wait so the caller can never hang on
// the broker.
const publishTimeout = time.Second

// connectTimeout bounds the initial broker handshake.
const connectTimeout = 5 * time.Second

// BusError wraps a broker connection failure.
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus %s: %v", e.Op, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// Commands are the inbound message-bus operations routed to the rest of the
// application.
type Commands struct {
	// SetCaptureEnabled handles <device>/command/capture ON/OFF.
	SetCaptureEnabled func(enabled bool)
	// Reboot handles <device>/command/reboot. Nil when reboot is not allowed.
	Reboot func()
}

// Client wraps the paho MQTT connection for one device.
type Client struct {
	mqtt   mqtt.Client
	device string
}

// Connect dials the broker, announces availability (with an offline
// last-will), registers the Home Assistant discovery documents and
// subscribes to the command topics.
func Connect(cfg config.MQTTConfig, device string, cmds Commands) (*Client, error) {
	c := &Client{device: device}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID("solgo-" + device).
		SetAutoReconnect(true).
		SetWill(device+"/status", "offline", 1, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(cl mqtt.Client) {
		debug.Info("Connected to MQTT broker at %s:%d", cfg.Host, cfg.Port)
		c.onConnect(cl, cmds)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		debug.Error(&BusError{Op: "connection", Err: err})
	})

	c.mqtt = mqtt.NewClient(opts)
	token := c.mqtt.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, &BusError{Op: "connect", Err: fmt.Errorf("timeout after %s", connectTimeout)}
	}
	if err := token.Error(); err != nil {
		return nil, &BusError{Op: "connect", Err: err}
	}
	return c, nil
}

// onConnect runs on every (re)connection: availability, discovery, commands.
func (c *Client) onConnect(cl mqtt.Client, cmds Commands) {
	c.publishWith(cl, c.device+"/status", "online", true)
	c.registerDiscovery(cl)

	topic := c.device + "/command/#"
	token := cl.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleCommand(cmds, msg.Topic(), string(msg.Payload()))
	})
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		debug.Error(&BusError{Op: "subscribe", Err: fmt.Errorf("%s: %v", topic, token.Error())})
	}
}

func (c *Client) handleCommand(cmds Commands, topic, payload string) {
	debug.Info("Received MQTT command on %s: %s", topic, payload)
	switch topic {
	case c.device + "/command/capture":
		if cmds.SetCaptureEnabled != nil {
			cmds.SetCaptureEnabled(payload == "ON")
		}
	case c.device + "/command/reboot":
		if cmds.Reboot != nil {
			cmds.Reboot()
		} else {
			debug.Info("Reboot command ignored (allow_reboot is off)")
		}
	default:
		debug.Verbose("Ignoring unknown command topic %s", topic)
	}
}

// Publish sends a payload on a topic, retained. Failures are logged and
// dropped: status updates are best-effort by design.
func (c *Client) Publish(topic, payload string, retain bool) {
	c.publishWith(c.mqtt, topic, payload, retain)
}

func (c *Client) publishWith(cl mqtt.Client, topic, payload string, retain bool) {
	if !cl.IsConnected() {
		debug.Verbose("Bus disconnected, dropping publish to %s", topic)
		return
	}
	debug.MQTT(topic, payload)
	token := cl.Publish(topic, 0, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		debug.Verbose("Publish to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		debug.Error(&BusError{Op: "publish", Err: fmt.Errorf("%s: %w", topic, err)})
		return
	}
	debug.Publish(topic)
}

// Close announces offline and disconnects cleanly.
func (c *Client) Close() {
	if c.mqtt == nil {
		return
	}
	c.Publish(c.device+"/status", "offline", true)
	c.mqtt.Disconnect(250)
	debug.Info("Disconnected from MQTT broker")
}
