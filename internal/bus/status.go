package bus

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cjeanneret/SolGo/internal/debug"
	"github.com/cjeanneret/SolGo/internal/logic/mode"
)

// publisher is the outbound half of the client, narrowed for tests.
type publisher interface {
	Publish(topic, payload string, retain bool)
}

// Publisher translates controller/scheduler state into retained status
// topics. It is stateless apart from the process start time; if the broker
// is down the underlying client drops the messages.
type Publisher struct {
	pub    publisher
	device string
	start  time.Time
	now    func() time.Time
}

// NewPublisher creates a status publisher for the given device identifier.
func NewPublisher(c *Client, device string) *Publisher {
	return &Publisher{
		pub:    c,
		device: device,
		start:  time.Now(),
		now:    time.Now,
	}
}

// statePayload wraps a value in the {"state": ...} JSON envelope Home
// Assistant templates expect.
func statePayload(v interface{}) string {
	data, err := json.Marshal(map[string]interface{}{"state": v})
	if err != nil {
		return `{"state":null}`
	}
	return string(data)
}

// PublishStatus publishes uptime, the enabled flag, last capture info and
// the human status message.
func (p *Publisher) PublishStatus(st mode.Status, message string) {
	uptime := int(p.now().Sub(p.start).Seconds())
	p.pub.Publish(p.device+"/state/uptime", statePayload(uptime), true)

	captureState := "OFF"
	if st.Enabled {
		captureState = "ON"
	}
	p.pub.Publish(p.device+"/state/capture", statePayload(captureState), true)

	if !st.LastCaptureTime.IsZero() {
		p.pub.Publish(p.device+"/state/last_capture",
			statePayload(st.LastCaptureTime.Format(time.RFC3339)), true)
	}
	if st.LastCapturePath != "" {
		p.pub.Publish(p.device+"/state/latest_photo", statePayload(st.LastCapturePath), true)
	}
	if message != "" {
		p.pub.Publish(p.device+"/state/status_message", statePayload(message), true)
	}
}

// PublishImage reads the captured JPEG and publishes it base64-encoded on
// the camera image topic, plus its path on the latest_photo state topic.
// Intended as the controller's capture hook.
func (p *Publisher) PublishImage(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		debug.Error(fmt.Errorf("reading photo for bus: %w", err))
		return
	}
	p.pub.Publish(p.device+"/camera/image", base64.StdEncoding.EncodeToString(data), true)
	p.pub.Publish(p.device+"/state/latest_photo", statePayload(path), true)
}
