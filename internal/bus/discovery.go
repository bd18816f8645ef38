package bus

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cjeanneret/SolGo/internal/debug"
)

const discoveryPrefix = "homeassistant"

// deviceInfo is the Home Assistant device registry block shared by every
// entity of this camera.
type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	SWVersion    string   `json:"sw_version"`
}

// entityConfig is a Home Assistant MQTT discovery document. Only the fields
// relevant to a given entity are set.
type entityConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	CommandTopic      string     `json:"command_topic,omitempty"`
	StateTopic        string     `json:"state_topic,omitempty"`
	Topic             string     `json:"topic,omitempty"` // camera entity
	ImageEncoding     string     `json:"image_encoding,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	DeviceClass       string     `json:"device_class,omitempty"`
	ValueTemplate     string     `json:"value_template,omitempty"`
	AvailabilityTopic string     `json:"availability_topic,omitempty"`
	Device            deviceInfo `json:"device"`
}

// discoveryDocuments builds the retained config documents registering this
// device's entities: the capture switch, the reboot button, the uptime and
// last-capture sensors and the camera image. Keys are full config topics.
func discoveryDocuments(device string) map[string]entityConfig {
	dev := deviceInfo{
		Identifiers:  []string{device},
		Name:         "Timelapse Camera",
		Model:        "Raspberry Pi Camera",
		Manufacturer: "SolGo",
		SWVersion:    "1.0.0",
	}
	avail := device + "/status"

	return map[string]entityConfig{
		discoveryPrefix + "/switch/" + device + "/capture/config": {
			Name:              "Timelapse Capture",
			UniqueID:          device + "_capture",
			CommandTopic:      device + "/command/capture",
			StateTopic:        device + "/state/capture",
			ValueTemplate:     "{{ value_json.state }}",
			AvailabilityTopic: avail,
			Device:            dev,
		},
		discoveryPrefix + "/button/" + device + "/reboot/config": {
			Name:              "Timelapse Camera Reboot",
			UniqueID:          device + "_reboot",
			CommandTopic:      device + "/command/reboot",
			AvailabilityTopic: avail,
			Device:            dev,
		},
		discoveryPrefix + "/sensor/" + device + "/uptime/config": {
			Name:              "Timelapse Uptime",
			UniqueID:          device + "_uptime",
			StateTopic:        device + "/state/uptime",
			UnitOfMeasurement: "seconds",
			ValueTemplate:     "{{ value_json.state }}",
			AvailabilityTopic: avail,
			Device:            dev,
		},
		discoveryPrefix + "/sensor/" + device + "/last_capture/config": {
			Name:              "Timelapse Last Capture",
			UniqueID:          device + "_last_capture",
			StateTopic:        device + "/state/last_capture",
			DeviceClass:       "timestamp",
			ValueTemplate:     "{{ value_json.state }}",
			AvailabilityTopic: avail,
			Device:            dev,
		},
		discoveryPrefix + "/camera/" + device + "/image/config": {
			Name:              "Timelapse Latest Image",
			UniqueID:          device + "_image",
			Topic:             device + "/camera/image",
			ImageEncoding:     "b64",
			AvailabilityTopic: avail,
			Device:            dev,
		},
	}
}

// registerDiscovery publishes the retained discovery documents. Runs on
// every (re)connection so a restarted broker re-learns the device.
func (c *Client) registerDiscovery(cl mqtt.Client) {
	for topic, doc := range discoveryDocuments(c.device) {
		data, err := json.Marshal(doc)
		if err != nil {
			debug.Error(err)
			continue
		}
		c.publishWith(cl, topic, string(data), true)
	}
	debug.Info("Home Assistant discovery documents registered")
}
