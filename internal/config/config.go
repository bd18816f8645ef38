package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// DeviceConfig identifies this camera on the message bus.
type DeviceConfig struct {
	Name string `yaml:"name"` // e.g., "timelapse_camera"; used as MQTT topic root
}

// LocationConfig is the geographic position used for sunrise/sunset math.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"` // IANA name, e.g., "Europe/Paris"
}

// ResolutionConfig is an image size in pixels.
type ResolutionConfig struct {
	WidthPx  int `yaml:"width_px"`
	HeightPx int `yaml:"height_px"`
}

// CameraConfig describes the camera backend and the capture schedule knobs.
// Type selects a concrete implementation (e.g., "libcamera", "shutter_gpio", "mock").
type CameraConfig struct {
	Type       string           `yaml:"type"`
	Resolution ResolutionConfig `yaml:"resolution"` // full-resolution stills
	Preview    ResolutionConfig `yaml:"preview"`    // low-resolution live feed

	HoursBeforeSunrise float64 `yaml:"hours_before_sunrise"` // window opens this long before sunrise
	HoursAfterSunset   float64 `yaml:"hours_after_sunset"`   // window closes this long after sunset
	IntervalMinutes    int     `yaml:"interval_minutes"`     // delay between scheduled captures

	TestCaptureCount    int `yaml:"test_capture_count"`    // -test mode: number of shots
	TestIntervalSeconds int `yaml:"test_interval_seconds"` // -test mode: delay between shots

	// shutter_gpio backend (DSLR remote trigger over GPIO)
	FocusPin       int `yaml:"focus_pin"`        // GPIO pin for FOCUS line
	ShutterPin     int `yaml:"shutter_pin"`      // GPIO pin for SHUTTER line
	FocusDelayMs   int `yaml:"focus_delay_ms"`   // autofocus delay (ms)
	ShutterDelayMs int `yaml:"shutter_delay_ms"` // shutter hold time (ms)
}

// MQTTConfig describes the broker connection for Home Assistant integration.
// Host empty means MQTT is disabled.
type MQTTConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	AllowReboot   bool   `yaml:"allow_reboot"`   // honor <device>/command/reboot
	RebootCommand string `yaml:"reboot_command"` // default "systemctl reboot"
}

// PathsConfig holds filesystem locations. Empty base_dir defaults to the
// XDG state directory for solgo.
type PathsConfig struct {
	BaseDir   string `yaml:"base_dir"`
	PhotosDir string `yaml:"photos_dir"`
	LogFile   string `yaml:"log_file"`
	StateFile string `yaml:"state_file"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Location LocationConfig `yaml:"location"`
	Camera   CameraConfig   `yaml:"camera"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Paths    PathsConfig    `yaml:"paths"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
// MQTT credentials may be overridden by the SOLGO_MQTT_USERNAME and
// SOLGO_MQTT_PASSWORD environment variables (loaded from .env by main).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if u := os.Getenv("SOLGO_MQTT_USERNAME"); u != "" {
		cfg.MQTT.Username = u
	}
	if p := os.Getenv("SOLGO_MQTT_PASSWORD"); p != "" {
		cfg.MQTT.Password = p
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Device.Name == "" {
		c.Device.Name = "timelapse_camera"
	}
	if c.Camera.Resolution.WidthPx <= 0 {
		c.Camera.Resolution.WidthPx = 1920
	}
	if c.Camera.Resolution.HeightPx <= 0 {
		c.Camera.Resolution.HeightPx = 1080
	}
	if c.Camera.Preview.WidthPx <= 0 {
		c.Camera.Preview.WidthPx = 640
	}
	if c.Camera.Preview.HeightPx <= 0 {
		c.Camera.Preview.HeightPx = 480
	}
	if c.Camera.IntervalMinutes <= 0 {
		c.Camera.IntervalMinutes = 5
	}
	if c.Camera.TestCaptureCount <= 0 {
		c.Camera.TestCaptureCount = 10
	}
	if c.Camera.TestIntervalSeconds <= 0 {
		c.Camera.TestIntervalSeconds = 2
	}
	if c.Camera.FocusDelayMs <= 0 {
		c.Camera.FocusDelayMs = 500
	}
	if c.Camera.ShutterDelayMs <= 0 {
		c.Camera.ShutterDelayMs = 200
	}
	if c.MQTT.Port <= 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.RebootCommand == "" {
		c.MQTT.RebootCommand = "systemctl reboot"
	}

	if c.Paths.BaseDir == "" {
		dir, err := xdg.StateFile("solgo/solgo.log")
		if err != nil {
			home, herr := os.UserHomeDir()
			if herr != nil {
				return fmt.Errorf("resolve state dir: %w", err)
			}
			dir = filepath.Join(home, ".local/state/solgo/solgo.log")
		}
		c.Paths.BaseDir = filepath.Dir(dir)
	}
	if c.Paths.PhotosDir == "" {
		c.Paths.PhotosDir = "photos"
	}
	if c.Paths.LogFile == "" {
		c.Paths.LogFile = "solgo.log"
	}
	if c.Paths.StateFile == "" {
		c.Paths.StateFile = "state.json"
	}
	return nil
}

func (c *Config) validate() error {
	if c.Camera.Type == "" {
		return fmt.Errorf("camera.type is required")
	}
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("location.latitude must be between -90 and 90, got %.4f", c.Location.Latitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("location.longitude must be between -180 and 180, got %.4f", c.Location.Longitude)
	}
	if c.Location.Timezone == "" {
		return fmt.Errorf("location.timezone is required")
	}
	if _, err := time.LoadLocation(c.Location.Timezone); err != nil {
		return fmt.Errorf("location.timezone: %w", err)
	}
	if c.Camera.HoursBeforeSunrise < 0 {
		return fmt.Errorf("camera.hours_before_sunrise must be >= 0, got %.2f", c.Camera.HoursBeforeSunrise)
	}
	if c.Camera.HoursAfterSunset < 0 {
		return fmt.Errorf("camera.hours_after_sunset must be >= 0, got %.2f", c.Camera.HoursAfterSunset)
	}
	if c.Camera.Type == "shutter_gpio" {
		if c.Camera.FocusPin <= 0 || c.Camera.ShutterPin <= 0 {
			return fmt.Errorf("camera.focus_pin and camera.shutter_pin are required for shutter_gpio")
		}
	}
	return nil
}

// Interval returns the delay between two scheduled captures.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Camera.IntervalMinutes) * time.Minute
}

// TestInterval returns the delay between two test-mode captures.
func (c *Config) TestInterval() time.Duration {
	return time.Duration(c.Camera.TestIntervalSeconds) * time.Second
}

// FocusDelay returns the autofocus delay duration for the GPIO trigger.
func (c *Config) FocusDelay() time.Duration {
	return time.Duration(c.Camera.FocusDelayMs) * time.Millisecond
}

// ShutterDelay returns the shutter hold duration for the GPIO trigger.
func (c *Config) ShutterDelay() time.Duration {
	return time.Duration(c.Camera.ShutterDelayMs) * time.Millisecond
}

// PhotosPath returns the absolute photos directory.
func (c *Config) PhotosPath() string {
	return filepath.Join(c.Paths.BaseDir, c.Paths.PhotosDir)
}

// LogPath returns the absolute log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.BaseDir, c.Paths.LogFile)
}

// StatePath returns the absolute persisted-state file path.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.BaseDir, c.Paths.StateFile)
}

// Timezone returns the loaded time.Location. Validity is checked at Load time.
func (c *Config) Timezone() *time.Location {
	loc, err := time.LoadLocation(c.Location.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
