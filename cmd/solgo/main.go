package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cjeanneret/SolGo/internal/bus"
	"github.com/cjeanneret/SolGo/internal/config"
	"github.com/cjeanneret/SolGo/internal/debug"
	"github.com/cjeanneret/SolGo/internal/hw/camera"
	"github.com/cjeanneret/SolGo/internal/hw/gpio"
	"github.com/cjeanneret/SolGo/internal/logic/mode"
	"github.com/cjeanneret/SolGo/internal/logic/scheduler"
	"github.com/cjeanneret/SolGo/internal/logic/sun"
	"github.com/cjeanneret/SolGo/internal/state"
	"github.com/cjeanneret/SolGo/internal/web"
)

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	testMode := flag.Bool("test", false, "take a fixed number of test photos and exit")
	noVideo := flag.Bool("no-video", false, "accepted for compatibility; video assembly is never performed")
	captureOnce := flag.Bool("capture", false, "take a single photo and exit")
	webEnabled := flag.Bool("web", false, "start the web interface")
	webPort := flag.Int("web-port", 8080, "web interface port")
	flag.Parse()

	if err := validateWebPort(*webPort); err != nil {
		log.Fatalf("invalid -web-port: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Optional .env with SOLGO_MQTT_USERNAME / SOLGO_MQTT_PASSWORD.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Initialize debug system
	if err := debug.InitWithFile(cfg.Defaults.DebugLevel, cfg.LogPath()); err != nil {
		log.Fatalf("init logging failed: %v", err)
	}
	defer debug.Close()
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Device", cfg.Device.Name)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Photos dir", cfg.PhotosPath())

	if err := os.MkdirAll(cfg.PhotosPath(), 0o755); err != nil {
		log.Fatalf("create photos dir failed: %v", err)
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize camera and mode controller
	debug.Step(2, "Initializing camera")
	debug.Value("Camera type", cfg.Camera.Type)
	cam, err := camera.New(cfg, gpioDriver)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}

	debug.Step(3, "Starting mode controller")
	store := state.NewStore(cfg.StatePath())
	ctrl, err := mode.NewController(cam, store, cfg.PhotosPath())
	if err != nil {
		log.Fatalf("init mode controller failed: %v", err)
	}
	defer ctrl.Stop()

	// Connect the message bus when a broker is configured. A broker that is
	// down at startup must not prevent capturing.
	var statusPub scheduler.StatusPublisher
	if cfg.MQTT.Host != "" {
		debug.Step(4, "Connecting to MQTT broker")
		client, err := bus.Connect(cfg.MQTT, cfg.Device.Name, busCommands(cfg, ctrl))
		if err != nil {
			debug.Error(fmt.Errorf("mqtt unavailable, continuing without bus: %w", err))
		} else {
			defer client.Close()
			pub := bus.NewPublisher(client, cfg.Device.Name)
			ctrl.SetCaptureHook(pub.PublishImage)
			statusPub = pub
		}
	}

	loc := sun.Location{
		Latitude:  cfg.Location.Latitude,
		Longitude: cfg.Location.Longitude,
		Timezone:  cfg.Timezone(),
	}
	sched := scheduler.New(ctrl, statusPub, loc,
		cfg.Camera.HoursBeforeSunrise, cfg.Camera.HoursAfterSunset, cfg.Interval())

	switch {
	case *captureOnce:
		path, err := ctrl.CaptureOnce()
		if err != nil {
			log.Fatalf("capture failed: %v", err)
		}
		fmt.Println(path)
		return

	case *testMode:
		if *noVideo {
			debug.Info("-no-video: video assembly is not performed")
		}
		if err := sched.RunTest(ctx, cfg.Camera.TestCaptureCount, cfg.TestInterval()); err != nil {
			log.Fatalf("test run failed: %v", err)
		}
		return
	}

	if *webEnabled {
		hub := web.NewLogHub(200)
		debug.Tee(hub.Writer())
		srv := web.NewServer(fmt.Sprintf(":%d", *webPort), ctrl, sched, hub, cfg.LogPath())
		go func() {
			if err := srv.Run(ctx); err != nil {
				debug.Error(fmt.Errorf("web server: %w", err))
				cancel()
			}
		}()
	}

	sched.Run(ctx)
}

// busCommands wires inbound bus commands to the controller. The reboot
// command stays nil unless explicitly allowed in the config.
func busCommands(cfg *config.Config, ctrl *mode.Controller) bus.Commands {
	cmds := bus.Commands{
		SetCaptureEnabled: func(enabled bool) {
			var err error
			if enabled {
				err = ctrl.EnableCapture()
			} else {
				err = ctrl.DisableCapture()
			}
			if err != nil {
				debug.Error(fmt.Errorf("bus capture command: %w", err))
			}
		},
	}
	if cfg.MQTT.AllowReboot {
		cmds.Reboot = func() {
			runReboot(cfg.MQTT.RebootCommand)
		}
	}
	return cmds
}

func runReboot(command string) {
	name, args, err := splitCommand(command)
	if err != nil {
		debug.Error(fmt.Errorf("reboot command: %w", err))
		return
	}
	debug.Info("Executing reboot command: %s", command)
	if err := exec.Command(name, args...).Start(); err != nil {
		debug.Error(fmt.Errorf("reboot command: %w", err))
	}
}

// splitCommand splits a whitespace-separated command line into the
// executable and its arguments.
func splitCommand(s string) (string, []string, error) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	return parts[0], parts[1:], nil
}

func validateWebPort(p int) error {
	if p <= 0 || p > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", p)
	}
	return nil
}
