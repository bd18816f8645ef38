package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (captures, windows, mode changes)
	LevelLive    = 2 // Live info (loop decisions, publishes)
	LevelVerbose = 3 // Verbose (calculation details, handler activity)
	LevelTrace   = 4 // Trace (GPIO, MQTT payloads, very low level)
)

var (
	level   int
	logger  *log.Logger
	logFile *os.File
	out     io.Writer
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (captures taken, daily window, mode changes)
// 2 = live info (scheduler decisions, status publishes)
// 3 = verbose (sun calculations, HTTP handlers)
// 4 = trace (GPIO, MQTT payloads, very low level)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		out = os.Stdout
		logger = log.New(out, "[SolGo] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// InitWithFile is like Init but also mirrors output to the given log file,
// which is created (along with its parent directory) if missing.
func InitWithFile(debugLevel int, path string) error {
	Init(debugLevel)
	if level == LevelOff || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = f
	out = io.MultiWriter(os.Stdout, f)
	logger.SetOutput(out)
	return nil
}

// Close closes the log file, if one was opened.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Tee duplicates log output into w on top of the current destination. The
// web layer uses this to mirror log lines into its ring buffer and SSE
// stream without losing the file.
func Tee(w io.Writer) {
	if logger != nil {
		out = io.MultiWriter(out, w)
		logger.SetOutput(out)
	}
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelOff && logger != nil {
		logger.Printf("═══════════════════════════════════════")
		logger.Printf("  %s", title)
		logger.Printf("═══════════════════════════════════════")
	}
}

// Shot prints a completed still capture (level 1).
func Shot(path string) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] Photo captured: %s", path)
	}
}

// Window prints the daily capture window (level 1).
func Window(start, end time.Time) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] Today's capture window: %s -> %s",
			start.Format("2006-01-02 15:04:05"), end.Format("2006-01-02 15:04:05"))
	}
}

// Mode prints a camera mode change (level 1).
func Mode(from, to string) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] Camera mode: %s -> %s", from, to)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

// Publish prints an outbound bus publish (level 2).
func Publish(topic string) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Published %s", topic)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] Step %d: %s", num, description)
	}
}

// Value prints a named value in formatted form.
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO]   %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRACE] "+format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[GPIO] %s pin=%d value=%v", operation, pin, value)
	}
}

// MQTT prints an MQTT payload (level 4).
func MQTT(topic, payload string) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[MQTT] %s: %s", topic, payload)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}
