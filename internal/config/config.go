package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/mag_passthrough/internal/bridge"
	"github.com/relabs-tech/mag_passthrough/internal/magnetometer"
)

// Config holds all application configuration values.
type Config struct {
	// I2C bus
	I2CBus      string // periph bus name, "" for the first bus
	I2CSpeedKHz int

	// Devices
	BridgeAddr uint16
	MagAddr    uint8

	// Bridge timing (milliseconds)
	BridgeInitSettleMS int
	RelaySettleMS      int

	// Magnetometer
	MagPollAttempts   int
	MagPollBackoffMS  int
	MagMode           byte // CNTL1 continuous mode code
	MagEnabled        bool
	MagStrictReady    bool
	MagSampleInterval int // milliseconds

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicMag       string
	TopicMagStatus string

	// Web Server (metrics, register debug)
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds

	// Register debug
	RegisterDebugWritable bool
}

// globalConfig is only reachable through InitGlobal and Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional key at its default value.
func Default() *Config {
	return &Config{
		I2CSpeedKHz:           400,
		BridgeAddr:            bridge.DefaultAddr,
		MagAddr:               magnetometer.DefaultAddr,
		BridgeInitSettleMS:    100,
		RelaySettleMS:         10,
		MagPollAttempts:       10,
		MagPollBackoffMS:      10,
		MagMode:               magnetometer.ModeContinuous2,
		MagEnabled:            true,
		MagSampleInterval:     100,
		MQTTClientIDProducer:  "mag-producer",
		MQTTClientIDConsole:   "mag-console",
		MQTTClientIDDisplay:   "mag-display",
		TopicMag:              "inertial/mag",
		TopicMagStatus:        "inertial/mag/status",
		WebServerPort:         8080,
		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseRange(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseAddr(key, value string, hi uint64) (uint64, error) {
	a, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if a > hi {
		return 0, fmt.Errorf("%s must be 0x00-0x%02X, got 0x%02X", key, hi, a)
	}
	return a, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// I2C bus
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_SPEED_KHZ":
		c.I2CSpeedKHz, err = parseRange(key, value, 10, 1000)

	// Devices
	case "BRIDGE_ADDR":
		var a uint64
		a, err = parseAddr(key, value, 0x7F)
		c.BridgeAddr = uint16(a)
	case "MAG_ADDR":
		var a uint64
		a, err = parseAddr(key, value, 0x7F)
		c.MagAddr = uint8(a)

	// Bridge timing
	case "BRIDGE_INIT_SETTLE_MS":
		c.BridgeInitSettleMS, err = parseRange(key, value, 0, 5000)
	case "RELAY_SETTLE_MS":
		c.RelaySettleMS, err = parseRange(key, value, 0, 1000)

	// Magnetometer
	case "MAG_POLL_ATTEMPTS":
		c.MagPollAttempts, err = parseRange(key, value, 1, 1000)
	case "MAG_POLL_BACKOFF_MS":
		c.MagPollBackoffMS, err = parseRange(key, value, 0, 1000)
	case "MAG_MODE":
		var m uint64
		m, err = strconv.ParseUint(value, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid MAG_MODE %q: %w", value, err)
		}
		if !magnetometer.ValidMeasurementMode(byte(m)) {
			return fmt.Errorf("MAG_MODE must select continuous mode 1 or 2 (e.g. 0x12, 0x16), got 0x%02X", m)
		}
		c.MagMode = byte(m)
	case "MAG_ENABLED":
		c.MagEnabled, err = parseBool(key, value)
	case "MAG_STRICT_READY":
		c.MagStrictReady, err = parseBool(key, value)
	case "MAG_SAMPLE_INTERVAL":
		c.MagSampleInterval, err = parseRange(key, value, 1, 60000)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_MAG":
		c.TopicMag = value
	case "TOPIC_MAG_STATUS":
		c.TopicMagStatus = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseRange(key, value, 1, 65535)

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseRange(key, value, 10, 60000)

	// Register debug
	case "REGISTER_DEBUG_WRITABLE":
		c.RegisterDebugWritable, err = parseBool(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicMag == "" {
		return fmt.Errorf("TOPIC_MAG is required")
	}
	if c.BridgeAddr == uint16(c.MagAddr) {
		return fmt.Errorf("BRIDGE_ADDR and MAG_ADDR must differ, both 0x%02X", c.BridgeAddr)
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// BridgeTiming returns the configured bridge settle delays.
func (c *Config) BridgeTiming() bridge.Timing {
	return bridge.Timing{
		InitSettle:  ms(c.BridgeInitSettleMS),
		RelaySettle: ms(c.RelaySettleMS),
	}
}

// MagOpts returns driver options for the configured magnetometer. The mode
// settle delay follows RELAY_SETTLE_MS.
func (c *Config) MagOpts() magnetometer.Opts {
	return magnetometer.Opts{
		Addr: c.MagAddr,
		Timing: &magnetometer.Timing{
			ModeSettle:   ms(c.RelaySettleMS),
			PollAttempts: c.MagPollAttempts,
			PollBackoff:  ms(c.MagPollBackoffMS),
		},
		Mode:            c.MagMode,
		StrictReadiness: c.MagStrictReady,
	}
}

// SampleInterval returns MAG_SAMPLE_INTERVAL as a duration.
func (c *Config) SampleInterval() time.Duration { return ms(c.MagSampleInterval) }

// InitGlobal initializes the global configuration from file.
// Only the first call loads the file; later calls return nil.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
