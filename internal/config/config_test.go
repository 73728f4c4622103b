package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mag.cfg")
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# minimal\nMQTT_BROKER=tcp://localhost:1883\n\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.MQTTBroker, test.ShouldEqual, "tcp://localhost:1883")
	test.That(t, cfg.BridgeAddr, test.ShouldEqual, uint16(0x68))
	test.That(t, cfg.MagAddr, test.ShouldEqual, uint8(0x0C))
	test.That(t, cfg.MagMode, test.ShouldEqual, byte(0x16))
	test.That(t, cfg.MagEnabled, test.ShouldBeTrue)
	test.That(t, cfg.BridgeTiming().InitSettle, test.ShouldEqual, 100*time.Millisecond)
	test.That(t, cfg.BridgeTiming().RelaySettle, test.ShouldEqual, 10*time.Millisecond)

	opts := cfg.MagOpts()
	test.That(t, opts.Timing.PollAttempts, test.ShouldEqual, 10)
	test.That(t, opts.Timing.PollBackoff, test.ShouldEqual, 10*time.Millisecond)
	test.That(t, opts.StrictReadiness, test.ShouldBeFalse)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
MQTT_BROKER = tcp://broker:1883
I2C_BUS=/dev/i2c-3
BRIDGE_ADDR=0x69
MAG_ADDR=12
MAG_MODE=0x12
MAG_ENABLED=false
MAG_STRICT_READY=true
MAG_POLL_ATTEMPTS=3
MAG_POLL_BACKOFF_MS=5
MAG_SAMPLE_INTERVAL=50
RELAY_SETTLE_MS=2
TOPIC_MAG=a/b=c
`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.I2CBus, test.ShouldEqual, "/dev/i2c-3")
	test.That(t, cfg.BridgeAddr, test.ShouldEqual, uint16(0x69))
	test.That(t, cfg.MagAddr, test.ShouldEqual, uint8(0x0C))
	test.That(t, cfg.MagMode, test.ShouldEqual, byte(0x12))
	test.That(t, cfg.MagEnabled, test.ShouldBeFalse)
	test.That(t, cfg.TopicMag, test.ShouldEqual, "a/b=c")
	test.That(t, cfg.SampleInterval(), test.ShouldEqual, 50*time.Millisecond)

	opts := cfg.MagOpts()
	test.That(t, opts.StrictReadiness, test.ShouldBeTrue)
	test.That(t, opts.Mode, test.ShouldEqual, byte(0x12))
	test.That(t, opts.Timing.PollAttempts, test.ShouldEqual, 3)
	test.That(t, opts.Timing.PollBackoff, test.ShouldEqual, 5*time.Millisecond)
	test.That(t, opts.Timing.ModeSettle, test.ShouldEqual, 2*time.Millisecond)
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name, body, want string
	}{
		{"missing broker", "TOPIC_MAG=x\n", "MQTT_BROKER is required"},
		{"no equals", "MQTT_BROKER\n", "invalid config line 1"},
		{"unknown key", "MQTT_BROKER=x\nFOO=1\n", `unknown config key: "FOO"`},
		{"attempts range", "MQTT_BROKER=x\nMAG_POLL_ATTEMPTS=0\n", "MAG_POLL_ATTEMPTS must be 1-1000, got 0"},
		{"not a number", "MQTT_BROKER=x\nRELAY_SETTLE_MS=soon\n", "invalid RELAY_SETTLE_MS"},
		{"address range", "MQTT_BROKER=x\nMAG_ADDR=0x80\n", "MAG_ADDR must be 0x00-0x7F"},
		{"mode", "MQTT_BROKER=x\nMAG_MODE=0x0F\n", "MAG_MODE must select continuous mode"},
		{"bool", "MQTT_BROKER=x\nMAG_ENABLED=maybe\n", "invalid MAG_ENABLED"},
		{"same address", "MQTT_BROKER=x\nMAG_ADDR=0x68\n", "must differ"},
		{"display address", "MQTT_BROKER=x\nDISPLAY_I2C_ADDR=0x3D\n", `unknown config key: "DISPLAY_I2C_ADDR"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cfg"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to open config file")
}
