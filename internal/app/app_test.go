// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/mag_passthrough/internal/bridge/bridgetest"
	"github.com/relabs-tech/mag_passthrough/internal/config"
	"github.com/relabs-tech/mag_passthrough/internal/imu"
	"github.com/relabs-tech/mag_passthrough/internal/magnetometer"
)

type noSleep struct{ clock.Clock }

func (noSleep) Sleep(time.Duration) {}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MQTTBroker = "tcp://localhost:1883"
	cfg.BridgeInitSettleMS = 0
	cfg.RelaySettleMS = 0
	cfg.MagPollBackoffMS = 0
	return cfg
}

// newAK returns an AK8963 register file holding the fuse bytes and data
// block used throughout these tests.
func newAK() *bridgetest.Device {
	dev := &bridgetest.Device{}
	dev.Regs[0x00] = 0x48
	dev.Regs[0x02] = 0x01
	copy(dev.Regs[0x03:], []byte{0x10, 0x00, 0x20, 0x00, 0x30, 0x00, 0x00})
	copy(dev.Regs[0x10:], []byte{150, 150, 150})
	return dev
}

func newTestRig(t *testing.T, cfg *config.Config, dev *bridgetest.Device) (*bridgetest.Sim, *Rig) {
	t.Helper()
	sim := bridgetest.New()
	sim.Attach(magnetometer.DefaultAddr, dev)
	rig, err := BringUp(sim, cfg, noSleep{clock.New()})
	test.That(t, err, test.ShouldBeNil)
	return sim, rig
}

type publishRecord struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	sent []publishRecord
	err  error
}

func (p *fakePublisher) Publish(topic string, retained bool, payload []byte) error {
	p.sent = append(p.sent, publishRecord{topic, retained, payload})
	return p.err
}

func TestBringUpStatus(t *testing.T) {
	dev := newAK()
	_, rig := newTestRig(t, testConfig(), dev)

	test.That(t, rig.Mag.Enabled(), test.ShouldBeTrue)
	test.That(t, rig.Mag.State(), test.ShouldEqual, magnetometer.Continuous)
	test.That(t, rig.Adjustment.X, test.ShouldAlmostEqual, 1.0859375)
	test.That(t, dev.Regs[0x0A], test.ShouldEqual, byte(0x16))

	st := rig.StatusAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	test.That(t, st.Enabled, test.ShouldBeTrue)
	test.That(t, st.BridgeWhoAmI, test.ShouldEqual, "0x71")
	test.That(t, st.MagWhoAmI, test.ShouldEqual, "0x48")
	test.That(t, st.State, test.ShouldEqual, "continuous")
	test.That(t, st.Time, test.ShouldEqual, "2026-01-02T03:04:05Z")
}

func TestBringUpDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MagEnabled = false
	dev := newAK()
	_, rig := newTestRig(t, cfg, dev)

	test.That(t, rig.Mag.Enabled(), test.ShouldBeFalse)
	test.That(t, dev.Writes, test.ShouldHaveLength, 0)
	test.That(t, rig.Adjustment, test.ShouldResemble, magnetometer.Identity)
	test.That(t, rig.Status.State, test.ShouldEqual, "powered-down")
	test.That(t, rig.Status.MagWhoAmI, test.ShouldEqual, "")
}

func TestBringUpBusFailure(t *testing.T) {
	sim := bridgetest.New()
	boom := errors.New("bus gone")
	sim.FailWrite = func(byte) error { return boom }

	_, err := BringUp(sim, testConfig(), noSleep{clock.New()})
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bridge: wake")
}

func TestSamplerTick(t *testing.T) {
	_, rig := newTestRig(t, testConfig(), newAK())
	pub := &fakePublisher{}
	state := &magState{}
	s := &sampler{mag: rig.Mag, adj: rig.Adjustment, pub: pub, topic: "inertial/mag", state: state}

	m, err := s.tick(time.Unix(0, 0).UTC())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pub.sent, test.ShouldHaveLength, 1)
	test.That(t, pub.sent[0].topic, test.ShouldEqual, "inertial/mag")
	test.That(t, pub.sent[0].retained, test.ShouldBeFalse)

	var got imu.MagSample
	test.That(t, json.Unmarshal(pub.sent[0].payload, &got), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, m)
	test.That(t, []int16{got.Mx, got.My, got.Mz}, test.ShouldResemble, []int16{16, 32, 48})
	test.That(t, got.Xut, test.ShouldAlmostEqual, 17.375*0.15)
	test.That(t, got.Zut, test.ShouldAlmostEqual, 52.125*0.15)
	test.That(t, got.Stale, test.ShouldBeFalse)

	latest, ok := state.latest()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, latest, test.ShouldResemble, m)
}

func TestSamplerTickStrictStale(t *testing.T) {
	cfg := testConfig()
	cfg.MagStrictReady = true
	cfg.MagPollAttempts = 3
	dev := newAK()
	dev.Regs[0x02] = 0x00
	_, rig := newTestRig(t, cfg, dev)

	pub := &fakePublisher{}
	s := &sampler{mag: rig.Mag, adj: rig.Adjustment, pub: pub, topic: "t", state: &magState{}}
	m, err := s.tick(time.Now())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Stale, test.ShouldBeTrue)
	test.That(t, m.Attempts, test.ShouldEqual, 3)
	test.That(t, pub.sent, test.ShouldHaveLength, 1)
}

func TestSamplerPublishError(t *testing.T) {
	_, rig := newTestRig(t, testConfig(), newAK())
	pub := &fakePublisher{err: errors.New("not connected")}
	s := &sampler{mag: rig.Mag, adj: rig.Adjustment, pub: pub, topic: "t", state: &magState{}}

	_, err := s.tick(time.Now())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "MQTT publish (t)")
}

func TestPublishStatusRetained(t *testing.T) {
	pub := &fakePublisher{}
	err := publishStatus(pub, "inertial/mag/status", imu.MagStatus{Enabled: true, State: "continuous"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pub.sent, test.ShouldHaveLength, 1)
	test.That(t, pub.sent[0].retained, test.ShouldBeTrue)
	test.That(t, string(pub.sent[0].payload), test.ShouldContainSubstring, `"state":"continuous"`)
}

func TestWebMux(t *testing.T) {
	state := &magState{}
	mux := newWebMux(state)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mag", nil))
	test.That(t, rec.Code, test.ShouldEqual, http.StatusServiceUnavailable)

	state.setSample(imu.MagSample{Mx: 7, Norm: 1.5})
	state.setStatus(imu.MagStatus{Enabled: true, MagWhoAmI: "0x48"})

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mag", nil))
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)
	var m imu.MagSample
	test.That(t, json.Unmarshal(rec.Body.Bytes(), &m), test.ShouldBeNil)
	test.That(t, m.Mx, test.ShouldEqual, int16(7))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mag/status", nil))
	test.That(t, rec.Body.String(), test.ShouldContainSubstring, `"mag_who_am_i":"0x48"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, rec.Body.String(), test.ShouldContainSubstring, "mag_stale_samples_total")
}

func TestWebServerShutdown(t *testing.T) {
	state := &magState{}
	state.setStatus(imu.MagStatus{Enabled: true, State: "continuous"})
	srv, addr, err := startWebServer("127.0.0.1:0", newWebMux(state))
	test.That(t, err, test.ShouldBeNil)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	url := "http://" + addr.String() + "/api/mag/status"
	resp, err := client.Get(url)
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)

	stopWebServer(srv)
	_, err = client.Get(url)
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = startWebServer("256.0.0.1:0", newWebMux(state))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConsoleFormatting(t *testing.T) {
	line := formatMagLine(imu.MagSample{Mx: 16, My: 32, Mz: 48, Xut: 0, Yut: 10, Heading: 90, Stale: true, Overrun: true})
	test.That(t, line, test.ShouldStartWith, "[MAG ]")
	test.That(t, line, test.ShouldContainSubstring, "mx=    16")
	test.That(t, line, test.ShouldContainSubstring, "E ")
	test.That(t, line, test.ShouldEndWith, " STALE DOR")

	test.That(t, formatStatusLine(imu.MagStatus{Error: "bridge: wake: nack"}), test.ShouldEqual, "[STAT] bring-up failed: bridge: wake: nack")
	test.That(t, formatStatusLine(imu.MagStatus{}), test.ShouldEqual, "[STAT] magnetometer disabled")
	test.That(t, formatStatusLine(imu.MagStatus{
		Enabled: true, BridgeWhoAmI: "0x71", MagWhoAmI: "0x48", State: "continuous", Adjustment: [3]float64{1, 1, 1},
	}), test.ShouldEqual, "[STAT] bridge=0x71 mag=0x48 state=continuous asa=(1.0000, 1.0000, 1.0000)")
}

func litPixels(img *image1bit.VerticalLSB) int {
	n := 0
	for _, b := range img.Pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

type fakeScreen struct {
	frames []image.Image
}

func (s *fakeScreen) Bounds() image.Rectangle { return image.Rect(0, 0, displayWidth, displayHeight) }

func (s *fakeScreen) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	s.frames = append(s.frames, src)
	return nil
}

func TestDisplayFrames(t *testing.T) {
	waiting := magFrame(imu.MagSample{}, false)
	test.That(t, waiting.Bounds(), test.ShouldResemble, image.Rect(0, 0, 128, 64))
	test.That(t, litPixels(waiting), test.ShouldBeGreaterThan, 0)

	sample := imu.MagSample{Xut: 12.5, Yut: -3, Zut: 40, Norm: 42.0, Heading: 350}
	live := magFrame(sample, true)
	test.That(t, live.Pix, test.ShouldNotResemble, waiting.Pix)

	sample.Stale = true
	test.That(t, magFrame(sample, true).Pix, test.ShouldNotResemble, live.Pix)

	scr := &fakeScreen{}
	data := &DisplayData{}
	test.That(t, updateDisplay(scr, data), test.ShouldBeNil)
	data.status, data.haveStatus = imu.MagStatus{Enabled: false}, true
	test.That(t, updateDisplay(scr, data), test.ShouldBeNil)
	test.That(t, scr.frames, test.ShouldHaveLength, 2)
	test.That(t, scr.frames[1].(*image1bit.VerticalLSB).Pix, test.ShouldResemble, statusFrame(imu.MagStatus{}).Pix)
	test.That(t, litPixels(splashFrame()), test.ShouldBeGreaterThan, 0)
}

func TestPrintSamples(t *testing.T) {
	_, rig := newTestRig(t, testConfig(), newAK())
	var buf bytes.Buffer
	test.That(t, printSamples(&buf, rig, 2, time.Millisecond, noSleep{clock.New()}), test.ShouldBeNil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, lines, test.ShouldHaveLength, 3)
	test.That(t, lines[0], test.ShouldEqual, "Sensitivity adjustment: X=1.0859 Y=1.0859 Z=1.0859")
	test.That(t, lines[1], test.ShouldContainSubstring, "34.75")
	test.That(t, lines[2], test.ShouldNotContainSubstring, "data-ready not seen")
}
