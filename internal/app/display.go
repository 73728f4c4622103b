package app

import (
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/mag_passthrough/internal/config"
	"github.com/relabs-tech/mag_passthrough/internal/imu"
	"github.com/relabs-tech/mag_passthrough/internal/orientation"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// screen is the part of *ssd1306.Dev the display loop draws on.
type screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	mag        imu.MagSample
	haveMag    bool
	status     imu.MagStatus
	haveStatus bool
}

func (d *DisplayData) snapshot() (imu.MagSample, bool, imu.MagStatus, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mag, d.haveMag, d.status, d.haveStatus
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on %s", cfg.I2CBus)

	if err := dev.Draw(dev.Bounds(), splashFrame(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeJSON(client, cfg.TopicMag, func(m imu.MagSample) {
		data.mu.Lock()
		data.mag, data.haveMag = m, true
		data.mu.Unlock()
	}); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.TopicMag, err)
	}
	if err := subscribeJSON(client, cfg.TopicMagStatus, func(st imu.MagStatus) {
		data.mu.Lock()
		data.status, data.haveStatus = st, true
		data.mu.Unlock()
	}); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.TopicMagStatus, err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		if err := updateDisplay(dev, data); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func updateDisplay(dev screen, data *DisplayData) error {
	m, haveMag, st, haveStatus := data.snapshot()
	var img *image1bit.VerticalLSB
	if haveStatus && (st.Error != "" || !st.Enabled) {
		img = statusFrame(st)
	} else {
		img = magFrame(m, haveMag)
	}
	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// magFrame renders one sample: the three axes in microtesla, then field
// strength and heading. Stale samples are marked on the last line.
func magFrame(m imu.MagSample, haveData bool) *image1bit.VerticalLSB {
	img, d := newFrame()
	if !haveData {
		drawLine(d, 0, 26, "Magnetometer")
		drawLine(d, 0, 39, "Waiting...")
		return img
	}

	drawLine(d, 0, 13, fmt.Sprintf("X:%8.2f uT", m.Xut))
	drawLine(d, 0, 26, fmt.Sprintf("Y:%8.2f uT", m.Yut))
	drawLine(d, 0, 39, fmt.Sprintf("Z:%8.2f uT", m.Zut))

	last := fmt.Sprintf("%5.1f %3.0f%-2s", m.Norm, m.Heading, orientation.Cardinal(m.Heading))
	switch {
	case m.Stale:
		last += " old"
	case m.Overflow:
		last += " ovf"
	}
	drawLine(d, 0, 52, last)
	return img
}

func statusFrame(st imu.MagStatus) *image1bit.VerticalLSB {
	img, d := newFrame()
	if st.Error != "" {
		drawLine(d, 0, 13, "Mag bring-up")
		drawLine(d, 0, 26, "FAILED")
		msg := st.Error
		if len(msg) > 18 {
			msg = msg[:18]
		}
		drawLine(d, 0, 39, msg)
		return img
	}
	drawLine(d, 0, 26, "Magnetometer")
	drawLine(d, 0, 39, "disabled")
	return img
}

func splashFrame() *image1bit.VerticalLSB {
	img, d := newFrame()
	drawLine(d, 10, 26, "AK8963 via")
	drawLine(d, 10, 43, "MPU-9250")
	drawLine(d, 25, 56, "passthrough")
	return img
}
