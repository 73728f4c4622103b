// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/mag_passthrough/internal/bridge"
	"github.com/relabs-tech/mag_passthrough/internal/bus"
	"github.com/relabs-tech/mag_passthrough/internal/config"
	"github.com/relabs-tech/mag_passthrough/internal/imu"
	"github.com/relabs-tech/mag_passthrough/internal/magnetometer"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const bridgeWhoAmI = 0x71

// Rig is a brought-up bridge and magnetometer.
type Rig struct {
	Master     *bridge.Master
	Mag        magnetometer.Driver
	Adjustment magnetometer.SensitivityAdjustment
	Status     imu.MagStatus
}

// OpenBus opens the configured I2C bus.
func OpenBus(cfg *config.Config) (*bus.I2C, i2c.BusCloser, error) {
	return bus.Open(cfg.I2CBus, physic.Frequency(cfg.I2CSpeedKHz)*physic.KiloHertz)
}

// BringUp initializes the bridge master on tr, reads the magnetometer's
// sensitivity adjustment and starts continuous measurement. A nil clk uses
// the wall clock.
func BringUp(tr bus.Transport, cfg *config.Config, clk clock.Clock) (*Rig, error) {
	timing := cfg.BridgeTiming()
	m := bridge.New(tr, bridge.Opts{Addr: cfg.BridgeAddr, Timing: &timing, Clock: clk})

	r := &Rig{Master: m, Adjustment: magnetometer.Identity}
	r.Status.Enabled = cfg.MagEnabled

	id, err := m.WhoAmI()
	if err != nil {
		return nil, fmt.Errorf("bridge who am i: %w", err)
	}
	r.Status.BridgeWhoAmI = fmt.Sprintf("0x%02X", id)
	if id != bridgeWhoAmI {
		log.Printf("bridge: WHO_AM_I=0x%02X, expected 0x%02X; continuing", id, bridgeWhoAmI)
	}

	if err := m.Initialize(); err != nil {
		return nil, err
	}

	opts := cfg.MagOpts()
	opts.Clock = clk
	r.Mag = magnetometer.New(m, opts, cfg.MagEnabled)
	if !r.Mag.Enabled() {
		log.Println("mag: disabled by config, samples will read zero")
		r.Status.State = r.Mag.State().String()
		return r, nil
	}

	if ak, ok := r.Mag.(*magnetometer.AK8963); ok {
		wia, err := ak.WhoAmI()
		if err != nil {
			return nil, err
		}
		r.Status.MagWhoAmI = fmt.Sprintf("0x%02X", wia)
		if want := magnetometer.DefaultRegisters().WhoAmIValue; wia != want {
			log.Printf("mag: WIA=0x%02X, expected 0x%02X; continuing", wia, want)
		}
	}

	adj, err := r.Mag.Calibrate()
	if err != nil {
		return nil, err
	}
	r.Adjustment = adj
	r.Status.Adjustment = [3]float64{adj.X, adj.Y, adj.Z}

	if err := r.Mag.EnableContinuous(); err != nil {
		return nil, err
	}
	r.Status.State = r.Mag.State().String()
	return r, nil
}

// StatusAt returns the rig status stamped with t.
func (r *Rig) StatusAt(t time.Time) imu.MagStatus {
	s := r.Status
	s.Time = t.Format(time.RFC3339)
	return s
}
