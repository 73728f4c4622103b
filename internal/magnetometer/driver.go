// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package magnetometer sequences an AK8963 that sits behind an MPU-9250
// bridge: fuse ROM calibration, continuous measurement and data-ready
// polling, plus decoding of the raw sample block.
package magnetometer

// Relay is the passthrough access the driver needs; *bridge.Master
// implements it.
type Relay interface {
	RelayWrite(target uint8, reg, value byte) error
	RelayRead(target uint8, reg byte, length int) ([]byte, error)
}

// State is the AK8963 operating mode as last set by the driver.
type State int

const (
	PoweredDown State = iota
	FuseROM
	Continuous
)

func (s State) String() string {
	switch s {
	case FuseROM:
		return "fuse-rom"
	case Continuous:
		return "continuous"
	default:
		return "powered-down"
	}
}

// Driver is the magnetometer capability set. Pick the variant with New.
type Driver interface {
	// Calibrate reads the factory sensitivity adjustment from fuse ROM.
	Calibrate() (SensitivityAdjustment, error)
	// EnableContinuous puts the device in continuous measurement mode.
	EnableContinuous() error
	// PollSample waits (bounded) for data-ready and reads one sample,
	// scaled by adj when adj is non-nil.
	PollSample(adj *SensitivityAdjustment) (Sample, error)
	State() State
	Enabled() bool
}

// New returns the full AK8963 driver on relay when enabled, and a Disabled
// driver otherwise.
func New(relay Relay, opts Opts, enabled bool) Driver {
	if !enabled {
		return Disabled{}
	}
	return NewAK8963(relay, opts)
}

// Disabled is a Driver for boards without a usable magnetometer. Every
// operation succeeds without touching the bus and samples read zero.
type Disabled struct{}

func (Disabled) Calibrate() (SensitivityAdjustment, error) { return Identity, nil }

func (Disabled) EnableContinuous() error { return nil }

func (Disabled) PollSample(*SensitivityAdjustment) (Sample, error) { return Sample{}, nil }

func (Disabled) State() State { return PoweredDown }

func (Disabled) Enabled() bool { return false }
