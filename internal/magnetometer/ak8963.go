// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magnetometer

import (
	"fmt"
	"log"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/relabs-tech/mag_passthrough/internal/metrics"
	"github.com/relabs-tech/mag_passthrough/internal/retry"
)

// Opts configures an AK8963. Nil or zero fields take their defaults.
type Opts struct {
	Addr      uint8 // DefaultAddr when zero
	Registers *Registers
	Timing    *Timing
	Mode      byte // continuous mode code, ModeContinuous2 when zero
	Clock     clock.Clock

	// StrictReadiness makes PollSample return ErrStaleData when data-ready
	// was never observed. The sample is returned either way.
	StrictReadiness bool
}

// AK8963 is the full magnetometer driver.
type AK8963 struct {
	relay  Relay
	addr   uint8
	regs   Registers
	timing Timing
	mode   byte
	strict bool
	clk    clock.Clock

	mu     sync.Mutex
	state  State
	adj    *SensitivityAdjustment
	resume bool // Calibrate left continuous mode and has not restored it
}

// NewAK8963 returns a driver for the AK8963 behind relay. The device is
// assumed powered down; nothing is written until a method is called.
func NewAK8963(relay Relay, opts Opts) *AK8963 {
	d := &AK8963{
		relay:  relay,
		addr:   opts.Addr,
		regs:   DefaultRegisters(),
		timing: DefaultTiming(),
		mode:   opts.Mode,
		strict: opts.StrictReadiness,
		clk:    opts.Clock,
		state:  PoweredDown,
	}
	if d.addr == 0 {
		d.addr = DefaultAddr
	}
	if opts.Registers != nil {
		d.regs = *opts.Registers
	}
	if opts.Timing != nil {
		d.timing = *opts.Timing
	}
	if d.timing.PollAttempts < 1 {
		d.timing.PollAttempts = 1
	}
	if d.mode == 0 {
		d.mode = ModeContinuous2
	}
	if d.clk == nil {
		d.clk = clock.New()
	}
	return d
}

// Enabled implements Driver.
func (d *AK8963) Enabled() bool { return true }

// State implements Driver.
func (d *AK8963) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Adjustment returns the sensitivity adjustment once Calibrate succeeded.
func (d *AK8963) Adjustment() (SensitivityAdjustment, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.adj == nil {
		return SensitivityAdjustment{}, false
	}
	return *d.adj, true
}

// WhoAmI reads the device ID register (0x48 on an AK8963).
func (d *AK8963) WhoAmI() (byte, error) {
	b, err := d.relay.RelayRead(d.addr, d.regs.WIA, 1)
	if err == nil {
		err = checkLen(b, 1)
	}
	if err != nil {
		return 0, fmt.Errorf("mag: who am i: %w", err)
	}
	return b[0], nil
}

func checkLen(b []byte, want int) error {
	if len(b) < want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrShortRead, len(b), want)
	}
	return nil
}

func (d *AK8963) setMode(code byte, next State) error {
	if err := d.relay.RelayWrite(d.addr, d.regs.CNTL1, code); err != nil {
		return err
	}
	d.clk.Sleep(d.timing.ModeSettle)
	d.state = next
	return nil
}

// Calibrate implements Driver. It powers the device down, enters fuse ROM
// mode, reads ASAX..ASAZ and powers down again. If the device was in
// continuous mode it is put back there afterwards.
//
// The fuse ROM is read once per driver; later calls return the cached
// adjustment without touching the bus, except to finish a resume to
// continuous mode that an earlier call could not complete.
func (d *AK8963) Calibrate() (SensitivityAdjustment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.adj == nil {
		if d.state == Continuous {
			d.resume = true
		}
		adj, err := d.readFuse()
		if err != nil {
			return SensitivityAdjustment{}, err
		}
		d.adj = &adj
	}

	if d.resume {
		if err := d.setMode(d.mode, Continuous); err != nil {
			return *d.adj, &CalibrationError{Step: "resume continuous", Err: err}
		}
		d.resume = false
	}
	return *d.adj, nil
}

func (d *AK8963) readFuse() (SensitivityAdjustment, error) {
	if err := d.setMode(ModePowerDown, PoweredDown); err != nil {
		return SensitivityAdjustment{}, &CalibrationError{Step: "power down", Err: err}
	}
	if err := d.setMode(ModeFuseROM, FuseROM); err != nil {
		return SensitivityAdjustment{}, &CalibrationError{Step: "enter fuse rom", Err: err}
	}
	raw, err := d.relay.RelayRead(d.addr, d.regs.ASAX, 3)
	if err == nil {
		err = checkLen(raw, 3)
	}
	if err != nil {
		return SensitivityAdjustment{}, &CalibrationError{Step: "read sensitivity", Err: err}
	}
	adj := AdjustmentFromFuseBytes([3]byte{raw[0], raw[1], raw[2]})
	if err := d.setMode(ModePowerDown, PoweredDown); err != nil {
		return SensitivityAdjustment{}, &CalibrationError{Step: "leave fuse rom", Err: err}
	}
	log.Printf("mag: sensitivity adjustment ASA=[%d %d %d] X=%.4f Y=%.4f Z=%.4f",
		raw[0], raw[1], raw[2], adj.X, adj.Y, adj.Z)
	return adj, nil
}

// EnableContinuous implements Driver. The device always passes through
// power-down before the measurement mode is written.
func (d *AK8963) EnableContinuous() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.setMode(ModePowerDown, PoweredDown); err != nil {
		return &ConfigurationError{Step: "power down", Err: err}
	}
	if err := d.setMode(d.mode, Continuous); err != nil {
		return &ConfigurationError{Step: fmt.Sprintf("mode 0x%02X", d.mode), Err: err}
	}
	d.resume = false
	log.Printf("mag: continuous measurement enabled (CNTL1=0x%02X)", d.mode)
	return nil
}

// PollSample implements Driver. It reads ST1 up to PollAttempts times,
// PollBackoff apart, until data-ready is set, then reads the 7-byte data
// block. Running out of attempts is not an error: the block is read anyway
// and the sample is marked Stale (and ErrStaleData returned in strict mode).
func (d *AK8963) PollSample(adj *SensitivityAdjustment) (Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var st1 byte
	res, err := retry.Do(d.timing.PollAttempts, d.timing.PollBackoff, d.clk, func(int) (bool, error) {
		b, err := d.relay.RelayRead(d.addr, d.regs.ST1, 1)
		if err == nil {
			err = checkLen(b, 1)
		}
		if err != nil {
			return false, err
		}
		st1 = b[0]
		return st1&d.regs.DRDYBit != 0, nil
	})
	metrics.PollAttempts.Observe(float64(res.Attempts))
	if err != nil {
		return Sample{}, fmt.Errorf("mag: status: %w", err)
	}

	data, err := d.relay.RelayRead(d.addr, d.regs.HXL, 7)
	if err == nil {
		err = checkLen(data, 7)
	}
	if err != nil {
		return Sample{}, fmt.Errorf("mag: data: %w", err)
	}
	var block [7]byte
	copy(block[:], data)

	s := decodeSample(block, adj, d.regs.HOFLBit)
	s.Overrun = st1&d.regs.DORBit != 0
	s.Attempts = res.Attempts
	s.Stale = !res.Satisfied

	if s.Overflow {
		metrics.OverflowSamples.Inc()
	}
	if s.Stale {
		metrics.StaleSamples.Inc()
		if d.strict {
			return s, ErrStaleData
		}
	}
	return s, nil
}
