// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bridge drives the MPU-9250 internal I2C master so that registers
// on a device wired only to its auxiliary bus can be read and written.
//
// Every relay is a short sequence of bridge register writes (address,
// register, optional data-out, control) followed by a settle delay and, for
// reads, a read of the external sensor data window. The bridge has a single
// slot; Master serialises whole sequences so two callers never interleave.
package bridge

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/relabs-tech/mag_passthrough/internal/bus"
	"github.com/relabs-tech/mag_passthrough/internal/metrics"
)

// ErrNotInitialized is returned by relay calls before a successful Initialize.
var ErrNotInitialized = errors.New("bridge: internal master not initialized")

// Opts configures a Master. Nil fields take their defaults.
type Opts struct {
	Addr      uint16 // bridge address, DefaultAddr when zero
	Registers *Registers
	Timing    *Timing
	Clock     clock.Clock
}

// Master owns the bridge's passthrough slot.
type Master struct {
	tr    bus.Transport
	addr  uint16
	regs  Registers
	timer Timing
	clk   clock.Clock

	mu    sync.Mutex // held for a whole relay sequence
	ready bool
}

// New returns a Master on tr. It does not touch the hardware.
func New(tr bus.Transport, opts Opts) *Master {
	m := &Master{
		tr:    tr,
		addr:  opts.Addr,
		regs:  DefaultRegisters(),
		timer: DefaultTiming(),
		clk:   opts.Clock,
	}
	if m.addr == 0 {
		m.addr = DefaultAddr
	}
	if opts.Registers != nil {
		m.regs = *opts.Registers
	}
	if opts.Timing != nil {
		m.timer = *opts.Timing
	}
	if m.clk == nil {
		m.clk = clock.New()
	}
	return m
}

// Registers returns the register map in use.
func (m *Master) Registers() Registers { return m.regs }

// Initialize wakes the bridge, enables its internal master and sets the
// master clock, waiting InitSettle after each write. On failure the bridge
// state is undefined and the Master refuses relay calls.
func (m *Master) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false

	steps := []struct {
		name  string
		reg   byte
		value byte
	}{
		{"wake", m.regs.PowerMgmt, m.regs.WakeValue},
		{"enable master", m.regs.UserCtrl, m.regs.MasterEnableBit},
		{"master clock", m.regs.MasterCtrl, m.regs.MasterClock},
	}
	for _, s := range steps {
		if err := m.tr.WriteRegister(m.addr, s.reg, s.value); err != nil {
			return fmt.Errorf("bridge: %s: %w", s.name, err)
		}
		m.clk.Sleep(m.timer.InitSettle)
	}

	m.ready = true
	log.Printf("bridge: internal I2C master enabled at 0x%02X (clock code 0x%02X)", m.addr, m.regs.MasterClock)
	return nil
}

// RelayWrite writes value to reg on the secondary device at target.
func (m *Master) RelayWrite(target uint8, reg, value byte) error {
	_, err := m.Do(WriteTx(target, reg, value))
	return err
}

// RelayRead reads length (1-7) consecutive registers from the secondary
// device at target, in transfer order. It does not retry.
func (m *Master) RelayRead(target uint8, reg byte, length int) ([]byte, error) {
	return m.Do(ReadTx(target, reg, length))
}

// Do runs tx while holding the slot. For reads it returns the bytes copied
// out of the data window.
func (m *Master) Do(tx Transaction) ([]byte, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return nil, ErrNotInitialized
	}

	dir := tx.Direction.String()
	metrics.RelayTransactions.WithLabelValues(dir).Inc()

	for _, s := range tx.steps(m.regs) {
		if err := m.tr.WriteRegister(m.addr, s.reg, s.value); err != nil {
			metrics.RelayErrors.WithLabelValues(dir).Inc()
			return nil, fmt.Errorf("bridge: relay %s: %w", tx, err)
		}
	}
	m.clk.Sleep(m.timer.RelaySettle)

	if tx.Direction == Write {
		return nil, nil
	}

	buf := make([]byte, tx.Length)
	if err := bus.ReadBlock(m.tr, m.addr, m.regs.ExtSensData00, buf); err != nil {
		metrics.RelayErrors.WithLabelValues(dir).Inc()
		return nil, fmt.Errorf("bridge: relay %s: data window: %w", tx, err)
	}
	return buf, nil
}

// WhoAmI reads the bridge identity register (0x71 for an MPU-9250).
func (m *Master) WhoAmI() (byte, error) {
	return m.ReadRegister(m.regs.WhoAmI)
}

// ReadRegister reads a bridge register directly. It waits for any relay in
// flight so the data window is not read mid-transaction.
func (m *Master) ReadRegister(reg byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tr.ReadRegister(m.addr, reg)
}

// WriteRegister writes a bridge register directly.
func (m *Master) WriteRegister(reg, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tr.WriteRegister(m.addr, reg, value)
}
