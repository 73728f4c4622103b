// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"fmt"
	"log"

	"github.com/relabs-tech/mag_passthrough/internal/metrics"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// I2C is a Transport over a periph.io I2C bus.
type I2C struct {
	bus i2c.Bus
}

// NewI2C wraps an already opened bus.
func NewI2C(b i2c.Bus) *I2C {
	return &I2C{bus: b}
}

// Open initializes the periph host, opens the named bus ("" for the first
// one available) and sets its clock when speed is non-zero.
func Open(name string, speed physic.Frequency) (*I2C, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	if speed != 0 {
		if err := b.SetSpeed(speed); err != nil {
			// Not every driver supports it; the kernel default is usable.
			log.Printf("bus: set speed %s on %s: %v", speed, b, err)
		}
	}
	return NewI2C(b), b, nil
}

func (t *I2C) dev(addr uint16) *i2c.Dev {
	return &i2c.Dev{Bus: t.bus, Addr: addr}
}

// ReadRegister implements Transport.
func (t *I2C) ReadRegister(addr uint16, reg byte) (byte, error) {
	var r [1]byte
	if err := t.dev(addr).Tx([]byte{reg}, r[:]); err != nil {
		metrics.BusOps.WithLabelValues("read", "error").Inc()
		return 0, &TransportError{Op: "read", Addr: addr, Reg: reg, Err: err}
	}
	metrics.BusOps.WithLabelValues("read", "ok").Inc()
	return r[0], nil
}

// WriteRegister implements Transport.
func (t *I2C) WriteRegister(addr uint16, reg, value byte) error {
	if err := t.dev(addr).Tx([]byte{reg, value}, nil); err != nil {
		metrics.BusOps.WithLabelValues("write", "error").Inc()
		return &TransportError{Op: "write", Addr: addr, Reg: reg, Err: err}
	}
	metrics.BusOps.WithLabelValues("write", "ok").Inc()
	return nil
}

// ReadRegisters implements BurstReader.
func (t *I2C) ReadRegisters(addr uint16, reg byte, buf []byte) error {
	if err := t.dev(addr).Tx([]byte{reg}, buf); err != nil {
		metrics.BusOps.WithLabelValues("burst", "error").Inc()
		return &TransportError{Op: "burst", Addr: addr, Reg: reg, Err: err}
	}
	metrics.BusOps.WithLabelValues("burst", "ok").Inc()
	return nil
}

func (t *I2C) String() string {
	return t.bus.String()
}
