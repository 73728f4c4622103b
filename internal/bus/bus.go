// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus provides single-register access to devices on an I2C bus.
package bus

import (
	"fmt"
)

// Transport reads and writes one register byte on a device.
type Transport interface {
	ReadRegister(addr uint16, reg byte) (byte, error)
	WriteRegister(addr uint16, reg, value byte) error
}

// BurstReader is implemented by transports that can read a contiguous
// register range in one bus transaction.
type BurstReader interface {
	ReadRegisters(addr uint16, reg byte, buf []byte) error
}

// TransportError reports a failed register access.
type TransportError struct {
	Op   string // "read", "write" or "burst"
	Addr uint16
	Reg  byte
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bus %s 0x%02X reg 0x%02X: %v", e.Op, e.Addr, e.Reg, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ReadBlock reads len(buf) registers starting at reg. It uses a burst read
// when tr supports one and falls back to sequential single reads otherwise.
func ReadBlock(tr Transport, addr uint16, reg byte, buf []byte) error {
	if br, ok := tr.(BurstReader); ok {
		return br.ReadRegisters(addr, reg, buf)
	}
	for i := range buf {
		v, err := tr.ReadRegister(addr, reg+byte(i))
		if err != nil {
			return err
		}
		buf[i] = v
	}
	return nil
}
