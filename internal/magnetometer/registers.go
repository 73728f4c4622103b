// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magnetometer

import "time"

// DefaultAddr is the AK8963 address on the bridge's auxiliary bus.
const DefaultAddr = 0x0C

// CNTL1 mode codes.
const (
	ModePowerDown     byte = 0x00
	ModeFuseROM       byte = 0x0F
	ModeContinuous1   byte = 0x12 // 8 Hz, 16-bit
	ModeContinuous2   byte = 0x16 // 100 Hz, 16-bit
	modeSelectionMask byte = 0x0F // MODE[3:0]; bit 4 selects 16-bit output
)

// Registers is the AK8963 register map.
type Registers struct {
	WIA   byte // device ID, reads WhoAmIValue
	ST1   byte // status 1: data ready, data overrun
	HXL   byte // start of HXL..HZH, ST2
	CNTL1 byte // mode control
	ASAX  byte // start of ASAX, ASAY, ASAZ (fuse ROM)

	WhoAmIValue byte
	DRDYBit     byte // ST1
	DORBit      byte // ST1
	HOFLBit     byte // ST2
}

// DefaultRegisters returns the AK8963 register map.
func DefaultRegisters() Registers {
	return Registers{
		WIA:   0x00,
		ST1:   0x02,
		HXL:   0x03,
		CNTL1: 0x0A,
		ASAX:  0x10,

		WhoAmIValue: 0x48,
		DRDYBit:     0x01,
		DORBit:      0x02,
		HOFLBit:     0x08,
	}
}

// Timing holds the delays around mode changes and data-ready polling.
type Timing struct {
	ModeSettle   time.Duration // after each CNTL1 write
	PollAttempts int           // status reads before reading data anyway
	PollBackoff  time.Duration // between status reads
}

// DefaultTiming is 10 ms settle, 10 status reads 10 ms apart.
func DefaultTiming() Timing {
	return Timing{
		ModeSettle:   10 * time.Millisecond,
		PollAttempts: 10,
		PollBackoff:  10 * time.Millisecond,
	}
}

// ValidMeasurementMode reports whether code selects a continuous mode.
func ValidMeasurementMode(code byte) bool {
	switch code & modeSelectionMask {
	case ModeContinuous1 & modeSelectionMask, ModeContinuous2 & modeSelectionMask:
		return true
	}
	return false
}
