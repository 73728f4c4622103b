// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bridge

import "time"

// DefaultAddr is the MPU-9250 address with AD0 tied low.
const DefaultAddr = 0x68

// Registers is the bridge register map used to drive the internal I2C
// master. Values are fixed by the hardware; the struct exists so the map
// is injected rather than scattered as constants.
type Registers struct {
	PowerMgmt     byte // PWR_MGMT_1
	UserCtrl      byte // USER_CTRL
	MasterCtrl    byte // I2C_MST_CTRL
	SlaveAddr     byte // I2C_SLV0_ADDR
	SlaveReg      byte // I2C_SLV0_REG
	SlaveCtrl     byte // I2C_SLV0_CTRL
	SlaveDataOut  byte // I2C_SLV0_DO
	ExtSensData00 byte // EXT_SENS_DATA_00
	WhoAmI        byte // WHO_AM_I

	WakeValue       byte // written to PowerMgmt; clears SLEEP, internal clock
	MasterEnableBit byte // USER_CTRL I2C_MST_EN
	MasterClock     byte // I2C_MST_CLK field, 0x0D = 400 kHz
	SlaveEnableBit  byte // I2C_SLV0_EN in SlaveCtrl
	ReadFlag        byte // I2C_SLV0_RNW in SlaveAddr
}

// DefaultRegisters returns the MPU-9250 register map.
func DefaultRegisters() Registers {
	return Registers{
		PowerMgmt:     0x6B,
		UserCtrl:      0x6A,
		MasterCtrl:    0x24,
		SlaveAddr:     0x25,
		SlaveReg:      0x26,
		SlaveCtrl:     0x27,
		SlaveDataOut:  0x63,
		ExtSensData00: 0x49,
		WhoAmI:        0x75,

		WakeValue:       0x00,
		MasterEnableBit: 0x20,
		MasterClock:     0x0D,
		SlaveEnableBit:  0x80,
		ReadFlag:        0x80,
	}
}

// Timing holds the settle delays the hardware needs between steps.
type Timing struct {
	InitSettle  time.Duration // after each Initialize write
	RelaySettle time.Duration // after each relay trigger
}

// DefaultTiming matches the delays the bridge is known to work with.
func DefaultTiming() Timing {
	return Timing{
		InitSettle:  100 * time.Millisecond,
		RelaySettle: 10 * time.Millisecond,
	}
}
