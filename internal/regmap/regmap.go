// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package regmap describes the registers involved in magnetometer
// passthrough: the MPU-9250 power, I2C master and slave 0 registers, and the
// AK8963 register file behind it. The register debug tool serves these maps.
package regmap

import (
	"fmt"
	"sort"
)

// Access is the host-visible access mode of a register.
type Access string

const (
	ReadOnly  Access = "R"
	ReadWrite Access = "RW"
)

// Field is a named bit range inside a register.
type Field struct {
	Bits        string `json:"bits"` // "7", "3:0"
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// Register is the metadata for one register.
type Register struct {
	Addr        byte
	Name        string
	Description string
	Access      Access
	Default     byte
	Fields      []Field
}

// Map is an ordered register map for one device.
type Map struct {
	Device string
	regs   []Register
	byAddr map[byte]int
}

func newMap(device string, regs []Register) *Map {
	sort.Slice(regs, func(i, j int) bool { return regs[i].Addr < regs[j].Addr })
	m := &Map{Device: device, regs: regs, byAddr: make(map[byte]int, len(regs))}
	for i, r := range regs {
		if _, dup := m.byAddr[r.Addr]; dup {
			panic(fmt.Sprintf("regmap: %s: duplicate register 0x%02X", device, r.Addr))
		}
		m.byAddr[r.Addr] = i
	}
	return m
}

// Registers returns the registers in address order.
func (m *Map) Registers() []Register { return m.regs }

// Lookup returns the register at addr.
func (m *Map) Lookup(addr byte) (Register, bool) {
	i, ok := m.byAddr[addr]
	if !ok {
		return Register{}, false
	}
	return m.regs[i], true
}

// Writable reports whether addr is a known read-write register.
func (m *Map) Writable(addr byte) bool {
	r, ok := m.Lookup(addr)
	return ok && r.Access == ReadWrite
}

// Readable returns the addresses of every register in the map.
func (m *Map) Readable() []byte {
	out := make([]byte, len(m.regs))
	for i, r := range m.regs {
		out[i] = r.Addr
	}
	return out
}

func ro(addr byte, name, desc string, fields ...Field) Register {
	return Register{Addr: addr, Name: name, Description: desc, Access: ReadOnly, Fields: fields}
}

func rw(addr byte, name, desc string, def byte, fields ...Field) Register {
	return Register{Addr: addr, Name: name, Description: desc, Access: ReadWrite, Default: def, Fields: fields}
}

func extSens(n int) Register {
	return ro(0x49+byte(n), fmt.Sprintf("EXT_SENS_DATA_%02d", n), fmt.Sprintf("Relay data window byte %d", n))
}

// Bridge is the MPU-9250 side of the passthrough.
var Bridge = newMap("mpu9250", []Register{
	rw(0x24, "I2C_MST_CTRL", "Internal I2C master control", 0x00,
		Field{"7", "MULT_MST_EN", "Multi-master enable", ""},
		Field{"6", "WAIT_FOR_ES", "Delay data-ready until external data is loaded", ""},
		Field{"4", "I2C_MST_P_NSR", "Stop between reads", "0=Restart, 1=Stop"},
		Field{"3:0", "I2C_MST_CLK", "Master clock divider", "13=400kHz"},
	),
	rw(0x25, "I2C_SLV0_ADDR", "Slave 0 target address", 0x00,
		Field{"7", "I2C_SLV0_RNW", "Transfer direction", "0=Write, 1=Read"},
		Field{"6:0", "I2C_ID_0", "7-bit target address", ""},
	),
	rw(0x26, "I2C_SLV0_REG", "Slave 0 target register", 0x00),
	rw(0x27, "I2C_SLV0_CTRL", "Slave 0 control", 0x00,
		Field{"7", "I2C_SLV0_EN", "Enable transfer", ""},
		Field{"6", "I2C_SLV0_BYTE_SW", "Swap byte pairs", ""},
		Field{"5", "I2C_SLV0_REG_DIS", "Skip register write", ""},
		Field{"4", "I2C_SLV0_GRP", "Pair grouping", ""},
		Field{"3:0", "I2C_SLV0_LENG", "Bytes to transfer", "1-15"},
	),
	rw(0x37, "INT_PIN_CFG", "Interrupt pin and bypass configuration", 0x00,
		Field{"1", "BYPASS_EN", "Connect auxiliary bus to host bus", "Must stay 0 for passthrough"},
	),
	ro(0x3A, "INT_STATUS", "Interrupt status",
		Field{"3", "FSYNC_INT", "FSYNC interrupt", ""},
		Field{"0", "RAW_DATA_RDY_INT", "Sensor data ready", ""},
	),
	extSens(0), extSens(1), extSens(2), extSens(3), extSens(4), extSens(5), extSens(6),
	rw(0x63, "I2C_SLV0_DO", "Slave 0 data out", 0x00),
	rw(0x67, "I2C_MST_DELAY_CTRL", "Master delay control", 0x00,
		Field{"7", "DELAY_ES_SHADOW", "Delay shadowing of external data", ""},
		Field{"0", "I2C_SLV0_DLY_EN", "Slave 0 reduced access rate", ""},
	),
	rw(0x6A, "USER_CTRL", "User control", 0x00,
		Field{"5", "I2C_MST_EN", "Enable internal I2C master", ""},
		Field{"4", "I2C_IF_DIS", "Disable host I2C interface", "Leave 0 on an I2C host"},
		Field{"1", "I2C_MST_RST", "Reset I2C master", ""},
	),
	rw(0x6B, "PWR_MGMT_1", "Power management 1", 0x01,
		Field{"7", "H_RESET", "Device reset", ""},
		Field{"6", "SLEEP", "Sleep", ""},
		Field{"2:0", "CLKSEL", "Clock source", "0=Internal 20MHz, 1=Auto PLL"},
	),
	ro(0x75, "WHO_AM_I", "Device ID", Field{"7:0", "WHOAMI", "Device ID", "0x71=MPU-9250"}),
})

func asa(addr byte, axis string) Register {
	return ro(addr, "ASA"+axis, axis+" sensitivity adjustment (fuse ROM mode only)",
		Field{"7:0", "ASA" + axis, "Factory trim", "adj = (ASA-128)/256 + 1"})
}

// AK8963 is the magnetometer reached through the relay.
var AK8963 = newMap("ak8963", []Register{
	ro(0x00, "WIA", "Device ID", Field{"7:0", "WIA", "Device ID", "0x48=AK8963"}),
	ro(0x01, "INFO", "Device information"),
	ro(0x02, "ST1", "Status 1",
		Field{"1", "DOR", "Data overrun", ""},
		Field{"0", "DRDY", "Data ready", ""},
	),
	ro(0x03, "HXL", "X axis low byte"),
	ro(0x04, "HXH", "X axis high byte"),
	ro(0x05, "HYL", "Y axis low byte"),
	ro(0x06, "HYH", "Y axis high byte"),
	ro(0x07, "HZL", "Z axis low byte"),
	ro(0x08, "HZH", "Z axis high byte"),
	ro(0x09, "ST2", "Status 2, read ends the measurement",
		Field{"4", "BITM", "Output width", "0=14-bit, 1=16-bit"},
		Field{"3", "HOFL", "Sensor overflow", ""},
	),
	rw(0x0A, "CNTL1", "Control 1", 0x00,
		Field{"4", "BIT", "Output width", "0=14-bit, 1=16-bit"},
		Field{"3:0", "MODE", "Operation mode", "0=Power down, 1=Single, 2=Cont 8Hz, 6=Cont 100Hz, 8=Ext trigger, 15=Fuse ROM"},
	),
	rw(0x0B, "CNTL2", "Control 2", 0x00, Field{"0", "SRST", "Soft reset", ""}),
	rw(0x0C, "ASTC", "Self-test control", 0x00, Field{"6", "SELF", "Generate self-test field", ""}),
	asa(0x10, "X"),
	asa(0x11, "Y"),
	asa(0x12, "Z"),
})

// ForDevice returns the map for "mpu9250" or "ak8963".
func ForDevice(device string) (*Map, error) {
	switch device {
	case "", Bridge.Device:
		return Bridge, nil
	case AK8963.Device:
		return AK8963, nil
	}
	return nil, fmt.Errorf("regmap: unknown device %q", device)
}
