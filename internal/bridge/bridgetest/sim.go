// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bridgetest simulates an MPU-9250 bridge and the devices on its
// auxiliary bus, for tests that need the relay to behave like hardware
// rather than replay a fixed byte script.
package bridgetest

import (
	"errors"
	"runtime"
	"sync"

	"github.com/relabs-tech/mag_passthrough/internal/bridge"
)

// ErrNACK is returned for accesses to an address other than the bridge.
var ErrNACK = errors.New("bridgetest: no device acknowledged")

// Op is one access seen by the simulated bridge.
type Op struct {
	Write bool
	Reg   byte
	Value byte
}

// Device is a register file on the auxiliary bus. Hooks, when set, override
// plain register storage.
type Device struct {
	Regs      [256]byte
	ReadHook  func(reg byte) (byte, bool)
	WriteHook func(reg, value byte)
	Writes    []Op
}

func (d *Device) read(reg byte) byte {
	if d.ReadHook != nil {
		if v, ok := d.ReadHook(reg); ok {
			return v
		}
	}
	return d.Regs[reg]
}

func (d *Device) write(reg, value byte) {
	d.Writes = append(d.Writes, Op{Write: true, Reg: reg, Value: value})
	if d.WriteHook != nil {
		d.WriteHook(reg, value)
		return
	}
	d.Regs[reg] = value
}

// Sim implements bus.Transport and bus.BurstReader.
type Sim struct {
	Addr uint16
	Regs bridge.Registers

	// FailWrite and FailRead inject bus errors for a bridge register.
	FailWrite func(reg byte) error
	FailRead  func(reg byte) error

	// Yield makes every access reschedule, to shake out interleavings.
	Yield bool

	mu        sync.Mutex
	bridgeReg [256]byte
	devices   map[uint8]*Device
	log       []Op
}

// New returns a simulated bridge at bridge.DefaultAddr with the default map.
func New() *Sim {
	s := &Sim{
		Addr:    bridge.DefaultAddr,
		Regs:    bridge.DefaultRegisters(),
		devices: map[uint8]*Device{},
	}
	s.bridgeReg[s.Regs.WhoAmI] = 0x71
	s.bridgeReg[s.Regs.PowerMgmt] = 0x01
	return s
}

// Attach puts dev on the auxiliary bus at the 7-bit address addr.
func (s *Sim) Attach(addr uint8, dev *Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[addr] = dev
}

// Log returns a copy of every bridge access so far.
func (s *Sim) Log() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.log...)
}

// Reg returns the current value of a bridge register.
func (s *Sim) Reg(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridgeReg[reg]
}

// ReadRegister implements bus.Transport.
func (s *Sim) ReadRegister(addr uint16, reg byte) (byte, error) {
	if s.Yield {
		runtime.Gosched()
	}
	if addr != s.Addr {
		return 0, ErrNACK
	}
	if s.FailRead != nil {
		if err := s.FailRead(reg); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.bridgeReg[reg]
	s.log = append(s.log, Op{Reg: reg, Value: v})
	return v, nil
}

// ReadRegisters implements bus.BurstReader.
func (s *Sim) ReadRegisters(addr uint16, reg byte, buf []byte) error {
	for i := range buf {
		v, err := s.ReadRegister(addr, reg+byte(i))
		if err != nil {
			return err
		}
		buf[i] = v
	}
	return nil
}

// WriteRegister implements bus.Transport. A write to the slave control
// register with the enable bit set runs the programmed relay immediately.
func (s *Sim) WriteRegister(addr uint16, reg, value byte) error {
	if s.Yield {
		runtime.Gosched()
	}
	if addr != s.Addr {
		return ErrNACK
	}
	if s.FailWrite != nil {
		if err := s.FailWrite(reg); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, Op{Write: true, Reg: reg, Value: value})
	s.bridgeReg[reg] = value
	if reg == s.Regs.SlaveCtrl && value&s.Regs.SlaveEnableBit != 0 {
		s.relay(value & 0x0F)
	}
	return nil
}

func (s *Sim) relay(length byte) {
	if s.bridgeReg[s.Regs.UserCtrl]&s.Regs.MasterEnableBit == 0 {
		return
	}
	addrByte := s.bridgeReg[s.Regs.SlaveAddr]
	dev, ok := s.devices[addrByte&0x7F]
	if !ok {
		return
	}
	reg := s.bridgeReg[s.Regs.SlaveReg]
	if addrByte&s.Regs.ReadFlag == 0 {
		dev.write(reg, s.bridgeReg[s.Regs.SlaveDataOut])
		return
	}
	for i := byte(0); i < length; i++ {
		s.bridgeReg[s.Regs.ExtSensData00+i] = dev.read(reg + i)
	}
}
