// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"errors"
	"testing"

	"go.viam.com/test"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestI2CRegisterAccess(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x68, W: []byte{0x6B, 0x00}},
			{Addr: 0x68, W: []byte{0x75}, R: []byte{0x71}},
			{Addr: 0x68, W: []byte{0x49}, R: []byte{0x10, 0x00, 0x20}},
		},
		DontPanic: true,
	}
	tr := NewI2C(pb)

	test.That(t, tr.WriteRegister(0x68, 0x6B, 0x00), test.ShouldBeNil)

	v, err := tr.ReadRegister(0x68, 0x75)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, byte(0x71))

	buf := make([]byte, 3)
	test.That(t, ReadBlock(tr, 0x68, 0x49, buf), test.ShouldBeNil)
	test.That(t, buf, test.ShouldResemble, []byte{0x10, 0x00, 0x20})

	test.That(t, pb.Close(), test.ShouldBeNil)
}

func TestI2CWrapsFailures(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	tr := NewI2C(pb)

	err := tr.WriteRegister(0x68, 0x6A, 0x20)
	test.That(t, err, test.ShouldNotBeNil)

	var te *TransportError
	test.That(t, errors.As(err, &te), test.ShouldBeTrue)
	test.That(t, te.Op, test.ShouldEqual, "write")
	test.That(t, te.Addr, test.ShouldEqual, uint16(0x68))
	test.That(t, te.Reg, test.ShouldEqual, byte(0x6A))
	test.That(t, err.Error(), test.ShouldContainSubstring, "reg 0x6A")
}

type singleOnly struct {
	regs  map[byte]byte
	reads []byte
}

func (s *singleOnly) ReadRegister(_ uint16, reg byte) (byte, error) {
	s.reads = append(s.reads, reg)
	return s.regs[reg], nil
}

func (s *singleOnly) WriteRegister(uint16, byte, byte) error { return nil }

func TestReadBlockSequentialFallback(t *testing.T) {
	tr := &singleOnly{regs: map[byte]byte{0x49: 1, 0x4A: 2, 0x4B: 3}}
	buf := make([]byte, 3)
	test.That(t, ReadBlock(tr, 0x68, 0x49, buf), test.ShouldBeNil)
	test.That(t, buf, test.ShouldResemble, []byte{1, 2, 3})
	test.That(t, tr.reads, test.ShouldResemble, []byte{0x49, 0x4A, 0x4B})
}
