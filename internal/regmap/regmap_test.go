// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package regmap

import (
	"testing"

	"go.viam.com/test"

	"github.com/relabs-tech/mag_passthrough/internal/bridge"
	"github.com/relabs-tech/mag_passthrough/internal/magnetometer"
)

func TestBridgeMapMatchesDriver(t *testing.T) {
	regs := bridge.DefaultRegisters()
	for name, addr := range map[string]byte{
		"PWR_MGMT_1":       regs.PowerMgmt,
		"USER_CTRL":        regs.UserCtrl,
		"I2C_MST_CTRL":     regs.MasterCtrl,
		"I2C_SLV0_ADDR":    regs.SlaveAddr,
		"I2C_SLV0_REG":     regs.SlaveReg,
		"I2C_SLV0_CTRL":    regs.SlaveCtrl,
		"I2C_SLV0_DO":      regs.SlaveDataOut,
		"EXT_SENS_DATA_00": regs.ExtSensData00,
		"WHO_AM_I":         regs.WhoAmI,
	} {
		r, ok := Bridge.Lookup(addr)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, r.Name, test.ShouldEqual, name)
	}
}

func TestAK8963MapMatchesDriver(t *testing.T) {
	regs := magnetometer.DefaultRegisters()
	for name, addr := range map[string]byte{
		"WIA":   regs.WIA,
		"ST1":   regs.ST1,
		"HXL":   regs.HXL,
		"CNTL1": regs.CNTL1,
		"ASAX":  regs.ASAX,
	} {
		r, ok := AK8963.Lookup(addr)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, r.Name, test.ShouldEqual, name)
	}
}

func TestMapOrderAndAccess(t *testing.T) {
	addrs := AK8963.Readable()
	test.That(t, addrs[0], test.ShouldEqual, byte(0x00))
	test.That(t, addrs[len(addrs)-1], test.ShouldEqual, byte(0x12))
	for i := 1; i < len(addrs); i++ {
		test.That(t, addrs[i], test.ShouldBeGreaterThan, addrs[i-1])
	}

	test.That(t, AK8963.Writable(0x0A), test.ShouldBeTrue)
	test.That(t, AK8963.Writable(0x02), test.ShouldBeFalse)
	test.That(t, Bridge.Writable(0x75), test.ShouldBeFalse)
	test.That(t, Bridge.Writable(0x50), test.ShouldBeFalse)
	test.That(t, Bridge.Writable(0x6A), test.ShouldBeTrue)
}

func TestForDevice(t *testing.T) {
	m, err := ForDevice("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m, test.ShouldEqual, Bridge)

	m, err = ForDevice("ak8963")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m, test.ShouldEqual, AK8963)

	_, err = ForDevice("bmp280")
	test.That(t, err, test.ShouldBeError, `regmap: unknown device "bmp280"`)
}
