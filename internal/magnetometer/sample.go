// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magnetometer

import "math"

// MicroTeslaPerLSB is the AK8963 resolution with 16-bit output.
const MicroTeslaPerLSB = 0.15

// SensitivityAdjustment holds the factory per-axis scale factors read from
// the fuse ROM.
type SensitivityAdjustment struct {
	X, Y, Z float64
}

// Identity is the adjustment that leaves samples unchanged.
var Identity = SensitivityAdjustment{X: 1, Y: 1, Z: 1}

// AdjustmentFromFuse converts one ASA fuse byte into a scale factor:
// (b - 128) / 256 + 1.
func AdjustmentFromFuse(b byte) float64 {
	return (float64(b)-128)/256 + 1
}

// AdjustmentFromFuseBytes converts the ASAX, ASAY, ASAZ bytes.
func AdjustmentFromFuseBytes(asa [3]byte) SensitivityAdjustment {
	return SensitivityAdjustment{
		X: AdjustmentFromFuse(asa[0]),
		Y: AdjustmentFromFuse(asa[1]),
		Z: AdjustmentFromFuse(asa[2]),
	}
}

// TwosComplement reinterprets an unsigned 16-bit value as signed.
func TwosComplement(v uint16) int {
	if v >= 0x8000 {
		return int(v) - 0x10000
	}
	return int(v)
}

// DecodeInt16 assembles a little-endian pair into a signed value.
func DecodeInt16(lo, hi byte) int16 {
	return int16(TwosComplement(uint16(hi)<<8 | uint16(lo)))
}

// Sample is one magnetometer reading.
//
// X, Y and Z are raw signed counts, multiplied by the sensitivity
// adjustment when one was applied (Adjusted). Stale is set when the
// data-ready bit was never seen within the polling budget; the values are
// then whatever the data registers held.
type Sample struct {
	RawX, RawY, RawZ int16
	X, Y, Z          float64

	Adjusted bool
	Overflow bool // ST2 HOFL: |B| exceeded the measurement range
	Overrun  bool // ST1 DOR: a sample was skipped before this read
	Stale    bool
	Attempts int // status reads made before the data read
}

// DecodeSample decodes the 7-byte HXL..ST2 block. A nil adj leaves the
// values in raw counts.
func DecodeSample(block [7]byte, adj *SensitivityAdjustment) Sample {
	return decodeSample(block, adj, DefaultRegisters().HOFLBit)
}

func decodeSample(block [7]byte, adj *SensitivityAdjustment, hofl byte) Sample {
	s := Sample{
		RawX:     DecodeInt16(block[0], block[1]),
		RawY:     DecodeInt16(block[2], block[3]),
		RawZ:     DecodeInt16(block[4], block[5]),
		Overflow: block[6]&hofl != 0,
	}
	s.X, s.Y, s.Z = float64(s.RawX), float64(s.RawY), float64(s.RawZ)
	if adj != nil {
		s.X *= adj.X
		s.Y *= adj.Y
		s.Z *= adj.Z
		s.Adjusted = true
	}
	return s
}

// MicroTesla returns the field in µT.
func (s Sample) MicroTesla() (x, y, z float64) {
	return s.X * MicroTeslaPerLSB, s.Y * MicroTeslaPerLSB, s.Z * MicroTeslaPerLSB
}

// Norm is the field magnitude in µT.
func (s Sample) Norm() float64 {
	x, y, z := s.MicroTesla()
	return math.Sqrt(x*x + y*y + z*z)
}
