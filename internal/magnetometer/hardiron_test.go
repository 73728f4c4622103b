// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magnetometer

import (
	"testing"

	"go.viam.com/test"
)

func TestHardIronFit(t *testing.T) {
	var h HardIron
	for _, v := range [][3]float64{
		{110, -20, 40},
		{-90, 80, 40},
		{10, 30, 140},
		{10, 30, -60},
	} {
		test.That(t, h.Add(Sample{X: v[0], Y: v[1], Z: v[2]}), test.ShouldBeTrue)
	}
	test.That(t, h.Add(Sample{X: 1000, Stale: true}), test.ShouldBeFalse)
	test.That(t, h.Add(Sample{X: 1000, Overflow: true}), test.ShouldBeFalse)
	test.That(t, h.Samples(), test.ShouldEqual, 4)

	r, err := h.Result()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Offset, test.ShouldResemble, [3]float64{10, 30, 40})
	test.That(t, r.Range, test.ShouldResemble, [3]float64{200, 100, 200})
	test.That(t, r.Scale[0], test.ShouldAlmostEqual, 500.0/3/200)
	test.That(t, r.Scale[1], test.ShouldAlmostEqual, 500.0/3/100)
	test.That(t, r.Confidence, test.ShouldAlmostEqual, 50)

	x, y, z := r.Apply(110, 30, 40)
	test.That(t, x, test.ShouldAlmostEqual, 100*r.Scale[0])
	test.That(t, y, test.ShouldAlmostEqual, 0)
	test.That(t, z, test.ShouldAlmostEqual, 0)
}

func TestHardIronNeedsCoverage(t *testing.T) {
	var h HardIron
	h.Add(Sample{X: 1, Y: 2, Z: 3})
	h.Add(Sample{X: 5, Y: 2, Z: 9})
	_, err := h.Result()
	test.That(t, err, test.ShouldEqual, ErrNoCoverage)

	var empty HardIron
	_, err = empty.Result()
	test.That(t, err, test.ShouldEqual, ErrNoCoverage)
}
