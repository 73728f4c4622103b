// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magnetometer

import (
	"errors"
	"math"
)

// ErrNoCoverage is returned when the collected samples do not span every
// axis, so no scale can be derived.
var ErrNoCoverage = errors.New("mag: hard-iron: an axis saw no variation")

// HardIron accumulates per-axis extremes of adjusted samples while the board
// is rotated through every orientation.
type HardIron struct {
	min, max [3]float64
	n        int
}

// HardIronResult is the min/max ellipsoid fit: Offset is the center and
// Scale the diagonal soft-iron correction.
type HardIronResult struct {
	Offset     [3]float64 `json:"offset"`
	Scale      [3]float64 `json:"scale"`
	Range      [3]float64 `json:"range"`
	Samples    int        `json:"samples"`
	Confidence float64    `json:"confidence"` // min/max range ratio, percent
}

// Add folds s into the fit. Stale and overflowed samples are ignored.
func (h *HardIron) Add(s Sample) bool {
	if s.Stale || s.Overflow {
		return false
	}
	v := [3]float64{s.X, s.Y, s.Z}
	if h.n == 0 {
		h.min, h.max = v, v
	}
	for i := range v {
		h.min[i] = math.Min(h.min[i], v[i])
		h.max[i] = math.Max(h.max[i], v[i])
	}
	h.n++
	return true
}

// Samples returns how many samples were accepted.
func (h *HardIron) Samples() int { return h.n }

// Result computes the fit from what was collected so far.
func (h *HardIron) Result() (HardIronResult, error) {
	var r HardIronResult
	r.Samples = h.n
	sum := 0.0
	for i := 0; i < 3; i++ {
		r.Offset[i] = (h.max[i] + h.min[i]) / 2
		r.Range[i] = h.max[i] - h.min[i]
		if r.Range[i] <= 0 {
			return r, ErrNoCoverage
		}
		sum += r.Range[i]
	}
	avg := sum / 3
	for i := 0; i < 3; i++ {
		r.Scale[i] = avg / r.Range[i]
	}
	lo := math.Min(r.Range[0], math.Min(r.Range[1], r.Range[2]))
	hi := math.Max(r.Range[0], math.Max(r.Range[1], r.Range[2]))
	r.Confidence = lo / hi * 100
	return r, nil
}

// Apply corrects an adjusted reading.
func (r HardIronResult) Apply(x, y, z float64) (float64, float64, float64) {
	return (x - r.Offset[0]) * r.Scale[0], (y - r.Offset[1]) * r.Scale[1], (z - r.Offset[2]) * r.Scale[2]
}
