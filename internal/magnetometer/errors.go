// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magnetometer

import (
	"errors"
	"fmt"
)

// ErrStaleData is returned alongside a sample in strict readiness mode when
// the data-ready bit was never observed.
var ErrStaleData = errors.New("mag: data-ready not observed, sample may be stale")

// ErrShortRead is returned when a relay hands back fewer bytes than asked for.
var ErrShortRead = errors.New("mag: short relay read")

// CalibrationError reports a failure during the fuse ROM sequence. The
// device must not be switched to continuous mode after one.
type CalibrationError struct {
	Step string
	Err  error
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("mag: calibration: %s: %v", e.Step, e.Err)
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// ConfigurationError reports a failure entering continuous mode.
type ConfigurationError struct {
	Step string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("mag: configuration: %s: %v", e.Step, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
