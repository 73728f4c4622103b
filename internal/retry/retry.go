// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package retry runs a predicate a bounded number of times with a fixed
// backoff between attempts.
package retry

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrNoAttempts is returned when Do is asked to run zero times.
var ErrNoAttempts = errors.New("retry: attempts must be at least 1")

// Result describes how a Do call ended.
type Result struct {
	Attempts  int  // predicate calls made
	Satisfied bool // predicate returned true
}

// Do calls pred up to attempts times. It stops early when pred returns true
// or an error. Between two attempts it sleeps backoff on clk; it never sleeps
// after the last attempt. A nil clk uses the wall clock.
func Do(attempts int, backoff time.Duration, clk clock.Clock, pred func(attempt int) (bool, error)) (Result, error) {
	if attempts < 1 {
		return Result{}, ErrNoAttempts
	}
	if clk == nil {
		clk = clock.New()
	}

	var res Result
	for i := 0; i < attempts; i++ {
		if i > 0 && backoff > 0 {
			clk.Sleep(backoff)
		}
		res.Attempts++
		ok, err := pred(i)
		if err != nil {
			return res, err
		}
		if ok {
			res.Satisfied = true
			return res, nil
		}
	}
	return res, nil
}
