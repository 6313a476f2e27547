// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package autorefill

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
)

func TestPatternLevel(t *testing.T) {
	ms := time.Millisecond
	var tests = []struct {
		s       State
		elapsed time.Duration
		want    gpio.Level
	}{
		// Waiting: 1s slow toggle.
		{Waiting, 0, gpio.High},
		{Waiting, 999 * ms, gpio.High},
		{Waiting, 1000 * ms, gpio.Low},
		{Waiting, 2000 * ms, gpio.High},
		// Reading: 200ms fast toggle.
		{Reading, 0, gpio.High},
		{Reading, 200 * ms, gpio.Low},
		{Reading, 400 * ms, gpio.High},
		// OK: solid on.
		{OK, 0, gpio.High},
		{OK, time.Hour, gpio.High},
		// Refilling: 6 edges of 200ms, then a 1s pause, repeating.
		{Refilling, 0, gpio.High},
		{Refilling, 200 * ms, gpio.Low},
		{Refilling, 400 * ms, gpio.High},
		{Refilling, 800 * ms, gpio.High},
		{Refilling, 1000 * ms, gpio.Low},
		// Pause after the sixth edge.
		{Refilling, 1200 * ms, gpio.Low},
		{Refilling, 2199 * ms, gpio.Low},
		// Pattern repeats after burst plus pause.
		{Refilling, 2200 * ms, gpio.High},
		{Refilling, 2400 * ms, gpio.Low},
		// Error: 100ms rapid toggle.
		{Error, 0, gpio.High},
		{Error, 100 * ms, gpio.Low},
		{Error, 200 * ms, gpio.High},
		{Error, 300 * ms, gpio.Low},
	}
	for _, test := range tests {
		if got := patternLevel(test.s, test.elapsed); got != test.want {
			t.Errorf("patternLevel(%s, %s) = %s, want %s", test.s, test.elapsed, got, test.want)
		}
	}
}

func TestCelebrationLevel(t *testing.T) {
	if celebrationLevel(0) != gpio.High {
		t.Fatal("burst must start on")
	}
	if celebrationLevel(150*time.Millisecond) != gpio.Low {
		t.Fatal("expected off phase")
	}
}

func TestStateString(t *testing.T) {
	var tests = []struct {
		s    State
		want string
	}{
		{Waiting, "WAITING"},
		{Reading, "READING"},
		{OK, "OK"},
		{Refilling, "REFILLING"},
		{Error, "ERROR"},
		{State(42), "Unknown"},
	}
	for _, test := range tests {
		if got := test.s.String(); got != test.want {
			t.Errorf("State(%d).String() = %q, want %q", int(test.s), got, test.want)
		}
	}
}
