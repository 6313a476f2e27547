// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package autorefill

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// LED pattern periods. A glance at the station tells the state apart
// without a serial console attached.
const (
	waitingPeriod = 1000 * time.Millisecond
	readingPeriod = 200 * time.Millisecond
	refillPeriod  = 200 * time.Millisecond
	// refillBurst is the toggling part of the refill pattern, 6 edges,
	// followed by refillPause of steady off before it repeats.
	refillBurst   = 6 * refillPeriod
	refillPause   = 1000 * time.Millisecond
	errorPeriod   = 100 * time.Millisecond
	celebratePace = 100 * time.Millisecond
)

// patternLevel returns the LED level for state s after elapsed time in that
// state. It is pure so the loop can re-evaluate it on every iteration.
func patternLevel(s State, elapsed time.Duration) gpio.Level {
	switch s {
	case Waiting:
		return toggle(elapsed, waitingPeriod)
	case Reading:
		return toggle(elapsed, readingPeriod)
	case OK:
		return gpio.High
	case Refilling:
		phase := elapsed % (refillBurst + refillPause)
		if phase < refillBurst {
			return toggle(phase, refillPeriod)
		}
		return gpio.Low
	case Error:
		return toggle(elapsed, errorPeriod)
	}
	return gpio.Low
}

// celebrationLevel is the blink burst shown right after a completed refill,
// overlaid on the regular pattern.
func celebrationLevel(elapsed time.Duration) gpio.Level {
	return toggle(elapsed, celebratePace)
}

func toggle(elapsed, period time.Duration) gpio.Level {
	return gpio.Level((elapsed/period)%2 == 0)
}
