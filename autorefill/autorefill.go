// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package autorefill drives a standalone refill station: it watches a 1-wire
// bus for a cartridge EEPROM, reports insertion and removal to a host over a
// line-oriented link, and shows progress on a status LED and an optional
// display.
//
// The host owns the refill policy. The station only detects, notifies and
// acknowledges; the heavy lifting (reading, decoding and rewriting the
// cartridge) happens host-side through the same link.
package autorefill

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"

	"github.com/netarcx/stratatools/ds2433"
)

// State is the station's detection state. Each state maps to exactly one LED
// pattern.
type State int

const (
	// Waiting means no cartridge is on the bus.
	Waiting State = iota
	// Reading means a cartridge was just found and the host has not yet
	// taken over.
	Reading
	// OK means a cartridge is present and idle.
	OK
	// Refilling means the host reported a refill in progress.
	Refilling
	// Error means the host reported a failure; it clears itself after a
	// fixed display interval.
	Error
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Reading:
		return "READING"
	case OK:
		return "OK"
	case Refilling:
		return "REFILLING"
	case Error:
		return "ERROR"
	}
	return "Unknown"
}

// Opts contains options to pass to the constructor.
type Opts struct {
	// LED is the status indicator pin. Required.
	LED gpio.PinOut
	// Button is the manual refill trigger, active low. Optional.
	Button gpio.PinIn
	// Link is the byte stream to the host daemon. Required.
	Link io.ReadWriter
	// PollInterval is how often the bus is probed for a cartridge.
	// Defaults to 5s; probing faster saturates the bus for no benefit,
	// insertions happen on a human timescale.
	PollInterval time.Duration
	// Display receives a status screen on every state change. Optional.
	Display display.Drawer
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{PollInterval: 5 * time.Second}

const (
	tickInterval = 10 * time.Millisecond
	debounceTime = 50 * time.Millisecond
	// errorDisplay is how long the error pattern shows before the station
	// clears itself back to OK or Waiting.
	errorDisplay = 5 * time.Second
	// celebrationTime is the blink burst after a completed refill.
	celebrationTime = time.Second
)

// New returns a Station monitoring the given 1-wire bus.
func New(bus onewire.Bus, opts *Opts) (*Station, error) {
	if opts == nil {
		return nil, errors.New("autorefill: no options provided")
	}
	if opts.LED == nil {
		return nil, errors.New("autorefill: LED pin is required")
	}
	if opts.Link == nil {
		return nil, errors.New("autorefill: host link is required")
	}
	poll := opts.PollInterval
	if poll == 0 {
		poll = DefaultOpts.PollInterval
	}
	return &Station{
		bus:    bus,
		led:    opts.LED,
		button: opts.Button,
		link:   opts.Link,
		poll:   poll,
		screen: opts.Display,
		lines:  make(chan string, 4),
		done:   make(chan struct{}),
	}, nil
}

// Station is the autonomous refill station loop.
//
// All state is owned by the single goroutine running Run; the only other
// goroutine is the host link reader, which hands complete lines over a
// buffered channel and never touches the state itself.
type Station struct {
	bus      onewire.Bus
	led      gpio.PinOut
	button   gpio.PinIn
	link     io.ReadWriter
	poll     time.Duration
	screen   display.Drawer
	lines    chan string
	done     chan struct{}
	haltOnce sync.Once

	state      State
	stateSince time.Time

	present bool
	rom     onewire.Address

	lastPoll time.Time

	buttonDown bool
	lastButton time.Time

	// celebrateUntil overlays the blink burst after REFILL_DONE on top of
	// whatever state is active.
	celebrateUntil time.Time
	celebrateFrom  time.Time

	ledLevel gpio.Level
	ledSet   bool
}

func (s *Station) String() string {
	return "autorefill{" + s.bus.String() + "}"
}

// Halt stops Run and turns the LED off. It is safe to call from another
// goroutine.
func (s *Station) Halt() error {
	s.haltOnce.Do(func() { close(s.done) })
	return nil
}

// Run executes the station loop until Halt is called or the host link fails.
// One iteration updates the LED, checks the button, probes the bus when the
// poll interval elapsed and handles at most one host line, in that order.
func (s *Station) Run() error {
	go s.readLines()
	for {
		select {
		case <-s.done:
			return s.led.Out(gpio.Low)
		default:
		}
		if err := s.step(now()); err != nil {
			return err
		}
		sleep(tickInterval)
	}
}

// readLines feeds host lines to the loop without ever blocking it.
func (s *Station) readLines() {
	sc := bufio.NewScanner(s.link)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case s.lines <- line:
		case <-s.done:
			return
		}
	}
}

// step runs one loop iteration at time t.
func (s *Station) step(t time.Time) error {
	s.updateLED(t)
	if err := s.checkButton(t); err != nil {
		return err
	}
	if err := s.pollBus(t); err != nil {
		return err
	}
	select {
	case line := <-s.lines:
		return s.handleLine(line, t)
	default:
	}
	return nil
}

func (s *Station) updateLED(t time.Time) {
	if s.state == Error && t.Sub(s.stateSince) >= errorDisplay {
		next := Waiting
		if s.present {
			next = OK
		}
		s.setState(next, t)
	}
	var l gpio.Level
	if t.Before(s.celebrateUntil) {
		l = celebrationLevel(t.Sub(s.celebrateFrom))
	} else {
		l = patternLevel(s.state, t.Sub(s.stateSince))
	}
	if !s.ledSet || l != s.ledLevel {
		s.ledLevel = l
		s.ledSet = true
		// LED failures are not propagated.
		s.led.Out(l)
	}
}

// checkButton debounces the manual trigger. A press while a cartridge is
// present asks the host for a refill, same token as an automatic one.
func (s *Station) checkButton(t time.Time) error {
	if s.button == nil {
		return nil
	}
	pressed := s.button.Read() == gpio.Low
	if pressed == s.buttonDown || t.Sub(s.lastButton) <= debounceTime {
		return nil
	}
	s.buttonDown = pressed
	s.lastButton = t
	if !pressed || !s.present {
		return nil
	}
	if err := s.send("REFILL_REQUEST:" + ds2433.FormatAddress(s.rom)); err != nil {
		return err
	}
	s.setState(Refilling, t)
	return nil
}

// pollBus probes for a cartridge every poll interval and reports edges:
// exactly one insertion token per physical insertion, one removal token per
// removal.
func (s *Station) pollBus(t time.Time) error {
	if !s.lastPoll.IsZero() && t.Sub(s.lastPoll) < s.poll {
		return nil
	}
	s.lastPoll = t
	was := s.present
	s.present = false
	if addrs, err := s.bus.Search(false); err == nil {
		for _, addr := range addrs {
			if ds2433.ValidAddress(addr) {
				s.present = true
				s.rom = addr
				break
			}
		}
	}
	switch {
	case s.present && !was:
		s.setState(Reading, t)
		return s.send("CARTRIDGE_INSERTED:" + ds2433.FormatAddress(s.rom))
	case !s.present && was:
		s.setState(Waiting, t)
		return s.send("CARTRIDGE_REMOVED")
	case s.present && s.state == Reading:
		// The host had a full interval to claim the cartridge.
		s.setState(OK, t)
	}
	return nil
}

// handleLine processes one host token.
func (s *Station) handleLine(line string, t time.Time) error {
	switch {
	case line == "STATUS":
		yn := "NO"
		if s.present {
			yn = "YES"
		}
		if err := s.send("Device present: " + yn); err != nil {
			return err
		}
		if s.present {
			return s.send("ROM: " + ds2433.FormatAddress(s.rom))
		}
	case strings.HasPrefix(line, "REFILL_DONE"):
		s.celebrateFrom = t
		s.celebrateUntil = t.Add(celebrationTime)
		s.setState(OK, t)
		return s.send("Refill complete acknowledged")
	case strings.HasPrefix(line, "REFILLING"):
		s.setState(Refilling, t)
		return s.send("Refill acknowledged")
	case strings.HasPrefix(line, "ERROR"):
		// A failure cuts any celebration short; the error pattern must
		// show immediately.
		s.celebrateUntil = time.Time{}
		s.setState(Error, t)
		return s.send("Error acknowledged")
	}
	return nil
}

func (s *Station) setState(st State, t time.Time) {
	if st == s.state {
		return
	}
	s.state = st
	s.stateSince = t
	if s.screen != nil {
		rom := ""
		if s.present {
			rom = ds2433.FormatAddress(s.rom)
		}
		// Same policy as the LED: render failures are not propagated.
		drawStatus(s.screen, st, rom)
	}
}

func (s *Station) send(line string) error {
	if _, err := io.WriteString(s.link, line+"\n"); err != nil {
		return fmt.Errorf("autorefill: host link: %w", err)
	}
	return nil
}

var now = time.Now
var sleep = time.Sleep

var _ conn.Resource = &Station{}
