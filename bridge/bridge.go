// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bridge implements the line-oriented serial protocol that exposes a
// cartridge EEPROM on a 1-wire bus to a host computer.
//
// The host sends single-line ASCII commands (SEARCH, READ, WRITE, RESET,
// VERSION, DEBUG) and receives single-line responses (ROM:<hex>, DATA:<hex>,
// OK, ERROR <reason>). Exactly one command is in flight at a time; the
// transport is any byte stream that delivers complete, newline terminated
// lines.
package bridge

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/onewire"

	"github.com/netarcx/stratatools/ds2433"
)

// Version is the protocol version announced by the VERSION command.
const Version = "1-Wire Bridge v1.0"

// Opts contains options to pass to the constructor.
type Opts struct {
	// Board identifies the platform in the VERSION response.
	Board string
	// Q is the 1-wire data pin, used by DEBUG to report the idle line
	// level. Optional: the bus timing layer normally owns the pin.
	Q gpio.PinIO
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{Board: "Raspberry Pi"}

// New returns a Processor that serves the bridge protocol on top of the
// given 1-wire bus.
func New(bus onewire.Bus, opts *Opts) *Processor {
	if opts == nil {
		opts = &DefaultOpts
	}
	board := opts.Board
	if board == "" {
		board = DefaultOpts.Board
	}
	return &Processor{bus: bus, q: opts.Q, board: board}
}

// Processor parses host commands, drives the bus and formats responses.
//
// It owns the single piece of session state, the currently selected device:
// nil until a SEARCH succeeds, replaced by every later SEARCH.
type Processor struct {
	bus   onewire.Bus
	q     gpio.PinIO
	board string
	dev   *ds2433.Dev
}

func (p *Processor) String() string {
	return "bridge{" + p.bus.String() + "}"
}

// Serve reads newline terminated commands from r and writes the response
// lines to w until r is exhausted. One command is processed at a time, in
// order. It returns the read error, or nil on EOF.
func (p *Processor) Serve(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		for _, resp := range p.Process(line) {
			if _, err := io.WriteString(w, resp+"\n"); err != nil {
				return err
			}
		}
	}
	return sc.Err()
}

// Process executes one command line and returns the response lines. Every
// failure is converted to a single "ERROR <reason>" line; Process never
// panics and never terminates the session.
func (p *Processor) Process(line string) []string {
	cmd, err := parseCommand(line)
	if err != nil {
		return []string{"ERROR " + err.Error()}
	}
	switch cmd.verb {
	case "SEARCH":
		return []string{p.search()}
	case "READ":
		return []string{p.read(cmd.size)}
	case "WRITE":
		return []string{p.write(cmd.payload)}
	case "RESET":
		if err := p.probe(); err != nil {
			return []string{"ERROR Reset failed"}
		}
		return []string{"OK"}
	case "VERSION":
		return []string{p.board + " " + Version}
	case "DEBUG":
		return p.debug()
	}
	// parseCommand only returns the verbs above.
	return []string{"ERROR " + ErrUnknownCommand.Error()}
}

// search discovers the cartridge EEPROM and selects it for later READ/WRITE
// commands. Addresses with an invalid CRC or a non-EEPROM family code are
// skipped.
func (p *Processor) search() string {
	addrs, err := p.bus.Search(false)
	if err != nil {
		p.dev = nil
		return "ERROR " + ErrNoDevice.Error()
	}
	for _, addr := range addrs {
		d, err := ds2433.New(p.bus, addr)
		if err != nil {
			continue
		}
		p.dev = d
		return "ROM:" + ds2433.FormatAddress(addr)
	}
	p.dev = nil
	return "ERROR " + ErrNoDevice.Error()
}

func (p *Processor) read(size int) string {
	if p.dev == nil {
		return "ERROR " + ErrNoDeviceFound.Error()
	}
	buf := make([]byte, size)
	if err := p.dev.ReadMemory(0, buf); err != nil {
		return "ERROR Read failed"
	}
	return "DATA:" + hex.EncodeToString(buf)
}

func (p *Processor) write(payload []byte) string {
	if p.dev == nil {
		return "ERROR " + ErrNoDeviceFound.Error()
	}
	if err := p.dev.Write(0, payload); err != nil {
		return "ERROR Write failed"
	}
	return "OK"
}

// probe issues a bus reset with no data phase and reports whether a device
// answered with a presence pulse.
func (p *Processor) probe() error {
	return p.bus.Tx(nil, nil, onewire.WeakPullup)
}

// debug reports the idle level of the data pin, when one was provided, and
// classifies five consecutive reset attempts. It helps diagnosing a missing
// pull-up resistor or a shorted data line in the cartridge bay.
func (p *Processor) debug() []string {
	out := []string{
		"DEBUG: Testing 1-wire bus...",
		"  Required: 4.7k pullup to 3.3V + EEPROM data line",
		"",
	}
	if p.q != nil {
		state := "LOW (BAD - no pullup or short to ground!)"
		if p.q.Read() == gpio.High {
			state = "HIGH (good - pullup present)"
		}
		out = append(out, fmt.Sprintf("  %s state (idle): %s", p.q.Name(), state), "")
	}
	for i := 0; i < 5; i++ {
		var verdict string
		err := p.probe()
		var short onewire.ShortedBusError
		switch {
		case err == nil:
			verdict = "PRESENCE DETECTED (device found!)"
		case errors.As(err, &short):
			verdict = "SHORT CIRCUIT (data line shorted)"
		default:
			verdict = "NO PRESENCE (no device responding)"
		}
		out = append(out, fmt.Sprintf("  Reset #%d: %s", i+1, verdict))
	}
	return out
}
