// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ledsim implements a gpio.PinIO that renders the pin level as a
// colored block in the terminal using ANSI color codes.
//
// Useful to watch the refill station's blink patterns without wiring a LED.
package ledsim

import (
	"bytes"
	"errors"
	"image/color"
	"io"
	"time"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Opts represents the options available for this pin.
type Opts struct {
	// Name is the pin name reported by Name and String.
	Name string
	// On is the block color shown for a high level. Defaults to amber.
	On color.NRGBA
	// Palette converts colors to ANSI codes. Defaults to ansi256.Default.
	Palette *ansi256.Palette
	// W is the render target. Defaults to a colorable stdout.
	W io.Writer

	_ struct{}
}

// Dev is a LED emulator that outputs to the console.
type Dev struct {
	w       io.Writer
	name    string
	on      color.NRGBA
	palette ansi256.Palette

	level gpio.Level
	buf   bytes.Buffer
}

// New returns a Dev that displays one simulated LED at the console.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	on := opts.On
	if on == (color.NRGBA{}) {
		on = color.NRGBA{0xff, 0xbf, 0x00, 0xff}
	}
	name := opts.Name
	if name == "" {
		name = "LEDSim"
	}
	return &Dev{w: w, name: name, on: on, palette: *p}
}

func (d *Dev) String() string {
	return d.name
}

// Halt implements conn.Resource.
//
// It turns the LED off and clears the line so the terminal is not corrupted.
func (d *Dev) Halt() error {
	d.level = gpio.Low
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Name implements pin.Pin.
func (d *Dev) Name() string {
	return d.name
}

// Number implements pin.Pin.
//
// It is a simulated pin and has no number.
func (d *Dev) Number() int {
	return -1
}

// Function implements pin.Pin.
func (d *Dev) Function() string {
	return "Out/" + d.level.String()
}

// In implements gpio.PinIn.
func (d *Dev) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errors.New("ledsim: edge detection is not supported")
	}
	return nil
}

// Read implements gpio.PinIn. It returns the last level written by Out.
func (d *Dev) Read() gpio.Level {
	return d.level
}

// WaitForEdge implements gpio.PinIn.
func (d *Dev) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
func (d *Dev) Pull() gpio.Pull {
	return gpio.Float
}

// DefaultPull implements gpio.PinIn.
func (d *Dev) DefaultPull() gpio.Pull {
	return gpio.Float
}

// Out implements gpio.PinOut. It redraws the block in place.
func (d *Dev) Out(l gpio.Level) error {
	d.level = l
	c := color.NRGBA{A: 255}
	if l {
		c = d.on
	}
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	_, _ = io.WriteString(&d.buf, d.palette.Block(c))
	_, _ = d.buf.WriteString("\033[0m ")
	_, err := d.buf.WriteTo(d.w)
	return err
}

// PWM implements gpio.PinOut.
func (d *Dev) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errors.New("ledsim: pwm is not supported")
}

var _ gpio.PinIO = &Dev{}
