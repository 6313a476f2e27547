// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ledsim

import (
	"bytes"
	"strings"
	"testing"

	"periph.io/x/conn/v3/gpio"
)

func TestOutRead(t *testing.T) {
	buf := &bytes.Buffer{}
	d := New(&Opts{Name: "LED1", W: buf})
	if d.Read() != gpio.Low {
		t.Fatal("must start low")
	}
	if err := d.Out(gpio.High); err != nil {
		t.Fatal(err)
	}
	if d.Read() != gpio.High {
		t.Fatal("expected high")
	}
	on := buf.String()
	if !strings.HasPrefix(on, "\r\033[0m") || !strings.HasSuffix(on, "\033[0m ") {
		t.Fatalf("unexpected render %q", on)
	}
	buf.Reset()
	if err := d.Out(gpio.Low); err != nil {
		t.Fatal(err)
	}
	if buf.String() == on {
		t.Fatal("low and high must render differently")
	}
	if d.Read() != gpio.Low {
		t.Fatal("expected low")
	}
}

func TestHalt(t *testing.T) {
	buf := &bytes.Buffer{}
	d := New(&Opts{W: buf})
	if err := d.Out(gpio.High); err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if d.Read() != gpio.Low {
		t.Fatal("halt must turn the LED off")
	}
	if !strings.HasSuffix(buf.String(), "\n\033[0m") {
		t.Fatalf("unexpected halt sequence %q", buf.String())
	}
}

func TestPin(t *testing.T) {
	d := New(&Opts{Name: "LED1", W: &bytes.Buffer{}})
	if d.String() != "LED1" || d.Name() != "LED1" {
		t.Fatal(d.String())
	}
	if d.Number() != -1 {
		t.Fatal(d.Number())
	}
	if d.Function() != "Out/Low" {
		t.Fatal(d.Function())
	}
	if err := d.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		t.Fatal(err)
	}
	if err := d.In(gpio.PullNoChange, gpio.BothEdges); err == nil {
		t.Fatal("expected edge failure")
	}
	if d.WaitForEdge(0) {
		t.Fatal("no edges on a simulated pin")
	}
	if d.Pull() != gpio.Float || d.DefaultPull() != gpio.Float {
		t.Fatal("expected floating pin")
	}
	if err := d.PWM(gpio.DutyHalf, 0); err == nil {
		t.Fatal("expected pwm failure")
	}
}
