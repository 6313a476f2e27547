// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bridge

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Protocol errors. The error text doubles as the reason sent on the wire
// after the "ERROR " prefix; the host tooling matches on these strings.
var (
	ErrUnknownCommand = errors.New("Unknown command")
	ErrInvalidSize    = errors.New("Invalid size")
	ErrSizeMismatch   = errors.New("Size mismatch")
	ErrInvalidHex     = errors.New("Invalid hex data")
	ErrNoDevice       = errors.New("No device found")
	ErrNoDeviceFound  = errors.New("No device found, run SEARCH first")
)

// maxTransfer is the largest READ/WRITE size, the full EEPROM memory.
const maxTransfer = 512

// command is one parsed input line: a verb plus its validated parameters.
// It is immutable once produced; parsing failures never reach the bus.
type command struct {
	verb    string
	size    int
	payload []byte
}

// parseCommand tokenizes one input line. Verbs are case insensitive, hex
// payloads accept both cases. A command with a missing parameter, a
// non-numeric or out of range size, or a payload whose decoded length
// disagrees with the declared size is rejected here, before any dispatch.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, ErrUnknownCommand
	}
	c := command{verb: strings.ToUpper(fields[0])}
	switch c.verb {
	case "SEARCH", "RESET", "VERSION", "DEBUG":
		return c, nil
	case "READ":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("Invalid READ command")
		}
		size, err := strconv.Atoi(fields[1])
		if err != nil || size < 1 || size > maxTransfer {
			return command{}, ErrInvalidSize
		}
		c.size = size
		return c, nil
	case "WRITE":
		if len(fields) != 3 {
			return command{}, fmt.Errorf("Invalid WRITE command")
		}
		size, err := strconv.Atoi(fields[1])
		if err != nil || size < 1 || size > maxTransfer {
			return command{}, ErrInvalidSize
		}
		payload, err := hex.DecodeString(fields[2])
		if err != nil {
			return command{}, ErrInvalidHex
		}
		if len(payload) != size {
			return command{}, ErrSizeMismatch
		}
		c.size = size
		c.payload = payload
		return c, nil
	default:
		return command{}, ErrUnknownCommand
	}
}
