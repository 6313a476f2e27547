// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds2433 controls a Dallas Semi / Maxim DS2433-class 4Kb 1-wire
// EEPROM, as found in consumable cartridges.
//
// The device exposes 512 bytes of memory in 32 byte pages. Writes are staged
// through a volatile scratchpad that is read back and verified before being
// committed, because any single transaction on the 1-wire bus can be
// corrupted by noise. The commit itself is atomic only within one page, so
// multi-page writes are split on page boundaries.
package ds2433

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/onewire"

	"github.com/netarcx/stratatools/common"
)

// Family code of the specific device type.
type Family byte

func (f Family) String() string {
	switch f {
	case DS2433:
		return "DS2433"
	case DS2431:
		return "DS2431"
	default:
		return "unknown"
	}
}

const DS2433 Family = 0x23
const DS2431 Family = 0x2d

// Size is the memory size of the DS2433 in bytes.
const Size = 512

// pageSize is the scratchpad and memory page size. A copy-scratchpad commit
// is atomic only within a single page.
const pageSize = 32

// Memory function commands, datasheet p.5.
const (
	cmdWriteScratchpad = 0x0f
	cmdReadScratchpad  = 0xaa
	cmdCopyScratchpad  = 0x55
	cmdReadMemory      = 0xf0
)

// esAuthAccepted is the AA flag in the ES byte. The device sets it once a
// copy-scratchpad completed with a valid authorization pattern.
const esAuthAccepted = 0x80

// Copy completion is polled rather than waited on with a fixed delay: commit
// time is data dependent. The budget is a retry count, not a deadline, so the
// driver does not depend on a reliable clock source.
var copyAttempts = 40

const copyPollInterval = 10 * time.Millisecond

var (
	// ErrScratchpadVerify is returned when the read-back of a staged chunk
	// disagrees with what was sent. The chunk was not committed.
	ErrScratchpadVerify = errors.New("ds2433: scratchpad verify mismatch")
	// ErrCopyTimeout is returned when the device did not report copy
	// completion within the retry budget.
	ErrCopyTimeout = errors.New("ds2433: copy-scratchpad did not complete")
	// ErrWriteVerify is returned when memory read back after a reported
	// successful commit differs from the chunk payload.
	ErrWriteVerify = errors.New("ds2433: memory verify mismatch after copy")
)

// WriteError reports a failed multi-chunk write together with the number of
// bytes that were durably committed before the failing chunk. Earlier chunks
// are not rolled back.
type WriteError struct {
	Committed int
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ds2433: write failed after %d bytes: %s", e.Committed, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ValidAddress returns true if the ROM code's trailing CRC8 matches its first
// seven bytes. An address failing this check must never be used to select a
// device.
func ValidAddress(addr onewire.Address) bool {
	var rom [8]byte
	binary.LittleEndian.PutUint64(rom[:], uint64(addr))
	return common.CRC8(rom[:7]) == rom[7]
}

// FormatAddress renders a ROM code in bus byte order (family code first) as
// 16 lowercase hex characters, the form used on the bridge serial protocol.
func FormatAddress(addr onewire.Address) string {
	var rom [8]byte
	binary.LittleEndian.PutUint64(rom[:], uint64(addr))
	return hex.EncodeToString(rom[:])
}

// New returns an object that communicates over 1-wire to the DS2433 EEPROM
// with the specified 64-bit address.
//
// The address must carry the DS2433 family code and a valid CRC8.
func New(o onewire.Bus, addr onewire.Address) (*Dev, error) {
	if f := Family(addr & 0xff); f != DS2433 && f != DS2431 {
		return nil, fmt.Errorf("ds2433: unsupported family code %#02x", byte(f))
	}
	if !ValidAddress(addr) {
		return nil, errors.New("ds2433: ROM address fails CRC check")
	}
	return &Dev{onewire: onewire.Dev{Bus: o, Addr: addr}}, nil
}

// Dev is a handle to a DS2433 EEPROM on a 1-wire bus.
type Dev struct {
	onewire onewire.Dev
}

func (d *Dev) Family() Family {
	return Family(d.onewire.Addr & 0xff)
}

func (d *Dev) String() string {
	return d.Family().String() + "{" + d.onewire.String() + "}"
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// ReadMemory reads len(b) bytes of device memory starting at addr.
//
// The read is a single bus transaction. The device applies no integrity
// check to memory reads; callers that need one compare against a known
// payload.
func (d *Dev) ReadMemory(addr uint16, b []byte) error {
	if int(addr)+len(b) > Size {
		return fmt.Errorf("ds2433: read of %d bytes at %#04x exceeds %d byte memory", len(b), addr, Size)
	}
	if len(b) == 0 {
		return nil
	}
	return d.onewire.Tx([]byte{cmdReadMemory, byte(addr), byte(addr >> 8)}, b)
}

// Write writes data to device memory starting at addr, splitting it into
// chunks that each lie within one 32 byte page.
//
// Each chunk is staged in the scratchpad, read back and compared before the
// commit is authorized, committed with the exact TA1/TA2/ES triple the device
// reported, polled for completion, and finally re-read from memory and
// compared against the payload.
//
// On failure the returned error is a *WriteError carrying the committed byte
// extent: chunks before the failing one remain committed, later chunks are
// untouched.
func (d *Dev) Write(addr uint16, data []byte) error {
	if int(addr)+len(data) > Size {
		return fmt.Errorf("ds2433: write of %d bytes at %#04x exceeds %d byte memory", len(data), addr, Size)
	}
	committed := 0
	for len(data) > 0 {
		// Never let a chunk cross the next page boundary, even when the
		// caller's window straddles one.
		n := pageSize - int(addr)%pageSize
		if n > len(data) {
			n = len(data)
		}
		if err := d.writeChunk(addr, data[:n]); err != nil {
			return &WriteError{Committed: committed, Err: err}
		}
		committed += n
		addr += uint16(n)
		data = data[n:]
	}
	return nil
}

// writeChunk stages, verifies, commits and confirms one page-bounded chunk.
func (d *Dev) writeChunk(addr uint16, chunk []byte) error {
	// Stage the chunk in the scratchpad.
	w := make([]byte, 0, 3+len(chunk))
	w = append(w, cmdWriteScratchpad, byte(addr), byte(addr>>8))
	w = append(w, chunk...)
	if err := d.onewire.Tx(w, nil); err != nil {
		return err
	}

	// Read the scratchpad back. This is the pre-commit integrity gate: a
	// corrupted target address or payload must never be authorized.
	r := make([]byte, 3+len(chunk))
	if err := d.onewire.Tx([]byte{cmdReadScratchpad}, r); err != nil {
		return err
	}
	ta1, ta2, es := r[0], r[1], r[2]
	if ta1 != byte(addr) || ta2 != byte(addr>>8) {
		return fmt.Errorf("%w: target address %#02x%02x, staged %#02x%02x", ErrScratchpadVerify, byte(addr>>8), byte(addr), ta2, ta1)
	}
	if !bytes.Equal(r[3:], chunk) {
		return ErrScratchpadVerify
	}

	// Authorize the copy with the triple as read back, not recomputed. The
	// strong pull-up powers the EEPROM programming cycle on parasitic
	// supplies.
	if err := d.onewire.TxPower([]byte{cmdCopyScratchpad, ta1, ta2, es}, nil); err != nil {
		return err
	}

	// Poll for the AA flag. Commit time is data dependent, up to ~10ms per
	// byte, so a fixed wait is not sufficient.
	done := false
	for i := 0; i < copyAttempts; i++ {
		sleep(copyPollInterval)
		var hd [3]byte
		if err := d.onewire.Tx([]byte{cmdReadScratchpad}, hd[:]); err != nil {
			// Transient bus noise during the commit window counts against
			// the budget.
			continue
		}
		if hd[2]&esAuthAccepted != 0 {
			done = true
			break
		}
	}
	if !done {
		return ErrCopyTimeout
	}

	// Confirm the commit actually landed. A reported-successful copy can
	// still leave corrupted memory behind.
	rb := make([]byte, len(chunk))
	if err := d.ReadMemory(addr, rb); err != nil {
		return err
	}
	if !bytes.Equal(rb, chunk) {
		return ErrWriteVerify
	}
	return nil
}

var sleep = time.Sleep

var _ conn.Resource = &Dev{}
