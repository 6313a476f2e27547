// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package example

import (
	"log"
	"os"

	"periph.io/x/conn/v3/onewire/onewirereg"
	"periph.io/x/host/v3"

	"github.com/netarcx/stratatools/bridge"
)

// Example serves the bridge protocol on stdin/stdout, the way the firmware
// serves it on a serial port. Rename to main to run it as the bridge daemon.
func Example() {

	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Use onewirereg 1-wire bus registry to find the first available 1-wire
	// bus.
	bus, err := onewirereg.Open("")
	if err != nil {
		log.Fatal(err)
	}

	defer bus.Close()

	p := bridge.New(bus, nil)
	log.Println(p.String())

	if err := p.Serve(os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
