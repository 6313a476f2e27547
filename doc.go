// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package stratatools is a container for the cartridge programmer firmware
// pieces: the ds2433 EEPROM driver, the serial bridge command protocol and
// the standalone auto-refill station.
package stratatools
