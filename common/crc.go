// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, a CRC8 calculation
package common

// CRC8 calculates the Dallas/Maxim 8-bit CRC of the byte slice parameter and
// returns the calculated value. 1-wire ROM codes carry this CRC as their last
// byte.
func CRC8(bytes []byte) byte {
	var crc byte
	for _, val := range bytes {
		crc ^= val
		for i := 0; i < 8; i++ {
			if (crc & 0x01) == 0 {
				crc >>= 1
			} else {
				crc = (byte)((crc >> 1) ^ 0x8c)
			}
		}
	}
	return crc
}
