// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "testing"

func TestCRC8(t *testing.T) {
	var tests = []struct {
		bytes  []byte
		result byte
	}{
		// ROM codes of real devices, minus their trailing CRC byte.
		{bytes: []byte{0x23, 0x89, 0xb7, 0xe9, 0x02, 0x00, 0x00}, result: 0x5f},
		{bytes: []byte{0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00}, result: 0x74},
		{bytes: []byte{0x02}, result: 0xbc},
		{bytes: nil, result: 0x00},
	}
	for _, test := range tests {
		res := CRC8(test.bytes)
		if res != test.result {
			t.Errorf("CRC8(%#v)!=0x%x received 0x%x", test.bytes, test.result, res)
		}
	}
}
