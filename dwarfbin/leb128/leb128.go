// This file is part of nativedbg.
//
// nativedbg is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// nativedbg is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with nativedbg.  If not, see <https://www.gnu.org/licenses/>.

// Package leb128 decodes the variable-length integer encodings used
// throughout DWARF (component C2 of the engine specification).
package leb128

import "github.com/ashgrove/nativedbg/engineerrs"

// DecodeULEB128 decodes an unsigned LEB128 value from the start of encoded,
// per figure 46 of the DWARF4 standard. It returns the decoded value and the
// number of bytes consumed. If encoded never terminates (no byte with the
// high bit clear) it returns an error rather than reading past the end of
// the slice.
func DecodeULEB128(encoded []uint8) (uint64, int, error) {
	var result uint64
	var shift uint

	for n, v := range encoded {
		if shift >= 64 {
			return 0, 0, engineerrs.New(engineerrs.Parse, engineerrs.PatLEBOverflow)
		}
		result |= uint64(v&0x7f) << shift
		if v&0x80 == 0 {
			return result, n + 1, nil
		}
		shift += 7
	}

	return 0, 0, engineerrs.New(engineerrs.Parse, engineerrs.PatOutOfBoundsRead, "uleb128")
}

// DecodeSLEB128 decodes a signed LEB128 value from the start of encoded, per
// figure 47 of the DWARF4 standard.
func DecodeSLEB128(encoded []uint8) (int64, int, error) {
	const size = 64

	var result int64
	var shift uint
	var v uint8
	var n int

	for n, v = range encoded {
		if shift >= size {
			return 0, 0, engineerrs.New(engineerrs.Parse, engineerrs.PatLEBOverflow)
		}
		result |= int64(v&0x7f) << shift
		shift += 7
		if v&0x80 == 0 {
			n++
			if shift < size && v&0x40 != 0 {
				result |= -(int64(1) << shift)
			}
			return result, n, nil
		}
	}

	return 0, 0, engineerrs.New(engineerrs.Parse, engineerrs.PatOutOfBoundsRead, "sleb128")
}
