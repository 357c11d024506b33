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

// Package rangelist implements the non-contiguous PC range evaluator
// (component C6): DWARF4's address-pair .debug_ranges and DWARF5's
// opcode-driven .debug_rnglists.
package rangelist

import (
	"github.com/ashgrove/nativedbg/dwarfbin/form"
	"github.com/ashgrove/nativedbg/engineerrs"
)

// Range is one half-open [Low, High) PC range already rebased against the
// compilation unit's base address.
type Range struct {
	Low, High uint64
}

// List is an ordered set of PC ranges; Contains does a linear scan since
// lists are typically small (a handful of ranges per inlined or
// discontiguous function).
type List []Range

// Contains reports whether pc falls in any range of the list.
func (l List) Contains(pc uint64) bool {
	for _, r := range l {
		if pc >= r.Low && pc < r.High {
			return true
		}
	}
	return false
}

const baseSelector32 = 0xffffffff

// ParseDwarf4 reads a DWARF4 .debug_ranges list starting at offset, applying
// base-address-selection entries (marked by the largest representable
// address) and terminating at the first (0,0) entry.
func ParseDwarf4(data []byte, offset int, cuBase uint64, addressSize int) (List, error) {
	r := form.NewReader(data)
	r.Off = offset

	base := cuBase
	var out List

	for {
		lo, err := r.Bytes(addressSize)
		if err != nil {
			return out, err
		}
		hi, err := r.Bytes(addressSize)
		if err != nil {
			return out, err
		}
		loVal := bytesToUint(lo)
		hiVal := bytesToUint(hi)

		if loVal == 0 && hiVal == 0 {
			return out, nil
		}
		if isBaseSelector(loVal, addressSize) {
			base = hiVal
			continue
		}
		out = append(out, Range{Low: base + loVal, High: base + hiVal})
	}
}

func isBaseSelector(lo uint64, addressSize int) bool {
	if addressSize == 4 {
		return lo == baseSelector32
	}
	return lo == ^uint64(0)
}

// DW_RLE_* opcodes (DWARF5 §7.25).
const (
	rleEndOfList    = 0x00
	rleBaseAddressx = 0x01
	rleStartxEndx   = 0x02
	rleStartxLength = 0x03
	rleOffsetPair   = 0x04
	rleBaseAddress  = 0x05
	rleStartEnd     = 0x06
	rleStartLength  = 0x07
)

// AddrResolver resolves DW_FORM_addrx-style indices against .debug_addr.
type AddrResolver interface {
	AddrX(index uint64, addrBase uint64) uint64
}

// ParseDwarf5 reads a DWARF5 .debug_rnglists range list starting at offset.
func ParseDwarf5(data []byte, offset int, cuBase uint64, addrs AddrResolver, addrBase uint64) (List, error) {
	r := form.NewReader(data)
	r.Off = offset

	base := cuBase
	var out List

	for {
		opcode, err := r.U8()
		if err != nil {
			return out, err
		}

		switch opcode {
		case rleEndOfList:
			return out, nil
		case rleBaseAddressx:
			idx, err := r.ULEB()
			if err != nil {
				return out, err
			}
			if addrs != nil {
				base = addrs.AddrX(idx, addrBase)
			}
		case rleStartxEndx:
			sIdx, err := r.ULEB()
			if err != nil {
				return out, err
			}
			eIdx, err := r.ULEB()
			if err != nil {
				return out, err
			}
			if addrs != nil {
				out = append(out, Range{Low: addrs.AddrX(sIdx, addrBase), High: addrs.AddrX(eIdx, addrBase)})
			}
		case rleStartxLength:
			sIdx, err := r.ULEB()
			if err != nil {
				return out, err
			}
			length, err := r.ULEB()
			if err != nil {
				return out, err
			}
			if addrs != nil {
				lo := addrs.AddrX(sIdx, addrBase)
				out = append(out, Range{Low: lo, High: lo + length})
			}
		case rleOffsetPair:
			lo, err := r.ULEB()
			if err != nil {
				return out, err
			}
			hi, err := r.ULEB()
			if err != nil {
				return out, err
			}
			out = append(out, Range{Low: base + lo, High: base + hi})
		case rleBaseAddress:
			v, err := r.U64()
			if err != nil {
				return out, err
			}
			base = v
		case rleStartEnd:
			lo, err := r.U64()
			if err != nil {
				return out, err
			}
			hi, err := r.U64()
			if err != nil {
				return out, err
			}
			out = append(out, Range{Low: lo, High: hi})
		case rleStartLength:
			lo, err := r.U64()
			if err != nil {
				return out, err
			}
			length, err := r.ULEB()
			if err != nil {
				return out, err
			}
			out = append(out, Range{Low: lo, High: lo + length})
		default:
			return out, engineerrs.New(engineerrs.Format, "nativedbg: unknown DW_RLE opcode: %#x", opcode)
		}
	}
}

func bytesToUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
