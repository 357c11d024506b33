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

// Package form implements the fixed-width readers and the skipForm
// dispatcher used to walk DWARF attribute values without interpreting them
// (component C2).
package form

import (
	"encoding/binary"

	"github.com/ashgrove/nativedbg/dwarfbin/leb128"
	"github.com/ashgrove/nativedbg/engineerrs"
)

// DWARF form codes (DWARF4 §7.5.6 / DWARF5 §7.5.6).
const (
	DW_FORM_addr         = 0x01
	DW_FORM_block2       = 0x03
	DW_FORM_block4       = 0x04
	DW_FORM_data2        = 0x05
	DW_FORM_data4        = 0x06
	DW_FORM_data8        = 0x07
	DW_FORM_string       = 0x08
	DW_FORM_block        = 0x09
	DW_FORM_block1       = 0x0a
	DW_FORM_data1        = 0x0b
	DW_FORM_flag         = 0x0c
	DW_FORM_sdata        = 0x0d
	DW_FORM_strp         = 0x0e
	DW_FORM_udata        = 0x0f
	DW_FORM_ref_addr     = 0x10
	DW_FORM_ref1         = 0x11
	DW_FORM_ref2         = 0x12
	DW_FORM_ref4         = 0x13
	DW_FORM_ref8         = 0x14
	DW_FORM_ref_udata    = 0x15
	DW_FORM_indirect     = 0x16
	DW_FORM_sec_offset   = 0x17
	DW_FORM_exprloc      = 0x18
	DW_FORM_flag_present = 0x19
	DW_FORM_strx         = 0x1a
	DW_FORM_addrx        = 0x1b
	DW_FORM_ref_sup4     = 0x1c
	DW_FORM_strp_sup     = 0x1d
	DW_FORM_data16       = 0x1e
	DW_FORM_line_strp    = 0x1f
	DW_FORM_ref_sig8     = 0x20
	DW_FORM_implicit_const = 0x21
	DW_FORM_loclistx     = 0x22
	DW_FORM_rnglistx     = 0x23
	DW_FORM_ref_sup8     = 0x24
	DW_FORM_strx1        = 0x25
	DW_FORM_strx2        = 0x26
	DW_FORM_strx3        = 0x27
	DW_FORM_strx4        = 0x28
	DW_FORM_addrx1       = 0x29
	DW_FORM_addrx2       = 0x2a
	DW_FORM_addrx3       = 0x2b
	DW_FORM_addrx4       = 0x2c
)

// Reader wraps a byte slice with a cursor and exposes the fixed-width little
// endian readers DWARF needs, plus the LEB128 readers.
type Reader struct {
	Data []byte
	Off  int
}

func NewReader(data []byte) *Reader { return &Reader{Data: data} }

func (r *Reader) remaining() []byte { return r.Data[r.Off:] }

func (r *Reader) need(n int) error {
	if r.Off+n > len(r.Data) {
		return engineerrs.New(engineerrs.Parse, engineerrs.PatOutOfBoundsRead, "form")
	}
	return nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.Data[r.Off]
	r.Off++
	return v, nil
}

func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.Data[r.Off:])
	r.Off += 2
	return v, nil
}

func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.Data[r.Off:])
	r.Off += 4
	return v, nil
}

func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.Data[r.Off:])
	r.Off += 8
	return v, nil
}

func (r *Reader) ULEB() (uint64, error) {
	v, n, err := leb128.DecodeULEB128(r.remaining())
	if err != nil {
		return 0, err
	}
	r.Off += n
	return v, nil
}

func (r *Reader) SLEB() (int64, error) {
	v, n, err := leb128.DecodeSLEB128(r.remaining())
	if err != nil {
		return 0, err
	}
	r.Off += n
	return v, nil
}

// CString reads a NUL-terminated string.
func (r *Reader) CString() (string, error) {
	i := r.Off
	for i < len(r.Data) && r.Data[i] != 0 {
		i++
	}
	if i >= len(r.Data) {
		return "", engineerrs.New(engineerrs.Parse, engineerrs.PatOutOfBoundsRead, "cstring")
	}
	s := string(r.Data[r.Off:i])
	r.Off = i + 1
	return s, nil
}

// Bytes consumes and returns n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.Data[r.Off : r.Off+n]
	r.Off += n
	return b, nil
}

// SkipForm advances r past one value of the given form without interpreting
// it. addressSize and dwarf64 (true if the compilation unit uses the 64-bit
// DWARF format) disambiguate the address- and offset-sized forms.
// DW_FORM_indirect reads an embedded ULEB form code and recurses.
func SkipForm(r *Reader, f uint64, addressSize int, dwarf64 bool) error {
	offsetSize := 4
	if dwarf64 {
		offsetSize = 8
	}

	switch f {
	case DW_FORM_addr:
		_, err := r.Bytes(addressSize)
		return err
	case DW_FORM_block2:
		n, err := r.U16()
		if err != nil {
			return err
		}
		_, err = r.Bytes(int(n))
		return err
	case DW_FORM_block4:
		n, err := r.U32()
		if err != nil {
			return err
		}
		_, err = r.Bytes(int(n))
		return err
	case DW_FORM_data2, DW_FORM_ref2, DW_FORM_strx2, DW_FORM_addrx2:
		_, err := r.U16()
		return err
	case DW_FORM_data4, DW_FORM_ref4, DW_FORM_ref_sup4, DW_FORM_strx4, DW_FORM_addrx4:
		_, err := r.U32()
		return err
	case DW_FORM_data8, DW_FORM_ref8, DW_FORM_ref_sig8, DW_FORM_ref_sup8:
		_, err := r.U64()
		return err
	case DW_FORM_data16:
		_, err := r.Bytes(16)
		return err
	case DW_FORM_string:
		_, err := r.CString()
		return err
	case DW_FORM_block, DW_FORM_exprloc:
		n, err := r.ULEB()
		if err != nil {
			return err
		}
		_, err = r.Bytes(int(n))
		return err
	case DW_FORM_block1:
		n, err := r.U8()
		if err != nil {
			return err
		}
		_, err = r.Bytes(int(n))
		return err
	case DW_FORM_data1, DW_FORM_flag, DW_FORM_ref1, DW_FORM_strx1, DW_FORM_addrx1:
		_, err := r.U8()
		return err
	case DW_FORM_strx3, DW_FORM_addrx3:
		_, err := r.Bytes(3)
		return err
	case DW_FORM_sdata:
		_, err := r.SLEB()
		return err
	case DW_FORM_strp, DW_FORM_line_strp, DW_FORM_sec_offset, DW_FORM_ref_addr, DW_FORM_strp_sup:
		_, err := r.Bytes(offsetSize)
		return err
	case DW_FORM_udata, DW_FORM_ref_udata, DW_FORM_strx, DW_FORM_addrx, DW_FORM_loclistx, DW_FORM_rnglistx:
		_, err := r.ULEB()
		return err
	case DW_FORM_flag_present, DW_FORM_implicit_const:
		return nil
	case DW_FORM_indirect:
		inner, err := r.ULEB()
		if err != nil {
			return err
		}
		return SkipForm(r, inner, addressSize, dwarf64)
	default:
		return engineerrs.New(engineerrs.Format, engineerrs.PatUnknownForm, f)
	}
}
