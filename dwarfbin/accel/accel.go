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

// Package accel implements the acceleration indices (component C8): a
// binary-searchable .debug_aranges address-to-CU index, and a name-to-DIE
// index keyed by the .debug_names DJB hash. The package does not parse
// .debug_names and has no linear-scan fallback: a NameIndex holds only what
// callers Add to it.
package accel

import (
	"sort"

	"github.com/ashgrove/nativedbg/dwarfbin/form"
	"github.com/ashgrove/nativedbg/engineerrs"
)

// ArangeEntry maps one address range to the compilation unit that owns it.
type ArangeEntry struct {
	Low, High uint64
	CUOffset  int
}

// Aranges is a sorted-by-address index built from .debug_aranges.
type Aranges []ArangeEntry

// ParseAranges decodes the entire .debug_aranges section. Each set begins
// with a length-prefixed header naming the owning CU, followed by
// (address, length) tuples terminated by a zero pair.
func ParseAranges(data []byte, addressSize int) (Aranges, error) {
	r := form.NewReader(data)
	var out Aranges

	for r.Off < len(r.Data) {
		setStart := r.Off
		unitLength, err := r.U32()
		if err != nil {
			break
		}
		setEnd := setStart + 4 + int(unitLength)

		if _, err := r.U16(); err != nil { // version
			return out, err
		}
		cuOffset32, err := r.U32()
		if err != nil {
			return out, err
		}
		addrSize, err := r.U8()
		if err != nil {
			return out, err
		}
		if _, err := r.U8(); err != nil { // segment_selector_size
			return out, err
		}

		size := int(addrSize)
		if size == 0 {
			size = addressSize
		}

		// tuples are aligned to a multiple of 2*size from the start of the set
		align := 2 * size
		pad := (align - (r.Off-setStart)%align) % align
		r.Off += pad

		for r.Off < setEnd {
			loB, err := r.Bytes(size)
			if err != nil {
				return out, err
			}
			lenB, err := r.Bytes(size)
			if err != nil {
				return out, err
			}
			lo := bytesToUint(loB)
			length := bytesToUint(lenB)
			if lo == 0 && length == 0 {
				break
			}
			out = append(out, ArangeEntry{Low: lo, High: lo + length, CUOffset: int(cuOffset32)})
		}
		r.Off = setEnd
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Low < out[j].Low })
	return out, nil
}

// Lookup returns the CU offset owning pc, via binary search, and false if no
// entry covers it.
func (a Aranges) Lookup(pc uint64) (int, bool) {
	i := sort.Search(len(a), func(i int) bool { return a[i].High > pc })
	if i < len(a) && pc >= a[i].Low && pc < a[i].High {
		return a[i].CUOffset, true
	}
	return 0, false
}

// NameEntry is one name -> DIE offset binding from .debug_names.
type NameEntry struct {
	Name     string
	DIEOffset int
	CUOffset int
}

// NameIndex supports name -> DIE lookup via a DJB hash bucket map. It is
// filled only through Add; Lookup never falls back to a scan.
type NameIndex struct {
	buckets map[uint32][]NameEntry
}

// NewNameIndex creates an empty index; use Add to populate it.
func NewNameIndex() *NameIndex {
	return &NameIndex{buckets: make(map[uint32][]NameEntry)}
}

// Add inserts one binding, hashing its name with the DWARF5 DJB variant
// (DWARF5 §6.1.1.4).
func (idx *NameIndex) Add(name string, dieOffset, cuOffset int) {
	h := DJBHash(name)
	idx.buckets[h] = append(idx.buckets[h], NameEntry{Name: name, DIEOffset: dieOffset, CUOffset: cuOffset})
}

// Lookup returns every binding whose name matches exactly (hash bucket plus
// string equality, since DJB hashing admits collisions).
func (idx *NameIndex) Lookup(name string) []NameEntry {
	h := DJBHash(name)
	var out []NameEntry
	for _, e := range idx.buckets[h] {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// DJBHash implements the DWARF5 .debug_names hash function: a plain Bernstein
// DJB hash seeded at 5381.
func DJBHash(s string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

// TypeUnitIndex maps a DWARF5 type-unit signature (DW_FORM_ref_sig8) to the
// offset of the defining type DIE, resolving cross-unit type references.
type TypeUnitIndex map[uint64]int

// Resolve returns the DIE offset for signature, or an error naming the
// missing signature if no type unit defines it.
func (t TypeUnitIndex) Resolve(signature uint64) (int, error) {
	off, ok := t[signature]
	if !ok {
		return 0, engineerrs.New(engineerrs.NotFound, "nativedbg: type signature %#x not found", signature)
	}
	return off, nil
}

func bytesToUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
