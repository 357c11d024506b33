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

// Package abbrev parses the .debug_abbrev section (component C3): per-CU
// attribute schemas referenced by DIEs via an abbreviation code.
package abbrev

import (
	"sync"

	"github.com/ashgrove/nativedbg/dwarfbin/form"
)

// Attr is one (name, form) pair in an abbreviation, with an optional inline
// value for DW_FORM_implicit_const, which contributes zero bytes to the
// owning DIE's payload.
type Attr struct {
	Name           uint64
	Form           uint64
	ImplicitConst  int64
	HasImplicitVal bool
}

// Declaration is one abbreviation table entry.
type Declaration struct {
	Code        uint64
	Tag         uint64
	HasChildren bool
	Attrs       []Attr
}

// Table maps abbreviation code to Declaration for one .debug_abbrev offset.
type Table map[uint64]*Declaration

// DW_TAG and DW_AT values needed elsewhere are intentionally not duplicated
// here; abbrev only needs the wire shape of the table, not the meaning of
// any particular tag or attribute.

const (
	dwFormImplicitConst = 0x21
)

// Parse decodes the abbreviation table located at the given offset within
// data (the full .debug_abbrev section). Parsing stops at the first
// null-terminator abbreviation (code 0) or at the end of the section.
func Parse(data []byte, offset int) (Table, error) {
	r := form.NewReader(data)
	r.Off = offset

	t := make(Table)
	for r.Off < len(r.Data) {
		code, err := r.ULEB()
		if err != nil {
			return t, err
		}
		if code == 0 {
			break
		}

		tag, err := r.ULEB()
		if err != nil {
			return t, err
		}
		hasChildren, err := r.U8()
		if err != nil {
			return t, err
		}

		decl := &Declaration{Code: code, Tag: tag, HasChildren: hasChildren != 0}

		for {
			name, err := r.ULEB()
			if err != nil {
				return t, err
			}
			aform, err := r.ULEB()
			if err != nil {
				return t, err
			}

			var a Attr
			a.Name = name
			a.Form = aform

			if aform == dwFormImplicitConst {
				v, err := r.SLEB()
				if err != nil {
					return t, err
				}
				a.ImplicitConst = v
				a.HasImplicitVal = true
			}

			if name == 0 && aform == 0 {
				break
			}
			decl.Attrs = append(decl.Attrs, a)
		}

		t[code] = decl
	}

	return t, nil
}

// Cache memoises abbreviation tables keyed by their byte offset in
// .debug_abbrev, shared across compilation units that reuse the same table
// (a common producer optimisation).
type Cache struct {
	mu   sync.Mutex
	data []byte
	byOff map[int]Table
}

// NewCache creates a Cache over the full .debug_abbrev section bytes.
func NewCache(data []byte) *Cache {
	return &Cache{data: data, byOff: make(map[int]Table)}
}

// Get returns the Table at offset, parsing and memoising it on first use.
func (c *Cache) Get(offset int) (Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.byOff[offset]; ok {
		return t, nil
	}
	t, err := Parse(c.data, offset)
	if err != nil {
		return nil, err
	}
	c.byOff[offset] = t
	return t, nil
}
