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

// Package dietree implements the DIE / type graph parser (component C5): a
// walk of one compilation unit (Build) that builds a DIE-offset-keyed tree
// of every DIE. It does not extract subprogram, scope or variable tables for
// a target PC.
package dietree

import (
	"github.com/ashgrove/nativedbg/dwarfbin/abbrev"
	"github.com/ashgrove/nativedbg/dwarfbin/form"
	"github.com/ashgrove/nativedbg/engineerrs"
)

// DWARF tags this package cares about (DWARF4/5 §7.5.4 / Appendix A).
const (
	TagArrayType            = 0x01
	TagEnumerationType       = 0x04
	TagFormalParameter       = 0x05
	TagMember                = 0x0d
	TagPointerType           = 0x0f
	TagCompileUnit           = 0x11
	TagStructureType         = 0x13
	TagSubroutineType        = 0x15
	TagTypedef               = 0x16
	TagUnionType             = 0x17
	TagUnspecifiedParameters = 0x18
	TagVariant               = 0x19
	TagInheritance           = 0x1c
	TagSubrangeType          = 0x21
	TagConstType             = 0x26
	TagEnumerator            = 0x28
	TagSubprogram            = 0x2e
	TagVariable              = 0x34
	TagVolatileType          = 0x35
	TagRestrictType          = 0x37
	TagInterfaceType         = 0x38
	TagClassType             = 0x02
	TagInlinedSubroutine     = 0x1d
	TagReferenceType         = 0x10
	TagRvalueReferenceType   = 0x42
	TagPtrToMemberType       = 0x1f
	TagAtomicType            = 0x47
	TagVariantPart           = 0x33
	TagUnspecifiedType       = 0x3b
)

// DWARF attributes this package cares about.
const (
	AtName          = 0x03
	AtByteSize      = 0x0b
	AtStmtList      = 0x10
	AtLowPC         = 0x11
	AtHighPC        = 0x12
	AtLanguage      = 0x13
	AtCompDir       = 0x1b
	AtConstValue    = 0x1c
	AtUpperBound    = 0x2f
	AtCount         = 0x37
	AtAbstractOrigin = 0x31
	AtType          = 0x49
	AtFrameBase     = 0x40
	AtRanges        = 0x55
	AtCallFile      = 0x58
	AtCallLine      = 0x59
	AtCallColumn    = 0x57
	AtEncoding      = 0x3e
	AtLocation      = 0x02
	AtDeclFile      = 0x3a
	AtDeclLine      = 0x3b
	AtLinkageName   = 0x6e
	AtDiscrValue    = 0x88
	AtStrOffsetsBase = 0x72
	AtAddrBase      = 0x73
	AtRnglistsBase  = 0x74
	AtLoclistsBase  = 0x8c
	AtSibling       = 0x01
)

// Die is one Debugging Information Entry. Attrs holds raw decoded values
// keyed by attribute code; values are one of: uint64 (constants, refs,
// addresses), int64 (signed constants), string, or []byte (exprloc/block).
type Die struct {
	Offset       int
	ParentOffset int // -1 if this DIE is a CU root
	Tag          uint64
	Attrs        map[uint64]interface{}
	Children     []int // offsets, in document order
}

func (d *Die) str(at uint64) (string, bool) {
	v, ok := d.Attrs[at]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (d *Die) u64(at uint64) (uint64, bool) {
	v, ok := d.Attrs[at]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	}
	return 0, false
}

func (d *Die) i64(at uint64) (int64, bool) {
	v, ok := d.Attrs[at]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func (d *Die) bytes(at uint64) ([]byte, bool) {
	v, ok := d.Attrs[at]
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// Name returns DW_AT_name, or "" if absent.
func (d *Die) Name() string { s, _ := d.str(AtName); return s }

// Tree is the result of the pass-1 walk of one compilation unit: every DIE
// keyed by its section-relative offset.
type Tree struct {
	CUOffset      int
	Version       uint16
	AddressSize   int
	Dwarf64       bool
	ByOffset      map[int]*Die
	Root          *Die
	StrOffsetsBase uint64
	AddrBase      uint64
}

// StrResolver resolves indexed/offset string forms against .debug_str,
// .debug_str_offsets and .debug_line_str.
type StrResolver interface {
	DebugStr(offset uint64) string
	StrX(index uint64, strOffsetsBase uint64) string
}

// AddrResolver resolves DW_FORM_addrx against .debug_addr.
type AddrResolver interface {
	AddrX(index uint64, addrBase uint64) uint64
}

const maxParentDepth = 64

// Build runs pass 1 over the compilation unit starting at cuOffset within
// info. It records every DIE (not only type-kind tags — later passes over
// the same Tree need subprogram and variable DIEs too) with its parent
// offset, tracking a parent stack bounded at maxParentDepth.
func Build(info []byte, cuOffset int, abbrevTable abbrev.Table, strs StrResolver, addrs AddrResolver) (*Tree, error) {
	r := form.NewReader(info)
	r.Off = cuOffset

	unitLength, err := r.U32()
	if err != nil {
		return nil, err
	}
	dwarf64 := false
	if unitLength == 0xffffffff {
		dwarf64 = true
		if _, err := r.U64(); err != nil {
			return nil, err
		}
	}

	version, err := r.U16()
	if err != nil {
		return nil, err
	}

	t := &Tree{CUOffset: cuOffset, Version: version, Dwarf64: dwarf64, ByOffset: make(map[int]*Die)}

	if version >= 5 {
		if _, err := r.U8(); err != nil { // unit_type
			return nil, err
		}
		addrSize, err := r.U8()
		if err != nil {
			return nil, err
		}
		t.AddressSize = int(addrSize)
		if dwarf64 {
			if _, err := r.U64(); err != nil { // debug_abbrev_offset
				return nil, err
			}
		} else if _, err := r.U32(); err != nil {
			return nil, err
		}
	} else {
		if dwarf64 {
			if _, err := r.U64(); err != nil {
				return nil, err
			}
		} else if _, err := r.U32(); err != nil {
			return nil, err
		}
		addrSize, err := r.U8()
		if err != nil {
			return nil, err
		}
		t.AddressSize = int(addrSize)
	}

	type frame struct {
		offset       int
		remaining    int // children left unknown; we rely on HasChildren markers instead
	}
	var stack []frame

	parentOf := func() int {
		if len(stack) == 0 {
			return -1
		}
		return stack[len(stack)-1].offset
	}

	for {
		dieOffset := r.Off
		code, err := r.ULEB()
		if err != nil {
			break
		}
		if code == 0 {
			// null entry: closes the innermost open sibling chain
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 && t.Root != nil {
				break
			}
			continue
		}

		decl, ok := abbrevTable[code]
		if !ok {
			return t, engineerrs.New(engineerrs.Format, engineerrs.PatUnknownForm, code)
		}

		die := &Die{
			Offset:       dieOffset,
			ParentOffset: parentOf(),
			Tag:          decl.Tag,
			Attrs:        make(map[uint64]interface{}, len(decl.Attrs)),
		}

		for _, a := range decl.Attrs {
			if a.HasImplicitVal {
				die.Attrs[a.Name] = a.ImplicitConst
				continue
			}
			v, err := readAttrValue(r, a.Form, t, strs, addrs)
			if err != nil {
				return t, err
			}
			if v != nil {
				die.Attrs[a.Name] = v
			}
		}

		t.ByOffset[dieOffset] = die
		if die.ParentOffset >= 0 {
			if p, ok := t.ByOffset[die.ParentOffset]; ok {
				p.Children = append(p.Children, dieOffset)
			}
		}
		if t.Root == nil {
			t.Root = die
			if v, ok := die.u64(AtStrOffsetsBase); ok {
				t.StrOffsetsBase = v
			}
			if v, ok := die.u64(AtAddrBase); ok {
				t.AddrBase = v
			}
		}

		if decl.HasChildren {
			if len(stack) >= maxParentDepth {
				return t, engineerrs.New(engineerrs.Parse, "nativedbg: DIE nesting exceeds depth bound of %d", maxParentDepth)
			}
			stack = append(stack, frame{offset: dieOffset})
		} else if len(stack) == 0 && t.Root != nil && t.Root.Offset == dieOffset {
			// a childless CU root is itself the whole unit
			break
		}
	}

	return t, nil
}

func readAttrValue(r *form.Reader, f uint64, t *Tree, strs StrResolver, addrs AddrResolver) (interface{}, error) {
	switch f {
	case form.DW_FORM_addr:
		b, err := r.Bytes(t.AddressSize)
		if err != nil {
			return nil, err
		}
		return bytesToUint(b), nil
	case form.DW_FORM_data1, form.DW_FORM_ref1, form.DW_FORM_strx1, form.DW_FORM_addrx1, form.DW_FORM_flag:
		v, err := r.U8()
		return uint64(v), err
	case form.DW_FORM_data2, form.DW_FORM_ref2, form.DW_FORM_strx2, form.DW_FORM_addrx2:
		v, err := r.U16()
		return uint64(v), err
	case form.DW_FORM_strx3, form.DW_FORM_addrx3:
		b, err := r.Bytes(3)
		if err != nil {
			return nil, err
		}
		return bytesToUint(b), nil
	case form.DW_FORM_data4, form.DW_FORM_ref4, form.DW_FORM_strx4, form.DW_FORM_addrx4:
		v, err := r.U32()
		return uint64(v), err
	case form.DW_FORM_data8, form.DW_FORM_ref8:
		v, err := r.U64()
		return v, err
	case form.DW_FORM_ref_sig8:
		v, err := r.U64()
		return v, err // resolved against the type-signature map by accel, not here
	case form.DW_FORM_data16:
		return r.Bytes(16)
	case form.DW_FORM_sdata:
		return r.SLEB()
	case form.DW_FORM_udata, form.DW_FORM_ref_udata, form.DW_FORM_loclistx, form.DW_FORM_rnglistx:
		return r.ULEB()
	case form.DW_FORM_string:
		return r.CString()
	case form.DW_FORM_strp:
		off, err := readOffset(r, t.Dwarf64)
		if err != nil {
			return nil, err
		}
		if strs != nil {
			return strs.DebugStr(off), nil
		}
		return "", nil
	case form.DW_FORM_line_strp:
		off, err := readOffset(r, t.Dwarf64)
		if err != nil {
			return nil, err
		}
		if strs != nil {
			return strs.DebugStr(off), nil
		}
		return "", nil
	case form.DW_FORM_strx:
		idx, err := r.ULEB()
		if err != nil {
			return nil, err
		}
		if strs != nil {
			return strs.StrX(idx, t.StrOffsetsBase), nil
		}
		return "", nil
	case form.DW_FORM_addrx:
		idx, err := r.ULEB()
		if err != nil {
			return nil, err
		}
		if addrs != nil {
			return addrs.AddrX(idx, t.AddrBase), nil
		}
		return uint64(0), nil
	case form.DW_FORM_ref_addr, form.DW_FORM_sec_offset, form.DW_FORM_strp_sup:
		off, err := readOffset(r, t.Dwarf64)
		return off, err
	case form.DW_FORM_block1:
		n, err := r.U8()
		if err != nil {
			return nil, err
		}
		return r.Bytes(int(n))
	case form.DW_FORM_block2:
		n, err := r.U16()
		if err != nil {
			return nil, err
		}
		return r.Bytes(int(n))
	case form.DW_FORM_block4:
		n, err := r.U32()
		if err != nil {
			return nil, err
		}
		return r.Bytes(int(n))
	case form.DW_FORM_block, form.DW_FORM_exprloc:
		n, err := r.ULEB()
		if err != nil {
			return nil, err
		}
		return r.Bytes(int(n))
	case form.DW_FORM_flag_present:
		return uint64(1), nil
	case form.DW_FORM_implicit_const:
		return nil, nil // handled by caller via Attr.ImplicitConst
	case form.DW_FORM_indirect:
		inner, err := r.ULEB()
		if err != nil {
			return nil, err
		}
		return readAttrValue(r, inner, t, strs, addrs)
	default:
		return nil, engineerrs.New(engineerrs.Format, engineerrs.PatUnknownForm, f)
	}
}

func readOffset(r *form.Reader, dwarf64 bool) (uint64, error) {
	if dwarf64 {
		return r.U64()
	}
	v, err := r.U32()
	return uint64(v), err
}

func bytesToUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
