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

// Package inspect implements the variable inspector (component C13):
// resolving a DIE-described variable's location expression against live
// process state, formatting the result by type, and walking composite
// children (struct members, array elements, dereferenced pointers).
package inspect

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ashgrove/nativedbg/dwarfbin/locexpr"
	"github.com/ashgrove/nativedbg/engineerrs"
)

// TypeKind classifies a resolved type for formatting purposes.
type TypeKind int

const (
	KindBase TypeKind = iota
	KindPointer
	KindArray
	KindStruct
	KindEnum
	KindTypedef
)

// Encoding mirrors the handful of DW_ATE_* values the formatter cares
// about.
type Encoding int

const (
	EncSigned Encoding = iota
	EncUnsigned
	EncFloat
	EncBoolean
	EncSignedChar
	EncUnsignedChar
)

// Type describes enough of a DWARF type DIE to format and navigate a value:
// base types carry an Encoding and ByteSize, pointers and arrays carry an
// Elem, structs carry Members.
type Type struct {
	Name     string
	Kind     TypeKind
	Encoding Encoding
	ByteSize int
	Elem     *Type
	Count    int // array element count, 0 if unknown
	Members  []Member
}

// Member is one struct/union field: Name plus its Type and byte Offset
// from the start of the containing value.
type Member struct {
	Name   string
	Type   *Type
	Offset int64
}

// Memory is the narrow process-memory interface the inspector reads
// through; satisfied by procctl.Controller's ReadMemory/WriteMemory.
type Memory interface {
	ReadMemory(ctx context.Context, addr uint64, size int) ([]byte, error)
	WriteMemory(ctx context.Context, addr uint64, data []byte) error
}

// Variable is a resolved, formattable value: its name, type and storage
// location, plus the Memory its bytes are read through.
type Variable struct {
	Name string
	Type *Type
	Loc  locexpr.Result
	mem  Memory
}

// Resolve binds an already-evaluated location to a name and type. It
// evaluates nothing and reads no memory; Read does that, dispatching on
// whether loc is an address, a register or literal value, or a set of
// pieces.
func Resolve(name string, t *Type, loc locexpr.Result, mem Memory) *Variable {
	return &Variable{Name: name, Type: t, Loc: loc, mem: mem}
}

// Read returns the variable's raw value bytes, reading through Memory when
// the location is an address, or materialising pieces/registers/literals
// directly otherwise.
func (v *Variable) Read(ctx context.Context) ([]byte, error) {
	size := v.Type.ByteSize
	if size == 0 {
		size = 8
	}

	switch {
	case v.Loc.IsAddress:
		return v.mem.ReadMemory(ctx, v.Loc.Address, size)
	case v.Loc.IsLiteral:
		b := make([]byte, 8)
		for i := 0; i < 8; i++ {
			b[i] = byte(v.Loc.Literal >> (8 * i))
		}
		return b[:size], nil
	case v.Loc.IsRegister:
		return nil, engineerrs.New(engineerrs.NotSupp, engineerrs.PatNotSupported, "reading a register-resident variable without a register file")
	case len(v.Loc.Pieces) > 0:
		var out []byte
		for _, p := range v.Loc.Pieces {
			switch p.Kind {
			case locexpr.PieceMemory:
				b, err := v.mem.ReadMemory(ctx, p.Address, size)
				if err != nil {
					return nil, err
				}
				out = append(out, b...)
			case locexpr.PieceLiteral:
				out = append(out, p.Literal...)
			}
		}
		return out, nil
	}
	return nil, engineerrs.New(engineerrs.NotFound, engineerrs.PatVariableNotFound, v.Name)
}

// Write stores raw bytes back to the variable's address; variables that are
// not address-resolved (registers, literals, composite pieces) cannot be
// written through this path.
func (v *Variable) Write(ctx context.Context, data []byte) error {
	if !v.Loc.IsAddress {
		return engineerrs.New(engineerrs.Policy, engineerrs.PatCannotWriteVariable, v.Name)
	}
	return v.mem.WriteMemory(ctx, v.Loc.Address, data)
}

// Format renders the variable's current value the way the type dictates:
// an integer, a float, a boolean, a hex pointer, or a bracketed composite
// summary. Composite formatting does not recurse into memory for
// sub-fields; Member, Index and Deref do that.
func (v *Variable) Format(ctx context.Context) (string, error) {
	switch v.Type.Kind {
	case KindArray:
		return fmt.Sprintf("%s[%d]", v.Type.Elem.Name, v.Type.Count), nil
	case KindStruct:
		names := make([]string, len(v.Type.Members))
		for i, m := range v.Type.Members {
			names[i] = m.Name
		}
		return fmt.Sprintf("{%s}", strings.Join(names, ", ")), nil
	case KindPointer:
		b, err := v.Read(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("0x%x", bytesToUint(b)), nil
	}

	b, err := v.Read(ctx)
	if err != nil {
		return "", err
	}
	return formatScalar(v.Type, b)
}

func formatScalar(t *Type, b []byte) (string, error) {
	switch t.Encoding {
	case EncBoolean:
		if bytesToUint(b) != 0 {
			return "true", nil
		}
		return "false", nil
	case EncFloat:
		switch t.ByteSize {
		case 4:
			return strconv.FormatFloat(float64(math.Float32frombits(uint32(bytesToUint(b)))), 'g', -1, 32), nil
		default:
			return strconv.FormatFloat(math.Float64frombits(bytesToUint(b)), 'g', -1, 64), nil
		}
	case EncSignedChar, EncUnsignedChar:
		return fmt.Sprintf("'%c'", rune(b[0])), nil
	case EncSigned:
		return strconv.FormatInt(signExtend(bytesToUint(b), t.ByteSize), 10), nil
	default:
		return strconv.FormatUint(bytesToUint(b), 10), nil
	}
}

func signExtend(v uint64, size int) int64 {
	shift := uint(64 - size*8)
	return int64(v<<shift) >> shift
}

func bytesToUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Member looks up a struct field by name and returns a Variable for it,
// resolved at the parent's address plus the field's byte offset.
func (v *Variable) Member(name string) (*Variable, error) {
	if v.Type.Kind != KindStruct {
		return nil, engineerrs.New(engineerrs.Policy, "nativedbg: %s is not a struct", v.Name)
	}
	if !v.Loc.IsAddress {
		return nil, engineerrs.New(engineerrs.Policy, "nativedbg: %s has no address to offset members from", v.Name)
	}
	for _, m := range v.Type.Members {
		if m.Name == name {
			return &Variable{
				Name: v.Name + "." + name,
				Type: m.Type,
				Loc:  locexpr.Result{IsAddress: true, Address: uint64(int64(v.Loc.Address) + m.Offset)},
				mem:  v.mem,
			}, nil
		}
	}
	return nil, engineerrs.New(engineerrs.NotFound, engineerrs.PatVariableNotFound, name)
}

// Index returns element i of an array variable.
func (v *Variable) Index(i int) (*Variable, error) {
	if v.Type.Kind != KindArray {
		return nil, engineerrs.New(engineerrs.Policy, "nativedbg: %s is not an array", v.Name)
	}
	if !v.Loc.IsAddress {
		return nil, engineerrs.New(engineerrs.Policy, "nativedbg: %s has no address to index", v.Name)
	}
	if v.Type.Count > 0 && (i < 0 || i >= v.Type.Count) {
		return nil, engineerrs.New(engineerrs.Policy, "nativedbg: index %d out of bounds for %s[%d]", i, v.Name, v.Type.Count)
	}
	elemSize := uint64(v.Type.Elem.ByteSize)
	return &Variable{
		Name: fmt.Sprintf("%s[%d]", v.Name, i),
		Type: v.Type.Elem,
		Loc:  locexpr.Result{IsAddress: true, Address: v.Loc.Address + uint64(i)*elemSize},
		mem:  v.mem,
	}, nil
}

// Deref follows a pointer variable to the Variable it points at.
func (v *Variable) Deref(ctx context.Context) (*Variable, error) {
	if v.Type.Kind != KindPointer {
		return nil, engineerrs.New(engineerrs.Policy, "nativedbg: %s is not a pointer", v.Name)
	}
	b, err := v.Read(ctx)
	if err != nil {
		return nil, err
	}
	return &Variable{
		Name: "*" + v.Name,
		Type: v.Type.Elem,
		Loc:  locexpr.Result{IsAddress: true, Address: bytesToUint(b)},
		mem:  v.mem,
	}, nil
}
