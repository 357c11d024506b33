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

// Package cfi implements the Call Frame Information unwinder (component
// C9): CIE/FDE parsing from .eh_frame or .debug_frame and the CFA table
// state machine that recovers a caller's registers from a callee frame.
package cfi

import (
	"github.com/ashgrove/nativedbg/dwarfbin/form"
	"github.com/ashgrove/nativedbg/engineerrs"
)

// CIE is one Common Information Entry: the instruction prologue shared by
// every FDE that references it.
type CIE struct {
	Offset           int
	Version          uint8
	CodeAlignment    uint64
	DataAlignment    int64
	ReturnAddressReg uint64
	Instructions     []byte
	FDEPointerEnc    uint8 // DW_EH_PE_* encoding of FDE PC fields, .eh_frame only
}

// FDE is one Frame Description Entry: the PC range it covers plus the
// instructions that build on its CIE's initial table row.
type FDE struct {
	CIE          *CIE
	Low, High    uint64
	Instructions []byte
}

// Section holds every CIE/FDE pair parsed from one frame section.
type Section struct {
	cies []*CIE
	fdes []*FDE
}

// Parse decodes a raw .debug_frame or .eh_frame section. isEHFrame selects
// the little differences between the two encodings: .eh_frame's CIE id
// field is 0 (not 0xffffffff) and its FDE PC fields may be encoded with a
// DW_EH_PE_* pointer encoding taken from the CIE's "zR" augmentation.
func Parse(data []byte, isEHFrame bool, addressSize int) (*Section, error) {
	sec := &Section{}
	cieByOffset := make(map[int]*CIE)

	r := form.NewReader(data)
	for r.Off < len(r.Data) {
		entryOffset := r.Off
		length, err := r.U32()
		if err != nil {
			break
		}
		if length == 0 {
			break
		}
		end := r.Off + int(length)
		if end > len(r.Data) {
			return sec, engineerrs.New(engineerrs.Parse, "nativedbg: CFI entry overruns section")
		}

		idOffset := r.Off
		cieID, err := r.U32()
		if err != nil {
			return sec, err
		}

		isCIE := cieID == 0xffffffff
		if isEHFrame {
			isCIE = cieID == 0
		}

		if isCIE {
			cie := &CIE{Offset: entryOffset}
			v, err := r.U8()
			if err != nil {
				return sec, err
			}
			cie.Version = v

			aug, err := r.CString()
			if err != nil {
				return sec, err
			}

			if isEHFrame {
				// eh_frame may carry an LSB "Linux Standard Base" CIE with a
				// 'z' augmentation whose length-prefixed body this reader
				// skips without decoding every sub-field.
				if len(aug) > 0 && aug[0] == 'z' {
					cie.CodeAlignment, err = r.ULEB()
					if err != nil {
						return sec, err
					}
					cie.DataAlignment, err = r.SLEB()
					if err != nil {
						return sec, err
					}
					cie.ReturnAddressReg, err = r.ULEB()
					if err != nil {
						return sec, err
					}
					augLen, err := r.ULEB()
					if err != nil {
						return sec, err
					}
					augData, err := r.Bytes(int(augLen))
					if err != nil {
						return sec, err
					}
					cie.FDEPointerEnc = pointerEncFromAugData(aug, augData)
					cie.Instructions = append([]byte(nil), r.Data[r.Off:end]...)
					r.Off = end
					cieByOffset[entryOffset] = cie
					sec.cies = append(sec.cies, cie)
					continue
				}
			}

			cie.CodeAlignment, err = r.ULEB()
			if err != nil {
				return sec, err
			}
			cie.DataAlignment, err = r.SLEB()
			if err != nil {
				return sec, err
			}
			cie.ReturnAddressReg, err = r.ULEB()
			if err != nil {
				return sec, err
			}
			cie.Instructions = append([]byte(nil), r.Data[r.Off:end]...)
			r.Off = end
			cieByOffset[entryOffset] = cie
			sec.cies = append(sec.cies, cie)
			continue
		}

		// FDE: resolve its CIE. In .debug_frame cieID is the CIE's absolute
		// section offset; in .eh_frame it is a backward byte distance from
		// the field that holds it.
		var cieOffset int
		if isEHFrame {
			cieOffset = idOffset - int(cieID)
		} else {
			cieOffset = int(cieID)
		}
		cie, ok := cieByOffset[cieOffset]
		if !ok {
			return sec, engineerrs.New(engineerrs.Parse, "nativedbg: FDE refers to unknown CIE at offset %#x", cieOffset)
		}

		lo, err := readEncodedOrPlain(r, cie.FDEPointerEnc, addressSize)
		if err != nil {
			return sec, err
		}
		length2, err := readEncodedOrPlain(r, cie.FDEPointerEnc&0x0f, addressSize)
		if err != nil {
			return sec, err
		}

		fde := &FDE{CIE: cie, Low: lo, High: lo + length2}
		fde.Instructions = append([]byte(nil), r.Data[r.Off:end]...)
		r.Off = end
		sec.fdes = append(sec.fdes, fde)
	}

	return sec, nil
}

// pointerEncFromAugData extracts the 'R' sub-field's pointer encoding byte
// out of a "zR"/"zPR" augmentation data block; 0 (DW_EH_PE_absptr) if absent.
func pointerEncFromAugData(aug string, data []byte) uint8 {
	i := 0
	for _, c := range aug[1:] {
		switch c {
		case 'R':
			if i < len(data) {
				return data[i]
			}
		case 'L', 'S':
			i++
		case 'P':
			i += 5 // one encoding byte plus a 4-byte pointer, approximated
		}
	}
	return 0
}

func readEncodedOrPlain(r *form.Reader, enc uint8, addressSize int) (uint64, error) {
	// this reader only distinguishes 4-byte vs full-address-size absolute
	// values; indirect/pc-relative DW_EH_PE_* encodings are resolved by the
	// caller relocating against the section's load address.
	if enc&0x0f == 0x03 { // DW_EH_PE_udata4
		v, err := r.U32()
		return uint64(v), err
	}
	b, err := r.Bytes(addressSize)
	if err != nil {
		return 0, err
	}
	return bytesToUint(b), nil
}

// FindFDE returns the FDE covering pc, or nil if none does.
func (s *Section) FindFDE(pc uint64) *FDE {
	for _, f := range s.fdes {
		if pc >= f.Low && pc < f.High {
			return f
		}
	}
	return nil
}

// RegisterRuleKind classifies how a Row recovers one register's value in
// the caller's frame.
type RegisterRuleKind int

const (
	RuleUndefined RegisterRuleKind = iota
	RuleSameValue
	RuleOffset   // value at CFA+offset
	RuleRegister // value is the given register's value
	RuleExpression
)

// RegisterRule is one entry of a Row's register table.
type RegisterRule struct {
	Kind   RegisterRuleKind
	Offset int64
	Reg    uint64
	Expr   []byte
}

// Row is one row of the call frame table: how to compute the CFA and how to
// recover every register, valid from Location up to (but not including) the
// next row's Location.
type Row struct {
	Location   uint64
	CFARegister uint64
	CFAOffset   int64
	CFAExpr     []byte
	Registers   map[uint64]RegisterRule
}

func cloneRow(r Row) Row {
	regs := make(map[uint64]RegisterRule, len(r.Registers))
	for k, v := range r.Registers {
		regs[k] = v
	}
	r.Registers = regs
	return r
}

// DW_CFA_* opcodes (DWARF4/5 §6.4.2).
const (
	cfaAdvanceLoc      = 0x40 // high 2 bits set, low 6 bits = delta
	cfaOffset          = 0x80 // high 2 bits set, low 6 bits = register
	cfaRestore         = 0xc0 // high 2 bits set, low 6 bits = register
	cfaNop             = 0x00
	cfaSetLoc          = 0x01
	cfaAdvanceLoc1     = 0x02
	cfaAdvanceLoc2     = 0x03
	cfaAdvanceLoc4     = 0x04
	cfaOffsetExtended  = 0x05
	cfaRestoreExtended = 0x06
	cfaUndefined       = 0x07
	cfaSameValue       = 0x08
	cfaRegister        = 0x09
	cfaRememberState   = 0x0a
	cfaRestoreState    = 0x0b
	cfaDefCFA          = 0x0c
	cfaDefCFARegister  = 0x0d
	cfaDefCFAOffset    = 0x0e
	cfaDefCFAExpr      = 0x0f
	cfaExpression      = 0x10
	cfaOffsetExtSf     = 0x11
	cfaDefCFASf        = 0x12
	cfaDefCFAOffsetSf  = 0x13
	cfaValOffset       = 0x14
	cfaValOffsetSf     = 0x15
	cfaValExpression   = 0x16
)

// RunTable executes a CIE's then an FDE's instructions and returns the call
// frame table rows produced, one per distinct Location.
func RunTable(cie *CIE, fde *FDE) ([]Row, error) {
	initial := Row{Location: fde.Low, Registers: make(map[uint64]RegisterRule)}

	var rows []Row
	var stack []Row
	cur := initial

	run := func(instructions []byte) error {
		r := form.NewReader(instructions)
		for r.Off < len(r.Data) {
			op, err := r.U8()
			if err != nil {
				return err
			}

			high2 := op & 0xc0
			low6 := uint64(op & 0x3f)

			switch high2 {
			case cfaAdvanceLoc:
				rows = append(rows, cloneRow(cur))
				cur.Location += low6 * cie.CodeAlignment
				continue
			case cfaOffset:
				n, err := r.ULEB()
				if err != nil {
					return err
				}
				cur.Registers[low6] = RegisterRule{Kind: RuleOffset, Offset: int64(n) * cie.DataAlignment}
				continue
			case cfaRestore:
				delete(cur.Registers, low6)
				continue
			}

			switch op {
			case cfaNop:
			case cfaSetLoc:
				rows = append(rows, cloneRow(cur))
				v, err := r.U64()
				if err != nil {
					return err
				}
				cur.Location = v
			case cfaAdvanceLoc1:
				rows = append(rows, cloneRow(cur))
				v, err := r.U8()
				if err != nil {
					return err
				}
				cur.Location += uint64(v) * cie.CodeAlignment
			case cfaAdvanceLoc2:
				rows = append(rows, cloneRow(cur))
				v, err := r.U16()
				if err != nil {
					return err
				}
				cur.Location += uint64(v) * cie.CodeAlignment
			case cfaAdvanceLoc4:
				rows = append(rows, cloneRow(cur))
				v, err := r.U32()
				if err != nil {
					return err
				}
				cur.Location += uint64(v) * cie.CodeAlignment
			case cfaOffsetExtended:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				n, err := r.ULEB()
				if err != nil {
					return err
				}
				cur.Registers[reg] = RegisterRule{Kind: RuleOffset, Offset: int64(n) * cie.DataAlignment}
			case cfaOffsetExtSf, cfaValOffsetSf:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				n, err := r.SLEB()
				if err != nil {
					return err
				}
				cur.Registers[reg] = RegisterRule{Kind: RuleOffset, Offset: n * cie.DataAlignment}
			case cfaRestoreExtended:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				delete(cur.Registers, reg)
			case cfaUndefined:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				cur.Registers[reg] = RegisterRule{Kind: RuleUndefined}
			case cfaSameValue:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				cur.Registers[reg] = RegisterRule{Kind: RuleSameValue}
			case cfaRegister:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				other, err := r.ULEB()
				if err != nil {
					return err
				}
				cur.Registers[reg] = RegisterRule{Kind: RuleRegister, Reg: other}
			case cfaRememberState:
				stack = append(stack, cloneRow(cur))
			case cfaRestoreState:
				if len(stack) == 0 {
					return engineerrs.New(engineerrs.Parse, "nativedbg: DW_CFA_restore_state with empty stack")
				}
				cur = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			case cfaDefCFA:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				off, err := r.ULEB()
				if err != nil {
					return err
				}
				cur.CFARegister = reg
				cur.CFAOffset = int64(off)
			case cfaDefCFASf:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				off, err := r.SLEB()
				if err != nil {
					return err
				}
				cur.CFARegister = reg
				cur.CFAOffset = off * cie.DataAlignment
			case cfaDefCFARegister:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				cur.CFARegister = reg
			case cfaDefCFAOffset:
				off, err := r.ULEB()
				if err != nil {
					return err
				}
				cur.CFAOffset = int64(off)
			case cfaDefCFAOffsetSf:
				off, err := r.SLEB()
				if err != nil {
					return err
				}
				cur.CFAOffset = off * cie.DataAlignment
			case cfaDefCFAExpr:
				n, err := r.ULEB()
				if err != nil {
					return err
				}
				b, err := r.Bytes(int(n))
				if err != nil {
					return err
				}
				cur.CFAExpr = append([]byte(nil), b...)
			case cfaExpression, cfaValExpression:
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				n, err := r.ULEB()
				if err != nil {
					return err
				}
				b, err := r.Bytes(int(n))
				if err != nil {
					return err
				}
				cur.Registers[reg] = RegisterRule{Kind: RuleExpression, Expr: append([]byte(nil), b...)}
			case cfaValOffset:
				// value-form variants (this one, and val_offset_sf and
				// val_expression above): treated the same as their address-form
				// counterparts since this unwinder only recovers scalar GPRs
				reg, err := r.ULEB()
				if err != nil {
					return err
				}
				n, err := r.ULEB()
				if err != nil {
					return err
				}
				cur.Registers[reg] = RegisterRule{Kind: RuleOffset, Offset: int64(n) * cie.DataAlignment}
			default:
				return engineerrs.New(engineerrs.Format, "nativedbg: unsupported DW_CFA opcode %#x", op)
			}
		}
		return nil
	}

	if err := run(cie.Instructions); err != nil {
		return nil, err
	}
	// the CIE's initial instructions establish row 0; FDE rows follow
	initialAfterCIE := cloneRow(cur)
	rows = nil
	cur = initialAfterCIE
	cur.Location = fde.Low

	if err := run(fde.Instructions); err != nil {
		return nil, err
	}
	rows = append(rows, cloneRow(cur))

	return rows, nil
}

// RowFor returns the table row valid at pc, or false if pc falls outside
// every row's range.
func RowFor(rows []Row, pc uint64) (Row, bool) {
	var best Row
	found := false
	for _, r := range rows {
		if r.Location <= pc {
			best = r
			found = true
		}
	}
	return best, found
}

func bytesToUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
