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

// Package disasm classifies x86-64 and ARM64 instructions just far enough
// for the stepping logic to recognise calls, unconditional jumps, and
// returns without a full disassembler. The engine's step_into loop uses it
// to tell whether a function boundary was crossed by a real call or by a
// tail jump; step_over does not consult it.
package disasm

// Kind classifies one decoded instruction's control-flow effect.
type Kind int

const (
	KindOther Kind = iota
	KindCall
	KindJump
	KindReturn
	KindInt3
)

// Instruction is the minimal decode result: its Kind, total byte Length,
// and (for call/jump) the statically-known target when the operand is
// relative and therefore resolvable without register state.
type Instruction struct {
	Kind   Kind
	Length int
	Target uint64
	HasTarget bool
}

// x86-64 opcode bytes this classifier recognises. It does not decode ModRM
// operands beyond what is needed to compute instruction length for the
// handful of forms the engine actually encounters at call sites and
// prologues; anything else falls back to KindOther with a conservative
// Length of 1 so the caller can re-scan byte by byte.
const (
	opCallRel32    = 0xe8
	opJmpRel32     = 0xe9
	opJmpRel8      = 0xeb
	opRet          = 0xc3
	opRetImm16     = 0xc2
	opInt3         = 0xcc
	opRexMin       = 0x40
	opRexMax       = 0x4f
	opFFGroup      = 0xff // call/jmp indirect, ModRM /2 or /4
)

// DecodeX86 classifies the instruction at the start of code. addr is the
// instruction's own virtual address, used to resolve rel32/rel8 targets.
func DecodeX86(code []byte, addr uint64) Instruction {
	if len(code) == 0 {
		return Instruction{Kind: KindOther, Length: 0}
	}

	off := 0
	for off < len(code) && code[off] >= opRexMin && code[off] <= opRexMax {
		off++ // skip REX prefix
	}
	if off >= len(code) {
		return Instruction{Kind: KindOther, Length: off}
	}

	op := code[off]
	switch op {
	case opInt3:
		return Instruction{Kind: KindInt3, Length: off + 1}
	case opRet, opRetImm16:
		length := off + 1
		if op == opRetImm16 {
			length += 2
		}
		return Instruction{Kind: KindReturn, Length: length}
	case opCallRel32, opJmpRel32:
		if off+5 > len(code) {
			return Instruction{Kind: KindOther, Length: off + 1}
		}
		rel := int32(bytesToUint(code[off+1 : off+5]))
		target := uint64(int64(addr) + int64(off) + 5 + int64(rel))
		kind := KindJump
		if op == opCallRel32 {
			kind = KindCall
		}
		return Instruction{Kind: kind, Length: off + 5, Target: target, HasTarget: true}
	case opJmpRel8:
		if off+2 > len(code) {
			return Instruction{Kind: KindOther, Length: off + 1}
		}
		rel := int8(code[off+1])
		target := uint64(int64(addr) + int64(off) + 2 + int64(rel))
		return Instruction{Kind: KindJump, Length: off + 2, Target: target, HasTarget: true}
	case opFFGroup:
		if off+2 > len(code) {
			return Instruction{Kind: KindOther, Length: off + 1}
		}
		modrm := code[off+1]
		reg := (modrm >> 3) & 0x7
		length := off + 2 + modrmExtraBytes(modrm)
		switch reg {
		case 2: // call r/m
			return Instruction{Kind: KindCall, Length: length}
		case 4: // jmp r/m
			return Instruction{Kind: KindJump, Length: length}
		}
		return Instruction{Kind: KindOther, Length: length}
	default:
		return Instruction{Kind: KindOther, Length: off + 1}
	}
}

// modrmExtraBytes estimates how many bytes of SIB/displacement follow a
// ModRM byte for the register-indirect and disp8/disp32 addressing forms
// the engine actually sees at call/jmp sites (no disp for mod=3 register
// direct, disp8 for mod=1, disp32 for mod=0/2 or a [disp32]-only encoding).
func modrmExtraBytes(modrm byte) int {
	mod := modrm >> 6
	rm := modrm & 0x7
	extra := 0
	if mod != 3 && rm == 4 {
		extra++ // SIB byte
	}
	switch mod {
	case 0:
		if rm == 5 {
			extra += 4 // RIP-relative disp32
		}
	case 1:
		extra += 1
	case 2:
		extra += 4
	}
	return extra
}

// ARM64 recognises three fixed-width forms: BL (call), B (jump), RET.
const (
	arm64OpMaskBL  = 0xfc000000
	arm64OpBL      = 0x94000000
	arm64OpMaskB   = 0xfc000000
	arm64OpB       = 0x14000000
	arm64OpMaskRet = 0xfffffc1f
	arm64OpRet     = 0xd65f0000
)

// DecodeARM64 classifies one fixed-width 4-byte ARM64 instruction.
func DecodeARM64(code []byte, addr uint64) Instruction {
	if len(code) < 4 {
		return Instruction{Kind: KindOther, Length: len(code)}
	}
	word := uint32(bytesToUint(code[:4]))

	if word&arm64OpMaskRet == arm64OpRet {
		return Instruction{Kind: KindReturn, Length: 4}
	}
	if word&arm64OpMaskBL == arm64OpBL {
		imm26 := int32(word & 0x03ffffff)
		imm26 = signExtend26(imm26)
		target := uint64(int64(addr) + int64(imm26)*4)
		return Instruction{Kind: KindCall, Length: 4, Target: target, HasTarget: true}
	}
	if word&arm64OpMaskB == arm64OpB {
		imm26 := int32(word & 0x03ffffff)
		imm26 = signExtend26(imm26)
		target := uint64(int64(addr) + int64(imm26)*4)
		return Instruction{Kind: KindJump, Length: 4, Target: target, HasTarget: true}
	}
	return Instruction{Kind: KindOther, Length: 4}
}

func signExtend26(v int32) int32 {
	if v&(1<<25) != 0 {
		return v | ^int32(0x03ffffff)
	}
	return v
}

func bytesToUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
