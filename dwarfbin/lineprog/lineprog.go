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

// Package lineprog implements the DWARF line number program state machine
// (component C4): decoding a .debug_line unit header and its bytecode into
// a flat, address-sorted table of LineEntry values.
package lineprog

import (
	"sort"

	"github.com/ashgrove/nativedbg/dwarfbin/form"
	"github.com/ashgrove/nativedbg/logger"
)

// standard opcodes, DWARF4/5 §6.2.5.2
const (
	dwLnsCopy             = 1
	dwLnsAdvancePC        = 2
	dwLnsAdvanceLine      = 3
	dwLnsSetFile          = 4
	dwLnsSetColumn        = 5
	dwLnsNegateStmt       = 6
	dwLnsSetBasicBlock    = 7
	dwLnsConstAddPC       = 8
	dwLnsFixedAdvancePC   = 9
	dwLnsSetPrologueEnd   = 10
	dwLnsSetEpilogueBegin = 11
	dwLnsSetISA           = 12
)

// extended opcodes, DWARF4/5 §6.2.5.3
const (
	dwLneEndSequence = 1
	dwLneSetAddress  = 2
	dwLneDefineFile  = 3 // DWARF <= 4 only
)

// content type codes used by the DWARF5 directory/file entry format.
const (
	dwLnctPath           = 1
	dwLnctDirectoryIndex = 2
	dwLnctTimestamp      = 3
	dwLnctSize           = 4
	dwLnctMD5            = 5
)

// LineEntry is one row of the resolved line table (spec §3).
type LineEntry struct {
	Address      uint64
	FileIndex    int // 0-based regardless of DWARF version on the wire
	Line         int
	Column       int
	IsStmt       bool
	PrologueEnd  bool
	EndSequence  bool
}

// FileEntry is one row of the file name table (spec §3).
type FileEntry struct {
	Name     string
	DirIndex int
}

// Program is the result of interpreting one .debug_line unit: a sorted line
// table plus the file table it indexes into.
type Program struct {
	LineEntries []LineEntry
	FileEntries []FileEntry
}

type header struct {
	version              uint16
	addressSize          int
	dwarf64              bool
	headerLength         uint64
	minInstructionLength uint8
	maxOpsPerInstruction uint8
	defaultIsStmt        bool
	lineBase             int8
	lineRange            uint8
	opcodeBase           uint8
	stdOpcodeLengths     []uint8
	programStart         int
	unitEnd              int
}

// Parse interprets one .debug_line unit starting at offset within data. For
// DWARF5, lineStr resolves DW_FORM_line_strp file/directory name references;
// it may be nil for DWARF4 inputs, which encode names inline.
func Parse(data []byte, offset int, lineStr []byte) (*Program, error) {
	r := form.NewReader(data)
	r.Off = offset

	hdr, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	prog := &Program{}

	if hdr.version >= 5 {
		if err := parseDwarf5Tables(r, hdr, lineStr, prog); err != nil {
			return nil, err
		}
	} else {
		if err := parseDwarf4Tables(r, prog); err != nil {
			return nil, err
		}
	}

	r.Off = hdr.programStart
	if err := runProgram(r, hdr, prog); err != nil {
		// the line program is permissive: a malformed unit is reported but
		// whatever entries were already decoded are kept (spec §7).
		logger.Logf("dwarf", "line program truncated at offset %d: %v", r.Off, err)
	}

	sort.Slice(prog.LineEntries, func(i, j int) bool {
		return prog.LineEntries[i].Address < prog.LineEntries[j].Address
	})

	return prog, nil
}

func parseHeader(r *form.Reader) (*header, error) {
	var h header

	unitLength, err := r.U32()
	if err != nil {
		return nil, err
	}
	unitEnd := r.Off + int(unitLength)
	if unitLength == 0xffffffff {
		h.dwarf64 = true
		ul64, err := r.U64()
		if err != nil {
			return nil, err
		}
		unitEnd = r.Off + int(ul64)
	}
	h.unitEnd = unitEnd

	version, err := r.U16()
	if err != nil {
		return nil, err
	}
	h.version = version

	if version >= 5 {
		addrSize, err := r.U8()
		if err != nil {
			return nil, err
		}
		h.addressSize = int(addrSize)
		if _, err := r.U8(); err != nil { // segment_selector_size
			return nil, err
		}
	} else {
		h.addressSize = 8
	}

	if h.dwarf64 {
		hl, err := r.U64()
		if err != nil {
			return nil, err
		}
		h.headerLength = hl
	} else {
		hl, err := r.U32()
		if err != nil {
			return nil, err
		}
		h.headerLength = uint64(hl)
	}
	headerLengthFieldEnd := r.Off
	h.programStart = headerLengthFieldEnd + int(h.headerLength)

	minInst, err := r.U8()
	if err != nil {
		return nil, err
	}
	h.minInstructionLength = minInst

	if version >= 4 {
		maxOps, err := r.U8()
		if err != nil {
			return nil, err
		}
		h.maxOpsPerInstruction = maxOps
	} else {
		h.maxOpsPerInstruction = 1
	}

	defaultIsStmt, err := r.U8()
	if err != nil {
		return nil, err
	}
	h.defaultIsStmt = defaultIsStmt != 0

	lineBase, err := r.U8()
	if err != nil {
		return nil, err
	}
	h.lineBase = int8(lineBase)

	lineRange, err := r.U8()
	if err != nil {
		return nil, err
	}
	h.lineRange = lineRange

	opcodeBase, err := r.U8()
	if err != nil {
		return nil, err
	}
	h.opcodeBase = opcodeBase

	h.stdOpcodeLengths = make([]uint8, opcodeBase)
	for i := 1; i < int(opcodeBase); i++ {
		v, err := r.U8()
		if err != nil {
			return nil, err
		}
		h.stdOpcodeLengths[i] = v
	}

	return &h, nil
}

func parseDwarf4Tables(r *form.Reader, prog *Program) error {
	// directories: sequence of non-empty C strings terminated by an empty one.
	for {
		s, err := r.CString()
		if err != nil {
			return err
		}
		if s == "" {
			break
		}
		// directory names themselves are not separately recorded; DirIndex
		// is enough for the engine's purposes (spec §3 only needs name +
		// dir_index per file).
	}

	// files: (name, dir_index, mtime, size) tuples, 1-based dir_index on the
	// wire, terminated by an empty name.
	for {
		name, err := r.CString()
		if err != nil {
			return err
		}
		if name == "" {
			break
		}
		dirIdx, err := r.ULEB()
		if err != nil {
			return err
		}
		if _, err := r.ULEB(); err != nil { // mtime
			return err
		}
		if _, err := r.ULEB(); err != nil { // size
			return err
		}
		// normalise DWARF4's 1-based dir_index to 0-based (spec §3, §9).
		idx := int(dirIdx)
		if idx > 0 {
			idx--
		}
		prog.FileEntries = append(prog.FileEntries, FileEntry{Name: name, DirIndex: idx})
	}

	return nil
}

func parseDwarf5Tables(r *form.Reader, h *header, lineStr []byte, prog *Program) error {
	// directory entry format
	dirFormatCount, err := r.U8()
	if err != nil {
		return err
	}
	type fieldFormat struct{ contentType, form uint64 }
	dirFormats := make([]fieldFormat, dirFormatCount)
	for i := range dirFormats {
		ct, err := r.ULEB()
		if err != nil {
			return err
		}
		f, err := r.ULEB()
		if err != nil {
			return err
		}
		dirFormats[i] = fieldFormat{ct, f}
	}
	dirCount, err := r.ULEB()
	if err != nil {
		return err
	}
	for i := uint64(0); i < dirCount; i++ {
		if err := skipOrReadEntry(r, dirFormats, h, lineStr, nil); err != nil {
			return err
		}
	}

	// file name entry format
	fileFormatCount, err := r.U8()
	if err != nil {
		return err
	}
	fileFormats := make([]fieldFormat, fileFormatCount)
	for i := range fileFormats {
		ct, err := r.ULEB()
		if err != nil {
			return err
		}
		f, err := r.ULEB()
		if err != nil {
			return err
		}
		fileFormats[i] = fieldFormat{ct, f}
	}
	fileCount, err := r.ULEB()
	if err != nil {
		return err
	}
	for i := uint64(0); i < fileCount; i++ {
		fe := &FileEntry{}
		if err := skipOrReadEntry(r, fileFormats, h, lineStr, fe); err != nil {
			return err
		}
		prog.FileEntries = append(prog.FileEntries, *fe)
	}

	return nil
}

func skipOrReadEntry(r *form.Reader, formats []struct{ contentType, form uint64 }, h *header, lineStr []byte, fe *FileEntry) error {
	for _, f := range formats {
		switch f.form {
		case form.DW_FORM_line_strp:
			off, err := readOffset(r, h.dwarf64)
			if err != nil {
				return err
			}
			if fe != nil && f.contentType == dwLnctPath {
				fe.Name = cStringAt(lineStr, int(off))
			}
			continue
		case form.DW_FORM_string:
			s, err := r.CString()
			if err != nil {
				return err
			}
			if fe != nil && f.contentType == dwLnctPath {
				fe.Name = s
			}
			continue
		case form.DW_FORM_udata:
			v, err := r.ULEB()
			if err != nil {
				return err
			}
			if fe != nil && f.contentType == dwLnctDirectoryIndex {
				fe.DirIndex = int(v)
			}
			continue
		case form.DW_FORM_data1:
			v, err := r.U8()
			if err != nil {
				return err
			}
			if fe != nil && f.contentType == dwLnctDirectoryIndex {
				fe.DirIndex = int(v)
			}
			continue
		case form.DW_FORM_data2:
			v, err := r.U16()
			if err != nil {
				return err
			}
			if fe != nil && f.contentType == dwLnctDirectoryIndex {
				fe.DirIndex = int(v)
			}
			continue
		case form.DW_FORM_data16:
			if _, err := r.Bytes(16); err != nil { // MD5 checksum, unused
				return err
			}
			continue
		default:
			if err := form.SkipForm(r, f.form, h.addressSize, h.dwarf64); err != nil {
				return err
			}
		}
	}
	return nil
}

func readOffset(r *form.Reader, dwarf64 bool) (uint64, error) {
	if dwarf64 {
		return r.U64()
	}
	v, err := r.U32()
	return uint64(v), err
}

func cStringAt(data []byte, off int) string {
	if off < 0 || off >= len(data) {
		return ""
	}
	end := off
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}

// state is the DWARF line number state machine register set (DWARF4 §6.2.2).
type state struct {
	address     uint64
	file        int
	line        int
	column      int
	isStmt      bool
	prologueEnd bool
}

func runProgram(r *form.Reader, h *header, prog *Program) error {
	st := state{file: 1, line: 1, isStmt: h.defaultIsStmt}

	emit := func() {
		prog.LineEntries = append(prog.LineEntries, LineEntry{
			Address:     st.address,
			FileIndex:   normaliseFileIndex(h.version, st.file),
			Line:        st.line,
			Column:      st.column,
			IsStmt:      st.isStmt,
			PrologueEnd: st.prologueEnd,
		})
	}

	for r.Off < h.unitEnd && r.Off < len(r.Data) {
		opcode, err := r.U8()
		if err != nil {
			return err
		}

		switch {
		case opcode == 0:
			// extended opcode
			length, err := r.ULEB()
			if err != nil {
				return err
			}
			if length == 0 {
				continue
			}
			sub, err := r.U8()
			if err != nil {
				return err
			}
			instrEnd := r.Off + int(length) - 1

			switch sub {
			case dwLneEndSequence:
				prog.LineEntries = append(prog.LineEntries, LineEntry{
					Address:     st.address,
					FileIndex:   normaliseFileIndex(h.version, st.file),
					EndSequence: true,
				})
				st = state{file: 1, line: 1, isStmt: h.defaultIsStmt}
			case dwLneSetAddress:
				addr, err := r.Bytes(h.addressSize)
				if err != nil {
					return err
				}
				st.address = bytesToAddr(addr)
			default:
				// DW_LNE_define_file and vendor extensions: skip the
				// remainder of the instruction.
			}
			if r.Off < instrEnd {
				r.Off = instrEnd
			}

		case opcode < h.opcodeBase:
			// standard opcode
			switch opcode {
			case dwLnsCopy:
				emit()
				st.prologueEnd = false
			case dwLnsAdvancePC:
				adv, err := r.ULEB()
				if err != nil {
					return err
				}
				st.address += adv * uint64(h.minInstructionLength)
			case dwLnsAdvanceLine:
				adv, err := r.SLEB()
				if err != nil {
					return err
				}
				st.line += int(adv)
			case dwLnsSetFile:
				f, err := r.ULEB()
				if err != nil {
					return err
				}
				st.file = int(f)
			case dwLnsSetColumn:
				c, err := r.ULEB()
				if err != nil {
					return err
				}
				st.column = int(c)
			case dwLnsNegateStmt:
				st.isStmt = !st.isStmt
			case dwLnsSetBasicBlock:
				// no state tracked for basic-block starts
			case dwLnsConstAddPC:
				adjusted := 255 - int(h.opcodeBase)
				st.address += uint64(adjusted/int(h.lineRange)) * uint64(h.minInstructionLength)
			case dwLnsFixedAdvancePC:
				adv, err := r.U16()
				if err != nil {
					return err
				}
				st.address += uint64(adv)
			case dwLnsSetPrologueEnd:
				st.prologueEnd = true
			case dwLnsSetEpilogueBegin:
				// not tracked
			case dwLnsSetISA:
				if _, err := r.ULEB(); err != nil {
					return err
				}
			default:
				// unknown standard opcode: skip its declared operand count
				if int(opcode) < len(h.stdOpcodeLengths) {
					for i := uint8(0); i < h.stdOpcodeLengths[opcode]; i++ {
						if _, err := r.ULEB(); err != nil {
							return err
						}
					}
				}
			}

		default:
			// special opcode (DWARF4 §6.2.5.1)
			adjusted := int(opcode) - int(h.opcodeBase)
			addrAdv := adjusted / int(h.lineRange)
			lineAdv := int(h.lineBase) + adjusted%int(h.lineRange)
			st.address += uint64(addrAdv) * uint64(h.minInstructionLength)
			st.line += lineAdv
			emit()
			st.prologueEnd = false
		}
	}

	return nil
}

func bytesToAddr(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// normaliseFileIndex converts the wire file index (1-based for DWARF<=4,
// 0-based for DWARF5) into the 0-based scheme the engine uses everywhere
// (spec §3, §9).
func normaliseFileIndex(version uint16, wireIndex int) int {
	if version < 5 {
		return wireIndex - 1
	}
	return wireIndex
}
