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

package loader

import (
	"encoding/binary"
	"strings"

	"github.com/ashgrove/nativedbg/engineerrs"
)

const (
	elfClass64   = 2
	elfDataLSB   = 1
	elfDataMSB   = 2
	shCompressed = 1 << 11 // SHF_COMPRESSED
)

// elf64SectionHeaderSize is sizeof(Elf64_Shdr).
const elf64SectionHeaderSize = 64

func loadELF64(raw []byte) (*Image, error) {
	if len(raw) < 64 {
		return nil, engineerrs.New(engineerrs.Format, engineerrs.PatTooSmall)
	}
	if raw[4] != elfClass64 {
		return nil, engineerrs.New(engineerrs.NotSupp, engineerrs.PatNotSupported, "32-bit ELF")
	}

	var bo binary.ByteOrder = binary.LittleEndian
	if raw[5] == elfDataMSB {
		bo = binary.BigEndian
	}

	entry := bo.Uint64(raw[24:32])
	shoff := bo.Uint64(raw[40:48])
	shentsize := bo.Uint16(raw[58:60])
	shnum := bo.Uint16(raw[60:62])
	shstrndx := bo.Uint16(raw[62:64])

	// A file with no section header table (the usual shape of a core file)
	// loads as an image with no sections.
	if shnum == 0 {
		return &Image{Format: FormatELF64, ByteOrder: bo, AddressSize: 8, Entry: entry, sections: make(map[string]*Section)}, nil
	}

	if shentsize == 0 || int(shoff)+int(shentsize)*int(shnum) > len(raw) {
		return nil, engineerrs.New(engineerrs.Format, "nativedbg: ELF section header table out of bounds")
	}

	type rawSection struct {
		nameOff uint32
		flags   uint64
		addr    uint64
		offset  uint64
		size    uint64
	}

	secs := make([]rawSection, shnum)
	for i := 0; i < int(shnum); i++ {
		off := int(shoff) + i*int(shentsize)
		h := raw[off : off+elf64SectionHeaderSize]
		secs[i] = rawSection{
			nameOff: bo.Uint32(h[0:4]),
			flags:   bo.Uint64(h[8:16]),
			addr:    bo.Uint64(h[16:24]),
			offset:  bo.Uint64(h[24:32]),
			size:    bo.Uint64(h[32:40]),
		}
	}

	if int(shstrndx) >= len(secs) {
		return nil, engineerrs.New(engineerrs.Format, "nativedbg: ELF section string table index out of range")
	}
	strtab := secs[shstrndx]
	strData := raw[strtab.offset : strtab.offset+strtab.size]

	img := &Image{
		Format:      FormatELF64,
		ByteOrder:   bo,
		AddressSize: 8,
		Entry:       entry,
		sections:    make(map[string]*Section),
	}

	for _, s := range secs {
		name := cstr(strData, int(s.nameOff))
		if name == "" {
			continue
		}
		if s.offset+s.size > uint64(len(raw)) {
			continue
		}
		sec := &Section{Name: name, Addr: s.addr, compressed: raw[s.offset : s.offset+s.size]}
		if s.flags&shCompressed != 0 {
			sec.isCompressed = true
			// Elf64_Chdr: ch_type(4) ch_reserved(4) ch_size(8) ch_addralign(8)
			if len(sec.compressed) >= 24 {
				sec.decompressedSize = bo.Uint64(sec.compressed[8:16])
				sec.compressed = sec.compressed[24:]
			}
		} else if strings.HasPrefix(name, ".zdebug") {
			sec.isZdebug = true
		}
		img.sections[name] = sec
		img.order = append(img.order, name)
	}

	return img, nil
}

func cstr(data []byte, off int) string {
	if off < 0 || off >= len(data) {
		return ""
	}
	end := off
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}
