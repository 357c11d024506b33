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
	machoMagic64 = 0xfeedfacf
	machoCigam64 = 0xcffaedfe

	lcSegment64 = 0x19
)

// loadCommandHeader mirrors the fixed-width prefix of every Mach-O load command.
type loadCommandHeader struct {
	cmd     uint32
	cmdsize uint32
}

func loadMachO64(raw []byte) (*Image, error) {
	if len(raw) < 32 {
		return nil, engineerrs.New(engineerrs.Format, engineerrs.PatTooSmall)
	}

	var bo binary.ByteOrder = binary.LittleEndian
	if binary.BigEndian.Uint32(raw) == machoMagic64 {
		bo = binary.BigEndian
	}

	ncmds := bo.Uint32(raw[16:20])
	sizeofcmds := bo.Uint32(raw[20:24])

	const headerSize = 32 // mach_header_64
	if int(headerSize)+int(sizeofcmds) > len(raw) {
		return nil, engineerrs.New(engineerrs.Format, "nativedbg: Mach-O load commands out of bounds")
	}

	img := &Image{
		Format:      FormatMachO64,
		ByteOrder:   bo,
		AddressSize: 8,
		sections:    make(map[string]*Section),
	}

	off := headerSize
	for i := 0; i < int(ncmds); i++ {
		if off+8 > len(raw) {
			break
		}
		cmd := bo.Uint32(raw[off : off+4])
		cmdsize := bo.Uint32(raw[off+4 : off+8])
		if cmdsize == 0 || off+int(cmdsize) > len(raw) {
			break
		}

		if cmd == lcSegment64 {
			parseSegment64(img, raw, off, bo)
		}

		off += int(cmdsize)
	}

	return img, nil
}

// segment_command_64 layout: cmd(4) cmdsize(4) segname(16) vmaddr(8)
// vmsize(8) fileoff(8) filesize(8) maxprot(4) initprot(4) nsects(4) flags(4)
// then nsects * section_64.
func parseSegment64(img *Image, raw []byte, off int, bo binary.ByteOrder) {
	const segHeaderSize = 72
	if off+segHeaderSize > len(raw) {
		return
	}
	nsects := bo.Uint32(raw[off+64 : off+68])

	const sectionSize = 80
	sectOff := off + segHeaderSize
	for i := 0; i < int(nsects); i++ {
		if sectOff+sectionSize > len(raw) {
			return
		}
		s := raw[sectOff : sectOff+sectionSize]
		sectname := cstrFixed(s[0:16])
		segname := cstrFixed(s[16:32])
		addr := bo.Uint64(s[32:40])
		size := bo.Uint64(s[40:48])
		fileoff := bo.Uint32(s[48:52])

		name := segname + "." + sectname
		// DWARF sections live in __DWARF with names like __debug_info;
		// normalise to the ELF-style ".debug_info" so callers need not
		// branch on container format.
		if segname == "__DWARF" {
			name = "." + strings.TrimPrefix(sectname, "__")
		}

		if uint64(fileoff)+size <= uint64(len(raw)) {
			sec := &Section{Name: name, Addr: addr, compressed: raw[fileoff : uint64(fileoff)+size]}
			sec.isZdebug = strings.HasPrefix(name, ".zdebug")
			img.sections[name] = sec
			img.order = append(img.order, name)
		}

		sectOff += sectionSize
	}
}

func cstrFixed(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}
