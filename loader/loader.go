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

// Package loader implements the binary image loader (component C1): a
// byte-exact Mach-O 64-bit and ELF64 section table walk with transparent
// decompression of zdebug and SHF_COMPRESSED DWARF sections.
package loader

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"

	"github.com/ashgrove/nativedbg/engineerrs"
)

// Format names the container format of a loaded Image.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF64
	FormatMachO64
)

// Section is one named, loaded region of the image.
type Section struct {
	Name string
	Addr uint64
	data []byte
	// compressed holds the section's on-disk bytes until first access, so
	// Data() can defer decompression until a caller actually needs it.
	compressed   []byte
	decompressedSize uint64
	isZdebug     bool
	isCompressed bool
}

// Image is a loaded, section-indexed binary.
type Image struct {
	Format      Format
	ByteOrder   binary.ByteOrder
	AddressSize int
	Entry       uint64
	sections    map[string]*Section
	order       []string
}

// Load sniffs raw for an ELF64 or Mach-O64 magic number and parses its
// section table.
func Load(raw []byte) (*Image, error) {
	if len(raw) < 4 {
		return nil, engineerrs.New(engineerrs.Format, engineerrs.PatTooSmall)
	}

	switch {
	case bytes.Equal(raw[:4], []byte{0x7f, 'E', 'L', 'F'}):
		return loadELF64(raw)
	case binary.LittleEndian.Uint32(raw) == machoMagic64 || binary.BigEndian.Uint32(raw) == machoMagic64:
		return loadMachO64(raw)
	case binary.LittleEndian.Uint32(raw) == machoCigam64 || binary.BigEndian.Uint32(raw) == machoCigam64:
		return loadMachO64(raw)
	default:
		return nil, engineerrs.New(engineerrs.Format, engineerrs.PatInvalidMagic, binary.LittleEndian.Uint32(raw))
	}
}

// Section returns the named section's decompressed bytes and load address,
// or (nil, 0, false) if the image has no such section.
func (img *Image) Section(name string) ([]byte, uint64, bool) {
	s, ok := img.sections[name]
	if !ok {
		return nil, 0, false
	}
	data, err := s.Data()
	if err != nil {
		return nil, 0, false
	}
	return data, s.Addr, true
}

// SectionNames returns every section name, in file order.
func (img *Image) SectionNames() []string {
	return append([]string(nil), img.order...)
}

// Data returns the section's bytes, decompressing on first access and
// memoising the result.
func (s *Section) Data() ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}
	if !s.isCompressed && !s.isZdebug {
		s.data = s.compressed
		return s.data, nil
	}

	raw := s.compressed
	if s.isZdebug {
		// "ZLIB" magic (4 bytes) + 8-byte big-endian decompressed size
		// precede the DEFLATE stream (gold linker convention).
		if len(raw) < 12 || string(raw[:4]) != "ZLIB" {
			return nil, engineerrs.New(engineerrs.Decompress, engineerrs.PatInvalidCompressedSec, s.Name)
		}
		raw = raw[12:]
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, engineerrs.New(engineerrs.Decompress, engineerrs.PatDecompressFailed, s.Name, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, engineerrs.New(engineerrs.Decompress, engineerrs.PatDecompressFailed, s.Name, err)
	}
	s.data = out
	return s.data, nil
}
