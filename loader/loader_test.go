package loader_test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/ashgrove/nativedbg/loader"
	"github.com/stretchr/testify/require"
)

// buildELF64 assembles a minimal valid ELF64 header, one ".debug_info"
// section with plain data, and a section-name string table.
func buildELF64(t *testing.T) []byte {
	t.Helper()

	strtab := []byte{0x00}
	strtab = append(strtab, []byte(".debug_info\x00")...)
	strtab = append(strtab, []byte(".shstrtab\x00")...)
	debugInfoNameOff := 1
	shstrtabNameOff := 1 + len(".debug_info\x00")

	sectionData := []byte("hello dwarf")

	const ehdrSize = 64
	const shentsize = 64

	// layout: ehdr | section data | strtab | section headers
	dataOff := ehdrSize
	strtabOff := dataOff + len(sectionData)
	shoff := strtabOff + len(strtab)

	buf := make([]byte, shoff+shentsize*3)

	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // little endian
	binary.LittleEndian.PutUint64(buf[40:48], uint64(shoff))
	binary.LittleEndian.PutUint16(buf[58:60], shentsize)
	binary.LittleEndian.PutUint16(buf[60:62], 3)
	binary.LittleEndian.PutUint16(buf[62:64], 2) // shstrndx

	copy(buf[dataOff:], sectionData)
	copy(buf[strtabOff:], strtab)

	writeShdr := func(idx int, nameOff uint32, addr, offset, size uint64) {
		off := shoff + idx*shentsize
		binary.LittleEndian.PutUint32(buf[off:off+4], nameOff)
		binary.LittleEndian.PutUint64(buf[off+16:off+24], addr)
		binary.LittleEndian.PutUint64(buf[off+24:off+32], offset)
		binary.LittleEndian.PutUint64(buf[off+32:off+40], size)
	}
	writeShdr(0, 0, 0, 0, 0) // null section
	writeShdr(1, uint32(debugInfoNameOff), 0x400000, uint64(dataOff), uint64(len(sectionData)))
	writeShdr(2, uint32(shstrtabNameOff), 0, uint64(strtabOff), uint64(len(strtab)))

	return buf
}

func TestLoadELF64Section(t *testing.T) {
	raw := buildELF64(t)
	img, err := loader.Load(raw)
	require.NoError(t, err)
	require.Equal(t, loader.FormatELF64, img.Format)

	data, addr, ok := img.Section(".debug_info")
	require.True(t, ok)
	require.Equal(t, "hello dwarf", string(data))
	require.Equal(t, uint64(0x400000), addr)

	_, _, ok = img.Section(".does.not.exist")
	require.False(t, ok)
}

func TestLoadRejectsTooSmall(t *testing.T) {
	_, err := loader.Load([]byte{1, 2})
	require.Error(t, err)
}

func TestLoadRejectsUnknownMagic(t *testing.T) {
	_, err := loader.Load(bytes.Repeat([]byte{0xAB}, 64))
	require.Error(t, err)
}

// buildELF64WithCompressedSection assembles a four-section ELF64 image: a
// null section, a plain ".debug_info", an SHF_COMPRESSED ".debug_line", and
// the section-name string table.
func buildELF64WithCompressedSection(t *testing.T) []byte {
	t.Helper()

	payload := []byte("compressed dwarf payload")
	var zdata bytes.Buffer
	zw := zlib.NewWriter(&zdata)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var chdr bytes.Buffer
	binary.Write(&chdr, binary.LittleEndian, uint32(1)) // ch_type: ELFCOMPRESS_ZLIB
	binary.Write(&chdr, binary.LittleEndian, uint32(0)) // ch_reserved
	binary.Write(&chdr, binary.LittleEndian, uint64(len(payload)))
	binary.Write(&chdr, binary.LittleEndian, uint64(8)) // ch_addralign
	chdr.Write(zdata.Bytes())
	compressedSection := chdr.Bytes()

	plainData := []byte("hello dwarf")

	strtab := []byte{0x00}
	strtab = append(strtab, []byte(".debug_info\x00")...)
	strtab = append(strtab, []byte(".debug_line\x00")...)
	strtab = append(strtab, []byte(".shstrtab\x00")...)
	infoNameOff := 1
	lineNameOff := infoNameOff + len(".debug_info\x00")
	shstrtabNameOff := lineNameOff + len(".debug_line\x00")

	const ehdrSize = 64
	const shentsize = 64
	const shfCompressed = 1 << 11

	infoOff := ehdrSize
	lineOff := infoOff + len(plainData)
	strtabOff := lineOff + len(compressedSection)
	shoff := strtabOff + len(strtab)

	buf := make([]byte, shoff+shentsize*4)
	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = 2
	buf[5] = 1
	binary.LittleEndian.PutUint64(buf[40:48], uint64(shoff))
	binary.LittleEndian.PutUint16(buf[58:60], shentsize)
	binary.LittleEndian.PutUint16(buf[60:62], 4)
	binary.LittleEndian.PutUint16(buf[62:64], 3) // shstrndx

	copy(buf[infoOff:], plainData)
	copy(buf[lineOff:], compressedSection)
	copy(buf[strtabOff:], strtab)

	writeShdr := func(idx int, nameOff uint32, flags, addr, offset, size uint64) {
		off := shoff + idx*shentsize
		binary.LittleEndian.PutUint32(buf[off:off+4], nameOff)
		binary.LittleEndian.PutUint64(buf[off+8:off+16], flags)
		binary.LittleEndian.PutUint64(buf[off+16:off+24], addr)
		binary.LittleEndian.PutUint64(buf[off+24:off+32], offset)
		binary.LittleEndian.PutUint64(buf[off+32:off+40], size)
	}
	writeShdr(0, 0, 0, 0, 0, 0)
	writeShdr(1, uint32(infoNameOff), 0, 0, uint64(infoOff), uint64(len(plainData)))
	writeShdr(2, uint32(lineNameOff), shfCompressed, 0, uint64(lineOff), uint64(len(compressedSection)))
	writeShdr(3, uint32(shstrtabNameOff), 0, 0, uint64(strtabOff), uint64(len(strtab)))

	return buf
}

func TestLoadDecompressesSHFCompressedSection(t *testing.T) {
	raw := buildELF64WithCompressedSection(t)
	img, err := loader.Load(raw)
	require.NoError(t, err)

	data, _, ok := img.Section(".debug_line")
	require.True(t, ok)
	require.Equal(t, "compressed dwarf payload", string(data))
}
