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

package cmd

import (
	"github.com/ashgrove/nativedbg/dwarfbin/abbrev"
	"github.com/ashgrove/nativedbg/dwarfbin/cfi"
	"github.com/ashgrove/nativedbg/dwarfbin/dietree"
	"github.com/ashgrove/nativedbg/dwarfbin/lineprog"
	"github.com/ashgrove/nativedbg/engine"
	"github.com/ashgrove/nativedbg/loader"
)

// debugTables is every static table the launch sequence builds from an
// image's debug sections (spec §4.12's "load binaries and all static
// tables" step). Only the first compilation unit is indexed: a full
// multi-CU driver would loop dietree.Build across every unit_length-bounded
// CU in .debug_info, which cmd/dbgctl does not need to demonstrate the
// engine end to end.
type debugTables struct {
	functions engine.FunctionTable
	lines     *lineprog.Program
	cfi       *cfi.Section
}

// cstrResolver resolves DW_FORM_strp against a flat .debug_str blob; it
// does not support .debug_str_offsets indirection (DW_FORM_strx), which a
// single-CU, non-split-DWARF demo binary does not exercise.
type cstrResolver struct {
	debugStr []byte
}

func (r cstrResolver) DebugStr(offset uint64) string {
	return cStringAt(r.debugStr, int(offset))
}

func (r cstrResolver) StrX(index uint64, strOffsetsBase uint64) string { return "" }

type noAddrResolver struct{}

func (noAddrResolver) AddrX(index uint64, addrBase uint64) uint64 { return 0 }

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

// loadDebugTables builds the function table, line program, and CFI section
// for one image, tolerating missing sections (a stripped binary still
// launches, just without source-level stepping).
func loadDebugTables(img *loader.Image) debugTables {
	var out debugTables

	if frame, _, ok := img.Section(".eh_frame"); ok {
		if sec, err := cfi.Parse(frame, true, img.AddressSize); err == nil {
			out.cfi = sec
		}
	} else if frame, _, ok := img.Section(".debug_frame"); ok {
		if sec, err := cfi.Parse(frame, false, img.AddressSize); err == nil {
			out.cfi = sec
		}
	}

	info, _, hasInfo := img.Section(".debug_info")
	abbrevData, _, hasAbbrev := img.Section(".debug_abbrev")
	if !hasInfo || !hasAbbrev {
		return out
	}
	strs, _, _ := img.Section(".debug_str")

	table, err := abbrev.Parse(abbrevData, 0)
	if err != nil {
		return out
	}
	tree, err := dietree.Build(info, 0, table, cstrResolver{strs}, noAddrResolver{})
	if err != nil {
		return out
	}

	var stmtListOffset uint64
	hasStmtList := false
	if tree.Root != nil {
		if v, ok := tree.Root.Attrs[dietree.AtStmtList]; ok {
			if u, ok := v.(uint64); ok {
				stmtListOffset = u
				hasStmtList = true
			}
		}
	}

	for _, die := range tree.ByOffset {
		if die.Tag != dietree.TagSubprogram {
			continue
		}
		name := die.Name()
		low, hasLow := die.Attrs[dietree.AtLowPC]
		high, hasHigh := die.Attrs[dietree.AtHighPC]
		if name == "" || !hasLow || !hasHigh {
			continue
		}
		lowU, _ := toUint64(low)
		highU, _ := toUint64(high)
		if highU < lowU {
			highU += lowU // DWARF4+ often encodes high_pc as an offset from low_pc
		}
		out.functions = append(out.functions, engine.Function{Name: name, Low: lowU, High: highU})
	}

	if hasStmtList {
		lineStr, _, _ := img.Section(".debug_line_str")
		if lineData, _, ok := img.Section(".debug_line"); ok {
			if prog, err := lineprog.Parse(lineData, int(stmtListOffset), lineStr); err == nil {
				out.lines = prog
			}
		}
	}

	return out
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	}
	return 0, false
}
