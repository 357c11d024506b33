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

// Package engineerrs implements the error taxonomy of the debug engine on
// top of the curated package. Every sentinel below is a curated pattern, so
// errors.Is-style matching is done with curated.Is()/curated.Has() rather
// than the standard errors package.
package engineerrs

import "github.com/ashgrove/nativedbg/curated"

// Class names the eight error categories the engine distinguishes. Table
// building is permissive (a failure is logged and the table entry skipped);
// driver operations are strict (the error is returned to the caller); the
// stop-handling path is maximally lenient (failures collapse to an empty
// result, never an error).
type Class string

const (
	IO          Class = "IO"
	Format      Class = "Format"
	Decompress  Class = "Decompress"
	Process     Class = "Process"
	NotSupp     Class = "NotSupported"
	NotFound    Class = "NotFound"
	Parse       Class = "Parse"
	Policy      Class = "Policy"
)

// patterns used with curated.Errorf/curated.Is. Most carry a verb (%v, %s or
// %#x) for the contextual detail; a few take no arguments at all.
const (
	PatTooSmall               = "nativedbg: file too small to be a valid image"
	PatInvalidMagic           = "nativedbg: invalid magic number: %#x"
	PatInvalidCompressedSec   = "nativedbg: invalid compressed section %s"
	PatDecompressFailed       = "nativedbg: failed to decompress section %s: %v"
	PatSpawnFailed            = "nativedbg: failed to spawn process: %v"
	PatNoProcess              = "nativedbg: no active process"
	PatPlatformUnsupported    = "nativedbg: platform does not support %s"
	PatNotSupported           = "nativedbg: %s is not supported"
	PatFunctionNotFound       = "nativedbg: function not found: %s"
	PatVariableNotFound       = "nativedbg: variable not found: %s"
	PatSymbolNotFound         = "nativedbg: symbol not found: %s"
	PatLEBOverflow            = "nativedbg: LEB128 value overflows 64 bits"
	PatOutOfBoundsRead        = "nativedbg: read past end of section %s"
	PatUnknownForm            = "nativedbg: unknown DWARF form: %#x"
	PatOptimizedOut           = "nativedbg: variable optimized out"
	PatCannotWriteVariable    = "nativedbg: cannot write variable %s"
)

// New wraps curated.Errorf. The class names the error's category at the
// call site only: it is not stored in the error and plays no part in
// pattern matching.
func New(class Class, pattern string, args ...interface{}) error {
	return curated.Errorf(pattern, args...)
}

// Is reports whether err is the named curated pattern.
func Is(err error, pattern string) bool {
	return curated.Is(err, pattern)
}

// Has reports whether pattern occurs anywhere in err's curated chain.
func Has(err error, pattern string) bool {
	return curated.Has(err, pattern)
}
