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

// Package prefs holds the engine's tunable policy knobs: the stepping
// iteration caps from spec §4.12, the step_over breakpoint cap, the Go
// runtime trampoline name list, and Split-DWARF .dwo search paths. These
// are the only numbers in the engine that are allowed to be literals outside
// of this package (see spec §9's open questions on exact thresholds).
//
// Values are held in memory and can optionally be loaded from, and saved to,
// a simple "key = value" disk file, in the manner of the teacher's own
// (disk-backed) preferences system.
package prefs

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WarningBoilerPlate is written as a comment header of every saved prefs file.
const WarningBoilerPlate = "# this file is automatically generated by nativedbg; edits may be overwritten"

// EnginePrefs holds the policy knobs consumed by the engine driver (C12) and
// the breakpoint manager (C11).
type EnginePrefs struct {
	// StepIntoMaxIterations bounds the single-step loop used by step_into at
	// line granularity (spec §4.12).
	StepIntoMaxIterations Int

	// StepOverMaxAttempts bounds the number of stop/resume cycles step_over
	// will tolerate before giving up (spec §4.12 and §9).
	StepOverMaxAttempts Int

	// TransparentResumeMaxIterations bounds waitAndHandleStop's resume loop
	// (spec §4.12).
	TransparentResumeMaxIterations Int

	// MaxStepOverBreakpoints bounds the "multi-BP fan-out" of temporary
	// breakpoints step_over plants across a function body (spec §4.12).
	MaxStepOverBreakpoints Int

	// Trampolines lists function name prefixes the stepper walks through
	// without treating them as user-visible callees (spec §4.12, §9).
	Trampolines String

	// DwoSearchPaths is a colon-separated list of directories searched for
	// Split-DWARF .dwo companion files (spec §4.8).
	DwoSearchPaths String
}

// NewEnginePrefs returns an EnginePrefs populated with the defaults observed
// in spec §4.12 and §9.
func NewEnginePrefs() *EnginePrefs {
	p := &EnginePrefs{}
	p.StepIntoMaxIterations.Set(2000)
	p.StepOverMaxAttempts.Set(50)
	p.TransparentResumeMaxIterations.Set(10000)
	p.MaxStepOverBreakpoints.Set(32)
	p.Trampolines.Set("runtime.morestack,runtime.newstack,runtime.gogo,runtime.systemstack,runtime.mcall")
	p.DwoSearchPaths.Set(".")
	return p
}

// TrampolineList splits the Trampolines preference into its component name
// prefixes.
func (p *EnginePrefs) TrampolineList() []string {
	raw := p.Trampolines.Get()
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// Value is implemented by every typed preference below.
type Value interface {
	String() string
	Load(s string) error
}

// Int is an integer-valued preference.
type Int struct{ v int }

func (i *Int) Get() int         { return i.v }
func (i *Int) Set(v int)        { i.v = v }
func (i *Int) String() string   { return strconv.Itoa(i.v) }
func (i *Int) Load(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("prefs: invalid int value %q: %w", s, err)
	}
	i.v = v
	return nil
}

// Bool is a boolean-valued preference.
type Bool struct{ v bool }

func (b *Bool) Get() bool       { return b.v }
func (b *Bool) Set(v bool)      { b.v = v }
func (b *Bool) String() string  { return strconv.FormatBool(b.v) }
func (b *Bool) Load(s string) error {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("prefs: invalid bool value %q: %w", s, err)
	}
	b.v = v
	return nil
}

// String is a string-valued preference.
type String struct{ v string }

func (s *String) Get() string      { return s.v }
func (s *String) Set(v string)     { s.v = v }
func (s *String) String() string   { return s.v }
func (s *String) Load(v string) error {
	s.v = v
	return nil
}

// Disk persists a set of named Values to, and loads them from, a simple
// "key = value" text file.
type Disk struct {
	path   string
	fields map[string]Value
}

// NewDisk creates a Disk bound to path. The file is not touched until Load
// or Save is called.
func NewDisk(path string) (*Disk, error) {
	if path == "" {
		return nil, fmt.Errorf("prefs: empty path")
	}
	return &Disk{path: path, fields: make(map[string]Value)}, nil
}

// Add registers a Value under key for subsequent Load/Save calls.
func (d *Disk) Add(key string, v Value) {
	d.fields[key] = v
}

// Load reads the preferences file and updates every registered Value found
// in it. Unknown keys in the file are ignored; registered keys missing from
// the file keep their current value.
func (d *Disk) Load() error {
	f, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("prefs: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if f, ok := d.fields[key]; ok {
			if err := f.Load(val); err != nil {
				return err
			}
		}
	}
	return sc.Err()
}

// Save writes every registered Value to the preferences file, one per line,
// sorted by key for deterministic output, preceded by WarningBoilerPlate.
func (d *Disk) Save() error {
	f, err := os.Create(d.path)
	if err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s\n", WarningBoilerPlate)

	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}

	for _, k := range keys {
		fmt.Fprintf(w, "%s = %s\n", k, d.fields[k].String())
	}
	return w.Flush()
}
