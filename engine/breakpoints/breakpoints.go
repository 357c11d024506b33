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

// Package breakpoints implements the breakpoint manager (component C11):
// software and hardware breakpoints, conditions, hit-conditions, log
// points, and the step-past protocol used to resume over a breakpoint's
// own address.
package breakpoints

import (
	"fmt"

	"github.com/ashgrove/nativedbg/engineerrs"
)

const breakpointTrapByte = 0xcc // INT3 on x86-64; the manager plants this byte on every architecture

// Kind distinguishes a software trap-byte breakpoint from a hardware
// watchpoint backed by debug registers.
type Kind int

const (
	KindSoftware Kind = iota
	KindHardwareWatch
)

// ConditionEvaluator evaluates a user-supplied condition expression against
// the program state at a stop. A nil ConditionEvaluator makes every
// breakpoint unconditional.
type ConditionEvaluator func(expr string) (bool, error)

// Breakpoint is one user-requested stop point.
type Breakpoint struct {
	ID       int
	Addr     uint64
	Kind     Kind
	Size     int // watchpoint width, in bytes
	OnWrite  bool

	Condition string
	LogPoint  string // when set, the breakpoint logs and auto-continues instead of stopping

	HitCondition string // e.g. ">= 3"; parsed once at Set time
	hitTarget    int
	hitCompare   func(hits int) bool

	enabled bool
	hits    int

	// origByte is the instruction byte a software breakpoint replaced,
	// restored when stepping past it and reinstated afterwards.
	origByte byte
	planted  bool
}

// Memory is the narrow read/write-byte interface the manager needs to plant
// and lift software breakpoints.
type Memory interface {
	ReadMemory(addr uint64, size int) ([]byte, error)
	WriteMemory(addr uint64, data []byte) error
}

// Manager owns every breakpoint for one debug session.
type Manager struct {
	byID       map[int]*Breakpoint
	byAddr     map[uint64]*Breakpoint
	nextID     int
	evaluator  ConditionEvaluator
}

// NewManager creates an empty breakpoint manager. eval may be nil, in which
// case conditions are not evaluated and the breakpoint stops as if it had
// none; hit-conditions still gate the stop on the hit count.
func NewManager(eval ConditionEvaluator) *Manager {
	return &Manager{
		byID:      make(map[int]*Breakpoint),
		byAddr:    make(map[uint64]*Breakpoint),
		evaluator: eval,
	}
}

// SetSoftware plants a software breakpoint at addr.
func (m *Manager) SetSoftware(mem Memory, addr uint64) (*Breakpoint, error) {
	if existing, ok := m.byAddr[addr]; ok {
		return existing, nil
	}

	m.nextID++
	bp := &Breakpoint{ID: m.nextID, Addr: addr, Kind: KindSoftware, enabled: true}
	if err := m.plant(mem, bp); err != nil {
		return nil, err
	}

	m.byID[bp.ID] = bp
	m.byAddr[addr] = bp
	return bp, nil
}

// SetHardwareWatch records a hardware watchpoint; the caller is responsible
// for programming the debug registers via procctl and must pass back the
// resulting slot through Breakpoint metadata it owns (the manager only
// tracks bookkeeping, not register state, since that is backend-specific).
func (m *Manager) SetHardwareWatch(addr uint64, size int, onWrite bool) *Breakpoint {
	m.nextID++
	bp := &Breakpoint{ID: m.nextID, Addr: addr, Kind: KindHardwareWatch, Size: size, OnWrite: onWrite, enabled: true}
	m.byID[bp.ID] = bp
	m.byAddr[addr] = bp
	return bp
}

func (m *Manager) plant(mem Memory, bp *Breakpoint) error {
	orig, err := mem.ReadMemory(bp.Addr, 1)
	if err != nil {
		return err
	}
	bp.origByte = orig[0]
	if err := mem.WriteMemory(bp.Addr, []byte{breakpointTrapByte}); err != nil {
		return err
	}
	bp.planted = true
	return nil
}

func (m *Manager) lift(mem Memory, bp *Breakpoint) error {
	if !bp.planted {
		return nil
	}
	if err := mem.WriteMemory(bp.Addr, []byte{bp.origByte}); err != nil {
		return err
	}
	bp.planted = false
	return nil
}

// StepPast temporarily lifts a software breakpoint so a single step can
// execute the original instruction, then replants it. The caller performs
// the actual single-step between the two calls this returns.
func (m *Manager) StepPast(mem Memory, bp *Breakpoint) (resume func() error, err error) {
	if bp.Kind != KindSoftware || !bp.planted {
		return func() error { return nil }, nil
	}
	if err := m.lift(mem, bp); err != nil {
		return nil, err
	}
	return func() error { return m.plant(mem, bp) }, nil
}

// Clear removes a breakpoint, lifting a planted software trap first.
func (m *Manager) Clear(mem Memory, id int) error {
	bp, ok := m.byID[id]
	if !ok {
		return engineerrs.New(engineerrs.NotFound, "nativedbg: no breakpoint with id %d", id)
	}
	if bp.Kind == KindSoftware {
		if err := m.lift(mem, bp); err != nil {
			return err
		}
	}
	delete(m.byID, id)
	delete(m.byAddr, bp.Addr)
	return nil
}

// At returns the breakpoint planted at addr, if any.
func (m *Manager) At(addr uint64) (*Breakpoint, bool) {
	bp, ok := m.byAddr[addr]
	return bp, ok
}

// Addresses returns every currently-tracked breakpoint address, in no
// particular order; used by restart's rebasing pass.
func (m *Manager) Addresses() []uint64 {
	out := make([]uint64, 0, len(m.byAddr))
	for addr := range m.byAddr {
		out = append(out, addr)
	}
	return out
}

// SetHitCondition parses an expression of the form "<op> <n>" (">= 3", "== 1",
// "> 0") and attaches it to bp; future Hit calls only report a stop
// once the comparison against the cumulative hit count succeeds.
func (m *Manager) SetHitCondition(bp *Breakpoint, op string, n int) error {
	bp.hitTarget = n
	switch op {
	case "==":
		bp.hitCompare = func(h int) bool { return h == n }
	case ">=":
		bp.hitCompare = func(h int) bool { return h >= n }
	case ">":
		bp.hitCompare = func(h int) bool { return h > n }
	case "%":
		bp.hitCompare = func(h int) bool { return n > 0 && h%n == 0 }
	default:
		return engineerrs.New(engineerrs.Policy, "nativedbg: unsupported hit-condition operator %q", op)
	}
	bp.HitCondition = fmt.Sprintf("%s %d", op, n)
	return nil
}

// Hit records one trap at bp and reports whether the session should
// actually stop there: a log point never stops (the caller logs and
// resumes), a condition that fails to evaluate true never stops, and a hit
// condition gates on the cumulative count. A broken condition expression
// fails open (reports true) so a debugging session is never silently stuck.
func (m *Manager) Hit(bp *Breakpoint) (shouldStop bool, err error) {
	bp.hits++

	if bp.Condition != "" && m.evaluator != nil {
		ok, evalErr := m.evaluator(bp.Condition)
		if evalErr != nil {
			return true, evalErr
		}
		if !ok {
			return false, nil
		}
	}

	if bp.hitCompare != nil {
		if !bp.hitCompare(bp.hits) {
			return false, nil
		}
	}

	if bp.LogPoint != "" {
		return false, nil
	}

	return true, nil
}
