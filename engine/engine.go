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

// Package engine implements the debug engine driver (component C12): the
// run-action state machine (continue/step/pause/restart), stop handling,
// and the transparent resume loop that sits on top of a Process Control
// backend, the breakpoint manager, and the CFI unwinder.
package engine

import (
	"context"
	"strings"

	"github.com/ashgrove/nativedbg/disasm"
	"github.com/ashgrove/nativedbg/dwarfbin/cfi"
	"github.com/ashgrove/nativedbg/dwarfbin/lineprog"
	"github.com/ashgrove/nativedbg/engine/breakpoints"
	"github.com/ashgrove/nativedbg/engineerrs"
	"github.com/ashgrove/nativedbg/logger"
	"github.com/ashgrove/nativedbg/prefs"
	"github.com/ashgrove/nativedbg/procctl"
)

// DWARF register numbers the engine itself needs to know about; the full
// x86-64 table lives in procctl/ptrace, and locexpr and cfi use the same
// numbering.
const (
	dwRBP = 6
	dwRSP = 7
	dwRIP = 16
)

// Granularity is the step size a run action is requested at.
type Granularity int

const (
	GranStatement Granularity = iota
	GranLine
	GranInstruction
)

// Action is one entry of the run-action state machine (spec §4.12).
type Action int

const (
	ActionContinue Action = iota
	ActionStepInto
	ActionStepOver
	ActionStepOut
	ActionPause
	ActionRestart
	ActionReverseContinue
	ActionStepBack
)

// Function is a resolved function's address range, used to detect
// function-entry during line-granularity stepping.
type Function struct {
	Name string
	Low  uint64
	High uint64
}

// FunctionTable is a function range index the engine consults for stepping
// decisions. Callers build it once at launch from the DIE tree.
type FunctionTable []Function

// At returns the function containing pc, if any.
func (t FunctionTable) At(pc uint64) (Function, bool) {
	for _, f := range t {
		if pc >= f.Low && pc < f.High {
			return f, true
		}
	}
	return Function{}, false
}

// StopState is what a run action returns once the user should actually
// regain control.
type StopState struct {
	PC          uint64
	Reason      procctl.StopReason
	Function    string
	Line        *lineprog.LineEntry
	LogMessages []string
	Exited      bool
	ExitCode    int
}

// Engine drives one debug session end to end. It owns no goroutines: every
// call is expected to run on the single cooperative caller thread (spec §5).
type Engine struct {
	ctrl      procctl.Controller
	bps       *breakpoints.Manager
	cfiTable  *cfi.Section
	lines     *lineprog.Program
	functions FunctionTable
	prefs     *prefs.EnginePrefs
	log       *logger.Logger

	path string
	args []string

	textBase uint64
	slide    uint64

	steppingPastWP int // hardware watchpoint slot awaiting a resume, -1 if none
}

// New wires an Engine over an already-constructed Process Control backend
// plus the static tables the launch sequence loaded.
func New(ctrl procctl.Controller, bps *breakpoints.Manager, cfiTable *cfi.Section, lines *lineprog.Program, functions FunctionTable, p *prefs.EnginePrefs, log *logger.Logger) *Engine {
	if p == nil {
		p = prefs.NewEnginePrefs()
	}
	return &Engine{
		ctrl:           ctrl,
		bps:            bps,
		cfiTable:       cfiTable,
		lines:          lines,
		functions:      functions,
		prefs:          p,
		log:            log,
		steppingPastWP: -1,
	}
}

// Launch spawns the inferior, waits for the initial stop, and computes the
// ASLR slide from the backend's reported text base.
func (e *Engine) Launch(ctx context.Context, path string, args []string) error {
	e.path, e.args = path, args
	if err := e.ctrl.Spawn(ctx, path, args); err != nil {
		return err
	}
	if _, err := e.ctrl.WaitForStop(ctx); err != nil {
		return err
	}
	base, err := e.ctrl.GetTextBase(ctx)
	if err != nil {
		return err
	}
	e.textBase = base
	e.slide = base
	e.logDebug("launch: text base %#x", base)
	return nil
}

func (e *Engine) logDebug(format string, args ...interface{}) {
	if e.log != nil {
		e.log.Logf(logger.Allow, "engine", format, args...)
	}
}

// RunAction dispatches one entry of the run-action state machine.
func (e *Engine) RunAction(ctx context.Context, action Action, gran Granularity) (StopState, error) {
	switch action {
	case ActionReverseContinue, ActionStepBack:
		return StopState{}, engineerrs.New(engineerrs.NotSupp, engineerrs.PatNotSupported, "reverse execution")
	case ActionContinue:
		return e.doContinue(ctx)
	case ActionStepInto:
		if gran == GranInstruction {
			return e.doSingleStep(ctx)
		}
		return e.doStepIntoLine(ctx)
	case ActionStepOver:
		return e.doStepOverLine(ctx)
	case ActionStepOut:
		return e.doStepOut(ctx)
	case ActionPause:
		return e.doPause(ctx)
	case ActionRestart:
		return e.doRestart(ctx)
	}
	return StopState{}, engineerrs.New(engineerrs.Policy, "nativedbg: unknown run action %d", int(action))
}

// stepPastBreakpointAt lifts, single-steps, and replants a software
// breakpoint at pc if one is planted there, so a subsequent continue or
// step does not immediately retrap.
func (e *Engine) stepPastBreakpointAt(ctx context.Context, pc uint64) error {
	bp, ok := e.bps.At(pc)
	if !ok || bp.Kind != breakpoints.KindSoftware {
		return nil
	}
	resume, err := e.bps.StepPast(memAdapter{e.ctrl, ctx}, bp)
	if err != nil {
		return err
	}
	if err := e.ctrl.SingleStep(ctx); err != nil {
		return err
	}
	if _, err := e.ctrl.WaitForStop(ctx); err != nil {
		return err
	}
	return resume()
}

func (e *Engine) currentPC(ctx context.Context) (uint64, error) {
	regs, err := e.ctrl.ReadRegisters(ctx)
	if err != nil {
		return 0, err
	}
	return regs[dwRIP], nil
}

// doContinue implements the `continue` action (spec §4.12).
func (e *Engine) doContinue(ctx context.Context) (StopState, error) {
	pc, err := e.currentPC(ctx)
	if err != nil {
		return StopState{}, err
	}
	// x86-64 INT3 leaves rip one past the trap byte.
	bpAddr := pc - 1
	if _, ok := e.bps.At(bpAddr); ok {
		if err := e.fixupTrapPC(ctx, bpAddr); err != nil {
			return StopState{}, err
		}
		if err := e.stepPastBreakpointAt(ctx, bpAddr); err != nil {
			return StopState{}, err
		}
	}
	if err := e.ctrl.Continue(ctx); err != nil {
		return StopState{}, err
	}
	return e.waitAndHandleStop(ctx, false)
}

// fixupTrapPC rewinds rip from one-past-trap back to the breakpoint address
// itself, per C11's findByAddress rule for x86-64.
func (e *Engine) fixupTrapPC(ctx context.Context, addr uint64) error {
	regs, err := e.ctrl.ReadRegisters(ctx)
	if err != nil {
		return err
	}
	regs[dwRIP] = addr
	return e.ctrl.WriteRegisters(ctx, regs)
}

func (e *Engine) doSingleStep(ctx context.Context) (StopState, error) {
	pc, err := e.currentPC(ctx)
	if err != nil {
		return StopState{}, err
	}
	if err := e.stepPastBreakpointAt(ctx, pc); err != nil {
		return StopState{}, err
	}
	if err := e.ctrl.SingleStep(ctx); err != nil {
		return StopState{}, err
	}
	return e.waitAndHandleStop(ctx, true)
}

// doStepIntoLine implements step_into at line granularity (spec §4.12).
func (e *Engine) doStepIntoLine(ctx context.Context) (StopState, error) {
	startPC, err := e.currentPC(ctx)
	if err != nil {
		return StopState{}, err
	}
	startFn, _ := e.functions.At(startPC - e.slide)
	startLine := e.lineFor(startPC)

	max := e.prefs.StepIntoMaxIterations.Get()
	for i := 0; i < max; i++ {
		st, err := e.doSingleStep(ctx)
		if err != nil || st.Exited {
			return st, err
		}

		pc := st.PC
		fn, inFn := e.functions.At(pc - e.slide)
		if inFn && fn.Name != startFn.Name && !e.isTrampoline(fn.Name) {
			if !e.transferredByCall(ctx, pc) {
				e.logDebug("step_into: entered %s without a preceding call (tail jump?)", fn.Name)
			}
			target := e.prologueEnd(fn)
			bp, err := e.bps.SetSoftware(memAdapter{e.ctrl, ctx}, target)
			if err != nil {
				return StopState{}, err
			}
			defer e.bps.Clear(memAdapter{e.ctrl, ctx}, bp.ID)
			if err := e.ctrl.Continue(ctx); err != nil {
				return StopState{}, err
			}
			st, err = e.waitAndHandleStop(ctx, false)
			if err != nil || st.Exited {
				return st, err
			}
			return st, nil
		}

		line := e.lineFor(pc)
		sameFunc := fn.Name == startFn.Name
		if sameFunc && line != nil && startLine != nil && line.Line != startLine.Line {
			return st, nil
		}
		if !sameFunc {
			return st, nil
		}
	}
	return StopState{}, engineerrs.New(engineerrs.Process, "nativedbg: step_into exceeded %d single-step iterations", max)
}

// isTrampoline reports whether name matches one of the configured runtime
// trampoline prefixes (spec §4.12, §9).
func (e *Engine) isTrampoline(name string) bool {
	for _, prefix := range e.prefs.TrampolineList() {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// transferredByCall decodes the instruction ending at pc (the address the
// single-step landed on after crossing a function boundary) by reading a
// few bytes before it and checking whether any of the plausible instruction
// starts decodes to a CALL whose encoding ends exactly at pc (the call's
// target is not compared with pc's function); this distinguishes a real
// call from a tail jump, which the step_into loop logs but does not treat
// differently, since the trampoline list is name-based rather than
// instruction-based.
func (e *Engine) transferredByCall(ctx context.Context, pc uint64) bool {
	const lookback = 8
	if pc < lookback {
		return false
	}
	code, err := e.ctrl.ReadMemory(ctx, pc-lookback, lookback+5)
	if err != nil {
		return false
	}
	for start := 0; start < lookback; start++ {
		ins := disasm.DecodeX86(code[start:], pc-lookback+uint64(start))
		if ins.Kind == disasm.KindCall && start+ins.Length == lookback {
			return true
		}
	}
	return false
}

// prologueEnd picks the function's post-prologue breakpoint target: the
// first prologue_end line entry in range, falling back to the first
// is_stmt entry.
func (e *Engine) prologueEnd(fn Function) uint64 {
	var firstStmt uint64
	haveStmt := false
	if e.lines == nil {
		return fn.Low + e.slide
	}
	for _, le := range e.lines.LineEntries {
		addr := le.Address + e.slide
		if addr < fn.Low+e.slide || addr >= fn.High+e.slide {
			continue
		}
		if le.PrologueEnd {
			return addr
		}
		if le.IsStmt && !haveStmt {
			firstStmt = addr
			haveStmt = true
		}
	}
	if haveStmt {
		return firstStmt
	}
	return fn.Low + e.slide
}

func (e *Engine) lineFor(pc uint64) *lineprog.LineEntry {
	if e.lines == nil {
		return nil
	}
	target := pc - e.slide
	var best *lineprog.LineEntry
	for i := range e.lines.LineEntries {
		le := &e.lines.LineEntries[i]
		if le.EndSequence || le.Address > target {
			continue
		}
		if best == nil || le.Address > best.Address {
			best = le
		}
	}
	return best
}

// frameIdentity returns the CFA when the CFI table covers pc, else the
// stack pointer, per the step_over frame-identity rule (spec §4.12).
func (e *Engine) frameIdentity(ctx context.Context, pc uint64) (uint64, error) {
	regs, err := e.ctrl.ReadRegisters(ctx)
	if err != nil {
		return 0, err
	}
	if e.cfiTable != nil {
		if fde := e.cfiTable.FindFDE(pc - e.slide); fde != nil {
			rows, err := cfi.RunTable(fde.CIE, fde)
			if err == nil {
				if row, ok := cfi.RowFor(rows, pc-e.slide); ok {
					return regs[row.CFARegister] + uint64(row.CFAOffset), nil
				}
			}
		}
	}
	return regs[dwRSP], nil
}

// doStepOverLine implements step_over at line granularity (spec §4.12).
func (e *Engine) doStepOverLine(ctx context.Context) (StopState, error) {
	startPC, err := e.currentPC(ctx)
	if err != nil {
		return StopState{}, err
	}
	startFn, inFn := e.functions.At(startPC - e.slide)
	startLine := e.lineFor(startPC)
	startIdentity, err := e.frameIdentity(ctx, startPC)
	if err != nil {
		return StopState{}, err
	}

	var planted []int
	mem := memAdapter{e.ctrl, ctx}

	plantSiblingLines := func() error {
		if !inFn || e.lines == nil {
			return nil
		}
		planted = planted[:0]
		count := 0
		maxBP := e.prefs.MaxStepOverBreakpoints.Get()
		for i := range e.lines.LineEntries {
			le := &e.lines.LineEntries[i]
			addr := le.Address + e.slide
			if addr < startFn.Low+e.slide || addr >= startFn.High+e.slide {
				continue
			}
			if !le.IsStmt || (startLine != nil && le.Line == startLine.Line) {
				continue
			}
			bp, err := e.bps.SetSoftware(mem, addr)
			if err != nil {
				return err
			}
			planted = append(planted, bp.ID)
			count++
			if count >= maxBP {
				break
			}
		}
		return nil
	}
	clearPlanted := func() {
		for _, id := range planted {
			e.bps.Clear(mem, id)
		}
		planted = nil
	}
	defer clearPlanted()

	returnAddr, _ := e.returnAddress(ctx)
	var retBP *breakpoints.Breakpoint
	if returnAddr != 0 {
		retBP, err = e.bps.SetSoftware(mem, returnAddr)
		if err != nil {
			return StopState{}, err
		}
		defer e.bps.Clear(mem, retBP.ID)
	}

	if err := plantSiblingLines(); err != nil {
		return StopState{}, err
	}
	if err := e.ctrl.Continue(ctx); err != nil {
		return StopState{}, err
	}

	max := e.prefs.StepOverMaxAttempts.Get()
	for attempt := 0; attempt < max; attempt++ {
		st, err := e.waitAndHandleStop(ctx, false)
		if err != nil || st.Exited {
			return st, err
		}

		fn, ok := e.functions.At(st.PC - e.slide)
		identity, ierr := e.frameIdentity(ctx, st.PC)
		sameFrame := ierr == nil && identity == startIdentity

		switch {
		case ok && fn.Name == startFn.Name && sameFrame:
			line := e.lineFor(st.PC)
			if line != nil && startLine != nil && line.Line != startLine.Line {
				return st, nil
			}
			if err := plantSiblingLines(); err != nil {
				return StopState{}, err
			}
			if err := e.ctrl.Continue(ctx); err != nil {
				return StopState{}, err
			}
		case ok && e.isTrampoline(fn.Name):
			if err := plantSiblingLines(); err != nil {
				return StopState{}, err
			}
			if err := e.ctrl.Continue(ctx); err != nil {
				return StopState{}, err
			}
		default:
			// a real callee: net a temporary breakpoint at its return
			// address in case it returns via a trampoline.
			ret, rerr := e.returnAddress(ctx)
			if rerr == nil && ret != 0 {
				bp, berr := e.bps.SetSoftware(mem, ret)
				if berr == nil {
					planted = append(planted, bp.ID)
				}
			}
			if err := e.ctrl.Continue(ctx); err != nil {
				return StopState{}, err
			}
		}
	}
	return StopState{}, engineerrs.New(engineerrs.Process, "nativedbg: step_over exceeded %d resume attempts", max)
}

// returnAddress reads [rbp+8] on x86-64, the calling convention the teacher
// baseline targets; callers fall back gracefully if it reads garbage.
func (e *Engine) returnAddress(ctx context.Context) (uint64, error) {
	regs, err := e.ctrl.ReadRegisters(ctx)
	if err != nil {
		return 0, err
	}
	fp := regs[dwRBP]
	if fp == 0 {
		return 0, nil
	}
	b, err := e.ctrl.ReadMemory(ctx, fp+8, 8)
	if err != nil {
		return 0, err
	}
	return bytesToUint(b), nil
}

// doStepOut implements step_out's two-phase return (spec §4.12): stop once
// at the return address, then once more at the next line in the caller so
// the return-value store has already executed.
func (e *Engine) doStepOut(ctx context.Context) (StopState, error) {
	mem := memAdapter{e.ctrl, ctx}
	ret, err := e.returnAddress(ctx)
	if err != nil {
		return StopState{}, err
	}
	if ret == 0 {
		return StopState{}, engineerrs.New(engineerrs.Process, "nativedbg: no frame to step out of")
	}
	bp, err := e.bps.SetSoftware(mem, ret)
	if err != nil {
		return StopState{}, err
	}
	if err := e.ctrl.Continue(ctx); err != nil {
		return StopState{}, err
	}
	st, err := e.waitAndHandleStop(ctx, false)
	e.bps.Clear(mem, bp.ID)
	if err != nil || st.Exited {
		return st, err
	}

	// phase 2: next line in the caller.
	fn, ok := e.functions.At(st.PC - e.slide)
	if !ok || e.lines == nil {
		return st, nil
	}
	curLine := e.lineFor(st.PC)
	var nextAddr uint64
	for i := range e.lines.LineEntries {
		le := &e.lines.LineEntries[i]
		addr := le.Address + e.slide
		if addr <= st.PC || addr < fn.Low+e.slide || addr >= fn.High+e.slide {
			continue
		}
		if !le.IsStmt {
			continue
		}
		if curLine != nil && le.Line == curLine.Line {
			continue
		}
		if nextAddr == 0 || addr < nextAddr {
			nextAddr = addr
		}
	}
	if nextAddr == 0 {
		return st, nil
	}
	bp2, err := e.bps.SetSoftware(mem, nextAddr)
	if err != nil {
		return st, nil
	}
	if err := e.ctrl.Continue(ctx); err != nil {
		return StopState{}, err
	}
	st2, err := e.waitAndHandleStop(ctx, false)
	e.bps.Clear(mem, bp2.ID)
	if err != nil {
		return st, nil
	}
	return st2, nil
}

// pauser is implemented by backends that can interrupt a running inferior
// out of band (SIGSTOP on a ptrace backend); the coredump backend has
// nothing to pause.
type pauser interface {
	Pause(ctx context.Context) error
}

func (e *Engine) doPause(ctx context.Context) (StopState, error) {
	p, ok := e.ctrl.(pauser)
	if !ok {
		return StopState{}, engineerrs.New(engineerrs.NotSupp, engineerrs.PatNotSupported, "pause")
	}
	if err := p.Pause(ctx); err != nil {
		return StopState{}, err
	}
	return e.waitAndHandleStop(ctx, false)
}

// doRestart kills and re-spawns the inferior, rebasing every existing
// breakpoint by the slide delta (spec §4.12).
func (e *Engine) doRestart(ctx context.Context) (StopState, error) {
	oldSlide := e.slide
	_ = e.ctrl.Kill(ctx)
	if err := e.ctrl.Spawn(ctx, e.path, e.args); err != nil {
		return StopState{}, err
	}
	if _, err := e.ctrl.WaitForStop(ctx); err != nil {
		return StopState{}, err
	}
	base, err := e.ctrl.GetTextBase(ctx)
	if err != nil {
		return StopState{}, err
	}
	e.slide = base
	e.textBase = base
	delta := int64(e.slide) - int64(oldSlide)
	e.rebaseBreakpoints(ctx, delta)
	e.steppingPastWP = -1
	return StopState{PC: base}, nil
}

func (e *Engine) rebaseBreakpoints(ctx context.Context, delta int64) {
	mem := memAdapter{e.ctrl, ctx}
	for _, addr := range e.bps.Addresses() {
		bp, ok := e.bps.At(addr)
		if !ok {
			continue
		}
		newAddr := uint64(int64(addr) + delta)
		e.bps.Clear(mem, bp.ID)
		e.bps.SetSoftware(mem, newAddr)
	}
}

// waitAndHandleStop is the transparent resume loop (spec §4.12): it keeps
// resuming past stops the user should not see (failed conditions, log
// points, benign signals) until a user-visible StopState is produced or the
// iteration cap is hit.
func (e *Engine) waitAndHandleStop(ctx context.Context, wasSingleStep bool) (StopState, error) {
	var logs []string
	max := e.prefs.TransparentResumeMaxIterations.Get()

	for i := 0; i < max; i++ {
		ev, err := e.ctrl.WaitForStop(ctx)
		if err != nil {
			return StopState{}, err
		}

		if ev.Reason == procctl.StopExited {
			return StopState{Exited: true, ExitCode: ev.ExitCode, Reason: ev.Reason}, nil
		}

		st, shouldResume, resumeSingleStep, err := e.classifyStop(ctx, ev, wasSingleStep)
		if err != nil {
			return StopState{}, err
		}
		if !shouldResume {
			st.LogMessages = append(st.LogMessages, logs...)
			return st, nil
		}
		logs = append(logs, st.LogMessages...)

		if resumeSingleStep {
			if err := e.ctrl.SingleStep(ctx); err != nil {
				return StopState{}, err
			}
		} else {
			if err := e.ctrl.Continue(ctx); err != nil {
				return StopState{}, err
			}
		}
	}
	return StopState{}, engineerrs.New(engineerrs.Process, "nativedbg: transparent resume exceeded %d iterations", max)
}

// fatalSignals always stop the user regardless of any exception filter.
var fatalSignals = map[int]bool{4: true, 6: true, 8: true, 7: true, 11: true} // SIGILL SIGABRT SIGFPE SIGBUS SIGSEGV

// classifyStop implements the stop-handling rules of spec §4.12: breakpoint
// hit (condition/hit-condition/log-point), watchpoint hit, fatal signal, or
// benign signal requiring a transparent resume.
func (e *Engine) classifyStop(ctx context.Context, ev procctl.StopEvent, wasSingleStep bool) (StopState, bool, bool, error) {
	pc := ev.PC
	mem := memAdapter{e.ctrl, ctx}

	if bp, ok := e.bps.At(pc - 1); ok && bp.Kind == breakpoints.KindSoftware && !wasSingleStep {
		if err := e.fixupTrapPC(ctx, pc-1); err != nil {
			return StopState{}, false, false, err
		}
		pc = pc - 1
		stop, err := e.bps.Hit(bp)
		if err != nil {
			return StopState{}, false, false, err
		}
		if !stop {
			return StopState{LogMessages: e.renderLogPoint(bp)}, true, false, nil
		}
		return e.buildStopState(pc, procctl.StopBreakpoint), false, false, nil
	}

	if e.steppingPastWP >= 0 {
		e.steppingPastWP = -1
	}

	switch ev.Reason {
	case procctl.StopWatchpoint:
		return e.buildStopState(pc, procctl.StopWatchpoint), false, false, nil
	case procctl.StopSingleStep:
		return e.buildStopState(pc, procctl.StopSingleStep), false, false, nil
	case procctl.StopSignal:
		if fatalSignals[ev.Signal] {
			return e.buildStopState(pc, procctl.StopSignal), false, false, nil
		}
		return StopState{}, true, wasSingleStep, nil
	default:
		return e.buildStopState(pc, ev.Reason), false, false, nil
	}
}

func (e *Engine) renderLogPoint(bp *breakpoints.Breakpoint) []string {
	if bp.LogPoint == "" {
		return nil
	}
	return []string{bp.LogPoint}
}

func (e *Engine) buildStopState(pc uint64, reason procctl.StopReason) StopState {
	st := StopState{PC: pc, Reason: reason}
	if fn, ok := e.functions.At(pc - e.slide); ok {
		st.Function = fn.Name
	}
	st.Line = e.lineFor(pc)
	return st
}

func bytesToUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// memAdapter narrows a procctl.Controller plus a context into the plain
// synchronous Memory interface the breakpoint manager expects.
type memAdapter struct {
	ctrl procctl.Controller
	ctx  context.Context
}

func (m memAdapter) ReadMemory(addr uint64, size int) ([]byte, error) {
	return m.ctrl.ReadMemory(m.ctx, addr, size)
}

func (m memAdapter) WriteMemory(addr uint64, data []byte) error {
	return m.ctrl.WriteMemory(m.ctx, addr, data)
}
