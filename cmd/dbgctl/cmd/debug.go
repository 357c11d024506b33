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

//go:build linux && amd64

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ashgrove/nativedbg/engine"
	"github.com/ashgrove/nativedbg/engine/breakpoints"
	"github.com/ashgrove/nativedbg/loader"
	"github.com/ashgrove/nativedbg/logger"
	"github.com/ashgrove/nativedbg/prefs"
	"github.com/ashgrove/nativedbg/procctl"
	"github.com/ashgrove/nativedbg/procctl/ptrace"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	colorPrompt     = color.New(color.FgBlue, color.Bold)
	colorAddr       = color.New(color.FgCyan)
	colorSourceLine = color.New(color.FgHiCyan)
	colorError      = color.New(color.FgRed, color.Bold)
	colorSuccess    = color.New(color.FgGreen)
	colorBreakpoint = color.New(color.FgRed, color.Bold)
)

var debugCmd = &cobra.Command{
	Use:   "debug <path> [args...]",
	Short: "Launch a binary under the debugger and start an interactive session",
	Long: `Loads the given ELF or Mach-O binary, parses whatever DWARF debug
information it carries, spawns it under ptrace, and opens an interactive
session.

Available commands:
  break, b <hex-addr>   - plant a software breakpoint
  delete, d <id>        - remove a breakpoint
  continue, c           - resume until the next stop
  step, s               - step into, at line granularity
  next, n               - step over, at line granularity
  finish                - step out of the current function
  info                  - print a hint; the PC, function and line are not shown
  quit, q               - detach and exit`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDebug,
}

func runDebug(cmd *cobra.Command, args []string) error {
	path := args[0]
	progArgs := args[1:]

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("nativedbg: %w", err)
	}
	img, err := loader.Load(raw)
	if err != nil {
		return fmt.Errorf("nativedbg: %w", err)
	}
	tables := loadDebugTables(img)

	ctrl := ptrace.New()
	bps := breakpoints.NewManager(nil)
	log := logger.NewLogger(1024)
	eng := engine.New(ctrl, bps, tables.cfi, tables.lines, tables.functions, prefs.NewEnginePrefs(), log)

	ctx := context.Background()
	if err := eng.Launch(ctx, path, progArgs); err != nil {
		return fmt.Errorf("nativedbg: launch failed: %w", err)
	}
	colorSuccess.Fprintf(cmd.OutOrStdout(), "launched %s (pid via controller)\n", path)

	repl(cmd, eng, bps, ctrl, ctx)
	_ = ctrl.Detach(ctx)
	return nil
}

func repl(cmd *cobra.Command, eng *engine.Engine, bps *breakpoints.Manager, ctrl procctl.Controller, ctx context.Context) {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		colorPrompt.Fprint(out, "(nativedbg) ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "break", "b":
			if len(fields) < 2 {
				colorError.Fprintln(out, "usage: break <hex-addr>")
				continue
			}
			addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
			if err != nil {
				colorError.Fprintf(out, "bad address: %v\n", err)
				continue
			}
			mem := controllerMemory{ctrl, ctx}
			bp, err := bps.SetSoftware(mem, addr)
			if err != nil {
				colorError.Fprintf(out, "%v\n", err)
				continue
			}
			colorBreakpoint.Fprintf(out, "breakpoint %d at 0x%x\n", bp.ID, bp.Addr)

		case "delete", "d":
			if len(fields) < 2 {
				colorError.Fprintln(out, "usage: delete <id>")
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				colorError.Fprintf(out, "bad id: %v\n", err)
				continue
			}
			mem := controllerMemory{ctrl, ctx}
			if err := bps.Clear(mem, id); err != nil {
				colorError.Fprintf(out, "%v\n", err)
			}

		case "continue", "c":
			reportStop(out, eng.RunAction(ctx, engine.ActionContinue, engine.GranLine))
		case "step", "s":
			reportStop(out, eng.RunAction(ctx, engine.ActionStepInto, engine.GranLine))
		case "next", "n":
			reportStop(out, eng.RunAction(ctx, engine.ActionStepOver, engine.GranLine))
		case "finish":
			reportStop(out, eng.RunAction(ctx, engine.ActionStepOut, engine.GranLine))
		case "info", "i":
			fmt.Fprintln(out, "use continue/step/next to produce a fresh stop report")
		case "quit", "q":
			return
		default:
			colorError.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
}

func reportStop(out interface{ Write([]byte) (int, error) }, st engine.StopState, err error) {
	if err != nil {
		colorError.Fprintf(out, "%v\n", err)
		return
	}
	if st.Exited {
		colorSuccess.Fprintf(out, "process exited (code %d)\n", st.ExitCode)
		return
	}
	colorAddr.Fprintf(out, "stopped at 0x%x", st.PC)
	if st.Function != "" {
		fmt.Fprintf(out, " in %s", st.Function)
	}
	if st.Line != nil {
		colorSourceLine.Fprintf(out, " (line %d)", st.Line.Line)
	}
	fmt.Fprintln(out)
	for _, msg := range st.LogMessages {
		fmt.Fprintf(out, "log: %s\n", msg)
	}
}

// controllerMemory adapts a procctl.Controller plus a fixed context into
// the breakpoints.Memory interface the REPL's break/delete commands need
// before any run action has bound a context of its own.
type controllerMemory struct {
	ctrl procctl.Controller
	ctx  context.Context
}

func (m controllerMemory) ReadMemory(addr uint64, size int) ([]byte, error) {
	return m.ctrl.ReadMemory(m.ctx, addr, size)
}

func (m controllerMemory) WriteMemory(addr uint64, data []byte) error {
	return m.ctrl.WriteMemory(m.ctx, addr, data)
}
