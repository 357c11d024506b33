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

//go:build !linux || !amd64

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// debugCmd on unsupported platforms reports the limitation instead of
// offering a command that would panic the first time it touched ptrace.
// The process-control backend (procctl/ptrace) is linux/amd64-only; a
// coredump-backed session (procctl/coredump) has no CLI entry point yet.
var debugCmd = &cobra.Command{
	Use:   "debug <path> [args...]",
	Short: "Launch a binary under the debugger (linux/amd64 only)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("nativedbg: live process control is only implemented for linux/amd64")
	},
}
