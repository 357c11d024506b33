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

// Package cmd wires nativedbg's cobra command tree: the root command plus
// the "debug" subcommand that drives an interactive session.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "dbgctl",
	Short: "A native source-level debugger for ELF and Mach-O binaries",
	Long: `dbgctl launches a native ELF or Mach-O binary, parses its
DWARF debug information, and drives breakpoints, stepping, and variable
inspection through an interactive session.`,
}

// Execute runs the root command; called once from main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(debugCmd)
}
