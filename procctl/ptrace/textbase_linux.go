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

package ptrace

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ashgrove/nativedbg/engineerrs"
)

// readTextBase finds the load address of the first executable mapping in
// /proc/pid/maps, which is the ASLR slide base for a non-PIE-relative
// lookup against the ELF's own vaddr space.
func readTextBase(pid int) (uint64, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return 0, engineerrs.New(engineerrs.IO, "nativedbg: cannot read process maps: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		perms := fields[1]
		if !strings.Contains(perms, "x") {
			continue
		}
		addrRange := strings.SplitN(fields[0], "-", 2)
		if len(addrRange) != 2 {
			continue
		}
		base, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}
		return base, nil
	}
	return 0, engineerrs.New(engineerrs.NotFound, "nativedbg: no executable mapping found for pid %d", pid)
}
