/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package jit

import (
	"fmt"
	"os"

	units "github.com/docker/go-units"
)

// assert panics on a precondition violation — a programmer error, not an
// environmental failure. Mirrors blink's unassert() macro: these checks
// stay compiled in, because an engine that silently continues after e.g.
// an out-of-range ARM64 branch displacement is worse than one that dies
// loudly at the call site that caused it.
func assert(cond bool, msg string) {
	if !cond {
		panic("jit: " + msg)
	}
}

func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "jit: "+format+"\n", args...)
}

// humanBytes renders a byte count the way the dashboard and log lines do,
// e.g. "64KiB" for kJitPageSize.
func humanBytes(n int) string {
	return units.BytesSize(float64(n))
}
