//go:build !linux

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

import "syscall"

// hintIsDemand is false here: outside Linux the engine has no portable way
// to demand a specific address from the kernel, so the hint is advisory
// only, per spec's fallback for hosts lacking a "don't clobber" flag.
const hintIsDemand = false

// mmapHint ignores addr (can't honor it portably) and lets the kernel
// choose, mirroring memcp's own scm/jit.go allocExec which never requests
// a particular address either.
func mmapHint(addr uintptr, length int) ([]byte, error) {
	return syscall.Mmap(-1, 0, length, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_PRIVATE|syscall.MAP_ANON)
}

func munmapRaw(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return syscall.Munmap(mem)
}

// isEEXIST never matters here since hintIsDemand is false, but the symbol
// must exist for the shared engine code to compile.
func isEEXIST(err error) bool {
	return false
}

// mprotectRX flips mem from RW to RX, the W^X transition that makes the
// bytes written so far safe to execute and unsafe to further mutate.
func mprotectRX(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return syscall.Mprotect(mem, syscall.PROT_READ|syscall.PROT_EXEC)
}
