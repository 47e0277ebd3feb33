//go:build linux

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
	"syscall"
	"unsafe"
)

// mapFixedNoreplace asks the kernel to fail with EEXIST rather than
// silently picking a different address or clobbering an existing mapping.
// Present on Linux since kernel 4.17; package syscall doesn't expose the
// constant, so it's inlined the way the original C ifdef'd it.
const mapFixedNoreplace = 0x100000

// hintIsDemand reports whether this platform's mmapHint honors the
// address hint strictly (failing with EEXIST on collision) rather than
// merely treating it as a locality hint.
const hintIsDemand = true

// mmapHint requests length bytes of RW memory at exactly addr, or fails
// with EEXIST if something is already mapped there. Go's portable
// syscall.Mmap wrapper has no address parameter, so this goes straight to
// the raw mmap(2) syscall, the same way goloader's mmap package does.
func mmapHint(addr uintptr, length int) ([]byte, error) {
	r0, _, errno := syscall.Syscall6(
		syscall.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(syscall.PROT_READ|syscall.PROT_WRITE),
		uintptr(syscall.MAP_PRIVATE|syscall.MAP_ANON|mapFixedNoreplace),
		^uintptr(0), // fd = -1
		0,
	)
	if errno != 0 {
		return nil, errno
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(r0)), length), nil
}

func munmapRaw(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	_, _, errno := syscall.Syscall(syscall.SYS_MUNMAP, uintptr(unsafe.Pointer(&mem[0])), uintptr(len(mem)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// isEEXIST reports whether err is the EEXIST that MAP_FIXED_NOREPLACE
// raises on a colliding hint, as opposed to a real mapping failure.
func isEEXIST(err error) bool {
	errno, ok := err.(syscall.Errno)
	return ok && errno == syscall.EEXIST
}

// mprotectRX flips mem from RW to RX, the W^X transition that makes the
// bytes written so far safe to execute and unsafe to further mutate.
func mprotectRX(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return syscall.Mprotect(mem, syscall.PROT_READ|syscall.PROT_EXEC)
}
