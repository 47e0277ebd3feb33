//go:build !amd64 && !arm64

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

// Reg is an opaque placeholder on architectures the threader doesn't
// support; no value of it is ever meaningful.
type Reg uint8

const archSupported = false

const maxBranchDisplacement = int64(0)

const calleeSavedArg0 = Reg(0)

var prologueBytes = []byte{}
var epilogueBytes = []byte{}

func argReg(n int) (Reg, bool) { return 0, false }

func encodeSetReg(r Reg, value uintptr) []byte { return nil }

func encodeMovReg(dst, src Reg) []byte { return nil }

func encodeCallAddr(pc, target uintptr) []byte { return nil }

func encodeJmpAddr(pc, target uintptr) []byte { return nil }
