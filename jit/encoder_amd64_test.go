//go:build amd64

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
	"bytes"
	"testing"
)

func TestEncodeSetRegZero(t *testing.T) {
	got := encodeSetReg(RAX, 0)
	want := []byte{0x48, 0x31, 0xc0} // rex.w ; xor rax,rax
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeSetReg(RAX,0) = % x, want % x", got, want)
	}
}

func TestEncodeSetRegZeroHighRegister(t *testing.T) {
	got := encodeSetReg(R11, 0)
	want := []byte{0x4d, 0x31, 0xdb} // rex.wrb ; xor r11,r11
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeSetReg(R11,0) = % x, want % x", got, want)
	}
}

func TestEncodeSetRegSmallImmediate(t *testing.T) {
	got := encodeSetReg(RDI, 42)
	want := []byte{0xbf, 42, 0, 0, 0} // mov edi, 42 (zero-extends to rdi)
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeSetReg(RDI,42) = % x, want % x", got, want)
	}
}

func TestEncodeSetRegFullImmediate(t *testing.T) {
	const v = uintptr(0x1_0000_0001)
	got := encodeSetReg(RAX, v)
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10 for a REX.W + movabs encoding", len(got))
	}
	if got[0] != 0x48 || got[1] != 0xb8 {
		t.Fatalf("prefix+opcode = % x, want 48 b8", got[:2])
	}
}

func TestEncodeMovReg(t *testing.T) {
	got := encodeMovReg(RBX, RAX)
	want := []byte{0x48, 0x89, 0xc3} // mov rbx, rax
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeMovReg(RBX,RAX) = % x, want % x", got, want)
	}
}

func TestEncodeCallAddrNearUsesRel32(t *testing.T) {
	pc := uintptr(0x1000)
	target := uintptr(0x2000)
	got := encodeCallAddr(pc, target)
	if len(got) != 5 || got[0] != 0xe8 {
		t.Fatalf("encodeCallAddr for a nearby target = % x, want a 5-byte E8 call", got)
	}
}

func TestEncodeCallAddrFarUsesIndirect(t *testing.T) {
	pc := uintptr(0x1000)
	target := pc + uintptr(maxBranchDisplacement)*2
	got := encodeCallAddr(pc, target)
	if got[0] == 0xe8 {
		t.Fatal("a far target should never use the direct rel32 form")
	}
	// Last three bytes must be the indirect call through R11.
	tail := got[len(got)-3:]
	want := []byte{0x41, 0xff, 0xd3}
	if !bytes.Equal(tail, want) {
		t.Fatalf("indirect call tail = % x, want % x", tail, want)
	}
}

// TestCallRestoresArg0ByDefault mirrors end-to-end scenario 1: a Call
// with no preceding SetArg(0, ...) must restore argument 0 from the
// callee-saved register the prologue stashed it in, so a chain of calls
// still sees the VM state pointer as their first argument even after an
// intervening call clobbered rdi for some other purpose.
func TestCallRestoresArg0ByDefault(t *testing.T) {
	p := newTestPage(t)
	Start(p)
	SetArg(p, 1, 42) // only overrides argument 1; argument 0 stays implicit
	afterSetArg := p.index
	Call(p, 0x1000)

	restoreMove := p.mem[afterSetArg : afterSetArg+3]
	want := encodeMovReg(RDI, RBX)
	if !bytes.Equal(restoreMove, want) {
		t.Fatalf("Call without SetArg(0,...) = % x, want a leading % x (mov rdi, rbx)", restoreMove, want)
	}
}

// TestCallHonorsExplicitArg0 checks the other half: once SetArg(0, ...)
// ran, the following Call must not clobber it with the default restore.
func TestCallHonorsExplicitArg0(t *testing.T) {
	p := newTestPage(t)
	Start(p)
	SetArg(p, 0, 7)
	afterSetArg := p.index
	Call(p, 0x1000)

	restoreMove := encodeMovReg(RDI, RBX)
	if bytes.Equal(p.mem[afterSetArg:afterSetArg+3], restoreMove) {
		t.Fatal("Call clobbered an explicit SetArg(0, ...) with the default VM-state restore")
	}
}

// TestCallClearsSetargsForNextCall checks that the override from SetArg(0,
// ...) only protects the Call that immediately follows it — the next one
// defaults again.
func TestCallClearsSetargsForNextCall(t *testing.T) {
	p := newTestPage(t)
	Start(p)
	SetArg(p, 0, 7)
	Call(p, 0x1000)
	beforeSecondCall := p.index
	Call(p, 0x2000)

	want := encodeMovReg(RDI, RBX)
	if !bytes.Equal(p.mem[beforeSecondCall:beforeSecondCall+3], want) {
		t.Fatal("a second Call should restore arg0 by default once setargs was cleared")
	}
}

func TestPrologueEpilogueRoundTrip(t *testing.T) {
	p := newTestPage(t)
	if !Start(p) {
		t.Fatal("Start failed")
	}
	if !bytes.Equal(p.mem[:len(prologueBytes)], prologueBytes) {
		t.Fatal("Start didn't write the expected prologue bytes")
	}
	if !chunkHasPrologue(p, 0) {
		t.Fatal("chunkHasPrologue should recognize a chunk Start just opened")
	}
	before := p.index
	if !Finish(p) {
		t.Fatal("Finish failed")
	}
	if !bytes.Equal(p.mem[before:p.index], epilogueBytes) {
		t.Fatal("Finish didn't write the expected epilogue bytes")
	}
}

func TestSpliceRejectsChunkWithoutPrologue(t *testing.T) {
	p := newTestPage(t)
	p.Append([]byte{0x90, 0x90}) // arbitrary bytes, not a valid prologue
	defer func() {
		if recover() == nil {
			t.Fatal("Splice should panic when the target wasn't opened with Start")
		}
	}()
	var e Engine
	Splice(&e, p, nil, 0, p.base())
}
