//go:build jitdebug

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

import "github.com/jtolds/gls"

// ownerMgr tags the goroutine that currently holds a page with the page's
// own pointer, via goroutine-local storage. Built only under jitdebug:
// gls walks the goroutine's call stack on every lookup, which is too
// costly to carry into a release build.
var ownerMgr = gls.NewContextManager()

const ownerKey = "jit-page-owner"

// withOwner runs fn with p tagged as owned by the calling goroutine, so
// any Append/Release/Commit call fn makes downstream can assert it's
// still on the same goroutine that Acquired p.
func withOwner(p *PageBuffer, fn func()) {
	ownerMgr.SetValues(gls.Values{ownerKey: p}, fn)
}

// checkOwner panics if the calling goroutine isn't the one that Acquired
// p, catching the invariant-5 violation of a page touched by two
// goroutines at once before it corrupts memory silently.
func checkOwner(p *PageBuffer) {
	v, ok := ownerMgr.GetValue(ownerKey)
	assert(ok, "checkOwner: called outside withOwner")
	assert(v.(*PageBuffer) == p, "checkOwner: page touched by a goroutine that didn't Acquire it")
}
