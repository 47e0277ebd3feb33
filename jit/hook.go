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

import "sync/atomic"

// Hook is a caller-owned, pointer-sized cell naming a callable entry
// point. The engine only ever writes to it with a release store; readers
// must use an acquire load before jumping through the value. Go's
// sync/atomic operations are specified as sequentially consistent, which
// is strictly stronger than the release/acquire pairing this needs, so
// atomic.Uintptr satisfies the contract directly.
type Hook struct {
	addr atomic.Uintptr
}

// Publish stores addr into the hook with release ordering.
func (h *Hook) Publish(addr uintptr) {
	h.addr.Store(addr)
}

// Read loads the hook's current value with acquire ordering. Before
// dereferencing the result, the caller is relying on Publish having
// happened-after the mprotect that made those bytes executable —
// guaranteed by Commit, never by Hook itself.
func (h *Hook) Read() uintptr {
	return h.addr.Load()
}

// Staging is a deferred hook installation, created on Release when a hook
// is supplied and consumed by the Commit that first covers its bytes.
type Staging struct {
	start, end int // byte range within the owning page
	hook       *Hook
	node       stagingNode
}
