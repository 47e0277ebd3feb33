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
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
)

// hostImageGuard is the fixed offset past the rounded-up host image end
// that address placement starts from, chosen to stay clear of a
// program-break-grown heap.
const hostImageGuard = 1 << 20 // 1MiB

// imageEndSentinel's address stands in for "end of our own image" when no
// more precise locator has been injected. Go doesn't expose an _end/etext
// linker symbol the way the C toolchain does, so this is a heuristic: a
// package-level variable, which the linker places after most of the
// binary's static data. Production embedders and tests are expected to
// call SetHostImageEndLocator with something sharper for their platform.
var imageEndSentinel byte

func defaultLocateHostImageEnd() uintptr {
	return uintptr(unsafe.Pointer(&imageEndSentinel))
}

// Engine is the process-wide (or per-instance) state of the JIT threader:
// a mutex guarding the page pool and placement hint, a one-way disabled
// latch, and the set of pages this engine owns.
type Engine struct {
	mu    sync.Mutex
	pages pageList
	hint  uintptr
	index *PageIndex

	disabled atomic.Bool

	// ID is a random per-instance identifier set by Init, for telling
	// several engines in one process apart. The package's log lines and
	// the jitdash stats feed do not include it.
	ID uuid.UUID

	locateHostImageEnd func() uintptr

	warnDistanceOnce sync.Once
	warnTooSmallOnce sync.Once

	stats engineStats
}

type engineStats struct {
	pagesMapped     atomic.Int64
	bytesCommitted  atomic.Int64
	hooksPublished  atomic.Int64
	chunksReleased  atomic.Int64
}

// Init prepares a freshly zero-valued Engine for use. Calling it again on
// the same Engine without an intervening Destroy re-seeds the ID and
// locator and also resets the pool, the page index and the placement
// hint: the pages the engine held are forgotten without being unmapped.
func Init(e *Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pages = pageList{}
	e.hint = 0
	e.index = newPageIndex()
	e.disabled.Store(false)
	e.ID = uuid.New()
	e.locateHostImageEnd = defaultLocateHostImageEnd
	e.warnDistanceOnce = sync.Once{}
	e.warnTooSmallOnce = sync.Once{}
	if !archSupported {
		e.disabled.Store(true)
	}
}

// SetHostImageEndLocator overrides how the engine finds the end of the
// host image for address-space placement. Must be called before the first
// Acquire. It lets a caller inject a stub instead of depending on the
// real (heuristic) default.
func (e *Engine) SetHostImageEndLocator(fn func() uintptr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locateHostImageEnd = fn
}

// Destroy frees every page in the engine's pool and unmaps their regions.
// A page outside the pool at that moment — one still held by a writer, or
// one Release dropped because its first chunk overflowed — is not
// unmapped. Calling it on an uninitialized Engine is undefined, as is
// using the Engine afterward.
func Destroy(e *Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for p := e.pages.first(); p != nil; {
		next := pageNext(p)
		e.destroyPageLocked(p)
		p = next
	}
	e.pages = pageList{}
}

func (e *Engine) destroyPageLocked(p *PageBuffer) {
	for s := p.staged.removeFront(); s != nil; s = p.staged.removeFront() {
		_ = s // staged hooks are simply dropped; nothing reads them after Destroy
	}
	e.index.remove(p)
	if err := munmapRaw(p.mem); err != nil {
		logf("munmap() error for page at %#x: %v", p.base(), err)
	}
}

// Disable is a one-way latch: once set, no new pages are created and
// every further Acquire fails fast. Used when the kernel refuses a usable
// mapping.
func (e *Engine) Disable() {
	e.disabled.Store(true)
}

// IsDisabled reports whether Disable was called, Init ran on an
// unsupported architecture, or a prior Acquire failed to map memory.
func (e *Engine) IsDisabled() bool {
	return e.disabled.Load()
}

// Acquire hands the calling goroutine exclusive ownership of a page with
// at least reserve bytes of room, removing it from the pool. The returned
// page must eventually be handed back via Release, Abandon, or Splice.
func (e *Engine) Acquire(reserve int) (*PageBuffer, bool) {
	assert(reserve > 0, "Acquire: reserve must be positive")
	assert(reserve <= kJitPageSize-pageHeaderOverhead, "Acquire: reserve too large for one page")

	if !archSupported {
		return nil, false
	}

	e.mu.Lock()
	if e.disabled.Load() {
		e.mu.Unlock()
		return nil, false
	}
	if head := e.pages.front(); head != nil && head.index+reserve <= kJitPageSize {
		e.pages.remove(head)
		e.mu.Unlock()
		assert(head.start == head.index, "Acquire: reused page not quiescent")
		return head, true
	}
	hint := e.nextHintLocked()
	e.mu.Unlock()

	p, ok := e.mapNewPage(hint)
	if !ok {
		e.Disable()
		return nil, false
	}
	assert(p.start == p.index, "Acquire: freshly mapped page not quiescent")
	return p, true
}

// nextHintLocked returns the next candidate mapping address, advancing
// the hint by one page so the next caller (whether this Acquire succeeds
// or not) doesn't collide with it. Must be called with e.mu held.
func (e *Engine) nextHintLocked() uintptr {
	if e.hint == 0 {
		end := e.locateHostImageEnd()
		e.hint = roundUp(end, kJitPageSize) + hostImageGuard
	}
	h := e.hint
	e.hint += kJitPageSize
	return h
}

// mapNewPage maps a fresh region starting at hint, retrying at
// successive page-sized strides on collision. Runs with no lock held:
// mapping is a syscall and must never block other goroutines' Acquire.
func (e *Engine) mapNewPage(hint uintptr) (*PageBuffer, bool) {
	imageEnd := e.locateHostImageEnd()
	for {
		mem, err := mmapHint(hint, kJitPageSize)
		if err == nil {
			p := &PageBuffer{mem: mem}
			e.noteDistance(p.base(), imageEnd)
			e.mu.Lock()
			e.index.insert(p)
			e.mu.Unlock()
			e.stats.pagesMapped.Add(1)
			return p, true
		}
		if hintIsDemand && isEEXIST(err) {
			hint += kJitPageSize
			continue
		}
		logf("mmap() error at %#x: %v", hint, err)
		return nil, false
	}
}

func (e *Engine) noteDistance(base, imageEnd uintptr) {
	distance := base - imageEnd
	if int64(distance) < 0 {
		distance = imageEnd - base
	}
	if int64(distance) > maxBranchDisplacement/2 {
		e.warnDistanceOnce.Do(func() {
			logf("mmap() returned address %#x that's %s away from the host image ending near %#x; "+
				"calls between emitted code and host functions may need the indirect-through-register form",
				base, humanBytes(int(distance)), imageEnd)
		})
	}
}

// FindPage returns the page whose mapped region contains addr, if any.
// Purely diagnostic: nothing on the Acquire/Release path depends on it.
func (e *Engine) FindPage(addr uintptr) (*PageBuffer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.find(addr)
}

// Stats is a point-in-time snapshot of engine counters, exposed for the
// dashboard and for tests.
type Stats struct {
	PagesMapped    int64
	BytesCommitted int64
	HooksPublished int64
	ChunksReleased int64
	Disabled       bool
}

func (e *Engine) Stats() Stats {
	return Stats{
		PagesMapped:    e.stats.pagesMapped.Load(),
		BytesCommitted: e.stats.bytesCommitted.Load(),
		HooksPublished: e.stats.hooksPublished.Load(),
		ChunksReleased: e.stats.chunksReleased.Load(),
		Disabled:       e.IsDisabled(),
	}
}
