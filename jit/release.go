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

import "os"

// Release hands a page back to the engine, optionally attaching hook to
// the chunk just written so it gets a published entry point once the
// page is made executable. When hook is non-nil and the chunk fit (case
// 4) or overflowed a fresh page (case 2), stagingValue is published to it
// synchronously, so the hook is never observably zero while the real
// chunk address — staged and published only once Commit covers it — is
// still pending; callers typically pass the address of an interpreter
// fallback for this. Release calls Commit, which only makes whole OS
// pages below the new chunk boundary executable: a chunk that ends inside
// an OS page stays pending until later chunks cross that page's end or
// Flush forces it, so a hot loop of small emitted chunks doesn't pay one
// mprotect() per chunk.
//
// p can be in one of four states, each handled distinctly:
//
//  1. nothing was appended at all (index == start): reinsert by the
//     usual room-based placement, no Staging entry since there's no
//     chunk to publish.
//  2. the chunk overflowed a page that had never held an earlier chunk
//     (the sticky kJitPageSize+1 marker with start == 0): no chunk fits
//     on a fresh page of this size. Publish stagingValue as the only
//     outcome and drop the page — it can never host anything and is not
//     returned to the pool.
//  3. the chunk overflowed a page that already held earlier, still-valid
//     chunks (the marker with start > 0): rewind to the last good
//     boundary and return the page to the pool untouched, as if this
//     Release had never been asked to do anything; the caller is
//     expected to retry the overflowing chunk on a fresh page.
//  4. the chunk fit: align the cursor up to kJitPageAlign, publish
//     stagingValue, stage the real address for the eventual Commit, mark
//     the page full if less than kJitPageFit bytes remain, and reinsert
//     by room — front if at least kJitPageFit bytes remain, back
//     otherwise.
func (e *Engine) Release(p *PageBuffer, hook *Hook, stagingValue uintptr) {
	if p.index > kJitPageSize {
		if p.start == 0 {
			e.warnTooSmallOnce.Do(func() {
				logf("chunk did not fit in a fresh %s page; increase kJitPageSize", humanBytes(kJitPageSize))
			})
			if hook != nil {
				hook.Publish(stagingValue)
			}
			return
		}
		p.index = p.start
		e.reinsertLocked(p)
		return
	}

	assert(p.index >= p.start, "Release: index went backwards")

	if p.index == p.start {
		assert(hook == nil, "Release: hook given for an empty chunk")
		e.reinsertLocked(p)
		return
	}

	p.index = int(roundUp(uintptr(p.index), kJitPageAlign))
	if hook != nil {
		hook.Publish(stagingValue)
	}
	p.staged.pushBack(&Staging{start: p.start, end: p.index, hook: hook})
	if p.GetRemaining() < kJitPageFit {
		p.index = kJitPageSize
	}
	p.start = p.index

	e.Commit(p)
	e.reinsertLocked(p)
}

// reinsertLocked returns p to the pool, front if it still has plenty of
// room and back otherwise, taking the engine lock itself.
func (e *Engine) reinsertLocked(p *PageBuffer) {
	e.mu.Lock()
	if p.GetRemaining() >= kJitPageFit {
		e.pages.pushFront(p)
	} else {
		e.pages.pushBack(p)
	}
	e.mu.Unlock()
}

// Abandon discards everything written since the page was acquired,
// without publishing a hook or committing anything, and returns the page
// to the pool exactly as Release would for an empty chunk.
func (e *Engine) Abandon(p *PageBuffer) {
	p.index = p.start
	e.Release(p, nil, 0)
}

// Commit makes every whole OS page below p.start executable and publishes
// every hook staged against bytes that are now covered, in the order they
// were staged. Bytes past the last OS-page boundary below p.start stay
// writable, so the page can keep taking chunks. Safe to call on a page
// nobody currently holds; Acquire excludes p from the pool for as long as
// a writer owns it, so Commit never races an in-progress Append. An
// mprotect() failure panics, since the page's W^X state can't be trusted
// afterwards.
func (e *Engine) Commit(p *PageBuffer) {
	target := int(roundDown(uintptr(p.start), uintptr(os.Getpagesize())))
	if target > kJitPageSize {
		target = kJitPageSize
	}
	if target <= p.committed {
		e.publishStaged(p)
		return
	}
	err := mprotectRX(p.mem[p.committed:target])
	if err != nil {
		logf("mprotect() error for page at %#x: %v", p.base(), err)
	}
	assert(err == nil, "Commit: mprotect() failed")
	e.stats.bytesCommitted.Add(int64(target - p.committed))
	p.committed = target
	e.publishStaged(p)
}

// publishStaged walks p's staged chunks in FIFO order and publishes the
// hook of every one fully covered by p.committed, stopping at the first
// chunk that isn't — staged order always matches write order, so a gap
// can't appear in the middle of the committed prefix.
func (e *Engine) publishStaged(p *PageBuffer) {
	for {
		s := p.staged.first()
		if s == nil || s.end > p.committed {
			return
		}
		p.staged.removeFront()
		if s.hook != nil {
			s.hook.Publish(p.base() + uintptr(s.start))
			e.stats.hooksPublished.Add(1)
		}
		e.stats.chunksReleased.Add(1)
	}
}

// Flush forces every pooled page with staged chunks to become executable
// up to the OS-page boundary at or past its last staged chunk's end
// (clamped to kJitPageSize) and publishes their staged hooks; each such
// page is taken out of the pool while this happens and put back
// afterwards. Flush then raises the placement hint to the end of the
// highest pooled page, rounded up to kJitPageSize, when that is above the
// current hint; it never lowers the hint.
func (e *Engine) Flush() {
	e.mu.Lock()
	pending := make([]*PageBuffer, 0)
	for p := e.pages.first(); p != nil; {
		next := pageNext(p)
		if !p.staged.empty() {
			e.pages.remove(p)
			pending = append(pending, p)
		}
		p = next
	}
	e.mu.Unlock()

	for _, p := range pending {
		end := int(roundUp(uintptr(p.staged.last().end), uintptr(os.Getpagesize())))
		if end > kJitPageSize {
			end = kJitPageSize
		}
		if end > p.start {
			p.start, p.index = end, end
		}
		e.Commit(p)
		e.reinsertLocked(p)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	highest := e.hint
	for p := e.pages.first(); p != nil; p = pageNext(p) {
		end := p.base() + kJitPageSize
		if end > highest {
			highest = roundUp(end, kJitPageSize)
		}
	}
	e.hint = highest
}
