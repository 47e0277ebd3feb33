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
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	if !archSupported {
		t.Skip("JIT threading is disabled on this architecture")
	}
	e := &Engine{}
	Init(e)
	t.Cleanup(func() { Destroy(e) })
	return e
}

func TestEngineAcquireMapsAPage(t *testing.T) {
	e := newTestEngine(t)
	p, ok := e.Acquire(64)
	if !ok {
		t.Fatal("Acquire failed")
	}
	if p == nil {
		t.Fatal("Acquire returned a nil page on success")
	}
	if p.GetRemaining() != kJitPageSize {
		t.Fatalf("GetRemaining = %d on a freshly mapped page, want %d", p.GetRemaining(), kJitPageSize)
	}
	e.Release(p, nil, 0)
}

func TestEngineAcquireReusesPooledPage(t *testing.T) {
	e := newTestEngine(t)
	p1, ok := e.Acquire(64)
	if !ok {
		t.Fatal("first Acquire failed")
	}
	Start(p1)
	e.Release(p1, nil, 0)

	before := e.stats.pagesMapped.Load()
	p2, ok := e.Acquire(64)
	if !ok {
		t.Fatal("second Acquire failed")
	}
	if p2 != p1 {
		t.Fatal("second Acquire should have reused the pooled page, not mapped a new one")
	}
	if got := e.stats.pagesMapped.Load(); got != before {
		t.Fatalf("pagesMapped grew from %d to %d; reuse shouldn't map anything new", before, got)
	}
	e.Release(p2, nil, 0)
}

func TestEngineAcquireDistinctPagesDontOverlap(t *testing.T) {
	e := newTestEngine(t)
	p1, ok := e.Acquire(64)
	if !ok {
		t.Fatal("first Acquire failed")
	}
	p2, ok := e.Acquire(64)
	if !ok {
		t.Fatal("second Acquire failed")
	}
	if p1 == p2 {
		t.Fatal("two outstanding Acquire calls returned the same page")
	}
	b1, b2 := p1.base(), p2.base()
	if b1 < b2 && b1+kJitPageSize > b2 {
		t.Fatal("pages overlap")
	}
	if b2 < b1 && b2+kJitPageSize > b1 {
		t.Fatal("pages overlap")
	}
	e.Release(p1, nil, 0)
	e.Release(p2, nil, 0)
}

func TestEngineDisableRejectsFurtherAcquire(t *testing.T) {
	e := newTestEngine(t)
	e.Disable()
	if !e.IsDisabled() {
		t.Fatal("IsDisabled should report true right after Disable")
	}
	if _, ok := e.Acquire(64); ok {
		t.Fatal("Acquire should fail once the engine is disabled")
	}
}

func TestEngineFindPage(t *testing.T) {
	e := newTestEngine(t)
	p, ok := e.Acquire(64)
	if !ok {
		t.Fatal("Acquire failed")
	}
	found, ok := e.FindPage(p.base() + 10)
	if !ok || found != p {
		t.Fatalf("FindPage(base+10) = %v,%v, want p,true", found, ok)
	}
	if _, ok := e.FindPage(p.base() - 1); ok {
		t.Fatal("FindPage should miss just before the page's base")
	}
	e.Release(p, nil, 0)
}

func TestEngineAcquireConcurrentIsRaceFree(t *testing.T) {
	e := newTestEngine(t)
	const n = 32
	var wg sync.WaitGroup
	pages := make([]*PageBuffer, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, ok := e.Acquire(64)
			if !ok {
				t.Errorf("Acquire %d failed", i)
				return
			}
			pages[i] = p
		}(i)
	}
	wg.Wait()

	seen := make(map[*PageBuffer]bool, n)
	for i, p := range pages {
		if p == nil {
			continue
		}
		if seen[p] {
			t.Fatalf("page %d was handed out twice", i)
		}
		seen[p] = true
	}
	for _, p := range pages {
		if p != nil {
			e.Release(p, nil, 0)
		}
	}
}
