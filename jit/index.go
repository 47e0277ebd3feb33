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

import "github.com/google/btree"

// pageItem is the btree.Item stored in PageIndex: pages ordered by base
// address so a faulting or inspected PC can be mapped back to its owning
// PageBuffer in O(log n).
type pageItem struct {
	base uintptr
	page *PageBuffer
}

func (a pageItem) Less(than btree.Item) bool {
	return a.base < than.(pageItem).base
}

// PageIndex is an address-ordered index over every page a Engine has ever
// mapped (whether currently pooled, held by a writer, or full). It exists
// purely for diagnostics — nothing on the Acquire/Release hot path
// consults it — so operators and tests can resolve "which page owns this
// address" without walking the pool list.
type PageIndex struct {
	tree *btree.BTree
}

func newPageIndex() *PageIndex {
	return &PageIndex{tree: btree.New(8)}
}

func (idx *PageIndex) insert(p *PageBuffer) {
	idx.tree.ReplaceOrInsert(pageItem{base: p.base(), page: p})
}

func (idx *PageIndex) remove(p *PageBuffer) {
	idx.tree.Delete(pageItem{base: p.base()})
}

// find returns the page whose mapped region contains addr, if any.
func (idx *PageIndex) find(addr uintptr) (*PageBuffer, bool) {
	var found *PageBuffer
	idx.tree.DescendLessOrEqual(pageItem{base: addr}, func(item btree.Item) bool {
		candidate := item.(pageItem)
		if addr < candidate.base+kJitPageSize {
			found = candidate.page
		}
		return false // only the first (highest base <= addr) matters
	})
	return found, found != nil
}

// Len reports how many pages are currently indexed.
func (idx *PageIndex) Len() int {
	return idx.tree.Len()
}

// all returns every indexed page in ascending address order, regardless
// of whether it's currently pooled, held by a writer, or full.
func (idx *PageIndex) all() []*PageBuffer {
	out := make([]*PageBuffer, 0, idx.tree.Len())
	idx.tree.Ascend(func(item btree.Item) bool {
		out = append(out, item.(pageItem).page)
		return true
	})
	return out
}
