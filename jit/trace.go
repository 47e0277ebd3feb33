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
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// PageTrace is one page's forensic summary: its committed prefix, its
// write cursor, and the chunks still staged when DumpTrace ran. Chunks
// whose hooks were already published are no longer staged and so don't
// appear.
type PageTrace struct {
	Base       uintptr
	Committed  int
	WriteIndex int
	Staged     []StagingTrace
}

// StagingTrace mirrors one Staging record.
type StagingTrace struct {
	Start, End int
	Published  bool
}

// DumpTrace serializes every page the engine owns into a compact,
// lz4-compressed report, useful for attaching to a bug report about a
// hung or misrouted hook without shipping a raw core dump.
func (e *Engine) DumpTrace(w io.Writer) error {
	e.mu.Lock()
	pages := e.index.all()
	e.mu.Unlock()

	traces := make([]PageTrace, 0, len(pages))
	for _, p := range pages {
		traces = append(traces, tracePage(p))
	}

	var raw bytes.Buffer
	for _, t := range traces {
		fmt.Fprintf(&raw, "page %#x committed=%d index=%d\n", t.Base, t.Committed, t.WriteIndex)
		for _, s := range t.Staged {
			fmt.Fprintf(&raw, "  staged [%d,%d) published=%v\n", s.Start, s.End, s.Published)
		}
	}

	zw := lz4.NewWriter(w)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return err
	}
	return zw.Close()
}

func tracePage(p *PageBuffer) PageTrace {
	t := PageTrace{Base: p.base(), Committed: p.committed, WriteIndex: p.index}
	for s := p.staged.first(); s != nil; s = s.node.next {
		t.Staged = append(t.Staged, StagingTrace{Start: s.start, End: s.end, Published: s.end <= p.committed})
	}
	return t
}
