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
/*
	jitrepl drives the threading engine one instruction at a time, for
	poking at a live page without writing a Go program around it.
*/
package main

import "io"
import "fmt"
import "strconv"
import "strings"
import "github.com/chzyer/readline"
import "github.com/launix-de/threadjit/jit"

const newprompt = "\033[32mjit>\033[0m "
const resultprompt = "\033[31m=\033[0m "

type session struct {
	engine *jit.Engine
	page   *jit.PageBuffer
	hook   *jit.Hook
}

func main() {
	engine := &jit.Engine{}
	jit.Init(engine)
	defer jit.Destroy(engine)

	s := &session{engine: engine}

	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".jitrepl-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.dispatch(line)
	}
}

func (s *session) dispatch(line string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Println("panic:", r)
		}
	}()
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "acquire":
		reserve := 4096
		if len(args) > 0 {
			reserve, _ = strconv.Atoi(args[0])
		}
		p, ok := s.engine.Acquire(reserve)
		if !ok {
			fmt.Println(resultprompt, "acquire failed (engine disabled?)")
			return
		}
		s.page = p
		fmt.Printf("%s acquired page at %#x, %d bytes free\n", resultprompt, p.Base(), p.GetRemaining())
	case "start":
		s.requirePage()
		jit.Start(s.page)
		fmt.Println(resultprompt, "wrote prologue")
	case "setarg":
		s.requirePage()
		if len(args) != 2 {
			fmt.Println(resultprompt, "usage: setarg <index> <hex value>")
			return
		}
		n, _ := strconv.Atoi(args[0])
		v, _ := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 64)
		if !jit.SetArg(s.page, n, uintptr(v)) {
			fmt.Println(resultprompt, "no such argument register on this platform")
			return
		}
		fmt.Println(resultprompt, "ok")
	case "call":
		s.requirePage()
		v, _ := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
		jit.Call(s.page, uintptr(v))
		fmt.Println(resultprompt, "ok")
	case "finish":
		s.requirePage()
		jit.Finish(s.page)
		fmt.Println(resultprompt, "wrote epilogue")
	case "splice":
		s.requirePage()
		if len(args) < 1 {
			fmt.Println(resultprompt, "usage: splice <target chunk hex addr> [fallback hex]")
			return
		}
		target, _ := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
		var fallback uint64
		if len(args) > 1 {
			fallback, _ = strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 64)
		}
		h := &jit.Hook{}
		jit.Splice(s.engine, s.page, h, uintptr(fallback), uintptr(target))
		s.hook = h
		s.page = nil
		fmt.Println(resultprompt, "spliced; hook reads", fmt.Sprintf("%#x", h.Read()))
	case "release":
		s.requirePage()
		var fallback uint64
		if len(args) > 0 {
			fallback, _ = strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
		}
		h := &jit.Hook{}
		s.engine.Release(s.page, h, uintptr(fallback))
		s.hook = h
		s.page = nil
		fmt.Println(resultprompt, "released; hook reads", fmt.Sprintf("%#x", h.Read()))
	case "abandon":
		s.requirePage()
		s.engine.Abandon(s.page)
		s.page = nil
		fmt.Println(resultprompt, "abandoned")
	case "flush":
		s.engine.Flush()
		fmt.Println(resultprompt, "flushed")
	case "hook":
		if s.hook == nil {
			fmt.Println(resultprompt, "no outstanding hook")
			return
		}
		fmt.Printf("%s %#x\n", resultprompt, s.hook.Read())
	case "stats":
		st := s.engine.Stats()
		fmt.Printf("%s pages=%d committed=%d hooks=%d chunks=%d disabled=%v\n",
			resultprompt, st.PagesMapped, st.BytesCommitted, st.HooksPublished, st.ChunksReleased, st.Disabled)
	case "help":
		fmt.Println("acquire [n] | start | setarg <i> <hex> | call <hex> | finish | release [fallback] | splice <chunk> [fallback] | abandon | flush | hook | stats")
	default:
		fmt.Println(resultprompt, "unknown command:", cmd)
	}
}

func (s *session) requirePage() {
	if s.page == nil {
		panic("no page acquired; run \"acquire\" first")
	}
}
