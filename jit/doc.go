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

// Package jit assembles short machine-code stubs that chain together
// existing, statically-compiled functions, and installs their addresses
// into caller-owned "hooks" observed by other threads.
//
// The point is to avoid the dispatch overhead of an interpreter loop:
// instead of looping over opcodes and indirectly calling a handler for
// each one, a straight-line sequence of calls is emitted once, and the
// interpreter jumps straight into it from then on.
//
// Only amd64 and arm64 are implemented. Everywhere else every exported
// function degrades to a permanently-disabled no-op (see encoder_disabled.go).
package jit
