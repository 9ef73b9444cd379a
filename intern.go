// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nin

import "path"

// PathKey is an opaque index into a pathInterner. Two byte sequences that
// are lexically equal after canonicalization produce the same key.
type PathKey int32

// pathInterner is the process-wide (really: build-session-wide) path
// table. It is append-only once parsing has started handing out keys to
// the Graph, so after parsing ends it can be shared read-only across
// scheduler workers without locking, per the concurrency & resource
// model.
type pathInterner struct {
	index map[string]PathKey
	paths []string
}

func newPathInterner() *pathInterner {
	return &pathInterner{index: map[string]PathKey{}}
}

// Intern canonicalizes raw and returns its key, minting a new one the
// first time a given canonical path is seen.
func (p *pathInterner) Intern(raw string) PathKey {
	c := CanonicalizePath(raw)
	if k, ok := p.index[c]; ok {
		return k
	}
	k := PathKey(len(p.paths))
	p.paths = append(p.paths, c)
	p.index[c] = k
	return k
}

// Lookup canonicalizes raw and returns its key, if interned.
func (p *pathInterner) Lookup(raw string) (PathKey, bool) {
	k, ok := p.index[CanonicalizePath(raw)]
	return k, ok
}

// Path returns the canonical path string a key was interned from.
func (p *pathInterner) Path(k PathKey) string { return p.paths[k] }

func (p *pathInterner) len() int { return len(p.paths) }

// Paths returns every canonical path interned so far, for diagnostics
// (e.g. spelling suggestions on an unknown target) rather than for any
// part of the build itself.
func (p *pathInterner) Paths() []string {
	out := make([]string, len(p.paths))
	copy(out, p.paths)
	return out
}

// CanonicalizePath collapses "./" segments, resolves internal ".."
// lexically, and drops a trailing slash, matching the teacher's
// hand-rolled CanonicalizePath. Go's standard library already implements
// exactly this lexical (not filesystem-touching) normalization as
// path.Clean, so that's what we use here rather than re-deriving the
// component-stack algorithm by hand: see DESIGN.md for why this is the
// one spot that reaches for the standard library over a third-party
// dependency.
func CanonicalizePath(p string) string {
	if p == "" {
		return p
	}
	c := path.Clean(p)
	if c == "." {
		return "."
	}
	return c
}
