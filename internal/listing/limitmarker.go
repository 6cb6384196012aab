// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package listing implements the gateway's pagination primitives: a
// single-vnode Limit-Marker Stream that transparently re-issues listing
// RPCs when a page is exhausted, and a Merge-Paginator that performs a
// k-way merge across many such streams with prefix/delimiter grouping
// (§4.4, §4.5).
package listing

import (
	"context"
	"fmt"
)

// Record is one listing entry as returned by a single vnode's metadata RPC.
type Record struct {
	Name string
	Data interface{}
}

// OpenPageFunc issues one listing RPC page against a single vnode.
type OpenPageFunc func(ctx context.Context, marker string, limit int) ([]Record, error)

// state is the Limit-Marker Stream's state machine (§4.4): Idle transitions
// to Fetching on the first Next call, then to Reading while the buffer is
// drained, then to Exhausted (page was not full) at the page boundary; a
// full page leaves the stream in Reading, and draining it triggers the
// next fetch.
type state int

const (
	stateIdle state = iota
	stateFetching
	stateReading
	stateExhausted
)

// Stream is a single-vnode paginated iterator (§4.4).
type Stream struct {
	open  OpenPageFunc
	limit int

	st     state
	marker string
	buf    []Record
	idx    int

	pending   *Record
	lastKey   string
	hasLastKey bool
}

// New wraps open as a Limit-Marker Stream starting at marker with page size limit.
func New(open OpenPageFunc, marker string, limit int) *Stream {
	return &Stream{open: open, limit: limit, marker: marker, st: stateIdle}
}

// Next returns the next record in key order, or done=true once the
// underlying source is exhausted (§4.4).
func (s *Stream) Next(ctx context.Context) (Record, bool, error) {
	if s.pending != nil {
		r := *s.pending
		s.pending = nil
		s.recordEmitted(r)
		return r, false, nil
	}

	for s.idx >= len(s.buf) {
		if s.st == stateExhausted {
			return Record{}, true, nil
		}
		if err := s.fetch(ctx); err != nil {
			return Record{}, false, err
		}
	}

	r := s.buf[s.idx]
	s.idx++
	s.recordEmitted(r)
	return r, false, nil
}

func (s *Stream) recordEmitted(r Record) {
	s.lastKey = r.Name
	s.hasLastKey = true
}

// fetch issues the next page and updates the state machine.
func (s *Stream) fetch(ctx context.Context) error {
	s.st = stateFetching
	page, err := s.open(ctx, s.marker, s.limit)
	if err != nil {
		return fmt.Errorf("listing: openPage(marker=%q): %w", s.marker, err)
	}
	s.buf = page
	s.idx = 0
	if len(page) > 0 {
		s.marker = page[len(page)-1].Name
	}
	if len(page) < s.limit {
		s.st = stateExhausted
	} else {
		s.st = stateReading
	}
	return nil
}

// Done reports whether the stream has no more records to emit: the
// underlying source reported end and the last page fetched was not full,
// and there is no buffered or pending record left.
func (s *Stream) Done() bool {
	return s.pending == nil && s.idx >= len(s.buf) && s.st == stateExhausted
}

// AdvanceTo discards records until one with key >= newMarker appears,
// buffering it as pending. It is an error to advance to a marker less than
// the stream's current position; advancing to a marker at or behind the
// pending record is idempotent (§9 open question resolution).
//
// Discarding walks the stream forward one record at a time through the
// normal page-continuation machinery rather than jumping the underlying
// marker directly to newMarker, because openPage's marker is exclusive
// (it returns records strictly after it): jumping straight to newMarker
// would silently skip a stored record whose name equals newMarker.
func (s *Stream) AdvanceTo(ctx context.Context, newMarker string) error {
	if s.hasLastKey && newMarker < s.lastKey {
		return fmt.Errorf("listing: AdvanceTo(%q) is behind current position %q", newMarker, s.lastKey)
	}
	if s.pending != nil {
		if s.pending.Name >= newMarker {
			return nil // already idempotent: pending record already satisfies the target
		}
		s.pending = nil
	}

	for {
		rec, done, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if rec.Name >= newMarker {
			s.pending = &rec
			return nil
		}
	}
}
