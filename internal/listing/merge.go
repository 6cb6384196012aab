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

package listing

import (
	"container/heap"
	"context"
	"errors"
	"strings"
)

// EntryType distinguishes a plain listing entry from a synthetic,
// delimiter-folded group entry (§4.5 step 4).
type EntryType int

const (
	EntryRecord EntryType = iota
	EntryGroup
)

// Entry is one emitted listing result: either a record or a group.
type Entry struct {
	Type       EntryType
	Name       string
	Data       interface{} // set when Type == EntryRecord
	NextMarker string      // set when Type == EntryGroup
}

// Options configures a merge (§4.5).
type Options struct {
	Prefix    string
	Delimiter byte // 0 means "no delimiter configured"
	HasDelimiter bool
	Limit     int
}

// Result is the outcome of a full merge pass (§4.5 step 6).
type Result struct {
	Entries  []Entry
	Finished bool
	// NextMarker is set to the name of the last emitted entry when the
	// merge stopped early due to the global limit (§6 list response headers).
	NextMarker string
}

type vnodeStream struct {
	key    string
	stream *Stream
	head   *Record
	done   bool
	err    error
}

// mergeHeap holds the live streams, ordered for container/heap by their
// current head's name ascending with the stream key as a deterministic
// tiebreaker.
type mergeHeap []*vnodeStream

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].head.Name != h[j].head.Name {
		return h[i].head.Name < h[j].head.Name
	}
	return h[i].key < h[j].key
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*vnodeStream)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge performs a k-way merge of the given Limit-Marker Streams, keyed by
// an identifier of each stream's source (the pipeline uses one per pnode), applying prefix/delimiter grouping and a global limit
// (§4.5). Errors from any stream are collected; if the error set is
// non-empty after the merge completes or is abandoned, Merge returns a
// combined error and no terminal "finished" semantics apply.
func Merge(ctx context.Context, streams map[string]*Stream, opts Options) (Result, error) {
	vnodes := make([]*vnodeStream, 0, len(streams))
	for key, s := range streams {
		vnodes = append(vnodes, &vnodeStream{key: key, stream: s})
	}

	var errs []error
	fill := func(vs *vnodeStream) {
		if vs.done || vs.err != nil {
			return
		}
		rec, done, err := vs.stream.Next(ctx)
		if err != nil {
			vs.err = err
			errs = append(errs, err)
			return
		}
		if done {
			vs.done = true
			return
		}
		vs.head = &Record{Name: rec.Name, Data: rec.Data}
	}

	h := &mergeHeap{}
	for _, vs := range vnodes {
		fill(vs)
		if vs.head != nil {
			heap.Push(h, vs)
		}
	}

	var result Result
	var lastGroupName string
	haveLastGroup := false

	for h.Len() > 0 {
		if len(errs) > 0 {
			break
		}
		if opts.Limit > 0 && len(result.Entries) >= opts.Limit {
			break
		}

		top := heap.Pop(h).(*vnodeStream)
		rec := *top.head
		top.head = nil

		if opts.HasDelimiter {
			stripped := rec.Name
			if opts.Prefix != "" && strings.HasPrefix(stripped, opts.Prefix) {
				stripped = stripped[len(opts.Prefix):]
			}
			if idx := strings.IndexByte(stripped, opts.Delimiter); idx >= 0 {
				before := stripped[:idx]
				groupName := opts.Prefix + before + string(opts.Delimiter)
				nextMarker := opts.Prefix + before + string(opts.Delimiter+1)

				if !(haveLastGroup && lastGroupName == groupName) {
					result.Entries = append(result.Entries, Entry{
						Type:       EntryGroup,
						Name:       groupName,
						NextMarker: nextMarker,
					})
					lastGroupName = groupName
					haveLastGroup = true
				}

				// Advance only the streams still positioned inside the group
				// (this one's owner, whose head was already popped above, and
				// any other stream whose buffered head falls before
				// nextMarker) past it so duplicates aren't re-emitted. A
				// stream whose head already lies at or past nextMarker is
				// left untouched: it isn't part of this group and calling
				// AdvanceTo on it would wrongly discard its buffered head.
				for _, vs := range vnodes {
					if vs.done || vs.err != nil {
						continue
					}
					if vs.head != nil && vs.head.Name >= nextMarker {
						continue
					}
					vs.head = nil
					if err := vs.stream.AdvanceTo(ctx, nextMarker); err != nil {
						vs.err = err
						errs = append(errs, err)
						continue
					}
				}
				// Rebuild the heap from scratch: AdvanceTo may have changed
				// multiple streams' heads.
				*h = (*h)[:0]
				for _, vs := range vnodes {
					if vs.done || vs.err != nil {
						continue
					}
					if vs.head == nil {
						fill(vs)
					}
					if vs.head != nil {
						heap.Push(h, vs)
					}
				}
				continue
			}
		}

		result.Entries = append(result.Entries, Entry{Type: EntryRecord, Name: rec.Name, Data: rec.Data})

		fill(top)
		if top.head != nil {
			heap.Push(h, top)
		}
	}

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}

	result.Finished = h.Len() == 0 && allDone(vnodes)
	if !result.Finished && len(result.Entries) > 0 {
		result.NextMarker = result.Entries[len(result.Entries)-1].Name
	}
	return result, nil
}

func allDone(vnodes []*vnodeStream) bool {
	for _, vs := range vnodes {
		if !vs.done {
			return false
		}
	}
	return true
}
