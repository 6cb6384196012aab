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

package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// NodeWriter opens one replica's upload stream and blocks until that node
// has acknowledged the full body. It is called once per node in a
// candidate set, concurrently with its siblings.
type NodeWriter func(ctx context.Context, node Node) PutResult

// FanOutResult is the outcome of trying one candidate set.
type FanOutResult struct {
	Set     []Node
	Results []PutResult
	OK      bool
}

// FanOut tries each candidate set in sets, in order, opening parallel
// streams to every node in a set via write and requiring every node to
// report StatusCode 2xx. The first set where every node succeeds is
// returned with OK true. If a set has any failure, its streams are
// considered abandoned and the next set is tried (§4.6 startSharkStreams:
// "If any fails ... abandon all and try the next candidate set").
//
// Exhausting every set returns the last attempted set's results with OK
// false; the caller maps that to SharksExhausted (§4.6, §4.7).
func FanOut(ctx context.Context, sets [][]Node, write NodeWriter) FanOutResult {
	var last FanOutResult
	for _, set := range sets {
		results := make([]PutResult, len(set))
		var wg sync.WaitGroup
		for i, node := range set {
			wg.Add(1)
			go func(i int, node Node) {
				defer wg.Done()
				results[i] = write(ctx, node)
			}(i, node)
		}
		wg.Wait()

		ok := true
		for _, r := range results {
			if r.Err != nil || r.StatusCode < 200 || r.StatusCode >= 300 {
				ok = false
				break
			}
		}
		last = FanOutResult{Set: set, Results: results, OK: ok}
		if ok {
			return last
		}
	}
	return last
}

// TeeReaders returns n io.Readers that each replay everything read from
// src, so a single client body can be streamed to n storage-node PUTs
// concurrently while also flowing through a Check Stream (§4.6
// sharkStreams "pipe the client body ... in parallel to every open
// storage-node stream"). Each returned reader must be fully drained by
// its consumer or the whole tee stalls, since a slow reader blocks writes
// to every pipe.
func TeeReaders(src io.Reader, n int) ([]io.Reader, func() error) {
	pipes := make([]*io.PipeWriter, n)
	readers := make([]io.Reader, n)
	writers := make([]io.Writer, n)
	for i := 0; i < n; i++ {
		pr, pw := io.Pipe()
		pipes[i] = pw
		readers[i] = pr
		writers[i] = pw
	}

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.MultiWriter(writers...), src)
		for _, pw := range pipes {
			pw.CloseWithError(err)
		}
		done <- err
	}()

	wait := func() error {
		err := <-done
		if err != nil && err != io.EOF {
			return fmt.Errorf("storage: tee: %w", err)
		}
		return nil
	}
	return readers, wait
}
