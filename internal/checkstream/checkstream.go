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

// Package checkstream wraps a streaming body with a running digest, a byte
// counter, an idle timeout, and a maximum-size guard (§4.3). It is the
// single pass-through point every object body flows through, whether being
// read from the client or replayed to a storage node.
package checkstream

import (
	"encoding/base64"
	"errors"
	"hash"
	"io"
	"sync/atomic"
	"time"
)

// ErrTimeout is returned from Read when no byte has been observed for the
// configured idle timeout.
var ErrTimeout = errors.New("checkstream: idle timeout")

// ErrLengthExceeded is returned from Read when accepting the next chunk
// would push the byte count past MaxBytes.
var ErrLengthExceeded = errors.New("checkstream: length exceeded")

// NewDigest constructs the running-hash algorithm used by a Stream. The
// gateway always uses MD5 (§3 content_md5), but the type is pluggable so
// tests can substitute a cheaper hash.
type NewDigest func() hash.Hash

// Stream is a pass-through io.Reader parameterized by algorithm, maximum
// byte count, and idle timeout (§4.3).
type Stream struct {
	r         io.Reader
	digest    hash.Hash
	maxBytes  int64
	timeout   time.Duration
	count     atomic.Int64
	lastByte  atomic.Int64 // unix nano of last successful read
	done      atomic.Bool
	timedOut  atomic.Bool
}

// New wraps r with a Stream that hashes every byte read through it via
// newDigest, enforces maxBytes (0 disables the guard), and treats a gap of
// more than timeout between reads as ErrTimeout (0 disables the guard).
func New(r io.Reader, newDigest NewDigest, maxBytes int64, timeout time.Duration) *Stream {
	s := &Stream{
		r:        r,
		digest:   newDigest(),
		maxBytes: maxBytes,
		timeout:  timeout,
	}
	s.lastByte.Store(time.Now().UnixNano())
	return s
}

// Read implements io.Reader, feeding every byte through the digest and
// counters before returning it to the caller.
func (s *Stream) Read(p []byte) (int, error) {
	if s.timeout > 0 {
		last := time.Unix(0, s.lastByte.Load())
		if time.Since(last) > s.timeout {
			s.timedOut.Store(true)
			return 0, ErrTimeout
		}
	}
	if s.maxBytes > 0 && s.count.Load() >= s.maxBytes {
		// A body of exactly maxBytes is allowed: only a further byte fails.
		var probe [1]byte
		n, err := s.r.Read(probe[:])
		if n > 0 {
			return 0, ErrLengthExceeded
		}
		if err == io.EOF {
			s.done.Store(true)
		}
		return 0, err
	}

	readLen := len(p)
	if s.maxBytes > 0 {
		remaining := s.maxBytes - s.count.Load()
		if int64(readLen) > remaining {
			readLen = int(remaining)
		}
	}

	n, err := s.r.Read(p[:readLen])
	if n > 0 {
		s.digest.Write(p[:n])
		s.count.Add(int64(n))
		s.lastByte.Store(time.Now().UnixNano())
	}
	if err == io.EOF {
		s.done.Store(true)
	}
	return n, err
}

// Count returns the number of bytes observed so far.
func (s *Stream) Count() int64 { return s.count.Load() }

// Done reports whether the underlying reader has signaled end of input.
func (s *Stream) Done() bool { return s.done.Load() }

// TimedOut reports whether the stream aborted due to idle timeout.
func (s *Stream) TimedOut() bool { return s.timedOut.Load() }

// Digest returns the base64-encoded running digest computed so far. It is
// safe to call only after the stream has been fully drained.
func (s *Stream) Digest() string {
	return base64.StdEncoding.EncodeToString(s.digest.Sum(nil))
}
