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

package checkstream

import (
	"crypto/md5"
	"encoding/base64"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDigestMatchesKnownMD5(t *testing.T) {
	body := "hello world"
	s := New(strings.NewReader(body), md5.New, 0, 0)
	n, err := io.Copy(io.Discard, s)
	require.NoError(t, err)
	require.EqualValues(t, len(body), n)
	require.EqualValues(t, len(body), s.Count())

	want := md5.Sum([]byte(body))
	got, err := base64.StdEncoding.DecodeString(s.Digest())
	require.NoError(t, err)
	require.Equal(t, want[:], got)
}

func TestLengthExceededGuard(t *testing.T) {
	body := strings.Repeat("x", 100)
	s := New(strings.NewReader(body), md5.New, 10, 0)
	_, err := io.Copy(io.Discard, s)
	require.ErrorIs(t, err, ErrLengthExceeded)
}

func TestIdleTimeout(t *testing.T) {
	s := New(&stallingReader{}, md5.New, 0, 5*time.Millisecond)
	_, err := s.Read(make([]byte, 1))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = s.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrTimeout)
	require.True(t, s.TimedOut())
}

type stallingReader struct{ once bool }

func (r *stallingReader) Read(p []byte) (int, error) {
	if !r.once {
		r.once = true
		p[0] = 'a'
		return 1, nil
	}
	return 0, nil
}

