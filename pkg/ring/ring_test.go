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

package ring

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{ nodes []string }

func (f *fakeSource) Pnodes(ctx context.Context) ([]string, error) { return f.nodes, nil }

func TestLocateIsStableAcrossCalls(t *testing.T) {
	src := &fakeSource{nodes: []string{"pnode-1", "pnode-2", "pnode-3"}}
	r, err := New(context.Background(), src, Config{NumVnodes: 1024}, zerolog.Nop())
	require.NoError(t, err)

	snap := r.Current()
	loc1 := snap.Locate("owner:bucket")
	loc2 := snap.Locate("owner:bucket")
	require.Equal(t, loc1, loc2)
}

func TestNewFailsFatallyWithNoPnodes(t *testing.T) {
	src := &fakeSource{nodes: nil}
	_, err := New(context.Background(), src, Config{}, zerolog.Nop())
	require.Error(t, err)
}

func TestAllNodesCoversEveryVnodeExactlyOnce(t *testing.T) {
	src := &fakeSource{nodes: []string{"a", "b"}}
	r, err := New(context.Background(), src, Config{NumVnodes: 256}, zerolog.Nop())
	require.NoError(t, err)

	snap := r.Current()
	nodes := snap.AllNodes()
	require.Len(t, nodes, 256)
	seen := make(map[uint64]bool)
	for _, n := range nodes {
		require.False(t, seen[n.Vnode], "vnode %d enumerated twice", n.Vnode)
		seen[n.Vnode] = true
	}
}

func TestRefreshRetainsPreviousSnapshotOnFailure(t *testing.T) {
	src := &fakeSource{nodes: []string{"pnode-1"}}
	r, err := New(context.Background(), src, Config{NumVnodes: 64}, zerolog.Nop())
	require.NoError(t, err)
	first := r.Current()

	src.nodes = nil // next refresh will fail
	r.refreshOnce()

	require.Same(t, first, r.Current())
}

func TestMinorityOfVnodesMoveWhenPnodeJoins(t *testing.T) {
	src := &fakeSource{nodes: []string{"pnode-1", "pnode-2", "pnode-3"}}
	r, err := New(context.Background(), src, Config{NumVnodes: 4096}, zerolog.Nop())
	require.NoError(t, err)
	before := r.Current()

	src.nodes = append(src.nodes, "pnode-4")
	r.refreshOnce()
	after := r.Current()

	moved := 0
	for vnode := uint64(0); vnode < before.NumVnodes; vnode++ {
		if before.vnodeToPnode[vnode] != after.vnodeToPnode[vnode] {
			moved++
		}
	}
	// Rendezvous hashing should move roughly 1/4 of vnodes (to the new node),
	// far fewer than a naive re-hash that would move nearly all of them.
	require.Less(t, moved, int(before.NumVnodes)/2)
}
