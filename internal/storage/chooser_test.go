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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundRobinChooserRotatesStartingPoint(t *testing.T) {
	nodes := []Node{
		{StorageID: "a"}, {StorageID: "b"}, {StorageID: "c"},
	}
	c := NewRoundRobinChooser(nodes)

	sets1, err := c.Choose(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, sets1, 1)
	require.Equal(t, []Node{{StorageID: "a"}, {StorageID: "b"}}, sets1[0])

	sets2, err := c.Choose(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []Node{{StorageID: "b"}, {StorageID: "c"}}, sets2[0])

	sets3, err := c.Choose(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []Node{{StorageID: "c"}, {StorageID: "a"}}, sets3[0])
}

func TestRoundRobinChooserClampsReplicasToNodeCount(t *testing.T) {
	c := NewRoundRobinChooser([]Node{{StorageID: "a"}, {StorageID: "b"}})
	sets, err := c.Choose(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sets[0], 2)
}

func TestRoundRobinChooserEmptyNodesErrors(t *testing.T) {
	c := NewRoundRobinChooser(nil)
	_, err := c.Choose(context.Background(), 1)
	require.Error(t, err)
}
