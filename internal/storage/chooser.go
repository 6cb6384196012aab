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
	"sync"
)

// RoundRobinChooser is a development/test Chooser (§1 out of scope: real
// storage placement is an external collaborator) that spreads writes
// across a fixed node list by rotating the starting point on every call,
// so consecutive writes don't all land on the same replica set.
type RoundRobinChooser struct {
	mu    sync.Mutex
	nodes []Node
	next  int
}

// NewRoundRobinChooser builds a chooser over the given fixed node set.
func NewRoundRobinChooser(nodes []Node) *RoundRobinChooser {
	return &RoundRobinChooser{nodes: nodes}
}

// Choose returns a single candidate set of up to replicas distinct nodes,
// starting from the chooser's rotating offset (§4.6 findSharks).
func (c *RoundRobinChooser) Choose(_ context.Context, replicas int) ([][]Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.nodes) == 0 {
		return nil, fmt.Errorf("storage: no storage nodes configured")
	}
	if replicas > len(c.nodes) {
		replicas = len(c.nodes)
	}

	set := make([]Node, 0, replicas)
	for i := 0; len(set) < replicas; i++ {
		set = append(set, c.nodes[(c.next+i)%len(c.nodes)])
	}
	c.next = (c.next + 1) % len(c.nodes)
	return [][]Node{set}, nil
}
