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

import "context"

// StaticPlacementSource is a development/test PlacementSource backed by a
// fixed pnode list (§1 out of scope: a real placement service tracks node
// membership changes over time).
type StaticPlacementSource struct {
	Nodes []string
}

func (s StaticPlacementSource) Pnodes(context.Context) ([]string, error) {
	return s.Nodes, nil
}
