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

// Package ring maps routing keys to physical metadata shards through a
// versioned, periodically refreshed placement snapshot.
//
// A key is hashed to a vnode (a large, fixed space of logical partitions)
// and the vnode is looked up in the current snapshot's vnode-to-pnode
// table. Snapshots are immutable once published and replaced atomically,
// so a single request observes one consistent ring for its whole lifetime.
package ring

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgryski/go-rendezvous"
	"github.com/rs/zerolog"
)

// DefaultVnodeHashInterval is the default width of the hash space assigned
// to each vnode (§4.1).
const DefaultVnodeHashInterval = uint64(1) << 32

// DefaultRefreshInterval is the default background refresh period (§4.1).
const DefaultRefreshInterval = 1800 * time.Second

// Location is the {pnode, vnode} tuple a routing key resolves to (§3).
type Location struct {
	Pnode string
	Vnode uint64
}

// Node describes one physical metadata shard as enumerated by AllNodes.
type Node struct {
	Pnode string
	Vnode uint64
}

// PlacementSource is the external placement-data collaborator (out of
// scope per §1): it supplies the current set of physical nodes that
// should own the ring's vnodes. The gateway never mutates placement data,
// only reads it.
type PlacementSource interface {
	// Pnodes returns the current list of physical metadata node identifiers.
	Pnodes(ctx context.Context) ([]string, error)
}

// Snapshot is an immutable, versioned view of the placement ring (§3).
// Once published it is never mutated; Refresh builds a new Snapshot and
// swaps it in atomically.
type Snapshot struct {
	Version         int64
	HashAlgorithm   string
	VnodeInterval   uint64
	NumVnodes       uint64
	vnodeToPnode    []string // index by vnode
	pnodeToVnodes   map[string][]uint64
}

// Pnodes returns the distinct physical nodes present in the snapshot.
func (s *Snapshot) Pnodes() []string {
	out := make([]string, 0, len(s.pnodeToVnodes))
	for p := range s.pnodeToVnodes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Locate hashes key into a vnode and resolves it to its current pnode.
// Locate is a pure function of the snapshot: calling it twice with the same
// key against the same snapshot always returns the same Location (§8).
func (s *Snapshot) Locate(key string) Location {
	h := hashKey(key)
	vnode := (h / s.VnodeInterval) % s.NumVnodes
	return Location{Pnode: s.vnodeToPnode[vnode], Vnode: vnode}
}

// AllNodes enumerates every {vnode, pnode} pair in the snapshot. The
// listing fan-out does not use it: it opens one Limit-Marker Stream per
// pnode (see Pnodes), not one per vnode.
func (s *Snapshot) AllNodes() []Node {
	out := make([]Node, 0, s.NumVnodes)
	for vnode, pnode := range s.vnodeToPnode {
		out = append(out, Node{Pnode: pnode, Vnode: uint64(vnode)})
	}
	return out
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// Ring holds the live, atomically-swapped Snapshot and refreshes it from a
// PlacementSource on a configurable interval (§4.1).
type Ring struct {
	log    zerolog.Logger
	source PlacementSource
	interval time.Duration
	numVnodes uint64

	current atomic.Pointer[Snapshot]
	version atomic.Int64

	stopCh chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// Config configures a new Ring.
type Config struct {
	NumVnodes       uint64        // total vnode count; 0 defaults to 65536
	RefreshInterval time.Duration // 0 defaults to DefaultRefreshInterval
}

// New builds a Ring and performs the initial, synchronous placement fetch.
// A failure here is fatal per §4.1: the caller should treat a non-nil error
// as unrecoverable, since the gateway cannot route without an initial ring.
func New(ctx context.Context, source PlacementSource, cfg Config, log zerolog.Logger) (*Ring, error) {
	if cfg.NumVnodes == 0 {
		cfg.NumVnodes = 65536
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	r := &Ring{
		log:       log.With().Str("component", "ring").Logger(),
		source:    source,
		interval:  cfg.RefreshInterval,
		numVnodes: cfg.NumVnodes,
		stopCh:    make(chan struct{}),
	}
	snap, err := r.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("ring: initial placement fetch failed: %w", err)
	}
	r.current.Store(snap)
	return r, nil
}

// build fetches the current pnode set and assigns every vnode to a pnode
// using rendezvous (HRW) hashing with every pnode weighted equally, so that adding or removing one
// pnode only reassigns the vnodes that hashed closest to it, not the whole
// ring (§4.1 algorithm note, §2 component table).
func (r *Ring) build(ctx context.Context) (*Snapshot, error) {
	pnodes, err := r.source.Pnodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(pnodes) == 0 {
		return nil, fmt.Errorf("ring: placement source returned no pnodes")
	}
	sorted := append([]string(nil), pnodes...)
	sort.Strings(sorted)

	rdv := rendezvous.New(sorted, hashKey)
	vnodeToPnode := make([]string, r.numVnodes)
	pnodeToVnodes := make(map[string][]uint64, len(sorted))
	for vnode := uint64(0); vnode < r.numVnodes; vnode++ {
		pnode := rdv.Lookup(fmt.Sprintf("vnode-%d", vnode))
		vnodeToPnode[vnode] = pnode
		pnodeToVnodes[pnode] = append(pnodeToVnodes[pnode], vnode)
	}

	return &Snapshot{
		Version:       r.version.Add(1),
		HashAlgorithm: "fnv1a-64",
		VnodeInterval: DefaultVnodeHashInterval,
		NumVnodes:     r.numVnodes,
		vnodeToPnode:  vnodeToPnode,
		pnodeToVnodes: pnodeToVnodes,
	}, nil
}

// Current returns the ring's current snapshot. Callers should capture it
// once at request entry and use it for the whole request (§3 invariant).
func (r *Ring) Current() *Snapshot {
	return r.current.Load()
}

// Start launches the background refresh loop. A refresh failure is logged
// and the previous snapshot is retained (§4.1 failure policy).
func (r *Ring) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.refreshOnce()
			case <-r.stopCh:
				return
			}
		}
	}()
}

func (r *Ring) refreshOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval/2+time.Second)
	defer cancel()
	snap, err := r.build(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("placement refresh failed, retaining previous snapshot")
		return
	}
	r.current.Store(snap)
	r.log.Info().Int64("version", snap.Version).Int("pnodes", len(snap.Pnodes())).Msg("placement refreshed")
}

// Stop halts the background refresh loop. Safe to call multiple times.
func (r *Ring) Stop() {
	r.stopped.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}
