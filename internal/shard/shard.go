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

// Package shard defines the metadata RPC surface the gateway speaks to a
// physical shard (pnode) and a Pool that hands out a client for a given
// pnode without creating one on the request hot path (§4.2).
package shard

import (
	"context"
	"sync"

	"objectgw/internal/model"
)

// ListBucketsOptions configures a ListBuckets call (§6 list-buckets).
type ListBucketsOptions struct {
	Marker string
	Limit  int
}

// ListObjectsOptions configures a ListObjects call against one pnode; it is
// the per-pnode counterpart of the Merge-Paginator's OpenPageFunc (§4.4, §4.5).
type ListObjectsOptions struct {
	Prefix string
	Marker string
	Limit  int
}

// ShardClient is the metadata RPC surface the gateway needs from a single
// physical shard. One concrete implementation is redisshard, used for
// development and tests; a production deployment wires a real moray-style
// RPC client behind the same interface (§1 out of scope, §2).
type ShardClient interface {
	GetBucket(ctx context.Context, key string) (*model.Bucket, error)
	CreateBucket(ctx context.Context, b *model.Bucket) error
	DeleteBucket(ctx context.Context, key string) error
	ListBuckets(ctx context.Context, owner string, opts ListBucketsOptions) ([]model.Bucket, error)

	GetObject(ctx context.Context, key string) (*model.Object, error)
	CreateObject(ctx context.Context, o *model.Object, expectedEtag string) error
	UpdateObject(ctx context.Context, o *model.Object, expectedEtag string) error
	DeleteObject(ctx context.Context, key string, expectedEtag string) error
	ListObjects(ctx context.Context, bucketID string, opts ListObjectsOptions) ([]model.Object, error)
}

// Factory builds a ShardClient for one pnode identifier. Pool calls it the
// first time that pnode is looked up; concurrent first lookups of the same
// pnode may each call it (see Get).
type Factory func(pnode string) (ShardClient, error)

// Pool hands out a ShardClient for a pnode id, building one lazily via
// Factory on the first lookup and caching it, so only that first lookup
// pays connection-setup cost. cmd/gateway looks up every pnode of the
// initial ring at startup, so requests reuse those cached clients (§4.2
// "no hot-path client creation").
type Pool struct {
	factory Factory

	mu      sync.RWMutex
	clients map[string]ShardClient
}

// New builds a Pool that lazily constructs clients via factory.
func New(factory Factory) *Pool {
	return &Pool{factory: factory, clients: make(map[string]ShardClient)}
}

// Get returns the ShardClient for pnode, building and caching one on first
// use. Concurrent calls for the same never-yet-seen pnode may race the
// factory once; the loser's client is discarded in favor of the winner's.
func (p *Pool) Get(pnode string) (ShardClient, error) {
	p.mu.RLock()
	c, ok := p.clients[pnode]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := p.factory(pnode)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[pnode]; ok {
		return existing, nil
	}
	p.clients[pnode] = c
	return c, nil
}
