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

// Package storage is the gateway's client for the storage nodes ("sharks")
// that hold object bodies: an HTTP PUT/GET agent per node, and a
// candidate-set fan-out helper that tries successive replica sets until
// one fully succeeds (§4.6 findSharks/startSharkStreams).
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"objectgw/internal/model"
)

// Node is one storage-node descriptor as returned by a Chooser.
type Node struct {
	Datacenter string
	StorageID  string
	BaseURL    string // e.g. "http://10.0.1.4:8080"
}

func (n Node) String() string { return fmt.Sprintf("%s/%s", n.Datacenter, n.StorageID) }

func (n Node) Shark() model.Shark {
	return model.Shark{Datacenter: n.Datacenter, StorageID: n.StorageID}
}

// Chooser is the external storage-placement collaborator (§1 out of
// scope): given a replica count, it returns one or more ordered candidate
// sets of storage nodes for the gateway to try in order (§4.6 findSharks).
type Chooser interface {
	Choose(ctx context.Context, replicas int) ([][]Node, error)
}

// Resolver turns a stored Shark reference back into a dialable Node,
// since model.Object only persists {datacenter, storage_id} (§3) and the
// read path needs a base URL to issue the GET against (§7).
type Resolver interface {
	Resolve(ctx context.Context, shark model.Shark) (Node, error)
}

// StaticResolver resolves a Shark by a fixed storage_id -> base URL map,
// the development/test counterpart of a real storage-node directory
// service (§1 out of scope).
type StaticResolver struct {
	BaseURLs map[string]string // keyed by storage_id
}

func (r StaticResolver) Resolve(_ context.Context, shark model.Shark) (Node, error) {
	base, ok := r.BaseURLs[shark.StorageID]
	if !ok {
		return Node{}, fmt.Errorf("storage: no known address for storage node %q", shark.StorageID)
	}
	return Node{Datacenter: shark.Datacenter, StorageID: shark.StorageID, BaseURL: base}, nil
}

// ResolveSharks resolves every shark in order via resolver, skipping (and
// not failing on) any that cannot be resolved: the read path only needs
// one healthy node to win (§7), so a single stale directory entry
// shouldn't abort the whole read.
func ResolveSharks(ctx context.Context, resolver Resolver, sharks []model.Shark) []Node {
	nodes := make([]Node, 0, len(sharks))
	for _, s := range sharks {
		n, err := resolver.Resolve(ctx, s)
		if err != nil {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// PutResult is one node's response to a body PUT.
type PutResult struct {
	Node       Node
	StatusCode int
	ContentMD5 string // the node's reported MD5, from its response header
	Err        error
}

// Agent issues PUT/GET requests for object bodies against individual
// storage nodes over plain HTTP, the way the Storage Node Client
// component is scoped in §2 ("~8%" of the system, no retry once body
// streaming starts per §8 retry policy).
type Agent struct {
	client *http.Client
}

// NewAgent builds an Agent using httpClient, or http.DefaultClient if nil.
func NewAgent(httpClient *http.Client) *Agent {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Agent{client: httpClient}
}

// objectPath is the path convention used to address a body on a storage
// node: the routing key's object-name hash, mirroring how a real moray
// storage tier addresses blobs by content-independent id rather than by
// the object's (possibly path-shaped) name.
func objectPath(owner, bucketID, objectName string) string {
	return "/" + owner + "/" + bucketID + "/" + model.NameHashHex(objectName)
}

// Put streams body to node, setting Content-Length and Content-MD5 so the
// node can itself reject on mismatch with 469 (§4.6 sharkStreams). It
// returns once the node has responded; the caller is responsible for
// running one Put per candidate concurrently and forming the barrier.
func (a *Agent) Put(ctx context.Context, node Node, owner, bucketID, objectName string, body io.Reader, contentLength int64, contentMD5 string) PutResult {
	url := node.BaseURL + objectPath(owner, bucketID, objectName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return PutResult{Node: node, Err: fmt.Errorf("storage: building request to %s: %w", node, err)}
	}
	req.ContentLength = contentLength
	req.Header.Set("Content-MD5", contentMD5)

	resp, err := a.client.Do(req)
	if err != nil {
		return PutResult{Node: node, Err: fmt.Errorf("storage: PUT to %s: %w", node, err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return PutResult{
		Node:       node,
		StatusCode: resp.StatusCode,
		ContentMD5: resp.Header.Get("Content-MD5"),
	}
}

// GetResult is one node's response to a body GET: either a readable body
// the caller must close, or an error.
type GetResult struct {
	Node Node
	Body io.ReadCloser
	Err  error
}

// Get opens a streaming GET against one node in sharks, trying each in
// order (§7 read-streaming failover: the first healthy node wins).
func (a *Agent) Get(ctx context.Context, sharks []Node, owner, bucketID, objectName string, rangeHeader string) GetResult {
	var lastErr error
	for _, node := range sharks {
		url := node.BaseURL + objectPath(owner, bucketID, objectName)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			lastErr = fmt.Errorf("storage: building request to %s: %w", node, err)
			continue
		}
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}
		resp, err := a.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("storage: GET from %s: %w", node, err)
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("storage: GET from %s: status %d", node, resp.StatusCode)
			continue
		}
		return GetResult{Node: node, Body: resp.Body}
	}
	return GetResult{Err: fmt.Errorf("storage: all sharks exhausted: %w", lastErr)}
}
