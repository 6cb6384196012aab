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

package pipeline

import (
	"context"

	"objectgw/internal/gwerrors"
	"objectgw/internal/listing"
	"objectgw/internal/shard"
)

const defaultListPageSize = 1000

func pageSize(limit int) int {
	if limit <= 0 || limit > defaultListPageSize {
		return defaultListPageSize
	}
	return limit
}

// ListBucketsInput configures ListBuckets (§6 list-buckets).
type ListBucketsInput struct {
	Owner  string
	Marker string
	Limit  int
}

// ListBuckets fans a ListBuckets RPC out to every physical shard in the
// current ring (a bucket's routing key is owner-scoped but its placement
// still depends on its name hash, so an owner's buckets can live on any
// pnode) and merges the per-shard streams in name order (§4.4, §4.5).
func (d *Deps) ListBuckets(ctx context.Context, in ListBucketsInput) (listing.Result, error) {
	if err := d.Authz.Authorize(in.Owner, "ListBuckets", "", nil); err != nil {
		return listing.Result{}, err
	}
	snap := d.Ring.Current()
	pnodes := snap.Pnodes()

	streams := make(map[string]*listing.Stream, len(pnodes))
	for _, pnode := range pnodes {
		client, err := d.Shards.Get(pnode)
		if err != nil {
			return listing.Result{}, gwerrors.InternalError.New(err)
		}
		owner := in.Owner
		open := func(ctx context.Context, marker string, limit int) ([]listing.Record, error) {
			buckets, err := client.ListBuckets(ctx, owner, shard.ListBucketsOptions{Marker: marker, Limit: limit})
			if err != nil {
				return nil, err
			}
			recs := make([]listing.Record, len(buckets))
			for i := range buckets {
				recs[i] = listing.Record{Name: buckets[i].Name, Data: buckets[i]}
			}
			return recs, nil
		}
		streams[pnode] = listing.New(open, in.Marker, pageSize(in.Limit))
	}

	res, err := listing.Merge(ctx, streams, listing.Options{Limit: in.Limit})
	if err != nil {
		return listing.Result{}, gwerrors.InternalError.New(err)
	}
	return res, nil
}

// ListObjectsInput configures ListObjects (§6 list-objects, §4.5).
type ListObjectsInput struct {
	Owner      string
	BucketName string
	Prefix     string
	Delimiter  byte
	HasDelimiter bool
	Marker     string
	Limit      int
}

// ListObjects fans a ListObjects RPC out to every physical shard and merges
// the per-shard streams with prefix/delimiter grouping (§4.4, §4.5).
func (d *Deps) ListObjects(ctx context.Context, in ListObjectsInput) (listing.Result, error) {
	if err := d.Authz.Authorize(in.Owner, "ListObjects", in.BucketName, nil); err != nil {
		return listing.Result{}, err
	}
	bucket, err := d.getBucketIfExists(ctx, in.Owner, in.BucketName)
	if err != nil {
		return listing.Result{}, err
	}
	if bucket == nil {
		return listing.Result{}, gwerrors.BucketNotFoundError.New(nil)
	}

	snap := d.Ring.Current()
	pnodes := snap.Pnodes()
	bucketID := bucket.ID.String()

	streams := make(map[string]*listing.Stream, len(pnodes))
	for _, pnode := range pnodes {
		client, err := d.Shards.Get(pnode)
		if err != nil {
			return listing.Result{}, gwerrors.InternalError.New(err)
		}
		prefix := in.Prefix
		open := func(ctx context.Context, marker string, limit int) ([]listing.Record, error) {
			objs, err := client.ListObjects(ctx, bucketID, shard.ListObjectsOptions{
				Prefix: prefix,
				Marker: marker,
				Limit:  limit,
			})
			if err != nil {
				return nil, err
			}
			recs := make([]listing.Record, len(objs))
			for i := range objs {
				recs[i] = listing.Record{Name: objs[i].Name, Data: objs[i]}
			}
			return recs, nil
		}
		streams[pnode] = listing.New(open, in.Marker, pageSize(in.Limit))
	}

	res, err := listing.Merge(ctx, streams, listing.Options{
		Prefix:       in.Prefix,
		Delimiter:    in.Delimiter,
		HasDelimiter: in.HasDelimiter,
		Limit:        in.Limit,
	})
	if err != nil {
		return listing.Result{}, gwerrors.InternalError.New(err)
	}
	return res, nil
}
