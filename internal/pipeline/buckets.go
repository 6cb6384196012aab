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

	"github.com/google/uuid"

	"objectgw/internal/gwerrors"
	"objectgw/internal/model"
	"objectgw/internal/shard"
)

// shardFor resolves key through the current ring snapshot and hands back
// the ShardClient for the pnode it lands on (§4.2 findSharks-style
// routing, applied here to metadata rather than storage nodes).
func (d *Deps) shardFor(key string) (shard.ShardClient, error) {
	loc := d.Ring.Current().Locate(key)
	client, err := d.Shards.Get(loc.Pnode)
	if err != nil {
		return nil, gwerrors.InternalError.New(err)
	}
	return client, nil
}

// getBucketIfExists loads the named bucket, swallowing BucketNotFoundError
// into a nil *model.Bucket so callers can distinguish "missing" from a real
// failure (§4.6 getBucketIfExists / maybeGetObject pattern).
func (d *Deps) getBucketIfExists(ctx context.Context, owner, name string) (*model.Bucket, error) {
	client, err := d.shardFor(model.BucketKey(owner, name))
	if err != nil {
		return nil, err
	}
	b, err := client.GetBucket(ctx, model.BucketKey(owner, name))
	if err != nil {
		if ge, ok := gwerrors.As(err); ok && ge.Code == gwerrors.BucketNotFoundError.Code {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// CreateBucketInput is the input to CreateBucket.
type CreateBucketInput struct {
	Owner string
	Name  string
}

// CreateBucket implements PUT .../buckets/:bucket_name (§6).
func (d *Deps) CreateBucket(ctx context.Context, in CreateBucketInput) (*model.Bucket, error) {
	if err := model.ValidateBucketName(in.Name); err != nil {
		return nil, gwerrors.InvalidArgumentError.New(err)
	}
	if err := d.Authz.Authorize(in.Owner, "CreateBucket", in.Name, nil); err != nil {
		return nil, err
	}
	client, err := d.shardFor(model.BucketKey(in.Owner, in.Name))
	if err != nil {
		return nil, err
	}
	b := &model.Bucket{
		ID:    uuid.New(),
		Name:  in.Name,
		Owner: in.Owner,
		Mtime: d.now(),
	}
	if err := client.CreateBucket(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// HeadBucket returns the bucket's metadata, or BucketNotFoundError.
func (d *Deps) HeadBucket(ctx context.Context, owner, name string) (*model.Bucket, error) {
	if err := d.Authz.Authorize(owner, "HeadBucket", name, nil); err != nil {
		return nil, err
	}
	b, err := d.getBucketIfExists(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, gwerrors.BucketNotFoundError.New(nil)
	}
	return b, nil
}

// DeleteBucket implements DELETE .../buckets/:bucket_name (§6). The shard
// itself enforces the non-empty invariant (§3); a non-empty bucket surfaces
// as BucketNotEmptyError.
func (d *Deps) DeleteBucket(ctx context.Context, owner, name string) error {
	if err := d.Authz.Authorize(owner, "DeleteBucket", name, nil); err != nil {
		return err
	}
	client, err := d.shardFor(model.BucketKey(owner, name))
	if err != nil {
		return err
	}
	return client.DeleteBucket(ctx, model.BucketKey(owner, name))
}
