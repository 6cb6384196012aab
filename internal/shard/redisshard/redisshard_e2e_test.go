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

//go:build e2e

package redisshard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"objectgw/internal/gwerrors"
	"objectgw/internal/model"
)

// TestBucketAndObjectLifecycleE2E exercises the Redis-backed ShardClient
// against a real Redis at 127.0.0.1:6379, the way the teacher's own
// redis_e2e_test.go guards an optional real backend.
func TestBucketAndObjectLifecycleE2E(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not reachable on 127.0.0.1:6379: %v", err)
	}
	defer rc.FlushDB(context.Background())

	c := New(rc)
	owner := "owner-" + uuid.NewString()
	bucket := &model.Bucket{ID: uuid.New(), Name: "photos", Owner: owner, Mtime: time.Now().UTC()}

	require.NoError(t, c.CreateBucket(ctx, bucket))
	err := c.CreateBucket(ctx, bucket)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.BucketAlreadyExistsError.Code, ge.Code)

	got, err := c.GetBucket(ctx, model.BucketKey(owner, "photos"))
	require.NoError(t, err)
	require.Equal(t, bucket.ID, got.ID)

	obj := &model.Object{
		ID: uuid.New(), Name: "cat.png", BucketID: bucket.ID, Owner: owner,
		ContentLength: 3, ContentMD5: "abc", ContentType: "image/png",
		Headers: map[string]string{}, Sharks: nil, StorageLayoutVersion: model.CurrentStorageLayoutVersion,
		Created: time.Now().UTC(), Modified: time.Now().UTC(), Roles: nil,
	}
	require.NoError(t, c.CreateObject(ctx, obj, ""))

	key := model.ObjectKey(owner, bucket.ID.String(), "cat.png")
	fetched, err := c.GetObject(ctx, key)
	require.NoError(t, err)
	require.Equal(t, obj.ID, fetched.ID)

	err = c.DeleteObject(ctx, key, "wrong-etag")
	ge, ok = gwerrors.As(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.PreconditionFailedError.Code, ge.Code)

	require.NoError(t, c.DeleteObject(ctx, key, obj.ID.String()))
	_, err = c.GetObject(ctx, key)
	ge, ok = gwerrors.As(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.ObjectNotFoundError.Code, ge.Code)
}
