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

package shard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"objectgw/internal/model"
)

type fakeClient struct{ pnode string }

func (f *fakeClient) GetBucket(context.Context, string) (*model.Bucket, error)   { return nil, nil }
func (f *fakeClient) CreateBucket(context.Context, *model.Bucket) error          { return nil }
func (f *fakeClient) DeleteBucket(context.Context, string) error                 { return nil }
func (f *fakeClient) ListBuckets(context.Context, string, ListBucketsOptions) ([]model.Bucket, error) {
	return nil, nil
}
func (f *fakeClient) GetObject(context.Context, string) (*model.Object, error) { return nil, nil }
func (f *fakeClient) CreateObject(context.Context, *model.Object, string) error { return nil }
func (f *fakeClient) UpdateObject(context.Context, *model.Object, string) error { return nil }
func (f *fakeClient) DeleteObject(context.Context, string, string) error       { return nil }
func (f *fakeClient) ListObjects(context.Context, string, ListObjectsOptions) ([]model.Object, error) {
	return nil, nil
}

func TestPoolBuildsEachPnodeExactlyOnce(t *testing.T) {
	var calls int64
	pool := New(func(pnode string) (ShardClient, error) {
		atomic.AddInt64(&calls, 1)
		return &fakeClient{pnode: pnode}, nil
	})

	c1, err := pool.Get("pnode-a")
	require.NoError(t, err)
	c2, err := pool.Get("pnode-a")
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))

	_, err = pool.Get("pnode-b")
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt64(&calls))
}

func TestPoolPropagatesFactoryError(t *testing.T) {
	boom := fmt.Errorf("dial failed")
	pool := New(func(pnode string) (ShardClient, error) { return nil, boom })

	_, err := pool.Get("pnode-a")
	require.ErrorIs(t, err, boom)
}

func TestPoolIsSafeForConcurrentFirstUse(t *testing.T) {
	var calls int64
	pool := New(func(pnode string) (ShardClient, error) {
		atomic.AddInt64(&calls, 1)
		return &fakeClient{pnode: pnode}, nil
	})

	var wg sync.WaitGroup
	results := make([]ShardClient, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := pool.Get("shared-pnode")
			require.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		require.Same(t, results[0], results[i])
	}
}
