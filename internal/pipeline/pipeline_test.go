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
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"objectgw/internal/config"
	"objectgw/internal/gwerrors"
	"objectgw/internal/model"
	"objectgw/internal/shard"
	"objectgw/internal/storage"
	"objectgw/pkg/ring"
)

// fakeShardClient is an in-memory shard.ShardClient for pipeline tests.
type fakeShardClient struct {
	mu      sync.Mutex
	buckets map[string]*model.Bucket
	objects map[string]*model.Object
}

func newFakeShardClient() *fakeShardClient {
	return &fakeShardClient{buckets: map[string]*model.Bucket{}, objects: map[string]*model.Object{}}
}

func (f *fakeShardClient) GetBucket(_ context.Context, key string) (*model.Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[key]
	if !ok {
		return nil, gwerrors.BucketNotFoundError.New(nil)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeShardClient) CreateBucket(_ context.Context, b *model.Bucket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := model.BucketKey(b.Owner, b.Name)
	if _, ok := f.buckets[key]; ok {
		return gwerrors.BucketAlreadyExistsError.New(nil)
	}
	cp := *b
	f.buckets[key] = &cp
	return nil
}

func (f *fakeShardClient) DeleteBucket(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[key]
	if !ok {
		return gwerrors.BucketNotFoundError.New(nil)
	}
	for _, o := range f.objects {
		if o.BucketID == b.ID {
			return gwerrors.BucketNotEmptyError.New(nil)
		}
	}
	delete(f.buckets, key)
	return nil
}

func (f *fakeShardClient) ListBuckets(_ context.Context, owner string, _ shard.ListBucketsOptions) ([]model.Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Bucket
	for _, b := range f.buckets {
		if b.Owner == owner {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeShardClient) GetObject(_ context.Context, key string) (*model.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[key]
	if !ok {
		return nil, gwerrors.ObjectNotFoundError.New(nil)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeShardClient) objectKeyFor(o *model.Object) string {
	return model.ObjectKey(o.Owner, o.BucketID.String(), o.Name)
}

func (f *fakeShardClient) CreateObject(_ context.Context, o *model.Object, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.objectKeyFor(o)
	if _, ok := f.objects[key]; ok {
		return gwerrors.BucketAlreadyExistsError.New(nil)
	}
	cp := *o
	f.objects[key] = &cp
	return nil
}

func (f *fakeShardClient) UpdateObject(_ context.Context, o *model.Object, expectedEtag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.objectKeyFor(o)
	existing, ok := f.objects[key]
	if !ok || existing.Etag() != expectedEtag {
		return gwerrors.PreconditionFailedError.New(nil)
	}
	cp := *o
	f.objects[key] = &cp
	return nil
}

func (f *fakeShardClient) DeleteObject(_ context.Context, key string, expectedEtag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.objects[key]
	if !ok {
		return gwerrors.ObjectNotFoundError.New(nil)
	}
	if existing.Etag() != expectedEtag {
		return gwerrors.PreconditionFailedError.New(nil)
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeShardClient) ListObjects(_ context.Context, bucketID string, _ shard.ListObjectsOptions) ([]model.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Object
	for _, o := range f.objects {
		if o.BucketID.String() == bucketID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// testDeps builds a Deps backed by a single fake shard client shared by
// every pnode and a single real storage node served by an httptest server,
// enough to exercise the full write/read/delete round trip.
func testDeps(t *testing.T) (*Deps, *fakeShardClient, func()) {
	t.Helper()
	fc := newFakeShardClient()

	pool := shard.New(func(string) (shard.ShardClient, error) { return fc, nil })

	ctx := context.Background()
	r, err := ring.New(ctx, ring.StaticPlacementSource{Nodes: []string{"shard-0"}}, ring.Config{NumVnodes: 64}, zerolog.Nop())
	require.NoError(t, err)

	var stored []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			stored = b
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(stored)
		}
	}))

	node := storage.Node{Datacenter: "dev", StorageID: "storage-0", BaseURL: srv.URL}
	deps := &Deps{
		Log:             zerolog.Nop(),
		Ring:            r,
		Shards:          pool,
		StorageChooser:  storage.NewRoundRobinChooser([]storage.Node{node}),
		StorageAgent:    storage.NewAgent(srv.Client()),
		StorageResolver: storage.StaticResolver{BaseURLs: map[string]string{"storage-0": srv.URL}},
		Config: &config.Config{
			MaxObjectSize:     1 << 20,
			MaxObjectCopies:   3,
			DefaultDurability: 1,
			CheckStreamIdle:   0,
		},
		Authz: AllowAllAuthorizer{},
	}
	return deps, fc, srv.Close
}

func TestCreateBucketThenDuplicateFails(t *testing.T) {
	deps, _, cleanup := testDeps(t)
	defer cleanup()

	_, err := deps.CreateBucket(context.Background(), CreateBucketInput{Owner: "alice", Name: "photos"})
	require.NoError(t, err)

	_, err = deps.CreateBucket(context.Background(), CreateBucketInput{Owner: "alice", Name: "photos"})
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.BucketAlreadyExistsError.Code, ge.Code)
}

func TestPutGetDeleteObjectRoundTrip(t *testing.T) {
	deps, _, cleanup := testDeps(t)
	defer cleanup()
	ctx := context.Background()

	_, err := deps.CreateBucket(ctx, CreateBucketInput{Owner: "alice", Name: "photos"})
	require.NoError(t, err)

	body := "hello world"
	obj, err := deps.PutObject(ctx, PutObjectInput{
		Owner:         "alice",
		BucketName:    "photos",
		ObjectName:    "cat.png",
		Body:          strings.NewReader(body),
		ContentLength: int64(len(body)),
		ContentType:   "image/png",
	})
	require.NoError(t, err)
	require.Len(t, obj.Sharks, 1)

	out, err := deps.GetObject(ctx, GetObjectInput{Owner: "alice", BucketName: "photos", ObjectName: "cat.png"})
	require.NoError(t, err)
	require.False(t, out.NotModified)
	defer out.Body.Close()
	got, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	require.Equal(t, body, string(got))

	err = deps.DeleteObject(ctx, DeleteObjectInput{Owner: "alice", BucketName: "photos", ObjectName: "cat.png"})
	require.NoError(t, err)

	_, err = deps.GetObject(ctx, GetObjectInput{Owner: "alice", BucketName: "photos", ObjectName: "cat.png"})
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.ObjectNotFoundError.Code, ge.Code)
}

func TestPutObjectZeroByteFastPath(t *testing.T) {
	deps, _, cleanup := testDeps(t)
	defer cleanup()
	ctx := context.Background()

	_, err := deps.CreateBucket(ctx, CreateBucketInput{Owner: "alice", Name: "empties"})
	require.NoError(t, err)

	obj, err := deps.PutObject(ctx, PutObjectInput{
		Owner:         "alice",
		BucketName:    "empties",
		ObjectName:    "nothing",
		Body:          strings.NewReader(""),
		ContentLength: 0,
	})
	require.NoError(t, err)
	require.Equal(t, model.ZeroByteMD5, obj.ContentMD5)
	require.Empty(t, obj.Sharks)
}

func TestPutObjectWithoutBucketFails(t *testing.T) {
	deps, _, cleanup := testDeps(t)
	defer cleanup()

	_, err := deps.PutObject(context.Background(), PutObjectInput{
		Owner:         "alice",
		BucketName:    "missing",
		ObjectName:    "x",
		Body:          strings.NewReader("x"),
		ContentLength: 1,
	})
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.BucketNotFoundError.Code, ge.Code)
}

func TestDeleteNonEmptyBucketFails(t *testing.T) {
	deps, _, cleanup := testDeps(t)
	defer cleanup()
	ctx := context.Background()

	_, err := deps.CreateBucket(ctx, CreateBucketInput{Owner: "alice", Name: "full"})
	require.NoError(t, err)
	_, err = deps.PutObject(ctx, PutObjectInput{
		Owner: "alice", BucketName: "full", ObjectName: "a",
		Body: strings.NewReader("a"), ContentLength: 1,
	})
	require.NoError(t, err)

	err = deps.DeleteBucket(ctx, "alice", "full")
	require.Error(t, err)
}

func TestPutObjectWithIfMatchPreconditionFailed(t *testing.T) {
	deps, _, cleanup := testDeps(t)
	defer cleanup()
	ctx := context.Background()

	_, err := deps.CreateBucket(ctx, CreateBucketInput{Owner: "alice", Name: "photos"})
	require.NoError(t, err)

	_, err = deps.PutObject(ctx, PutObjectInput{
		Owner: "alice", BucketName: "photos", ObjectName: "new-only",
		Body: strings.NewReader("x"), ContentLength: 1,
		Conditions: Conditions{IfMatch: []string{"some-etag"}},
	})
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.PreconditionFailedError.Code, ge.Code)
}
