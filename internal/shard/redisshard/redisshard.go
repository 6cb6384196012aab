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

// Package redisshard is a development/test backend for the shard.ShardClient
// surface, storing buckets and objects as Redis hashes and sorted sets. A
// production deployment replaces this with a real moray-style RPC client
// behind the same interface (§1 out of scope); this package exists so the
// interface boundary is exercised end to end rather than left abstract.
package redisshard

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"objectgw/internal/gwerrors"
	"objectgw/internal/model"
	"objectgw/internal/shard"
)

// Client is a Redis-backed shard.ShardClient.
//
// Layout:
//
//	bucket:<owner>:<name>        hash   { id, name, owner, mtime }
//	buckets:<owner>              zset   member=name score=0, for lexical listing
//	object:<bucketID>:<name>     hash   { id, name, bucket_id, owner, content_length,
//	                                       content_md5, content_type, headers(json),
//	                                       sharks(json), layout_version, created,
//	                                       modified, roles(json) }
//	objects:<bucketID>           zset   member=name score=0, for lexical listing
type Client struct {
	rdb *redis.Client
}

// New wraps an existing *redis.Client as a shard.ShardClient. pnode-to-addr
// resolution is the caller's responsibility (e.g. a shard.Factory closing
// over a pnode->addr map), matching how the teacher's GoRedisEvaler takes a
// plain address rather than doing discovery itself.
func New(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func bucketHashKey(owner, name string) string { return fmt.Sprintf("bucket:%s:%s", owner, name) }
func bucketsZsetKey(owner string) string      { return fmt.Sprintf("buckets:%s", owner) }
func objectHashKey(bucketID, name string) string {
	return fmt.Sprintf("object:%s:%s", bucketID, name)
}
func objectsZsetKey(bucketID string) string { return fmt.Sprintf("objects:%s", bucketID) }
func objectNamesKey(bucketID string) string { return fmt.Sprintf("objectnames:%s", bucketID) }

func (c *Client) GetBucket(ctx context.Context, key string) (*model.Bucket, error) {
	owner, name, err := splitBucketKey(key)
	if err != nil {
		return nil, err
	}
	vals, err := c.rdb.HGetAll(ctx, bucketHashKey(owner, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisshard: GetBucket: %w", err)
	}
	if len(vals) == 0 {
		return nil, gwerrors.BucketNotFoundError.New(nil)
	}
	return decodeBucket(vals)
}

func (c *Client) CreateBucket(ctx context.Context, b *model.Bucket) error {
	hkey := bucketHashKey(b.Owner, b.Name)
	res, err := c.rdb.Eval(ctx, createBucketScript, []string{hkey, bucketsZsetKey(b.Owner)},
		b.ID.String(), b.Name, b.Owner, b.Mtime.Format(time.RFC3339Nano)).Result()
	if err != nil {
		return fmt.Errorf("redisshard: CreateBucket: %w", err)
	}
	if n, _ := res.(int64); n == 0 {
		return gwerrors.BucketAlreadyExistsError.New(nil)
	}
	return nil
}

func (c *Client) DeleteBucket(ctx context.Context, key string) error {
	owner, name, err := splitBucketKey(key)
	if err != nil {
		return err
	}
	hkey := bucketHashKey(owner, name)
	vals, err := c.rdb.HGetAll(ctx, hkey).Result()
	if err != nil {
		return fmt.Errorf("redisshard: DeleteBucket: %w", err)
	}
	if len(vals) == 0 {
		return gwerrors.BucketNotFoundError.New(nil)
	}
	b, err := decodeBucket(vals)
	if err != nil {
		return err
	}
	n, err := c.rdb.ZCard(ctx, objectsZsetKey(b.ID.String())).Result()
	if err != nil {
		return fmt.Errorf("redisshard: DeleteBucket: checking emptiness: %w", err)
	}
	if n > 0 {
		return gwerrors.BucketNotEmptyError.New(nil)
	}
	res, err := c.rdb.Eval(ctx, deleteBucketScript, []string{hkey, bucketsZsetKey(owner)}, name).Result()
	if err != nil {
		return fmt.Errorf("redisshard: DeleteBucket: %w", err)
	}
	if n, _ := res.(int64); n == 0 {
		return gwerrors.BucketNotFoundError.New(nil)
	}
	return nil
}

func (c *Client) ListBuckets(ctx context.Context, owner string, opts shard.ListBucketsOptions) ([]model.Bucket, error) {
	names, err := lexRange(ctx, c.rdb, bucketsZsetKey(owner), opts.Marker, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("redisshard: ListBuckets: %w", err)
	}
	out := make([]model.Bucket, 0, len(names))
	for _, name := range names {
		vals, err := c.rdb.HGetAll(ctx, bucketHashKey(owner, name)).Result()
		if err != nil {
			return nil, fmt.Errorf("redisshard: ListBuckets: fetching %q: %w", name, err)
		}
		if len(vals) == 0 {
			continue // raced with a concurrent delete; omit rather than fail the page
		}
		b, err := decodeBucket(vals)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func (c *Client) GetObject(ctx context.Context, key string) (*model.Object, error) {
	bucketID, nameHash, err := splitObjectKey(key)
	if err != nil {
		return nil, err
	}
	name, err := c.resolveObjectName(ctx, bucketID, nameHash)
	if err != nil {
		return nil, err
	}
	vals, err := c.rdb.HGetAll(ctx, objectHashKey(bucketID, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisshard: GetObject: %w", err)
	}
	if len(vals) == 0 {
		return nil, gwerrors.ObjectNotFoundError.New(nil)
	}
	return decodeObject(vals)
}

func (c *Client) CreateObject(ctx context.Context, o *model.Object, expectedEtag string) error {
	return c.putObject(ctx, o, expectedEtag, true)
}

func (c *Client) UpdateObject(ctx context.Context, o *model.Object, expectedEtag string) error {
	return c.putObject(ctx, o, expectedEtag, false)
}

func (c *Client) putObject(ctx context.Context, o *model.Object, expectedEtag string, mustNotExist bool) error {
	hkey := objectHashKey(o.BucketID.String(), o.Name)
	nameHash := model.NameHashHex(o.Name)
	payload, err := encodeObject(o)
	if err != nil {
		return err
	}
	mode := "update"
	if mustNotExist {
		mode = "create"
	}
	res, err := c.rdb.Eval(ctx, putObjectScript,
		[]string{hkey, objectsZsetKey(o.BucketID.String()), objectNamesKey(o.BucketID.String())},
		append([]interface{}{mode, expectedEtag, o.Name, nameHash}, payload...)...).Result()
	if err != nil {
		return fmt.Errorf("redisshard: putObject: %w", err)
	}
	code, _ := res.(int64)
	switch code {
	case 1:
		return nil
	case -1:
		if mustNotExist {
			return gwerrors.BucketAlreadyExistsError.New(nil) // name collision, same semantics family
		}
		return gwerrors.ObjectNotFoundError.New(nil)
	case -2:
		return gwerrors.PreconditionFailedError.New(nil)
	default:
		return fmt.Errorf("redisshard: putObject: unexpected script result %v", res)
	}
}

func (c *Client) DeleteObject(ctx context.Context, key string, expectedEtag string) error {
	bucketID, nameHash, err := splitObjectKey(key)
	if err != nil {
		return err
	}
	name, err := c.resolveObjectName(ctx, bucketID, nameHash)
	if err != nil {
		return err
	}
	res, err := c.rdb.Eval(ctx, deleteObjectScript,
		[]string{objectHashKey(bucketID, name), objectsZsetKey(bucketID), objectNamesKey(bucketID)},
		expectedEtag, name, nameHash).Result()
	if err != nil {
		return fmt.Errorf("redisshard: DeleteObject: %w", err)
	}
	code, _ := res.(int64)
	switch code {
	case 1:
		return nil
	case 0:
		return gwerrors.ObjectNotFoundError.New(nil)
	case -1:
		return gwerrors.PreconditionFailedError.New(nil)
	default:
		return fmt.Errorf("redisshard: DeleteObject: unexpected script result %v", res)
	}
}

func (c *Client) ListObjects(ctx context.Context, bucketID string, opts shard.ListObjectsOptions) ([]model.Object, error) {
	min, max := "-", "+"
	if opts.Marker != "" {
		min = "(" + opts.Marker
	}
	if opts.Prefix != "" {
		// Bound the range to the prefix so filtering never shortens a page,
		// which the Limit-Marker Stream would read as the end of the data.
		if opts.Marker < opts.Prefix {
			min = "[" + opts.Prefix
		}
		max = "[" + opts.Prefix + "\xff"
	}
	names, err := c.rdb.ZRangeByLex(ctx, objectsZsetKey(bucketID), &redis.ZRangeBy{Min: min, Max: max, Count: int64(opts.Limit)}).Result()
	if err != nil {
		return nil, fmt.Errorf("redisshard: ListObjects: %w", err)
	}
	out := make([]model.Object, 0, len(names))
	for _, name := range names {
		if opts.Prefix != "" && !hasPrefix(name, opts.Prefix) {
			continue
		}
		vals, err := c.rdb.HGetAll(ctx, objectHashKey(bucketID, name)).Result()
		if err != nil {
			return nil, fmt.Errorf("redisshard: ListObjects: fetching %q: %w", name, err)
		}
		if len(vals) == 0 {
			continue
		}
		obj, err := decodeObject(vals)
		if err != nil {
			return nil, err
		}
		out = append(out, *obj)
	}
	return out, nil
}

// resolveObjectName looks up an object's stored name from its routing-key
// name hash, since GetObject/DeleteObject only receive the hashed form
// (§3 Routing Key). The gateway's Shark lookup path always has the literal
// object name in hand already and never needs this; this exists so the
// ShardClient surface stays symmetric with what a real moray-style RPC
// would accept (bucket id + name hash) without requiring the pipeline to
// thread the plaintext name through every call.
func (c *Client) resolveObjectName(ctx context.Context, bucketID, nameHash string) (string, error) {
	name, err := c.rdb.HGet(ctx, objectNamesKey(bucketID), nameHash).Result()
	if err == redis.Nil {
		return "", gwerrors.ObjectNotFoundError.New(nil)
	}
	if err != nil {
		return "", fmt.Errorf("redisshard: resolveObjectName: %w", err)
	}
	return name, nil
}

func lexRange(ctx context.Context, rdb *redis.Client, zkey, marker string, limit int) ([]string, error) {
	min := "-"
	if marker != "" {
		min = "(" + marker // exclusive, matching the Limit-Marker Stream's OpenPageFunc contract
	}
	opt := &redis.ZRangeBy{Min: min, Max: "+", Offset: 0, Count: int64(limit)}
	return rdb.ZRangeByLex(ctx, zkey, opt).Result()
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func splitBucketKey(key string) (owner, name string, err error) {
	owner, name, ok := cut(key, ":")
	if !ok {
		return "", "", fmt.Errorf("redisshard: malformed bucket key %q", key)
	}
	return owner, name, nil
}

func splitObjectKey(key string) (bucketID, nameHash string, err error) {
	_, rest, ok := cut(key, ":")
	if !ok {
		return "", "", fmt.Errorf("redisshard: malformed object key %q", key)
	}
	bucketID, nameHash, ok = cutLast(rest, ":")
	if !ok {
		return "", "", fmt.Errorf("redisshard: malformed object key %q", key)
	}
	return bucketID, nameHash, nil
}

func cut(s, sep string) (before, after string, found bool) {
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

func cutLast(s, sep string) (before, after string, found bool) {
	for i := len(s) - len(sep); i >= 0; i-- {
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("redisshard: decoding uuid %q: %w", s, err)
	}
	return id, nil
}

func decodeBucket(vals map[string]string) (*model.Bucket, error) {
	id, err := parseUUID(vals["id"])
	if err != nil {
		return nil, err
	}
	mtime, err := time.Parse(time.RFC3339Nano, vals["mtime"])
	if err != nil {
		return nil, fmt.Errorf("redisshard: decoding bucket mtime: %w", err)
	}
	return &model.Bucket{ID: id, Name: vals["name"], Owner: vals["owner"], Mtime: mtime}, nil
}

func encodeObject(o *model.Object) ([]interface{}, error) {
	headers, err := json.Marshal(o.Headers)
	if err != nil {
		return nil, fmt.Errorf("redisshard: encoding headers: %w", err)
	}
	sharks, err := json.Marshal(o.Sharks)
	if err != nil {
		return nil, fmt.Errorf("redisshard: encoding sharks: %w", err)
	}
	roles, err := json.Marshal(o.Roles)
	if err != nil {
		return nil, fmt.Errorf("redisshard: encoding roles: %w", err)
	}
	return []interface{}{
		"id", o.ID.String(),
		"name", o.Name,
		"bucket_id", o.BucketID.String(),
		"owner", o.Owner,
		"content_length", strconv.FormatInt(o.ContentLength, 10),
		"content_md5", o.ContentMD5,
		"content_type", o.ContentType,
		"headers", string(headers),
		"sharks", string(sharks),
		"layout_version", strconv.Itoa(o.StorageLayoutVersion),
		"created", o.Created.Format(time.RFC3339Nano),
		"modified", o.Modified.Format(time.RFC3339Nano),
		"roles", string(roles),
	}, nil
}

func decodeObject(vals map[string]string) (*model.Object, error) {
	id, err := parseUUID(vals["id"])
	if err != nil {
		return nil, err
	}
	bucketID, err := parseUUID(vals["bucket_id"])
	if err != nil {
		return nil, err
	}
	contentLength, err := strconv.ParseInt(vals["content_length"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisshard: decoding content_length: %w", err)
	}
	layoutVersion, err := strconv.Atoi(vals["layout_version"])
	if err != nil {
		return nil, fmt.Errorf("redisshard: decoding layout_version: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, vals["created"])
	if err != nil {
		return nil, fmt.Errorf("redisshard: decoding created: %w", err)
	}
	modified, err := time.Parse(time.RFC3339Nano, vals["modified"])
	if err != nil {
		return nil, fmt.Errorf("redisshard: decoding modified: %w", err)
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(vals["headers"]), &headers); err != nil {
		return nil, fmt.Errorf("redisshard: decoding headers: %w", err)
	}
	var sharks []model.Shark
	if err := json.Unmarshal([]byte(vals["sharks"]), &sharks); err != nil {
		return nil, fmt.Errorf("redisshard: decoding sharks: %w", err)
	}
	var roles []string
	if err := json.Unmarshal([]byte(vals["roles"]), &roles); err != nil {
		return nil, fmt.Errorf("redisshard: decoding roles: %w", err)
	}
	return &model.Object{
		ID:                   id,
		Name:                 vals["name"],
		NameHash:             md5.Sum([]byte(vals["name"])),
		BucketID:             bucketID,
		Owner:                vals["owner"],
		ContentLength:        contentLength,
		ContentMD5:           vals["content_md5"],
		ContentType:          vals["content_type"],
		Headers:              headers,
		Sharks:               sharks,
		StorageLayoutVersion: layoutVersion,
		Created:              created,
		Modified:             modified,
		Roles:                roles,
	}, nil
}
