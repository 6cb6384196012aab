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
	"crypto/md5"
	"io"

	"github.com/google/uuid"

	"objectgw/internal/checkstream"
	"objectgw/internal/gwerrors"
	"objectgw/internal/metrics"
	"objectgw/internal/model"
	"objectgw/internal/storage"
)

// durability clamps a requested Durability-Level header (0 means absent) to
// [1, maxCopies], defaulting to cfgDefault when the header was absent
// (§4.6 parseArguments).
func durability(requested, cfgDefault, maxCopies int) int {
	d := requested
	if d <= 0 {
		d = cfgDefault
	}
	if d < 1 {
		d = 1
	}
	if d > maxCopies {
		d = maxCopies
	}
	return d
}

// getObjectIfExists loads an object by name, swallowing ObjectNotFoundError
// into a nil result (§4.6 maybeGetObject).
func (d *Deps) getObjectIfExists(ctx context.Context, owner, bucketID, name string) (*model.Object, error) {
	client, err := d.shardFor(model.ObjectKey(owner, bucketID, name))
	if err != nil {
		return nil, err
	}
	obj, err := client.GetObject(ctx, model.ObjectKey(owner, bucketID, name))
	if err != nil {
		if ge, ok := gwerrors.As(err); ok && ge.Code == gwerrors.ObjectNotFoundError.Code {
			return nil, nil
		}
		return nil, err
	}
	return obj, nil
}

// PutObjectInput is the input to PutObject (§4.6, §6 put-object).
type PutObjectInput struct {
	Owner         string
	BucketName    string
	ObjectName    string
	Body          io.Reader
	ContentLength int64
	ContentMD5    string // client-supplied Content-MD5, if any; empty means unchecked
	ContentType   string
	Headers       map[string]string
	Roles         []string
	Durability    int // requested Durability-Level, 0 if absent
	Conditions    Conditions
}

// PutObject implements PUT .../objects/:object_name (§4.6 the full write
// path: loadRequest through createObject).
func (d *Deps) PutObject(ctx context.Context, in PutObjectInput) (*model.Object, error) {
	if err := model.ValidateObjectName(in.ObjectName); err != nil {
		return nil, gwerrors.InvalidArgumentError.New(err)
	}
	if err := d.Authz.Authorize(in.Owner, "PutObject", in.BucketName+"/"+in.ObjectName, in.Roles); err != nil {
		return nil, err
	}
	if in.ContentLength < 0 {
		return nil, gwerrors.ContentLengthRequiredError.New(nil)
	}
	if in.ContentLength > d.Config.MaxObjectSize {
		return nil, gwerrors.MaxContentLengthExceededError.New(nil)
	}

	bucket, err := d.getBucketIfExists(ctx, in.Owner, in.BucketName)
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		return nil, gwerrors.BucketNotFoundError.New(nil)
	}
	bucketID := bucket.ID.String()

	existing, err := d.getObjectIfExists(ctx, in.Owner, bucketID, in.ObjectName)
	if err != nil {
		return nil, err
	}
	if in.Conditions.HasAny() {
		if err := in.Conditions.EvaluateWrite(existing); err != nil {
			return nil, err
		}
	}

	level := durability(in.Durability, d.Config.DefaultDurability, d.Config.MaxObjectCopies)

	var (
		sharks        []model.Shark
		contentMD5    string
		contentLength int64
	)
	if in.ContentLength == 0 {
		contentMD5 = model.ZeroByteMD5
	} else {
		sharks, contentMD5, contentLength, err = d.streamToSharks(ctx, in, bucketID, level)
		if err != nil {
			return nil, err
		}
	}
	if contentMD5 == "" {
		contentMD5 = model.ZeroByteMD5
	}
	if in.ContentLength > 0 {
		contentLength = in.ContentLength
	}

	now := d.now()
	obj := &model.Object{
		ID:                   uuid.New(),
		Name:                 in.ObjectName,
		NameHash:             md5.Sum([]byte(in.ObjectName)),
		BucketID:             bucket.ID,
		Owner:                in.Owner,
		ContentLength:        contentLength,
		ContentMD5:           contentMD5,
		ContentType:          in.ContentType,
		Headers:              in.Headers,
		Sharks:               sharks,
		StorageLayoutVersion: model.CurrentStorageLayoutVersion,
		Created:              now,
		Modified:             now,
		Roles:                in.Roles,
	}
	if existing != nil {
		obj.Created = existing.Created
	}

	client, err := d.shardFor(model.ObjectKey(in.Owner, bucketID, in.ObjectName))
	if err != nil {
		return nil, err
	}
	if existing == nil {
		err = client.CreateObject(ctx, obj, "")
	} else {
		err = client.UpdateObject(ctx, obj, existing.Etag())
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// streamToSharks runs findSharks/startSharkStreams (§4.6): it asks the
// storage Chooser for a candidate replica set, tees the client body
// through a Check Stream to every node in that set concurrently, and
// returns the sharks the object now lives on along with the computed
// digest and byte count. Per §8's retry policy there is no fallback to a
// second candidate set once body streaming has begun, so only the
// Chooser's first returned set is attempted.
func (d *Deps) streamToSharks(ctx context.Context, in PutObjectInput, bucketID string, level int) ([]model.Shark, string, int64, error) {
	sets, err := d.StorageChooser.Choose(ctx, level)
	if err != nil {
		return nil, "", 0, gwerrors.InternalError.New(err)
	}
	if len(sets) == 0 || len(sets[0]) == 0 {
		return nil, "", 0, gwerrors.SharksExhaustedError.New(nil)
	}
	set := sets[0]

	checked := checkstream.New(in.Body, md5.New, d.Config.MaxObjectSize, d.Config.CheckStreamIdle)
	readers, wait := storage.TeeReaders(checked, len(set))

	write := func(ctx context.Context, node storage.Node) storage.PutResult {
		idx := -1
		for i, n := range set {
			if n == node {
				idx = i
				break
			}
		}
		if idx < 0 {
			return storage.PutResult{Node: node, Err: gwerrors.InternalError.New(nil)}
		}
		return d.StorageAgent.Put(ctx, node, in.Owner, bucketID, in.ObjectName, readers[idx], in.ContentLength, in.ContentMD5)
	}

	res := storage.FanOut(ctx, [][]storage.Node{set}, write)
	bodyErr := wait()

	if checked.TimedOut() {
		return nil, "", 0, gwerrors.UploadTimeoutError.New(nil)
	}
	if bodyErr != nil {
		return nil, "", 0, gwerrors.UploadAbandonedError.New(bodyErr)
	}
	if in.ContentMD5 != "" && in.ContentMD5 != checked.Digest() {
		return nil, "", 0, gwerrors.ChecksumError.New(nil).
			WithDetail("expected", in.ContentMD5).
			WithDetail("actual", checked.Digest())
	}
	if !res.OK {
		return nil, "", 0, classifyPutFailure(res)
	}

	sharks := make([]model.Shark, len(set))
	for i, n := range set {
		sharks[i] = n.Shark()
	}
	metrics.ObserveInboundBytes(checked.Count())
	return sharks, checked.Digest(), checked.Count(), nil
}

// classifyPutFailure maps a failed fan-out attempt's per-node status codes
// to the gateway's taxonomy (§4.7): a 469 from any node means that node
// rejected the body on checksum mismatch; any other >=400 collapses to
// SharksExhausted, the signal that durability could not be met.
func classifyPutFailure(res storage.FanOutResult) error {
	for _, r := range res.Results {
		if r.StatusCode == 469 {
			return gwerrors.ChecksumError.New(nil)
		}
	}
	return gwerrors.SharksExhaustedError.New(nil)
}

// GetObjectInput is the input to GetObject (§6 get-object).
type GetObjectInput struct {
	Owner       string
	BucketName  string
	ObjectName  string
	RangeHeader string
	Conditions  Conditions
}

// GetObjectOutput carries the object's metadata and, unless the request was
// satisfied by a conditional 304, a readable body the caller must close.
type GetObjectOutput struct {
	Object      *model.Object
	Body        io.ReadCloser
	NotModified bool
}

// GetObject implements GET .../objects/:object_name (§4.6, §7 read
// streaming with failover across the object's stored sharks).
func (d *Deps) GetObject(ctx context.Context, in GetObjectInput) (*GetObjectOutput, error) {
	obj, err := d.loadObjectForRead(ctx, in.Owner, in.BucketName, in.ObjectName, "GetObject", in.Conditions)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return &GetObjectOutput{NotModified: true}, nil
	}

	nodes := storage.ResolveSharks(ctx, d.StorageResolver, obj.Sharks)
	if len(nodes) == 0 {
		return nil, gwerrors.SharksExhaustedError.New(nil)
	}
	res := d.StorageAgent.Get(ctx, nodes, in.Owner, obj.BucketID.String(), in.ObjectName, in.RangeHeader)
	if res.Err != nil {
		return nil, gwerrors.SharksExhaustedError.New(res.Err)
	}
	return &GetObjectOutput{Object: obj, Body: res.Body}, nil
}

// HeadObject implements HEAD .../objects/:object_name: the metadata half
// of GetObject without opening a storage-node stream.
func (d *Deps) HeadObject(ctx context.Context, in GetObjectInput) (*GetObjectOutput, error) {
	obj, err := d.loadObjectForRead(ctx, in.Owner, in.BucketName, in.ObjectName, "HeadObject", in.Conditions)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return &GetObjectOutput{NotModified: true}, nil
	}
	return &GetObjectOutput{Object: obj}, nil
}

// loadObjectForRead resolves bucket+object and applies read-path
// conditions, returning (nil, nil) when the conditions resolved to a 304.
func (d *Deps) loadObjectForRead(ctx context.Context, owner, bucketName, objectName, action string, cond Conditions) (*model.Object, error) {
	if err := d.Authz.Authorize(owner, action, bucketName+"/"+objectName, nil); err != nil {
		return nil, err
	}
	bucket, err := d.getBucketIfExists(ctx, owner, bucketName)
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		return nil, gwerrors.BucketNotFoundError.New(nil)
	}
	obj, err := d.getObjectIfExists(ctx, owner, bucket.ID.String(), objectName)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, gwerrors.ObjectNotFoundError.New(nil)
	}
	notModified, err := cond.EvaluateRead(obj)
	if err != nil {
		return nil, err
	}
	if notModified {
		return nil, nil
	}
	return obj, nil
}

// DeleteObjectInput is the input to DeleteObject (§6 delete-object).
type DeleteObjectInput struct {
	Owner      string
	BucketName string
	ObjectName string
	Conditions Conditions
}

// DeleteObject implements DELETE .../objects/:object_name (§4.6). The
// storage-node bodies themselves are reclaimed asynchronously by a garbage
// collection sweep (§1 out of scope); the gateway only removes the
// metadata record and reports the freed byte count (§9 deleted-bytes
// counter, standing in for a deletion-notification bus).
func (d *Deps) DeleteObject(ctx context.Context, in DeleteObjectInput) error {
	if err := d.Authz.Authorize(in.Owner, "DeleteObject", in.BucketName+"/"+in.ObjectName, nil); err != nil {
		return err
	}
	bucket, err := d.getBucketIfExists(ctx, in.Owner, in.BucketName)
	if err != nil {
		return err
	}
	if bucket == nil {
		return gwerrors.BucketNotFoundError.New(nil)
	}
	bucketID := bucket.ID.String()
	existing, err := d.getObjectIfExists(ctx, in.Owner, bucketID, in.ObjectName)
	if err != nil {
		return err
	}
	if existing == nil {
		return gwerrors.ObjectNotFoundError.New(nil)
	}
	if in.Conditions.HasAny() {
		if err := in.Conditions.EvaluateWrite(existing); err != nil {
			return err
		}
	}
	client, err := d.shardFor(model.ObjectKey(in.Owner, bucketID, in.ObjectName))
	if err != nil {
		return err
	}
	if err := client.DeleteObject(ctx, model.ObjectKey(in.Owner, bucketID, in.ObjectName), existing.Etag()); err != nil {
		return err
	}
	metrics.ObserveDeletedBytes(existing.ContentLength)
	return nil
}

// UpdateObjectMetadataInput is the input to UpdateObjectMetadata (§6 the
// metadata subresource: replace headers/content-type/roles without
// touching the body or its sharks).
type UpdateObjectMetadataInput struct {
	Owner       string
	BucketName  string
	ObjectName  string
	ContentType string
	Headers     map[string]string
	Roles       []string
	Conditions  Conditions
}

// UpdateObjectMetadata implements PUT .../objects/:object_name?metadata
// (the ?metadata query parameter selects it). A path ending in /metadata
// is not treated as this subresource: the suffix is part of the object name.
func (d *Deps) UpdateObjectMetadata(ctx context.Context, in UpdateObjectMetadataInput) (*model.Object, error) {
	if err := d.Authz.Authorize(in.Owner, "UpdateObjectMetadata", in.BucketName+"/"+in.ObjectName, in.Roles); err != nil {
		return nil, err
	}
	bucket, err := d.getBucketIfExists(ctx, in.Owner, in.BucketName)
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		return nil, gwerrors.BucketNotFoundError.New(nil)
	}
	bucketID := bucket.ID.String()
	existing, err := d.getObjectIfExists(ctx, in.Owner, bucketID, in.ObjectName)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, gwerrors.ObjectNotFoundError.New(nil)
	}
	if in.Conditions.HasAny() {
		if err := in.Conditions.EvaluateWrite(existing); err != nil {
			return nil, err
		}
	}

	updated := *existing
	updated.ContentType = in.ContentType
	updated.Headers = in.Headers
	updated.Roles = in.Roles
	updated.Modified = d.now()

	client, err := d.shardFor(model.ObjectKey(in.Owner, bucketID, in.ObjectName))
	if err != nil {
		return nil, err
	}
	if err := client.UpdateObject(ctx, &updated, existing.Etag()); err != nil {
		return nil, err
	}
	return &updated, nil
}
