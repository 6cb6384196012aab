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

// Package model holds the data shapes shared across the gateway: buckets,
// objects, storage-node replicas, and the routing keys used to place them
// on the metadata ring.
package model

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ZeroByteMD5 is the canonical base64 MD5 digest stored for zero-length objects.
const ZeroByteMD5 = "1B2M2Y8AsgTpgAmY7PhCfg=="

// CurrentStorageLayoutVersion is the layout version written for new objects (§9 open question).
const CurrentStorageLayoutVersion = 2

// Bucket is an owner-scoped, named flat keyspace of objects.
type Bucket struct {
	ID    uuid.UUID
	Name  string
	Owner string
	Mtime time.Time
}

// Shark identifies one storage node holding a copy of an object's body.
type Shark struct {
	Datacenter string
	StorageID  string
}

// Object is a blob identified by a UTF-8 name and a server-assigned UUID (the etag).
type Object struct {
	ID                   uuid.UUID
	Name                 string
	NameHash             [16]byte
	BucketID             uuid.UUID
	Owner                string
	ContentLength        int64
	ContentMD5           string
	ContentType          string
	Headers              map[string]string
	Sharks               []Shark
	StorageLayoutVersion int
	Created              time.Time
	Modified             time.Time
	Roles                []string
}

// Etag returns the object's etag, which is always its id.
func (o *Object) Etag() string { return o.ID.String() }

// NameHashHex hashes an object name the way routing keys do (§3 Routing Key).
func NameHashHex(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}

// BucketKey builds the canonical routing key for a bucket lookup: "owner:bucket".
func BucketKey(owner, bucket string) string {
	return owner + ":" + bucket
}

// ObjectKey builds the canonical routing key for an object lookup:
// "owner:bucket_id:md5hex(object_name)" (§3). The object name's MD5 is used,
// not the raw name, so the tuple is reproducible from fixed-size fields
// present on the storage node.
func ObjectKey(owner, bucketID, name string) string {
	return owner + ":" + bucketID + ":" + NameHashHex(name)
}

var bucketLabelRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
var ipShapeRE = regexp.MustCompile(`^[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}$`)

// ValidateBucketName enforces the §3 bucket naming rules.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return errInvalidBucketName("must be 3-63 characters")
	}
	if strings.Contains(name, "\x00") {
		return errInvalidBucketName("must not contain a NUL byte")
	}
	if ipShapeRE.MatchString(name) {
		return errInvalidBucketName("must not resemble an IP address")
	}
	labels := strings.Split(name, ".")
	for _, label := range labels {
		if !bucketLabelRE.MatchString(label) {
			return errInvalidBucketName("labels must be lowercase alphanumeric, may contain interior hyphens")
		}
	}
	return nil
}

// ValidateObjectName enforces the §3 object naming rules.
func ValidateObjectName(name string) error {
	n := len(name)
	if n < 1 || n > 1024 {
		return errInvalidObjectName("must be 1-1024 bytes")
	}
	if !utf8.ValidString(name) {
		return errInvalidObjectName("must be valid UTF-8")
	}
	if strings.Contains(name, "\x00") {
		return errInvalidObjectName("must not contain a NUL byte")
	}
	return nil
}

// InvalidNameError reports a bucket or object name that fails validation.
// It carries enough structure for the error-translation layer to map it to 422.
type InvalidNameError struct {
	Kind   string // "bucket" or "object"
	Reason string
}

func (e *InvalidNameError) Error() string {
	return "invalid " + e.Kind + " name: " + e.Reason
}

func errInvalidBucketName(reason string) error {
	return &InvalidNameError{Kind: "bucket", Reason: reason}
}

func errInvalidObjectName(reason string) error {
	return &InvalidNameError{Kind: "object", Reason: reason}
}
