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
	"net/http"
	"strings"
	"time"

	"objectgw/internal/gwerrors"
	"objectgw/internal/model"
)

// Conditions is the parsed form of a request's If-* headers (§4.6
// loadRequest, §9 Conditional Engine).
type Conditions struct {
	IfMatch           []string // etags, empty slice if header absent
	IfNoneMatch       []string
	IfUnmodifiedSince time.Time
	HasUnmodifiedSince bool
	IfModifiedSince    time.Time
	HasModifiedSince   bool
}

// HasAny reports whether the request carried any If-* header at all,
// which gates maybeGetObject's conditional peek on create (§4.6).
func (c Conditions) HasAny() bool {
	return len(c.IfMatch) > 0 || len(c.IfNoneMatch) > 0 || c.HasUnmodifiedSince || c.HasModifiedSince
}

// ParseConditions reads the If-* headers off r, stripping the weak W/
// prefix and surrounding quotes from etag lists (§4.6 loadRequest).
func ParseConditions(r *http.Request) Conditions {
	return Conditions{
		IfMatch:            parseEtagList(r.Header.Get("If-Match")),
		IfNoneMatch:        parseEtagList(r.Header.Get("If-None-Match")),
		IfUnmodifiedSince:  parseHTTPDate(r.Header.Get("If-Unmodified-Since")),
		HasUnmodifiedSince: r.Header.Get("If-Unmodified-Since") != "",
		IfModifiedSince:    parseHTTPDate(r.Header.Get("If-Modified-Since")),
		HasModifiedSince:   r.Header.Get("If-Modified-Since") != "",
	}
}

func parseEtagList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(p, "W/")
		p = strings.Trim(p, `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseHTTPDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func matchesAny(etag string, list []string) bool {
	for _, e := range list {
		if e == "*" || e == etag {
			return true
		}
	}
	return false
}

// EvaluateWrite applies If-Match / If-None-Match / If-Unmodified-Since
// against an existing object on the write path (maybeGetObject's
// conditional peek, §4.6), returning PreconditionFailedError on failure.
// existing is nil when the object does not yet exist.
func (c Conditions) EvaluateWrite(existing *model.Object) error {
	if existing == nil {
		if len(c.IfMatch) > 0 {
			return gwerrors.PreconditionFailedError.New(nil)
		}
		return nil
	}
	etag := existing.Etag()
	if len(c.IfMatch) > 0 && !matchesAny(etag, c.IfMatch) {
		return gwerrors.PreconditionFailedError.New(nil)
	}
	if len(c.IfNoneMatch) > 0 && matchesAny(etag, c.IfNoneMatch) {
		return gwerrors.PreconditionFailedError.New(nil)
	}
	if c.HasUnmodifiedSince && existing.Modified.After(c.IfUnmodifiedSince) {
		return gwerrors.PreconditionFailedError.New(nil)
	}
	return nil
}

// EvaluateRead applies the read-path conditions (§4.6 conditionalHandler):
// If-Match still fails the request with PreconditionFailedError, but a
// satisfied If-None-Match / If-Modified-Since converts the response to a
// 304 rather than failing it.
func (c Conditions) EvaluateRead(obj *model.Object) (notModified bool, err error) {
	if len(c.IfMatch) > 0 && !matchesAny(obj.Etag(), c.IfMatch) {
		return false, gwerrors.PreconditionFailedError.New(nil)
	}
	return c.ShouldReturn304(obj), nil
}

// ShouldReturn304 implements conditionalHandler (§4.6, GET/HEAD only):
// true when If-None-Match matched or If-Modified-Since is strictly after
// the object's last-modified time.
func (c Conditions) ShouldReturn304(obj *model.Object) bool {
	if len(c.IfNoneMatch) > 0 && matchesAny(obj.Etag(), c.IfNoneMatch) {
		return true
	}
	if c.HasModifiedSince && c.IfModifiedSince.After(obj.Modified) {
		return true
	}
	return false
}
