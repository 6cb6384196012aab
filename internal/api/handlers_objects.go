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

package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"objectgw/internal/gwerrors"
	"objectgw/internal/listing"
	"objectgw/internal/metrics"
	"objectgw/internal/model"
	"objectgw/internal/pipeline"
)

const metaHeaderPrefix = "X-Object-Meta-"

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("login")
	bucket := r.PathValue("bucket")
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	in := pipeline.ListObjectsInput{
		Owner:      owner,
		BucketName: bucket,
		Prefix:     q.Get("prefix"),
		Marker:     q.Get("marker"),
		Limit:      limit,
	}
	if delim := q.Get("delimiter"); delim != "" {
		in.Delimiter = delim[0]
		in.HasDelimiter = true
	}

	res, err := s.deps.ListObjects(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	if res.NextMarker != "" {
		w.Header().Set("X-Next-Marker", res.NextMarker)
	}
	enc := newNDJSONEncoder(w)
	for _, e := range res.Entries {
		if e.Type == listing.EntryGroup {
			if err := enc.Encode(groupResponse{Type: "group", Prefix: e.Name}); err != nil {
				return
			}
			continue
		}
		obj := e.Data.(model.Object)
		if err := enc.Encode(objectView(&obj)); err != nil {
			return
		}
	}
}

type groupResponse struct {
	Type   string `json:"type"`
	Prefix string `json:"prefix"`
}

type objectResponse struct {
	Name          string            `json:"name"`
	Etag          string            `json:"etag"`
	ContentLength int64             `json:"content_length"`
	ContentMD5    string            `json:"content_md5"`
	ContentType   string            `json:"content_type,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Roles         []string          `json:"roles,omitempty"`
	Modified      string            `json:"modified"`
}

func objectView(o *model.Object) objectResponse {
	return objectResponse{
		Name:          o.Name,
		Etag:          o.Etag(),
		ContentLength: o.ContentLength,
		ContentMD5:    o.ContentMD5,
		ContentType:   o.ContentType,
		Headers:       o.Headers,
		Roles:         o.Roles,
		Modified:      o.Modified.Format("2006-01-02T15:04:05.000Z"),
	}
}

func extractMetaHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for k := range h {
		if strings.HasPrefix(k, metaHeaderPrefix) {
			out[strings.TrimPrefix(k, metaHeaderPrefix)] = h.Get(k)
		}
	}
	return out
}

func extractRoles(h http.Header) []string {
	v := h.Get("X-Object-Roles")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurabilityHeader(h http.Header) int {
	v := h.Get("Durability-Level")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("login")
	bucket := r.PathValue("bucket")
	object := r.PathValue("object")
	cond := pipeline.ParseConditions(r)

	if r.URL.Query().Has("metadata") {
		obj, err := s.deps.UpdateObjectMetadata(r.Context(), pipeline.UpdateObjectMetadataInput{
			Owner:       owner,
			BucketName:  bucket,
			ObjectName:  object,
			ContentType: r.Header.Get("Content-Type"),
			Headers:     extractMetaHeaders(r.Header),
			Roles:       extractRoles(r.Header),
			Conditions:  cond,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Etag", obj.Etag())
		w.WriteHeader(http.StatusNoContent)
		return
	}

	contentLength := r.ContentLength
	if contentLength < 0 {
		writeError(w, gwerrors.ContentLengthRequiredError.New(nil))
		return
	}

	obj, err := s.deps.PutObject(r.Context(), pipeline.PutObjectInput{
		Owner:         owner,
		BucketName:    bucket,
		ObjectName:    object,
		Body:          r.Body,
		ContentLength: contentLength,
		ContentMD5:    r.Header.Get("Content-MD5"),
		ContentType:   r.Header.Get("Content-Type"),
		Headers:       extractMetaHeaders(r.Header),
		Roles:         extractRoles(r.Header),
		Durability:    parseDurabilityHeader(r.Header),
		Conditions:    cond,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Etag", obj.Etag())
	w.Header().Set("Computed-MD5", obj.ContentMD5)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("login")
	bucket := r.PathValue("bucket")
	object := r.PathValue("object")

	out, err := s.deps.GetObject(r.Context(), pipeline.GetObjectInput{
		Owner:       owner,
		BucketName:  bucket,
		ObjectName:  object,
		RangeHeader: r.Header.Get("Range"),
		Conditions:  pipeline.ParseConditions(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if out.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	defer out.Body.Close()

	writeObjectHeaders(w, out.Object)
	w.WriteHeader(http.StatusOK)
	n, _ := io.Copy(w, out.Body)
	metrics.ObserveOutboundBytes(n)
}

func (s *Server) handleHeadObject(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("login")
	bucket := r.PathValue("bucket")
	object := r.PathValue("object")

	out, err := s.deps.HeadObject(r.Context(), pipeline.GetObjectInput{
		Owner:      owner,
		BucketName: bucket,
		ObjectName: object,
		Conditions: pipeline.ParseConditions(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if out.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeObjectHeaders(w, out.Object)
	w.WriteHeader(http.StatusOK)
}

func writeObjectHeaders(w http.ResponseWriter, o *model.Object) {
	w.Header().Set("Etag", o.Etag())
	w.Header().Set("Content-Length", strconv.FormatInt(o.ContentLength, 10))
	w.Header().Set("Content-MD5", o.ContentMD5)
	if o.ContentType != "" {
		w.Header().Set("Content-Type", o.ContentType)
	}
	w.Header().Set("Last-Modified", o.Modified.Format(http.TimeFormat))
	for k, v := range o.Headers {
		w.Header().Set(metaHeaderPrefix+k, v)
	}
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("login")
	bucket := r.PathValue("bucket")
	object := r.PathValue("object")

	err := s.deps.DeleteObject(r.Context(), pipeline.DeleteObjectInput{
		Owner:      owner,
		BucketName: bucket,
		ObjectName: object,
		Conditions: pipeline.ParseConditions(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
