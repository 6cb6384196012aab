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
	"net/http"
	"strconv"

	"objectgw/internal/model"
	"objectgw/internal/pipeline"
)

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("login")
	bucket := r.PathValue("bucket")

	_, err := s.deps.CreateBucket(r.Context(), pipeline.CreateBucketInput{Owner: owner, Name: bucket})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeadBucket(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("login")
	bucket := r.PathValue("bucket")

	_, err := s.deps.HeadBucket(r.Context(), owner, bucket)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("login")
	bucket := r.PathValue("bucket")

	if err := s.deps.DeleteBucket(r.Context(), owner, bucket); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("login")
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := s.deps.ListBuckets(r.Context(), pipeline.ListBucketsInput{
		Owner:  owner,
		Marker: q.Get("marker"),
		Limit:  limit,
	})
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
		b := e.Data.(model.Bucket)
		if err := enc.Encode(bucketView(&b)); err != nil {
			return
		}
	}
}

type bucketResponse struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	Mtime string `json:"mtime"`
}

func bucketView(b *model.Bucket) bucketResponse {
	return bucketResponse{Name: b.Name, Owner: b.Owner, Mtime: b.Mtime.Format("2006-01-02T15:04:05.000Z")}
}
