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

	"objectgw/internal/pipeline"
	"objectgw/internal/throttle"
)

// Server handles the gateway's public HTTP surface (§6). It holds the
// per-request Deps built once at startup and the admission-control
// throttle shared by every request.
type Server struct {
	deps     *pipeline.Deps
	throttle *throttle.Throttle
}

// NewServer builds a Server wired against deps, bounding concurrent
// handling to deps.Config's throttle settings (§4.8).
func NewServer(deps *pipeline.Deps) *Server {
	return &Server{
		deps:     deps,
		throttle: throttle.New(deps.Config.ThrottleSlots, deps.Config.ThrottleQueueDepth, deps.Probes),
	}
}

// RegisterRoutes mounts the gateway's routes on mux using Go's enhanced
// ServeMux method+wildcard patterns (§6): {login} is a single path
// segment, {object...} is a trailing wildcard so object names may
// themselves contain "/".
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /{login}/buckets", s.instrument(s.handleBucketsOptions))
	mux.HandleFunc("GET /{login}/buckets", s.instrument(s.handleListBuckets))

	mux.HandleFunc("PUT /{login}/buckets/{bucket}", s.instrument(s.handleCreateBucket))
	mux.HandleFunc("HEAD /{login}/buckets/{bucket}", s.instrument(s.handleHeadBucket))
	mux.HandleFunc("DELETE /{login}/buckets/{bucket}", s.instrument(s.handleDeleteBucket))

	mux.HandleFunc("GET /{login}/buckets/{bucket}/objects", s.instrument(s.handleListObjects))

	mux.HandleFunc("PUT /{login}/buckets/{bucket}/objects/{object...}", s.instrument(s.handlePutObject))
	mux.HandleFunc("GET /{login}/buckets/{bucket}/objects/{object...}", s.instrument(s.handleGetObject))
	mux.HandleFunc("HEAD /{login}/buckets/{bucket}/objects/{object...}", s.instrument(s.handleHeadObject))
	mux.HandleFunc("DELETE /{login}/buckets/{bucket}/objects/{object...}", s.instrument(s.handleDeleteObject))
}

// handleBucketsOptions answers a CORS preflight for the bucket collection
// (§9 design note on CORS header propagation): it echoes the requesting
// Origin and the headers the browser asked to send, rather than storing a
// separate CORS policy the gateway doesn't otherwise have a home for.
func (s *Server) handleBucketsOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, OPTIONS")
	if origin := r.Header.Get("Origin"); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
