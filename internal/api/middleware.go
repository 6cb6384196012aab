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
	"time"

	"objectgw/internal/gwerrors"
	"objectgw/internal/metrics"
	"objectgw/internal/throttle"
)

// statusRecorder captures the status code a handler wrote and how long
// after start it was written, so the observability wrapper can report
// them without every handler doing so itself.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	start       time.Time
	firstByte   time.Duration
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
		r.firstByte = time.Since(r.start)
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.status = http.StatusOK
		r.wroteHeader = true
		r.firstByte = time.Since(r.start)
	}
	return r.ResponseWriter.Write(b)
}

// instrument wraps next with admission control (§4.8) and request metrics
// (§9 Observability): every request passes through the throttle before
// reaching the handler, and its method/status/latency are recorded on the
// way out.
func (s *Server) instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		release, err := s.throttle.Acquire(r.Context())
		if err != nil {
			writeError(w, gwerrors.ThrottledError.New(err))
			metrics.ObserveRequest(r.Method, http.StatusServiceUnavailable, time.Since(start), time.Since(start))
			return
		}
		defer release()

		rec := &statusRecorder{ResponseWriter: w, start: start}
		next(rec, r)
		total := time.Since(start)
		latency := rec.firstByte
		if !rec.wroteHeader {
			latency = total
		}
		metrics.ObserveRequest(r.Method, rec.status, latency, total)
	}
}
