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
	"encoding/json"
	"io"
	"net/http"
)

// ndjsonEncoder writes one JSON value per line, flushing after each one so
// a listing response streams to the client as results become available
// (§6 list responses) instead of buffering the whole page.
type ndjsonEncoder struct {
	enc     *json.Encoder
	flusher http.Flusher
}

func newNDJSONEncoder(w io.Writer) *ndjsonEncoder {
	f, _ := w.(http.Flusher)
	return &ndjsonEncoder{enc: json.NewEncoder(w), flusher: f}
}

func (e *ndjsonEncoder) Encode(v interface{}) error {
	if err := e.enc.Encode(v); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
