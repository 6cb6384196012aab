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

// Package api is the gateway's HTTP surface (§6): it decodes requests into
// pipeline inputs, invokes the Request Pipeline, and renders results (or
// errors, per §4.7) back onto the wire.
package api

import (
	"encoding/json"
	"net/http"

	"objectgw/internal/gwerrors"
)

// errorBody is the documented error response shape (§4.7): a stable code
// plus a human-readable message.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders err as a JSON error body with the status its taxonomy
// entry maps to (§4.7), falling back to 500/InternalError for anything that
// didn't come from gwerrors.
func writeError(w http.ResponseWriter, err error) {
	ge, ok := gwerrors.As(err)
	if !ok {
		ge = gwerrors.InternalError.New(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ge.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorBody{Code: ge.Code, Message: ge.Message})
}
