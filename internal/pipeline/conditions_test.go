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
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"objectgw/internal/gwerrors"
	"objectgw/internal/model"
)

func TestParseConditionsStripsWeakEtagsAndQuotes(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("If-Match", `W/"abc", "def"`)
	r.Header.Set("If-None-Match", `"xyz"`)

	cond := ParseConditions(r)
	require.Equal(t, []string{"abc", "def"}, cond.IfMatch)
	require.Equal(t, []string{"xyz"}, cond.IfNoneMatch)
	require.True(t, cond.HasAny())
}

func TestParseConditionsNoHeadersHasAnyFalse(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	cond := ParseConditions(r)
	require.False(t, cond.HasAny())
}

func testObject(id uuid.UUID, modified time.Time) *model.Object {
	return &model.Object{ID: id, Modified: modified}
}

func TestEvaluateWriteIfMatchMismatchFails(t *testing.T) {
	obj := testObject(uuid.New(), time.Now())
	cond := Conditions{IfMatch: []string{uuid.NewString()}}
	err := cond.EvaluateWrite(obj)
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.PreconditionFailedError.Code, ge.Code)
}

func TestEvaluateWriteIfMatchHit(t *testing.T) {
	obj := testObject(uuid.New(), time.Now())
	cond := Conditions{IfMatch: []string{obj.Etag()}}
	require.NoError(t, cond.EvaluateWrite(obj))
}

func TestEvaluateWriteIfMatchStarRequiresExisting(t *testing.T) {
	cond := Conditions{IfMatch: []string{"*"}}
	err := cond.EvaluateWrite(nil)
	require.Error(t, err)
}

func TestEvaluateWriteIfNoneMatchStarRejectsExisting(t *testing.T) {
	obj := testObject(uuid.New(), time.Now())
	cond := Conditions{IfNoneMatch: []string{"*"}}
	err := cond.EvaluateWrite(obj)
	require.Error(t, err)
}

func TestEvaluateReadIfNoneMatchHitReturns304(t *testing.T) {
	obj := testObject(uuid.New(), time.Now())
	cond := Conditions{IfNoneMatch: []string{obj.Etag()}}
	notModified, err := cond.EvaluateRead(obj)
	require.NoError(t, err)
	require.True(t, notModified)
}

func TestEvaluateReadIfModifiedSinceNotSatisfied(t *testing.T) {
	obj := testObject(uuid.New(), time.Now().Add(-time.Hour))
	cond := Conditions{IfModifiedSince: time.Now(), HasModifiedSince: true}
	notModified, err := cond.EvaluateRead(obj)
	require.NoError(t, err)
	require.True(t, notModified)
}

func TestEvaluateReadIfMatchMismatchStillFails(t *testing.T) {
	obj := testObject(uuid.New(), time.Now())
	cond := Conditions{IfMatch: []string{uuid.NewString()}}
	_, err := cond.EvaluateRead(obj)
	require.Error(t, err)
}
