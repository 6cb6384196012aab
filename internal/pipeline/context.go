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

// Package pipeline implements the gateway's Request Pipeline (§4.6): a
// sequence of stages, each of which either advances the request, produces
// a response directly, or fails. Stages are methods on one shared Deps
// value that carries the process-wide collaborators (ring, shard pool,
// storage agent, config, probes) the way §9's design note replaces
// process-wide globals with a single threaded-through context object.
package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"objectgw/internal/config"
	"objectgw/internal/shard"
	"objectgw/internal/storage"
	"objectgw/internal/throttle"
	"objectgw/pkg/ring"
)

// Authorizer is the external authorization collaborator (§4.6 authorize,
// §1 out of scope): given an owner/action/resource/roles tuple it returns
// nil to permit the request or an error to deny it.
type Authorizer interface {
	Authorize(owner, action, resource string, roles []string) error
}

// AllowAllAuthorizer is a development/test Authorizer that permits every
// request, used when no external authorization service is configured.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) Authorize(string, string, string, []string) error { return nil }

// Deps bundles every process-wide collaborator a request needs (§9's
// context-object design note). One Deps is built once at startup and
// shared by every request.
type Deps struct {
	Log            zerolog.Logger
	Ring           *ring.Ring
	Shards         *shard.Pool
	StorageChooser storage.Chooser
	StorageAgent   *storage.Agent
	StorageResolver storage.Resolver
	Config         *config.Config
	Probes         throttle.Observer
	Authz          Authorizer
	Now            func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
