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

// Package config is the gateway's single flag-based configuration
// surface, assembled once in main and passed into every wiring
// constructor (§1.3).
package config

import (
	"flag"
	"strings"
	"time"
)

// Config holds every tunable of the gateway process.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	NumVnodes       uint64
	RingRefresh     time.Duration
	SocketIdle      time.Duration
	CheckStreamIdle time.Duration

	MaxObjectSize    int64
	MaxObjectCopies  int
	DefaultDurability int

	ThrottleSlots      int
	ThrottleQueueDepth int

	RedisAddr string

	// Pnodes is the fixed set of physical metadata shard identifiers the
	// dev/test StaticPlacementSource hands to the ring (§4.1); a production
	// deployment replaces this with a real placement service.
	Pnodes []string

	// StorageNodes lists the dev/test storage-node directory as
	// "datacenter/storage_id=http://host:port" entries, feeding
	// storage.StaticResolver (§1 out of scope: storage-node discovery).
	StorageNodes []string
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Parse registers every flag on fs (pass flag.CommandLine in main) with
// its documented default, calls fs.Parse(args) itself, and returns the
// resulting Config, mirroring cmd/ratelimiter-api/main.go's
// flag-then-parse-then-assemble shape.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	fs.StringVar(&cfg.HTTPAddr, "http_addr", ":8080", "HTTP listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics_addr", ":9090", "Prometheus /metrics listen address")

	fs.Uint64Var(&cfg.NumVnodes, "num_vnodes", 65536, "Number of logical vnodes in the placement ring")
	fs.DurationVar(&cfg.RingRefresh, "ring_refresh_interval", 1800*time.Second, "How often the placement ring is refreshed from the placement source")
	fs.DurationVar(&cfg.SocketIdle, "socket_idle_timeout", 120*time.Second, "Idle timeout that aborts a request's underlying socket")
	fs.DurationVar(&cfg.CheckStreamIdle, "checkstream_idle_timeout", 45*time.Second, "Idle timeout that aborts a Check Stream body transfer")

	fs.Int64Var(&cfg.MaxObjectSize, "max_object_size", 5<<30, "Maximum accepted object body size, in bytes")
	fs.IntVar(&cfg.MaxObjectCopies, "max_object_copies", 6, "Maximum durability level (storage node replica count) a client may request")
	fs.IntVar(&cfg.DefaultDurability, "default_durability", 2, "Durability level used when a write omits Durability-Level")

	fs.IntVar(&cfg.ThrottleSlots, "throttle_slots", 256, "Number of requests handled concurrently before new requests queue")
	fs.IntVar(&cfg.ThrottleQueueDepth, "throttle_queue_depth", 1024, "Maximum number of requests allowed to wait for a throttle slot")

	fs.StringVar(&cfg.RedisAddr, "redis_addr", "127.0.0.1:6379", "Address of the dev/test Redis-backed shard backend")

	pnodes := fs.String("pnodes", "shard-0,shard-1,shard-2", "Comma-separated list of physical metadata shard identifiers")
	storageNodes := fs.String("storage_nodes", "", "Comma-separated dev/test storage node directory as datacenter/storage_id=http://host:port entries")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Pnodes = splitNonEmpty(*pnodes)
	cfg.StorageNodes = splitNonEmpty(*storageNodes)
	return cfg, nil
}
