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

// Command gateway runs the object storage gateway: it parses flags into a
// config.Config, wires the placement ring, metadata shard pool, and
// storage-node clients against it, and serves the HTTP API until an OS
// signal requests a graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"objectgw/internal/api"
	"objectgw/internal/config"
	"objectgw/internal/metrics"
	"objectgw/internal/pipeline"
	"objectgw/internal/shard"
	"objectgw/internal/shard/redisshard"
	"objectgw/internal/storage"
	"objectgw/pkg/ring"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "objectgw").Logger()

	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	placementSource := ring.StaticPlacementSource{Nodes: cfg.Pnodes}
	metadataRing, err := ring.New(ctx, placementSource, ring.Config{
		NumVnodes:       cfg.NumVnodes,
		RefreshInterval: cfg.RingRefresh,
	}, log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("initial placement fetch failed")
	}
	metadataRing.Start()

	// Every pnode shares one Redis instance in this development wiring; a
	// production deployment's Factory would dial a distinct RPC endpoint
	// per pnode instead.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	shardPool := shard.New(func(string) (shard.ShardClient, error) {
		return redisshard.New(rdb), nil
	})
	for _, pnode := range metadataRing.Current().Pnodes() {
		if _, err := shardPool.Get(pnode); err != nil {
			log.Fatal().Err(err).Str("pnode", pnode).Msg("opening metadata shard client failed")
		}
	}

	storageNodes, baseURLs, err := parseStorageNodes(cfg.StorageNodes)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid storage node directory")
	}

	deps := &pipeline.Deps{
		Log:             log,
		Ring:            metadataRing,
		Shards:          shardPool,
		StorageChooser:  storage.NewRoundRobinChooser(storageNodes),
		StorageAgent:    storage.NewAgent(nil),
		StorageResolver: storage.StaticResolver{BaseURLs: baseURLs},
		Config:          cfg,
		Authz:           pipeline.AllowAllAuthorizer{},
	}

	apiServer := api.NewServer(deps)
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.SocketIdle,
		WriteTimeout: cfg.SocketIdle,
		IdleTimeout:  cfg.SocketIdle,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	metadataRing.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown failed")
	}
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("closing redis client failed")
	}
	log.Info().Msg("gateway stopped")
}

// parseStorageNodes decodes cfg.StorageNodes entries shaped
// "datacenter/storage_id=http://host:port" into a Node list plus the
// storage_id -> base URL map storage.StaticResolver needs.
func parseStorageNodes(entries []string) ([]storage.Node, map[string]string, error) {
	nodes := make([]storage.Node, 0, len(entries))
	baseURLs := make(map[string]string, len(entries))
	for _, entry := range entries {
		idAndURL := strings.SplitN(entry, "=", 2)
		if len(idAndURL) != 2 {
			return nil, nil, fmt.Errorf("storage node entry %q: expected datacenter/storage_id=url", entry)
		}
		dcAndID := strings.SplitN(idAndURL[0], "/", 2)
		if len(dcAndID) != 2 {
			return nil, nil, fmt.Errorf("storage node entry %q: expected datacenter/storage_id=url", entry)
		}
		node := storage.Node{Datacenter: dcAndID[0], StorageID: dcAndID[1], BaseURL: idAndURL[1]}
		nodes = append(nodes, node)
		baseURLs[node.StorageID] = node.BaseURL
	}
	if len(nodes) == 0 {
		nodes = []storage.Node{{Datacenter: "dev", StorageID: "storage-0", BaseURL: "http://127.0.0.1:8081"}}
		baseURLs["storage-0"] = "http://127.0.0.1:8081"
	}
	return nodes, baseURLs, nil
}
