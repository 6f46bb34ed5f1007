/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION & AFFILIATES. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package redis publishes live test results on a Redis Pub/Sub channel so
// dashboards can follow a batch while it runs. Nothing is persisted.
package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/host-bench/rdma-bench/utils"
)

// DefaultChannel is the Pub/Sub channel results are published on.
const DefaultChannel = "rdma-bench:results"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Password   string
	DB         int
	TLSEnabled bool
	Channel    string
}

// RedisClient handles Redis operations
type RedisClient struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisClient creates a new Redis client and verifies the connection.
func NewRedisClient(ctx context.Context, config RedisConfig, logger *slog.Logger) (*RedisClient, error) {
	redisOptions := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	}

	if config.TLSEnabled {
		redisOptions.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(redisOptions)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Redis client connected successfully",
		slog.String("address", redisOptions.Addr),
		slog.Int("db", config.DB),
		slog.Bool("tls", config.TLSEnabled),
	)

	return &RedisClient{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	c.logger.Info("closing redis client")
	return c.client.Close()
}

// Client returns the underlying redis.Client for direct access
func (c *RedisClient) Client() *redis.Client {
	return c.client
}

// Channel returns a publisher bound to the named Pub/Sub channel.
func (c *RedisClient) Channel(name string) *ChannelPublisher {
	if name == "" {
		name = DefaultChannel
	}
	return &ChannelPublisher{client: c, channel: name}
}

// ChannelPublisher publishes JSON-encoded values on one channel.
type ChannelPublisher struct {
	client  *RedisClient
	channel string
}

// Publish encodes v as JSON and publishes it. Having no subscribers is not
// an error.
func (p *ChannelPublisher) Publish(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", p.channel, err)
	}
	receivers, err := p.client.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish on %s: %w", p.channel, err)
	}
	p.client.logger.Debug("published result",
		slog.String("channel", p.channel),
		slog.Int64("receivers", receivers))
	return nil
}

// RedisFlagPointers holds pointers to flag values for Redis configuration
type RedisFlagPointers struct {
	enabled    *bool
	host       *string
	port       *int
	password   *string
	db         *int
	tlsEnabled *bool
	channel    *string
}

// RegisterRedisFlags registers Redis-related flags on fs. The returned
// pointers should be converted to RedisConfig after parsing.
func RegisterRedisFlags(fs *pflag.FlagSet) *RedisFlagPointers {
	return &RedisFlagPointers{
		enabled: fs.Bool("redis-enable",
			utils.GetEnvBool("RDMA_BENCH_REDIS_ENABLE", false),
			"Publish test results to Redis"),
		host: fs.String("redis-host",
			utils.GetEnv("RDMA_BENCH_REDIS_HOST", "localhost"),
			"Redis host"),
		port: fs.Int("redis-port",
			utils.GetEnvInt("RDMA_BENCH_REDIS_PORT", 6379),
			"Redis port"),
		password: fs.String("redis-password",
			utils.GetEnvOrConfig("RDMA_BENCH_REDIS_PASSWORD", "redis_password", ""),
			"Redis password"),
		db: fs.Int("redis-db-number",
			utils.GetEnvInt("RDMA_BENCH_REDIS_DB_NUMBER", 0),
			"Redis database number to connect to. Default value is 0"),
		tlsEnabled: fs.Bool("redis-tls-enable",
			utils.GetEnvBool("RDMA_BENCH_REDIS_TLS_ENABLE", false),
			"Enable TLS for Redis connection"),
		channel: fs.String("redis-channel",
			utils.GetEnv("RDMA_BENCH_REDIS_CHANNEL", DefaultChannel),
			"Pub/Sub channel for test results"),
	}
}

// ToRedisConfig converts flag pointers to RedisConfig
func (r *RedisFlagPointers) ToRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:    *r.enabled,
		Host:       *r.host,
		Port:       *r.port,
		Password:   *r.password,
		DB:         *r.db,
		TLSEnabled: *r.tlsEnabled,
		Channel:    *r.channel,
	}
}
