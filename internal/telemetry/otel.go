// SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/host-bench/rdma-bench/utils"
)

// OTELConfig holds configuration for the OpenTelemetry metrics pipeline.
type OTELConfig struct {
	OTLPEndpoint     string
	ExportIntervalMS int
	ServiceName      string
	ServiceVersion   string
	Enabled          bool
}

// InitOTEL initialises the OTLP metric pipeline, sets the global MeterProvider,
// and returns pre-created instrument handles plus a shutdown function.
//
// On error the caller should fall back to NewNoopInstruments().
func InitOTEL(ctx context.Context, config OTELConfig) (*Instruments, func(context.Context) error, error) {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(time.Duration(config.ExportIntervalMS)*time.Millisecond),
		)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(provider)

	inst, err := NewInstruments(provider.Meter(config.ServiceName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	return inst, provider.Shutdown, nil
}

// Setup returns instruments for config, falling back to no-op instruments when
// metrics are disabled or the exporter cannot be created. The returned
// shutdown function is never nil.
func Setup(ctx context.Context, config OTELConfig) (*Instruments, func(context.Context) error, error) {
	noShutdown := func(context.Context) error { return nil }
	if !config.Enabled {
		return NewNoopInstruments(), noShutdown, nil
	}
	inst, shutdown, err := InitOTEL(ctx, config)
	if err != nil {
		return NewNoopInstruments(), noShutdown, err
	}
	return inst, shutdown, nil
}

type otelFlagPointers struct {
	enable     *bool
	host       *string
	port       *int
	intervalMS *int
	component  *string
	version    *string
}

// RegisterOTELFlags registers OpenTelemetry metrics flags on fs and returns a
// function that builds an OTELConfig once the flags are parsed. Metrics are
// off unless enabled, since test benches rarely run a collector.
func RegisterOTELFlags(fs *pflag.FlagSet, defaultComponent, version string) func() OTELConfig {
	ptrs := &otelFlagPointers{
		enable: fs.Bool("metrics-otel-enable",
			utils.GetEnvBool("RDMA_BENCH_METRICS_OTEL_ENABLE", false),
			"Enable OpenTelemetry metrics"),
		host: fs.String("metrics-otel-collector-host",
			utils.GetEnv("RDMA_BENCH_METRICS_OTEL_COLLECTOR_HOST", "127.0.0.1"),
			"OpenTelemetry collector host"),
		port: fs.Int("metrics-otel-collector-port",
			utils.GetEnvInt("RDMA_BENCH_METRICS_OTEL_COLLECTOR_PORT", 4317),
			"OpenTelemetry collector port"),
		intervalMS: fs.Int("metrics-otel-interval-ms",
			utils.GetEnvInt("RDMA_BENCH_METRICS_OTEL_INTERVAL_MS", 6000),
			"OpenTelemetry export interval in milliseconds"),
		component: fs.String("metrics-otel-component",
			utils.GetEnv("RDMA_BENCH_METRICS_OTEL_COMPONENT", defaultComponent),
			"Service name for OpenTelemetry metrics"),
		version: fs.String("service-version",
			utils.GetEnv("RDMA_BENCH_SERVICE_VERSION", version),
			"Service version for OpenTelemetry metrics"),
	}

	return func() OTELConfig {
		return OTELConfig{
			OTLPEndpoint:     fmt.Sprintf("%s:%d", *ptrs.host, *ptrs.port),
			ExportIntervalMS: *ptrs.intervalMS,
			ServiceName:      *ptrs.component,
			ServiceVersion:   *ptrs.version,
			Enabled:          *ptrs.enable,
		}
	}
}
