/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

var ErrOTelExportDisabled = errors.New("OTel exporter disabled")

//nolint:gochecknoglobals // providers are process-wide and shut down together
var (
	telemetryMu    sync.Mutex
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
)

// InitializeTracing installs a global TracerProvider exporting spans over OTLP gRPC.
// Calling it again returns the provider already installed.
func InitializeTracing(ctx context.Context, config *OTelConfig) (*sdktrace.TracerProvider, error) {
	if config == nil || !config.Enabled || config.Endpoint == "" {
		return nil, ErrOTelExportDisabled
	}

	telemetryMu.Lock()
	defer telemetryMu.Unlock()

	if tracerProvider != nil {
		return tracerProvider, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint)}

	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else if config.TLS != nil {
		tlsConfig, err := setupTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
		}

		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName)
	if err != nil {
		return nil, err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider, nil
}

// InitializeMetrics installs a global MeterProvider with a periodic OTLP exporter.
// When interval is zero the default of 15 seconds is used.
func InitializeMetrics(ctx context.Context, config *OTelConfig, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	if config == nil || !config.Enabled || config.Endpoint == "" {
		return nil, ErrOTelExportDisabled
	}

	telemetryMu.Lock()
	defer telemetryMu.Unlock()

	if meterProvider != nil {
		return meterProvider, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.Endpoint)}

	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	} else if config.TLS != nil {
		tlsConfig, err := setupTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup metrics TLS configuration: %w", err)
		}

		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName)
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = 15 * time.Second
	}

	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)

	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

func shutdownMeterProvider(ctx context.Context) error {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()

	if meterProvider == nil {
		return nil
	}

	err := meterProvider.Shutdown(ctx)
	meterProvider = nil

	return err
}

func shutdownTracerProvider(ctx context.Context) error {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()

	if tracerProvider == nil {
		return nil
	}

	err := tracerProvider.Shutdown(ctx)
	tracerProvider = nil

	return err
}
