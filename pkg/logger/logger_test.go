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
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   zerolog.Level
	}{
		{name: "debug flag wins", config: &Config{Level: "error", Debug: true}, want: zerolog.DebugLevel},
		{name: "explicit level", config: &Config{Level: "warn"}, want: zerolog.WarnLevel},
		{name: "default level", config: &Config{}, want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLevel(tt.config)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, err := New(context.Background(), &Config{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer

	l := Wrap(zerolog.New(&buf)).WithComponent("relay")
	l.Info().Str("device_id", "2C30EB").Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}

	if entry["component"] != "relay" {
		t.Errorf("expected component field, got %v", entry["component"])
	}

	if entry["device_id"] != "2C30EB" {
		t.Errorf("expected device_id field, got %v", entry["device_id"])
	}
}

func TestSetDebug(t *testing.T) {
	var buf bytes.Buffer

	l := Wrap(zerolog.New(&buf).Level(zerolog.InfoLevel))
	l.Debug().Msg("hidden")

	if buf.Len() != 0 {
		t.Fatalf("debug event should be dropped at info level")
	}

	l.SetDebug(true)
	l.Debug().Msg("shown")

	if buf.Len() == 0 {
		t.Error("debug event should be written after SetDebug(true)")
	}
}

func TestOTelWriterDisabled(t *testing.T) {
	writer, err := NewOTelWriter(context.Background(), OTelConfig{Enabled: false})
	if err != ErrOTelLoggingDisabled {
		t.Errorf("expected ErrOTelLoggingDisabled, got %v", err)
	}

	if writer != nil {
		t.Error("writer should be nil when OTel is disabled")
	}

	writer, err = NewOTelWriter(context.Background(), OTelConfig{Enabled: true})
	if err != ErrOTelEndpointRequired {
		t.Errorf("expected ErrOTelEndpointRequired, got %v", err)
	}

	if writer != nil {
		t.Error("writer should be nil when endpoint is empty")
	}
}

func TestTelemetryDisabled(t *testing.T) {
	if _, err := InitializeTracing(context.Background(), &OTelConfig{}); err != ErrOTelExportDisabled {
		t.Errorf("expected ErrOTelExportDisabled, got %v", err)
	}

	if _, err := InitializeMetrics(context.Background(), nil, 0); err != ErrOTelExportDisabled {
		t.Errorf("expected ErrOTelExportDisabled, got %v", err)
	}

	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown without providers should succeed: %v", err)
	}
}

func TestSeverityMapping(t *testing.T) {
	cases := map[string]otellog.Severity{
		"trace":   otellog.SeverityTrace,
		"debug":   otellog.SeverityDebug,
		"info":    otellog.SeverityInfo,
		"WARN":    otellog.SeverityWarn,
		"error":   otellog.SeverityError,
		"panic":   otellog.SeverityFatal,
		"unknown": otellog.SeverityInfo,
	}

	for level, want := range cases {
		if got := severityFor(level); got != want {
			t.Errorf("severityFor(%q) = %v, want %v", level, got, want)
		}
	}
}

func TestFormatAttributeValue(t *testing.T) {
	if got := formatAttributeValue(nil); got != "null" {
		t.Errorf("expected null, got %q", got)
	}

	if got := formatAttributeValue(map[string]interface{}{"a": 1.0}); got != `{"a":1}` {
		t.Errorf("unexpected map formatting %q", got)
	}

	long := string(bytes.Repeat([]byte("x"), maxAttributeValueLength+10))
	if got := formatAttributeValue(long); len(got) != maxAttributeValueLength {
		t.Errorf("expected truncation to %d, got %d", maxAttributeValueLength, len(got))
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("OTEL_SERVICE_NAME", "")

	config := DefaultConfig()

	if config.Level != "info" {
		t.Errorf("expected default level info, got %q", config.Level)
	}

	if config.OTel.ServiceName != defaultServiceName {
		t.Errorf("expected default service name, got %q", config.OTel.ServiceName)
	}

	if config.OTel.BatchTimeout == 0 {
		t.Error("BatchTimeout should have a default value")
	}
}
