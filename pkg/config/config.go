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

// Package config loads service configuration from a file, the environment, or NATS KV.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carverauto/sigfox-relay/pkg/logger"
	"github.com/carverauto/sigfox-relay/pkg/models"
)

var (
	errKVStoreNotSet       = errors.New("KV store not initialized for CONFIG_SOURCE=kv; call SetKVStore first")
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errLoadConfigFailed    = errors.New("failed to load configuration")
)

const (
	configSourceKV   = "kv"
	configSourceFile = "file"
	configSourceEnv  = "env"

	defaultEnvPrefix = "SIGFOX_RELAY_"
)

// ConfigLoader fills dst from a configuration source.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configs that can check themselves after loading.
type Validator interface {
	Validate() error
}

// Normalizer is implemented by configs that need defaults or path fixups applied after loading.
type Normalizer interface {
	Normalize()
}

// Config holds the configuration loading dependencies.
type Config struct {
	kvStore       KVStore
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// NewConfig initializes a new Config instance with a default file loader.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		defaultLoader: &FileConfigLoader{logger: log},
		logger:        log,
	}
}

// SetKVStore sets the KV store to be used when CONFIG_SOURCE=kv.
func (c *Config) SetKVStore(store KVStore) {
	c.kvStore = store
}

// LoadAndValidate loads a configuration, normalizes it, and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if err := c.load(ctx, path, cfg); err != nil {
		return err
	}

	if n, ok := cfg.(Normalizer); ok {
		n.Normalize()
	}

	if v, ok := cfg.(Validator); ok {
		return v.Validate()
	}

	return nil
}

func (c *Config) load(ctx context.Context, path string, cfg interface{}) error {
	source := strings.ToLower(os.Getenv("CONFIG_SOURCE"))

	var loader ConfigLoader

	switch source {
	case configSourceKV:
		if c.kvStore == nil {
			return errKVStoreNotSet
		}

		loader = NewKVConfigLoader(c.kvStore)
	case configSourceEnv:
		prefix := os.Getenv("CONFIG_ENV_PREFIX")
		if prefix == "" {
			prefix = defaultEnvPrefix
		}

		loader = NewEnvConfigLoader(c.logger, prefix)
	case configSourceFile, "":
		loader = c.defaultLoader
	default:
		return fmt.Errorf("%w: %s (expected '%s', '%s', or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceKV, configSourceEnv)
	}

	err := loader.Load(ctx, path, cfg)
	if err == nil || source != configSourceKV {
		return err
	}

	c.logger.Warn().Err(err).Str("path", path).Msg("KV config load failed, falling back to file")

	if fileErr := c.defaultLoader.Load(ctx, path, cfg); fileErr != nil {
		return fmt.Errorf("%w from KV: %w, and from fallback file: %w", errLoadConfigFailed, err, fileErr)
	}

	return nil
}

// NormalizeTLSPaths makes relative TLS file paths absolute under certDir.
func NormalizeTLSPaths(tls *models.TLSConfig, certDir string) {
	if certDir == "" {
		return
	}

	for _, p := range []*string{&tls.CertFile, &tls.KeyFile, &tls.CAFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(certDir, *p)
		}
	}
}
