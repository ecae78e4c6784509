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

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/nats-io/nats.go/jetstream"
)

var errKVKeyNotFound = errors.New("key not found in KV store")

// KVStore is the read side of a key/value configuration store.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// KVConfigLoader loads configuration from a KV store.
// A config file path maps to the key "config/<basename>".
type KVConfigLoader struct {
	store KVStore
}

// NewKVConfigLoader creates a new KVConfigLoader with the given KV store.
func NewKVConfigLoader(store KVStore) *KVConfigLoader {
	return &KVConfigLoader{store: store}
}

// Load implements ConfigLoader by fetching and unmarshaling data from the KV store.
func (k *KVConfigLoader) Load(ctx context.Context, configPath string, dst interface{}) error {
	key := "config/" + path.Base(configPath)

	data, found, err := k.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get key '%s' from KV store: %w", key, err)
	}

	if !found {
		return fmt.Errorf("%w: '%s'", errKVKeyNotFound, key)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from key '%s': %w", key, err)
	}

	return nil
}

// NATSKVStore reads configuration documents from a JetStream key/value bucket.
type NATSKVStore struct {
	kv jetstream.KeyValue
}

// NewNATSKVStore binds to an existing bucket.
func NewNATSKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSKVStore, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to bind KV bucket %s: %w", bucket, err)
	}

	return &NATSKVStore{kv: kv}, nil
}

func (s *NATSKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return entry.Value(), true, nil
}
