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

package ubidots

import (
	"os"
	"strings"
	"time"

	"github.com/carverauto/sigfox-relay/pkg/models"
)

const (
	DefaultEndpoint = "https://industrial.api.ubidots.com"
	DefaultPageSize = 100
	defaultTimeout  = 30 * time.Second

	// PlaceholderAPIKey is the value shipped in sample configs.
	PlaceholderAPIKey = "YOUR_UBIDOTS_API_KEY"

	apiKeyEnv = "UBIDOTS_API_KEY"
)

// Config holds the Ubidots connection settings.
type Config struct {
	Endpoint           string          `json:"endpoint"`
	APIKey             string          `json:"api_key"`
	Timeout            models.Duration `json:"timeout"`
	PageSize           int             `json:"page_size"`
	InsecureSkipVerify bool            `json:"insecure_skip_verify"`
}

// Normalize applies defaults and lets UBIDOTS_API_KEY override the configured key.
func (c *Config) Normalize() {
	if key := os.Getenv(apiKeyEnv); key != "" {
		c.APIKey = key
	}

	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}

	c.Endpoint = strings.TrimRight(c.Endpoint, "/")

	if c.Timeout <= 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}

	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
}

func (c *Config) Validate() error {
	key := strings.TrimSpace(c.APIKey)
	if key == "" || key == PlaceholderAPIKey {
		return ErrMissingAPIKey
	}

	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}

	return nil
}
