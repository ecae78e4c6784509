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

// Package ubidots is a minimal client for the Ubidots v1.6 REST API.
package ubidots

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/sigfox-relay/pkg/logger"
)

const (
	authPath        = "/api/v1.6/auth/token"
	datasourcesPath = "/api/v1.6/datasources/"
	maxErrorBody    = 512
)

// Client talks to the Ubidots API. Authenticate must succeed before any other call.
type Client struct {
	config     *Config
	httpClient HTTPClient
	logger     logger.Logger

	mu    sync.RWMutex
	token string
}

var _ API = (*Client)(nil)

// NewHTTPClient builds the default HTTP client for the configured timeout and TLS settings.
func NewHTTPClient(cfg *Config) *http.Client {
	//nolint:gosec // InsecureSkipVerify is opt-in for lab deployments
	return &http.Client{
		Timeout: time.Duration(cfg.Timeout),
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		},
	}
}

// NewClient creates a client. A nil httpClient uses NewHTTPClient.
func NewClient(cfg *Config, httpClient HTTPClient, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     log,
	}
}

// Authenticate exchanges the API key for a session token.
func (c *Client) Authenticate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+authPath, http.NoBody)
	if err != nil {
		return err
	}

	req.Header.Set("x-ubidots-apikey", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	defer c.closeResponse(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %w: %d, response: %s",
			ErrAuthFailed, ErrUnexpectedStatusCode, resp.StatusCode, excerpt(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return fmt.Errorf("failed to parse auth response: %w", err)
	}

	if tokenResp.Token == "" {
		return ErrAuthFailed
	}

	c.mu.Lock()
	c.token = tokenResp.Token
	c.mu.Unlock()

	c.logger.Debug().Str("endpoint", c.config.Endpoint).Msg("Authenticated with Ubidots")

	return nil
}

// Authenticated reports whether a session token is held.
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token != ""
}

// ListDatasources returns every datasource visible to the account, following pagination.
func (c *Client) ListDatasources(ctx context.Context) ([]Datasource, error) {
	first := fmt.Sprintf("%s%s?page_size=%d", c.config.Endpoint, datasourcesPath, c.config.PageSize)

	return listAll[Datasource](ctx, c, first)
}

// ListVariables returns every variable of a datasource, following pagination.
func (c *Client) ListVariables(ctx context.Context, datasourceID string) ([]Variable, error) {
	first := fmt.Sprintf("%s%s%s/variables/?page_size=%d",
		c.config.Endpoint, datasourcesPath, url.PathEscape(datasourceID), c.config.PageSize)

	return listAll[Variable](ctx, c, first)
}

// WriteValue posts one value to a variable. Bare scalars are wrapped as {"value": v};
// a Dot or an object carrying "value" is sent as given.
func (c *Client) WriteValue(ctx context.Context, variableID string, payload interface{}) error {
	endpoint := fmt.Sprintf("%s/api/v1.6/variables/%s/values", c.config.Endpoint, url.PathEscape(variableID))

	return c.doJSON(ctx, http.MethodPost, endpoint, valuePayload(payload), nil)
}

func valuePayload(payload interface{}) interface{} {
	switch v := payload.(type) {
	case Dot, *Dot:
		return v
	case map[string]interface{}:
		if _, ok := v["value"]; ok {
			return v
		}
	}

	return map[string]interface{}{"value": payload}
}

func listAll[T any](ctx context.Context, c *Client, first string) ([]T, error) {
	var out []T

	seen := make(map[string]struct{})

	for next := first; next != ""; {
		if _, dup := seen[next]; dup {
			return nil, fmt.Errorf("%w: %s", errPaginationLoop, next)
		}

		seen[next] = struct{}{}

		var p page[T]
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &p); err != nil {
			return nil, err
		}

		out = append(out, p.Results...)

		next = ""
		if p.Next != nil && *p.Next != "" {
			resolved, err := c.pageURL(*p.Next)
			if err != nil {
				return nil, err
			}

			next = resolved
		}
	}

	return out, nil
}

// pageURL resolves a pagination link against the endpoint and rejects links
// on another scheme or host, which would otherwise receive the session token.
func (c *Client) pageURL(link string) (string, error) {
	base, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", c.config.Endpoint, err)
	}

	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrForeignPageURL, link)
	}

	resolved := base.ResolveReference(ref)
	if !strings.EqualFold(resolved.Scheme, base.Scheme) || !strings.EqualFold(resolved.Host, base.Host) {
		return "", fmt.Errorf("%w: %s", ErrForeignPageURL, link)
	}

	return resolved.String(), nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out interface{}) error {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		return ErrNotAuthenticated
	}

	body := io.Reader(http.NoBody)

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	req.Header.Set("X-Auth-Token", token)
	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer c.closeResponse(resp)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d, response: %s", ErrUnexpectedStatusCode, resp.StatusCode, excerpt(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

func (c *Client) closeResponse(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to close response body")
	}
}

func excerpt(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}

	return string(body)
}
