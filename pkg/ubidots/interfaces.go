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
	"context"
	"net/http"
)

//go:generate mockgen -destination=mock_ubidots.go -package=ubidots github.com/carverauto/sigfox-relay/pkg/ubidots HTTPClient

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// API is the dashboard capability set consumed by the relay.
type API interface {
	Authenticate(ctx context.Context) error
	ListDatasources(ctx context.Context) ([]Datasource, error)
	ListVariables(ctx context.Context, datasourceID string) ([]Variable, error)
	WriteValue(ctx context.Context, variableID string, payload interface{}) error
}
