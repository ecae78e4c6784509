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

// Datasource is the subset of a Ubidots datasource the relay uses.
type Datasource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Variable is the subset of a Ubidots variable the relay uses.
type Variable struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Dot is the structured value payload. Timestamp is milliseconds since the epoch.
type Dot struct {
	Value     interface{}            `json:"value"`
	Timestamp int64                  `json:"timestamp,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
