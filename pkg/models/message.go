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

package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyMessage  = errors.New("empty message")
	ErrInvalidDevice = errors.New("message has no device id")
)

// Body is the flat field mapping reported by a Sigfox device.
// Numbers are decoded as json.Number so values are forwarded exactly as received.
type Body map[string]interface{}

// HistoryEntry records one processing stage the message passed through.
type HistoryEntry struct {
	Function  string   `json:"function"`
	Timestamp int64    `json:"timestamp"`
	End       int64    `json:"end"`
	Duration  float64  `json:"duration"`
	Latency   *float64 `json:"latency"`
	Source    *string  `json:"source,omitempty"`
}

// Message is a decoded Sigfox message as it travels along its route.
type Message struct {
	Device  string                 `json:"device"`
	Type    string                 `json:"type,omitempty"`
	Body    Body                   `json:"body"`
	Query   map[string]interface{} `json:"query,omitempty"`
	Route   []string               `json:"route"`
	History []HistoryEntry         `json:"history"`
}

// DecodeMessage parses a raw message, keeping numeric body fields as json.Number.
func DecodeMessage(data []byte) (*Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyMessage
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	if msg.Body == nil {
		msg.Body = Body{}
	}

	return &msg, nil
}

// DeviceID returns the normalized device id, preferring the envelope over the body.
func (m *Message) DeviceID() (string, error) {
	id := m.Device

	if id == "" {
		if v, ok := m.Body["device"].(string); ok {
			id = v
		}
	}

	id = NormalizeDeviceID(id)
	if id == "" {
		return "", ErrInvalidDevice
	}

	return id, nil
}

// NormalizeDeviceID uppercases and trims a device id for directory lookups.
func NormalizeDeviceID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NextRoute pops the head of the route. It returns false when the route is exhausted.
func (m *Message) NextRoute() (string, bool) {
	if len(m.Route) == 0 {
		return "", false
	}

	next := m.Route[0]
	m.Route = m.Route[1:]

	return next, true
}
