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

package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	startErr error
	stopErr  error
}

func (f *fakeService) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.started = true

	return f.startErr
}

func (f *fakeService) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true

	if _, ok := ctx.Deadline(); !ok {
		return errors.New("stop context has no deadline")
	}

	return f.stopErr
}

func TestRunServerStopsOnCancel(t *testing.T) {
	svc := &fakeService{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- RunServer(ctx, &ServerOptions{ServiceName: "test", Service: svc})
	}()

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()

		return svc.started
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunServer did not return after cancel")
	}

	assert.True(t, svc.stopped)
}

func TestRunServerStartFailure(t *testing.T) {
	svc := &fakeService{startErr: errors.New("boom")}

	err := RunServer(context.Background(), &ServerOptions{ServiceName: "test", Service: svc})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start test")
	assert.False(t, svc.stopped)
}

func TestRunServerRequiresService(t *testing.T) {
	require.ErrorIs(t, RunServer(context.Background(), nil), errMissingService)
	require.ErrorIs(t, RunServer(context.Background(), &ServerOptions{}), errMissingService)
}
