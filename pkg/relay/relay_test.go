package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/sigfox-relay/pkg/logger"
	"github.com/carverauto/sigfox-relay/pkg/ubidots"
)

var testDatasources = []ubidots.Datasource{
	{ID: "ds-2c30eb", Name: "Sigfox Device 2C30EB"},
	{ID: "ds-short", Name: "Hut 12"},
	{ID: "ds-aabbcc-1", Name: "Device AABBCC"},
}

var testVariables = []ubidots.Variable{
	{ID: "v-lig", Name: "lig"},
	{ID: "v-tmp", Name: "tmp"},
	{ID: "v-ctr", Name: "ctr"},
}

func newTestRelay(t *testing.T, cfg *Config) (*Relay, *MockRemoteAPI) {
	t.Helper()

	ctrl := gomock.NewController(t)
	api := NewMockRemoteAPI(ctrl)

	r, err := New(api, cfg, logger.NewTestLogger())
	require.NoError(t, err)

	return r, api
}

func expectBootstrap(api *MockRemoteAPI) {
	api.EXPECT().Authenticate(gomock.Any()).Return(nil).Times(1)
	api.EXPECT().ListDatasources(gomock.Any()).Return(testDatasources, nil).Times(1)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil, nil)
	require.ErrorIs(t, err, errMissingRemoteAPI)

	ctrl := gomock.NewController(t)

	_, err = New(NewMockRemoteAPI(ctrl), &Config{WriteConcurrency: -1}, nil)
	require.ErrorIs(t, err, ErrInvalidConcurrency)

	r, err := New(NewMockRemoteAPI(ctrl), &Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultWriteConcurrency, r.config.WriteConcurrency)
	assert.Equal(t, StateCold, r.State())
}

func TestBootstrapIsIdempotent(t *testing.T) {
	r, api := newTestRelay(t, nil)
	expectBootstrap(api)

	ctx := context.Background()

	require.NoError(t, r.Bootstrap(ctx))
	require.NoError(t, r.Bootstrap(ctx))

	assert.Equal(t, StateReady, r.State())
	assert.ElementsMatch(t, []string{"2C30EB", "AABBCC"}, r.Directory().DeviceIDs())

	// "Hut 12" has two hex digits and gets no entry
	assert.NotContains(t, r.Directory().DeviceIDs(), "12")
	assert.Equal(t, 2, r.Directory().Len())
}

func TestBootstrapAuthFailureStaysCold(t *testing.T) {
	r, api := newTestRelay(t, nil)
	authErr := errors.New("bad key")

	gomock.InOrder(
		api.EXPECT().Authenticate(gomock.Any()).Return(authErr),
		api.EXPECT().Authenticate(gomock.Any()).Return(nil),
	)
	api.EXPECT().ListDatasources(gomock.Any()).Return(testDatasources, nil).Times(1)

	err := r.Bootstrap(context.Background())
	require.ErrorIs(t, err, ErrBootstrap)
	require.ErrorIs(t, err, authErr)
	assert.Equal(t, StateCold, r.State())
	assert.Equal(t, 0, r.Directory().Len())

	require.NoError(t, r.Bootstrap(context.Background()))
	assert.Equal(t, StateReady, r.State())
}

func TestBootstrapListFailureKeepsSession(t *testing.T) {
	r, api := newTestRelay(t, nil)
	listErr := errors.New("503")

	api.EXPECT().Authenticate(gomock.Any()).Return(nil).Times(1)
	gomock.InOrder(
		api.EXPECT().ListDatasources(gomock.Any()).Return(nil, listErr),
		api.EXPECT().ListDatasources(gomock.Any()).Return(testDatasources, nil),
	)

	require.ErrorIs(t, r.Bootstrap(context.Background()), listErr)
	assert.Equal(t, StateCold, r.State())

	require.NoError(t, r.Bootstrap(context.Background()))
	assert.Equal(t, StateReady, r.State())
}

func TestBootstrapConcurrentCallersShareOneAttempt(t *testing.T) {
	r, api := newTestRelay(t, nil)

	release := make(chan struct{})

	api.EXPECT().Authenticate(gomock.Any()).DoAndReturn(func(context.Context) error {
		<-release
		return nil
	}).Times(1)
	api.EXPECT().ListDatasources(gomock.Any()).Return(testDatasources, nil).Times(1)

	const callers = 8

	var wg sync.WaitGroup

	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			errs <- r.Bootstrap(context.Background())
		}()
	}

	require.Eventually(t, func() bool {
		return r.State() == StateBootstrapping
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, StateReady, r.State())
}

func TestGetVariablesCachesMapping(t *testing.T) {
	r, api := newTestRelay(t, nil)
	expectBootstrap(api)

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))

	api.EXPECT().ListVariables(gomock.Any(), "ds-2c30eb").Return(testVariables, nil).Times(1)

	first, err := r.GetVariables(ctx, "2C30EB")
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "v-tmp", first["tmp"].ID)

	second, err := r.GetVariables(ctx, "2C30EB")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetVariablesLastNameWins(t *testing.T) {
	r, api := newTestRelay(t, nil)
	expectBootstrap(api)

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))

	api.EXPECT().ListVariables(gomock.Any(), "ds-aabbcc-1").Return([]ubidots.Variable{
		{ID: "old", Name: "tmp"},
		{ID: "new", Name: "tmp"},
	}, nil)

	vars, err := r.GetVariables(ctx, "AABBCC")
	require.NoError(t, err)
	assert.Equal(t, "new", vars["tmp"].ID)
}

func TestGetVariablesUnknownDevice(t *testing.T) {
	r, api := newTestRelay(t, nil)
	expectBootstrap(api)

	require.NoError(t, r.Bootstrap(context.Background()))

	vars, err := r.GetVariables(context.Background(), "FFFFFF")
	require.NoError(t, err)
	assert.Nil(t, vars)
}

func TestGetVariablesFailureIsNotCached(t *testing.T) {
	r, api := newTestRelay(t, nil)
	expectBootstrap(api)

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))

	gomock.InOrder(
		api.EXPECT().ListVariables(gomock.Any(), "ds-2c30eb").Return(nil, errors.New("timeout")),
		api.EXPECT().ListVariables(gomock.Any(), "ds-2c30eb").Return(testVariables, nil),
	)

	_, err := r.GetVariables(ctx, "2C30EB")
	require.ErrorIs(t, err, ErrListVariables)

	vars, err := r.GetVariables(ctx, "2C30EB")
	require.NoError(t, err)
	assert.Len(t, vars, 3)
}

func TestGetVariablesConcurrentSingleFlight(t *testing.T) {
	r, api := newTestRelay(t, nil)
	expectBootstrap(api)

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))

	started := make(chan struct{})
	release := make(chan struct{})

	api.EXPECT().ListVariables(gomock.Any(), "ds-2c30eb").DoAndReturn(
		func(context.Context, string) ([]ubidots.Variable, error) {
			close(started)
			<-release

			return testVariables, nil
		}).Times(1)

	const callers = 16

	var wg sync.WaitGroup

	results := make([]map[string]ubidots.Variable, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			vars, err := r.GetVariables(ctx, "2C30EB")
			assert.NoError(t, err)

			results[i] = vars
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	for _, vars := range results {
		assert.Len(t, vars, 3)
	}
}

func TestGetVariablesCancelledCallerDoesNotFailOthers(t *testing.T) {
	r, api := newTestRelay(t, nil)
	expectBootstrap(api)
	require.NoError(t, r.Bootstrap(context.Background()))

	started := make(chan struct{})
	release := make(chan struct{})

	api.EXPECT().ListVariables(gomock.Any(), "ds-2c30eb").DoAndReturn(
		func(ctx context.Context, _ string) ([]ubidots.Variable, error) {
			close(started)
			<-release

			if err := ctx.Err(); err != nil {
				return nil, err
			}

			return testVariables, nil
		}).Times(1)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)

	go func() {
		_, err := r.GetVariables(firstCtx, "2C30EB")
		firstErr <- err
	}()

	<-started

	secondVars := make(chan map[string]ubidots.Variable, 1)

	go func() {
		vars, err := r.GetVariables(context.Background(), "2C30EB")
		assert.NoError(t, err)
		secondVars <- vars
	}()

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Len(t, <-secondVars, 3)

	entry, ok := r.Directory().Lookup("2C30EB")
	require.True(t, ok)
	assert.Len(t, entry.Variables, 3)
}

func TestBootstrapCancelledCallerDoesNotFailOthers(t *testing.T) {
	r, api := newTestRelay(t, nil)

	release := make(chan struct{})

	api.EXPECT().Authenticate(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		<-release
		return ctx.Err()
	}).Times(1)
	api.EXPECT().ListDatasources(gomock.Any()).Return(testDatasources, nil).Times(1)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)

	go func() {
		firstErr <- r.Bootstrap(firstCtx)
	}()

	require.Eventually(t, func() bool {
		return r.State() == StateBootstrapping
	}, time.Second, time.Millisecond)

	secondErr := make(chan error, 1)

	go func() {
		secondErr <- r.Bootstrap(context.Background())
	}()

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.NoError(t, <-secondErr)
	assert.Equal(t, StateReady, r.State())
}

func TestSetVariable(t *testing.T) {
	r, api := newTestRelay(t, nil)
	expectBootstrap(api)

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))

	api.EXPECT().ListVariables(gomock.Any(), "ds-2c30eb").Return(testVariables, nil).Times(1)
	api.EXPECT().WriteValue(gomock.Any(), "v-lig", 456).Return(nil).Times(1)

	require.NoError(t, r.SetVariable(ctx, "2C30EB", "lig", 456))

	// unknown variable and unknown device are silent no-ops
	require.NoError(t, r.SetVariable(ctx, "2C30EB", "missing", 1))
	require.NoError(t, r.SetVariable(ctx, "FFFFFF", "lig", 1))
}

func TestSetVariableWriteError(t *testing.T) {
	r, api := newTestRelay(t, nil)
	expectBootstrap(api)

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))

	api.EXPECT().ListVariables(gomock.Any(), "ds-2c30eb").Return(testVariables, nil)
	api.EXPECT().WriteValue(gomock.Any(), "v-tmp", 36.9).Return(ubidots.ErrUnexpectedStatusCode)

	err := r.SetVariable(ctx, "2C30EB", "tmp", 36.9)
	require.ErrorIs(t, err, ErrWriteFailed)
	require.ErrorIs(t, err, ubidots.ErrUnexpectedStatusCode)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "COLD", StateCold.String())
	assert.Equal(t, "BOOTSTRAPPING", StateBootstrapping.String())
	assert.Equal(t, "READY", StateReady.String())
	assert.Equal(t, "State(7)", State(7).String())
}
