// Package relay resolves Sigfox devices to Ubidots datasources and writes
// message fields into the matching variables.
package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/carverauto/sigfox-relay/pkg/logger"
	"github.com/carverauto/sigfox-relay/pkg/ubidots"
)

const (
	tracerName   = "sigfox-relay.relay"
	bootstrapKey = "bootstrap"
)

// State is the bootstrap progress of a Relay.
type State int32

const (
	StateCold State = iota
	StateBootstrapping
	StateReady
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "COLD"
	case StateBootstrapping:
		return "BOOTSTRAPPING"
	case StateReady:
		return "READY"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Relay owns the device directory and the authenticated remote session.
// It is safe for concurrent use.
type Relay struct {
	api       RemoteAPI
	config    *Config
	logger    logger.Logger
	tracer    trace.Tracer
	directory *Directory

	state         atomic.Int32
	authMu        sync.Mutex
	authenticated bool

	bootstrapGroup singleflight.Group
	variableGroup  singleflight.Group
}

// New creates a Relay in the COLD state. A nil cfg uses DefaultConfig.
func New(api RemoteAPI, cfg *Config, log logger.Logger) (*Relay, error) {
	if api == nil {
		return nil, errMissingRemoteAPI
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Relay{
		api:       api,
		config:    cfg,
		logger:    log.WithComponent("relay"),
		tracer:    otel.Tracer(tracerName),
		directory: NewDirectory(),
	}, nil
}

func (r *Relay) State() State {
	return State(r.state.Load())
}

func (r *Relay) Directory() *Directory {
	return r.directory
}

// Bootstrap authenticates and loads every datasource into the directory. It
// runs at most once successfully; concurrent callers share one attempt and a
// failed attempt leaves the relay COLD so the next call retries. The shared
// attempt is not cancelled by any one caller; a caller whose ctx ends stops
// waiting and gets ctx.Err().
func (r *Relay) Bootstrap(ctx context.Context) error {
	if r.State() == StateReady {
		return nil
	}

	_, shared, err := shareFlight(ctx, &r.bootstrapGroup, bootstrapKey, func(ctx context.Context) (interface{}, error) {
		if r.State() == StateReady {
			return nil, nil
		}

		r.state.Store(int32(StateBootstrapping))

		if err := r.bootstrap(ctx); err != nil {
			r.state.Store(int32(StateCold))

			return nil, err
		}

		r.state.Store(int32(StateReady))

		return nil, nil
	})

	if shared {
		r.logger.Debug().Msg("Joined in-flight bootstrap")
	}

	return err
}

// shareFlight runs fn once per key across concurrent callers. fn gets a
// context that keeps the first caller's values but not its cancellation;
// remote calls are still bounded by the client timeout.
func shareFlight(
	ctx context.Context, group *singleflight.Group, key string,
	fn func(context.Context) (interface{}, error),
) (val interface{}, shared bool, err error) {
	flightCtx := context.WithoutCancel(ctx)

	ch := group.DoChan(key, func() (interface{}, error) {
		return fn(flightCtx)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	}
}

func (r *Relay) bootstrap(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "Bootstrap")
	defer span.End()

	if err := r.authenticate(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "authentication failed")
		recordBootstrap(ctx, err, 0)

		return fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	datasources, err := r.api.ListDatasources(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "list datasources failed")
		recordBootstrap(ctx, err, 0)

		return fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	var indexed, skipped int

	for _, ds := range datasources {
		deviceID, ok := DeviceIDFromName(ds.Name)
		if !ok {
			skipped++

			r.logger.Info().
				Str("origin", "bootstrap").
				Str("datasource_id", ds.ID).
				Str("datasource_name", ds.Name).
				Msg("Skipping datasource without a device id in its name")

			continue
		}

		if !r.directory.Merge(deviceID, ds) {
			r.logger.Debug().
				Str("device_id", deviceID).
				Str("datasource_id", ds.ID).
				Msg("Merged datasource into existing directory entry")
		}

		indexed++
	}

	span.SetAttributes(
		attribute.Int("datasources.total", len(datasources)),
		attribute.Int("datasources.indexed", indexed),
		attribute.Int("datasources.skipped", skipped),
	)
	span.SetStatus(otelcodes.Ok, "directory loaded")
	recordBootstrap(ctx, nil, len(datasources))

	r.logger.Info().
		Str("origin", "bootstrap").
		Int("datasources", len(datasources)).
		Int("devices", r.directory.Len()).
		Int("skipped", skipped).
		Msg("Directory bootstrapped")

	return nil
}

// authenticate opens the remote session once; a later bootstrap retry reuses it.
func (r *Relay) authenticate(ctx context.Context) error {
	r.authMu.Lock()
	defer r.authMu.Unlock()

	if r.authenticated {
		return nil
	}

	if err := r.api.Authenticate(ctx); err != nil {
		return err
	}

	r.authenticated = true

	return nil
}

// GetVariables returns the variables of deviceID keyed by name, listing them
// remotely on first use. Unknown devices return a nil map and no error.
// Concurrent loads of one device share a single list call, detached from
// cancellation the same way as Bootstrap.
func (r *Relay) GetVariables(ctx context.Context, deviceID string) (map[string]ubidots.Variable, error) {
	entry, ok := r.directory.Lookup(deviceID)
	if !ok || entry.Datasource.ID == "" {
		return nil, nil
	}

	if entry.Variables != nil {
		return entry.Variables, nil
	}

	v, _, err := shareFlight(ctx, &r.variableGroup, deviceID, func(ctx context.Context) (interface{}, error) {
		return r.loadVariables(ctx, deviceID)
	})
	if err != nil {
		return nil, err
	}

	vars, ok := v.(map[string]ubidots.Variable)
	if !ok {
		return nil, errUnexpectedFlightVal
	}

	return vars, nil
}

func (r *Relay) loadVariables(ctx context.Context, deviceID string) (map[string]ubidots.Variable, error) {
	// a flight that finished just before this one may have filled the cache
	entry, ok := r.directory.Lookup(deviceID)
	if !ok {
		return nil, nil
	}

	if entry.Variables != nil {
		return entry.Variables, nil
	}

	ctx, span := r.tracer.Start(ctx, "LoadVariables", trace.WithAttributes(
		attribute.String("device.id", deviceID),
		attribute.String("datasource.id", entry.Datasource.ID),
	))
	defer span.End()

	list, err := r.api.ListVariables(ctx, entry.Datasource.ID)
	recordVariableList(ctx, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "list variables failed")

		return nil, fmt.Errorf("%w for device %s: %w", ErrListVariables, deviceID, err)
	}

	vars := make(map[string]ubidots.Variable, len(list))
	for _, v := range list {
		vars[v.Name] = v
	}

	r.directory.SetVariables(deviceID, vars)

	span.SetAttributes(attribute.Int("variables", len(vars)))

	r.logger.Debug().
		Str("device_id", deviceID).
		Str("datasource_id", entry.Datasource.ID).
		Int("variables", len(vars)).
		Msg("Cached device variables")

	return vars, nil
}

// SetVariable writes value to the variable called name on deviceID. Unknown
// devices and unknown variable names are ignored.
func (r *Relay) SetVariable(ctx context.Context, deviceID, name string, value interface{}) error {
	vars, err := r.GetVariables(ctx, deviceID)
	if err != nil {
		return err
	}

	variable, ok := vars[name]
	if !ok {
		return nil
	}

	return r.writeVariable(ctx, deviceID, name, variable, value)
}

func (r *Relay) writeVariable(
	ctx context.Context, deviceID, name string, variable ubidots.Variable, value interface{}) error {
	ctx, span := r.tracer.Start(ctx, "WriteValue", trace.WithAttributes(
		attribute.String("device.id", deviceID),
		attribute.String("variable.name", name),
		attribute.String("variable.id", variable.ID),
	))
	defer span.End()

	start := time.Now()
	err := r.api.WriteValue(ctx, variable.ID, value)
	recordWrite(ctx, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "write failed")

		return fmt.Errorf("%w: %s/%s: %w", ErrWriteFailed, deviceID, name, err)
	}

	return nil
}
